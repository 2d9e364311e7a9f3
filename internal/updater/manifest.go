package updater

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"runtime"
	"strings"

	"github.com/RowanDark/wraith/internal/env"
)

// DefaultBaseURL serves the signed release manifests.
const DefaultBaseURL = "https://updates.wraith.dev"

// channelHeader tells the release server which channel a request is for.
const channelHeader = "X-Wraith-Update-Channel"

// releaseKey verifies production manifests. WRAITH_UPDATER_PUBLIC_KEY
// replaces it.
const releaseKey = "dWxmMeGnkd0vaZOZHgoEta/r/sMFAWacjsJfq4uhTl0="

const maxManifestSize = 1 << 20

// Manifest lists the wraithctl builds published on one channel. It is
// served as <base>/<channel>/manifest.json with a detached ed25519
// signature at manifest.json.sig.
type Manifest struct {
	Version  string  `json:"version"`
	Channel  string  `json:"channel"`
	NotesURL string  `json:"notes_url,omitempty"`
	Builds   []Build `json:"builds"`
}

// Build is the set of artifacts for one GOOS/GOARCH pair.
type Build struct {
	OS    string   `json:"os"`
	Arch  string   `json:"arch"`
	Full  Artifact `json:"full"`
	Delta *Delta   `json:"delta,omitempty"`
}

// Artifact is a complete replacement binary.
type Artifact struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
}

// Delta is a bsdiff patch against the binary of FromVersion. SHA256 covers
// the patch, not the patched result.
type Delta struct {
	FromVersion string `json:"from_version"`
	URL         string `json:"url"`
	SHA256      string `json:"sha256"`
}

// BuildFor returns the build for goos/goarch, compared case-insensitively.
func (m Manifest) BuildFor(goos, goarch string) (Build, bool) {
	for _, b := range m.Builds {
		if strings.EqualFold(b.OS, goos) && strings.EqualFold(b.Arch, goarch) {
			return b, true
		}
	}
	return Build{}, false
}

// ParseManifest decodes manifest JSON. Every missing required field is
// reported, not only the first.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	var errs []error
	if strings.TrimSpace(m.Version) == "" {
		errs = append(errs, errors.New("missing version"))
	}
	if len(m.Builds) == 0 {
		errs = append(errs, errors.New("no builds"))
	}
	for _, b := range m.Builds {
		if strings.TrimSpace(b.Full.URL) == "" {
			errs = append(errs, fmt.Errorf("%s/%s: missing full artifact url", b.OS, b.Arch))
		}
		if b.Delta != nil && strings.TrimSpace(b.Delta.FromVersion) == "" {
			errs = append(errs, fmt.Errorf("%s/%s: delta without from_version", b.OS, b.Arch))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Manifest{}, fmt.Errorf("invalid manifest: %w", err)
	}
	return m, nil
}

// ParseChecksum decodes a hex SHA-256 digest, ignoring surrounding space.
func ParseChecksum(s string) ([]byte, error) {
	sum, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("checksum %q: %w", s, err)
	}
	if len(sum) != 32 {
		return nil, fmt.Errorf("checksum %q: %d bytes, want 32", s, len(sum))
	}
	return sum, nil
}

// FetchManifest downloads and verifies the manifest for channel.
func FetchManifest(ctx context.Context, client *http.Client, baseURL, channel string) (Manifest, error) {
	src, err := newSource(client, baseURL, channel, "")
	if err != nil {
		return Manifest{}, err
	}
	return src.manifest(ctx)
}

// source downloads from one release channel.
type source struct {
	client    *http.Client
	base      *url.URL
	channel   string
	userAgent string
}

func newSource(client *http.Client, baseURL, channel, version string) (*source, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}
	if channel, err = ParseChannel(channel); err != nil {
		return nil, err
	}
	if version = strings.TrimSpace(version); version == "" {
		version = "dev"
	}
	return &source{
		client:    client,
		base:      base,
		channel:   channel,
		userAgent: fmt.Sprintf("wraithctl/%s (%s/%s)", version, runtime.GOOS, runtime.GOARCH),
	}, nil
}

func (s *source) manifestURL() string {
	u := *s.base
	u.Path = path.Join(u.Path, s.channel, "manifest.json")
	return u.String()
}

func (s *source) manifest(ctx context.Context) (Manifest, error) {
	target := s.manifestURL()
	raw, err := s.download(ctx, target, maxManifestSize)
	if err != nil {
		return Manifest{}, err
	}
	sig, err := s.download(ctx, target+".sig", maxManifestSize)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest signature: %w", err)
	}
	if err := verifySignature(raw, sig); err != nil {
		return Manifest{}, err
	}
	m, err := ParseManifest(raw)
	if err != nil {
		return Manifest{}, err
	}
	if m.Channel != "" && !strings.EqualFold(m.Channel, s.channel) {
		return Manifest{}, fmt.Errorf("manifest is for channel %q, requested %q", m.Channel, s.channel)
	}
	return m, nil
}

// download fetches target, failing once the body exceeds limit bytes.
func (s *source) download(ctx context.Context, target string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set(channelHeader, s.channel)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download %s: %s: %s", target, resp.Status, strings.TrimSpace(string(snippet)))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", target, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("download %s: larger than %d bytes", target, limit)
	}
	return data, nil
}

// verifySignature checks a base64 ed25519 signature over payload against
// the release key.
func verifySignature(payload, encodedSig []byte) error {
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encodedSig)))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return errors.New("manifest signature is malformed")
	}
	key, err := releasePublicKey()
	if err != nil {
		return err
	}
	if !ed25519.Verify(key, payload, sig) {
		return errors.New("manifest signature does not match release key")
	}
	return nil
}

func releasePublicKey() (ed25519.PublicKey, error) {
	encoded := releaseKey
	if override, ok := env.String("UPDATER_PUBLIC_KEY"); ok {
		encoded = override
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("release public key must be %d base64 encoded bytes", ed25519.PublicKeySize)
	}
	return key, nil
}
