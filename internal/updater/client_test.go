package updater

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/kr/binarydist"

	"github.com/RowanDark/wraith/internal/logging"
)

type releaseServer struct {
	server    *httptest.Server
	priv      ed25519.PrivateKey
	channel   string
	manifest  atomic.Value
	signature atomic.Value
	full      []byte
	delta     []byte
	fullHits  atomic.Int32
	deltaHits atomic.Int32
	channels  atomic.Value
}

// newReleaseServer serves a signed manifest for channel. The build URLs are
// rewritten to point at the server before signing.
func newReleaseServer(t *testing.T, channel string, m Manifest, full, delta []byte) *releaseServer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	t.Setenv("WRAITH_UPDATER_PUBLIC_KEY", base64.StdEncoding.EncodeToString(pub))

	rs := &releaseServer{priv: priv, channel: channel, full: full, delta: delta}
	mux := http.NewServeMux()
	mux.HandleFunc("/"+channel+"/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		rs.channels.Store(r.Header.Get(channelHeader))
		w.Write(rs.manifest.Load().([]byte))
	})
	mux.HandleFunc("/"+channel+"/manifest.json.sig", func(w http.ResponseWriter, r *http.Request) {
		w.Write(rs.signature.Load().([]byte))
	})
	mux.HandleFunc("/artifacts/full", func(w http.ResponseWriter, r *http.Request) {
		rs.fullHits.Add(1)
		w.Write(rs.full)
	})
	mux.HandleFunc("/artifacts/delta", func(w http.ResponseWriter, r *http.Request) {
		rs.deltaHits.Add(1)
		w.Write(rs.delta)
	})
	rs.server = httptest.NewServer(mux)
	t.Cleanup(rs.server.Close)

	for i := range m.Builds {
		m.Builds[i].Full.URL = rs.server.URL + "/artifacts/full"
		if m.Builds[i].Delta != nil {
			m.Builds[i].Delta.URL = rs.server.URL + "/artifacts/delta"
		}
	}
	rs.publish(t, m)
	return rs
}

func (rs *releaseServer) publish(t *testing.T, m Manifest) {
	t.Helper()
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	rs.manifest.Store(data)
	rs.signature.Store([]byte(base64.StdEncoding.EncodeToString(ed25519.Sign(rs.priv, data))))
}

type release struct {
	oldBinary []byte
	newBinary []byte
	patch     []byte
	manifest  Manifest
}

func newRelease(t *testing.T, from, to string) release {
	t.Helper()
	oldBinary := []byte(strings.Repeat("wraithctl "+from+"\n", 64))
	newBinary := []byte(strings.Repeat("wraithctl "+to+"\n", 64))
	var patch bytes.Buffer
	if err := binarydist.Diff(bytes.NewReader(oldBinary), bytes.NewReader(newBinary), &patch); err != nil {
		t.Fatalf("Diff: %v", err)
	}
	return release{
		oldBinary: oldBinary,
		newBinary: newBinary,
		patch:     patch.Bytes(),
		manifest: Manifest{
			Version: to,
			Channel: ChannelStable,
			Builds: []Build{{
				OS:   runtime.GOOS,
				Arch: runtime.GOARCH,
				Full: Artifact{SHA256: fmt.Sprintf("%x", sha256Sum(newBinary))},
				Delta: &Delta{
					FromVersion: from,
					SHA256:      fmt.Sprintf("%x", sha256Sum(patch.Bytes())),
				},
			}},
		},
	}
}

func installBinary(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wraithctl")
	if err := os.WriteFile(path, data, 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return data
}

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	return store
}

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("replacing a running executable needs elevated permissions on Windows")
	}
}

func TestClientUpdateAndRollback(t *testing.T) {
	skipOnWindows(t)
	rel := newRelease(t, "1.0.0", "1.1.0")
	srv := newReleaseServer(t, ChannelStable, rel.manifest, rel.newBinary, rel.patch)
	execPath := installBinary(t, rel.oldBinary)
	store := newStore(t)

	var logs bytes.Buffer
	var out bytes.Buffer
	client := &Client{
		Store:          store,
		BaseURL:        srv.server.URL,
		ExecPath:       execPath,
		CurrentVersion: "1.0.0",
		Out:            &out,
		Logger:         logging.MustNew("updater", logging.WithoutStdout(), logging.WithWriter(&logs)),
	}

	if err := client.Update(context.Background(), UpdateOptions{Channel: "Stable", PersistChannel: true}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !bytes.Equal(readFile(t, execPath), rel.newBinary) {
		t.Fatal("update did not install the new binary")
	}
	if srv.deltaHits.Load() != 1 || srv.fullHits.Load() != 0 {
		t.Fatalf("expected delta only, got delta=%d full=%d", srv.deltaHits.Load(), srv.fullHits.Load())
	}
	if got := srv.channels.Load(); got != ChannelStable {
		t.Errorf("channel header = %v", got)
	}
	if !strings.Contains(out.String(), "updated wraithctl to 1.1.0") {
		t.Errorf("unexpected output %q", out.String())
	}
	if !strings.Contains(logs.String(), `"stage":"update"`) || !strings.Contains(logs.String(), `"mode":"delta"`) {
		t.Errorf("update event missing from logs: %s", logs.String())
	}

	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	backup := filepath.Join(store.Dir(), backupName)
	want := State{
		Channel: ChannelStable,
		Installs: []Install{{
			Version:  "1.1.0",
			Replaced: "1.0.0",
			Mode:     ModeDelta,
			Channel:  ChannelStable,
			Backup:   backup,
		}},
	}
	ignoreAt := cmpopts.IgnoreFields(Install{}, "At")
	if diff := cmp.Diff(want, st, ignoreAt); diff != "" {
		t.Fatalf("stored state mismatch (-want +got):\n%s", diff)
	}
	if st.Installs[0].At.IsZero() {
		t.Error("install time not recorded")
	}
	if !bytes.Equal(readFile(t, backup), rel.oldBinary) {
		t.Fatal("backup does not hold the previous binary")
	}

	client.CurrentVersion = "1.1.0"
	if err := client.Rollback(context.Background(), RollbackOptions{ForceStable: true}); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if !bytes.Equal(readFile(t, execPath), rel.oldBinary) {
		t.Fatal("rollback did not restore the previous binary")
	}
	if !bytes.Equal(readFile(t, backup), rel.newBinary) {
		t.Fatal("rollback should keep the replaced build as the new backup")
	}
	if !strings.Contains(out.String(), "rolled back wraithctl to 1.0.0") {
		t.Errorf("unexpected output %q", out.String())
	}
	st, err = store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want.Installs = append(want.Installs, Install{
		Version:  "1.0.0",
		Replaced: "1.1.0",
		Mode:     ModeRollback,
		Channel:  ChannelStable,
		Backup:   backup,
	})
	if diff := cmp.Diff(want, st, ignoreAt); diff != "" {
		t.Fatalf("state after rollback mismatch (-want +got):\n%s", diff)
	}
}

func TestClientUpdateFallsBackToFull(t *testing.T) {
	skipOnWindows(t)
	rel := newRelease(t, "1.0.0", "1.1.0")
	rel.manifest.Builds[0].Delta.SHA256 = fmt.Sprintf("%x", sha256Sum([]byte("other patch")))
	srv := newReleaseServer(t, ChannelStable, rel.manifest, rel.newBinary, rel.patch)
	execPath := installBinary(t, rel.oldBinary)

	var out bytes.Buffer
	client := &Client{Store: newStore(t), BaseURL: srv.server.URL, ExecPath: execPath, CurrentVersion: "1.0.0", Out: &out}
	if err := client.Update(context.Background(), UpdateOptions{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !bytes.Equal(readFile(t, execPath), rel.newBinary) {
		t.Fatal("full artifact not installed")
	}
	if srv.deltaHits.Load() != 1 || srv.fullHits.Load() != 1 {
		t.Fatalf("expected delta then full, got delta=%d full=%d", srv.deltaHits.Load(), srv.fullHits.Load())
	}
	if !strings.Contains(out.String(), "falling back to full download") {
		t.Errorf("fallback not reported: %q", out.String())
	}
}

func TestClientUpdateSkipsDeltaForOtherVersion(t *testing.T) {
	skipOnWindows(t)
	rel := newRelease(t, "0.9.0", "1.1.0")
	srv := newReleaseServer(t, ChannelStable, rel.manifest, rel.newBinary, rel.patch)
	execPath := installBinary(t, rel.oldBinary)

	client := &Client{Store: newStore(t), BaseURL: srv.server.URL, ExecPath: execPath, CurrentVersion: "1.0.0"}
	if err := client.Update(context.Background(), UpdateOptions{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if srv.deltaHits.Load() != 0 || srv.fullHits.Load() != 1 {
		t.Fatalf("expected full only, got delta=%d full=%d", srv.deltaHits.Load(), srv.fullHits.Load())
	}
}

func TestClientUpdateChecksumMismatch(t *testing.T) {
	skipOnWindows(t)
	rel := newRelease(t, "1.0.0", "1.1.0")
	rel.manifest.Builds[0].Delta = nil
	srv := newReleaseServer(t, ChannelBeta, withChannel(rel.manifest, ChannelBeta), []byte("tampered"), nil)
	execPath := installBinary(t, rel.oldBinary)
	store := newStore(t)
	err := store.Update(func(st *State) error {
		st.Channel = ChannelBeta
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	client := &Client{Store: store, BaseURL: srv.server.URL, ExecPath: execPath, CurrentVersion: "1.0.0"}
	if err := client.Update(context.Background(), UpdateOptions{}); err == nil {
		t.Fatal("expected checksum failure")
	}
	if !bytes.Equal(readFile(t, execPath), rel.oldBinary) {
		t.Fatal("binary modified despite checksum failure")
	}
	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Channel != ChannelStable || len(st.Installs) != 0 {
		t.Fatalf("failed beta update should reset channel and record nothing, got %+v", st)
	}
}

func TestClientUpdateAlreadyCurrent(t *testing.T) {
	rel := newRelease(t, "1.0.0", "1.1.0")
	srv := newReleaseServer(t, ChannelBeta, withChannel(rel.manifest, ChannelBeta), rel.newBinary, rel.patch)
	store := newStore(t)

	var out bytes.Buffer
	client := &Client{Store: store, BaseURL: srv.server.URL, ExecPath: "/nonexistent", CurrentVersion: "1.1.0", Out: &out}
	if err := client.Update(context.Background(), UpdateOptions{Channel: ChannelBeta, PersistChannel: true}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if srv.fullHits.Load()+srv.deltaHits.Load() != 0 {
		t.Fatal("no artifact should be downloaded")
	}
	if !strings.Contains(out.String(), "already the newest build on the beta channel") {
		t.Errorf("unexpected output %q", out.String())
	}
	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Channel != ChannelBeta {
		t.Fatalf("channel not persisted: %q", st.Channel)
	}
}

func TestClientCheck(t *testing.T) {
	rel := newRelease(t, "1.0.0", "1.1.0")
	rel.manifest.NotesURL = "https://wraith.dev/notes/1.1.0"
	srv := newReleaseServer(t, ChannelStable, rel.manifest, rel.newBinary, rel.patch)

	client := &Client{Store: newStore(t), BaseURL: srv.server.URL, CurrentVersion: "1.0.0"}
	got, err := client.Check(context.Background(), "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	want := Status{
		Channel:   ChannelStable,
		Current:   "1.0.0",
		Latest:    "1.1.0",
		Available: true,
		Delta:     true,
		NotesURL:  "https://wraith.dev/notes/1.1.0",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s", diff)
	}

	client.GOOS = "plan9"
	got, err = client.Check(context.Background(), ChannelStable)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got.Delta {
		t.Error("no delta exists for an unpublished platform")
	}
}

func TestRollbackWithoutBackup(t *testing.T) {
	client := &Client{Store: newStore(t)}
	if err := client.Rollback(context.Background(), RollbackOptions{}); err == nil {
		t.Fatal("expected error without a recorded backup")
	}
}

func withChannel(m Manifest, channel string) Manifest {
	m.Channel = channel
	return m
}
