// Package updater replaces the running wraithctl binary with a signed
// release, preferring a bsdiff delta and falling back to the full artifact.
package updater

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	update "github.com/inconshreveable/go-update"

	"github.com/RowanDark/wraith/internal/logging"
)

// maxArtifactSize bounds binary and patch downloads.
const maxArtifactSize = 256 << 20

// backupName is the file the replaced binary is moved to inside the store
// directory.
const backupName = "wraithctl.previous"

// Client checks for and applies wraithctl releases.
type Client struct {
	Store          *Store
	HTTPClient     *http.Client
	BaseURL        string
	ExecPath       string
	CurrentVersion string
	Out            io.Writer
	Logger         *logging.Logger

	// GOOS and GOARCH select the manifest build. Empty means the running
	// platform.
	GOOS   string
	GOARCH string
}

// UpdateOptions controls Update.
type UpdateOptions struct {
	Channel string
	// PersistChannel stores Channel as the preferred channel on success.
	PersistChannel bool
}

// RollbackOptions controls Rollback.
type RollbackOptions struct {
	// ForceStable resets the preferred channel to stable.
	ForceStable bool
}

// Status is the result of Check.
type Status struct {
	Channel   string
	Current   string
	Latest    string
	Available bool
	// Delta reports whether a patch from Current is published.
	Delta    bool
	NotesURL string
}

// Check fetches the manifest for channel without touching the binary.
func (c *Client) Check(ctx context.Context, channel string) (Status, error) {
	state, src, err := c.open(channel)
	if err != nil {
		return Status{}, err
	}
	manifest, err := src.manifest(ctx)
	if err != nil {
		return Status{}, err
	}
	current := c.currentVersion()
	st := Status{
		Channel:   src.channel,
		Current:   current,
		Latest:    manifest.Version,
		Available: !state.running(manifest.Version, current),
		NotesURL:  manifest.NotesURL,
	}
	if build, ok := manifest.BuildFor(c.platform()); ok && build.Delta != nil {
		st.Delta = state.running(build.Delta.FromVersion, current)
	}
	return st, nil
}

// open loads the state and resolves the channel to fetch from: channel
// when given, else the stored preference.
func (c *Client) open(channel string) (State, *source, error) {
	if c.Store == nil {
		return State{}, nil, errors.New("updater: no state store")
	}
	state, err := c.Store.Load()
	if err != nil {
		return State{}, nil, err
	}
	if strings.TrimSpace(channel) == "" {
		channel = state.Channel
	}
	src, err := newSource(c.httpClient(), c.BaseURL, channel, c.currentVersion())
	if err != nil {
		return State{}, nil, err
	}
	return state, src, nil
}

// Update installs the newest build from opts.Channel, or the stored
// channel when opts.Channel is blank.
func (c *Client) Update(ctx context.Context, opts UpdateOptions) error {
	state, src, err := c.open(opts.Channel)
	if err != nil {
		return err
	}
	channel := src.channel

	manifest, err := src.manifest(ctx)
	if err != nil {
		c.emit(logging.OutcomeFailed, err.Error(), map[string]any{"channel": channel})
		return err
	}

	current := c.currentVersion()
	if state.running(manifest.Version, current) {
		fmt.Fprintf(c.out(), "wraithctl %s is already the newest build on the %s channel\n", current, channel)
		c.emit(logging.OutcomeSkipped, "up to date", map[string]any{"channel": channel, "version": current})
		if opts.PersistChannel && state.Channel != channel {
			return c.Store.Update(func(st *State) error {
				st.Channel = channel
				return nil
			})
		}
		return nil
	}

	goos, goarch := c.platform()
	build, ok := manifest.BuildFor(goos, goarch)
	if !ok {
		return fmt.Errorf("no build available for %s/%s in manifest", goos, goarch)
	}
	checksum, err := ParseChecksum(build.Full.SHA256)
	if err != nil {
		return fmt.Errorf("full artifact: %w", err)
	}

	execPath, err := c.resolveExecPath()
	if err != nil {
		return err
	}
	info, err := os.Stat(execPath)
	if err != nil {
		return fmt.Errorf("stat executable: %w", err)
	}
	backupPath := filepath.Join(c.Store.Dir(), backupName)

	base := update.Options{
		TargetPath:  execPath,
		TargetMode:  info.Mode(),
		Checksum:    checksum,
		OldSavePath: backupPath,
		Hash:        crypto.SHA256,
	}
	if err := base.CheckPermissions(); err != nil {
		return fmt.Errorf("insufficient permissions to update %s: %w", execPath, err)
	}

	mode := ModeFull
	var applyErr error
	if build.Delta != nil && state.running(build.Delta.FromVersion, current) {
		mode = ModeDelta
		if applyErr = applyDelta(ctx, src, build, base); applyErr != nil {
			fmt.Fprintf(c.out(), "delta update failed (%v); falling back to full download\n", applyErr)
			c.emit(logging.OutcomeWarning, applyErr.Error(), map[string]any{"mode": ModeDelta, "version": manifest.Version})
			mode = ModeFull
			applyErr = applyFull(ctx, src, build, base)
		}
	} else {
		applyErr = applyFull(ctx, src, build, base)
	}
	if applyErr != nil {
		// A broken beta build should not keep unattended jobs on beta.
		if state.Channel == ChannelBeta {
			_ = c.Store.Update(func(st *State) error {
				st.Channel = ChannelStable
				return nil
			})
		}
		c.emit(logging.OutcomeFailed, applyErr.Error(), map[string]any{"mode": mode, "version": manifest.Version})
		return applyErr
	}

	err = c.Store.Update(func(st *State) error {
		st.record(Install{
			Version:  manifest.Version,
			Replaced: current,
			Mode:     mode,
			Channel:  channel,
			Backup:   backupPath,
			At:       time.Now().UTC(),
		})
		if opts.PersistChannel {
			st.Channel = channel
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.emit(logging.OutcomeOK, "", map[string]any{
		"channel": channel,
		"from":    current,
		"to":      manifest.Version,
		"mode":    mode,
	})
	fmt.Fprintf(c.out(), "updated wraithctl to %s on the %s channel\n", manifest.Version, channel)
	return nil
}

func applyDelta(ctx context.Context, src *source, build Build, opts update.Options) error {
	expected, err := ParseChecksum(build.Delta.SHA256)
	if err != nil {
		return fmt.Errorf("delta: %w", err)
	}
	patch, err := src.download(ctx, build.Delta.URL, maxArtifactSize)
	if err != nil {
		return fmt.Errorf("download delta: %w", err)
	}
	if actual := sha256Sum(patch); !bytes.Equal(actual, expected) {
		return fmt.Errorf("delta checksum mismatch: got %x want %x", actual, expected)
	}
	opts.Patcher = update.NewBSDiffPatcher()
	return apply(patch, opts, "apply delta update")
}

func applyFull(ctx context.Context, src *source, build Build, opts update.Options) error {
	data, err := src.download(ctx, build.Full.URL, maxArtifactSize)
	if err != nil {
		return fmt.Errorf("download full artifact: %w", err)
	}
	return apply(data, opts, "apply update")
}

func apply(data []byte, opts update.Options, what string) error {
	if err := update.Apply(bytes.NewReader(data), opts); err != nil {
		if rerr := update.RollbackError(err); rerr != nil {
			return fmt.Errorf("%s: %v (rollback failed: %v)", what, err, rerr)
		}
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// Rollback reinstates the binary the newest install replaced. The binary
// it removes becomes the new backup, so a second Rollback goes forward
// again.
func (c *Client) Rollback(ctx context.Context, opts RollbackOptions) error {
	if c.Store == nil {
		return errors.New("updater: no state store")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	state, err := c.Store.Load()
	if err != nil {
		return err
	}
	last, ok := state.Latest()
	if !ok || last.Backup == "" {
		return errors.New("no previous wraithctl binary recorded")
	}
	backup, err := os.ReadFile(last.Backup)
	if err != nil {
		return fmt.Errorf("read backup binary: %w", err)
	}
	execPath, err := c.resolveExecPath()
	if err != nil {
		return err
	}
	info, err := os.Stat(execPath)
	if err != nil {
		return fmt.Errorf("stat executable: %w", err)
	}
	err = apply(backup, update.Options{
		TargetPath:  execPath,
		TargetMode:  info.Mode(),
		OldSavePath: last.Backup,
		Checksum:    sha256Sum(backup),
		Hash:        crypto.SHA256,
	}, "rollback")
	if err != nil {
		c.emit(logging.OutcomeFailed, err.Error(), map[string]any{"mode": ModeRollback})
		return err
	}

	err = c.Store.Update(func(st *State) error {
		st.record(Install{
			Version:  last.Replaced,
			Replaced: last.Version,
			Mode:     ModeRollback,
			Channel:  last.Channel,
			Backup:   last.Backup,
			At:       time.Now().UTC(),
		})
		if opts.ForceStable {
			st.Channel = ChannelStable
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.emit(logging.OutcomeOK, "", map[string]any{"mode": ModeRollback, "from": last.Version, "to": last.Replaced})
	fmt.Fprintf(c.out(), "rolled back wraithctl to %s\n", last.Replaced)
	return nil
}

func (c *Client) emit(outcome logging.Outcome, reason string, meta map[string]any) {
	if c.Logger == nil {
		return
	}
	_ = c.Logger.Emit(logging.Event{Stage: logging.StageUpdate, Outcome: outcome, Reason: reason, Metadata: meta})
}

func (c *Client) out() io.Writer {
	if c.Out == nil {
		return io.Discard
	}
	return c.Out
}

func (c *Client) platform() (string, string) {
	goos, goarch := c.GOOS, c.GOARCH
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return goos, goarch
}

func (c *Client) currentVersion() string {
	if v := strings.TrimSpace(c.CurrentVersion); v != "" {
		return v
	}
	return "dev"
}

func (c *Client) resolveExecPath() (string, error) {
	if strings.TrimSpace(c.ExecPath) != "" {
		return c.ExecPath, nil
	}
	path, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("determine executable path: %w", err)
	}
	return filepath.EvalSymlinks(path)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func sha256Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
