package updater

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RowanDark/wraith/internal/env"
)

const (
	ChannelStable = "stable"
	ChannelBeta   = "beta"
)

const (
	stateFile = "updater.yml"
	// maxInstalls bounds the install log; older entries are dropped first.
	maxInstalls = 8
)

// Install modes recorded in the state file.
const (
	ModeDelta    = "delta"
	ModeFull     = "full"
	ModeRollback = "rollback"
)

// Install is one replacement of the wraithctl binary.
type Install struct {
	Version  string    `yaml:"version"`
	Replaced string    `yaml:"replaced"`
	Mode     string    `yaml:"mode"`
	Channel  string    `yaml:"channel,omitempty"`
	Backup   string    `yaml:"backup,omitempty"`
	At       time.Time `yaml:"at"`
}

// State is what self-update remembers between runs: the preferred
// channel and a short log of installs, newest last.
type State struct {
	Channel  string    `yaml:"channel"`
	Installs []Install `yaml:"installs,omitempty"`
}

// Latest returns the newest install.
func (s State) Latest() (Install, bool) {
	if len(s.Installs) == 0 {
		return Install{}, false
	}
	return s.Installs[len(s.Installs)-1], true
}

// running reports whether version is the build in place, either because
// the binary says so or because the last install put it there.
func (s State) running(version, current string) bool {
	version = strings.TrimSpace(version)
	if version == "" {
		return false
	}
	if version == strings.TrimSpace(current) {
		return true
	}
	last, ok := s.Latest()
	return ok && version == last.Version
}

func (s *State) record(in Install) {
	s.Installs = append(s.Installs, in)
	if n := len(s.Installs) - maxInstalls; n > 0 {
		s.Installs = append([]Install(nil), s.Installs[n:]...)
	}
}

// ParseChannel maps a user supplied channel name to ChannelStable or
// ChannelBeta. Blank selects stable.
func ParseChannel(name string) (string, error) {
	switch c := strings.ToLower(strings.TrimSpace(name)); c {
	case "":
		return ChannelStable, nil
	case ChannelStable, ChannelBeta:
		return c, nil
	}
	return "", fmt.Errorf("unknown channel %q (want %s or %s)", name, ChannelStable, ChannelBeta)
}

// StateDir is where updater state and the replaced binary live:
// WRAITH_STATE_DIR when set, else <user config dir>/wraith.
func StateDir() (string, error) {
	if dir, ok := env.String("STATE_DIR"); ok {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve state dir: %w", err)
	}
	return filepath.Join(base, "wraith"), nil
}

// Store reads and rewrites the updater state file.
type Store struct {
	path string
}

// OpenStore creates dir if needed and returns a Store for the state file
// inside it. A blank dir means StateDir.
func OpenStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		var err error
		if dir, err = StateDir(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{path: filepath.Join(dir, stateFile)}, nil
}

func (s *Store) Dir() string { return filepath.Dir(s.path) }
func (s *Store) Path() string { return s.path }

// Exists reports whether any state has been written yet.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the state. A missing file is the zero state on the stable
// channel; an unrecognised channel also falls back to stable.
func (s *Store) Load() (State, error) {
	st := State{Channel: ChannelStable}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read updater state: %w", err)
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if st.Channel, err = ParseChannel(st.Channel); err != nil {
		st.Channel = ChannelStable
	}
	return st, nil
}

// Update loads the state, applies fn and writes the result back. Nothing
// is written when fn fails.
func (s *Store) Update(fn func(*State) error) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}
	if st.Channel, err = ParseChannel(st.Channel); err != nil {
		return err
	}
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode updater state: %w", err)
	}
	return replaceFile(s.path, data)
}

// replaceFile writes data beside path and renames it into place so readers
// never see a partial file.
func replaceFile(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
