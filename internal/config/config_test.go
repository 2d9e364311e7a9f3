package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Analysis.MinFragmentLength != 10 || cfg.Analysis.DecryptMethod != "auto" {
		t.Fatalf("unexpected analysis defaults %+v", cfg.Analysis)
	}
}

func TestLoadPrecedence(t *testing.T) {
	tempDir := t.TempDir()
	homeDir := filepath.Join(tempDir, "home")
	t.Setenv("HOME", homeDir)
	writeFile(t, filepath.Join(homeDir, ".wraith", "config.yml"), `output_dir: /custom
analysis:
  channels: [red]
  workers: 2
server:
  addr: 0.0.0.0:1111
`)

	workDir := filepath.Join(tempDir, "work")
	writeFile(t, filepath.Join(workDir, "wraith.yml"), `analysis:
  channels: [green, blue]
  layers: [base64, rot13]
server:
  addr: 127.0.0.1:6500
`)
	chdir(t, workDir)

	t.Setenv("WRAITH_SERVER_ADDR", "127.0.0.1:7000")
	t.Setenv("GHOST_KEY", "ghost")
	t.Setenv("WRAITH_VERBOSE", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OutputDir != "/custom" {
		t.Errorf("expected home output dir, got %q", cfg.OutputDir)
	}
	if diff := cmp.Diff([]string{"green", "blue"}, cfg.Analysis.Channels); diff != "" {
		t.Errorf("local file should override channels:\n%s", diff)
	}
	if cfg.Analysis.Workers != 2 {
		t.Errorf("workers from home file lost, got %d", cfg.Analysis.Workers)
	}
	if cfg.Server.Addr != "127.0.0.1:7000" {
		t.Errorf("env should win for server addr, got %q", cfg.Server.Addr)
	}
	if cfg.Analysis.Key != "ghost" || !cfg.Verbose {
		t.Errorf("env overrides not applied: key=%q verbose=%v", cfg.Analysis.Key, cfg.Verbose)
	}
	if !cfg.Analysis.IncludeRaster {
		t.Error("absent keys should keep defaults")
	}
}

func TestApplyRejectsUnknownKeys(t *testing.T) {
	cfg := Default()
	if err := Apply(&cfg, []byte("analysis:\n  chanels: [red]\n")); err == nil {
		t.Fatal("expected unknown field error")
	}
	if err := Apply(&cfg, nil); err != nil {
		t.Fatalf("empty document should be accepted: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"channel", func(c *Config) { c.Analysis.Channels = []string{"alpha"} }, "unknown channel"},
		{"direction", func(c *Config) { c.Analysis.SpiralDirections = []string{"sideways"} }, "unknown spiral direction"},
		{"layer", func(c *Config) { c.Analysis.Layers = []string{"hex"} }, "hex"},
		{"method", func(c *Config) { c.Analysis.DecryptMethod = "rsa" }, "unknown decryption method"},
		{"workers", func(c *Config) { c.Analysis.Workers = 0 }, "workers"},
		{"threshold", func(c *Config) { c.Analysis.CorruptionThreshold = 1.5 }, "corruption_threshold"},
		{"printable", func(c *Config) { c.Analysis.PrintableThreshold = 0 }, "printable_threshold"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestLoadFileAndBadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yml")
	writeFile(t, path, "analysis:\n  decrypt_method: xor\n  separator: \"-\"\n  markers: [\"ctf{\"]\n  printable_threshold: 0.6\n")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Analysis.DecryptMethod != "xor" || cfg.Analysis.Separator != "-" {
		t.Fatalf("file values not applied: %+v", cfg.Analysis)
	}
	if diff := cmp.Diff([]string{"ctf{"}, cfg.Analysis.Markers); diff != "" || cfg.Analysis.PrintableThreshold != 0.6 {
		t.Fatalf("scoring values not applied: threshold %v, markers diff %s", cfg.Analysis.PrintableThreshold, diff)
	}

	t.Setenv("WRAITH_WORKERS", "many")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for non-numeric WRAITH_WORKERS")
	}
}
