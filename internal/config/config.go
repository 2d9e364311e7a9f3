// Package config resolves wraith settings from defaults, YAML files and
// the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/RowanDark/wraith/internal/cipher"
	"github.com/RowanDark/wraith/internal/env"
	"github.com/RowanDark/wraith/internal/pixels"
	"github.com/RowanDark/wraith/internal/score"
	"github.com/RowanDark/wraith/internal/traverse"
	"gopkg.in/yaml.v3"
)

// Config captures the resolved wraith configuration.
type Config struct {
	OutputDir   string   `yaml:"output_dir"`
	HistoryPath string   `yaml:"history_path"`
	RecipeDir   string   `yaml:"recipe_dir"`
	LogFile     string   `yaml:"log_file"`
	Verbose     bool     `yaml:"verbose"`
	Analysis    Analysis `yaml:"analysis"`
	Server      Server   `yaml:"server"`
	Update      Update   `yaml:"update"`
}

// Analysis controls the analyzer pipeline.
type Analysis struct {
	Channels            []string `yaml:"channels"`
	SpiralDirections    []string `yaml:"spiral_directions"`
	IncludeRaster       bool     `yaml:"include_raster"`
	IncludeMetadata     bool     `yaml:"include_metadata"`
	Layers              []string `yaml:"layers"`
	AutoDecode          bool     `yaml:"auto_decode"`
	DecryptMethod       string   `yaml:"decrypt_method"`
	Key                 string   `yaml:"key"`
	FragmentOrder       []string `yaml:"fragment_order"`
	Separator           string   `yaml:"separator"`
	MinFragmentLength   int      `yaml:"min_fragment_length"`
	NullScanLimit       int      `yaml:"null_scan_limit"`
	CorruptionThreshold float64  `yaml:"corruption_threshold"`
	Workers             int      `yaml:"workers"`
	// Markers replace the default scoring markers when set.
	Markers            []string `yaml:"markers"`
	PrintableThreshold float64  `yaml:"printable_threshold"`
}

// Server configures wraithd.
type Server struct {
	Addr     string `yaml:"addr"`
	MaxConns int    `yaml:"max_conns"`
}

// Update configures self-update.
type Update struct {
	BaseURL string `yaml:"base_url"`
	Channel string `yaml:"channel"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		OutputDir:   "output",
		HistoryPath: filepath.Join(stateDir(), "history.db"),
		RecipeDir:   filepath.Join(stateDir(), "recipes"),
		LogFile:     "",
		Analysis: Analysis{
			Channels:            []string{"red", "green", "blue"},
			SpiralDirections:    []string{"clockwise", "counterclockwise"},
			IncludeRaster:       true,
			IncludeMetadata:     true,
			AutoDecode:          true,
			DecryptMethod:       "auto",
			MinFragmentLength:   10,
			NullScanLimit:       0,
			CorruptionThreshold: 0.3,
			Workers:             4,
			PrintableThreshold:  score.DefaultPrintableThreshold,
		},
		Server: Server{
			Addr:     "127.0.0.1:50061",
			MaxConns: 64,
		},
		Update: Update{
			BaseURL: "https://updates.wraith.dev",
			Channel: "stable",
		},
	}
}

// stateDir is ~/.wraith, or a relative .wraith without a home directory.
func stateDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".wraith"
	}
	return filepath.Join(home, ".wraith")
}

// Load resolves the configuration. The lookup order is:
//  1. built-in defaults
//  2. ~/.wraith/config.yml
//  3. ./wraith.yml
//
// Environment variables prefixed with WRAITH_ (or the legacy GHOST_) have
// the highest precedence. The result is validated.
func Load() (Config, error) {
	cfg := Default()

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if err := applyFile(&cfg, filepath.Join(home, ".wraith", "config.yml")); err != nil {
			return Config{}, err
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("determine working directory: %w", err)
	}
	if err := applyFile(&cfg, filepath.Join(wd, "wraith.yml")); err != nil {
		return Config{}, err
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile applies a single YAML file over the defaults, then the
// environment. Used for an explicit -config flag.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := Apply(&cfg, data); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := Apply(cfg, data); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

type fileConfig struct {
	OutputDir   *string       `yaml:"output_dir"`
	HistoryPath *string       `yaml:"history_path"`
	RecipeDir   *string       `yaml:"recipe_dir"`
	LogFile     *string       `yaml:"log_file"`
	Verbose     *bool         `yaml:"verbose"`
	Analysis    *fileAnalysis `yaml:"analysis"`
	Server      *fileServer   `yaml:"server"`
	Update      *fileUpdate   `yaml:"update"`
}

type fileAnalysis struct {
	Channels            []string `yaml:"channels"`
	SpiralDirections    []string `yaml:"spiral_directions"`
	IncludeRaster       *bool    `yaml:"include_raster"`
	IncludeMetadata     *bool    `yaml:"include_metadata"`
	Layers              []string `yaml:"layers"`
	AutoDecode          *bool    `yaml:"auto_decode"`
	DecryptMethod       *string  `yaml:"decrypt_method"`
	Key                 *string  `yaml:"key"`
	FragmentOrder       []string `yaml:"fragment_order"`
	Separator           *string  `yaml:"separator"`
	MinFragmentLength   *int     `yaml:"min_fragment_length"`
	NullScanLimit       *int     `yaml:"null_scan_limit"`
	CorruptionThreshold *float64 `yaml:"corruption_threshold"`
	Workers             *int     `yaml:"workers"`
	Markers             []string `yaml:"markers"`
	PrintableThreshold  *float64 `yaml:"printable_threshold"`
}

type fileServer struct {
	Addr     *string `yaml:"addr"`
	MaxConns *int    `yaml:"max_conns"`
}

type fileUpdate struct {
	BaseURL *string `yaml:"base_url"`
	Channel *string `yaml:"channel"`
}

// Apply overlays the keys present in a YAML document onto cfg. Unknown
// keys are rejected.
func Apply(cfg *Config, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var fc fileConfig
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	setString(&cfg.OutputDir, fc.OutputDir)
	setString(&cfg.HistoryPath, fc.HistoryPath)
	setString(&cfg.RecipeDir, fc.RecipeDir)
	setString(&cfg.LogFile, fc.LogFile)
	if fc.Verbose != nil {
		cfg.Verbose = *fc.Verbose
	}
	if a := fc.Analysis; a != nil {
		dst := &cfg.Analysis
		if a.Channels != nil {
			dst.Channels = a.Channels
		}
		if a.SpiralDirections != nil {
			dst.SpiralDirections = a.SpiralDirections
		}
		if a.IncludeRaster != nil {
			dst.IncludeRaster = *a.IncludeRaster
		}
		if a.IncludeMetadata != nil {
			dst.IncludeMetadata = *a.IncludeMetadata
		}
		if a.Layers != nil {
			dst.Layers = a.Layers
		}
		if a.AutoDecode != nil {
			dst.AutoDecode = *a.AutoDecode
		}
		setString(&dst.DecryptMethod, a.DecryptMethod)
		if a.Key != nil {
			dst.Key = *a.Key
		}
		if a.FragmentOrder != nil {
			dst.FragmentOrder = a.FragmentOrder
		}
		if a.Separator != nil {
			dst.Separator = *a.Separator
		}
		setInt(&dst.MinFragmentLength, a.MinFragmentLength)
		setInt(&dst.NullScanLimit, a.NullScanLimit)
		if a.CorruptionThreshold != nil {
			dst.CorruptionThreshold = *a.CorruptionThreshold
		}
		setInt(&dst.Workers, a.Workers)
		if a.Markers != nil {
			dst.Markers = a.Markers
		}
		if a.PrintableThreshold != nil {
			dst.PrintableThreshold = *a.PrintableThreshold
		}
	}
	if s := fc.Server; s != nil {
		setString(&cfg.Server.Addr, s.Addr)
		setInt(&cfg.Server.MaxConns, s.MaxConns)
	}
	if u := fc.Update; u != nil {
		setString(&cfg.Update.BaseURL, u.BaseURL)
		setString(&cfg.Update.Channel, u.Channel)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v, ok := env.String("OUTPUT_DIR"); ok {
		cfg.OutputDir = v
	}
	if v, ok := env.String("HISTORY_PATH"); ok {
		cfg.HistoryPath = v
	}
	if v, ok := env.String("RECIPE_DIR"); ok {
		cfg.RecipeDir = v
	}
	if v, ok := env.String("LOG_FILE"); ok {
		cfg.LogFile = v
	}
	if v, ok := env.String("SERVER_ADDR"); ok {
		cfg.Server.Addr = v
	}
	if v, ok := env.String("UPDATE_URL"); ok {
		cfg.Update.BaseURL = v
	}
	if v, ok := env.String("KEY"); ok {
		cfg.Analysis.Key = v
	}
	if v, ok := env.String("METHOD"); ok {
		cfg.Analysis.DecryptMethod = v
	}
	if v, ok := env.List("CHANNELS"); ok {
		cfg.Analysis.Channels = v
	}
	if v, ok := env.List("LAYERS"); ok {
		cfg.Analysis.Layers = v
	}
	if v, ok := env.List("FRAGMENT_ORDER"); ok {
		cfg.Analysis.FragmentOrder = v
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"VERBOSE", &cfg.Verbose},
		{"AUTO_DECODE", &cfg.Analysis.AutoDecode},
		{"INCLUDE_RASTER", &cfg.Analysis.IncludeRaster},
		{"INCLUDE_METADATA", &cfg.Analysis.IncludeMetadata},
	}
	for _, b := range bools {
		v, ok, err := env.Bool(b.name)
		if err != nil {
			return fmt.Errorf("%s%s: %w", env.Prefix, b.name, err)
		}
		if ok {
			*b.dst = v
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"WORKERS", &cfg.Analysis.Workers},
		{"MIN_FRAGMENT_LENGTH", &cfg.Analysis.MinFragmentLength},
		{"MAX_CONNS", &cfg.Server.MaxConns},
	}
	for _, n := range ints {
		v, ok, err := env.Int(n.name)
		if err != nil {
			return fmt.Errorf("%s%s: %w", env.Prefix, n.name, err)
		}
		if ok {
			*n.dst = v
		}
	}
	return nil
}

// Validate rejects unknown channels, directions, layers and methods and
// out-of-range numbers.
func (c Config) Validate() error {
	a := c.Analysis
	var errs []error
	if _, err := pixels.ParseChannels(a.Channels); err != nil {
		errs = append(errs, err)
	}
	for _, d := range a.SpiralDirections {
		if _, err := traverse.ParseDirection(d); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := cipher.ParseLayers(a.Layers); err != nil {
		errs = append(errs, err)
	}
	if _, err := cipher.ParseMethod(a.DecryptMethod); err != nil {
		errs = append(errs, err)
	}
	if a.MinFragmentLength < 0 {
		errs = append(errs, fmt.Errorf("min_fragment_length must be >= 0, got %d", a.MinFragmentLength))
	}
	if a.NullScanLimit < 0 {
		errs = append(errs, fmt.Errorf("null_scan_limit must be >= 0, got %d", a.NullScanLimit))
	}
	if a.CorruptionThreshold < 0 || a.CorruptionThreshold > 1 {
		errs = append(errs, fmt.Errorf("corruption_threshold must be within [0,1], got %v", a.CorruptionThreshold))
	}
	if a.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", a.Workers))
	}
	if a.PrintableThreshold <= 0 || a.PrintableThreshold > 1 {
		errs = append(errs, fmt.Errorf("printable_threshold must be within (0,1], got %v", a.PrintableThreshold))
	}
	if c.Server.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("server.max_conns must be >= 0, got %d", c.Server.MaxConns))
	}
	return errors.Join(errs...)
}
