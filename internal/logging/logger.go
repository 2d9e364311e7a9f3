// Package logging writes structured pipeline events as JSON lines.
package logging

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/RowanDark/wraith/internal/redact"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Stage names one step of an analysis run.
type Stage string

const (
	StageLoad     Stage = "load"
	StageMetadata Stage = "metadata"
	StageExtract  Stage = "extract"
	StageSpiral   Stage = "spiral"
	StageDecode   Stage = "decode"
	StageAssemble Stage = "assemble"
	StageDecrypt  Stage = "decrypt"
	StagePersist  Stage = "persist"
	StageRPC      Stage = "rpc"
	StageUpdate   Stage = "update"
)

// Outcome summarises how a stage ended.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeWarning Outcome = "warning"
	OutcomeFailed  Outcome = "failed"
)

// Event is one structured log record.
type Event struct {
	Stage    Stage
	RunID    string
	Outcome  Outcome
	Reason   string
	Metadata map[string]any
}

// Option configures a Logger.
type Option func(*config) error

type config struct {
	writers          []io.Writer
	closers          []io.Closer
	useDefaultWriter bool
	level            zapcore.Level
}

func defaultConfig() *config {
	return &config{useDefaultWriter: true, level: zapcore.InfoLevel}
}

// WithWriter adds a sink.
func WithWriter(w io.Writer) Option {
	return func(cfg *config) error {
		if w == nil {
			return errors.New("writer cannot be nil")
		}
		cfg.writers = append(cfg.writers, w)
		return nil
	}
}

// WithFile appends events to path, creating parent directories.
func WithFile(path string) Option {
	return func(cfg *config) error {
		if strings.TrimSpace(path) == "" {
			return errors.New("file path cannot be empty")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		cfg.writers = append(cfg.writers, f)
		cfg.closers = append(cfg.closers, f)
		return nil
	}
}

// WithoutStdout disables the default stderr sink.
func WithoutStdout() Option {
	return func(cfg *config) error {
		cfg.useDefaultWriter = false
		return nil
	}
}

// WithLevel sets the minimum level written.
func WithLevel(level zapcore.Level) Option {
	return func(cfg *config) error {
		cfg.level = level
		return nil
	}
}

// WithVerbose lowers the level to debug when on.
func WithVerbose(on bool) Option {
	return func(cfg *config) error {
		if on {
			cfg.level = zapcore.DebugLevel
		}
		return nil
	}
}

// Logger emits pipeline events through zap.
type Logger struct {
	component string
	zl        *zap.Logger
	shared    *sinks
}

type sinks struct {
	mu      sync.Mutex
	closers []io.Closer
	closed  bool
}

// New constructs a logger tagged with component.
func New(component string, opts ...Option) (*Logger, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			closeAll(cfg.closers)
			return nil, err
		}
	}
	writers := cfg.writers
	if cfg.useDefaultWriter {
		writers = append([]io.Writer{os.Stderr}, writers...)
	}
	if len(writers) == 0 {
		return nil, errors.New("no log writers configured")
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.MessageKey = "stage"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(io.MultiWriter(writers...))),
		zap.NewAtomicLevelAt(cfg.level),
	)
	component = normaliseComponent(component)
	return &Logger{
		component: component,
		zl:        zap.New(core).With(zap.String("component", component)),
		shared:    &sinks{closers: cfg.closers},
	}, nil
}

// MustNew panics if the logger cannot be constructed.
func MustNew(component string, opts ...Option) *Logger {
	l, err := New(component, opts...)
	if err != nil {
		panic(err)
	}
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{component: "nop", zl: zap.NewNop(), shared: &sinks{}}
}

// Zap exposes the underlying logger for ad-hoc fields.
func (l *Logger) Zap() *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.zl
}

// WithComponent returns a logger sharing the same sinks under a new
// component name.
func (l *Logger) WithComponent(component string) *Logger {
	if l == nil {
		return nil
	}
	component = normaliseComponent(component)
	return &Logger{
		component: component,
		zl:        l.zl.With(zap.String("component", component)),
		shared:    l.shared,
	}
}

// Emit writes one event. Reasons and metadata are redacted first.
func (l *Logger) Emit(ev Event) error {
	if l == nil {
		return errors.New("logger is nil")
	}
	if ev.Stage == "" {
		return errors.New("event stage is required")
	}
	if ev.Outcome == "" {
		ev.Outcome = OutcomeOK
	}
	fields := []zap.Field{zap.String("outcome", string(ev.Outcome))}
	if ev.RunID != "" {
		fields = append(fields, zap.String("run_id", ev.RunID))
	}
	if ev.Reason != "" {
		fields = append(fields, zap.String("reason", redact.String(ev.Reason)))
	}
	if meta := redact.Map(ev.Metadata); len(meta) > 0 {
		fields = append(fields, zap.Any("metadata", meta))
	}

	switch ev.Outcome {
	case OutcomeFailed, OutcomeWarning:
		l.zl.Warn(string(ev.Stage), fields...)
	case OutcomeSkipped:
		l.zl.Debug(string(ev.Stage), fields...)
	default:
		l.zl.Info(string(ev.Stage), fields...)
	}
	return nil
}

// Debug writes a free-form debug line.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	if l != nil {
		l.zl.Debug(redact.String(msg), fields...)
	}
}

// Close flushes and releases file sinks. Loggers derived with
// WithComponent share the sinks, so closing any of them closes all.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	_ = l.zl.Sync()
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	if l.shared.closed {
		return nil
	}
	l.shared.closed = true
	return closeAll(l.shared.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func normaliseComponent(component string) string {
	component = strings.TrimSpace(component)
	if component == "" {
		return "wraith"
	}
	return component
}
