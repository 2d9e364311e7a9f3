package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/RowanDark/wraith/internal/config"
	"github.com/RowanDark/wraith/internal/logging"
)

// maxInputSize bounds text and ciphertext read from files or stdin.
const maxInputSize = 16 << 20

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// parse accepts flags before and after positional arguments, so both
// "analyze -key k img.png" and "analyze img.png -key k" work.
func parse(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// readInput returns the bytes named by arg: "-" reads stdin, otherwise
// arg is a path when fromFile is set and literal text when it is not.
// Text read from stdin loses its trailing newline.
func (a *app) readInput(arg string, fromFile bool) ([]byte, error) {
	var r io.Reader
	switch {
	case arg == "-":
		r = a.stdin
	case fromFile:
		f, err := os.Open(arg)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	default:
		return []byte(arg), nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxInputSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxInputSize {
		return nil, fmt.Errorf("input exceeds %d bytes", maxInputSize)
	}
	if arg == "-" && !fromFile {
		data = bytes.TrimRight(data, "\r\n")
	}
	return data, nil
}

// writeOutput writes data to path, or to stdout with a trailing newline
// when path is empty.
func (a *app) writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := fmt.Fprintf(a.stdout, "%s\n", data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (a *app) loadConfig() (config.Config, bool) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(a.stderr, "load config: %v\n", err)
		return config.Config{}, false
	}
	return cfg, true
}

// newLogger writes pipeline events to stderr and, when configured, the log
// file. It also becomes the global zap logger; the returned func restores
// the previous one and closes the sinks.
func (a *app) newLogger(cfg config.Config, verbose bool) (*logging.Logger, func(), error) {
	opts := []logging.Option{
		logging.WithoutStdout(),
		logging.WithWriter(a.stderr),
		logging.WithVerbose(verbose || cfg.Verbose),
	}
	if cfg.LogFile != "" {
		opts = append(opts, logging.WithFile(cfg.LogFile))
	}
	logger, err := logging.New("wraithctl", opts...)
	if err != nil {
		return nil, nil, err
	}
	undo := zap.ReplaceGlobals(logger.Zap())
	return logger, func() {
		undo()
		_ = logger.Close()
	}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
