// Package lsb recovers least-significant-bit payloads from one color
// channel of a pixel grid.
package lsb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/icza/bitio"
	"golang.org/x/text/encoding/unicode"

	"github.com/RowanDark/wraith/internal/pixels"
	"github.com/RowanDark/wraith/internal/score"
	"github.com/RowanDark/wraith/internal/traverse"
)

// DefaultCorruptionThreshold is the non-printable share above which a
// result is tagged as likely corrupted.
const DefaultCorruptionThreshold = 0.3

// Result is the outcome of one extraction.
type Result struct {
	Channel pixels.Channel
	// BitsRead counts the coordinates consumed before extraction stopped.
	BitsRead int
	// Bytes is the payload, without the NUL terminator when one was found.
	Bytes []byte
	// Text is Bytes decoded permissively; invalid UTF-8 becomes U+FFFD.
	Text              string
	NonPrintableRatio float64
	// LikelyCorrupted is advisory; the payload is still returned.
	LikelyCorrupted bool
	Terminated      bool
}

// Option customises Extract.
type Option func(*config)

type config struct {
	sequence  traverse.Sequence
	nullLimit int
	threshold float64
}

// WithSequence replaces raster order with seq.
func WithSequence(seq traverse.Sequence) Option {
	return func(cfg *config) { cfg.sequence = seq }
}

// WithNullScanLimit limits the terminator search to the first n bytes.
// Zero scans the whole payload.
func WithNullScanLimit(n int) Option {
	return func(cfg *config) { cfg.nullLimit = n }
}

// WithCorruptionThreshold overrides DefaultCorruptionThreshold.
func WithCorruptionThreshold(f float64) Option {
	return func(cfg *config) { cfg.threshold = f }
}

// Bits returns the LSB of ch at every coordinate of seq, one 0/1 value per
// element.
func Bits(grid pixels.Grid, ch pixels.Channel, seq traverse.Sequence) ([]byte, error) {
	if err := checkInput(grid, seq); err != nil {
		return nil, err
	}
	bits := make([]byte, len(seq))
	for i, p := range seq {
		bits[i] = grid.At(p.X, p.Y, ch) & 1
	}
	return bits, nil
}

// Pack groups bits into bytes, most significant bit first. A trailing group
// of fewer than eight bits is dropped.
func Pack(bits []byte) []byte {
	usable := len(bits) - len(bits)%8
	var buf bytes.Buffer
	buf.Grow(usable / 8)
	w := bitio.NewWriter(&buf)
	for _, b := range bits[:usable] {
		// bytes.Buffer writes never fail.
		_ = w.WriteBool(b&1 == 1)
	}
	_ = w.Close()
	return buf.Bytes()
}

// Extract reads the LSB stream of ch and assembles it into a payload. It
// stops at the first NUL byte within the scan limit.
func Extract(grid pixels.Grid, ch pixels.Channel, opts ...Option) (Result, error) {
	cfg := config{threshold: DefaultCorruptionThreshold}
	for _, opt := range opts {
		opt(&cfg)
	}
	if grid == nil {
		return Result{}, &pixels.AccessError{Err: errors.New("nil grid")}
	}
	seq := cfg.sequence
	if seq == nil {
		raster, err := traverse.Raster(grid.Width(), grid.Height())
		if err != nil {
			return Result{}, &pixels.AccessError{Err: err}
		}
		seq = raster
	}
	if err := checkInput(grid, seq); err != nil {
		return Result{}, err
	}

	res := Result{Channel: ch}
	var buf bytes.Buffer
	buf.Grow(len(seq) / 8)
	w := bitio.NewWriter(&buf)
	usable := len(seq) - len(seq)%8
	for i := 0; i < usable; i++ {
		p := seq[i]
		_ = w.WriteBool(grid.At(p.X, p.Y, ch)&1 == 1)
		res.BitsRead++
		if res.BitsRead%8 != 0 {
			continue
		}
		n := buf.Len()
		if buf.Bytes()[n-1] == 0 && (cfg.nullLimit <= 0 || n <= cfg.nullLimit) {
			buf.Truncate(n - 1)
			res.Terminated = true
			break
		}
	}
	_ = w.Close()

	res.Bytes = buf.Bytes()
	text, err := unicode.UTF8.NewDecoder().Bytes(res.Bytes)
	if err != nil {
		// The UTF-8 decoder substitutes instead of failing; keep raw bytes
		// should a future x/text version report an error.
		text = res.Bytes
	}
	res.Text = string(text)
	res.NonPrintableRatio = score.NonPrintableRatio(res.Bytes)
	res.LikelyCorrupted = res.NonPrintableRatio > cfg.threshold
	return res, nil
}

func checkInput(grid pixels.Grid, seq traverse.Sequence) error {
	if grid == nil {
		return &pixels.AccessError{Err: errors.New("nil grid")}
	}
	w, h := grid.Width(), grid.Height()
	if w <= 0 || h <= 0 {
		return &pixels.AccessError{Err: fmt.Errorf("empty grid %dx%d", w, h)}
	}
	for i, p := range seq {
		if p.X < 0 || p.X >= w || p.Y < 0 || p.Y >= h {
			return fmt.Errorf("coordinate %d %s outside %dx%d grid", i, p, w, h)
		}
	}
	return nil
}
