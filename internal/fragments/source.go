package fragments

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
)

// Source supplies raw fragment payloads keyed by ID.
type Source interface {
	Fragments(ctx context.Context) (map[string][]byte, error)
}

// MapSource serves literal fragments, e.g. from command-line arguments.
type MapSource map[string]string

func (m MapSource) Fragments(ctx context.Context) (map[string][]byte, error) {
	out := make(map[string][]byte, len(m))
	for id, payload := range m {
		out[id] = []byte(payload)
	}
	return out, nil
}

// Literals keys args by position ("01", "02", ...) so natural order keeps
// the argument order.
func Literals(args []string) MapSource {
	width := len(fmt.Sprint(len(args)))
	if width < 2 {
		width = 2
	}
	m := make(MapSource, len(args))
	for i, a := range args {
		m[fmt.Sprintf("%0*d", width, i+1)] = a
	}
	return m
}

// DefaultMaxFileSize caps a single fragment file read by FSSource.
const DefaultMaxFileSize = 1 << 20

// FSSource reads every regular file in the root of FS matching Pattern
// (default "*"). The file name is the fragment ID.
type FSSource struct {
	FS      fs.FS
	Pattern string
	MaxSize int64
}

func (s FSSource) Fragments(ctx context.Context) (map[string][]byte, error) {
	if s.FS == nil {
		return nil, fmt.Errorf("fragment source has no filesystem")
	}
	pattern := s.Pattern
	if pattern == "" {
		pattern = "*"
	}
	maxSize := s.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	names, err := fs.Glob(s.FS, pattern)
	if err != nil {
		return nil, fmt.Errorf("match fragment files: %w", err)
	}
	sort.Strings(names)

	out := make(map[string][]byte, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := fs.Stat(s.FS, name)
		if err != nil {
			return nil, fmt.Errorf("stat fragment %s: %w", name, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if info.Size() > maxSize {
			return nil, fmt.Errorf("fragment %s is %d bytes, limit %d", name, info.Size(), maxSize)
		}
		data, err := fs.ReadFile(s.FS, name)
		if err != nil {
			return nil, fmt.Errorf("read fragment %s: %w", name, err)
		}
		out[name] = data
	}
	return out, nil
}

// Collect reads src and wraps every payload as a fragment with prov.
func Collect(ctx context.Context, src Source, prov Provenance) (Set, error) {
	raw, err := src.Fragments(ctx)
	if err != nil {
		return nil, err
	}
	set := make(Set, len(raw))
	for id, payload := range raw {
		f, err := New(id, payload, prov)
		if err != nil {
			return nil, err
		}
		if err := set.Add(f); err != nil {
			return nil, err
		}
	}
	return set, nil
}
