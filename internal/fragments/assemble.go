package fragments

import (
	"bytes"
	"fmt"
	"strings"
)

// OrderError reports an explicit order that is not a permutation of the
// fragment IDs.
type OrderError struct {
	Missing   []string
	Duplicate []string
	Unknown   []string
}

func (e *OrderError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ","))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, "duplicate "+strings.Join(e.Duplicate, ","))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown "+strings.Join(e.Unknown, ","))
	}
	return "invalid fragment order: " + strings.Join(parts, "; ")
}

// Option customises Assemble.
type Option func(*assembleConfig)

type assembleConfig struct {
	separator []byte
}

// WithSeparator inserts sep between consecutive payloads.
func WithSeparator(sep []byte) Option {
	return func(cfg *assembleConfig) {
		cfg.separator = append([]byte(nil), sep...)
	}
}

// Assemble concatenates fragment payloads. A nil order uses the natural
// (lexicographic) ID order. An explicit order must name every fragment
// exactly once, otherwise *OrderError is returned.
func Assemble(frags Set, order []string, opts ...Option) ([]byte, error) {
	var cfg assembleConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if order == nil {
		order = frags.IDs()
	} else if err := checkOrder(frags, order); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for i, id := range order {
		if i > 0 && len(cfg.separator) > 0 {
			buf.Write(cfg.separator)
		}
		buf.Write(frags[id].Payload)
	}
	return buf.Bytes(), nil
}

// ParseOrder splits a comma-separated ID list. An empty string yields nil.
func ParseOrder(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	order := make([]string, 0, len(parts))
	for _, p := range parts {
		order = append(order, strings.TrimSpace(p))
	}
	return order
}

func checkOrder(frags Set, order []string) error {
	seen := make(map[string]int, len(order))
	var oerr OrderError
	for _, id := range order {
		seen[id]++
		switch {
		case seen[id] == 2:
			oerr.Duplicate = append(oerr.Duplicate, id)
		case seen[id] == 1:
			if _, ok := frags[id]; !ok {
				oerr.Unknown = append(oerr.Unknown, id)
			}
		}
	}
	for _, id := range frags.IDs() {
		if seen[id] == 0 {
			oerr.Missing = append(oerr.Missing, id)
		}
	}
	if len(oerr.Missing)+len(oerr.Duplicate)+len(oerr.Unknown) > 0 {
		return &oerr
	}
	return nil
}

// Describe summarises a set for logs, e.g. "3 fragments, 42 bytes".
func Describe(frags Set) string {
	total := 0
	for _, f := range frags {
		total += len(f.Payload)
	}
	return fmt.Sprintf("%d fragments, %d bytes", len(frags), total)
}
