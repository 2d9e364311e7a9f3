// Package fragments collects recovered payload pieces and joins them into a
// single buffer.
package fragments

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Provenance records which technique produced a fragment.
type Provenance uint8

const (
	ProvenanceUnknown Provenance = iota
	ProvenanceMetadata
	ProvenanceLSB
	ProvenanceSpiral
	ProvenanceDecoded
	ProvenanceFile
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceMetadata:
		return "metadata"
	case ProvenanceLSB:
		return "lsb"
	case ProvenanceSpiral:
		return "spiral"
	case ProvenanceDecoded:
		return "decoded"
	case ProvenanceFile:
		return "file"
	default:
		return "unknown"
	}
}

func (p Provenance) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Provenance) UnmarshalText(text []byte) error {
	parsed, err := ParseProvenance(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParseProvenance is the inverse of Provenance.String.
func ParseProvenance(name string) (Provenance, error) {
	for p := ProvenanceUnknown; p <= ProvenanceFile; p++ {
		if p.String() == name {
			return p, nil
		}
	}
	return ProvenanceUnknown, fmt.Errorf("unknown provenance %q", name)
}

// Fragment is one recovered piece of the final payload. The ID is fixed
// at creation.
type Fragment struct {
	id         string
	OrderHint  string     `json:"order_hint,omitempty"`
	Payload    []byte     `json:"-"`
	Provenance Provenance `json:"provenance"`
}

// New creates a fragment. IDs must be non-empty.
func New(id string, payload []byte, prov Provenance) (Fragment, error) {
	if strings.TrimSpace(id) == "" {
		return Fragment{}, errors.New("fragment id cannot be empty")
	}
	return Fragment{id: id, Payload: payload, Provenance: prov}, nil
}

// ID returns the fragment identifier.
func (f Fragment) ID() string { return f.id }

// WithHint returns a copy of f carrying an ordering hint.
func (f Fragment) WithHint(hint string) Fragment {
	f.OrderHint = hint
	return f
}

// Set is a collection of fragments keyed by ID.
type Set map[string]Fragment

// Add inserts f, rejecting a second fragment with the same ID.
func (s Set) Add(f Fragment) error {
	if f.id == "" {
		return errors.New("fragment id cannot be empty")
	}
	if _, exists := s[f.id]; exists {
		return fmt.Errorf("fragment %q already present", f.id)
	}
	s[f.id] = f
	return nil
}

// IDs returns the fragment IDs in natural order.
func (s Set) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveOrder derives an assembly order from order hints. Hinted
// fragments come first, sorted by hint then ID; the rest follow in
// natural order. Integer hints compare numerically and sort ahead of
// non-integer ones.
func (s Set) ResolveOrder() []string {
	ids := s.IDs()
	sort.SliceStable(ids, func(i, j int) bool {
		hi, hj := s[ids[i]].OrderHint, s[ids[j]].OrderHint
		switch {
		case hi != "" && hj == "":
			return true
		case hi == "" && hj != "":
			return false
		case hi != hj:
			return hintLess(hi, hj)
		default:
			return false
		}
	})
	return ids
}

func hintLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		if na != nb {
			return na < nb
		}
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
