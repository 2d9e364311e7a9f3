// Package score rates candidate plaintexts so auto-detection can pick the
// most text-like output among competing decodes and decryptions.
//
// The score of a buffer is
//
//	0.6*printable + 0.25*common + markers
//
// where printable is the share of printable ASCII bytes (tab, LF and CR
// included), common is the share of ASCII letters drawn from the most
// frequent English letters "etaoinshrdlu", and markers adds 0.3 for every
// distinct marker substring found (case-insensitive), capped at 0.6.
// Empty input scores zero.
package score

import (
	"bytes"
	"math"
)

// DefaultMarkers are substrings that usually only appear in a recovered
// payload.
var DefaultMarkers = []string{"flag{", "ctf{", "key{", "secret", "password", "the "}

const (
	printableWeight = 0.6
	commonWeight    = 0.25
	markerWeight    = 0.3
	markerCap       = 0.6

	// DefaultPrintableThreshold is the printable share above which decoded
	// bytes are treated as plausible text.
	DefaultPrintableThreshold = 0.85
)

const commonLetters = "etaoinshrdlu"

// Scorer holds the marker list used by Score.
type Scorer struct {
	Markers [][]byte
}

// New builds a scorer. A nil marker list selects DefaultMarkers.
func New(markers []string) *Scorer {
	if markers == nil {
		markers = DefaultMarkers
	}
	s := &Scorer{Markers: make([][]byte, 0, len(markers))}
	for _, m := range markers {
		if m == "" {
			continue
		}
		s.Markers = append(s.Markers, bytes.ToLower([]byte(m)))
	}
	return s
}

var defaultScorer = New(nil)

// Score rates data with the default markers.
func Score(data []byte) float64 {
	return defaultScorer.Score(data)
}

// Score rates data; higher is more text-like.
func (s *Scorer) Score(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	total := printableWeight*PrintableRatio(data) + commonWeight*CommonLetterRatio(data)
	return total + s.markerBonus(data)
}

// MarkerHits returns the markers present in data.
func (s *Scorer) MarkerHits(data []byte) []string {
	lower := bytes.ToLower(data)
	var hits []string
	for _, m := range s.Markers {
		if bytes.Contains(lower, m) {
			hits = append(hits, string(m))
		}
	}
	return hits
}

func (s *Scorer) markerBonus(data []byte) float64 {
	bonus := markerWeight * float64(len(s.MarkerHits(data)))
	return math.Min(bonus, markerCap)
}

// IsPrintable reports whether b is printable ASCII, tab, LF or CR.
func IsPrintable(b byte) bool {
	return (b >= 32 && b <= 126) || b == '\t' || b == '\n' || b == '\r'
}

// PrintableRatio is the share of printable bytes in data.
func PrintableRatio(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	n := 0
	for _, b := range data {
		if IsPrintable(b) {
			n++
		}
	}
	return float64(n) / float64(len(data))
}

// NonPrintableRatio is 1 - PrintableRatio for non-empty data.
func NonPrintableRatio(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	return 1 - PrintableRatio(data)
}

// CommonLetterRatio is the share of ASCII letters in data that belong to
// the most frequent English letters. Data without letters scores zero.
func CommonLetterRatio(data []byte) float64 {
	letters, common := 0, 0
	for _, b := range data {
		lower := b | 0x20
		if lower < 'a' || lower > 'z' {
			continue
		}
		letters++
		if bytes.IndexByte([]byte(commonLetters), lower) >= 0 {
			common++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(common) / float64(letters)
}

// Entropy returns the Shannon entropy of data in bits per byte.
func Entropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var freq [256]int
	for _, b := range data {
		freq[b]++
	}
	entropy := 0.0
	n := float64(len(data))
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}
