package analyzer

import (
	"time"

	"github.com/RowanDark/wraith/internal/cipher"
	"github.com/RowanDark/wraith/internal/fragments"
	"github.com/RowanDark/wraith/internal/metadata"
)

// Report is the outcome of Analyzer.Run.
type Report struct {
	ID         string           `json:"id"`
	Image      string           `json:"image"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Metadata   *metadata.Report `json:"metadata,omitempty"`
	Tasks      []TaskResult     `json:"tasks"`
	Fragments  []FragmentInfo   `json:"fragments"`
	Decoded    []DecodedInfo    `json:"decoded,omitempty"`
	Order      []string         `json:"order,omitempty"`
	Assembled  string           `json:"assembled,omitempty"`
	Decryption *Decryption      `json:"decryption,omitempty"`
	// FinalFlag is the best plaintext, empty when decryption failed.
	FinalFlag string   `json:"final_flag,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// TaskResult records one extraction.
type TaskResult struct {
	Name              string  `json:"name"`
	Provenance        string  `json:"provenance"`
	Channel           string  `json:"channel"`
	Direction         string  `json:"direction,omitempty"`
	BitsRead          int     `json:"bits_read"`
	Text              string  `json:"text,omitempty"`
	NonPrintableRatio float64 `json:"non_printable_ratio"`
	// Entropy is the Shannon entropy of the extracted bytes in bits per
	// byte.
	Entropy           float64 `json:"entropy"`
	LikelyCorrupted   bool    `json:"likely_corrupted,omitempty"`
	Terminated        bool    `json:"terminated,omitempty"`
	Error             string  `json:"error,omitempty"`
	Err               error   `json:"-"`
}

// FragmentInfo describes a fragment entering assembly.
type FragmentInfo struct {
	ID         string               `json:"id"`
	Provenance fragments.Provenance `json:"provenance"`
	Length     int                  `json:"length"`
	Text       string               `json:"text"`
}

// DecodedInfo records a fragment whose encoding layers were removed.
// Origin is the provenance of the source fragment.
type DecodedInfo struct {
	ID         string               `json:"id"`
	Source     string               `json:"source"`
	Origin     fragments.Provenance `json:"origin"`
	Provenance fragments.Provenance `json:"provenance"`
	Label      string               `json:"label"`
	Score      float64              `json:"score"`
	Text       string               `json:"text"`
}

// Decryption summarises the final decryption attempt.
type Decryption struct {
	Method string `json:"method,omitempty"`
	// KeyHint is the masked key.
	KeyHint    string             `json:"key_hint"`
	Armored    bool               `json:"armored,omitempty"`
	Score      float64            `json:"score"`
	Candidates []cipher.Candidate `json:"candidates,omitempty"`
	Error      string             `json:"error,omitempty"`
}
