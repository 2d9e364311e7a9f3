package cipher

import (
	"testing"

	"github.com/RowanDark/wraith/internal/score"
)

const plainSentence = "meet me at the old harbour after sunset"

func mustEncode(t *testing.T, input string, layers ...Layer) []byte {
	t.Helper()
	out, err := Encode([]byte(input), layers)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return out
}

func TestAutoDecode(t *testing.T) {
	tests := []struct {
		name      string
		input     []byte
		wantLabel string
		want      string
	}{
		{
			name:      "plain text stays",
			input:     []byte("the quick brown fox jumps over the lazy dog"),
			wantLabel: "identity",
			want:      "the quick brown fox jumps over the lazy dog",
		},
		{
			name:      "base64",
			input:     mustEncode(t, plainSentence, Base64),
			wantLabel: "base64",
			want:      plainSentence,
		},
		{
			name:      "rot13",
			input:     mustEncode(t, plainSentence, Rot13),
			wantLabel: "rot13",
			want:      plainSentence,
		},
		{
			name:      "base64 then rot13",
			input:     mustEncode(t, plainSentence, Base64, Rot13),
			wantLabel: "base64>rot13",
			want:      plainSentence,
		},
		{
			name:      "rot13 then base64",
			input:     mustEncode(t, plainSentence, Rot13, Base64),
			wantLabel: "rot13>base64",
			want:      plainSentence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := AutoDecode(tt.input)
			if res.Label != tt.wantLabel {
				t.Errorf("expected chain %q, got %q", tt.wantLabel, res.Label)
			}
			if string(res.Output) != tt.want {
				t.Errorf("expected %q, got %q", tt.want, res.Output)
			}
			if len(res.Candidates) != len(autoChains) {
				t.Errorf("expected %d candidates, got %d", len(autoChains), len(res.Candidates))
			}
		})
	}
}

func TestAutoDecodeNeverFails(t *testing.T) {
	garbage := []byte{0x00, 0x01, 0x02, 0xfe}
	res := AutoDecode(garbage)
	if res.Label != "identity" {
		t.Fatalf("expected identity for garbage, got %q", res.Label)
	}
	if string(res.Output) != string(garbage) {
		t.Errorf("output should be the original input")
	}
	if res.Changed() {
		t.Error("no layer should report success")
	}

	empty := AutoDecode(nil)
	if empty.Label != "identity" || len(empty.Output) != 0 {
		t.Errorf("unexpected result for empty input: %+v", empty)
	}
}

func TestAutoDecodeRejectsUnprintableBase64(t *testing.T) {
	// Valid base64 of binary data must not win over the literal text.
	input := mustEncode(t, "\x00\x01\x02\x03\x04\x05\xfa\xfb\xfc", Base64)
	res := AutoDecode(input)
	if res.Label == "base64" {
		t.Fatal("binary base64 output should be rejected")
	}
	rejected := false
	for _, c := range res.Candidates {
		if c.Label == "base64" {
			rejected = c.Rejected
		}
	}
	if !rejected {
		t.Error("base64 candidate should be marked rejected")
	}
}

func TestAutoDecodeTieBreak(t *testing.T) {
	// Digits are unchanged by rot13, so identity and rot13 tie.
	res := AutoDecode([]byte("12345 67890"))
	if res.Label != "identity" {
		t.Fatalf("identity should win ties over rot13, got %q", res.Label)
	}
	if !better(0.5, 0, 0.5, 1) || better(0.5, 2, 0.5, 1) || !better(0.6, 4, 0.5, 0) {
		t.Fatal("better ordering is wrong")
	}
}

func TestDetectorOptions(t *testing.T) {
	// Decodes to "flag{x}\x01\x02\x03", which is only 70% printable.
	input := []byte("ZmxhZ3t4fQECAw==")
	tests := []struct {
		name string
		opts []DetectorOption
		want string
	}{
		{name: "defaults", want: "rot13"},
		{name: "relaxed threshold", opts: []DetectorOption{WithPrintableThreshold(0.5)}, want: "base64"},
		{
			name: "relaxed threshold without markers",
			opts: []DetectorOption{WithPrintableThreshold(0.5), WithScorer(score.New([]string{}))},
			want: "rot13",
		},
		{name: "nil scorer keeps defaults", opts: []DetectorOption{WithPrintableThreshold(0.5), WithScorer(nil)}, want: "base64"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewDetector(tt.opts...).AutoDecode(input); got.Label != tt.want {
				t.Fatalf("label = %s (score %.3f), want %s", got.Label, got.Score, tt.want)
			}
		})
	}
}
