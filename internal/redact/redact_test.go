package redact

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestString(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"key assignment", "decrypt with key=ghost", "decrypt with key=" + redacted},
		{"passphrase colon", `passphrase: "hunter2"`, `passphrase: "` + redacted + `"`},
		{"password case", "PASSWORD=abc", "PASSWORD=" + redacted},
		{"long token", strings.Repeat("a1", 25), redacted},
		{"plain", "spiral clockwise red", "spiral clockwise red"},
		{"blank", "   ", "   "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := String(tc.in); got != tc.want {
				t.Fatalf("String(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSecret(t *testing.T) {
	cases := map[string]string{
		"":      "",
		"k":     "*",
		"ghost": "g***",
		"ñandú": "ñ***",
	}
	for in, want := range cases {
		if got := Secret(in); got != want {
			t.Errorf("Secret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMapMasksSensitiveAndNeverPersist(t *testing.T) {
	in := map[string]any{
		"key":           "ghost",
		"image":         "ghost.png",
		"note":          "used token=abcdef",
		"fragment":      "flag{x}",
		"nested":        []any{"password=pw"},
		"never_persist": []any{"fragment", "missing"},
	}
	want := map[string]any{
		"key":      redacted,
		"image":    "ghost.png",
		"note":     "used token=" + redacted,
		"fragment": redacted,
		"nested":   []any{"password=" + redacted},
	}
	if diff := cmp.Diff(want, Map(in)); diff != "" {
		t.Fatalf("Map mismatch (-want +got):\n%s", diff)
	}
}

func TestMapString(t *testing.T) {
	in := map[string]string{
		"Passphrase":    "ghost",
		"method":        "aes-cbc",
		"payload":       "xyz",
		"never_persist": "payload, missing",
	}
	want := map[string]string{
		"Passphrase": redacted,
		"method":     "aes-cbc",
		"payload":    redacted,
	}
	if diff := cmp.Diff(want, MapString(in)); diff != "" {
		t.Fatalf("MapString mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyInputs(t *testing.T) {
	if Map(nil) != nil || Map(map[string]any{}) != nil {
		t.Fatal("empty map should redact to nil")
	}
	if MapString(nil) != nil || Slice(nil) != nil {
		t.Fatal("empty inputs should redact to nil")
	}
}
