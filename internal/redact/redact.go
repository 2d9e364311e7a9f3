// Package redact masks decryption keys and other secrets before values
// reach logs, reports or the history store.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	neverPersistKey = "never_persist"
	redacted        = "[REDACTED_SECRET]"
)

var (
	kvSecretRe  = regexp.MustCompile(`(?i)\b((?:key|passphrase|password|passwd|secret|token)\s*[:=]\s*)(['"]?)([^\s'",;]+)(['"]?)`)
	longTokenRe = regexp.MustCompile(`\b[A-Za-z0-9]{40,}\b`)
)

// sensitiveKeys are map keys whose values are always masked.
var sensitiveKeys = map[string]struct{}{
	"key":        {},
	"passphrase": {},
	"password":   {},
	"secret":     {},
}

// Secret masks a key for display, keeping only its first character.
func Secret(s string) string {
	switch len([]rune(s)) {
	case 0:
		return ""
	case 1:
		return "*"
	default:
		return string([]rune(s)[:1]) + "***"
	}
}

// String masks key=value style secrets and long opaque tokens.
func String(in string) string {
	if strings.TrimSpace(in) == "" {
		return in
	}
	masked := kvSecretRe.ReplaceAllString(in, `$1$2`+redacted+`$4`)
	return longTokenRe.ReplaceAllString(masked, redacted)
}

// Interface redacts recognised sensitive values within nested structures.
func Interface(value any) any {
	switch v := value.(type) {
	case string:
		return String(v)
	case fmt.Stringer:
		return String(v.String())
	case []string:
		return Slice(v)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = Interface(elem)
		}
		return out
	case map[string]string:
		return MapString(v)
	case map[string]any:
		return Map(v)
	default:
		return value
	}
}

// Map redacts a metadata map. Keys named like secrets and keys listed
// under never_persist are replaced wholesale; the never_persist entry
// itself is dropped.
func Map(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	var hidden []string
	for k, v := range in {
		if strings.EqualFold(k, neverPersistKey) {
			hidden = append(hidden, neverPersistList(v)...)
		}
	}
	mask := maskSet(hidden)
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch {
		case strings.EqualFold(k, neverPersistKey):
			continue
		case masked(k, mask):
			out[k] = redacted
		default:
			out[k] = Interface(v)
		}
	}
	return out
}

// MapString is Map for string maps; never_persist holds a comma
// separated key list.
func MapString(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	var hidden []string
	for k, v := range in {
		if strings.EqualFold(k, neverPersistKey) {
			hidden = append(hidden, splitList(v)...)
		}
	}
	mask := maskSet(hidden)
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch {
		case strings.EqualFold(k, neverPersistKey):
			continue
		case masked(k, mask):
			out[k] = redacted
		default:
			out[k] = String(v)
		}
	}
	return out
}

// Slice redacts sensitive values within a slice of strings.
func Slice(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = String(v)
	}
	return out
}

func masked(key string, mask map[string]struct{}) bool {
	if _, ok := mask[key]; ok {
		return true
	}
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

func neverPersistList(value any) []string {
	switch v := value.(type) {
	case string:
		return splitList(v)
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, elem := range v {
			out = append(out, fmt.Sprint(elem))
		}
		return out
	default:
		return nil
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func maskSet(keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			out[trimmed] = struct{}{}
		}
	}
	return out
}
