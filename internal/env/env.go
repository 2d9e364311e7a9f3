// Package env resolves WRAITH_* environment variables, accepting the
// legacy GHOST_* names with a one-time deprecation warning.
package env

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	Prefix       = "WRAITH_"
	LegacyPrefix = "GHOST_"
)

var (
	warnLogger = func(format string, args ...any) { zap.S().Warnf(format, args...) }
	warnMu     sync.Mutex
	warnedKeys sync.Map
)

// Lookup returns the value of newKey if it exists. When only the legacy
// oldKey is present its value is returned and a deprecation warning is
// logged once per key.
func Lookup(newKey, oldKey string) (string, bool) {
	if v, ok := os.LookupEnv(newKey); ok {
		return v, true
	}
	if oldKey == "" {
		return "", false
	}
	if v, ok := os.LookupEnv(oldKey); ok {
		logDeprecated(oldKey, newKey)
		return v, true
	}
	return "", false
}

// String looks up WRAITH_<name> then GHOST_<name>, trimming whitespace.
// Blank values count as unset.
func String(name string) (string, bool) {
	v, ok := Lookup(Prefix+name, LegacyPrefix+name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Bool parses String(name) with strconv.ParseBool.
func Bool(name string) (bool, bool, error) {
	v, ok := String(name)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, true, err
	}
	return b, true, nil
}

// Int parses String(name) as a base-10 integer.
func Int(name string) (int, bool, error) {
	v, ok := String(name)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, true, err
	}
	return n, true, nil
}

// List splits String(name) on commas, dropping empty entries.
func List(name string) ([]string, bool) {
	v, ok := String(name)
	if !ok {
		return nil, false
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out, len(out) > 0
}

func logDeprecated(oldKey, newKey string) {
	onceIface, _ := warnedKeys.LoadOrStore(oldKey, &sync.Once{})
	once := onceIface.(*sync.Once)
	once.Do(func() {
		warnMu.Lock()
		logger := warnLogger
		warnMu.Unlock()
		logger("%s is deprecated; use %s", oldKey, newKey)
	})
}

// ResetWarningsForTesting clears the cached once guards so tests can verify
// warning behaviour deterministically.
func ResetWarningsForTesting() {
	warnMu.Lock()
	warnedKeys = sync.Map{}
	warnMu.Unlock()
}

// SetWarnLoggerForTesting swaps the logger used for warnings. The returned
// function restores the previous logger and should be deferred in tests.
func SetWarnLoggerForTesting(fn func(format string, args ...any)) (restore func()) {
	warnMu.Lock()
	previous := warnLogger
	warnLogger = fn
	warnMu.Unlock()
	return func() {
		warnMu.Lock()
		warnLogger = previous
		warnMu.Unlock()
	}
}
