package cipher

import (
	"fmt"
	"strings"
)

// Layer is one reversible textual encoding.
type Layer uint8

const (
	Base64 Layer = iota + 1
	Rot13
)

// Layers lists every supported layer.
var Layers = []Layer{Base64, Rot13}

func (l Layer) String() string {
	switch l {
	case Base64:
		return "base64"
	case Rot13:
		return "rot13"
	default:
		return fmt.Sprintf("layer(%d)", uint8(l))
	}
}

// ParseLayer resolves a layer name, case-insensitively.
func ParseLayer(name string) (Layer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "base64", "b64":
		return Base64, nil
	case "rot13", "rot-13":
		return Rot13, nil
	default:
		return 0, fmt.Errorf("unknown encoding layer %q", name)
	}
}

func (l Layer) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Layer) UnmarshalText(text []byte) error {
	parsed, err := ParseLayer(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLayers resolves a list of names, keeping order and repeats.
func ParseLayers(names []string) ([]Layer, error) {
	layers := make([]Layer, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		l, err := ParseLayer(name)
		if err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}
	return layers, nil
}

// ChainLabel renders layers in application order, e.g. "base64>rot13".
func ChainLabel(layers []Layer) string {
	if len(layers) == 0 {
		return "identity"
	}
	parts := make([]string, len(layers))
	for i, l := range layers {
		parts[i] = l.String()
	}
	return strings.Join(parts, ">")
}

// Method is a symmetric decryption method. Auto is a selector, not a
// method of its own.
type Method uint8

const (
	Auto Method = iota
	XOR
	AESCBC
)

// Methods lists the concrete methods in tie-break priority order.
var Methods = []Method{AESCBC, XOR}

func (m Method) String() string {
	switch m {
	case Auto:
		return "auto"
	case XOR:
		return "xor"
	case AESCBC:
		return "aes-cbc"
	default:
		return fmt.Sprintf("method(%d)", uint8(m))
	}
}

// ParseMethod resolves a method name. The empty string selects Auto.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return Auto, nil
	case "xor":
		return XOR, nil
	case "aes", "aes-cbc", "aes_cbc", "aescbc":
		return AESCBC, nil
	default:
		return 0, fmt.Errorf("unknown decryption method %q", name)
	}
}

func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Step records the outcome of unwinding one layer.
type Step struct {
	Layer Layer `json:"layer"`
	OK    bool  `json:"ok"`
	Err   error `json:"-"`
}

// Candidate is one scored decode or decryption attempt.
type Candidate struct {
	Label    string  `json:"label"`
	Output   []byte  `json:"-"`
	Score    float64 `json:"score"`
	Priority int     `json:"priority"`
	// Rejected marks a candidate that failed to decode or produced
	// implausible output.
	Rejected bool `json:"rejected,omitempty"`
}

// DecodeResult is the outcome of Decode or AutoDecode.
type DecodeResult struct {
	Output []byte `json:"-"`
	// Label names the winning chain in application order.
	Label string  `json:"label"`
	Steps []Step  `json:"steps,omitempty"`
	Score float64 `json:"score"`
	// Candidates is only populated by AutoDecode.
	Candidates []Candidate `json:"candidates,omitempty"`
}

// Changed reports whether any layer was successfully removed.
func (r DecodeResult) Changed() bool {
	for _, s := range r.Steps {
		if s.OK {
			return true
		}
	}
	return false
}

// MethodFailure records why one method produced no usable output.
type MethodFailure struct {
	Method Method
	Err    error
}

// DecryptResult is the outcome of Decrypt.
type DecryptResult struct {
	Method     Method          `json:"method"`
	Output     []byte          `json:"-"`
	Score      float64         `json:"score"`
	Candidates []Candidate     `json:"candidates,omitempty"`
	Failures   []MethodFailure `json:"-"`
}

// DecodeError reports that a layer could not be removed.
type DecodeError struct {
	Layer Layer
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s decode: %v", e.Layer, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PaddingError reports malformed AES-CBC ciphertext or PKCS7 padding.
// The method name is added by the caller, e.g. AllMethodsFailedError.
type PaddingError struct {
	Reason string
}

func (e *PaddingError) Error() string { return e.Reason }

// AllMethodsFailedError is returned when no decryption method produced
// non-empty output.
type AllMethodsFailedError struct {
	Failures []MethodFailure
}

func (e *AllMethodsFailedError) Error() string {
	if len(e.Failures) == 0 {
		return "all decryption methods failed"
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Method, f.Err)
	}
	return "all decryption methods failed: " + strings.Join(parts, "; ")
}
