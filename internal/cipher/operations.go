package cipher

import (
	"encoding/base64"
	"errors"
	"strings"
	"unicode"
)

// base64Codec handles standard Base64, tolerating whitespace and missing
// padding on decode.
type base64Codec struct{}

func (base64Codec) Layer() Layer { return Base64 }

func (base64Codec) Encode(input []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(input)))
	base64.StdEncoding.Encode(out, input)
	return out
}

func (base64Codec) Decode(input []byte) ([]byte, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, string(input))
	s = strings.TrimRight(s, "=")
	if s == "" {
		if len(input) == 0 {
			return []byte{}, nil
		}
		return nil, errors.New("no base64 data")
	}
	if len(s)%4 == 1 {
		return nil, errors.New("truncated base64 data")
	}
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}

	return base64.StdEncoding.DecodeString(s)
}

// rot13Codec rotates ASCII letters by 13 places and leaves everything else
// alone. It is its own inverse.
type rot13Codec struct{}

func (rot13Codec) Layer() Layer { return Rot13 }

func (rot13Codec) Encode(input []byte) []byte { return rot13(input) }

func (rot13Codec) Decode(input []byte) ([]byte, error) { return rot13(input), nil }

func rot13(input []byte) []byte {
	out := make([]byte, len(input))
	for i, b := range input {
		switch {
		case b >= 'a' && b <= 'z':
			out[i] = 'a' + (b-'a'+13)%26
		case b >= 'A' && b <= 'Z':
			out[i] = 'A' + (b-'A'+13)%26
		default:
			out[i] = b
		}
	}
	return out
}

func init() {
	RegisterCodec(base64Codec{})
	RegisterCodec(rot13Codec{})
}
