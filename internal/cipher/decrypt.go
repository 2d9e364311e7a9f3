package cipher

import (
	"errors"
	"fmt"
	"io"
)

var errEmptyOutput = errors.New("empty output")

// Decrypt decrypts data with the default detector's scorer.
func Decrypt(data, key []byte, method Method) (DecryptResult, error) {
	return defaultDetector.Decrypt(data, key, method)
}

// Decrypt runs method over data. Auto tries every method, keeps the ones
// that succeed with non-empty output, and returns the best scoring one;
// ties go to AES-CBC. Individual failures are recorded in
// DecryptResult.Failures. *AllMethodsFailedError is returned only when no
// method survives.
func (d *Detector) Decrypt(data, key []byte, method Method) (DecryptResult, error) {
	var methods []Method
	switch method {
	case Auto:
		methods = Methods
	case XOR, AESCBC:
		methods = []Method{method}
	default:
		return DecryptResult{}, fmt.Errorf("unsupported decryption method %s", method)
	}

	var (
		result    DecryptResult
		survivors []Method
		best      = -1
	)
	for _, m := range methods {
		out, err := decryptWith(m, data, key)
		if err == nil && len(out) == 0 {
			err = errEmptyOutput
		}
		if err != nil {
			result.Failures = append(result.Failures, MethodFailure{Method: m, Err: err})
			continue
		}
		c := Candidate{
			Label:    m.String(),
			Output:   out,
			Score:    d.scorer.Score(out),
			Priority: methodPriority(m),
		}
		result.Candidates = append(result.Candidates, c)
		survivors = append(survivors, m)
		if best < 0 || better(c.Score, c.Priority, result.Candidates[best].Score, result.Candidates[best].Priority) {
			best = len(result.Candidates) - 1
		}
	}

	if best < 0 {
		return result, &AllMethodsFailedError{Failures: result.Failures}
	}
	winner := result.Candidates[best]
	result.Output = winner.Output
	result.Score = winner.Score
	result.Method = survivors[best]
	return result, nil
}

// Encrypt is the producer-side counterpart used for round trips. Auto is
// not accepted.
func Encrypt(plain, key []byte, method Method, random io.Reader) ([]byte, error) {
	switch method {
	case XOR:
		return XORBytes(plain, key), nil
	case AESCBC:
		return EncryptAESCBC(plain, key, random)
	default:
		return nil, fmt.Errorf("encryption needs an explicit method, got %s", method)
	}
}

func decryptWith(m Method, data, key []byte) ([]byte, error) {
	switch m {
	case XOR:
		return XORBytes(data, key), nil
	case AESCBC:
		return DecryptAESCBC(data, key)
	default:
		return nil, fmt.Errorf("unsupported decryption method %s", m)
	}
}

func methodPriority(m Method) int {
	for i, candidate := range Methods {
		if candidate == m {
			return i
		}
	}
	return len(Methods)
}

// Unwrap exposes the individual method errors to errors.Is and errors.As.
func (e *AllMethodsFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
