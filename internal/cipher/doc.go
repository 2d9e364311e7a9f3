// Package cipher unwinds textual encoding layers and symmetric encryption
// applied to recovered payloads.
//
// # Overview
//
// Cipher is the decode half of the wraith engine, offering:
//   - Layered decoding (base64, rot13) in any order and depth
//   - Auto-detection of the most plausible layer chain
//   - XOR and AES-256-CBC decryption with automatic method selection
//   - Recipe library (save and reuse layer chains)
//
// # Layered Decoding
//
// Layers are always listed in the order the producer applied them.
// Decoding unwinds them from the last to the first:
//
//	hidden, _ := cipher.Encode([]byte("flag{ghost}"), []cipher.Layer{cipher.Base64, cipher.Rot13})
//	res := cipher.Decode(hidden, []cipher.Layer{cipher.Base64, cipher.Rot13})
//	// res.Output: []byte("flag{ghost}")
//
// A layer that cannot be removed is recorded on its Step as a
// *DecodeError and the chain continues with the unchanged input.
//
// # Auto-Detection
//
//	res := cipher.AutoDecode(payload)
//	for _, c := range res.Candidates {
//	    fmt.Printf("%-14s %.2f\n", c.Label, c.Score)
//	}
//
// Candidates are identity, rot13, base64 and both two-layer combinations.
// Base64 chains only qualify when their output is mostly printable. The
// highest score wins; ties go to base64, then base64>rot13,
// rot13>base64, identity and rot13.
//
// # Decryption
//
//	res, err := cipher.Decrypt(data, []byte("key"), cipher.Auto)
//
// AES-CBC keys are derived with PBKDF2-HMAC-SHA256 (salt
// "wraith/aes-cbc/v1", 4096 iterations, 32 bytes). The IV is the first
// block of the ciphertext. Auto runs AES-CBC and XOR, drops failures and
// empty outputs, and keeps the best scoring result (AES-CBC on ties).
//
// # Thread Safety
//
// The codec registry is thread-safe and can be accessed concurrently.
// Codecs, Detector and the decryption functions are stateless and safe for
// concurrent use. RecipeManager uses internal locking.
package cipher
