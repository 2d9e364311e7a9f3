package cipher

import (
	"bytes"
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// AES-CBC parameters. Ciphertext is laid out as IV || blocks.
const (
	KeyDerivationSalt       = "wraith/aes-cbc/v1"
	KeyDerivationIterations = 4096
	aesKeySize              = 32
)

// XORBytes combines data with key, repeating the key as needed. An empty key
// returns a copy of data.
func XORBytes(data, key []byte) []byte {
	out := bytes.Clone(data)
	if out == nil {
		out = []byte{}
	}
	if len(key) == 0 {
		return out
	}
	for i := range out {
		out[i] ^= key[i%len(key)]
	}
	return out
}

// DeriveKey stretches a passphrase into an AES-256 key.
func DeriveKey(passphrase []byte) []byte {
	return pbkdf2.Key(passphrase, []byte(KeyDerivationSalt), KeyDerivationIterations, aesKeySize, sha256.New)
}

// EncryptAESCBC encrypts plain under a key derived from passphrase. The
// IV is read from random and prepended to the ciphertext.
func EncryptAESCBC(plain, passphrase []byte, random io.Reader) ([]byte, error) {
	block, err := aes.NewCipher(DeriveKey(passphrase))
	if err != nil {
		return nil, fmt.Errorf("aes-cbc: %w", err)
	}

	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	if _, err := io.ReadFull(random, out[:aes.BlockSize]); err != nil {
		return nil, fmt.Errorf("aes-cbc: read iv: %w", err)
	}
	gocipher.NewCBCEncrypter(block, out[:aes.BlockSize]).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

// DecryptAESCBC reverses EncryptAESCBC. Misaligned input and inconsistent
// padding are reported as *PaddingError.
func DecryptAESCBC(data, passphrase []byte) ([]byte, error) {
	if len(data) < 2*aes.BlockSize {
		return nil, &PaddingError{Reason: fmt.Sprintf("ciphertext too short (%d bytes)", len(data))}
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, &PaddingError{Reason: fmt.Sprintf("ciphertext length %d is not a multiple of %d", len(data), aes.BlockSize)}
	}

	block, err := aes.NewCipher(DeriveKey(passphrase))
	if err != nil {
		return nil, err
	}

	iv := data[:aes.BlockSize]
	plain := make([]byte, len(data)-aes.BlockSize)
	gocipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data[aes.BlockSize:])
	return pkcs7Unpad(plain, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, &PaddingError{Reason: "plaintext not block aligned"}
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, &PaddingError{Reason: fmt.Sprintf("invalid padding length %d", n)}
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, &PaddingError{Reason: "inconsistent padding bytes"}
		}
	}
	return data[:len(data)-n], nil
}
