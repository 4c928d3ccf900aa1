// Package crypt encrypts message content at rest. Fragments are stored as
// hex(ciphertext)|hex(iv) with a fresh random IV per call, AES-256-CBC under
// a scrypt-derived key.
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// ErrNoKey is returned when no key material is configured. Ingestion must
// fail rather than silently store plaintext.
var ErrNoKey = errors.New("message encryption key not configured")

// ErrMalformed is returned when ciphertext is not in hex(ct)|hex(iv) form.
var ErrMalformed = errors.New("malformed ciphertext")

// Encrypter holds the derived AES-256 key for one tenant process.
type Encrypter struct {
	key []byte
}

// New derives the AES key from the configured secret.
func New(secret string) (*Encrypter, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoKey
	}
	key, err := scrypt.Key([]byte(secret), []byte("salt"), 16384, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &Encrypter{key: key}, nil
}

// Encrypt returns hex(ciphertext)|hex(iv). Every call draws a fresh IV, so
// equal plaintexts never share ciphertext.
func (e *Encrypter) Encrypt(plain string) (string, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pad([]byte(plain), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(out) + "|" + hex.EncodeToString(iv), nil
}

// Decrypt reverses Encrypt.
func (e *Encrypter) Decrypt(encrypted string) (string, error) {
	ct, iv, ok := strings.Cut(encrypted, "|")
	if !ok {
		return "", ErrMalformed
	}
	rawCT, err := hex.DecodeString(ct)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", ErrMalformed)
	}
	rawIV, err := hex.DecodeString(iv)
	if err != nil {
		return "", fmt.Errorf("decode iv: %w", ErrMalformed)
	}
	if len(rawIV) != aes.BlockSize || len(rawCT) == 0 || len(rawCT)%aes.BlockSize != 0 {
		return "", ErrMalformed
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	out := make([]byte, len(rawCT))
	cipher.NewCBCDecrypter(block, rawIV).CryptBlocks(out, rawCT)

	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// pad applies PKCS#7 padding.
func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad strips PKCS#7 padding.
func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrMalformed
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrMalformed
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrMalformed
		}
	}
	return data[:len(data)-n], nil
}
