// Package sealbox encrypts short secrets for storage using NaCl secretbox.
// Sealed values are hex(nonce) followed by hex(ciphertext).
package sealbox

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var (
	// ErrInvalidKey is returned when the key is not 32 bytes of hex
	ErrInvalidKey = errors.New("sealbox: key must be 32 bytes hex encoded")
	// ErrMalformed is returned when a sealed value cannot be decoded
	ErrMalformed = errors.New("sealbox: malformed sealed value")
	// ErrOpenFailed is returned when authentication of the ciphertext fails
	ErrOpenFailed = errors.New("sealbox: message authentication failed")
)

// Box seals and opens values with a fixed key
type Box struct {
	key [keySize]byte
}

// New creates a Box from a hex encoded 32-byte key
func New(hexKey string) (*Box, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != keySize {
		return nil, ErrInvalidKey
	}
	b := &Box{}
	copy(b.key[:], raw)
	return b, nil
}

// Seal encrypts plaintext with a fresh random nonce
func (b *Box) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nil, []byte(plaintext), &nonce, &b.key)
	return hex.EncodeToString(nonce[:]) + hex.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal
func (b *Box) Open(sealed string) (string, error) {
	if len(sealed) < nonceSize*2+secretbox.Overhead*2 {
		return "", ErrMalformed
	}
	nonceBytes, err := hex.DecodeString(sealed[:nonceSize*2])
	if err != nil {
		return "", ErrMalformed
	}
	ciphertext, err := hex.DecodeString(sealed[nonceSize*2:])
	if err != nil {
		return "", ErrMalformed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], nonceBytes)

	plaintext, ok := secretbox.Open(nil, ciphertext, &nonce, &b.key)
	if !ok {
		return "", ErrOpenFailed
	}
	return string(plaintext), nil
}
