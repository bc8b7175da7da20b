package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecret returns n cryptographically random bytes, hex encoded
func GenerateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateServiceSecrets returns a JWT signing secret and a token encryption key
func GenerateServiceSecrets() (jwtSecret, encryptionKey string, err error) {
	jwtSecret, err = GenerateSecret(32) // 256-bit
	if err != nil {
		return "", "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	encryptionKey, err = GenerateSecret(32) // secretbox key size
	if err != nil {
		return "", "", fmt.Errorf("failed to generate encryption key: %w", err)
	}

	return jwtSecret, encryptionKey, nil
}
