// Package util provides utility functions shared across the feed service.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateNonce returns a random hex nonce suitable for one-time use in a
// signed request. Uses crypto/rand: nonces guard against replays, so they
// must not be predictable.
func GenerateNonce() string {
	return GenerateRandomHex(16)
}

// GenerateRandomHex generates a cryptographically random hexadecimal string
// encoding length random bytes.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}
	buf := make([]byte, length)
	// rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
