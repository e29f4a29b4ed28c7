package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// KeyPrefix starts every raw key issued by the admin API.
	KeyPrefix = "tq_live_"

	secretBytes = 32
)

// GenerateAPIKey returns a raw key embedding keyID and its stored hash.
// The raw key is shown to the caller once and never persisted.
func GenerateAPIKey(keyID string) (raw string, hash string, err error) {
	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}
	label := strings.ToLower(strings.TrimPrefix(keyID, "key_"))
	raw = fmt.Sprintf("%s%s_%s", KeyPrefix, label, hex.EncodeToString(secret))
	return raw, HashAPIKey(raw), nil
}

// HashAPIKey is the lookup form of a raw key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
