package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// DefaultSaltBytes is the random byte count behind a generated salt.
const DefaultSaltBytes = 16

// HashPassword returns hex(sha256(salt + password)), the format stored in config.
func HashPassword(password, salt string) string {
	sum := sha256.Sum256([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}

// GenerateSalt returns n random bytes, base64 encoded.
func GenerateSalt(n int) (string, error) {
	if n <= 0 {
		n = DefaultSaltBytes
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// VerifyPassword compares in constant time. Stored hashes are matched case-insensitively.
func VerifyPassword(password, salt, hash string) bool {
	got := HashPassword(password, salt)
	want := strings.ToLower(strings.TrimSpace(hash))
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
