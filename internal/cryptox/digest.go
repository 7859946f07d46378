package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// HashOneWay returns the hex SHA-256 digest of value. Only suitable for
// inputs that are already high entropy (API keys, backup codes), never for
// passwords.
func HashOneWay(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeEqual compares a and b without leaking the position of the
// first difference.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NormalizeKey turns a configured secret into exactly size bytes: short
// secrets are right-padded with '0', long ones are truncated.
func NormalizeKey(secret string, size int) []byte {
	if len(secret) < size {
		secret += strings.Repeat("0", size-len(secret))
	}
	return []byte(secret[:size])
}
