package cryptox

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/bits"
)

// GenerateRandBytes returns size bytes read from crypto/rand.
func GenerateRandBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateRandomSecret generates a random hexadecimal string of the given
// size. The size parameter specifies the number of random bytes, so the
// resulting string is twice as long.
//
// Example:
//
//	s, err := GenerateRandomSecret(32)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(s) // e.g., "9f2d4c3a5e6b1a7d..."
func GenerateRandomSecret(size int) (string, error) {
	b, err := GenerateRandBytes(size)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SecureRandomInt returns an integer in [min, max] drawn from crypto/rand.
//
// Just enough bytes to cover the range are read big-endian and reduced
// modulo the range size. When min == max, min is returned without touching
// the random source.
func SecureRandomInt(min, max int64) (int64, error) {
	if max < min {
		return 0, fmt.Errorf("invalid range [%d, %d]", min, max)
	}
	if min == max {
		return min, nil
	}

	// wraps to 0 only for the full 64-bit range
	span := uint64(max) - uint64(min) + 1

	width := 8
	if span != 0 {
		width = (bits.Len64(span-1) + 7) / 8
	}

	buf := make([]byte, 8)
	if _, err := rand.Read(buf[8-width:]); err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint64(buf)
	if span != 0 {
		n %= span
	}

	return int64(uint64(min) + n), nil
}

// WipeByteArray overwrites the contents of b with zeros. It is used to
// drop passwords read from a terminal as soon as they have been hashed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
