package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

const (
	piiNonceSize = 16
	piiTagSize   = 16
)

func newPIICipher(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, piiNonceSize)
}

// EncryptPII encrypts plaintext with AES-GCM under key and returns the
// envelope "nonce:tag:ciphertext", each field lowercase hex.
//
// A fresh random nonce is drawn on every call, so encrypting the same value
// twice produces two different envelopes. The key must be 32 bytes for
// AES-256; use NormalizeKey on configured secrets.
//
// Example:
//
//	key := cryptox.NormalizeKey(os.Getenv("ENCRYPTION_KEY"), 32)
//	env, err := cryptox.EncryptPII("+1-202-555-0100", key)
//	if err != nil {
//	    return err
//	}
//	// env == "3f1c...:9ab0...:55e2..."
func EncryptPII(plaintext string, key []byte) (string, error) {
	aead, err := newPIICipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}

	nonce, err := GenerateRandBytes(piiNonceSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-piiTagSize], sealed[len(sealed)-piiTagSize:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ct),
	}, ":"), nil
}

// DecryptPII reverses EncryptPII. Any malformed envelope, wrong key or
// failed integrity check yields an error wrapping common.ErrDecryption;
// partial plaintext is never returned.
func DecryptPII(envelope string, key []byte) (string, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: envelope must have 3 fields, got %d", common.ErrDecryption, len(parts))
	}

	nonce, err := decodeHexField(parts[0])
	if err != nil || len(nonce) != piiNonceSize {
		return "", fmt.Errorf("%w: bad nonce", common.ErrDecryption)
	}
	tag, err := decodeHexField(parts[1])
	if err != nil || len(tag) != piiTagSize {
		return "", fmt.Errorf("%w: bad tag", common.ErrDecryption)
	}
	ct, err := decodeHexField(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext", common.ErrDecryption)
	}

	aead, err := newPIICipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	plaintext, err := aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: integrity check failed", common.ErrDecryption)
	}

	return string(plaintext), nil
}

// decodeHexField accepts only the canonical lowercase form EncryptPII
// produces, so an envelope that differs by a single character never
// decodes to the same bytes.
func decodeHexField(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if hex.EncodeToString(b) != s {
		return nil, fmt.Errorf("non-canonical hex")
	}
	return b, nil
}
