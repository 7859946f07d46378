package cryptox

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_Bcrypt(t *testing.T) {
	h, err := NewPasswordHasher(AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	ctx := context.Background()

	h1, err := h.Hash(ctx, "Str0ng!Pass")
	require.NoError(t, err)
	h2, err := h.Hash(ctx, "Str0ng!Pass")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(h1, "$2"))
	assert.NotEqual(t, h1, h2, "salted hashes must differ")
	assert.True(t, h.Verify(ctx, "Str0ng!Pass", h1))
	assert.True(t, h.Verify(ctx, "Str0ng!Pass", h2))
	assert.False(t, h.Verify(ctx, "wrong", h1))
}

func TestPasswordHasher_Argon2id(t *testing.T) {
	h, err := NewPasswordHasher(AlgorithmArgon2id, 0)
	require.NoError(t, err)
	h.argon = Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	ctx := context.Background()

	h1, err := h.Hash(ctx, "Str0ng!Pass")
	require.NoError(t, err)
	h2, err := h.Hash(ctx, "Str0ng!Pass")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(h1, "$argon2id$v=19$m=8192,t=1,p=1$"))
	assert.NotEqual(t, h1, h2)
	assert.True(t, h.Verify(ctx, "Str0ng!Pass", h1))
	assert.False(t, h.Verify(ctx, "Str0ng!Pass!", h1))
}

func TestPasswordHasher_VerifiesAcrossAlgorithms(t *testing.T) {
	ctx := context.Background()
	b, err := NewPasswordHasher(AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	a, err := NewPasswordHasher(AlgorithmArgon2id, 0)
	require.NoError(t, err)
	a.argon.Memory = 8 * 1024

	legacy, err := b.Hash(ctx, "pw")
	require.NoError(t, err)
	assert.True(t, a.Verify(ctx, "pw", legacy))
}

func TestPasswordHasher_VerifyRejectsGarbage(t *testing.T) {
	h, err := NewPasswordHasher(AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	ctx := context.Background()

	for _, hash := range []string{"", "plain", "$argon2id$broken", "$argon2id$v=19$m=1,t=1,p=1$!!$!!", "$2a$nope"} {
		assert.False(t, h.Verify(ctx, "pw", hash), hash)
	}
}

func TestPasswordHasher_CancelledContext(t *testing.T) {
	h, err := NewPasswordHasher(AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)

	// occupy every slot so the next caller has to wait
	require.NoError(t, h.slots.Acquire(context.Background(), h.maxSlots))
	defer h.slots.Release(h.maxSlots)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = h.Hash(ctx, "pw")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, h.Verify(ctx, "pw", "$2a$04$abc"))
}

func TestNewPasswordHasher_Invalid(t *testing.T) {
	_, err := NewPasswordHasher("md5", 10)
	assert.Error(t, err)
	_, err = NewPasswordHasher(AlgorithmBcrypt, 100)
	assert.Error(t, err)
}
