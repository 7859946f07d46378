package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempEnv(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func Test_parseEnv(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "enc")
	t.Setenv("JWT_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")
	t.Setenv("ACCESS_TOKEN_TTL", "10m")
	t.Setenv("SESSION_TTL", "24h")
	t.Setenv("LOCKOUT_THRESHOLD", "7")
	t.Setenv("CORS_ORIGIN", "https://a.example, https://b.example,")
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("GATEWAY_SECRET", "gw")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.10")

	var c Config
	c.LoadDefaults()
	parseEnv(&c)

	assert.Equal(t, "enc", c.EncryptionKey)
	assert.Equal(t, "access", c.AccessTokenSecret)
	assert.Equal(t, "refresh", c.RefreshTokenSecret)
	assert.Equal(t, 10*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, 24*time.Hour, c.SessionValidityDuration)
	assert.Equal(t, 7, c.LockoutThreshold)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins)
	assert.Equal(t, "postgres://env", c.DatabaseDSN)
	assert.True(t, c.DevMode)
	assert.Equal(t, "gw", c.GatewaySecret)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, c.TrustedProxies)
	// untouched
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenValidityDuration)
}

func Test_parseEnv_MalformedPanics(t *testing.T) {
	t.Setenv("BCRYPT_COST", "twelve")
	var c Config
	require.Panics(t, func() { parseEnv(&c) })
}

func Test_parseEnvFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("explicit file loads", func(t *testing.T) {
		t.Setenv("TOTP_ISSUER", "")
		require.NoError(t, os.Unsetenv("TOTP_ISSUER"))
		os.Args = []string{"testbin", "-env", writeTempEnv(t, "TOTP_ISSUER=FromDotenv\n")}

		parseEnvFile()
		assert.Equal(t, "FromDotenv", os.Getenv("TOTP_ISSUER"))
	})

	t.Run("explicit missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-env", filepath.Join(t.TempDir(), "missing.env")}
		require.Panics(t, parseEnvFile)
	})

	t.Run("default file may be absent", func(t *testing.T) {
		os.Args = []string{"testbin"}
		t.Chdir(t.TempDir())
		require.NotPanics(t, parseEnvFile)
	})
}
