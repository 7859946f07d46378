package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// parseEnv overlays Config with environment variables. Unset or empty
// variables leave the current value alone; malformed numbers and durations
// panic, as bad JSON does.
//
//	HTTP_ADDR, GRPC_ADDR, DATABASE_URL, DEV_MODE (bool)
//	ENCRYPTION_KEY, JWT_SECRET, JWT_REFRESH_SECRET, GATEWAY_SECRET
//	ACCESS_TOKEN_TTL, REFRESH_TOKEN_TTL, SESSION_TTL (Go durations)
//	TOKEN_ISSUER, TOKEN_AUDIENCE, TOTP_ISSUER
//	PASSWORD_ALGORITHM, BCRYPT_COST, LOCKOUT_THRESHOLD
//	REDIS_ADDR, RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, CORS_ORIGIN (comma separated)
//	TRUSTED_PROXIES (comma separated IPs or CIDRs)
//	S3_ROOT_USER, S3_ROOT_PASSWORD, S3_BUCKET, S3_REGION, S3_BASE_ENDPOINT
//	LOG_FORMAT
func parseEnv(c *Config) {
	envString("HTTP_ADDR", &c.EndpointAddrHTTP)
	envString("GRPC_ADDR", &c.EndpointAddrGRPC)
	envString("DATABASE_URL", &c.DatabaseDSN)
	envBool("DEV_MODE", &c.DevMode)

	envString("ENCRYPTION_KEY", &c.EncryptionKey)
	envString("JWT_SECRET", &c.AccessTokenSecret)
	envString("JWT_REFRESH_SECRET", &c.RefreshTokenSecret)
	envString("GATEWAY_SECRET", &c.GatewaySecret)

	envDuration("ACCESS_TOKEN_TTL", &c.AccessTokenValidityDuration)
	envDuration("REFRESH_TOKEN_TTL", &c.RefreshTokenValidityDuration)
	envDuration("SESSION_TTL", &c.SessionValidityDuration)
	envString("TOKEN_ISSUER", &c.TokenIssuer)
	envString("TOKEN_AUDIENCE", &c.TokenAudience)
	envString("TOTP_ISSUER", &c.TOTPIssuer)

	envString("PASSWORD_ALGORITHM", &c.PasswordAlgorithm)
	envInt("BCRYPT_COST", &c.BcryptCost)
	envInt("LOCKOUT_THRESHOLD", &c.LockoutThreshold)

	envString("REDIS_ADDR", &c.RedisAddr)
	envInt("RATE_LIMIT_REQUESTS", &c.RateLimitRequests)
	envDuration("RATE_LIMIT_WINDOW", &c.RateLimitWindow)
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		c.TrustedProxies = splitList(v)
	}

	envString("S3_ROOT_USER", &c.S3RootUser)
	envString("S3_ROOT_PASSWORD", &c.S3RootPassword)
	envString("S3_BUCKET", &c.S3Bucket)
	envString("S3_REGION", &c.S3Region)
	envString("S3_BASE_ENDPOINT", &c.S3BaseEndpoint)

	envString("LOG_FORMAT", &c.LogFormat)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(err)
	}
	*dst = n
}

func envBool(key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(err)
	}
	*dst = b
}

func envDuration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
