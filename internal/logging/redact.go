package logging

import (
	"log/slog"
	"strings"
)

// Redacted replaces the value of any attribute whose key names a credential.
const Redacted = "[REDACTED]"

var sensitiveKeys = map[string]bool{
	"password":      true,
	"authorization": true,
	"token":         true,
	"secret":        true,
	"api_key":       true,
	"apikey":        true,
	"code":          true,
	"backup_code":   true,
}

// IsSensitive reports whether a log key names a password, token, secret, API
// key or one-time code. Keys are matched case-insensitively, including
// suffixes such as refresh_token or totp_secret.
func IsSensitive(key string) bool {
	k := strings.ToLower(key)
	if sensitiveKeys[k] {
		return true
	}
	for _, suffix := range []string{"password", "_token", "_secret", "_code"} {
		if strings.HasSuffix(k, suffix) {
			return true
		}
	}
	return false
}

// redactAttr is a slog ReplaceAttr hook.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if IsSensitive(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// redactArgs masks the values of sensitive pairs in a key-value list. The
// input is not modified.
func redactArgs(args []any) []any {
	var out []any
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || !IsSensitive(key) {
			continue
		}
		if out == nil {
			out = append([]any(nil), args...)
		}
		out[i+1] = Redacted
	}
	if out == nil {
		return args
	}
	return out
}
