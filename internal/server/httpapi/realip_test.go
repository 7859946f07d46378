package httpapi

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrustedRealIP(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.168.1.1/32"),
	}

	tests := []struct {
		name    string
		trusted []netip.Prefix
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "no trusted proxies",
			remote:  "10.0.0.1:1234",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.1"},
			want:    "10.0.0.1",
		},
		{
			name:    "untrusted peer",
			trusted: trusted,
			remote:  "198.51.100.2:1234",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.1", "X-Real-IP": "203.0.113.2"},
			want:    "198.51.100.2",
		},
		{
			name:    "trusted peer",
			trusted: trusted,
			remote:  "10.0.0.1:1234",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.1"},
			want:    "203.0.113.1",
		},
		{
			name:    "skips trusted hops",
			trusted: trusted,
			remote:  "10.0.0.1:1234",
			headers: map[string]string{"X-Forwarded-For": "1.1.1.1, 203.0.113.1, 192.168.1.1,"},
			want:    "203.0.113.1",
		},
		{
			name:    "malformed hop",
			trusted: trusted,
			remote:  "10.0.0.1:1234",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.1, not-an-ip"},
			want:    "10.0.0.1",
		},
		{
			name:    "real ip fallback",
			trusted: trusted,
			remote:  "10.0.0.1:1234",
			headers: map[string]string{"X-Real-IP": "203.0.113.5"},
			want:    "203.0.113.5",
		},
		{
			name:    "only trusted hops",
			trusted: trusted,
			remote:  "10.0.0.1:1234",
			headers: map[string]string{"X-Forwarded-For": "10.2.2.2"},
			want:    "10.0.0.1",
		},
		{
			name:    "ipv6 client",
			trusted: trusted,
			remote:  "10.0.0.1:1234",
			headers: map[string]string{"X-Forwarded-For": "2001:db8::1"},
			want:    "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := trustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = clientIP(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}
