package httpapi

import (
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/authkeeper/internal/server/ratelimit"
)

// rateLimit counts requests per client IP. RemoteAddr is only rewritten
// from forwarding headers by trustedRealIP, so a client cannot pick its own
// key. When the counter store is unreachable requests are let through.
func rateLimit(l *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), clientIP(r))
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			reset := strconv.Itoa(int(res.Reset.Seconds()))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", reset)

			if !res.Allowed {
				w.Header().Set("Retry-After", reset)
				writeJSON(w, http.StatusTooManyRequests, envelope{Error: "too many requests, try again later"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
