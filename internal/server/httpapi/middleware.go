package httpapi

import (
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/authn"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/go-chi/chi/v5/middleware"
)

// clientIP returns the remote address without its port. trustedRealIP has
// already replaced RemoteAddr when a trusted proxy forwarded the request.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func clientInfo(r *http.Request) services.ClientInfo {
	return services.ClientInfo{IPAddress: clientIP(r), UserAgent: r.UserAgent()}
}

func accessLog(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Info(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// requireAuth rejects requests without a valid bearer session.
func requireAuth(a *authn.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.AuthenticateHeader(r.Context(), r.Header.Get(common.AuthorizationHeaderName))
			if err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(authn.WithPrincipal(r.Context(), p)))
		})
	}
}

// optionalAuth attaches a principal when the credentials check out and
// otherwise passes the request through untouched.
func optionalAuth(a *authn.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, err := a.AuthenticateHeader(r.Context(), r.Header.Get(common.AuthorizationHeaderName)); err == nil {
				r = r.WithContext(authn.WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requireAPIKey(keys *services.APIKeyService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := keys.Validate(r.Context(), r.Header.Get(common.APIKeyHeaderName))
			if err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(authn.WithAPIKey(r.Context(), id)))
		})
	}
}

// requireScope must run after requireAPIKey.
func requireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := authn.APIKeyFrom(r.Context())
			if !ok {
				writeError(w, common.ErrAuthenticationRequired)
				return
			}
			if !id.HasScope(scope) {
				writeJSON(w, http.StatusForbidden, envelope{Error: "api key lacks scope " + scope})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// principal returns the caller attached by requireAuth. Handlers behind
// requireAuth can rely on it being present.
func principal(r *http.Request) *authn.Principal {
	p, _ := authn.PrincipalFrom(r.Context())
	return p
}
