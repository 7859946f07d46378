package httpapi

import (
	"net/http"
	"net/netip"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/authn"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	CORSOrigins []string
	// Limiter guards /api; nil disables rate limiting.
	Limiter *ratelimit.Limiter
	// TrustedProxies may set the client address via forwarding headers.
	TrustedProxies []netip.Prefix
}

func NewRouter(h *Handlers, a *authn.Authenticator, opts RouterOptions, log logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(trustedRealIP(opts.TrustedProxies))
	r.Use(accessLog(log.With("module", "http_access")))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Error: "resource not found"})
	})

	r.Get("/health", h.Health)

	r.Route("/api", func(api chi.Router) {
		if opts.Limiter != nil {
			api.Use(rateLimit(opts.Limiter))
		}

		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", h.Register)
			ar.Post("/login", h.Login)
			ar.Post("/refresh", h.Refresh)
			ar.Get("/verify-email", h.VerifyEmail)
			ar.With(optionalAuth(a)).Get("/me", h.Me)

			ar.Group(func(pr chi.Router) {
				pr.Use(requireAuth(a))
				pr.Post("/logout", h.Logout)
				pr.Post("/2fa/init", h.InitTwoFactor)
				pr.Post("/2fa/enable", h.EnableTwoFactor)
				pr.Post("/2fa/disable", h.DisableTwoFactor)
			})
		})

		api.Route("/profile", func(pr chi.Router) {
			pr.Use(requireAuth(a))
			pr.Get("/", h.GetProfile)
			pr.Put("/", h.UpdateProfile)
			pr.Delete("/", h.DeleteAccount)
			pr.Post("/password", h.ChangePassword)
			pr.Post("/avatar", h.CreateAvatarUpload)
		})

		api.Route("/keys", func(kr chi.Router) {
			kr.With(requireAPIKey(h.keys), requireScope(models.ScopeRead)).Get("/introspect", h.IntrospectAPIKey)

			kr.Group(func(pr chi.Router) {
				pr.Use(requireAuth(a))
				pr.Post("/", h.CreateAPIKey)
				pr.Get("/", h.ListAPIKeys)
				pr.Patch("/{id}/deactivate", h.DeactivateAPIKey)
				pr.Delete("/{id}", h.DeleteAPIKey)
			})
		})
	})

	return r
}
