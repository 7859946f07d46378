package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/authn"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// Handlers adapts the services to HTTP. Request bodies are validated here,
// before any service is called.
type Handlers struct {
	auth      *services.AuthService
	twoFactor *services.TwoFactorService
	profile   *services.ProfileService
	keys      *services.APIKeyService
	log       logging.Logger
	started   time.Time
}

func NewHandlers(a *services.AuthService, tf *services.TwoFactorService, p *services.ProfileService, k *services.APIKeyService, log logging.Logger) *Handlers {
	return &Handlers{auth: a, twoFactor: tf, profile: p, keys: k, log: log.With("module", "http"), started: time.Now()}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Seconds(),
	})
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Register(r.Context(), services.RegisterInput{Email: req.Email, Password: req.Password, Name: req.Name}, clientInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "registration complete", Data: res.User})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), services.LoginInput{Email: req.Email, Password: req.Password, TwoFactorCode: req.TwoFactorCode}, clientInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if res.Outcome == services.LoginRequiresTwoFactor {
		writeJSON(w, http.StatusOK, envelope{Success: true, Message: "two-factor code required", Data: map[string]any{
			"requires2FA": true,
			"userId":      res.UserID,
		}})
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"user":         res.User,
		"accessToken":  res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
	})
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	pair, err := h.auth.RefreshToken(r.Context(), req.RefreshToken, clientInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, pair)
}

func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.VerifyEmail(r.Context(), r.URL.Query().Get("token"), clientInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if err := h.auth.Logout(r.Context(), p.UserID, p.Token, clientInfo(r)); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "logged out")
}

// Me reports the caller, if any. It never fails on bad credentials.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := authn.PrincipalFrom(r.Context())
	if !ok {
		writeData(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	view, err := h.profile.GetProfile(r.Context(), p.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"authenticated": true, "user": view.UserSummary})
}

func (h *Handlers) InitTwoFactor(w http.ResponseWriter, r *http.Request) {
	enr, err := h.twoFactor.Initiate(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, enr)
}

func (h *Handlers) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req enableTwoFactorRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	codes, err := h.twoFactor.Confirm(r.Context(), principal(r).UserID, req.Token, clientInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "two-factor authentication enabled", Data: map[string]any{"backupCodes": codes}})
}

func (h *Handlers) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.twoFactor.Disable(r.Context(), principal(r).UserID, req.Password, clientInfo(r)); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "two-factor authentication disabled")
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	view, err := h.profile.GetProfile(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd services.ProfileUpdate
	if err := decodeBody(w, r, &upd); err != nil {
		writeError(w, err)
		return
	}
	if err := validateProfileUpdate(&upd); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.profile.UpdateProfile(r.Context(), principal(r).UserID, upd, clientInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	if err := h.profile.ChangePassword(r.Context(), principal(r).UserID, req.CurrentPassword, req.NewPassword, clientInfo(r)); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "password changed, please log in again")
}

func (h *Handlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.profile.DeleteAccount(r.Context(), principal(r).UserID, req.Password, clientInfo(r)); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "account deleted")
}

func (h *Handlers) CreateAvatarUpload(w http.ResponseWriter, r *http.Request) {
	var req avatarRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	up, err := h.profile.CreateAvatarUpload(r.Context(), principal(r).UserID, req.ContentType, clientInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, up)
}

func (h *Handlers) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.keys.Create(r.Context(), principal(r).UserID, services.CreateAPIKeyInput{
		Name:      req.Name,
		Scopes:    req.Scopes,
		ExpiresAt: req.ExpiresAt,
	}, clientInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Message: "store this key now, it will not be shown again", Data: created})
}

func (h *Handlers) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, keys)
}

func (h *Handlers) DeactivateAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := h.keys.Deactivate(r.Context(), principal(r).UserID, chi.URLParam(r, "id"), clientInfo(r)); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "api key deactivated")
}

func (h *Handlers) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := h.keys.Delete(r.Context(), principal(r).UserID, chi.URLParam(r, "id"), clientInfo(r)); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "api key deleted")
}

// IntrospectAPIKey echoes the identity a presented API key resolves to.
func (h *Handlers) IntrospectAPIKey(w http.ResponseWriter, r *http.Request) {
	id, _ := authn.APIKeyFrom(r.Context())
	writeData(w, http.StatusOK, id)
}
