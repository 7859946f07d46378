package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/authn"
	"github.com/dmitrijs2005/authkeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/memory"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Sup3r$ecret"

type apiEnv struct {
	repos   *memory.RepositoryManager
	handler http.Handler
}

func newAPIEnv(t *testing.T, limiter *ratelimit.Limiter) *apiEnv {
	t.Helper()
	return newAPIEnvWithOptions(t, RouterOptions{Limiter: limiter})
}

func newAPIEnvWithOptions(t *testing.T, opts RouterOptions) *apiEnv {
	t.Helper()
	repos := memory.NewRepositoryManager()
	hasher, err := cryptox.NewPasswordHasher(cryptox.AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	tokens := auth.NewTokenManager(auth.Options{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "authkeeper",
		Audience:      "authkeeper-clients",
	})
	log := logging.Discard()

	tf := services.NewTwoFactorService(repos, hasher, "enc-key", "AuthKeeper", log)
	h := NewHandlers(
		services.NewAuthService(repos, hasher, tokens, tf, 5, time.Hour, log),
		tf,
		services.NewProfileService(repos, hasher, "enc-key", nil, log),
		services.NewAPIKeyService(repos, log),
		log,
	)
	opts.CORSOrigins = []string{"http://localhost:5173"}
	router := NewRouter(h, authn.NewAuthenticator(repos, tokens, log), opts, log)
	return &apiEnv{repos: repos, handler: router}
}

type response struct {
	Code    int
	Header  http.Header
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Details []fieldError    `json:"details"`
}

func (e *apiEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *response {
	t.Helper()
	return e.doFrom(t, "", method, path, body, headers)
}

// doFrom sends the request from remoteAddr; empty keeps the httptest default.
func (e *apiEnv) doFrom(t *testing.T, remoteAddr, method, path string, body any, headers map[string]string) *response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	res := &response{Code: rec.Code, Header: rec.Header()}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), res), rec.Body.String())
	}
	return res
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeData[T any](t *testing.T, r *response) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.Data, &v))
	return v
}

type loginData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Requires2FA  bool   `json:"requires2FA"`
	UserID       string `json:"userId"`
}

// signup registers and logs in email, returning the access token.
func (e *apiEnv) signup(t *testing.T, email string) string {
	t.Helper()
	res := e.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": email, "password": testPassword}, nil)
	require.Equal(t, http.StatusCreated, res.Code, res.Error)
	res = e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": testPassword}, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Error)
	return decodeData[loginData](t, res).AccessToken
}
