package authn

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/memory"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const password = "Sup3r$ecret"

type fixture struct {
	repos  *memory.RepositoryManager
	tokens *auth.TokenManager
	svc    *services.AuthService
	authn  *Authenticator
}

func newFixture(t *testing.T) *fixture {
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
	return &fixture{
		repos:  repos,
		tokens: tokens,
		svc:    services.NewAuthService(repos, hasher, tokens, tf, 5, time.Minute, log),
		authn:  NewAuthenticator(repos, tokens, log),
	}
}

func (f *fixture) login(t *testing.T, email string) *services.LoginResult {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Register(ctx, services.RegisterInput{Email: email, Password: password}, services.ClientInfo{})
	require.NoError(t, err)
	res, err := f.svc.Login(ctx, services.LoginInput{Email: email, Password: password}, services.ClientInfo{})
	require.NoError(t, err)
	return res
}

func TestAuthenticate_Success(t *testing.T) {
	f := newFixture(t)
	res := f.login(t, "alice@example.com")
	at := time.Now().Add(10 * time.Second)
	f.authn.now = func() time.Time { return at }

	p, err := f.authn.Authenticate(context.Background(), res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, &Principal{UserID: res.UserID, Email: "alice@example.com", SessionID: res.SessionID, Token: res.Tokens.AccessToken}, p)

	s, err := f.repos.Sessions(nil).FindByToken(context.Background(), res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.True(t, s.LastActivityAt.Equal(at))
}

func TestAuthenticate_Rejections(t *testing.T) {
	f := newFixture(t)
	res := f.login(t, "alice@example.com")
	ctx := context.Background()

	_, err := f.authn.Authenticate(ctx, "")
	assert.ErrorIs(t, err, common.ErrAuthenticationRequired)

	_, err = f.authn.Authenticate(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, common.ErrTokenInvalid)

	_, err = f.authn.Authenticate(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenTypeMismatch)

	orphan, err := f.tokens.GenerateAccessToken(res.UserID, "alice@example.com")
	require.NoError(t, err)
	_, err = f.authn.Authenticate(ctx, orphan)
	assert.ErrorIs(t, err, common.ErrSessionRevoked, "a valid signature without a session is rejected")
}

func TestAuthenticate_SessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("expired session", func(t *testing.T) {
		res := f.login(t, "alice@example.com")
		f.authn.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		defer func() { f.authn.now = time.Now }()

		_, err := f.authn.Authenticate(ctx, res.Tokens.AccessToken)
		assert.ErrorIs(t, err, common.ErrSessionRevoked)
	})

	t.Run("logged out", func(t *testing.T) {
		res := f.login(t, "bob@example.com")
		require.NoError(t, f.svc.Logout(ctx, res.UserID, res.Tokens.AccessToken, services.ClientInfo{}))

		_, err := f.authn.Authenticate(ctx, res.Tokens.AccessToken)
		assert.ErrorIs(t, err, common.ErrSessionRevoked)
	})

	t.Run("inactive account", func(t *testing.T) {
		res := f.login(t, "carol@example.com")
		u, err := f.repos.Users(nil).GetByID(ctx, res.UserID)
		require.NoError(t, err)
		u.IsActive = false
		require.NoError(t, f.repos.Users(nil).Update(ctx, u))

		_, err = f.authn.Authenticate(ctx, res.Tokens.AccessToken)
		assert.ErrorIs(t, err, common.ErrAccountInactive)
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer abc.def", "abc.def", true},
		{"Bearer   abc ", "abc", true},
		{"Bearer ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"", "", false},
		{"abc.def", "", false},
	}
	for _, tt := range tests {
		got, err := BearerToken(tt.header)
		if tt.ok {
			require.NoError(t, err, tt.header)
			assert.Equal(t, tt.want, got)
		} else {
			assert.ErrorIs(t, err, common.ErrAuthenticationRequired, tt.header)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	_, ok := PrincipalFrom(ctx)
	assert.False(t, ok)
	_, ok = APIKeyFrom(ctx)
	assert.False(t, ok)

	p := &Principal{UserID: "u1"}
	got, ok := PrincipalFrom(WithPrincipal(ctx, p))
	assert.True(t, ok)
	assert.Same(t, p, got)

	id := &services.APIKeyIdentity{UserID: "u1", Scopes: []string{"read"}}
	gotID, ok := APIKeyFrom(WithAPIKey(ctx, id))
	assert.True(t, ok)
	assert.Same(t, id, gotID)
}
