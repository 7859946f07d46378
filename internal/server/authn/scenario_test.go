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
	"github.com/dmitrijs2005/authkeeper/internal/server/twofactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// TestAliceJourney walks one account through registration, 2FA enrollment,
// a two-step login and a password change, checking that the change revokes
// the token issued before it.
func TestAliceJourney(t *testing.T) {
	ctx := context.Background()
	client := services.ClientInfo{IPAddress: "198.51.100.1", UserAgent: "journey"}

	repos := memory.NewRepositoryManager()
	hasher, err := cryptox.NewPasswordHasher(cryptox.AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	tokens := auth.NewTokenManager(auth.Options{
		AccessSecret:  "a-secret",
		RefreshSecret: "r-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "authkeeper",
		Audience:      "authkeeper-clients",
	})
	log := logging.Discard()
	tf := services.NewTwoFactorService(repos, hasher, "journey-key", "AuthKeeper", log)
	authSvc := services.NewAuthService(repos, hasher, tokens, tf, 5, 7*24*time.Hour, log)
	profile := services.NewProfileService(repos, hasher, "journey-key", nil, log)
	authenticator := NewAuthenticator(repos, tokens, log)

	reg, err := authSvc.Register(ctx, services.RegisterInput{Email: "alice@example.com", Password: "P@ssw0rd!", Name: "Alice"}, client)
	require.NoError(t, err)

	first, err := authSvc.Login(ctx, services.LoginInput{Email: "alice@example.com", Password: "P@ssw0rd!"}, client)
	require.NoError(t, err)
	require.Equal(t, services.LoginSuccess, first.Outcome)

	p, err := authenticator.Authenticate(ctx, first.Tokens.AccessToken)
	require.NoError(t, err)
	enr, err := tf.Initiate(ctx, p.UserID)
	require.NoError(t, err)
	code, err := twofactor.GenerateCode(enr.Secret, time.Now())
	require.NoError(t, err)
	backup, err := tf.Confirm(ctx, p.UserID, code, client)
	require.NoError(t, err)
	require.Len(t, backup, 10)

	step, err := authSvc.Login(ctx, services.LoginInput{Email: "alice@example.com", Password: "P@ssw0rd!"}, client)
	require.NoError(t, err)
	assert.Equal(t, services.LoginRequiresTwoFactor, step.Outcome)
	assert.Equal(t, reg.User.ID, step.UserID)

	code, err = twofactor.GenerateCode(enr.Secret, time.Now())
	require.NoError(t, err)
	second, err := authSvc.Login(ctx, services.LoginInput{Email: "alice@example.com", Password: "P@ssw0rd!", TwoFactorCode: code}, client)
	require.NoError(t, err)
	require.Equal(t, services.LoginSuccess, second.Outcome)
	t1 := second.Tokens.AccessToken

	_, err = authenticator.Authenticate(ctx, t1)
	require.NoError(t, err)

	require.NoError(t, profile.ChangePassword(ctx, reg.User.ID, "P@ssw0rd!", "N3wP@ssw0rd!", client))

	_, err = authenticator.Authenticate(ctx, t1)
	assert.ErrorIs(t, err, common.ErrSessionRevoked)
	_, err = authenticator.Authenticate(ctx, first.Tokens.AccessToken)
	assert.ErrorIs(t, err, common.ErrSessionRevoked)

	_, err = authSvc.Login(ctx, services.LoginInput{Email: "alice@example.com", Password: "P@ssw0rd!"}, client)
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}
