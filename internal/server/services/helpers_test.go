package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/memory"
	"github.com/dmitrijs2005/authkeeper/internal/server/twofactor"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testEncryptionKey = "test-encryption-key"
	alicePassword     = "Sup3r$ecret"
)

var testClient = ClientInfo{IPAddress: "203.0.113.7", UserAgent: "go-test"}

type testEnv struct {
	repos     *memory.RepositoryManager
	hasher    *cryptox.PasswordHasher
	tokens    *auth.TokenManager
	auth      *AuthService
	twoFactor *TwoFactorService
	profile   *ProfileService
	keys      *APIKeyService
	admin     *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repos := memory.NewRepositoryManager()
	hasher, err := cryptox.NewPasswordHasher(cryptox.AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	tokens := auth.NewTokenManager(auth.Options{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "authkeeper",
		Audience:      "authkeeper-clients",
	})
	log := logging.Discard()

	tf := NewTwoFactorService(repos, hasher, testEncryptionKey, "AuthKeeper", log)
	return &testEnv{
		repos:     repos,
		hasher:    hasher,
		tokens:    tokens,
		auth:      NewAuthService(repos, hasher, tokens, tf, 5, 7*24*time.Hour, log),
		twoFactor: tf,
		profile:   NewProfileService(repos, hasher, testEncryptionKey, &fakeAvatarStorage{}, log),
		keys:      NewAPIKeyService(repos, log),
		admin:     NewAdminService(repos, hasher, log),
	}
}

func (e *testEnv) register(t *testing.T, email string) *models.UserSummary {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterInput{Email: email, Password: alicePassword, Name: "Alice"}, testClient)
	require.NoError(t, err)
	return res.User
}

func (e *testEnv) login(t *testing.T, email string) *LoginResult {
	t.Helper()
	res, err := e.auth.Login(context.Background(), LoginInput{Email: email, Password: alicePassword}, testClient)
	require.NoError(t, err)
	require.Equal(t, LoginSuccess, res.Outcome)
	return res
}

// enableTwoFactor enrolls userID and returns the TOTP secret and backup codes.
func (e *testEnv) enableTwoFactor(t *testing.T, userID string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	enr, err := e.twoFactor.Initiate(ctx, userID)
	require.NoError(t, err)
	code, err := twofactor.GenerateCode(enr.Secret, time.Now())
	require.NoError(t, err)
	codes, err := e.twoFactor.Confirm(ctx, userID, code, testClient)
	require.NoError(t, err)
	return enr.Secret, codes
}

func (e *testEnv) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := e.repos.Users(nil).GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (e *testEnv) auditActions(t *testing.T, userID string) []models.AuditAction {
	t.Helper()
	entries, err := e.repos.AuditLogs(nil).ListForUser(context.Background(), userID, 100)
	require.NoError(t, err)
	out := make([]models.AuditAction, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeAvatarStorage struct {
	err         error
	contentType string
}

func (f *fakeAvatarStorage) PresignUpload(ctx context.Context, key, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.contentType = contentType
	return "https://s3.test/upload/" + key, nil
}

func (f *fakeAvatarStorage) ObjectURL(key string) string {
	return "https://s3.test/avatars/" + key
}

// wrongCode returns a code of the same shape that differs in every digit.
func wrongCode(code string) string {
	b := []byte(code)
	for i := range b {
		b[i] = '0' + (b[i]-'0'+5)%10
	}
	return string(b)
}
