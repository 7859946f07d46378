package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// Audit reason tags for failed logins.
const (
	ReasonUserNotFound    = "USER_NOT_FOUND"
	ReasonInvalidPassword = "INVALID_PASSWORD"
	ReasonAccountLocked   = "ACCOUNT_LOCKED"
	ReasonAccountInactive = "ACCOUNT_INACTIVE"
	ReasonTwoFactor       = "2FA_INVALID"
)

// LoginOutcome tags a non-error login result.
type LoginOutcome int

const (
	LoginSuccess LoginOutcome = iota + 1
	LoginRequiresTwoFactor
)

// LoginResult is either a full session (LoginSuccess) or a request for a
// second factor carrying only the user id (LoginRequiresTwoFactor). Failures
// are reported as errors, never as results.
type LoginResult struct {
	Outcome   LoginOutcome
	UserID    string
	User      *models.UserSummary
	Tokens    *auth.TokenPair
	SessionID string
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

type RegisterResult struct {
	User              *models.UserSummary
	VerificationToken string
}

type LoginInput struct {
	Email         string
	Password      string
	TwoFactorCode string
}

// FederatedIdentity is what a trusted OAuth gateway hands over after it has
// completed the provider handshake.
type FederatedIdentity struct {
	Provider              models.Provider
	ProviderID            string
	Email                 string
	DisplayName           string
	AvatarURL             string
	ProviderVerifiedEmail bool
}

// AuthService implements registration, password and federated login,
// logout, refresh-token rotation and email verification.
type AuthService struct {
	repos            repomanager.RepositoryManager
	hasher           *cryptox.PasswordHasher
	tokens           *auth.TokenManager
	twoFactor        *TwoFactorService
	audit            *auditor
	log              logging.Logger
	lockoutThreshold int
	sessionTTL       time.Duration
	now              func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(m repomanager.RepositoryManager, hasher *cryptox.PasswordHasher, tokens *auth.TokenManager,
	twoFactor *TwoFactorService, lockoutThreshold int, sessionTTL time.Duration, log logging.Logger) *AuthService {
	log = log.With("module", "auth")
	return &AuthService{
		repos:            m,
		hasher:           hasher,
		tokens:           tokens,
		twoFactor:        twoFactor,
		audit:            &auditor{repos: m, log: log},
		log:              log,
		lockoutThreshold: lockoutThreshold,
		sessionTTL:       sessionTTL,
		now:              time.Now,
	}
}

// Register creates an EMAIL-provider account and returns it together with the
// email verification token. Delivering the token is the caller's job.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, client ClientInfo) (*RegisterResult, error) {
	email := NormalizeEmail(in.Email)
	users := s.repos.Users(s.repos.Conn())

	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil, common.ErrEmailTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, internalError(ctx, s.log, "lookup email", err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, internalError(ctx, s.log, "hash password", err)
	}

	token, err := cryptox.GenerateRandomSecret(32)
	if err != nil {
		return nil, internalError(ctx, s.log, "generate verification token", err)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	user, err := users.Create(context.WithoutCancel(ctx), &models.User{
		Email:             email,
		PasswordHash:      hash,
		Provider:          models.ProviderEmail,
		Name:              name,
		VerificationToken: token,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrEmailTaken
		}
		return nil, internalError(ctx, s.log, "create user", err)
	}

	s.audit.record(ctx, user.ID, models.ActionRegister, models.AuditSuccess, client, map[string]any{"provider": string(models.ProviderEmail)})
	s.log.Info(ctx, "user registered", "user_id", user.ID)

	return &RegisterResult{User: user.Summary(), VerificationToken: token}, nil
}

// burnPasswordCheck spends the same effort as a real verification so that
// unknown emails cannot be told apart by response time.
func (s *AuthService) burnPasswordCheck(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(context.Background(), "authkeeper-dummy-password")
		if err != nil {
			s.log.Warn(ctx, "dummy hash unavailable", "error", err)
			return
		}
		s.dummyHash = h
	})
	if s.dummyHash != "" {
		s.hasher.Verify(ctx, password, s.dummyHash)
	}
}

// Login runs the password login state machine. It returns
// LoginRequiresTwoFactor when the account has 2FA enabled and no code was
// supplied.
func (s *AuthService) Login(ctx context.Context, in LoginInput, client ClientInfo) (*LoginResult, error) {
	users := s.repos.Users(s.repos.Conn())

	user, err := users.GetByEmail(ctx, NormalizeEmail(in.Email))
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, internalError(ctx, s.log, "lookup user", err)
	}
	if user == nil || !user.HasPassword() {
		s.burnPasswordCheck(ctx, in.Password)
		s.audit.record(ctx, "", models.ActionLogin, models.AuditFailure, client, map[string]any{"reason": ReasonUserNotFound})
		return nil, common.ErrInvalidCredentials
	}

	if err := AccountStatus(user); err != nil {
		reason := ReasonAccountLocked
		if errors.Is(err, common.ErrAccountInactive) {
			reason = ReasonAccountInactive
		}
		s.audit.record(ctx, user.ID, models.ActionLogin, models.AuditFailure, client, map[string]any{"reason": reason})
		return nil, err
	}

	if !s.hasher.Verify(ctx, in.Password, user.PasswordHash) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, s.failPassword(ctx, user, client)
	}

	if user.TwoFactorEnabled {
		if in.TwoFactorCode == "" {
			return &LoginResult{Outcome: LoginRequiresTwoFactor, UserID: user.ID}, nil
		}
		ok, err := s.twoFactor.VerifyLoginCode(ctx, user, in.TwoFactorCode, client)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.audit.record(ctx, user.ID, models.ActionLogin, models.AuditFailure, client, map[string]any{"reason": ReasonTwoFactor})
			return nil, common.ErrInvalidTwoFactorCode
		}
	}

	return s.completeLogin(ctx, user, client, map[string]any{"method": "password"})
}

// failPassword applies the failed-attempt counter and lockout in one atomic
// update, audits the failure and returns ErrInvalidCredentials.
func (s *AuthService) failPassword(ctx context.Context, user *models.User, client ClientInfo) error {
	wctx := context.WithoutCancel(ctx)

	attempts, locked, err := s.repos.Users(s.repos.Conn()).RecordFailedLogin(wctx, user.ID, s.lockoutThreshold)
	if err != nil {
		s.log.Error(ctx, "record failed login", "user_id", user.ID, "error", err)
	}
	if locked && !user.IsLocked {
		s.log.Warn(ctx, "account locked after repeated failures", "user_id", user.ID, "attempts", attempts)
	}

	s.audit.record(ctx, user.ID, models.ActionLogin, models.AuditFailure, client,
		map[string]any{"reason": ReasonInvalidPassword, "attempts": attempts, "locked": locked})

	return common.ErrInvalidCredentials
}

// issueSession mints a token pair and stores the session row through db.
func (s *AuthService) issueSession(ctx context.Context, db dbx.DBTX, user *models.User, client ClientInfo) (*auth.TokenPair, *models.Session, error) {
	pair, err := s.tokens.GeneratePair(user.ID, user.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("sign tokens: %w", err)
	}

	session, err := s.repos.Sessions(db).Create(ctx, &models.Session{
		UserID:       user.ID,
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		IPAddress:    client.IPAddress,
		UserAgent:    client.UserAgent,
		ExpiresAt:    s.now().Add(s.sessionTTL),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	return pair, session, nil
}

// completeLogin is the shared success path of password and federated login.
func (s *AuthService) completeLogin(ctx context.Context, user *models.User, client ClientInfo, metadata map[string]any) (*LoginResult, error) {
	wctx := context.WithoutCancel(ctx)

	pair, session, err := s.issueSession(wctx, s.repos.Conn(), user, client)
	if err != nil {
		return nil, internalError(ctx, s.log, "issue session", err)
	}

	at := s.now()
	if err := s.repos.Users(s.repos.Conn()).RecordSuccessfulLogin(wctx, user.ID, at); err != nil {
		s.log.Error(ctx, "record successful login", "user_id", user.ID, "error", err)
	}
	user.FailedLogins = 0
	user.LastLoginAt = &at

	s.audit.record(ctx, user.ID, models.ActionLogin, models.AuditSuccess, client, metadata)

	return &LoginResult{
		Outcome:   LoginSuccess,
		UserID:    user.ID,
		User:      user.Summary(),
		Tokens:    pair,
		SessionID: session.ID,
	}, nil
}

// Logout revokes the caller's session. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, userID, token string, client ClientInfo) error {
	n, err := s.repos.Sessions(s.repos.Conn()).RevokeByToken(context.WithoutCancel(ctx), userID, token)
	if err != nil {
		return internalError(ctx, s.log, "revoke session", err)
	}

	s.audit.record(ctx, userID, models.ActionLogout, models.AuditSuccess, client, map[string]any{"revoked": n})
	return nil
}

// LoginWithProvider finds or creates the account for a federated identity and
// then issues a session exactly like a password login. Password and 2FA
// state are never touched.
func (s *AuthService) LoginWithProvider(ctx context.Context, id FederatedIdentity, client ClientInfo) (*LoginResult, error) {
	if !id.Provider.Federated() {
		return nil, fmt.Errorf("%w: unsupported provider %q", common.ErrValidation, id.Provider)
	}
	email := NormalizeEmail(id.Email)
	if id.ProviderID == "" || email == "" {
		return nil, fmt.Errorf("%w: provider id and email are required", common.ErrValidation)
	}

	// Google only releases verified addresses; Kakao says so per account.
	vouched := id.Provider == models.ProviderGoogle || id.ProviderVerifiedEmail
	users := s.repos.Users(s.repos.Conn())
	wctx := context.WithoutCancel(ctx)

	user, err := users.FindFederated(ctx, id.Provider, id.ProviderID, email)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		name := strings.TrimSpace(id.DisplayName)
		if name == "" {
			name, _, _ = strings.Cut(email, "@")
		}
		user, err = users.Create(wctx, &models.User{
			Email:         email,
			Provider:      id.Provider,
			ProviderID:    id.ProviderID,
			Name:          name,
			ProfileImage:  id.AvatarURL,
			EmailVerified: vouched,
		})
		if errors.Is(err, common.ErrorAlreadyExists) {
			// lost a race with a concurrent first login
			user, err = users.FindFederated(ctx, id.Provider, id.ProviderID, email)
		} else if err == nil {
			s.audit.record(ctx, user.ID, models.ActionRegister, models.AuditSuccess, client, map[string]any{"provider": string(id.Provider)})
		}
		if err != nil {
			return nil, internalError(ctx, s.log, "create federated user", err)
		}

	case err != nil:
		return nil, internalError(ctx, s.log, "lookup federated user", err)

	default:
		if err := AccountStatus(user); err != nil {
			return nil, err
		}
		user.Provider = id.Provider
		user.ProviderID = id.ProviderID
		if user.Name == "" && id.DisplayName != "" {
			user.Name = id.DisplayName
		}
		if user.ProfileImage == "" {
			user.ProfileImage = id.AvatarURL
		}
		user.EmailVerified = user.EmailVerified || vouched
		if err := users.Update(wctx, user); err != nil {
			return nil, internalError(ctx, s.log, "link federated user", err)
		}
	}

	if err := AccountStatus(user); err != nil {
		return nil, err
	}

	return s.completeLogin(ctx, user, client, map[string]any{"provider": string(id.Provider)})
}

// RefreshToken rotates a session: the presented refresh token must belong to
// a live session of the same user, which is revoked and replaced in one
// transaction.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string, client ClientInfo) (*auth.TokenPair, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	session, err := s.repos.Sessions(s.repos.Conn()).FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrSessionRevoked
		}
		return nil, internalError(ctx, s.log, "lookup session", err)
	}
	if !session.Usable(s.now()) || session.UserID != claims.UserID {
		return nil, common.ErrSessionRevoked
	}

	user, err := loadUser(ctx, s.repos, s.log, session.UserID, common.ErrAuthenticationRequired)
	if err != nil {
		return nil, err
	}
	if err := AccountStatus(user); err != nil {
		return nil, err
	}

	var pair *auth.TokenPair
	err = s.repos.WithTx(context.WithoutCancel(ctx), func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repos.Sessions(tx).RevokeByToken(ctx, session.UserID, session.Token)
		if err != nil {
			return err
		}
		if n == 0 {
			// rotated concurrently
			return common.ErrSessionRevoked
		}
		pair, _, err = s.issueSession(ctx, tx, user, client)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrSessionRevoked) {
			return nil, err
		}
		return nil, internalError(ctx, s.log, "rotate session", err)
	}

	s.audit.record(ctx, user.ID, models.ActionTokenRefresh, models.AuditSuccess, client, nil)
	return pair, nil
}

// VerifyEmail marks the owner of token as verified and clears the token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string, client ClientInfo) (*models.UserSummary, error) {
	if token == "" {
		return nil, common.ErrTokenInvalid
	}
	users := s.repos.Users(s.repos.Conn())

	user, err := users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenInvalid
		}
		return nil, internalError(ctx, s.log, "lookup verification token", err)
	}

	user.EmailVerified = true
	user.VerificationToken = ""
	if err := users.Update(context.WithoutCancel(ctx), user); err != nil {
		return nil, internalError(ctx, s.log, "verify email", err)
	}

	s.audit.record(ctx, user.ID, models.ActionEmailVerify, models.AuditSuccess, client, nil)
	return user.Summary(), nil
}
