// Package authn resolves request credentials into an authenticated
// principal. It is transport-agnostic: the HTTP middleware and the gRPC
// interceptor both call Authenticate.
package authn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string
	Email     string
	SessionID string
	Token     string
}

type Authenticator struct {
	repos  repomanager.RepositoryManager
	tokens *auth.TokenManager
	log    logging.Logger
	now    func() time.Time
}

func NewAuthenticator(m repomanager.RepositoryManager, tokens *auth.TokenManager, log logging.Logger) *Authenticator {
	return &Authenticator{repos: m, tokens: tokens, log: log.With("module", "authn"), now: time.Now}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, error) {
	if len(header) < len(common.BearerPrefix) || !strings.EqualFold(header[:len(common.BearerPrefix)], common.BearerPrefix) {
		return "", common.ErrAuthenticationRequired
	}
	token := strings.TrimSpace(header[len(common.BearerPrefix):])
	if token == "" {
		return "", common.ErrAuthenticationRequired
	}
	return token, nil
}

// Authenticate checks an access token against its signature, its session
// row and the owning account.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, common.ErrAuthenticationRequired
	}

	claims, err := a.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}

	session, err := a.repos.Sessions(a.repos.Conn()).FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrSessionRevoked
		}
		a.log.Error(ctx, "lookup session", "error", err)
		return nil, common.ErrorInternal
	}
	now := a.now()
	if !session.Usable(now) || session.UserID != claims.UserID {
		return nil, common.ErrSessionRevoked
	}

	user, err := a.repos.Users(a.repos.Conn()).GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAuthenticationRequired
		}
		a.log.Error(ctx, "lookup user", "error", err)
		return nil, common.ErrorInternal
	}
	if err := services.AccountStatus(user); err != nil {
		return nil, err
	}

	if err := a.repos.Sessions(a.repos.Conn()).Touch(context.WithoutCancel(ctx), session.ID, now); err != nil {
		a.log.Warn(ctx, "touch session", "session_id", session.ID, "error", err)
	}

	return &Principal{UserID: user.ID, Email: user.Email, SessionID: session.ID, Token: token}, nil
}

// AuthenticateHeader is Authenticate for a raw authorization header value.
func (a *Authenticator) AuthenticateHeader(ctx context.Context, header string) (*Principal, error) {
	token, err := BearerToken(header)
	if err != nil {
		return nil, err
	}
	return a.Authenticate(ctx, token)
}
