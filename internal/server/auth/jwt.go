// Package auth issues and verifies the JWTs that back a session: a
// short-lived access token and a long-lived refresh token, each signed with
// its own HS256 secret.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType is signed into every token so one kind cannot stand in for the
// other.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// secretSize is the HS256 key length secrets are normalized to.
const secretSize = 32

// Claims are the registered claims plus the authkeeper payload.
type Claims struct {
	jwt.RegisteredClaims
	UserID string    `json:"userId"`
	Email  string    `json:"email"`
	Type   TokenType `json:"type"`
}

// TokenPair bundles the two tokens minted for one session.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Options configure a TokenManager.
type Options struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	audience      string
	now           func() time.Time
}

func NewTokenManager(o Options) *TokenManager {
	return &TokenManager{
		accessSecret:  cryptox.NormalizeKey(o.AccessSecret, secretSize),
		refreshSecret: cryptox.NormalizeKey(o.RefreshSecret, secretSize),
		accessTTL:     o.AccessTTL,
		refreshTTL:    o.RefreshTTL,
		issuer:        o.Issuer,
		audience:      o.Audience,
		now:           time.Now,
	}
}

// GeneratePair mints an access and a refresh token for the user.
func (m *TokenManager) GeneratePair(userID, email string) (*TokenPair, error) {
	access, err := m.generate(userID, email, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := m.generate(userID, email, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (m *TokenManager) GenerateAccessToken(userID, email string) (string, error) {
	return m.generate(userID, email, TokenTypeAccess)
}

func (m *TokenManager) GenerateRefreshToken(userID, email string) (string, error) {
	return m.generate(userID, email, TokenTypeRefresh)
}

// VerifyAccessToken checks signature, issuer, audience, expiry and that the
// token is an access token.
func (m *TokenManager) VerifyAccessToken(token string) (*Claims, error) {
	return m.verify(token, TokenTypeAccess)
}

// VerifyRefreshToken is VerifyAccessToken for refresh tokens.
func (m *TokenManager) VerifyRefreshToken(token string) (*Claims, error) {
	return m.verify(token, TokenTypeRefresh)
}

func (m *TokenManager) generate(userID, email string, typ TokenType) (string, error) {
	secret, ttl := m.accessSecret, m.accessTTL
	if typ == TokenTypeRefresh {
		secret, ttl = m.refreshSecret, m.refreshTTL
	}

	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
		Email:  email,
		Type:   typ,
	})

	return token.SignedString(secret)
}

// verify picks the key from the declared type, so a token only verifies
// under the secret of the kind it claims to be. The expected type is
// compared only after the signature held.
func (m *TokenManager) verify(tokenString string, want TokenType) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		switch claims.Type {
		case TokenTypeAccess:
			return m.accessSecret, nil
		case TokenTypeRefresh:
			return m.refreshSecret, nil
		default:
			return nil, common.ErrTokenInvalid
		}
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrTokenInvalid
	}

	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrTokenInvalid
	}
	if claims.Type != want {
		return nil, common.ErrTokenTypeMismatch
	}

	return claims, nil
}
