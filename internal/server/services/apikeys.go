package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

const (
	apiKeyBytes      = 32
	apiKeyPreviewLen = 8
	minKeyNameLen    = 3
)

type CreateAPIKeyInput struct {
	Name      string
	Scopes    []string
	ExpiresAt *time.Time
}

// CreatedAPIKey holds the only copy of the plaintext key that ever leaves
// the server.
type CreatedAPIKey struct {
	Key      string         `json:"apiKey"`
	Metadata *models.APIKey `json:"metadata"`
}

// APIKeyIdentity is what a validated key resolves to.
type APIKeyIdentity struct {
	UserID string   `json:"userId"`
	Email  string   `json:"email"`
	Scopes []string `json:"scopes"`
	KeyID  string   `json:"keyId"`
}

// HasScope mirrors models.APIKey.HasScope for a resolved identity.
func (i *APIKeyIdentity) HasScope(scope string) bool {
	k := models.APIKey{Scopes: i.Scopes}
	return k.HasScope(scope)
}

type APIKeyService struct {
	repos repomanager.RepositoryManager
	audit *auditor
	log   logging.Logger
	now   func() time.Time
}

func NewAPIKeyService(m repomanager.RepositoryManager, log logging.Logger) *APIKeyService {
	log = log.With("module", "apikeys")
	return &APIKeyService{
		repos: m,
		audit: &auditor{repos: m, log: log},
		log:   log,
		now:   time.Now,
	}
}

func validateKeyInput(in CreateAPIKeyInput, now time.Time) (string, []string, error) {
	name := strings.TrimSpace(in.Name)
	if len([]rune(name)) < minKeyNameLen {
		return "", nil, fmt.Errorf("%w: key name must be at least %d characters", common.ErrValidation, minKeyNameLen)
	}

	scopes := in.Scopes
	if len(scopes) == 0 {
		scopes = []string{models.ScopeRead}
	}
	seen := make([]string, 0, len(scopes))
	for _, sc := range scopes {
		if !slices.Contains(models.KnownScopes, sc) {
			return "", nil, fmt.Errorf("%w: unknown scope %q", common.ErrValidation, sc)
		}
		if !slices.Contains(seen, sc) {
			seen = append(seen, sc)
		}
	}

	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return "", nil, fmt.Errorf("%w: expiry must be in the future", common.ErrValidation)
	}

	return name, seen, nil
}

// Create issues a new key. The plaintext is returned here and nowhere else;
// only its SHA-256 digest and an 8-character preview are stored.
func (s *APIKeyService) Create(ctx context.Context, userID string, in CreateAPIKeyInput, client ClientInfo) (*CreatedAPIKey, error) {
	name, scopes, err := validateKeyInput(in, s.now())
	if err != nil {
		return nil, err
	}

	plain, err := cryptox.GenerateRandomSecret(apiKeyBytes)
	if err != nil {
		return nil, internalError(ctx, s.log, "generate api key", err)
	}

	key, err := s.repos.APIKeys(s.repos.Conn()).Create(context.WithoutCancel(ctx), &models.APIKey{
		UserID:     userID,
		Name:       name,
		KeyHash:    cryptox.HashOneWay(plain),
		KeyPreview: plain[:apiKeyPreviewLen] + "...",
		Scopes:     scopes,
		ExpiresAt:  in.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAuthenticationRequired
		}
		return nil, internalError(ctx, s.log, "store api key", err)
	}

	s.audit.record(ctx, userID, models.ActionAPIKeyCreate, models.AuditSuccess, client,
		map[string]any{"keyId": key.ID, "scopes": scopes})

	return &CreatedAPIKey{Key: plain, Metadata: key}, nil
}

// List returns the user's keys, newest first, without any secret material.
func (s *APIKeyService) List(ctx context.Context, userID string) ([]*models.APIKey, error) {
	keys, err := s.repos.APIKeys(s.repos.Conn()).ListForUser(ctx, userID)
	if err != nil {
		return nil, internalError(ctx, s.log, "list api keys", err)
	}
	return keys, nil
}

// Validate resolves a presented key by its digest. Unknown, inactive and
// expired keys are indistinguishable to the caller.
func (s *APIKeyService) Validate(ctx context.Context, plain string) (*APIKeyIdentity, error) {
	if plain == "" {
		return nil, common.ErrAuthenticationRequired
	}

	key, err := s.repos.APIKeys(s.repos.Conn()).FindByHash(ctx, cryptox.HashOneWay(plain))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, internalError(ctx, s.log, "lookup api key", err)
	}
	now := s.now()
	if !key.IsActive || key.Expired(now) {
		return nil, common.ErrInvalidCredentials
	}

	owner, err := loadUser(ctx, s.repos, s.log, key.UserID, common.ErrInvalidCredentials)
	if err != nil {
		return nil, err
	}
	if err := AccountStatus(owner); err != nil {
		return nil, err
	}

	if err := s.repos.APIKeys(s.repos.Conn()).TouchLastUsed(context.WithoutCancel(ctx), key.ID, now); err != nil {
		s.log.Warn(ctx, "stamp api key usage", "key_id", key.ID, "error", err)
	}

	return &APIKeyIdentity{UserID: owner.ID, Email: owner.Email, Scopes: key.Scopes, KeyID: key.ID}, nil
}

// Deactivate disables a key owned by userID; other users' keys are reported
// as not found.
func (s *APIKeyService) Deactivate(ctx context.Context, userID, keyID string, client ClientInfo) error {
	if err := s.repos.APIKeys(s.repos.Conn()).Deactivate(context.WithoutCancel(ctx), keyID, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return internalError(ctx, s.log, "deactivate api key", err)
	}
	s.audit.record(ctx, userID, models.ActionAPIKeyDeactivate, models.AuditSuccess, client, map[string]any{"keyId": keyID})
	return nil
}

func (s *APIKeyService) Delete(ctx context.Context, userID, keyID string, client ClientInfo) error {
	if err := s.repos.APIKeys(s.repos.Conn()).Delete(context.WithoutCancel(ctx), keyID, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return internalError(ctx, s.log, "delete api key", err)
	}
	s.audit.record(ctx, userID, models.ActionAPIKeyDelete, models.AuditSuccess, client, map[string]any{"keyId": keyID})
	return nil
}
