// Package apikeys persists hashed API keys.
package apikeys

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository stores API keys. Methods taking a userID only touch keys owned
// by that user and report common.ErrorNotFound otherwise.
type Repository interface {
	Create(ctx context.Context, key *models.APIKey) (*models.APIKey, error)
	FindByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	ListForUser(ctx context.Context, userID string) ([]*models.APIKey, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	Deactivate(ctx context.Context, id, userID string) error
	Delete(ctx context.Context, id, userID string) error
}
