// Package profiles persists the optional per-user profile record.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound when the user never saved a profile.
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	Upsert(ctx context.Context, p *models.UserProfile) error
}
