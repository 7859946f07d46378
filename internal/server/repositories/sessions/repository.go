// Package sessions persists login sessions keyed by their access and
// refresh tokens.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Session) (*models.Session, error)
	FindByToken(ctx context.Context, token string) (*models.Session, error)
	FindByRefreshToken(ctx context.Context, refreshToken string) (*models.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error

	// RevokeByToken revokes the user's session holding token and reports how
	// many rows changed. Zero is not an error.
	RevokeByToken(ctx context.Context, userID, token string) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}
