// Package users persists User records.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository is the user store. Lookups return common.ErrorNotFound when no
// row matches; Create returns common.ErrorAlreadyExists for a taken email.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.User, error)

	// FindFederated returns the user linked to (provider, providerID) or,
	// failing that, the user registered under email.
	FindFederated(ctx context.Context, provider models.Provider, providerID, email string) (*models.User, error)

	// Update writes the identity fields: provider linkage, name, image,
	// email verification state and the active flag.
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, hash string) error
	SetTwoFactor(ctx context.Context, id string, enabled bool, secret string) error

	// RecordFailedLogin increments the failure counter and locks the account
	// once it reaches threshold, in one atomic statement.
	RecordFailedLogin(ctx context.Context, id string, threshold int) (attempts int, locked bool, err error)
	RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error
	Unlock(ctx context.Context, id string) error

	// Delete removes the user; profile, sessions, API keys and backup codes
	// go with it.
	Delete(ctx context.Context, id string) error
}
