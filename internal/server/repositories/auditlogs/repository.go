// Package auditlogs persists the append-only security event trail.
package auditlogs

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	// ListForUser returns the newest entries first.
	ListForUser(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error)
}
