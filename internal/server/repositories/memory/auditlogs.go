package memory

import (
	"context"
	"maps"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
)

type auditRepo struct{ s *store }

func (r *auditRepo) Append(ctx context.Context, entry *models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	entry.ID = uuid.NewString()
	entry.CreatedAt = r.s.now()

	stored := *entry
	stored.Metadata = maps.Clone(entry.Metadata)
	r.s.st.audit = append(r.s.st.audit, stored)
	return nil
}

func (r *auditRepo) ListForUser(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := []*models.AuditLog{}
	for i := len(r.s.st.audit) - 1; i >= 0 && len(result) < limit; i-- {
		if e := r.s.st.audit[i]; e.UserID == userID {
			result = append(result, &e)
		}
	}
	return result, nil
}
