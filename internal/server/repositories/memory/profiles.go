package memory

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type profileRepo struct{ s *store }

func (r *profileRepo) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.st.profiles[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &p, nil
}

func (r *profileRepo) Upsert(ctx context.Context, p *models.UserProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.st.users[p.UserID]; !ok {
		return common.ErrorNotFound
	}
	p.UpdatedAt = r.s.now()
	r.s.st.profiles[p.UserID] = *p
	return nil
}
