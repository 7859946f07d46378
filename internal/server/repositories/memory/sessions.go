package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
)

type sessionRepo struct{ s *store }

func (r *sessionRepo) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.st.users[s.UserID]; !ok {
		return nil, common.ErrorNotFound
	}
	for _, v := range r.s.st.sessions {
		if v.Token == s.Token || v.RefreshToken == s.RefreshToken {
			return nil, common.ErrorAlreadyExists
		}
	}

	now := r.s.now()
	s.ID = uuid.NewString()
	s.CreatedAt, s.LastActivityAt = now, now
	r.s.st.sessions[s.ID] = *s
	return s, nil
}

func (r *sessionRepo) find(match func(s *models.Session) bool) (*models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, s := range r.s.st.sessions {
		if match(&s) {
			return &s, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *sessionRepo) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	return r.find(func(s *models.Session) bool { return s.Token == token })
}

func (r *sessionRepo) FindByRefreshToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	return r.find(func(s *models.Session) bool { return s.RefreshToken == refreshToken })
}

func (r *sessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if s, ok := r.s.st.sessions[id]; ok {
		s.LastActivityAt = at
		r.s.st.sessions[id] = s
	}
	return nil
}

func (r *sessionRepo) revokeWhere(match func(s *models.Session) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, s := range r.s.st.sessions {
		if !s.IsRevoked && match(&s) {
			s.IsRevoked = true
			r.s.st.sessions[id] = s
			n++
		}
	}
	return n
}

func (r *sessionRepo) RevokeByToken(ctx context.Context, userID, token string) (int64, error) {
	return r.revokeWhere(func(s *models.Session) bool { return s.UserID == userID && s.Token == token }), nil
}

func (r *sessionRepo) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return r.revokeWhere(func(s *models.Session) bool { return s.UserID == userID }), nil
}
