package memory

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
)

type backupCodeRepo struct{ s *store }

func (r *backupCodeRepo) CreateMany(ctx context.Context, userID string, codeHashes []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	for _, h := range codeHashes {
		id := uuid.NewString()
		r.s.st.backupCodes[id] = models.BackupCode{ID: id, UserID: userID, CodeHash: h, CreatedAt: now}
	}
	return nil
}

func (r *backupCodeRepo) Consume(ctx context.Context, userID, codeHash string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, c := range r.s.st.backupCodes {
		if c.UserID == userID && c.CodeHash == codeHash {
			delete(r.s.st.backupCodes, id)
			return true, nil
		}
	}
	return false, nil
}

func (r *backupCodeRepo) DeleteForUser(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, c := range r.s.st.backupCodes {
		if c.UserID == userID {
			delete(r.s.st.backupCodes, id)
		}
	}
	return nil
}

func (r *backupCodeRepo) CountForUser(ctx context.Context, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, c := range r.s.st.backupCodes {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}
