package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
)

type apiKeyRepo struct{ s *store }

func copyKey(k models.APIKey) *models.APIKey {
	k.Scopes = slices.Clone(k.Scopes)
	return &k
}

func (r *apiKeyRepo) Create(ctx context.Context, key *models.APIKey) (*models.APIKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.st.users[key.UserID]; !ok {
		return nil, common.ErrorNotFound
	}
	for _, k := range r.s.st.apiKeys {
		if k.KeyHash == key.KeyHash {
			return nil, common.ErrorAlreadyExists
		}
	}

	key.ID = uuid.NewString()
	key.IsActive = true
	key.CreatedAt = r.s.now()
	r.s.st.apiKeys[key.ID] = *copyKey(*key)
	return key, nil
}

func (r *apiKeyRepo) FindByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, k := range r.s.st.apiKeys {
		if k.KeyHash == keyHash {
			return copyKey(k), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *apiKeyRepo) ListForUser(ctx context.Context, userID string) ([]*models.APIKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	result := []*models.APIKey{}
	for _, k := range r.s.st.apiKeys {
		if k.UserID == userID {
			result = append(result, copyKey(k))
		}
	}
	slices.SortFunc(result, func(a, b *models.APIKey) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return result, nil
}

func (r *apiKeyRepo) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if k, ok := r.s.st.apiKeys[id]; ok {
		k.LastUsedAt = &at
		r.s.st.apiKeys[id] = k
	}
	return nil
}

func (r *apiKeyRepo) Deactivate(ctx context.Context, id, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k, ok := r.s.st.apiKeys[id]
	if !ok || k.UserID != userID {
		return common.ErrorNotFound
	}
	k.IsActive = false
	r.s.st.apiKeys[id] = k
	return nil
}

func (r *apiKeyRepo) Delete(ctx context.Context, id, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k, ok := r.s.st.apiKeys[id]
	if !ok || k.UserID != userID {
		return common.ErrorNotFound
	}
	delete(r.s.st.apiKeys, id)
	return nil
}
