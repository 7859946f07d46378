package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
)

type userRepo struct{ s *store }

func (r *userRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.st.users {
		if u.Email == user.Email {
			return nil, common.ErrorAlreadyExists
		}
		if user.ProviderID != "" && u.Provider == user.Provider && u.ProviderID == user.ProviderID {
			return nil, common.ErrorAlreadyExists
		}
		if user.VerificationToken != "" && u.VerificationToken == user.VerificationToken {
			return nil, common.ErrorAlreadyExists
		}
	}

	now := r.s.now()
	user.ID = uuid.NewString()
	user.IsActive = true
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.st.users[user.ID] = *user

	return user, nil
}

func (r *userRepo) find(match func(u *models.User) bool) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.st.users {
		if match(&u) {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *userRepo) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return token != "" && u.VerificationToken == token })
}

func (r *userRepo) FindFederated(ctx context.Context, provider models.Provider, providerID, email string) (*models.User, error) {
	u, err := r.find(func(u *models.User) bool { return providerID != "" && u.Provider == provider && u.ProviderID == providerID })
	if err == nil {
		return u, nil
	}
	return r.GetByEmail(ctx, email)
}

// mutate applies fn to the stored user and bumps UpdatedAt.
func (r *userRepo) mutate(id string, fn func(u *models.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.st.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(&u)
	u.UpdatedAt = r.s.now()
	r.s.st.users[id] = u
	return nil
}

func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	return r.mutate(user.ID, func(u *models.User) {
		u.Provider = user.Provider
		u.ProviderID = user.ProviderID
		u.Name = user.Name
		u.ProfileImage = user.ProfileImage
		u.EmailVerified = user.EmailVerified
		u.VerificationToken = user.VerificationToken
		u.IsActive = user.IsActive
	})
}

func (r *userRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.mutate(id, func(u *models.User) { u.PasswordHash = hash })
}

func (r *userRepo) SetTwoFactor(ctx context.Context, id string, enabled bool, secret string) error {
	return r.mutate(id, func(u *models.User) {
		u.TwoFactorEnabled = enabled
		u.TwoFactorSecret = secret
	})
}

func (r *userRepo) RecordFailedLogin(ctx context.Context, id string, threshold int) (int, bool, error) {
	var attempts int
	var locked bool
	err := r.mutate(id, func(u *models.User) {
		u.FailedLogins++
		u.IsLocked = u.IsLocked || u.FailedLogins >= threshold
		attempts, locked = u.FailedLogins, u.IsLocked
	})
	return attempts, locked, err
}

func (r *userRepo) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	return r.mutate(id, func(u *models.User) {
		u.FailedLogins = 0
		u.LastLoginAt = &at
	})
}

func (r *userRepo) Unlock(ctx context.Context, id string) error {
	return r.mutate(id, func(u *models.User) {
		u.FailedLogins = 0
		u.IsLocked = false
	})
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st := &r.s.st
	if _, ok := st.users[id]; !ok {
		return common.ErrorNotFound
	}
	delete(st.users, id)
	delete(st.profiles, id)
	for k, v := range st.sessions {
		if v.UserID == id {
			delete(st.sessions, k)
		}
	}
	for k, v := range st.apiKeys {
		if v.UserID == id {
			delete(st.apiKeys, k)
		}
	}
	for k, v := range st.backupCodes {
		if v.UserID == id {
			delete(st.backupCodes, k)
		}
	}
	return nil
}
