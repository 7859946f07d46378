// Package models holds the records persisted by the repositories.
package models

import "time"

// Provider tags how a user proves their identity.
type Provider string

const (
	ProviderEmail  Provider = "EMAIL"
	ProviderGoogle Provider = "GOOGLE"
	ProviderKakao  Provider = "KAKAO"
)

// Federated reports whether p is an external identity provider.
func (p Provider) Federated() bool {
	return p == ProviderGoogle || p == ProviderKakao
}

type User struct {
	ID                string
	Email             string
	PasswordHash      string // empty for federated accounts without a password
	Provider          Provider
	ProviderID        string
	Name              string
	ProfileImage      string
	EmailVerified     bool
	VerificationToken string
	TwoFactorEnabled  bool
	TwoFactorSecret   string // PII envelope, empty when 2FA is disabled
	FailedLogins      int
	IsLocked          bool
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastLoginAt       *time.Time
}

// HasPassword reports whether password-based operations apply to u.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// TwoFactorPending reports whether a TOTP secret was issued but never
// confirmed.
func (u *User) TwoFactorPending() bool {
	return !u.TwoFactorEnabled && u.TwoFactorSecret != ""
}

// UserSummary is the non-sensitive view of a user returned to clients.
type UserSummary struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	ProfileImage     string     `json:"profileImage,omitempty"`
	Provider         Provider   `json:"provider"`
	EmailVerified    bool       `json:"emailVerified"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	CreatedAt        time.Time  `json:"createdAt"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty"`
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		ProfileImage:     u.ProfileImage,
		Provider:         u.Provider,
		EmailVerified:    u.EmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
		LastLoginAt:      u.LastLoginAt,
	}
}
