package models

import "time"

type Session struct {
	ID             string
	UserID         string
	Token          string
	RefreshToken   string
	IsRevoked      bool
	IPAddress      string
	UserAgent      string
	ExpiresAt      time.Time
	LastActivityAt time.Time
	CreatedAt      time.Time
}

// Usable reports whether the session may still authorize requests at now.
func (s *Session) Usable(now time.Time) bool {
	return !s.IsRevoked && now.Before(s.ExpiresAt)
}
