package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/storage"
)

// AvatarStorage presigns direct uploads to object storage.
type AvatarStorage interface {
	PresignUpload(ctx context.Context, key, contentType string) (string, error)
	ObjectURL(key string) string
}

// ProfileDetails is the decrypted profile as returned to its owner.
type ProfileDetails struct {
	PhoneNumber        string `json:"phoneNumber,omitempty"`
	Address            string `json:"address,omitempty"`
	DateOfBirth        string `json:"dateOfBirth,omitempty"`
	Bio                string `json:"bio,omitempty"`
	Website            string `json:"website,omitempty"`
	Timezone           string `json:"timezone,omitempty"`
	Language           string `json:"language,omitempty"`
	EmailNotifications bool   `json:"emailNotifications"`
	SMSNotifications   bool   `json:"smsNotifications"`
}

type ProfileView struct {
	*models.UserSummary
	Profile *ProfileDetails `json:"profile,omitempty"`
}

// ProfileUpdate carries only the fields the caller wants changed; nil means
// leave as is and an empty string clears the field.
type ProfileUpdate struct {
	Name               *string `json:"name"`
	PhoneNumber        *string `json:"phoneNumber"`
	Address            *string `json:"address"`
	DateOfBirth        *string `json:"dateOfBirth"`
	Bio                *string `json:"bio"`
	Website            *string `json:"website"`
	Timezone           *string `json:"timezone"`
	Language           *string `json:"language"`
	EmailNotifications *bool   `json:"emailNotifications"`
	SMSNotifications   *bool   `json:"smsNotifications"`
}

type AvatarUpload struct {
	UploadURL string    `json:"uploadUrl"`
	ObjectKey string    `json:"objectKey"`
	ImageURL  string    `json:"imageUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ProfileService guards the user's own account: profile data with
// field-level encryption, password change, account deletion and avatar
// uploads.
type ProfileService struct {
	repos   repomanager.RepositoryManager
	hasher  *cryptox.PasswordHasher
	storage AvatarStorage
	audit   *auditor
	log     logging.Logger
	key     []byte
	now     func() time.Time
}

func NewProfileService(m repomanager.RepositoryManager, hasher *cryptox.PasswordHasher, encryptionKey string, avatars AvatarStorage, log logging.Logger) *ProfileService {
	log = log.With("module", "profile")
	return &ProfileService{
		repos:   m,
		hasher:  hasher,
		storage: avatars,
		audit:   &auditor{repos: m, log: log},
		log:     log,
		key:     cryptox.NormalizeKey(encryptionKey, 32),
		now:     time.Now,
	}
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*ProfileView, error) {
	user, err := loadUser(ctx, s.repos, s.log, userID, common.ErrorNotFound)
	if err != nil {
		return nil, err
	}
	view := &ProfileView{UserSummary: user.Summary()}

	p, err := s.repos.Profiles(s.repos.Conn()).Get(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return view, nil
	}
	if err != nil {
		return nil, internalError(ctx, s.log, "load profile", err)
	}

	details := &ProfileDetails{
		Bio:                p.Bio,
		Website:            p.Website,
		Timezone:           p.Timezone,
		Language:           p.Language,
		EmailNotifications: p.EmailNotifications,
		SMSNotifications:   p.SMSNotifications,
	}
	for _, f := range []struct {
		name string
		src  string
		dst  *string
	}{
		{"phone number", p.PhoneNumber, &details.PhoneNumber},
		{"address", p.Address, &details.Address},
		{"date of birth", p.DateOfBirth, &details.DateOfBirth},
	} {
		if f.src == "" {
			continue
		}
		plain, err := cryptox.DecryptPII(f.src, s.key)
		if err != nil {
			s.log.Error(ctx, "decrypt profile field", "user_id", userID, "field", f.name, "error", err)
			return nil, fmt.Errorf("decrypt %s: %w", f.name, err)
		}
		*f.dst = plain
	}

	view.Profile = details
	return view, nil
}

func (s *ProfileService) sealed(v string) (string, error) {
	if v == "" {
		return "", nil
	}
	return cryptox.EncryptPII(v, s.key)
}

// UpdateProfile applies upd. Phone number, address and date of birth are
// encrypted before they reach the store.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate, client ClientInfo) (*ProfileView, error) {
	user, err := loadUser(ctx, s.repos, s.log, userID, common.ErrorNotFound)
	if err != nil {
		return nil, err
	}

	p, err := s.repos.Profiles(s.repos.Conn()).Get(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		p = &models.UserProfile{UserID: userID, EmailNotifications: true}
	} else if err != nil {
		return nil, internalError(ctx, s.log, "load profile", err)
	}

	for _, f := range []struct {
		in  *string
		dst *string
	}{
		{upd.PhoneNumber, &p.PhoneNumber},
		{upd.Address, &p.Address},
		{upd.DateOfBirth, &p.DateOfBirth},
	} {
		if f.in == nil {
			continue
		}
		env, err := s.sealed(*f.in)
		if err != nil {
			return nil, internalError(ctx, s.log, "encrypt profile field", err)
		}
		*f.dst = env
	}
	if upd.Bio != nil {
		p.Bio = *upd.Bio
	}
	if upd.Website != nil {
		p.Website = *upd.Website
	}
	if upd.Timezone != nil {
		p.Timezone = *upd.Timezone
	}
	if upd.Language != nil {
		p.Language = *upd.Language
	}
	if upd.EmailNotifications != nil {
		p.EmailNotifications = *upd.EmailNotifications
	}
	if upd.SMSNotifications != nil {
		p.SMSNotifications = *upd.SMSNotifications
	}

	err = s.repos.WithTx(context.WithoutCancel(ctx), func(ctx context.Context, tx dbx.DBTX) error {
		if upd.Name != nil && strings.TrimSpace(*upd.Name) != user.Name {
			user.Name = strings.TrimSpace(*upd.Name)
			if err := s.repos.Users(tx).Update(ctx, user); err != nil {
				return err
			}
		}
		if err := s.repos.Profiles(tx).Upsert(ctx, p); err != nil {
			return err
		}
		return s.audit.recordTx(ctx, tx, userID, models.ActionProfileUpdate, client, nil)
	})
	if err != nil {
		return nil, internalError(ctx, s.log, "update profile", err)
	}

	return s.GetProfile(ctx, userID)
}

// ChangePassword replaces the password after checking the current one and
// revokes every session of the user, including the caller's.
func (s *ProfileService) ChangePassword(ctx context.Context, userID, current, next string, client ClientInfo) error {
	user, err := loadUser(ctx, s.repos, s.log, userID, common.ErrorNotFound)
	if err != nil {
		return err
	}
	if !user.HasPassword() || !s.hasher.Verify(ctx, current, user.PasswordHash) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return common.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(ctx, next)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return internalError(ctx, s.log, "hash password", err)
	}

	err = s.repos.WithTx(context.WithoutCancel(ctx), func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).UpdatePassword(ctx, user.ID, hash); err != nil {
			return err
		}
		n, err := s.repos.Sessions(tx).RevokeAllForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		return s.audit.recordTx(ctx, tx, user.ID, models.ActionPasswordChange, client, map[string]any{"revokedSessions": n})
	})
	if err != nil {
		return internalError(ctx, s.log, "change password", err)
	}

	s.log.Info(ctx, "password changed", "user_id", user.ID)
	return nil
}

// DeleteAccount removes the user and, by cascade, everything they own. A
// password is required unless the account never had one.
func (s *ProfileService) DeleteAccount(ctx context.Context, userID, password string, client ClientInfo) error {
	user, err := loadUser(ctx, s.repos, s.log, userID, common.ErrorNotFound)
	if err != nil {
		return err
	}
	if user.HasPassword() && !s.hasher.Verify(ctx, password, user.PasswordHash) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return common.ErrInvalidCredentials
	}

	err = s.repos.WithTx(context.WithoutCancel(ctx), func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.audit.recordTx(ctx, tx, user.ID, models.ActionAccountDelete, client, nil); err != nil {
			return err
		}
		return s.repos.Users(tx).Delete(ctx, user.ID)
	})
	if err != nil {
		return internalError(ctx, s.log, "delete account", err)
	}

	s.log.Info(ctx, "account deleted", "user_id", user.ID)
	return nil
}

// CreateAvatarUpload presigns an upload URL and points the profile image at
// the object it will create.
func (s *ProfileService) CreateAvatarUpload(ctx context.Context, userID, contentType string, client ClientInfo) (*AvatarUpload, error) {
	if s.storage == nil {
		return nil, internalError(ctx, s.log, "avatar upload", errors.New("object storage not configured"))
	}
	user, err := loadUser(ctx, s.repos, s.log, userID, common.ErrorNotFound)
	if err != nil {
		return nil, err
	}

	key := storage.AvatarKey(user.ID)
	url, err := s.storage.PresignUpload(ctx, key, contentType)
	if err != nil {
		return nil, internalError(ctx, s.log, "presign avatar upload", err)
	}

	user.ProfileImage = s.storage.ObjectURL(key)
	if err := s.repos.Users(s.repos.Conn()).Update(context.WithoutCancel(ctx), user); err != nil {
		return nil, internalError(ctx, s.log, "store avatar url", err)
	}
	s.audit.record(ctx, user.ID, models.ActionProfileUpdate, models.AuditSuccess, client, map[string]any{"field": "profileImage"})

	return &AvatarUpload{
		UploadURL: url,
		ObjectKey: key,
		ImageURL:  user.ProfileImage,
		ExpiresAt: s.now().Add(storage.PresignExpiry),
	}, nil
}
