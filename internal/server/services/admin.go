package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// AdminService backs the operator CLI. Accounts are addressed by email.
type AdminService struct {
	repos  repomanager.RepositoryManager
	hasher *cryptox.PasswordHasher
	audit  *auditor
	log    logging.Logger
}

func NewAdminService(m repomanager.RepositoryManager, hasher *cryptox.PasswordHasher, log logging.Logger) *AdminService {
	log = log.With("module", "admin")
	return &AdminService{repos: m, hasher: hasher, audit: &auditor{repos: m, log: log}, log: log}
}

var adminClient = ClientInfo{UserAgent: "authkeeper-admin"}

func (s *AdminService) userByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.repos.Users(s.repos.Conn()).GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, internalError(ctx, s.log, "lookup user", err)
	}
	return u, nil
}

// UnlockAccount clears the lockout flag and the failed-attempt counter.
func (s *AdminService) UnlockAccount(ctx context.Context, email string) error {
	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.repos.Users(s.repos.Conn()).Unlock(ctx, u.ID); err != nil {
		return internalError(ctx, s.log, "unlock account", err)
	}
	s.audit.record(ctx, u.ID, models.ActionAccountUnlock, models.AuditSuccess, adminClient, map[string]any{"previousAttempts": u.FailedLogins})
	return nil
}

// ResetPassword sets a new password and revokes every session. It returns
// the number of sessions revoked.
func (s *AdminService) ResetPassword(ctx context.Context, email, password string) (int64, error) {
	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return 0, err
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return 0, internalError(ctx, s.log, "hash password", err)
	}

	var revoked int64
	err = s.repos.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).UpdatePassword(ctx, u.ID, hash); err != nil {
			return err
		}
		n, err := s.repos.Sessions(tx).RevokeAllForUser(ctx, u.ID)
		if err != nil {
			return err
		}
		revoked = n
		return s.audit.recordTx(ctx, tx, u.ID, models.ActionPasswordReset, adminClient, map[string]any{"revokedSessions": n})
	})
	if err != nil {
		return 0, internalError(ctx, s.log, "reset password", err)
	}
	return revoked, nil
}

// ListAudit returns up to limit entries for the user, newest first.
func (s *AdminService) ListAudit(ctx context.Context, email string, limit int) ([]*models.AuditLog, error) {
	u, err := s.userByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	entries, err := s.repos.AuditLogs(s.repos.Conn()).ListForUser(ctx, u.ID, limit)
	if err != nil {
		return nil, internalError(ctx, s.log, "list audit", err)
	}
	return entries, nil
}
