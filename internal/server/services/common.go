// Package services contains the server-side business logic: the
// authentication state machine, two-factor enrollment, profile management,
// API keys and administrative actions. Services are stateless between
// requests; all durable state goes through the repository manager.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
)

// ClientInfo is the request metadata recorded on sessions and audit entries.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// NormalizeEmail lowercases and trims an address before any lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// internalError logs err and hides it behind common.ErrorInternal.
func internalError(ctx context.Context, log logging.Logger, msg string, err error) error {
	log.Error(ctx, msg, "error", err)
	return common.ErrorInternal
}

// auditor appends audit entries outside of any transaction. A failed write is
// logged and never fails the operation being audited.
type auditor struct {
	repos repomanager.RepositoryManager
	log   logging.Logger
}

func (a *auditor) record(ctx context.Context, userID string, action models.AuditAction, status models.AuditStatus, client ClientInfo, metadata map[string]any) {
	entry := newAuditEntry(userID, action, status, client, metadata)
	if err := a.repos.AuditLogs(a.repos.Conn()).Append(context.WithoutCancel(ctx), entry); err != nil {
		a.log.Error(ctx, "audit write failed", "action", action, "status", status, "error", err)
	}
}

// recordTx appends inside tx and returns the error so the transaction rolls
// back with it.
func (a *auditor) recordTx(ctx context.Context, tx dbx.DBTX, userID string, action models.AuditAction, client ClientInfo, metadata map[string]any) error {
	return a.repos.AuditLogs(tx).Append(ctx, newAuditEntry(userID, action, models.AuditSuccess, client, metadata))
}

func newAuditEntry(userID string, action models.AuditAction, status models.AuditStatus, client ClientInfo, metadata map[string]any) *models.AuditLog {
	return &models.AuditLog{
		UserID:    userID,
		Action:    action,
		Status:    status,
		Metadata:  metadata,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	}
}

// AccountStatus rejects users that may not authenticate: locked first, then
// inactive.
func AccountStatus(u *models.User) error {
	if u.IsLocked {
		return common.ErrAccountLocked
	}
	if !u.IsActive {
		return common.ErrAccountInactive
	}
	return nil
}

// loadUser fetches a user by id, mapping a missing row to notFound.
func loadUser(ctx context.Context, repos repomanager.RepositoryManager, log logging.Logger, id string, notFound error) (*models.User, error) {
	u, err := repos.Users(repos.Conn()).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, notFound
		}
		return nil, internalError(ctx, log, "load user", err)
	}
	return u, nil
}
