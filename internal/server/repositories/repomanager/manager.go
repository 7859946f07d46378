package repomanager

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/apikeys"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/auditlogs"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/backupcodes"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the shared connection
// (Conn) or a transaction handed to the WithTx callback.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Conn() dbx.DBTX
	WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error
	Users(db dbx.DBTX) users.Repository
	Profiles(db dbx.DBTX) profiles.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	APIKeys(db dbx.DBTX) apikeys.Repository
	BackupCodes(db dbx.DBTX) backupcodes.Repository
	AuditLogs(db dbx.DBTX) auditlogs.Repository
	Close() error
}
