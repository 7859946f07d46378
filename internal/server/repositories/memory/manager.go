// Package memory is a map-backed implementation of every repository, used
// by the service tests and, with DEV_MODE set, by the "memory://" DSN.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/apikeys"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/auditlogs"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/backupcodes"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/profiles"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

type state struct {
	users       map[string]models.User
	profiles    map[string]models.UserProfile
	sessions    map[string]models.Session
	apiKeys     map[string]models.APIKey
	backupCodes map[string]models.BackupCode
	audit       []models.AuditLog
}

func newState() state {
	return state{
		users:       map[string]models.User{},
		profiles:    map[string]models.UserProfile{},
		sessions:    map[string]models.Session{},
		apiKeys:     map[string]models.APIKey{},
		backupCodes: map[string]models.BackupCode{},
	}
}

// clone copies every map. Values are structs, so only the slices held by
// API keys need a deep copy.
func (s state) clone() state {
	c := state{
		users:       maps.Clone(s.users),
		profiles:    maps.Clone(s.profiles),
		sessions:    maps.Clone(s.sessions),
		apiKeys:     maps.Clone(s.apiKeys),
		backupCodes: maps.Clone(s.backupCodes),
		audit:       slices.Clone(s.audit),
	}
	for id, k := range c.apiKeys {
		k.Scopes = slices.Clone(k.Scopes)
		c.apiKeys[id] = k
	}
	return c
}

type store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time
}

// RepositoryManager keeps all data in process memory. The db arguments of
// the repository factories are ignored.
type RepositoryManager struct {
	txMu sync.Mutex
	s    *store
}

func NewRepositoryManager() *RepositoryManager {
	return &RepositoryManager{s: &store{st: newState(), now: time.Now}}
}

// SetClock overrides the time source used for generated timestamps.
func (m *RepositoryManager) SetClock(now func() time.Time) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.now = now
}

func (m *RepositoryManager) RunMigrations(ctx context.Context) error { return nil }

func (m *RepositoryManager) Conn() dbx.DBTX { return nil }

func (m *RepositoryManager) Close() error { return nil }

// WithTx serializes transactions and restores the pre-transaction state when
// fn fails or panics. Writes made outside WithTx while a transaction runs are
// lost on rollback.
func (m *RepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) (err error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.s.mu.Lock()
	snapshot := m.s.st.clone()
	m.s.mu.Unlock()

	rollback := func() {
		m.s.mu.Lock()
		m.s.st = snapshot
		m.s.mu.Unlock()
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
		if err != nil {
			rollback()
		}
	}()

	return fn(ctx, nil)
}

func (m *RepositoryManager) Users(dbx.DBTX) users.Repository { return &userRepo{m.s} }

func (m *RepositoryManager) Profiles(dbx.DBTX) profiles.Repository { return &profileRepo{m.s} }

func (m *RepositoryManager) Sessions(dbx.DBTX) sessions.Repository { return &sessionRepo{m.s} }

func (m *RepositoryManager) APIKeys(dbx.DBTX) apikeys.Repository { return &apiKeyRepo{m.s} }

func (m *RepositoryManager) BackupCodes(dbx.DBTX) backupcodes.Repository {
	return &backupCodeRepo{m.s}
}

func (m *RepositoryManager) AuditLogs(dbx.DBTX) auditlogs.Repository { return &auditRepo{m.s} }
