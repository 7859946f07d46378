package apikeys

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

const keyColumns = `id, user_id, name, key_hash, key_preview, scopes, is_active, expires_at, last_used_at, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (*models.APIKey, error) {
	var (
		k                 models.APIKey
		scopes            []byte
		expires, lastUsed sql.NullTime
	)
	if err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPreview, &scopes,
		&k.IsActive, &expires, &lastUsed, &k.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scopes, &k.Scopes); err != nil {
		return nil, fmt.Errorf("decode scopes: %w", err)
	}
	k.ExpiresAt = dbx.TimePtr(expires)
	k.LastUsedAt = dbx.TimePtr(lastUsed)
	return &k, nil
}

func (r *PostgresRepository) Create(ctx context.Context, key *models.APIKey) (*models.APIKey, error) {
	scopes, err := json.Marshal(key.Scopes)
	if err != nil {
		return nil, fmt.Errorf("encode scopes: %w", err)
	}

	query :=
		`INSERT INTO api_keys (user_id, name, key_hash, key_preview, scopes, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, is_active, created_at`

	err = r.db.QueryRowContext(ctx, query, key.UserID, key.Name, key.KeyHash, key.KeyPreview,
		string(scopes), dbx.NullTime(key.ExpiresAt),
	).Scan(&key.ID, &key.IsActive, &key.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return key, nil
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*models.APIKey, error) {
	k, err := scanKey(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return k, nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	return r.one(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE key_hash = $1`, keyHash)
}

func (r *PostgresRepository) ListForUser(ctx context.Context, userID string) ([]*models.APIKey, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.APIKey{}
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ownedExec(ctx context.Context, query, id, userID string) error {
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if dbx.RowsAffected(res) == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id, userID string) error {
	return r.ownedExec(ctx, `UPDATE api_keys SET is_active = FALSE WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) error {
	return r.ownedExec(ctx, `DELETE FROM api_keys WHERE id = $1 AND user_id = $2`, id, userID)
}
