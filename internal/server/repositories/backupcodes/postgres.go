package backupcodes

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateMany(ctx context.Context, userID string, codeHashes []string) error {
	query := `INSERT INTO two_factor_backup_codes (user_id, code_hash) VALUES ($1, $2)`
	for _, h := range codeHashes {
		if _, err := r.db.ExecContext(ctx, query, userID, h); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) Consume(ctx context.Context, userID, codeHash string) (bool, error) {
	query :=
		`DELETE FROM two_factor_backup_codes
		 WHERE id = (
		     SELECT id FROM two_factor_backup_codes
		     WHERE user_id = $1 AND code_hash = $2
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )`

	res, err := r.db.ExecContext(ctx, query, userID, codeHash)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res) > 0, nil
}

func (r *PostgresRepository) DeleteForUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM two_factor_backup_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CountForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM two_factor_backup_codes WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
