package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

const sessionColumns = `id, user_id, token, refresh_token, is_revoked, ip_address, user_agent,
		 expires_at, last_activity_at, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	query :=
		`INSERT INTO sessions (user_id, token, refresh_token, ip_address, user_agent, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, last_activity_at, created_at`

	err := r.db.QueryRowContext(ctx, query, s.UserID, s.Token, s.RefreshToken,
		dbx.NullString(s.IPAddress), dbx.NullString(s.UserAgent), s.ExpiresAt,
	).Scan(&s.ID, &s.LastActivityAt, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, column, value string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + column + ` = $1`

	var (
		s             models.Session
		ip, userAgent sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, value).Scan(&s.ID, &s.UserID, &s.Token, &s.RefreshToken,
		&s.IsRevoked, &ip, &userAgent, &s.ExpiresAt, &s.LastActivityAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.IPAddress = ip.String
	s.UserAgent = userAgent.String

	return &s, nil
}

func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	return r.findOne(ctx, "token", token)
}

func (r *PostgresRepository) FindByRefreshToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	return r.findOne(ctx, "refresh_token", refreshToken)
}

func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE sessions SET last_activity_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RevokeByToken(ctx context.Context, userID, token string) (int64, error) {
	query := `UPDATE sessions SET is_revoked = TRUE WHERE user_id = $1 AND token = $2 AND NOT is_revoked`
	res, err := r.db.ExecContext(ctx, query, userID, token)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE sessions SET is_revoked = TRUE WHERE user_id = $1 AND NOT is_revoked`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
