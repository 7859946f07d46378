package users

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

const userColumns = `id, email, password_hash, provider, provider_id, name, profile_image,
		 email_verified, verification_token, two_factor_enabled, two_factor_secret,
		 failed_login_attempts, is_locked, is_active, created_at, updated_at, last_login_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u                                                     models.User
		passwordHash, providerID, image, verification, secret sql.NullString
		lastLogin                                             sql.NullTime
	)

	err := row.Scan(&u.ID, &u.Email, &passwordHash, &u.Provider, &providerID, &u.Name, &image,
		&u.EmailVerified, &verification, &u.TwoFactorEnabled, &secret,
		&u.FailedLogins, &u.IsLocked, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	u.PasswordHash = passwordHash.String
	u.ProviderID = providerID.String
	u.ProfileImage = image.String
	u.VerificationToken = verification.String
	u.TwoFactorSecret = secret.String
	u.LastLoginAt = dbx.TimePtr(lastLogin)

	return &u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, password_hash, provider, provider_id, name, profile_image, email_verified, verification_token)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, is_active, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Email, dbx.NullString(user.PasswordHash), user.Provider, dbx.NullString(user.ProviderID),
		user.Name, dbx.NullString(user.ProfileImage), user.EmailVerified, dbx.NullString(user.VerificationToken),
	).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE verification_token = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, token))
}

func (r *PostgresRepository) FindFederated(ctx context.Context, provider models.Provider, providerID, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE (provider = $1 AND provider_id = $2) OR email = $3
		 ORDER BY (provider = $1 AND provider_id = $2) DESC
		 LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, query, provider, providerID, email))
}

// exec runs an UPDATE/DELETE that must hit exactly the row with the given id.
func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if dbx.RowsAffected(res) == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User) error {
	query :=
		`UPDATE users SET provider = $2, provider_id = $3, name = $4, profile_image = $5,
		 email_verified = $6, verification_token = $7, is_active = $8, updated_at = now()
		 WHERE id = $1`

	return r.exec(ctx, query, user.ID, user.Provider, dbx.NullString(user.ProviderID), user.Name,
		dbx.NullString(user.ProfileImage), user.EmailVerified, dbx.NullString(user.VerificationToken), user.IsActive)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, id, hash)
}

func (r *PostgresRepository) SetTwoFactor(ctx context.Context, id string, enabled bool, secret string) error {
	query := `UPDATE users SET two_factor_enabled = $2, two_factor_secret = $3, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, id, enabled, dbx.NullString(secret))
}

func (r *PostgresRepository) RecordFailedLogin(ctx context.Context, id string, threshold int) (int, bool, error) {
	// right-hand sides see the pre-update row, so both columns move together
	query :=
		`UPDATE users
		 SET failed_login_attempts = failed_login_attempts + 1,
		     is_locked = is_locked OR failed_login_attempts + 1 >= $2,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING failed_login_attempts, is_locked`

	var (
		attempts int
		locked   bool
	)
	err := r.db.QueryRowContext(ctx, query, id, threshold).Scan(&attempts, &locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, common.ErrorNotFound
		}
		return 0, false, fmt.Errorf("db error: %w", err)
	}

	return attempts, locked, nil
}

func (r *PostgresRepository) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET failed_login_attempts = 0, last_login_at = $2, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, id, at)
}

func (r *PostgresRepository) Unlock(ctx context.Context, id string) error {
	query := `UPDATE users SET failed_login_attempts = 0, is_locked = FALSE, updated_at = now() WHERE id = $1`
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
}
