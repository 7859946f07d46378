package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	query :=
		`SELECT user_id, phone_number, address, date_of_birth, bio, website, timezone, language,
		 email_notifications, sms_notifications, updated_at
		 FROM user_profiles WHERE user_id = $1`

	var (
		p                                               models.UserProfile
		phone, address, dob, bio, website, tz, language sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &phone, &address, &dob, &bio, &website,
		&tz, &language, &p.EmailNotifications, &p.SMSNotifications, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	p.PhoneNumber, p.Address, p.DateOfBirth = phone.String, address.String, dob.String
	p.Bio, p.Website, p.Timezone, p.Language = bio.String, website.String, tz.String, language.String

	return &p, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p *models.UserProfile) error {
	query :=
		`INSERT INTO user_profiles (user_id, phone_number, address, date_of_birth, bio, website, timezone, language,
		     email_notifications, sms_notifications)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id) DO UPDATE SET
		     phone_number = EXCLUDED.phone_number,
		     address = EXCLUDED.address,
		     date_of_birth = EXCLUDED.date_of_birth,
		     bio = EXCLUDED.bio,
		     website = EXCLUDED.website,
		     timezone = EXCLUDED.timezone,
		     language = EXCLUDED.language,
		     email_notifications = EXCLUDED.email_notifications,
		     sms_notifications = EXCLUDED.sms_notifications,
		     updated_at = now()
		 RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query, p.UserID,
		dbx.NullString(p.PhoneNumber), dbx.NullString(p.Address), dbx.NullString(p.DateOfBirth),
		dbx.NullString(p.Bio), dbx.NullString(p.Website), dbx.NullString(p.Timezone), dbx.NullString(p.Language),
		p.EmailNotifications, p.SMSNotifications,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
