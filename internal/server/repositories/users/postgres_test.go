package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var userRowColumns = []string{
	"id", "email", "password_hash", "provider", "provider_id", "name", "profile_image",
	"email_verified", "verification_token", "two_factor_enabled", "two_factor_secret",
	"failed_login_attempts", "is_locked", "is_active", "created_at", "updated_at", "last_login_at",
}

func aliceRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(userRowColumns).AddRow(
		"u-1", "alice@example.com", "$2a$hash", "EMAIL", nil, "Alice", nil,
		false, "verify-tok", false, nil,
		2, false, true, now, now, nil,
	)
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(email,.*verification_token\)\s*VALUES\s*\(\$1,.*\$8\)\s*RETURNING\s+id,\s*is_active,\s*created_at,\s*updated_at\s*$`
	now := time.Now()

	mock.ExpectQuery(q).
		WithArgs("alice@example.com", sql.NullString{String: "hash", Valid: true}, models.ProviderEmail,
			sql.NullString{}, "Alice", sql.NullString{}, false, sql.NullString{String: "tok", Valid: true}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active", "created_at", "updated_at"}).AddRow("u-1", true, now, now))

	u := &models.User{Email: "alice@example.com", PasswordHash: "hash", Provider: models.ProviderEmail, Name: "Alice", VerificationToken: "tok"}
	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "u-1" || !got.IsActive || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), &models.User{Email: "alice@example.com", Provider: models.ProviderEmail})
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("expected ErrorAlreadyExists, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "alice@example.com"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*email,.*last_login_at\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`).
		WithArgs("alice@example.com").
		WillReturnRows(aliceRow(now))

	got, err := repo.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.ID != "u-1" || got.PasswordHash != "$2a$hash" || got.FailedLogins != 2 || got.ProviderID != "" || got.LastLoginAt != nil {
		t.Fatalf("unexpected user: %+v", got)
	}
	if got.VerificationToken != "verify-tok" {
		t.Fatalf("verification token not scanned: %+v", got)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+.+\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := repo.GetByID(context.Background(), "nope")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestGetByVerificationToken_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+.+\s+FROM\s+users\s+WHERE\s+verification_token\s*=\s*\$1\s*$`).
		WithArgs("verify-tok").
		WillReturnRows(aliceRow(time.Now()))

	got, err := repo.GetByVerificationToken(context.Background(), "verify-tok")
	if err != nil || got.ID != "u-1" {
		t.Fatalf("unexpected result: %+v, %v", got, err)
	}
}

func TestFindFederated_PrefersProviderMatch(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+.+\s+FROM\s+users\s+WHERE\s+\(provider\s*=\s*\$1\s+AND\s+provider_id\s*=\s*\$2\)\s+OR\s+email\s*=\s*\$3\s+ORDER\s+BY.+DESC\s+LIMIT\s+1\s*$`
	mock.ExpectQuery(q).
		WithArgs(models.ProviderGoogle, "g-123", "alice@example.com").
		WillReturnRows(aliceRow(time.Now()))

	got, err := repo.FindFederated(context.Background(), models.ProviderGoogle, "g-123", "alice@example.com")
	if err != nil || got.Email != "alice@example.com" {
		t.Fatalf("unexpected result: %+v, %v", got, err)
	}
}

func TestRecordFailedLogin_LocksAtThreshold(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+failed_login_attempts\s*=\s*failed_login_attempts\s*\+\s*1,\s*is_locked\s*=\s*is_locked\s+OR\s+failed_login_attempts\s*\+\s*1\s*>=\s*\$2,.*RETURNING\s+failed_login_attempts,\s*is_locked\s*$`
	mock.ExpectQuery(q).
		WithArgs("u-1", 5).
		WillReturnRows(sqlmock.NewRows([]string{"failed_login_attempts", "is_locked"}).AddRow(5, true))

	attempts, locked, err := repo.RecordFailedLogin(context.Background(), "u-1", 5)
	if err != nil {
		t.Fatalf("RecordFailedLogin error: %v", err)
	}
	if attempts != 5 || !locked {
		t.Fatalf("got attempts=%d locked=%v", attempts, locked)
	}
}

func TestRecordFailedLogin_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+users`).
		WithArgs("ghost", 5).
		WillReturnRows(sqlmock.NewRows([]string{"failed_login_attempts", "is_locked"}))

	_, _, err := repo.RecordFailedLogin(context.Background(), "ghost", 5)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestRecordSuccessfulLogin(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+failed_login_attempts\s*=\s*0,\s*last_login_at\s*=\s*\$2`).
		WithArgs("u-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RecordSuccessfulLogin(context.Background(), "u-1", at); err != nil {
		t.Fatalf("RecordSuccessfulLogin error: %v", err)
	}
}

func TestUnlock_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+failed_login_attempts\s*=\s*0,\s*is_locked\s*=\s*FALSE`).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Unlock(context.Background(), "ghost"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestSetTwoFactor_ClearsSecret(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+two_factor_enabled\s*=\s*\$2,\s*two_factor_secret\s*=\s*\$3`).
		WithArgs("u-1", false, sql.NullString{}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetTwoFactor(context.Background(), "u-1", false, ""); err != nil {
		t.Fatalf("SetTwoFactor error: %v", err)
	}
}

func TestUpdatePassword_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$2`).
		WithArgs("u-1", "new-hash").
		WillReturnError(errors.New("conn reset"))

	err := repo.UpdatePassword(context.Background(), "u-1", "new-hash")
	if err == nil || !regexp.MustCompile(`db error: .*conn reset`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestUpdate_WritesIdentityFields(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+provider\s*=\s*\$2,.*is_active\s*=\s*\$8,.*WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs("u-1", models.ProviderGoogle, sql.NullString{String: "g-1", Valid: true}, "Alice",
			sql.NullString{String: "https://img", Valid: true}, true, sql.NullString{}, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &models.User{ID: "u-1", Provider: models.ProviderGoogle, ProviderID: "g-1", Name: "Alice",
		ProfileImage: "https://img", EmailVerified: true, IsActive: true}
	if err := repo.Update(context.Background(), u); err != nil {
		t.Fatalf("Update error: %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "u-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
