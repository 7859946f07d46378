package sessions

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
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var sessionRowColumns = []string{"id", "user_id", "token", "refresh_token", "is_revoked", "ip_address",
	"user_agent", "expires_at", "last_activity_at", "created_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour)
	now := time.Now()
	q := `(?s)^INSERT\s+INTO\s+sessions\s*\(user_id,\s*token,\s*refresh_token,\s*ip_address,\s*user_agent,\s*expires_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+id,\s*last_activity_at,\s*created_at\s*$`
	mock.ExpectQuery(q).
		WithArgs("u-1", "acc", "ref", sql.NullString{String: "10.0.0.1", Valid: true}, sql.NullString{}, exp).
		WillReturnRows(sqlmock.NewRows([]string{"id", "last_activity_at", "created_at"}).AddRow("s-1", now, now))

	got, err := repo.Create(context.Background(), &models.Session{UserID: "u-1", Token: "acc", RefreshToken: "ref", IPAddress: "10.0.0.1", ExpiresAt: exp})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "s-1" || !got.CreatedAt.Equal(now) {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestFindByToken_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*user_id,.*created_at\s+FROM\s+sessions\s+WHERE\s+token\s*=\s*\$1\s*$`).
		WithArgs("acc").
		WillReturnRows(sqlmock.NewRows(sessionRowColumns).AddRow("s-1", "u-1", "acc", "ref", false, nil, "curl", now.Add(time.Hour), now, now))

	got, err := repo.FindByToken(context.Background(), "acc")
	if err != nil {
		t.Fatalf("FindByToken error: %v", err)
	}
	if got.UserID != "u-1" || got.IPAddress != "" || got.UserAgent != "curl" || !got.Usable(now) {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestFindByRefreshToken_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+.+\s+FROM\s+sessions\s+WHERE\s+refresh_token\s*=\s*\$1\s*$`).
		WithArgs("ref").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.FindByRefreshToken(context.Background(), "ref"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}

func TestRevokeByToken_ScopedToUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+sessions\s+SET\s+is_revoked\s*=\s*TRUE\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+token\s*=\s*\$2`).
		WithArgs("u-2", "acc").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.RevokeByToken(context.Background(), "u-2", "acc")
	if err != nil || n != 0 {
		t.Fatalf("expected no rows changed, got %d, %v", n, err)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+sessions\s+SET\s+is_revoked\s*=\s*TRUE\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+NOT\s+is_revoked\s*$`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllForUser(context.Background(), "u-1")
	if err != nil || n != 3 {
		t.Fatalf("expected 3 revoked, got %d, %v", n, err)
	}
}

func TestTouch_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now()
	mock.ExpectExec(`(?s)^UPDATE\s+sessions\s+SET\s+last_activity_at\s*=\s*\$2`).
		WithArgs("s-1", at).
		WillReturnError(errors.New("db down"))

	err := repo.Touch(context.Background(), "s-1", at)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
