package shares

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/showroom/internal/common"
	"github.com/dmitrijs2005/showroom/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var shareCols = []string{"id", "code", "password_hash", "active", "expires_at", "view_count",
	"last_accessed_at", "created_by", "created_at", "updated_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	q := `(?s)^INSERT\s+INTO\s+shares\s*\(id,\s*code,\s*password_hash,\s*active,\s*expires_at,\s*created_by\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+created_at,\s*updated_at$`
	mock.ExpectQuery(q).
		WithArgs("s-1", "ABCD1234", "hash", true, nil, "admin").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))

	s := &models.Share{ID: "s-1", Code: "ABCD1234", PasswordHash: "hash", Active: true, CreatedBy: "admin"}
	require.NoError(t, repo.Create(context.Background(), s))
	assert.Equal(t, created, s.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateCode(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`INSERT\s+INTO\s+shares`).WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &models.Share{ID: "s-1", Code: "ABCD"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`INSERT\s+INTO\s+shares`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.Share{ID: "s-1", Code: "ABCD"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByCode_Found(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()
	exp := now.Add(time.Hour)

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*code,.*FROM\s+shares\s+WHERE\s+code\s*=\s*\$1$`).
		WithArgs("ABCD1234").
		WillReturnRows(sqlmock.NewRows(shareCols).
			AddRow("s-1", "ABCD1234", "hash", true, exp, int64(3), nil, "admin", now, now))

	s, err := repo.GetByCode(context.Background(), "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, "s-1", s.ID)
	assert.True(t, s.Active)
	require.NotNil(t, s.ExpiresAt)
	assert.True(t, s.ExpiresAt.Equal(exp))
	assert.Nil(t, s.LastAccessedAt)
	assert.Equal(t, int64(3), s.ViewCount)
}

func TestGetByCode_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM\s+shares\s+WHERE\s+code`).WithArgs("NOPE").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM\s+shares\s+WHERE\s+id`).WithArgs("s-1").WillReturnError(errors.New("db err"))

	_, err := repo.GetByID(context.Background(), "s-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
}

func TestList(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)FROM\s+shares\s+ORDER\s+BY\s+created_at\s+DESC`).
		WillReturnRows(sqlmock.NewRows(shareCols).
			AddRow("s-2", "BBBB", "h", false, nil, int64(0), now, "admin", now, now).
			AddRow("s-1", "AAAA", "h", true, nil, int64(1), nil, "admin", now, now))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "BBBB", list[0].Code)
	assert.NotNil(t, list[0].LastAccessedAt)
}

func TestCodeExists(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`SELECT\s+EXISTS`).WithArgs("TAKEN").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.CodeExists(context.Background(), "TAKEN")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	q := `(?s)^UPDATE\s+shares\s+SET\s+code\s*=\s*\$2,\s*password_hash\s*=\s*\$3,\s*active\s*=\s*\$4,\s*expires_at\s*=\s*\$5,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s+RETURNING\s+updated_at$`
	mock.ExpectQuery(q).WithArgs("s-1", "NEW456", "h", false, nil).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

	s := &models.Share{ID: "s-1", Code: "NEW456", PasswordHash: "h"}
	require.NoError(t, repo.Update(context.Background(), s))
	assert.Equal(t, now, s.UpdatedAt)

	mock.ExpectQuery(`UPDATE\s+shares`).WillReturnError(sql.ErrNoRows)
	assert.ErrorIs(t, repo.Update(context.Background(), s), common.ErrorNotFound)

	mock.ExpectQuery(`UPDATE\s+shares`).WillReturnError(&pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, repo.Update(context.Background(), s), common.ErrorAlreadyExists)
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`^DELETE\s+FROM\s+shares\s+WHERE\s+id\s*=\s*\$1$`).WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "s-1"))

	mock.ExpectExec(`DELETE\s+FROM\s+shares`).WithArgs("s-2").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "s-2"), common.ErrorNotFound)
}

func TestRecordView(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Now().UTC()

	mock.ExpectExec(`(?s)^UPDATE\s+shares\s+SET\s+view_count\s*=\s*view_count\s*\+\s*1,\s*last_accessed_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("s-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RecordView(context.Background(), "s-1", at))

	mock.ExpectExec(`UPDATE\s+shares\s+SET\s+view_count`).WillReturnError(errors.New("boom"))
	require.Error(t, repo.RecordView(context.Background(), "s-1", at))
}
