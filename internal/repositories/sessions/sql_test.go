package sessions

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/qrkiosk/internal/common"
	"github.com/dmitrijs2005/qrkiosk/internal/dbx"
	"github.com/dmitrijs2005/qrkiosk/internal/migrations"
	"github.com/dmitrijs2005/qrkiosk/internal/models"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionCols = []string{"id", "unique_id", "first_name", "last_name", "id_number", "affiliation", "is_active", "logged_in_at", "logged_out_at"}

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLRepository(db, dbx.Postgres), mock
}

const (
	insertRe     = `(?s)^INSERT\s+INTO\s+user_sessions\s*\(id,\s*unique_id,.*logged_in_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*TRUE,\s*\$7\)\s*ON\s+CONFLICT\s+DO\s+NOTHING\s+RETURNING\s+id$`
	findActiveRe = `(?s)^SELECT\s+id,.*FROM\s+user_sessions\s+WHERE\s+unique_id\s*=\s*\$1\s+AND\s+is_active\s*=\s*TRUE`
	closeRe      = `(?s)^UPDATE\s+user_sessions\s+SET\s+is_active\s*=\s*FALSE,\s*logged_out_at\s*=\s*\$1\s+WHERE\s+id\s*=\s*\$2\s+AND\s+is_active\s*=\s*TRUE$`
	listActiveRe = `(?s)^SELECT\s+id,.*FROM\s+user_sessions\s+WHERE\s+is_active\s*=\s*TRUE\s+ORDER\s+BY\s+logged_in_at$`
)

func TestSQLRepository_Create_Success(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(insertRe).
		WithArgs("s-1", "U1", "Ana", "Lee", "7", "Ops", at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s-1"))

	s := models.NewSession(ana, at)
	s.ID = "s-1"
	require.NoError(t, repo.Create(context.Background(), s))
	assert.True(t, s.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_Create_GeneratesID(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(insertRe).
		WithArgs(sqlmock.AnyArg(), "U1", "Ana", "Lee", "7", "Ops", at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("generated"))

	s := models.NewSession(ana, at)
	require.NoError(t, repo.Create(context.Background(), s))
	assert.Len(t, s.ID, 36)
}

func TestSQLRepository_Create_ConflictIsAlreadyActive(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertRe).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := repo.Create(context.Background(), models.NewSession(ana, time.Now()))
	require.ErrorIs(t, err, common.ErrAlreadyActive)
}

func TestSQLRepository_Create_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertRe).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), models.NewSession(ana, time.Now()))
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestSQLRepository_FindActive(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(findActiveRe).
			WithArgs("U1").
			WillReturnRows(sqlmock.NewRows(sessionCols).AddRow("s-1", "U1", "Ana", "Lee", "7", "Ops", true, at, nil))

		got, err := repo.FindActive(context.Background(), "U1")
		require.NoError(t, err)
		assert.Equal(t, "s-1", got.ID)
		assert.True(t, got.IsActive)
		assert.Equal(t, at, got.LoggedInAt)
		assert.Nil(t, got.LoggedOutAt)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(findActiveRe).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

		_, err := repo.FindActive(context.Background(), "ghost")
		require.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("db error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(findActiveRe).WithArgs("U1").WillReturnError(errors.New("db err"))

		_, err := repo.FindActive(context.Background(), "U1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, common.ErrorNotFound)
		assert.Contains(t, err.Error(), "db error: db err")
	})
}

func TestSQLRepository_CloseActive(t *testing.T) {
	in := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	out := in.Add(time.Hour)

	t.Run("closes in transaction", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(findActiveRe).
			WithArgs("U1").
			WillReturnRows(sqlmock.NewRows(sessionCols).AddRow("s-1", "U1", "Ana", "Lee", "7", "Ops", true, in, nil))
		mock.ExpectExec(closeRe).WithArgs(out, "s-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		got, err := repo.CloseActive(context.Background(), "U1", out)
		require.NoError(t, err)
		assert.Equal(t, "s-1", got.ID)
		assert.False(t, got.IsActive)
		require.NotNil(t, got.LoggedOutAt)
		assert.Equal(t, out, *got.LoggedOutAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no active session rolls back", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(findActiveRe).WithArgs("U1").WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.CloseActive(context.Background(), "U1", out)
		require.ErrorIs(t, err, common.ErrorNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lost race rolls back", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(findActiveRe).
			WithArgs("U1").
			WillReturnRows(sqlmock.NewRows(sessionCols).AddRow("s-1", "U1", "Ana", "Lee", "7", "Ops", true, in, nil))
		mock.ExpectExec(closeRe).WithArgs(out, "s-1").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := repo.CloseActive(context.Background(), "U1", out)
		require.ErrorIs(t, err, common.ErrorNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(findActiveRe).
			WithArgs("U1").
			WillReturnRows(sqlmock.NewRows(sessionCols).AddRow("s-1", "U1", "Ana", "Lee", "7", "Ops", true, in, nil))
		mock.ExpectExec(closeRe).WillReturnError(errors.New("boom"))
		mock.ExpectRollback()

		_, err := repo.CloseActive(context.Background(), "U1", out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db error: boom")
	})

	t.Run("begin error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectBegin().WillReturnError(errors.New("no conn"))

		_, err := repo.CloseActive(context.Background(), "U1", out)
		require.Error(t, err)
	})
}

func TestSQLRepository_ListActive(t *testing.T) {
	in := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("rows", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(listActiveRe).WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow("s-1", "U1", "Ana", "Lee", "7", "Ops", true, in, nil).
			AddRow("s-2", "U2", "Bob", "Ray", "8", "Lab", true, in.Add(time.Minute), nil))

		got, err := repo.ListActive(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "s-1", got[0].ID)
		assert.Equal(t, "Bob", got[1].FirstName)
	})

	t.Run("empty is non-nil", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(listActiveRe).WillReturnRows(sqlmock.NewRows(sessionCols))

		got, err := repo.ListActive(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("query error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(listActiveRe).WillReturnError(errors.New("down"))

		_, err := repo.ListActive(context.Background())
		require.Error(t, err)
	})

	t.Run("row error", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(listActiveRe).WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow("s-1", "U1", "Ana", "Lee", "7", "Ops", true, in, nil).
			RowError(0, errors.New("broken row")))

		_, err := repo.ListActive(context.Background())
		require.Error(t, err)
	})
}

func TestSQLRepository_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	repo := NewSQLRepository(db, dbx.Postgres)

	mock.ExpectPing()
	require.NoError(t, repo.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("gone"))
	require.Error(t, repo.Ping(context.Background()))
}

func TestRunMigrations_UsesDialectDirectory(t *testing.T) {
	tests := []struct {
		dialect dbx.Dialect
		dir     string
	}{
		{dbx.Postgres, migrations.PostgresDir},
		{dbx.SQLite, migrations.SQLiteDir},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect), func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			orig := gooseUpContext
			defer func() { gooseUpContext = orig }()

			var gotDir string
			gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
				gotDir = dir
				return nil
			}

			require.NoError(t, NewSQLRepository(db, tt.dialect).RunMigrations(context.Background()))
			assert.Equal(t, tt.dir, gotDir)
		})
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	err = NewSQLRepository(db, dbx.Postgres).RunMigrations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
