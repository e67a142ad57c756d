package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
	"github.com/dmitrijs2005/qrkiosk/internal/dbx"
	"github.com/dmitrijs2005/qrkiosk/internal/migrations"
	"github.com/dmitrijs2005/qrkiosk/internal/models"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
)

const sessionColumns = `id, unique_id, first_name, last_name, id_number, affiliation, is_active, logged_in_at, logged_out_at`

const (
	insertQuery = `INSERT INTO user_sessions (id, unique_id, first_name, last_name, id_number, affiliation, is_active, logged_in_at)
		VALUES (?, ?, ?, ?, ?, ?, TRUE, ?)
		ON CONFLICT DO NOTHING
		RETURNING id`

	findActiveQuery = `SELECT ` + sessionColumns + ` FROM user_sessions
		WHERE unique_id = ? AND is_active = TRUE
		ORDER BY logged_in_at DESC LIMIT 1`

	closeQuery = `UPDATE user_sessions SET is_active = FALSE, logged_out_at = ?
		WHERE id = ? AND is_active = TRUE`

	listActiveQuery = `SELECT ` + sessionColumns + ` FROM user_sessions
		WHERE is_active = TRUE
		ORDER BY logged_in_at`
)

// SQLRepository implements Repository over database/sql. Queries are
// written with "?" and rebound for the dialect at construction.
type SQLRepository struct {
	db      *sql.DB
	dialect dbx.Dialect

	insertQ     string
	findActiveQ string
	closeQ      string
	listActiveQ string
}

func NewSQLRepository(db *sql.DB, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{
		db:          db,
		dialect:     dialect,
		insertQ:     dbx.Rebind(dialect, insertQuery),
		findActiveQ: dbx.Rebind(dialect, findActiveQuery),
		closeQ:      dbx.Rebind(dialect, closeQuery),
		listActiveQ: dbx.Rebind(dialect, listActiveQuery),
	}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations for the repository dialect.
func (r *SQLRepository) RunMigrations(ctx context.Context) error {
	dir := migrations.PostgresDir
	if r.dialect == dbx.SQLite {
		dir = migrations.SQLiteDir
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(string(r.dialect)); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, r.db, dir); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (r *SQLRepository) FindActive(ctx context.Context, uniqueID string) (*models.Session, error) {
	return r.findActive(ctx, r.db, uniqueID)
}

func (r *SQLRepository) findActive(ctx context.Context, db dbx.DBTX, uniqueID string) (*models.Session, error) {
	s, err := scanSession(db.QueryRowContext(ctx, r.findActiveQ, uniqueID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *SQLRepository) Create(ctx context.Context, s *models.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	var id string
	err := r.db.QueryRowContext(ctx, r.insertQ,
		s.ID, s.UniqueID, s.FirstName, s.LastName, s.IDNumber, s.Affiliation, s.LoggedInAt.UTC()).Scan(&id)
	if err != nil {
		// DO NOTHING returns no row when the active index rejects the insert
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrAlreadyActive
		}
		return fmt.Errorf("db error: %w", err)
	}

	s.IsActive = true
	s.LoggedOutAt = nil
	return nil
}

func (r *SQLRepository) CloseActive(ctx context.Context, uniqueID string, at time.Time) (*models.Session, error) {
	var closed *models.Session

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		s, err := r.findActive(ctx, tx, uniqueID)
		if err != nil {
			return err
		}

		at = at.UTC()
		res, err := tx.ExecContext(ctx, r.closeQ, at, s.ID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n == 0 {
			// closed concurrently between select and update
			return common.ErrorNotFound
		}

		s.IsActive = false
		s.LoggedOutAt = &at
		closed = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (r *SQLRepository) ListActive(ctx context.Context) ([]models.Session, error) {
	rows, err := r.db.QueryContext(ctx, r.listActiveQ)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s         models.Session
		loggedOut sql.NullTime
	)
	err := row.Scan(&s.ID, &s.UniqueID, &s.FirstName, &s.LastName, &s.IDNumber, &s.Affiliation,
		&s.IsActive, &s.LoggedInAt, &loggedOut)
	if err != nil {
		return nil, err
	}
	if loggedOut.Valid {
		t := loggedOut.Time
		s.LoggedOutAt = &t
	}
	return &s, nil
}
