// Package sessions persists attendance sessions (the user_sessions
// collection). Backends: PostgreSQL and SQLite via database/sql, Redis,
// and an in-process memory store.
//
// Every backend keeps at most one active session per unique id; the
// check-and-insert in Create and the check-and-close in CloseActive are
// atomic within the backend.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/qrkiosk/internal/models"
)

type Repository interface {
	// FindActive returns the open session for uniqueID or
	// common.ErrorNotFound.
	FindActive(ctx context.Context, uniqueID string) (*models.Session, error)
	// Create stores s as active, assigning s.ID when empty. It returns
	// common.ErrAlreadyActive when uniqueID already has an open session.
	Create(ctx context.Context, s *models.Session) error
	// CloseActive marks the open session for uniqueID inactive at the given
	// time and returns it, or common.ErrorNotFound.
	CloseActive(ctx context.Context, uniqueID string, at time.Time) (*models.Session, error)
	ListActive(ctx context.Context) ([]models.Session, error)
	Ping(ctx context.Context) error
	Close() error
}
