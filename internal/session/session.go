// Package session records attendance: it keeps at most one active session
// per unique id and turns every store outcome into an operator message.
package session

import (
	"context"
	"time"

	"github.com/dmitrijs2005/qrkiosk/internal/logging"
	"github.com/dmitrijs2005/qrkiosk/internal/models"
)

// Operator messages that do not depend on the person.
const (
	MsgNotConfigured = "Database not configured. Please try again."
	MsgLoginFailed   = "Failed to login user"
	MsgLogoutFailed  = "Failed to logout user"
)

// Store is the persistence the guard needs. Implementations must make
// Create and CloseActive atomic per unique id.
type Store interface {
	FindActive(ctx context.Context, uniqueID string) (*models.Session, error)
	Create(ctx context.Context, s *models.Session) error
	CloseActive(ctx context.Context, uniqueID string, at time.Time) (*models.Session, error)
	ListActive(ctx context.Context) ([]models.Session, error)
	Ping(ctx context.Context) error
}

// Result is the outcome of a login or logout. Message is always set and
// ready to show; Err carries the classified cause on failure.
type Result struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Session *models.Session `json:"session,omitempty"`
	Err     error           `json:"-"`
}

// Recorder is implemented by Guard and by Disabled (degraded mode).
type Recorder interface {
	// Connected reports whether attendance can currently be recorded.
	Connected() bool
	// CheckStatus reports whether uniqueID has an active session. Store
	// failures and degraded mode yield false.
	CheckStatus(ctx context.Context, uniqueID string) bool
	Login(ctx context.Context, p models.Person) Result
	Logout(ctx context.Context, p models.Person) Result
	Active(ctx context.Context) ([]models.Session, error)
	Ping(ctx context.Context) error
}

// NewRecorder returns a Guard over store, or Disabled when store is nil.
func NewRecorder(store Store, timeout time.Duration, logger logging.Logger) Recorder {
	if store == nil {
		return Disabled{}
	}
	return NewGuard(store, timeout, logger)
}
