package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
	"github.com/dmitrijs2005/qrkiosk/internal/logging"
	"github.com/dmitrijs2005/qrkiosk/internal/models"
)

// Guard enforces one active session per unique id on top of a Store.
// Each store call gets its own timeout; nothing is retried.
type Guard struct {
	store   Store
	timeout time.Duration
	logger  logging.Logger
	now     func() time.Time

	reachable atomic.Bool
}

func NewGuard(store Store, timeout time.Duration, logger logging.Logger) *Guard {
	g := &Guard{
		store:   store,
		timeout: timeout,
		logger:  logger.With("module", "session"),
		now:     time.Now,
	}
	g.reachable.Store(true)
	return g
}

func (g *Guard) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// Connected reflects the outcome of the last Ping.
func (g *Guard) Connected() bool {
	return g.reachable.Load()
}

// Ping checks the store and updates Connected.
func (g *Guard) Ping(ctx context.Context) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	err := g.store.Ping(ctx)
	was := g.reachable.Swap(err == nil)
	switch {
	case err != nil && was:
		g.logger.Warn(ctx, "session store unreachable", "error", err)
	case err == nil && !was:
		g.logger.Info(ctx, "session store reachable again")
	}
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStore, err)
	}
	return nil
}

func (g *Guard) CheckStatus(ctx context.Context, uniqueID string) bool {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	_, err := g.store.FindActive(ctx, uniqueID)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			g.logger.Error(ctx, "error checking login status", "unique_id", uniqueID, "error", err)
		}
		return false
	}
	return true
}

func (g *Guard) Login(ctx context.Context, p models.Person) Result {
	if g.CheckStatus(ctx, p.UniqueID) {
		return alreadyLoggedIn(p)
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	s := models.NewSession(p, g.now())
	if err := g.store.Create(ctx, s); err != nil {
		if errors.Is(err, common.ErrAlreadyActive) {
			// another kiosk won the insert
			return alreadyLoggedIn(p)
		}
		g.logger.Error(ctx, "login failed", "unique_id", p.UniqueID, "error", err)
		return Result{Message: MsgLoginFailed, Err: fmt.Errorf("%w: %v", common.ErrStore, err)}
	}

	g.logger.Info(ctx, "user logged in", "unique_id", p.UniqueID, "session_id", s.ID)
	return Result{
		Success: true,
		Message: p.FullName() + " logged in successfully!",
		Session: s,
	}
}

func (g *Guard) Logout(ctx context.Context, p models.Person) Result {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	s, err := g.store.CloseActive(ctx, p.UniqueID, g.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return Result{Message: p.FullName() + " is not currently logged in.", Err: common.ErrorNotFound}
		}
		g.logger.Error(ctx, "logout failed", "unique_id", p.UniqueID, "error", err)
		return Result{Message: MsgLogoutFailed, Err: fmt.Errorf("%w: %v", common.ErrStore, err)}
	}

	g.logger.Info(ctx, "user logged out", "unique_id", p.UniqueID, "session_id", s.ID)
	return Result{
		Success: true,
		Message: p.FullName() + " logged out successfully!",
		Session: s,
	}
}

func (g *Guard) Active(ctx context.Context) ([]models.Session, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	list, err := g.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStore, err)
	}
	return list, nil
}

func alreadyLoggedIn(p models.Person) Result {
	return Result{Message: p.FullName() + " is already logged in.", Err: common.ErrAlreadyActive}
}
