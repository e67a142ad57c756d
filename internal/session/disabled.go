package session

import (
	"context"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
	"github.com/dmitrijs2005/qrkiosk/internal/models"
)

// Disabled is the degraded-mode recorder used when no store is configured.
// Identification keeps working; attendance calls fail with MsgNotConfigured.
type Disabled struct{}

func (Disabled) Connected() bool { return false }

func (Disabled) CheckStatus(context.Context, string) bool { return false }

func (Disabled) Login(context.Context, models.Person) Result {
	return Result{Message: MsgNotConfigured, Err: common.ErrNotConfigured}
}

func (Disabled) Logout(context.Context, models.Person) Result {
	return Result{Message: MsgNotConfigured, Err: common.ErrNotConfigured}
}

func (Disabled) Active(context.Context) ([]models.Session, error) {
	return nil, common.ErrNotConfigured
}

func (Disabled) Ping(context.Context) error { return common.ErrNotConfigured }
