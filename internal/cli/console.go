package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
	"github.com/dmitrijs2005/qrkiosk/internal/kiosk"
	"github.com/dmitrijs2005/qrkiosk/internal/logging"
	"github.com/dmitrijs2005/qrkiosk/internal/models"
	"github.com/dmitrijs2005/qrkiosk/internal/session"
	"golang.org/x/term"
)

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

// Kiosk is the state machine surface the console drives.
type Kiosk interface {
	View() kiosk.View
	StartScan(ctx context.Context) error
	CancelScan() error
	Submit(ctx context.Context, text string) error
	Reset() error
	Login(ctx context.Context) (session.Result, error)
	Logout(ctx context.Context) (session.Result, error)
	Subscribe(buf int) (<-chan kiosk.View, func())
}

// Sessions lists open attendance sessions.
type Sessions interface {
	Active(ctx context.Context) ([]models.Session, error)
}

type Console struct {
	kiosk    Kiosk
	sessions Sessions
	in       io.Reader
	prompt   bool
	logger   logging.Logger
}

// NewConsole reads commands from in. The prompt is shown only when in is a
// terminal.
func NewConsole(k Kiosk, s Sessions, in io.Reader, l logging.Logger) *Console {
	prompt := false
	if f, ok := in.(*os.File); ok {
		prompt = isTerminal(int(f.Fd()))
	}
	return &Console{
		kiosk:    k,
		sessions: s,
		in:       in,
		prompt:   prompt,
		logger:   l.With("module", "cli"),
	}
}

// Run blocks until end of input or an exit command, which it reports.
// Background state changes are printed while it runs.
func (c *Console) Run(ctx context.Context) bool {
	views, unsubscribe := c.kiosk.Subscribe(16)
	defer unsubscribe()

	watchCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.watch(watchCtx, views)
	}()
	defer func() {
		stop()
		<-done
	}()

	printlnFn("Welcome to the QR kiosk (type 'help' for commands)")
	return runREPL(ctx, c, c.status, bufio.NewScanner(c.in), c.prompt)
}

// watch prints each state once it has settled, then every new message.
func (c *Console) watch(ctx context.Context, views <-chan kiosk.View) {
	type key struct {
		gen   uint64
		state kiosk.State
	}
	var (
		shown   key
		started bool
		last    kiosk.View
	)
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-views:
			if !ok {
				return
			}
			// verified is busy while the attendance status is looked up
			if k := (key{v.Generation, v.State}); !v.Busy && (!started || k != shown) {
				printlnFn(describe(v))
				shown = k
			}
			if v.Message != "" && (v.Message != last.Message || (last.Busy && !v.Busy)) {
				printlnFn(v.Message)
			}
			if started && v.Store != last.Store {
				printlnFn("Session store is " + string(v.Store))
			}
			last, started = v, true
		}
	}
}

func (c *Console) status() string {
	v := c.kiosk.View()
	s := string(v.State)
	if v.State == kiosk.StateVerified && v.Person != nil {
		s += " " + v.Person.FullName()
	}
	return fmt.Sprintf("(%s %s)", s, v.Store)
}

// commandError prints the operator text for err.
func (c *Console) commandError(ctx context.Context, cmd string, err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidTransition):
		printlnFn(kiosk.MsgInvalidCommand)
	default:
		c.logger.Debug(ctx, "command failed", "command", cmd, "error", err)
	}
	return err
}

func (c *Console) Scan(ctx context.Context) error {
	if err := c.kiosk.StartScan(ctx); err != nil {
		return c.commandError(ctx, "scan", err)
	}
	return nil
}

func (c *Console) Cancel(ctx context.Context) error {
	if err := c.kiosk.CancelScan(); err != nil {
		return c.commandError(ctx, "cancel", err)
	}
	return nil
}

func (c *Console) Enter(ctx context.Context, code string) error {
	if err := c.kiosk.Submit(ctx, code); err != nil {
		return c.commandError(ctx, "enter", err)
	}
	return nil
}

func (c *Console) Login(ctx context.Context) error {
	if _, err := c.kiosk.Login(ctx); err != nil {
		return c.commandError(ctx, "login", err)
	}
	return nil
}

func (c *Console) Logout(ctx context.Context) error {
	if _, err := c.kiosk.Logout(ctx); err != nil {
		return c.commandError(ctx, "logout", err)
	}
	return nil
}

func (c *Console) Next(ctx context.Context) error {
	if err := c.kiosk.Reset(); err != nil {
		return c.commandError(ctx, "next", err)
	}
	return nil
}

func (c *Console) Status(context.Context) error {
	printlnFn(describe(c.kiosk.View()))
	return nil
}

func (c *Console) Who(ctx context.Context) error {
	list, err := c.sessions.Active(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNotConfigured) {
			printlnFn(session.MsgNotConfigured)
		} else {
			printlnFn(kiosk.MsgNotConnected)
		}
		return err
	}
	if len(list) == 0 {
		printlnFn("Nobody is logged in.")
		return nil
	}
	for _, s := range list {
		printlnFn(fmt.Sprintf("%-12s %s %s  since %s", s.UniqueID, s.FirstName, s.LastName, s.LoggedInAt.Local().Format("15:04:05")))
	}
	return nil
}

// describe renders v the way the kiosk screen shows it.
func describe(v kiosk.View) string {
	var b strings.Builder
	switch v.State {
	case kiosk.StateIdle:
		b.WriteString("Ready to scan.")
	case kiosk.StateScanning:
		b.WriteString("Scanning... present a QR code ('cancel' to stop).")
	case kiosk.StateVerified:
		p := v.Person
		fmt.Fprintf(&b, "Verified: %s\n  ID: %s\n  Affiliation: %s", p.FullName(), p.IDNumber, p.Affiliation)
		if v.Store != kiosk.StoreDisabled {
			if v.LoggedIn {
				b.WriteString("\n  Currently Logged In")
			} else {
				b.WriteString("\n  Not Logged In")
			}
		}
	case kiosk.StateNotVerified:
		fmt.Fprintf(&b, "Not verified: %q is not on the roster. Type 'again' to retry.", v.ScanText)
	}
	if !v.StoreConnected {
		b.WriteString("\n  [" + kiosk.MsgNotConnected + "]")
	}
	return b.String()
}
