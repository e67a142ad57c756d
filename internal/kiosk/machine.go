// Package kiosk implements the kiosk state machine:
//
//	idle --StartScan--> scanning
//	scanning --decoded, roster hit--> verified
//	scanning --decoded, roster miss--> not-verified
//	scanning --timeout / device error--> idle (message set)
//	scanning --CancelScan--> idle
//	verified | not-verified --Reset--> idle
//
// All transitions are serialized by one mutex. Asynchronous completions
// (decoder results, store calls) carry the generation they were started in
// and are dropped if the kiosk has moved on.
package kiosk

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
	"github.com/dmitrijs2005/qrkiosk/internal/decoder"
	"github.com/dmitrijs2005/qrkiosk/internal/logging"
	"github.com/dmitrijs2005/qrkiosk/internal/models"
	"github.com/dmitrijs2005/qrkiosk/internal/session"
)

// DefaultMessageTTL is how long a login/logout message stays on screen.
const DefaultMessageTTL = 3 * time.Second

// Roster resolves scanned ids.
type Roster interface {
	FindByUniqueID(id string) (models.Person, bool)
}

// Scanner runs one scanning session at a time. onResult may be called
// from any goroutine, but not before Start returns.
type Scanner interface {
	Start(ctx context.Context, onResult func(decoder.Result)) error
	Stop()
}

type Option func(*Machine)

// WithMessageTTL overrides DefaultMessageTTL. Zero keeps messages until
// the next transition.
func WithMessageTTL(d time.Duration) Option {
	return func(m *Machine) { m.messageTTL = d }
}

type Machine struct {
	roster   Roster
	scanner  Scanner
	recorder session.Recorder
	logger   logging.Logger

	messageTTL time.Duration

	mu        sync.Mutex
	view      View
	msgSeq    uint64
	msgTimer  *time.Timer
	subs      map[int]chan View
	nextSubID int
}

func New(roster Roster, scanner Scanner, recorder session.Recorder, logger logging.Logger, opts ...Option) *Machine {
	m := &Machine{
		roster:     roster,
		scanner:    scanner,
		recorder:   recorder,
		logger:     logger.With("module", "kiosk"),
		messageTTL: DefaultMessageTTL,
		subs:       make(map[int]chan View),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.view = View{State: StateIdle, Store: StoreOnline, StoreConnected: recorder.Connected()}
	if _, disabled := recorder.(session.Disabled); disabled {
		m.view.Store = StoreDisabled
	}
	return m
}

// View returns the current snapshot.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view.clone()
}

// StartScan moves idle to scanning and starts the decoder. A device error
// leaves the kiosk idle with the message set and is returned.
func (m *Machine) StartScan(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.view.State != StateIdle {
		return common.ErrInvalidTransition
	}

	gen := m.advanceLocked(StateScanning)
	if err := m.scanner.Start(ctx, func(r decoder.Result) { m.onScanResult(gen, r) }); err != nil {
		m.view.State = StateIdle
		m.setMessageLocked(scanMessage(err), true, false)
		m.logger.Warn(ctx, "scan could not start", "error", err)
		m.publishLocked()
		return err
	}

	m.logger.Info(ctx, "scanning started", "generation", gen)
	m.publishLocked()
	return nil
}

// CancelScan stops an active scan and returns to idle.
func (m *Machine) CancelScan() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.view.State != StateScanning {
		return common.ErrInvalidTransition
	}
	m.scanner.Stop()
	m.advanceLocked(StateIdle)
	m.publishLocked()
	return nil
}

// Reset returns from verified or not-verified to idle. It is a no-op
// when already idle.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.view.State {
	case StateIdle:
		return nil
	case StateScanning:
		return common.ErrInvalidTransition
	}
	m.advanceLocked(StateIdle)
	m.publishLocked()
	return nil
}

// Submit resolves text as if it had been decoded. It is accepted while idle
// or scanning (an active scan is stopped first).
func (m *Machine) Submit(ctx context.Context, text string) error {
	m.mu.Lock()
	switch m.view.State {
	case StateScanning:
		m.scanner.Stop()
	case StateIdle:
	default:
		m.mu.Unlock()
		return common.ErrInvalidTransition
	}
	gen := m.advanceLocked(StateScanning)
	m.mu.Unlock()

	m.resolve(ctx, gen, text)
	return nil
}

func (m *Machine) onScanResult(gen uint64, r decoder.Result) {
	ctx := context.Background()

	if r.Err != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.currentLocked(gen, StateScanning) {
			return
		}
		m.view.State = StateIdle
		m.setMessageLocked(scanMessage(r.Err), true, false)
		m.logger.Info(ctx, "scan failed", "error", r.Err)
		m.publishLocked()
		return
	}

	m.resolve(ctx, gen, r.Text)
}

// resolve looks text up and enters verified or not-verified. For a match
// the attendance status is fetched outside the lock.
func (m *Machine) resolve(ctx context.Context, gen uint64, text string) {
	m.mu.Lock()
	if !m.currentLocked(gen, StateScanning) {
		m.mu.Unlock()
		return
	}

	p, ok := m.roster.FindByUniqueID(strings.TrimSpace(text))
	if !ok {
		m.view.State = StateNotVerified
		m.view.ScanText = text
		m.logger.Info(ctx, "scan not verified", "length", len(text))
		m.publishLocked()
		m.mu.Unlock()
		return
	}

	m.view.State = StateVerified
	m.view.Person = &p
	m.view.Busy = true
	m.logger.Info(ctx, "scan verified", "unique_id", p.UniqueID)
	m.publishLocked()
	m.mu.Unlock()

	loggedIn := m.recorder.CheckStatus(ctx, p.UniqueID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(gen, StateVerified) {
		return
	}
	m.view.LoggedIn = loggedIn
	m.view.Busy = false
	m.publishLocked()
}

// Login records attendance for the verified person. The result is returned
// even if the kiosk moved on meanwhile; the view is only updated if not.
func (m *Machine) Login(ctx context.Context) (session.Result, error) {
	return m.attendance(ctx, m.recorder.Login, func(r session.Result) (bool, bool) {
		switch {
		case r.Success, errors.Is(r.Err, common.ErrAlreadyActive):
			return true, true
		}
		return false, false
	})
}

// Logout closes the verified person's session.
func (m *Machine) Logout(ctx context.Context) (session.Result, error) {
	return m.attendance(ctx, m.recorder.Logout, func(r session.Result) (bool, bool) {
		switch {
		case r.Success, errors.Is(r.Err, common.ErrorNotFound):
			return false, true
		}
		return false, false
	})
}

// attendance runs op for the verified person. status maps the result to
// the new LoggedIn value and whether it is known.
func (m *Machine) attendance(
	ctx context.Context,
	op func(context.Context, models.Person) session.Result,
	status func(session.Result) (loggedIn bool, known bool),
) (session.Result, error) {
	m.mu.Lock()
	if m.view.State != StateVerified || m.view.Busy {
		m.mu.Unlock()
		return session.Result{}, common.ErrInvalidTransition
	}
	gen := m.view.Generation
	p := *m.view.Person
	m.view.Busy = true
	m.publishLocked()
	m.mu.Unlock()

	res := op(ctx, p)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(gen, StateVerified) {
		return res, nil
	}
	if loggedIn, known := status(res); known {
		m.view.LoggedIn = loggedIn
	}
	m.view.Busy = false
	m.setMessageLocked(res.Message, !res.Success, true)
	m.publishLocked()
	return res, nil
}

// SetStoreMode updates the store indicator.
func (m *Machine) SetStoreMode(mode StoreMode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.view.Store == mode {
		return
	}
	m.view.Store = mode
	m.view.StoreConnected = mode == StoreOnline
	m.logger.Info(context.Background(), "session store mode changed", "mode", string(mode))
	m.publishLocked()
}

// Subscribe returns a channel receiving every new View and a cancel func.
// Slow subscribers only lose intermediate snapshots, never the latest.
func (m *Machine) Subscribe(buf int) (<-chan View, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan View, buf)

	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = ch
	ch <- m.view.clone()
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// advanceLocked starts a new generation in state s, clearing payloads.
func (m *Machine) advanceLocked(s State) uint64 {
	m.view.Generation++
	m.view.State = s
	m.view.Person = nil
	m.view.ScanText = ""
	m.view.LoggedIn = false
	m.view.Busy = false
	m.clearMessageLocked()
	return m.view.Generation
}

func (m *Machine) currentLocked(gen uint64, s State) bool {
	return m.view.Generation == gen && m.view.State == s
}

func (m *Machine) setMessageLocked(msg string, isErr, expire bool) {
	m.clearMessageLocked()
	m.view.Message = msg
	m.view.Error = isErr

	if !expire || m.messageTTL <= 0 {
		return
	}
	seq := m.msgSeq
	m.msgTimer = time.AfterFunc(m.messageTTL, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.msgSeq != seq {
			return
		}
		m.view.Message = ""
		m.view.Error = false
		m.publishLocked()
	})
}

func (m *Machine) clearMessageLocked() {
	m.msgSeq++
	if m.msgTimer != nil {
		m.msgTimer.Stop()
		m.msgTimer = nil
	}
	m.view.Message = ""
	m.view.Error = false
}

func (m *Machine) publishLocked() {
	v := m.view.clone()
	for _, ch := range m.subs {
		select {
		case ch <- v:
			continue
		default:
		}
		// full: drop the oldest snapshot
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
