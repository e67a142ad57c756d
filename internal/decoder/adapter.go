// Package decoder turns a capture device into decoded QR payloads.
//
// A Source acquires the device and yields a Stream of decode attempts.
// Adapter drives one scanning session at a time: it polls the stream,
// reports the first payload (or a timeout) exactly once and releases the
// device.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
	"github.com/dmitrijs2005/qrkiosk/internal/logging"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 200 * time.Millisecond
)

// Result is the outcome of one scanning session: either Text or Err.
type Result struct {
	Text string
	Err  error
}

// Stream is an acquired device.
type Stream interface {
	// Next makes one decode attempt. ok is false when nothing was decoded
	// yet; a non-nil error ends the session.
	Next(ctx context.Context) (text string, ok bool, err error)
	Close() error
}

// Source acquires a capture device. Failures match common.ErrDevice.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

type scanSession struct {
	ctx      context.Context
	cancel   context.CancelFunc
	stream   Stream
	onResult func(Result)

	releaseOnce sync.Once
	done        chan struct{}
}

func (s *scanSession) release() {
	s.releaseOnce.Do(func() {
		s.cancel()
		_ = s.stream.Close()
	})
}

type Adapter struct {
	src     Source
	timeout time.Duration
	poll    time.Duration
	logger  logging.Logger

	mu     sync.Mutex
	active *scanSession
}

// NewAdapter wraps src. Non-positive timeout or poll fall back to the
// defaults.
func NewAdapter(src Source, timeout, poll time.Duration, logger logging.Logger) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Adapter{
		src:     src,
		timeout: timeout,
		poll:    poll,
		logger:  logger.With("module", "decoder"),
	}
}

// Start acquires the device and begins scanning in the background.
// onResult is called at most once, from another goroutine, after which the
// session has already stopped. Device errors are returned synchronously.
// The scan outlives ctx cancellation; use Stop to end it early.
func (a *Adapter) Start(ctx context.Context, onResult func(Result)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active != nil {
		return common.ErrScanInProgress
	}

	stream, err := a.src.Open(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrDevice) {
			err = fmt.Errorf("%w: %v", common.ErrDevice, err)
		}
		a.logger.Warn(ctx, "capture device unavailable", "error", err)
		return err
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	s := &scanSession{
		ctx:      sctx,
		cancel:   cancel,
		stream:   stream,
		onResult: onResult,
		done:     make(chan struct{}),
	}
	a.active = s

	a.logger.Debug(ctx, "scan started", "timeout", a.timeout.String())
	go a.run(s)
	return nil
}

// Stop ends the current session without reporting a result. It is safe to
// call at any time, including when nothing is scanning.
func (a *Adapter) Stop() {
	a.mu.Lock()
	cur := a.active
	if cur == nil {
		a.mu.Unlock()
		return
	}
	a.active = nil
	a.mu.Unlock()

	cur.release()
	a.logger.Debug(cur.ctx, "scan stopped")
}

// Scanning reports whether a session is active.
func (a *Adapter) Scanning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active != nil
}

func (a *Adapter) run(s *scanSession) {
	defer close(s.done)

	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()

	for {
		text, ok, err := s.stream.Next(s.ctx)
		switch {
		case s.ctx.Err() != nil:
			a.finishOnDone(s)
			return
		case err != nil:
			a.deliver(s, Result{Err: err})
			return
		case ok:
			a.deliver(s, Result{Text: text})
			return
		}

		select {
		case <-s.ctx.Done():
			a.finishOnDone(s)
			return
		case <-ticker.C:
		}
	}
}

func (a *Adapter) finishOnDone(s *scanSession) {
	if errors.Is(s.ctx.Err(), context.DeadlineExceeded) {
		a.deliver(s, Result{Err: common.ErrTimeout})
	}
}

// deliver reports r unless s has been stopped or superseded.
func (a *Adapter) deliver(s *scanSession, r Result) {
	a.mu.Lock()
	if a.active != s {
		a.mu.Unlock()
		return
	}
	a.active = nil
	a.mu.Unlock()

	s.release()

	if r.Err != nil {
		a.logger.Info(s.ctx, "scan ended", "error", r.Err)
	} else {
		a.logger.Debug(s.ctx, "scan decoded", "length", len(r.Text))
	}

	if s.onResult != nil {
		s.onResult(r)
	}
}
