// Package app wires the kiosk together: configuration, logging, the roster,
// the session store, the capture device, the state machine and the operator
// surfaces (console, HTTP API, gRPC health). It also handles graceful
// shutdown.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/qrkiosk/internal/cli"
	"github.com/dmitrijs2005/qrkiosk/internal/config"
	"github.com/dmitrijs2005/qrkiosk/internal/decoder"
	"github.com/dmitrijs2005/qrkiosk/internal/filex"
	"github.com/dmitrijs2005/qrkiosk/internal/health"
	"github.com/dmitrijs2005/qrkiosk/internal/httpapi"
	"github.com/dmitrijs2005/qrkiosk/internal/kiosk"
	"github.com/dmitrijs2005/qrkiosk/internal/logging"
	"github.com/dmitrijs2005/qrkiosk/internal/repositories/sessions"
	"github.com/dmitrijs2005/qrkiosk/internal/roster"
	"github.com/dmitrijs2005/qrkiosk/internal/session"
)

const (
	rosterFetchTimeout = 30 * time.Second

	// DefaultStoreCheckInterval replaces a non-positive check interval.
	DefaultStoreCheckInterval = 10 * time.Second
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    sessions.Repository
	recorder session.Recorder
	scanner  *decoder.Adapter
	machine  *kiosk.Machine
	health   *health.Server
	api      *httpapi.Server
	console  *cli.Console
}

// NewApp loads the roster and connects the session store. A roster that
// cannot be loaded is fatal; a store that cannot be reached is not, the
// kiosk then runs without attendance.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)
	return newApp(ctx, c, logger, os.Stdin)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger, stdin io.Reader) (*App, error) {
	opener := &roster.SourceOpener{
		HTTPClient: &http.Client{Timeout: rosterFetchTimeout},
		S3: roster.S3Config{
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
		},
	}
	people, err := roster.Load(ctx, opener, c.RosterSource, logger)
	if err != nil {
		return nil, fmt.Errorf("roster init error: %w", err)
	}

	app := &App{config: c, logger: logger}

	app.store = openStore(ctx, c, logger)
	if app.store != nil {
		app.recorder = session.NewRecorder(app.store, c.StoreTimeout, logger)
	} else {
		app.recorder = session.Disabled{}
	}

	app.scanner = decoder.NewAdapter(newSource(c, logger), c.ScanTimeout, c.PollInterval, logger)
	app.machine = kiosk.New(people, app.scanner, app.recorder, logger)
	app.health = health.New(c.HealthAddr, logger)
	app.api = httpapi.New(app.machine, app.recorder, c.CORSAllowedOrigins, logger)
	app.console = cli.NewConsole(app.machine, app.recorder, stdin, logger)

	return app, nil
}

// openStore returns nil when the store is not configured or unreachable.
func openStore(ctx context.Context, c *config.Config, logger logging.Logger) sessions.Repository {
	if !c.StoreConfigured() {
		logger.Warn(ctx, "session store not configured, attendance disabled")
		return nil
	}

	openCtx, cancel := context.WithTimeout(ctx, c.StoreTimeout)
	defer cancel()

	repo, err := sessions.Open(openCtx, c.StoreURL, c.StoreKey, logger)
	if err != nil {
		logger.Error(ctx, "session store unavailable, attendance disabled", "error", err)
		return nil
	}
	return repo
}

// newSource picks the line device when configured, the camera spool
// otherwise.
func newSource(c *config.Config, logger logging.Logger) decoder.Source {
	if c.ScannerDev != "" {
		return &decoder.LineSource{Path: c.ScannerDev}
	}

	dir, err := filex.EnsureDir(c.CameraDir)
	if err != nil {
		// scanning will report "No camera found"
		logger.Warn(context.Background(), "camera directory unavailable", "dir", c.CameraDir, "error", err)
		dir = c.CameraDir
	}
	return &decoder.CameraSource{Dir: dir, Decoder: decoder.QRDecoder{TryHarder: true}}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// checkStore pings the store and propagates the result to the kiosk view
// and the health service.
func (app *App) checkStore(ctx context.Context) {
	err := app.recorder.Ping(ctx)
	if err != nil {
		app.machine.SetStoreMode(kiosk.StoreOffline)
	} else {
		app.machine.SetStoreMode(kiosk.StoreOnline)
	}
	app.health.SetStoreServing(err == nil)
}

// StartStoreWatcher checks store connectivity every interval until ctx is
// done.
func (app *App) StartStoreWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultStoreCheckInterval
	}

	app.checkStore(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			app.checkStore(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (app *App) startHealthServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.health.Run(ctx); err != nil {
		app.logger.Error(ctx, "health server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startAPIServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.api.Serve(ctx, app.config.HTTPAddr); err != nil {
		app.logger.Error(ctx, "http api failed", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a signal arrives or the operator
// exits the console.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting kiosk...", "store", string(app.machine.View().Store))

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	// an empty address disables the surface
	if app.config.HealthAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startHealthServer(ctx, cancelFunc)
		}()
	}
	if app.config.HTTPAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startAPIServer(ctx, cancelFunc)
		}()
	}

	if app.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.StartStoreWatcher(ctx, app.config.StoreCheckInterval)
		}()
	}

	// stdin reads cannot be interrupted, so the console is not waited for
	go func() {
		if app.console.Run(ctx) {
			cancelFunc()
		}
	}()

	<-ctx.Done()
	wg.Wait()

	if app.scanner.Scanning() {
		app.logger.Info(ctx, "Releasing capture device")
	}
	app.scanner.Stop()
	if app.store != nil {
		if err := app.store.Close(); err != nil {
			app.logger.Error(ctx, "closing session store", "error", err)
		}
	}
	app.logger.Info(ctx, "Kiosk stopped")
}
