// Package httpapi exposes the kiosk to operator front-ends over HTTP: JSON
// endpoints for every kiosk command and a WebSocket stream of state
// snapshots.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
	"github.com/dmitrijs2005/qrkiosk/internal/kiosk"
	"github.com/dmitrijs2005/qrkiosk/internal/logging"
	"github.com/dmitrijs2005/qrkiosk/internal/models"
	"github.com/dmitrijs2005/qrkiosk/internal/session"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
)

const maxBodySize = 4096

// Kiosk is the state machine surface driven by the API.
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

type Server struct {
	kiosk    Kiosk
	sessions Sessions
	origins  []string
	logger   logging.Logger
	upgrader websocket.Upgrader
}

// New builds the API. allowedOrigins is a comma separated list or "*".
func New(k Kiosk, sessions Sessions, allowedOrigins string, logger logging.Logger) *Server {
	s := &Server{
		kiosk:    k,
		sessions: sessions,
		origins:  splitOrigins(allowedOrigins),
		logger:   logger.With("module", "httpapi"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func splitOrigins(v string) []string {
	var out []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, o := range s.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(s.recoverJSON)
	r.Use(s.requestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.getState)
		r.Post("/scan", s.startScan)
		r.Post("/scan/cancel", s.cancelScan)
		r.Post("/scan/manual", s.submit)
		r.Post("/reset", s.reset)
		r.Post("/session/login", s.login)
		r.Post("/session/logout", s.logout)
		r.Get("/sessions", s.activeSessions)
		r.Get("/ws", s.serveWS)
	})
	return r
}

// Serve runs the API on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		// websocket streams end with ctx
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http api listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.kiosk.View())
}

// commandError writes err, preferring the operator message from the view.
func (s *Server) commandError(w http.ResponseWriter, r *http.Request, err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, common.ErrInvalidTransition):
		msg = kiosk.MsgInvalidCommand
	default:
		if v := s.kiosk.View(); v.Error && v.Message != "" {
			msg = v.Message
		}
	}
	s.writeError(w, r, statusFor(err), msg)
}

func (s *Server) startScan(w http.ResponseWriter, r *http.Request) {
	if err := s.kiosk.StartScan(r.Context()); err != nil {
		s.commandError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusAccepted, s.kiosk.View())
}

func (s *Server) cancelScan(w http.ResponseWriter, r *http.Request) {
	if err := s.kiosk.CancelScan(); err != nil {
		s.commandError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.kiosk.View())
}

type manualRequest struct {
	Code string `json:"code"`
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var req manualRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.kiosk.Submit(r.Context(), req.Code); err != nil {
		s.commandError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.kiosk.View())
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	if err := s.kiosk.Reset(); err != nil {
		s.commandError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.kiosk.View())
}

type attendanceResponse struct {
	Result session.Result `json:"result"`
	View   kiosk.View     `json:"view"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.attendance(w, r, s.kiosk.Login)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.attendance(w, r, s.kiosk.Logout)
}

// attendance replies 200 for every outcome the guard classified, including
// "already logged in"; Result.Success tells them apart.
func (s *Server) attendance(w http.ResponseWriter, r *http.Request, op func(context.Context) (session.Result, error)) {
	res, err := op(r.Context())
	if err != nil {
		s.commandError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, attendanceResponse{Result: res, View: s.kiosk.View()})
}

func (s *Server) activeSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.sessions.Active(r.Context())
	if err != nil {
		msg := err.Error()
		if errors.Is(err, common.ErrNotConfigured) {
			msg = session.MsgNotConfigured
		}
		s.writeError(w, r, statusFor(err), msg)
		return
	}
	if list == nil {
		list = []models.Session{}
	}
	s.writeJSON(w, r, http.StatusOK, list)
}
