package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/qrkiosk/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error(r.Context(), "writeJSON encode", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	s.writeJSON(w, r, status, errorResponse{Error: msg})
}

// statusFor maps a classified error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidTransition), errors.Is(err, common.ErrScanInProgress):
		return http.StatusConflict
	case errors.Is(err, common.ErrDevice), errors.Is(err, common.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, common.ErrStore):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
