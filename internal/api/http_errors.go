package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

// statusByCategory maps domain error categories to response codes.
// Categories not listed are internal errors.
var statusByCategory = map[core.ErrorCategory]int{
	core.ErrCatValidation: http.StatusUnprocessableEntity,
	core.ErrCatNotFound:   http.StatusNotFound,
	core.ErrCatState:      http.StatusConflict,
	core.ErrCatAuth:       http.StatusUnauthorized,
	core.ErrCatPermission: http.StatusForbidden,
	core.ErrCatRateLimit:  http.StatusTooManyRequests,
	core.ErrCatTimeout:    http.StatusGatewayTimeout,
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps a checkpoint store failure to a response. Domain
// errors keep their message; anything else is logged and hidden.
func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	var de *core.DomainError
	switch {
	case errors.As(err, &de):
		status, ok := statusByCategory[de.Category]
		if !ok {
			status = http.StatusInternalServerError
		}
		s.respondError(w, status, core.ErrorMessage(err))
	case errors.Is(err, context.DeadlineExceeded):
		s.respondError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		s.logger.Error("checkpoint store error", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
