package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

// Session status filter values.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// SessionSummaryResponse is the listing view of a session.
type SessionSummaryResponse struct {
	SessionID    string     `json:"session_id"`
	Prompt       string     `json:"prompt"`
	Complexity   string     `json:"complexity"`
	CurrentPhase string     `json:"current_phase"`
	Status       string     `json:"status"`
	Success      bool       `json:"success"`
	RetryCount   int        `json:"retry_count"`
	ErrorCount   int        `json:"error_count"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
}

// SessionListResponse wraps a session listing.
type SessionListResponse struct {
	Sessions []SessionSummaryResponse `json:"sessions"`
	Count    int                      `json:"count"`
}

// SessionResponse is the full view of a session.
type SessionResponse struct {
	SessionID    string                            `json:"session_id"`
	Prompt       string                            `json:"prompt"`
	Workspace    string                            `json:"workspace"`
	Complexity   string                            `json:"complexity"`
	CurrentPhase string                            `json:"current_phase"`
	Status       string                            `json:"status"`
	Success      bool                              `json:"success"`
	RetryCount   int                               `json:"retry_count"`
	Errors       []string                          `json:"errors"`
	Results      map[string]map[string]interface{} `json:"results"`
	StartTime    time.Time                         `json:"start_time"`
	EndTime      *time.Time                        `json:"end_time,omitempty"`
	DurationMS   int64                             `json:"duration_ms"`
}

func status(success bool, end *time.Time) string {
	switch {
	case end == nil:
		return StatusRunning
	case success:
		return StatusSucceeded
	default:
		return StatusFailed
	}
}

// handleListSessions lists stored sessions, newest first.
// Query parameters: status (running|succeeded|failed) and limit.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("status")
	switch filter {
	case "", StatusRunning, StatusSucceeded, StatusFailed:
	default:
		s.respondError(w, http.StatusBadRequest, "status must be one of: running, succeeded, failed")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	summaries, err := s.store.List(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	resp := SessionListResponse{Sessions: make([]SessionSummaryResponse, 0, len(summaries))}
	for _, sum := range summaries {
		st := status(sum.Success, sum.EndTime)
		if filter != "" && st != filter {
			continue
		}
		resp.Sessions = append(resp.Sessions, s.summaryResponse(sum, st))
		if limit > 0 && len(resp.Sessions) == limit {
			break
		}
	}
	resp.Count = len(resp.Sessions)

	s.respondJSON(w, http.StatusOK, resp)
}

// handleGetSession returns one session with its phase results.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := core.SessionID(chi.URLParam(r, "sessionID"))

	state, err := s.store.Load(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if state == nil {
		s.respondError(w, http.StatusNotFound, "session not found: "+string(id))
		return
	}

	s.respondJSON(w, http.StatusOK, s.sessionResponse(state))
}

func (s *Server) summaryResponse(sum core.SessionSummary, st string) SessionSummaryResponse {
	return SessionSummaryResponse{
		SessionID:    string(sum.SessionID),
		Prompt:       s.logger.Sanitize(sum.Prompt),
		Complexity:   string(sum.Complexity),
		CurrentPhase: string(sum.CurrentPhase),
		Status:       st,
		Success:      sum.Success,
		RetryCount:   sum.RetryCount,
		ErrorCount:   sum.ErrorCount,
		StartTime:    sum.StartTime,
		EndTime:      sum.EndTime,
	}
}

func (s *Server) sessionResponse(state *core.WorkflowState) SessionResponse {
	sanitizer := s.logger.Sanitizer()

	results := make(map[string]map[string]interface{}, len(state.Results))
	for phase, result := range state.Results {
		results[string(phase)] = sanitizer.SanitizeMap(result)
	}

	errs := make([]string, len(state.Errors))
	for i, e := range state.Errors {
		errs[i] = sanitizer.Sanitize(e)
	}

	return SessionResponse{
		SessionID:    string(state.SessionID),
		Prompt:       sanitizer.Sanitize(state.Prompt),
		Workspace:    state.Workspace,
		Complexity:   string(state.Complexity),
		CurrentPhase: string(state.CurrentPhase),
		Status:       status(state.Success, state.EndTime),
		Success:      state.Success,
		RetryCount:   state.RetryCount,
		Errors:       errs,
		Results:      results,
		StartTime:    state.StartTime,
		EndTime:      state.EndTime,
		DurationMS:   state.Duration().Milliseconds(),
	}
}
