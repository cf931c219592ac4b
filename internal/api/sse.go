package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hugo-lorenzo-mato/helix/internal/events"
)

const sseKeepAlive = 15 * time.Second

// handleSSE streams lifecycle events as Server-Sent Events until the client
// goes away or the bus closes. ?session=<id> limits the stream to one
// session. A slow client loses its oldest undelivered events rather than
// stalling runs.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if s.eventBus == nil {
		s.respondError(w, http.StatusServiceUnavailable, "event stream not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	session := r.URL.Query().Get("session")
	ch := s.eventBus.Subscribe(events.ForSession(session))
	defer s.eventBus.Unsubscribe(ch)

	log := s.logger.With("remote_addr", r.RemoteAddr)
	if session != "" {
		log = log.WithSession(session)
	}
	log.Info("event stream opened")
	defer log.Info("event stream closed")

	send := func(name string, payload interface{}) bool {
		if err := s.writeSSE(w, name, payload); err != nil {
			log.Debug("event stream write failed", "error", err)
			return false
		}
		flusher.Flush()
		return true
	}

	if !send("connected", map[string]string{"status": "connected"}) {
		return
	}

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok || !send(ev.EventType(), ev) {
				return
			}
		}
	}
}

// writeSSE writes one "event:/data:" frame with a sanitized JSON payload.
func (s *Server) writeSSE(w io.Writer, name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", name, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, s.logger.Sanitize(string(data)))
	return err
}
