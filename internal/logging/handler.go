package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Attribute keys the pretty handler lifts into the line prefix.
const (
	sessionKey = "session_id"
	phaseKey   = "phase"
)

// SanitizingHandler redacts secrets from the message and every attribute
// before passing the record on.
type SanitizingHandler struct {
	next      slog.Handler
	sanitizer *Sanitizer
}

// NewSanitizingHandler wraps next.
func NewSanitizingHandler(next slog.Handler, sanitizer *Sanitizer) *SanitizingHandler {
	return &SanitizingHandler{next: next, sanitizer: sanitizer}
}

// Enabled reports whether the wrapped handler handles level.
func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle sanitizes r and passes it to the wrapped handler.
func (h *SanitizingHandler) Handle(ctx context.Context, r slog.Record) error {
	clean := slog.NewRecord(r.Time, r.Level, h.sanitizer.Sanitize(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.clean(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

// WithAttrs sanitizes attrs once, when they are bound.
func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.clean(a)
	}
	return &SanitizingHandler{next: h.next.WithAttrs(clean), sanitizer: h.sanitizer}
}

// WithGroup opens a group on the wrapped handler.
func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name), sanitizer: h.sanitizer}
}

func (h *SanitizingHandler) clean(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.sanitizer.Sanitize(v.String()))
	case slog.KindGroup:
		group := v.Group()
		clean := make([]slog.Attr, len(group))
		for i, g := range group {
			clean[i] = h.clean(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	case slog.KindAny:
		// Phase failures often quote collaborator stderr.
		switch x := v.Any().(type) {
		case error:
			if x != nil {
				return slog.String(a.Key, h.sanitizer.Sanitize(x.Error()))
			}
		case fmt.Stringer:
			return slog.String(a.Key, h.sanitizer.Sanitize(x.String()))
		case []string:
			out := make([]string, len(x))
			for i, s := range x {
				out[i] = h.sanitizer.Sanitize(s)
			}
			return slog.Any(a.Key, out)
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

var (
	prettyTime  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	prettyKey   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	prettyScope = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))

	prettyLevels = map[slog.Level]string{
		slog.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("DBG"),
		slog.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Render("INF"),
		slog.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Render("WRN"),
		slog.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true).Render("ERR"),
	}
)

// PrettyHandler writes compact, colored lines for terminals. The session
// and phase attributes become a "[session/phase]" prefix.
type PrettyHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

// NewPrettyHandler creates a pretty handler writing to w.
func NewPrettyHandler(w io.Writer, level slog.Level) *PrettyHandler {
	return &PrettyHandler{mu: &sync.Mutex{}, w: w, level: level}
}

// Enabled reports whether level is at or above the handler's level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle formats and writes one record.
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var session, phase string
	var fields strings.Builder

	// Bound attrs are stored fully qualified; record attrs sit under the
	// open groups.
	collect := func(a slog.Attr, groups []string) {
		switch {
		case len(groups) == 0 && a.Key == sessionKey:
			session = a.Value.String()
		case len(groups) == 0 && a.Key == phaseKey:
			phase = a.Value.String()
		default:
			h.writeAttr(&fields, groups, a)
		}
	}
	for _, a := range h.attrs {
		collect(a, nil)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a, h.groups)
		return true
	})

	var line strings.Builder
	line.WriteString(prettyTime.Render(r.Time.Format("15:04:05")))
	line.WriteByte(' ')
	line.WriteString(levelLabel(r.Level))
	if scope := scopeLabel(session, phase); scope != "" {
		line.WriteByte(' ')
		line.WriteString(prettyScope.Render(scope))
	}
	line.WriteByte(' ')
	line.WriteString(r.Message)
	line.WriteString(fields.String())
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line.String())
	return err
}

// WithAttrs returns a handler that prefixes attrs to every record.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	if len(h.groups) > 0 {
		c.attrs = append(c.attrs, slog.Attr{Key: strings.Join(h.groups, "."), Value: slog.GroupValue(attrs...)})
		return c
	}
	c.attrs = append(c.attrs, attrs...)
	return c
}

// WithGroup returns a handler that qualifies later keys with name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.groups = append(c.groups, name)
	return c
}

func (h *PrettyHandler) clone() *PrettyHandler {
	return &PrettyHandler{
		mu:     h.mu,
		w:      h.w,
		level:  h.level,
		attrs:  append([]slog.Attr(nil), h.attrs...),
		groups: append([]string(nil), h.groups...),
	}
}

func (h *PrettyHandler) writeAttr(b *strings.Builder, groups []string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		inner := groups
		if a.Key != "" {
			inner = append(append([]string(nil), groups...), a.Key)
		}
		for _, g := range v.Group() {
			h.writeAttr(b, inner, g)
		}
		return
	}
	if a.Key == "" {
		return
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	b.WriteByte(' ')
	b.WriteString(prettyKey.Render(key))
	b.WriteByte('=')
	b.WriteString(formatValue(v))
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"=") {
			return strconv.Quote(s)
		}
		return s
	default:
		return fmt.Sprint(v.Any())
	}
}

func levelLabel(level slog.Level) string {
	if s, ok := prettyLevels[level]; ok {
		return s
	}
	return level.String()
}

func scopeLabel(session, phase string) string {
	if len(session) > 8 {
		session = session[:8]
	}
	switch {
	case session != "" && phase != "":
		return "[" + session + "/" + phase + "]"
	case session != "":
		return "[" + session + "]"
	case phase != "":
		return "[" + phase + "]"
	default:
		return ""
	}
}
