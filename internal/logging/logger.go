package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Output formats accepted by Config.Format.
const (
	FormatAuto   = "auto"
	FormatText   = "text"
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

// Logger is a slog.Logger whose output passes through a shared Sanitizer.
// Loggers derived with With, WithSession or WithPhase share the sanitizer,
// so a literal registered on any of them is redacted by all.
type Logger struct {
	*slog.Logger
	sanitizer *Sanitizer
}

// Config configures the logger.
type Config struct {
	Level     string
	Format    string
	Output    io.Writer
	AddSource bool
}

// DefaultConfig logs at info to stderr so stdout stays free for command
// output.
func DefaultConfig() Config {
	return Config{Level: "info", Format: FormatAuto, Output: os.Stderr}
}

// New creates a logger. An empty or unknown format behaves like "auto":
// pretty lines on a terminal, JSON otherwise.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	sanitizer := NewSanitizer()
	return &Logger{
		Logger:    slog.New(NewSanitizingHandler(newHandler(cfg), sanitizer)),
		sanitizer: sanitizer,
	}
}

func newHandler(cfg Config) slog.Handler {
	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	format := strings.ToLower(cfg.Format)
	if format != FormatJSON && format != FormatText && format != FormatPretty {
		format = FormatJSON
		if isTerminal(cfg.Output) {
			format = FormatPretty
		}
	}

	switch format {
	case FormatText:
		return slog.NewTextHandler(cfg.Output, opts)
	case FormatPretty:
		return NewPrettyHandler(cfg.Output, level)
	default:
		return slog.NewJSONHandler(cfg.Output, opts)
	}
}

// NewNop returns a logger that discards everything. Its sanitizer is live,
// which lets tests register secrets on it.
func NewNop() *Logger {
	return &Logger{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		sanitizer: NewSanitizer(),
	}
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// WithSession binds the session ID.
func (l *Logger) WithSession(sessionID string) *Logger {
	return l.With(sessionKey, sessionID)
}

// WithPhase binds the phase name.
func (l *Logger) WithPhase(phase string) *Logger {
	return l.With(phaseKey, phase)
}

// With binds arbitrary attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), sanitizer: l.sanitizer}
}

// Sanitizer returns the shared sanitizer.
func (l *Logger) Sanitizer() *Sanitizer {
	return l.sanitizer
}

// Sanitize redacts secrets from s.
func (l *Logger) Sanitize(s string) string {
	return l.sanitizer.Sanitize(s)
}
