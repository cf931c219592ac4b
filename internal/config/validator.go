package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

// ValidationError describes one invalid configuration key.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is every problem found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// HasErrors reports whether any error was collected.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

var (
	logLevels     = []string{"debug", "info", "warn", "error"}
	logFormats    = []string{"auto", "text", "json", "pretty"}
	stateBackends = []string{"json", "sqlite"}
)

// Validator checks a Config and collects every problem instead of stopping
// at the first one.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a validator.
func NewValidator() *Validator {
	return &Validator{errors: ValidationErrors{}}
}

// Validate checks cfg and returns ValidationErrors when anything is wrong.
func (v *Validator) Validate(cfg *Config) error {
	v.checkLog(cfg.Log)
	v.checkWorkflow(cfg.Workflow)
	v.checkState(cfg.State)
	v.checkPhases(cfg.Phases)
	v.checkServer(cfg.Server)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// Errors returns what the last Validate collected.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// require records msg against field unless ok holds.
func (v *Validator) require(ok bool, field string, value interface{}, msg string) {
	if !ok {
		v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: msg})
	}
}

func (v *Validator) oneOf(field, value string, allowed []string) {
	v.require(slices.Contains(allowed, value), field, value, "must be one of: "+strings.Join(allowed, ", "))
}

func (v *Validator) checkLog(cfg LogConfig) {
	v.oneOf("log.level", cfg.Level, logLevels)
	v.oneOf("log.format", cfg.Format, logFormats)
}

func (v *Validator) checkWorkflow(cfg WorkflowConfig) {
	v.require(cfg.MaxRetries >= 0, "workflow.max_retries", cfg.MaxRetries, "must be non-negative")
	v.require(cfg.PhaseRetries >= 0, "workflow.phase_retries", cfg.PhaseRetries, "must be non-negative")
	v.require(cfg.MaxConcurrent >= 1, "workflow.max_concurrent", cfg.MaxConcurrent, "must be at least 1")

	base, baseOK := nonNegativeDuration(cfg.BackoffBase)
	v.require(baseOK, "workflow.backoff_base", cfg.BackoffBase, "invalid duration format")
	limit, limitOK := nonNegativeDuration(cfg.BackoffMax)
	v.require(limitOK, "workflow.backoff_max", cfg.BackoffMax, "invalid duration format")
	if baseOK && limitOK {
		v.require(limit >= base, "workflow.backoff_max", cfg.BackoffMax, "must not be less than workflow.backoff_base")
	}
}

func (v *Validator) checkState(cfg StateConfig) {
	v.oneOf("state.backend", strings.ToLower(strings.TrimSpace(cfg.Backend)), stateBackends)
	v.require(strings.TrimSpace(cfg.Path) != "", "state.path", cfg.Path, "path required")
}

func (v *Validator) checkPhases(phases map[string]PhaseConfig) {
	names := make([]string, 0, len(phases))
	for name := range phases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pc, key := phases[name], "phases."+name
		if !core.ValidPhase(core.Phase(name)) {
			v.require(false, key, name, "unknown phase")
			continue
		}

		v.require(len(pc.Command) > 0 && strings.TrimSpace(pc.Command[0]) != "",
			key+".command", pc.Command, "command required")

		if pc.Timeout != "" {
			d, err := time.ParseDuration(pc.Timeout)
			v.require(err == nil && d > 0, key+".timeout", pc.Timeout, "must be a positive duration")
		}
		if pc.WorkDir != "" {
			v.require(insideWorkspace(pc.WorkDir), key+".workdir", pc.WorkDir, "must be a relative path inside the workspace")
		}

		envKeys := make([]string, 0, len(pc.Env))
		for k := range pc.Env {
			envKeys = append(envKeys, k)
		}
		sort.Strings(envKeys)
		for _, k := range envKeys {
			v.require(k != "" && !strings.ContainsAny(k, "= "), key+".env", k, "invalid variable name")
		}
	}
}

func (v *Validator) checkServer(cfg ServerConfig) {
	v.require(strings.TrimSpace(cfg.Host) != "", "server.host", cfg.Host, "host required")
	v.require(cfg.Port >= 1 && cfg.Port <= 65535, "server.port", cfg.Port, "must be between 1 and 65535")
	for _, origin := range cfg.CORSOrigins {
		ok := origin == "*" || strings.HasPrefix(origin, "http://") || strings.HasPrefix(origin, "https://")
		v.require(ok, "server.cors_origins", origin, "must be * or an http(s) origin")
	}
}

func nonNegativeDuration(s string) (time.Duration, bool) {
	d, err := time.ParseDuration(s)
	return d, err == nil && d >= 0
}

// insideWorkspace reports whether dir is relative and stays below the
// workspace root after cleaning.
func insideWorkspace(dir string) bool {
	clean := filepath.Clean(dir)
	if filepath.IsAbs(clean) {
		return false
	}
	return clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

// ValidateConfig validates cfg with a fresh Validator.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
