package config

import (
	"sort"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Log      LogConfig              `mapstructure:"log" yaml:"log"`
	Workflow WorkflowConfig         `mapstructure:"workflow" yaml:"workflow"`
	State    StateConfig            `mapstructure:"state" yaml:"state"`
	Phases   map[string]PhaseConfig `mapstructure:"phases" yaml:"phases"`
	Server   ServerConfig           `mapstructure:"server" yaml:"server"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// WorkflowConfig configures workflow execution.
type WorkflowConfig struct {
	// MaxRetries caps retries across a whole run.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// PhaseRetries is how often a failed phase is retried before the run
	// takes the alternative path.
	PhaseRetries  int    `mapstructure:"phase_retries" yaml:"phase_retries"`
	BackoffBase   string `mapstructure:"backoff_base" yaml:"backoff_base"`
	BackoffMax    string `mapstructure:"backoff_max" yaml:"backoff_max"`
	MaxConcurrent int    `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	DryRun        bool   `mapstructure:"dry_run" yaml:"dry_run"`
}

// Backoff returns the parsed backoff bounds. Call it on validated config.
func (w WorkflowConfig) Backoff() (base, max time.Duration) {
	base, _ = time.ParseDuration(w.BackoffBase)
	max, _ = time.ParseDuration(w.BackoffMax)
	return base, max
}

// StateConfig configures checkpoint persistence.
type StateConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// PhaseConfig binds a phase to an external command.
type PhaseConfig struct {
	Command []string          `mapstructure:"command" yaml:"command"`
	Timeout string            `mapstructure:"timeout" yaml:"timeout"`
	Env     map[string]string `mapstructure:"env" yaml:"env"`
	WorkDir string            `mapstructure:"workdir" yaml:"workdir"`
}

// TimeoutDuration returns the parsed timeout, or zero when unset.
func (p PhaseConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(p.Timeout)
	return d
}

// Environ returns the extra environment for the command. Viper lowercases
// map keys, so variable names are upper-cased here.
func (p PhaseConfig) Environ() map[string]string {
	if len(p.Env) == 0 {
		return nil
	}
	env := make(map[string]string, len(p.Env))
	for k, v := range p.Env {
		env[strings.ToUpper(k)] = v
	}
	return env
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host        string   `mapstructure:"host" yaml:"host"`
	Port        int      `mapstructure:"port" yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// PhaseNames returns the configured phase names in sorted order.
func (c *Config) PhaseNames() []string {
	names := make([]string, 0, len(c.Phases))
	for name := range c.Phases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
