package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. HELIX_LOG_LEVEL.
	EnvPrefix = "HELIX"

	// ProjectDir holds per-project configuration and checkpoints.
	ProjectDir = ".helix"

	configName = "config"
)

// defaults are the built-in values, the lowest layer of every Load.
var defaults = map[string]interface{}{
	"log.level":  "info",
	"log.format": "auto",

	"workflow.max_retries":    3,
	"workflow.phase_retries":  1,
	"workflow.backoff_base":   "1s",
	"workflow.backoff_max":    "30s",
	"workflow.max_concurrent": 3,
	"workflow.dry_run":        false,

	"state.backend": "json",
	"state.path":    filepath.Join(ProjectDir, "checkpoints"),

	"server.host":         "127.0.0.1",
	"server.port":         8080,
	"server.cors_origins": []string{},
}

// Loader layers defaults, config files, HELIX_* environment variables and
// bound CLI flags into a Config. Later layers win:
//
//	flags > environment > .helix/config.yaml > ~/.config/helix/config.yaml > defaults
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a loader with a private viper instance.
func NewLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

// NewLoaderWithViper creates a loader on v, so flags bound to v by the CLI
// take part in the layering.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// WithConfigFile reads path instead of searching the default locations.
// A missing explicit file is an error.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Load resolves every layer and decodes the result.
func (l *Loader) Load() (*Config, error) {
	for key, value := range defaults {
		l.v.SetDefault(key, value)
	}

	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if err := l.readFile(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) readFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(configName)
		l.v.SetConfigType("yaml")
		// The first directory holding a config wins.
		l.v.AddConfigPath(ProjectDir)
		if dir, err := userConfigDir(); err == nil {
			l.v.AddConfigPath(dir)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}

	if used := l.v.ConfigFileUsed(); isYAML(used) {
		return checkFile(used)
	}
	return nil
}

// ConfigFile returns the file Load read, or "" when only defaults,
// environment and flags applied.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Set overrides key above every other layer.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// Get returns the resolved value of key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// CheckYAML strictly decodes a YAML config document and reports unknown
// keys, which viper would otherwise ignore silently.
func CheckYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func checkFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path chosen by viper from known locations or the --config flag
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := CheckYAML(data); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
