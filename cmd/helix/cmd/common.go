package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/helix/internal/adapters/command"
	"github.com/hugo-lorenzo-mato/helix/internal/adapters/state"
	"github.com/hugo-lorenzo-mato/helix/internal/config"
	"github.com/hugo-lorenzo-mato/helix/internal/core"
	"github.com/hugo-lorenzo-mato/helix/internal/events"
	"github.com/hugo-lorenzo-mato/helix/internal/logging"
	"github.com/hugo-lorenzo-mato/helix/internal/service"
	"github.com/hugo-lorenzo-mato/helix/internal/service/workflow"
)

const eventBufferSize = 256

// app holds the components shared by the workflow commands.
type app struct {
	cfg          *config.Config
	logger       *logging.Logger
	store        core.CheckpointStore
	bus          *events.EventBus
	registry     *prometheus.Registry
	orchestrator *workflow.Orchestrator
}

// loadConfig loads and validates configuration from files, environment and
// the flags bound on the global viper instance.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

// setup loads configuration and builds the application.
func setup() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg, newLogger(cfg))
}

// newApp wires the checkpoint store, phase bindings, metrics and event bus
// into an orchestrator.
func newApp(cfg *config.Config, logger *logging.Logger) (*app, error) {
	store, err := state.NewStore(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint store: %w", err)
	}

	phases, err := buildPhaseRegistry(cfg, logger)
	if err != nil {
		_ = state.CloseStore(store)
		return nil, err
	}

	reg := prometheus.NewRegistry()
	metrics := service.NewMetrics(reg)
	bus := events.New(eventBufferSize)

	base, maxDelay := cfg.Workflow.Backoff()
	recovery := service.NewErrorRecovery(
		service.WithRetryCap(cfg.Workflow.MaxRetries),
		service.WithBackoff(base, maxDelay),
	)

	orch := workflow.New(store, phases,
		workflow.WithLogger(logger),
		workflow.WithEventBus(bus),
		workflow.WithMetrics(metrics),
		workflow.WithRecovery(recovery),
		workflow.WithPhaseRetries(cfg.Workflow.PhaseRetries),
		workflow.WithMaxConcurrent(cfg.Workflow.MaxConcurrent),
	)

	return &app{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		bus:          bus,
		registry:     reg,
		orchestrator: orch,
	}, nil
}

// Close releases the event bus and the checkpoint store.
func (a *app) Close() error {
	a.bus.Close()
	return state.CloseStore(a.store)
}

// buildPhaseRegistry binds every configured phase to its command. Dry runs
// bind static executors to all phases. Without a configured command the
// analysis phase uses the built-in repository analyzer; any other unbound
// phase fails the run that routes through it.
func buildPhaseRegistry(cfg *config.Config, logger *logging.Logger) (*workflow.PhaseRegistry, error) {
	registry := workflow.NewPhaseRegistry()

	if cfg.Workflow.DryRun {
		err := registry.RegisterAll(func(p core.Phase) core.PhaseExecutor {
			return command.NewStaticExecutor(p)
		})
		return registry, err
	}

	for _, name := range cfg.PhaseNames() {
		phase, err := core.ParsePhase(name)
		if err != nil {
			return nil, err
		}
		pc := cfg.Phases[name]
		exec, err := command.NewExecutor(command.Config{
			Phase:   phase,
			Command: pc.Command,
			Timeout: pc.TimeoutDuration(),
			Env:     pc.Environ(),
			WorkDir: pc.WorkDir,
		}, logger.WithPhase(name))
		if err != nil {
			return nil, err
		}
		if err := registry.Register(phase, exec); err != nil {
			return nil, err
		}
	}

	if _, ok := cfg.Phases[string(core.PhaseAnalysis)]; !ok {
		router := service.NewRouter(logger)
		if err := registry.Register(core.PhaseAnalysis, router.AnalysisExecutor()); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// resolveWorkspace returns the absolute workspace, defaulting to the
// current directory.
func resolveWorkspace(dir string) (string, error) {
	if dir == "" {
		return os.Getwd()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("workspace: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace %s is not a directory", dir)
	}
	return filepath.Abs(dir)
}
