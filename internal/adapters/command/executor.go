// Package command binds workflow phases to external programs. A phase
// command receives the phase input as JSON on stdin and prints its result as
// a JSON object on stdout.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
	"github.com/hugo-lorenzo-mato/helix/internal/fsutil"
	"github.com/hugo-lorenzo-mato/helix/internal/logging"
)

// DefaultTimeout bounds a single phase command.
const DefaultTimeout = 10 * time.Minute

// Exit codes with a fixed meaning, from sysexits.h.
const (
	ExitDataErr = 65 // input rejected
	ExitNoPerm  = 77 // permission denied
)

// waitDelay bounds how long Wait blocks on output pipes after the process
// is killed.
const waitDelay = 5 * time.Second

// Config describes one phase command.
type Config struct {
	Phase   core.Phase
	Command []string
	Timeout time.Duration
	Env     map[string]string
	// WorkDir is resolved against the workspace and must stay inside it.
	WorkDir string
}

// Executor runs a phase command. It implements core.PhaseExecutor.
type Executor struct {
	cfg    Config
	logger *logging.Logger
}

// NewExecutor validates cfg and creates an executor. Values in cfg.Env are
// registered with the logger's sanitizer so they never appear in logs.
func NewExecutor(cfg Config, logger *logging.Logger) (*Executor, error) {
	if !core.ValidPhase(cfg.Phase) {
		return nil, core.ErrConfiguration(core.CodeUnknownPhase, fmt.Sprintf("unknown phase %q", cfg.Phase))
	}
	if len(cfg.Command) == 0 || strings.TrimSpace(cfg.Command[0]) == "" {
		return nil, core.ErrConfiguration(core.CodeInvalidConfig,
			fmt.Sprintf("phase %s: command is empty", cfg.Phase))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if filepath.IsAbs(cfg.WorkDir) {
		return nil, core.ErrConfiguration(core.CodeInvalidConfig,
			fmt.Sprintf("phase %s: workdir must be relative to the workspace", cfg.Phase))
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	for _, v := range cfg.Env {
		logger.Sanitizer().AddLiteral(v)
	}
	return &Executor{cfg: cfg, logger: logger.WithPhase(string(cfg.Phase))}, nil
}

// Phase returns the phase this executor serves.
func (e *Executor) Phase() core.Phase {
	return e.cfg.Phase
}

// Execute runs the command for one phase attempt.
func (e *Executor) Execute(ctx context.Context, in core.PhaseInput) (core.PhaseResult, error) {
	dir, err := e.workDir(in.Workspace)
	if err != nil {
		return nil, err
	}

	stdin, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshaling phase input: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	// #nosec G204 -- argv comes from validated configuration
	cmd := exec.CommandContext(runCtx, e.cfg.Command[0], e.cfg.Command[1:]...)
	cmd.Dir = dir
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Env = e.environ(in)
	cmd.WaitDelay = waitDelay
	configureProcAttr(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("executing phase command",
		"command", e.cfg.Command[0],
		"args", len(e.cfg.Command)-1,
		"work_dir", dir,
		"timeout", e.cfg.Timeout,
	)

	started := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(started)

	switch {
	case ctx.Err() != nil:
		// The caller gave up; report its reason unchanged.
		return nil, ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		e.logger.Warn("phase command timed out", "timeout", e.cfg.Timeout, "stderr", truncate(stderr.String(), 1000))
		return nil, core.ErrTimeout(fmt.Sprintf("%s command timed out after %v", e.cfg.Phase, e.cfg.Timeout))
	case runErr != nil:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			failure := classifyExit(exitErr.ExitCode(), stderr.String(), stdout.String())
			e.logger.Warn("phase command failed",
				"exit_code", exitErr.ExitCode(),
				"duration", elapsed,
				"stderr", truncate(stderr.String(), 2000),
			)
			return nil, failure
		}
		return nil, classifyStartError(e.cfg.Command[0], runErr)
	}

	result, err := parseResult(stdout.Bytes())
	if err != nil {
		e.logger.Warn("phase command output is not a JSON object",
			"stdout", truncate(stdout.String(), 500),
			"error", err,
		)
		return nil, err
	}

	e.logger.Debug("phase command completed", "duration", elapsed, "keys", len(result))
	return result, nil
}

func (e *Executor) workDir(workspace string) (string, error) {
	root, err := fsutil.ResolveDir(workspace)
	if err != nil {
		return "", core.ErrValidation(core.CodeBadWorkspace,
			fmt.Sprintf("workspace %q is not a directory", workspace)).WithCause(err)
	}
	if e.cfg.WorkDir == "" {
		return root, nil
	}
	dir := filepath.Join(root, e.cfg.WorkDir)
	if !fsutil.Within(root, dir) {
		return "", core.ErrConfiguration(core.CodeInvalidConfig,
			fmt.Sprintf("phase %s: workdir %q escapes the workspace", e.cfg.Phase, e.cfg.WorkDir))
	}
	if _, err := fsutil.ResolveDir(dir); err != nil {
		return "", core.ErrValidation(core.CodeBadWorkspace,
			fmt.Sprintf("phase %s: workdir %q is not a directory", e.cfg.Phase, e.cfg.WorkDir)).WithCause(err)
	}
	return dir, nil
}

func (e *Executor) environ(in core.PhaseInput) []string {
	env := append(os.Environ(),
		"HELIX_MANAGED=true",
		"HELIX_SESSION_ID="+string(in.SessionID),
		"HELIX_PHASE="+string(in.Phase),
		"HELIX_COMPLEXITY="+string(in.Complexity),
		"HELIX_WORKSPACE="+in.Workspace,
	)
	for k, v := range e.cfg.Env {
		env = append(env, k+"="+v)
	}
	return env
}

// classifyExit maps a non-zero exit into the failure taxonomy.
func classifyExit(code int, stderr, stdout string) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = extractErrorFromOutput(stdout)
	}
	if msg == "" {
		msg = fmt.Sprintf("exit status %d", code)
	}

	switch code {
	case ExitNoPerm:
		return core.ErrPermission(msg)
	case ExitDataErr:
		return core.ErrValidation("PHASE_INPUT_REJECTED", msg)
	}

	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "rate limit", "too many requests", "429", "quota"):
		return core.ErrRateLimit(msg)
	case containsAny(lower, "unauthorized", "authentication", "api key", "invalid token", "forbidden"):
		return core.ErrAuth(msg)
	case containsAny(lower, "connection refused", "connection reset", "network", "unreachable", "no such host"):
		return core.ErrNetwork(msg)
	}
	return core.ErrExecution(core.CodeExecutorFailed,
		fmt.Sprintf("command failed with exit code %d: %s", code, msg))
}

// classifyStartError handles commands that could not be started at all.
func classifyStartError(name string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return core.ErrConfiguration(core.CodeInvalidConfig,
			fmt.Sprintf("phase command %q not found", name)).WithCause(err)
	}
	if errors.Is(err, os.ErrPermission) {
		return core.ErrPermission(fmt.Sprintf("phase command %q is not executable", name)).WithCause(err)
	}
	return fmt.Errorf("starting phase command: %w", err)
}

// parseResult decodes stdout as a JSON object. Empty output is an empty
// result; leading log lines before the object are tolerated.
func parseResult(out []byte) (core.PhaseResult, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return core.PhaseResult{}, nil
	}

	var result core.PhaseResult
	if err := json.Unmarshal(trimmed, &result); err == nil && result != nil {
		return result, nil
	}
	if obj := extractJSONObject(string(trimmed)); obj != "" {
		if err := json.Unmarshal([]byte(obj), &result); err == nil && result != nil {
			return result, nil
		}
	}
	return nil, core.ErrExecution(core.CodeParseFailed, "phase command did not print a JSON object")
}

// extractJSONObject returns the last line-leading JSON object in s.
func extractJSONObject(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		candidate := strings.Join(lines[i:], "\n")
		if json.Valid([]byte(candidate)) {
			return candidate
		}
		if json.Valid([]byte(line)) {
			return line
		}
	}
	return ""
}

// extractErrorFromOutput finds an error message in stdout when a command
// reports failures there instead of stderr.
func extractErrorFromOutput(stdout string) string {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}
		if msg, ok := obj["error"].(string); ok && msg != "" {
			return msg
		}
		if errObj, ok := obj["error"].(map[string]interface{}); ok {
			if msg, ok := errObj["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}

	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" && !strings.HasPrefix(line, "{") {
			return truncate(line, 200)
		}
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "... [truncated]"
	}
	return s
}

var _ core.PhaseExecutor = (*Executor)(nil)
