package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
	"github.com/hugo-lorenzo-mato/helix/internal/service/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run a workflow for a task",
	Long: `Run the routed phases for a task described in natural language.
The prompt can be provided as an argument or via --file. With --batch each
non-empty line of the file is run as an independent session.

Examples:
  helix run "fix the typo in the README"
  helix run --file task.md --workspace ../service
  helix run --batch tasks.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWorkflow,
}

var (
	runFile      string
	runBatch     string
	runSession   string
	runWorkspace string
	runOutput    string
)

// errRunFailed reports that a run ended unsuccessfully. Details are already
// in the printed summary.
var errRunFailed = errors.New("workflow did not succeed")

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Read prompt from file")
	runCmd.Flags().StringVar(&runBatch, "batch", "", "Run one session per line of file")
	runCmd.Flags().StringVar(&runSession, "session", "", "Session ID (resumes it when a checkpoint exists)")
	runCmd.Flags().StringVarP(&runWorkspace, "workspace", "w", "", "Workspace directory (default: current directory)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", formatText, "Output format (text, json, yaml)")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	if err := checkFormat(runOutput); err != nil {
		return err
	}
	if runBatch != "" && (len(args) > 0 || runFile != "" || runSession != "") {
		return errors.New("--batch cannot be combined with a prompt, --file or --session")
	}

	workspace, err := resolveWorkspace(runWorkspace)
	if err != nil {
		return err
	}

	var reqs []workflow.Request
	if runBatch != "" {
		prompts, err := readBatch(runBatch)
		if err != nil {
			return err
		}
		for _, p := range prompts {
			reqs = append(reqs, workflow.Request{Prompt: p, Workspace: workspace})
		}
	} else {
		prompt, err := getPrompt(args, runFile)
		if err != nil {
			return err
		}
		reqs = []workflow.Request{{Prompt: prompt, Workspace: workspace, SessionID: core.SessionID(runSession)}}
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context(), cmd.ErrOrStderr())
	defer cancel()

	return executeRequests(ctx, a, reqs, runOutput, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// executeRequests runs reqs, streaming progress to progress unless quiet,
// and writes the final states to out in format.
func executeRequests(ctx context.Context, a *app, reqs []workflow.Request, format string, out, progress io.Writer) error {
	stop := func() {}
	if !quiet {
		printer := &progressPrinter{w: progress, sanitizer: a.logger.Sanitizer(), withSession: len(reqs) > 1}
		stop = printer.attach(a.bus)
	}

	var (
		states []*core.WorkflowState
		err    error
	)
	if len(reqs) == 1 {
		var st *core.WorkflowState
		st, err = a.orchestrator.Execute(ctx, reqs[0].Prompt, reqs[0].Workspace, reqs[0].SessionID)
		if st != nil {
			states = []*core.WorkflowState{st}
		}
	} else {
		states, err = a.orchestrator.ExecuteBatch(ctx, reqs)
	}
	stop()

	if len(states) > 0 {
		if perr := printStates(out, format, states, a); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}

	for _, st := range states {
		if st == nil || !st.Success {
			return errRunFailed
		}
	}
	return nil
}

// resumeSession continues a stored session. The checkpoint must exist.
func resumeSession(ctx context.Context, a *app, id core.SessionID, format string, out, progress io.Writer) error {
	existing, err := a.orchestrator.Load(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return core.ErrNotFound("session", string(id))
	}
	req := workflow.Request{Prompt: existing.Prompt, Workspace: existing.Workspace, SessionID: id}
	return executeRequests(ctx, a, []workflow.Request{req}, format, out, progress)
}

func printStates(w io.Writer, format string, states []*core.WorkflowState, a *app) error {
	sanitizer := a.logger.Sanitizer()
	present := make([]*core.WorkflowState, 0, len(states))
	for _, st := range states {
		if st != nil {
			present = append(present, sanitizedState(st, sanitizer))
		}
	}

	switch format {
	case formatJSON:
		if len(present) == 1 {
			return outputJSON(w, present[0])
		}
		return outputJSON(w, present)
	case formatYAML:
		if len(present) == 1 {
			return outputYAML(w, present[0])
		}
		return outputYAML(w, present)
	}

	for i, st := range present {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprint(w, renderSummary(st, sanitizer))
	}
	return nil
}

// signalContext cancels the returned context on SIGINT or SIGTERM.
func signalContext(parent context.Context, w io.Writer) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(w, "\nReceived interrupt, stopping...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

func getPrompt(args []string, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file) // #nosec G304 -- user-supplied prompt file
		if err != nil {
			return "", fmt.Errorf("reading prompt file: %w", err)
		}
		return string(data), nil
	}

	if len(args) > 0 {
		return args[0], nil
	}

	return "", errors.New("prompt required: provide as argument or via --file")
}

// readBatch returns one prompt per non-blank line of path. Lines starting
// with # are comments.
func readBatch(path string) ([]string, error) {
	f, err := os.Open(path) // #nosec G304 -- user-supplied batch file
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	defer f.Close()

	var prompts []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("batch file %s contains no prompts", path)
	}
	return prompts, nil
}
