package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/helix/internal/logging"
	"github.com/hugo-lorenzo-mato/helix/internal/service"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [prompt]",
	Short: "Show how a task would be routed",
	Long: `Analyze the workspace and print the complexity tier and phase list a
run would use for the prompt. Nothing is executed or stored.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeWorkspace string
	analyzeOutput    string
)

// analysisReport is the structured output of analyze.
type analysisReport struct {
	Workspace  string                     `json:"workspace"`
	Prompt     string                     `json:"prompt,omitempty"`
	Analysis   service.RepositoryAnalysis `json:"analysis"`
	Complexity string                     `json:"complexity"`
	Phases     []string                   `json:"phases"`
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&analyzeWorkspace, "workspace", "w", "", "Workspace directory (default: current directory)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", formatText, "Output format (text, json, yaml)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if err := checkFormat(analyzeOutput); err != nil {
		return err
	}
	workspace, err := resolveWorkspace(analyzeWorkspace)
	if err != nil {
		return err
	}

	prompt := ""
	if len(args) > 0 {
		prompt = args[0]
	}

	logger := logging.New(logging.Config{
		Level:  logLevel,
		Format: logFormat,
		Output: os.Stderr,
	})

	report, err := analyze(service.NewRouter(logger), workspace, prompt)
	if err != nil {
		return err
	}
	return printReport(cmd.OutOrStdout(), analyzeOutput, report)
}

func analyze(router *service.Router, workspace, prompt string) (analysisReport, error) {
	a := router.AnalyzeRepository(workspace)
	complexity := router.DetermineComplexity(prompt, a)
	phases, err := router.RouteWorkflow(complexity)
	if err != nil {
		return analysisReport{}, err
	}

	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = string(p)
	}
	return analysisReport{
		Workspace:  workspace,
		Prompt:     prompt,
		Analysis:   a,
		Complexity: string(complexity),
		Phases:     names,
	}, nil
}

func printReport(w io.Writer, format string, r analysisReport) error {
	switch format {
	case formatJSON:
		return outputJSON(w, r)
	case formatYAML:
		return outputYAML(w, r)
	}

	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	row := func(label, value string) {
		fmt.Fprintf(w, "%s%s\n", labelStyle.Render(label), value)
	}

	fmt.Fprintln(w, headerStyle.Render("Workspace "+r.Workspace))
	tests := yesNo(r.Analysis.HasTests)
	if r.Analysis.TestFramework != "" {
		tests += " (" + r.Analysis.TestFramework + ")"
	}
	row("Tests", tests)
	row("CI", yesNo(r.Analysis.HasCI))
	row("Git", yesNo(r.Analysis.HasGit))
	row("Files", fmt.Sprintf("%d", r.Analysis.FileCount))
	row("Score", fmt.Sprintf("%d", r.Analysis.ComplexityScore))
	row("Complexity", r.Complexity)
	row("Phases", strings.Join(r.Phases, " → "))
	return nil
}
