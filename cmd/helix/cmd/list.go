package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored sessions",
	Long:    "List stored workflow sessions, newest first.",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var (
	listOutput string
	listStatus string
	listLimit  int
)

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVarP(&listOutput, "output", "o", formatText, "Output format (text, json, yaml)")
	listCmd.Flags().StringVar(&listStatus, "status", "", "Only show sessions with status (running, succeeded, failed)")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Show at most n sessions (0 for all)")
}

func runList(cmd *cobra.Command, _ []string) error {
	if err := checkFormat(listOutput); err != nil {
		return err
	}
	switch listStatus {
	case "", statusRunning, statusSucceeded, statusFailed:
	default:
		return fmt.Errorf("unknown status %q (expected running, succeeded or failed)", listStatus)
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	return listSessions(cmd.Context(), a, listStatus, listLimit, listOutput, cmd.OutOrStdout())
}

func listSessions(ctx context.Context, a *app, status string, limit int, format string, w io.Writer) error {
	summaries, err := a.orchestrator.List(ctx)
	if err != nil {
		return err
	}

	sanitizer := a.logger.Sanitizer()
	selected := make([]core.SessionSummary, 0, len(summaries))
	for _, s := range summaries {
		if status != "" && statusOf(s.Success, s.EndTime) != status {
			continue
		}
		s.Prompt = sanitizer.Sanitize(s.Prompt)
		selected = append(selected, s)
		if limit > 0 && len(selected) == limit {
			break
		}
	}

	switch format {
	case formatJSON:
		return outputJSON(w, selected)
	case formatYAML:
		return outputYAML(w, selected)
	}

	if len(selected) == 0 {
		fmt.Fprintln(w, "No sessions found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSTATUS\tCOMPLEXITY\tPHASE\tRETRIES\tERRORS\tSTARTED\tPROMPT")
	for _, s := range selected {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			s.SessionID,
			statusOf(s.Success, s.EndTime),
			s.Complexity,
			s.CurrentPhase,
			s.RetryCount,
			s.ErrorCount,
			s.StartTime.Local().Format(time.DateTime),
			truncatePrompt(s.Prompt, 40),
		)
	}
	return tw.Flush()
}
