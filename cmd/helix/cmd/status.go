package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show workflow status",
	Long:  "Display a stored session including the results of its completed phases.",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var statusOutput string

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", formatText, "Output format (text, json, yaml)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := checkFormat(statusOutput); err != nil {
		return err
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	return showStatus(cmd.Context(), a, core.SessionID(args[0]), statusOutput, cmd.OutOrStdout())
}

func showStatus(ctx context.Context, a *app, id core.SessionID, format string, w io.Writer) error {
	st, err := a.orchestrator.Load(ctx, id)
	if err != nil {
		return err
	}
	if st == nil {
		return core.ErrNotFound("session", string(id))
	}

	sanitizer := a.logger.Sanitizer()
	safe := sanitizedState(st, sanitizer)

	switch format {
	case formatJSON:
		return outputJSON(w, safe)
	case formatYAML:
		return outputYAML(w, safe)
	}

	fmt.Fprint(w, renderSummary(safe, sanitizer))
	if len(safe.Results) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tRESULT")
	fmt.Fprintln(tw, "-----\t------")
	for _, p := range core.AllPhases() {
		r, ok := safe.Results[p]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", p, formatResult(r))
	}
	return tw.Flush()
}

// formatResult renders a phase result as sorted key=value pairs.
func formatResult(r core.PhaseResult) string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprintf("%v", r[k])
		parts = append(parts, k+"="+truncatePrompt(v, 40))
	}
	return strings.Join(parts, " ")
}
