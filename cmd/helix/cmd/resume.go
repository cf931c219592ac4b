package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resume an interrupted workflow",
	Long: `Resume a session from its last checkpoint. A session that already
finished is reported unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

var resumeOutput string

func init() {
	rootCmd.AddCommand(resumeCmd)
	resumeCmd.Flags().StringVarP(&resumeOutput, "output", "o", formatText, "Output format (text, json, yaml)")
}

func runResume(cmd *cobra.Command, args []string) error {
	if err := checkFormat(resumeOutput); err != nil {
		return err
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context(), cmd.ErrOrStderr())
	defer cancel()

	return resumeSession(ctx, a, core.SessionID(args[0]), resumeOutput, cmd.OutOrStdout(), cmd.ErrOrStderr())
}
