package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/ctrain/internal/commands"
)

func newResumeCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "resume <session>",
		Short: "Continue an interrupted session",
		Long: `Reload a session's archived history and continue at the next round,
starting from the last successful checkpoint.

Arguments:
  session    session id or unique prefix

Notes:
  - trainer and evaluator settings come from the config stored with the session
  - a session whose history already meets its target or budget runs no rounds`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeSessionIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := commands.ResumeOpts{
				SessionRef: args[0],
				DataDir:    globalOpts.DataDir,
				JSON:       jsonOutput,
			}
			return commands.Resume(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the outcome as JSON (stable format)")

	return cmd
}
