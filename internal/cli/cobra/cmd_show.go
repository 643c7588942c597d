package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/ctrain/internal/commands"
)

func newShowCmd() *cobra.Command {
	var jsonOutput bool
	var pathOutput bool
	var attempts bool

	cmd := &cobra.Command{
		Use:   "show <session>",
		Short: "Show a session's rounds and best checkpoint",
		Long: `Show details for a single session: configuration, archived rounds,
best record and the stopping policy's current verdict.

Arguments:
  session    session id or unique prefix`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeSessionIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := commands.ShowOpts{
				SessionRef: args[0],
				DataDir:    globalOpts.DataDir,
				JSON:       jsonOutput,
				Path:       pathOutput,
				Attempts:   attempts,
			}
			return commands.Show(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON (stable format)")
	cmd.Flags().BoolVar(&pathOutput, "path", false, "output only resolved filesystem paths")
	cmd.Flags().BoolVar(&attempts, "attempts", false, "list every attempt, including retried failures")

	return cmd
}
