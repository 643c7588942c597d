package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/ctrain/internal/commands"
)

func newLSCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List sessions",
		Long: `List sessions newest first with their progress and verdict.
Reads the catalog when present and falls back to scanning the data directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := commands.LSOpts{
				DataDir: globalOpts.DataDir,
				JSON:    jsonOutput,
			}
			return commands.LS(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON (stable format)")

	return cmd
}
