package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/ctrain/internal/commands"
	"github.com/NielsdaWheelz/ctrain/internal/config"
)

func newRunCmd() *cobra.Command {
	var configPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a continuous-training session",
		Long: `Start a new continuous-training session from a config file.
Runs rounds until the target metric is reached (exit 0), the budget is
exhausted (exit 3) or a round fails on every attempt (exit 1).
Interrupting with Ctrl-C archives the in-flight attempt and aborts; continue
later with 'ctrain resume'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := commands.RunOpts{
				ConfigPath: configPath,
				DataDir:    globalOpts.DataDir,
				JSON:       jsonOutput,
			}
			return commands.Run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultFileName, "session config file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the outcome as JSON (stable format)")

	return cmd
}
