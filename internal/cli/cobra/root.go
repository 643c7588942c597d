// Package cobra provides the Cobra-based CLI command tree for ctrain.
package cobra

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/ctrain/internal/version"
)

// GlobalOpts holds global options parsed before subcommand dispatch.
type GlobalOpts struct {
	Verbose bool
	DataDir string
}

// globalOpts stores the parsed global options for access by subcommands.
var globalOpts GlobalOpts

// GetGlobalOpts returns the parsed global options.
func GetGlobalOpts() GlobalOpts {
	return globalOpts
}

// NewRootCmd creates the root cobra command for ctrain.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ctrain",
		Short: "Continuous-training controller",
		Long: `ctrain - continuous-training controller

ctrain repeatedly trains a model from its previous best checkpoint, scores each
round on a fixed validation set, and stops once the target metric is reached or
the budget runs out. Every attempt is archived write-once under the data
directory, so an interrupted session can be resumed.`,
		Version:       version.FullVersion(),
		SilenceErrors: true, // We handle error printing in main.go
		SilenceUsage:  true, // We handle usage printing manually
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&globalOpts.Verbose, "verbose", false, "show detailed error context")
	rootCmd.PersistentFlags().StringVar(&globalOpts.DataDir, "data-dir", "", "data directory (default: $CTRAIN_DATA_DIR or ./.ctrain)")

	// Disable Cobra's default completion command (we register our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newRunCmd(),
		newResumeCmd(),
		newShowCmd(),
		newLSCmd(),
		newCompletionCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the root command with the given output writers.
// Cancelling ctx interrupts a running session.
func Execute(ctx context.Context, stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.ExecuteContext(ctx)
}
