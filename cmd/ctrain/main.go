// Command ctrain is a continuous-training controller.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/NielsdaWheelz/ctrain/internal/cli/cobra"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cobra.Execute(ctx, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.IsSilent(err) {
			// Use verbose mode if --verbose global flag was set
			opts := errors.PrintOptions{
				Verbose: cobra.GetGlobalOpts().Verbose,
			}
			errors.PrintWithOptions(os.Stderr, err, opts)
		}
		os.Exit(errors.ExitCode(err))
	}
}
