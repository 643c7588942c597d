package cobra

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/ctrain/internal/errors"
	"github.com/NielsdaWheelz/ctrain/internal/version"
)

func newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print ctrain version",
		Long:  "Print the ctrain version, the commit it was built from and the Go toolchain.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bi := version.Info()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(bi); err != nil {
					return errors.Wrap(errors.EInternal, "failed to write json output", err)
				}
				return nil
			}
			_, _ = fmt.Fprintf(out, "ctrain %s\n", version.FullVersion())
			_, _ = fmt.Fprintf(out, "go: %s\n", bi.GoVersion)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
