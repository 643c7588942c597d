package cobra

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/ctrain/internal/commands"
	"github.com/NielsdaWheelz/ctrain/internal/errors"
	"github.com/NielsdaWheelz/ctrain/internal/fs"
)

func newCompletionCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "completion <shell>",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts.
By default, prints the script to stdout.
Use --output to write directly to a file.

Arguments:
  shell    target shell: bash, zsh or fish

Installation:

  bash (with bash-completion package):
    ctrain completion bash > ~/.local/share/bash-completion/completions/ctrain

  zsh (with fpath):
    ctrain completion zsh > ~/.zsh/completions/_ctrain
    # ensure ~/.zsh/completions is in fpath before compinit

  fish:
    ctrain completion fish > ~/.config/fish/completions/ctrain.fish

After installation, restart your shell.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var buf bytes.Buffer
			if err := genCompletion(cmd.Root(), args[0], &buf); err != nil {
				return err
			}

			if output == "" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := fs.WriteFileAtomic(output, buf.Bytes(), 0o644); err != nil {
				return errors.Wrap(errors.EInternal, fmt.Sprintf("failed to write %s", output), err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "write completion script to file instead of stdout")

	return cmd
}

func genCompletion(root *cobra.Command, shell string, buf *bytes.Buffer) error {
	var err error
	switch shell {
	case "bash":
		err = root.GenBashCompletionV2(buf, true)
	case "zsh":
		err = root.GenZshCompletion(buf)
	case "fish":
		err = root.GenFishCompletion(buf, true)
	default:
		return errors.New(errors.EUsage, fmt.Sprintf("unsupported shell: %s (supported: bash, zsh, fish)", shell))
	}
	if err != nil {
		return errors.Wrap(errors.EInternal, "failed to generate completion script", err)
	}
	return nil
}

// completeSessionIDs offers session ids from the data directory.
func completeSessionIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var out []string
	for _, id := range commands.SessionIDs(globalOpts.DataDir) {
		if strings.HasPrefix(id, toComplete) {
			out = append(out, id)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
