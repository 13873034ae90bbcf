package completion

import (
	"io"

	"github.com/spf13/cobra"
)

type generator func(root *cobra.Command, w io.Writer) error

var shells = []struct {
	name     string
	short    string
	generate generator
}{
	{
		name:  "bash",
		short: "Generate Bash completion",
		generate: func(root *cobra.Command, w io.Writer) error {
			return root.GenBashCompletionV2(w, true)
		},
	},
	{
		name:  "zsh",
		short: "Generate Zsh completion",
		generate: func(root *cobra.Command, w io.Writer) error {
			return root.GenZshCompletion(w)
		},
	},
	{
		name:  "fish",
		short: "Generate Fish completion",
		generate: func(root *cobra.Command, w io.Writer) error {
			return root.GenFishCompletion(w, true)
		},
	},
	{
		name:  "powershell",
		short: "Generate PowerShell completion",
		generate: func(root *cobra.Command, w io.Writer) error {
			return root.GenPowerShellCompletionWithDesc(w)
		},
	},
}

func NewCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "completion",
		Short: "Generate shell completion scripts",
		Args:  cobra.NoArgs,
	}

	for _, shell := range shells {
		shell := shell
		command.AddCommand(&cobra.Command{
			Use:   shell.name,
			Short: shell.short,
			Args:  cobra.NoArgs,
			RunE: func(command *cobra.Command, _ []string) error {
				return shell.generate(command.Root(), command.OutOrStdout())
			},
		})
	}

	return command
}
