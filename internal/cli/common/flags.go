package common

import "github.com/spf13/cobra"

type GlobalFlags struct {
	Account      string
	AccountsFile string
	Debug        bool
	Trace        bool
	NoStatus     bool
	NoColor      bool
	Output       string
	Query        string
	MetricsFile  string
}

type InputFlags struct {
	Payload string
	Format  string
}

func BindGlobalFlags(command *cobra.Command, flags *GlobalFlags) {
	command.PersistentFlags().StringVarP(&flags.Account, "account", "a", "", "account name (defaults to the current account)")
	command.PersistentFlags().StringVar(&flags.AccountsFile, "accounts-file", "", "account catalog path (default ~/.mobilectl/accounts.yaml)")
	command.PersistentFlags().BoolVarP(&flags.Debug, "debug", "d", false, "log requests and operation polls to stderr")
	command.PersistentFlags().BoolVar(&flags.Trace, "trace", false, "like --debug and include request and response bodies")
	command.PersistentFlags().BoolVarP(&flags.NoStatus, "no-status", "n", false, "hide status output")
	command.PersistentFlags().BoolVar(&flags.NoColor, "no-color", false, "disable color output")
	command.PersistentFlags().StringVarP(&flags.Output, "output", "o", OutputAuto, "output format: auto|text|json|yaml")
	command.PersistentFlags().StringVarP(&flags.Query, "query", "q", "", "jq expression applied to structured output")
	command.PersistentFlags().StringVar(&flags.MetricsFile, "metrics-file", "", "write request metrics in Prometheus text format to this path")
	RegisterOutputFlagCompletion(command)
}

func BindInputFlags(command *cobra.Command, flags *InputFlags) {
	command.Flags().StringVarP(&flags.Payload, "payload", "f", "", "payload file path (use '-' to read from stdin)")
	command.Flags().StringVarP(&flags.Format, "format", "i", OutputYAML, "input format: json|yaml")
	RegisterInputFormatFlagCompletion(command)
}

// BindQuietFlag adds --quiet, which skips confirmation prompts.
func BindQuietFlag(command *cobra.Command, quiet *bool) {
	command.Flags().BoolVar(quiet, "quiet", false, "do not ask for confirmation")
}
