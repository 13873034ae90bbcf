package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/crmarques/mobilectl/debugctx"
	"github.com/crmarques/mobilectl/faults"
	accountcmd "github.com/crmarques/mobilectl/internal/cli/account"
	"github.com/crmarques/mobilectl/internal/cli/commandmeta"
	"github.com/crmarques/mobilectl/internal/cli/common"
	"github.com/crmarques/mobilectl/internal/cli/completion"
	mobilecmd "github.com/crmarques/mobilectl/internal/cli/mobile"
	"github.com/crmarques/mobilectl/internal/cli/version"
	"github.com/crmarques/mobilectl/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const usageTemplate = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}{{$cmds := .Commands}}{{if eq (len .Groups) 0}}

Available Commands:{{range $cmds}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{else}}{{range $group := .Groups}}

{{.Title}}{{range $cmds}}{{if (and (eq .GroupID $group.ID) (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if not .AllChildCommandsHaveGroup}}

Additional Commands:{{range $cmds}}{{if (and (eq .GroupID "") (or .IsAvailableCommand (eq .Name "help")))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{end}}{{end}}{{if .LocalNonPersistentFlags.HasAvailableFlags}}

Flags:
{{.LocalNonPersistentFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if or .HasAvailableInheritedFlags .HasAvailablePersistentFlags}}

Global Flags:
{{if .HasAvailableInheritedFlags}}{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}
{{end}}{{if and .HasAvailableInheritedFlags .HasAvailablePersistentFlags}}
{{end}}{{if .HasAvailablePersistentFlags}}{{.PersistentFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .CommandPath .CommandPathPadding}} {{.Short}}{{end}}{{end}}{{end}}
{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`

// runState holds what the pre-run hook set up and the end of the run tears
// down, whether or not the command failed.
type runState struct {
	globalFlags     common.GlobalFlags
	registry        *prometheus.Registry
	shutdownTracing func(context.Context) error
}

func (s *runState) finish(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	if s.shutdownTracing != nil {
		if err := s.shutdownTracing(ctx); err != nil {
			errs = append(errs, err)
		}
		s.shutdownTracing = nil
	}
	if s.registry != nil {
		if err := telemetry.WriteTextfile(s.globalFlags.MetricsFile, s.registry); err != nil {
			errs = append(errs, faults.NewTypedError(faults.InternalError, "unable to write metrics file", err))
		}
		s.registry = nil
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func NewRootCommand(deps Dependencies) *cobra.Command {
	root, _ := newRootCommand(deps)
	return root
}

func newRootCommand(deps Dependencies) (*cobra.Command, *runState) {
	commandDeps := deps.commandDependencies()
	state := &runState{}
	globalFlags := &state.globalFlags

	root := &cobra.Command{
		Use:   "mobilectl",
		Short: "Manage mobile services and their data",
		RunE: func(command *cobra.Command, _ []string) error {
			return command.Help()
		},
		Args: cobra.NoArgs,
		PersistentPreRunE: func(command *cobra.Command, _ []string) error {
			if err := common.ValidateOutputFormat(globalFlags.Output); err != nil {
				return err
			}
			if err := common.ValidateOutputFormatForCommandPath(command.CommandPath(), globalFlags.Output); err != nil {
				return err
			}
			if err := common.ValidateQuery(globalFlags.Query); err != nil {
				return err
			}

			verbosity := 0
			if globalFlags.Debug {
				verbosity = debugctx.LevelDebug
			}
			if globalFlags.Trace {
				verbosity = debugctx.LevelTrace
			}

			commandContext := command.Context()
			if commandContext == nil {
				commandContext = context.Background()
			}
			commandContext = debugctx.WithLogger(commandContext, debugctx.NewLogger(command.ErrOrStderr(), verbosity))

			if strings.TrimSpace(globalFlags.MetricsFile) != "" {
				state.registry = prometheus.NewRegistry()
				commandContext = common.WithMetrics(commandContext, telemetry.InitMetrics(state.registry))
			}
			if commandmeta.RequiresAccountPath(command.CommandPath()) {
				shutdown, err := telemetry.InitTracing(commandContext, version.Version, deps.LookupEnv)
				if err != nil {
					debugctx.Printf(commandContext, "tracing disabled: %v", err)
				} else {
					state.shutdownTracing = shutdown
				}
			}
			command.SetContext(commandContext)

			debugctx.Printf(
				command.Context(),
				"root flags account=%q output=%q query=%q trace=%t no_status=%t no_color=%t command=%q",
				globalFlags.Account,
				globalFlags.Output,
				globalFlags.Query,
				globalFlags.Trace,
				globalFlags.NoStatus,
				globalFlags.NoColor,
				command.CommandPath(),
			)

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetUsageTemplate(usageTemplate)
	defaultHelpFunc := root.HelpFunc()
	root.SetHelpFunc(func(command *cobra.Command, args []string) {
		originalOut := command.OutOrStdout()
		originalErr := command.ErrOrStderr()

		buffer := &bytes.Buffer{}
		command.SetOut(buffer)
		command.SetErr(buffer)
		defaultHelpFunc(command, args)
		command.SetOut(originalOut)
		command.SetErr(originalErr)

		rendered := strings.TrimRight(buffer.String(), "\n")
		if rendered == "" {
			_, _ = fmt.Fprintln(originalOut)
			return
		}

		_, _ = fmt.Fprintln(originalOut, rendered)
	})

	common.BindGlobalFlags(root, globalFlags)
	common.RegisterAccountFlagCompletion(root, commandDeps, globalFlags)
	root.PersistentFlags().BoolP("help", "h", false, "help for command")

	root.AddGroup(
		&cobra.Group{ID: "basic", Title: "Basic Commands:"},
		&cobra.Group{ID: "other", Title: "Other Commands:"},
	)

	prompter := deps.Prompter
	if prompter == nil {
		prompter = common.TerminalPrompter{}
	}

	basicCommands := []*cobra.Command{
		accountcmd.NewCommand(commandDeps, globalFlags, prompter),
		mobilecmd.NewCommand(commandDeps, globalFlags, prompter),
	}
	for _, command := range basicCommands {
		command.GroupID = "basic"
		root.AddCommand(command)
	}

	otherCommands := []*cobra.Command{
		completion.NewCommand(),
		version.NewCommand(globalFlags),
	}
	for _, command := range otherCommands {
		command.GroupID = "other"
		root.AddCommand(command)
	}

	wrapUsageForMissingPositionalParameterErrors(root)

	return root, state
}

func wrapUsageForMissingPositionalParameterErrors(root *cobra.Command) {
	if root == nil {
		return
	}

	var wrapCommandTree func(*cobra.Command)
	wrapCommandTree = func(command *cobra.Command) {
		if command == nil {
			return
		}

		command.Args = wrapCommandErrorHandlerWithUsage(command.Args)
		command.PersistentPreRunE = wrapCommandErrorHandlerWithUsage(command.PersistentPreRunE)
		command.PreRunE = wrapCommandErrorHandlerWithUsage(command.PreRunE)
		command.RunE = wrapCommandErrorHandlerWithUsage(command.RunE)

		for _, child := range command.Commands() {
			wrapCommandTree(child)
		}
	}

	wrapCommandTree(root)
}

func wrapCommandErrorHandlerWithUsage(handler func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	if handler == nil {
		return nil
	}

	return func(command *cobra.Command, args []string) error {
		err := handler(command, args)
		if shouldPrintUsageForMissingPositionalParameter(command, err, args) {
			printCommandUsageOnError(command)
		}
		return err
	}
}

func shouldPrintUsageForMissingPositionalParameter(command *cobra.Command, err error, args []string) bool {
	if err == nil || len(args) != 0 {
		return false
	}
	if !commandDeclaresPositionalParameters(command) {
		return false
	}

	message := strings.TrimSpace(strings.ToLower(err.Error()))
	if message == "" {
		return false
	}

	if faults.IsCategory(err, faults.ValidationError) {
		if strings.HasPrefix(message, "flag ") {
			return false
		}
		if strings.Contains(message, "input is required") {
			return false
		}
		if strings.Contains(message, "interactive terminal is required") {
			return false
		}
		if strings.Contains(message, "value is required") {
			return false
		}
		return strings.Contains(message, " is required")
	}

	return strings.Contains(message, "arg(s)") && strings.Contains(message, "received 0")
}

func commandDeclaresPositionalParameters(command *cobra.Command) bool {
	if command == nil {
		return false
	}

	use := strings.TrimSpace(command.Use)
	return strings.Contains(use, "[") || strings.Contains(use, "<")
}

func printCommandUsageOnError(command *cobra.Command) {
	if command == nil {
		return
	}

	rendered := strings.TrimRight(command.UsageString(), "\n")
	if rendered == "" {
		return
	}

	_, _ = fmt.Fprintln(command.ErrOrStderr(), rendered)
}
