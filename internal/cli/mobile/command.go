package mobile

import (
	"fmt"
	"io"
	"strings"

	"github.com/crmarques/mobilectl/internal/cli/common"
	mobiledomain "github.com/crmarques/mobilectl/mobile"
	"github.com/crmarques/mobilectl/plan"
	"github.com/spf13/cobra"
)

const serviceLabel = "mobile service name"

// commandEnv is shared by every mobile subcommand.
type commandEnv struct {
	deps         common.CommandDependencies
	globalFlags  *common.GlobalFlags
	prompter     common.Prompter
	subscription string
}

func NewCommand(deps common.CommandDependencies, globalFlags *common.GlobalFlags, prompter common.Prompter) *cobra.Command {
	env := &commandEnv{deps: deps, globalFlags: globalFlags, prompter: prompter}

	command := &cobra.Command{
		Use:   "mobile",
		Short: "Manage mobile services",
		Args:  cobra.NoArgs,
	}
	command.PersistentFlags().StringVarP(&env.subscription, "subscription", "s", "", "use this subscription id instead of the account's")

	command.AddCommand(
		newLocationsCommand(env),
		newListCommand(env),
		newShowCommand(env),
		newCreateCommand(env),
		newDeleteCommand(env),
		newRestartCommand(env),
		newLogCommand(env),
		newKeyCommand(env),
		newConfigCommand(env),
		newTableCommand(env),
		newDataCommand(env),
		newScriptCommand(env),
		newScaleCommand(env),
		newJobCommand(env),
	)

	return command
}

func (e *commandEnv) client(command *cobra.Command) (*mobiledomain.Client, error) {
	return common.RequireMobile(command, e.deps, e.globalFlags, e.subscription)
}

// serviceAndClient resolves the service name argument before opening the
// client so a missing name is reported without touching the account catalog.
func (e *commandEnv) serviceAndClient(command *cobra.Command, args []string) (string, *mobiledomain.Client, error) {
	service, err := common.RequireArg(command, e.prompter, args, 0, serviceLabel)
	if err != nil {
		return "", nil, err
	}
	client, err := e.client(command)
	if err != nil {
		return "", nil, err
	}
	return service, client, nil
}

func (e *commandEnv) arg(command *cobra.Command, args []string, index int, label string) (string, error) {
	return common.RequireArg(command, e.prompter, args, index, label)
}

func (e *commandEnv) confirm(command *cobra.Command, quiet bool, prompt string) (bool, error) {
	return common.ConfirmDestructive(command, e.prompter, quiet, prompt)
}

func (e *commandEnv) spin(command *cobra.Command, message string) *common.Spinner {
	return common.StartSpinner(command, e.globalFlags, message)
}

// info writes a status line to stderr unless status output is suppressed.
func (e *commandEnv) info(command *cobra.Command, format string, args ...any) {
	if e.globalFlags != nil && e.globalFlags.NoStatus {
		return
	}
	_, _ = fmt.Fprintf(command.ErrOrStderr(), format+"\n", args...)
}

func (e *commandEnv) structured() bool {
	return common.ResolveOutputFormat(e.globalFlags) != common.OutputText
}

func (e *commandEnv) runPlan(command *cobra.Command, steps []plan.Step) error {
	executor := plan.Executor{Reporter: common.NewStepReporter(command, e.globalFlags)}
	_, err := executor.Run(command.Context(), steps)
	return err
}

func writeResult[T any](e *commandEnv, command *cobra.Command, value T, render func(io.Writer, T) error) error {
	query := ""
	if e.globalFlags != nil {
		query = e.globalFlags.Query
	}
	return common.WriteQueriedOutput(command, common.ResolveOutputFormat(e.globalFlags), query, value, render)
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func valueOrNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return "N/A"
	}
	return value
}
