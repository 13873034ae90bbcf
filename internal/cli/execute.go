package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crmarques/mobilectl/config"
	"github.com/crmarques/mobilectl/faults"
	"github.com/crmarques/mobilectl/internal/cli/commandmeta"
	"github.com/crmarques/mobilectl/internal/cli/common"
	"github.com/crmarques/mobilectl/mobile"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Observer receives request and operation poll events for metrics.
type Observer = common.Observer

type Dependencies struct {
	NewAccounts func(catalogPath string) config.AccountService
	OpenMobile  func(ctx context.Context, catalogPath string, selection config.AccountSelection, observer Observer) (*mobile.Client, error)
	Prompter    common.Prompter
	LookupEnv   func(string) (string, bool)
}

func (d Dependencies) commandDependencies() common.CommandDependencies {
	return common.CommandDependencies{
		NewAccounts: d.NewAccounts,
		OpenMobile:  d.OpenMobile,
	}
}

func Execute(deps Dependencies) error {
	return ExecuteArgs(deps, os.Args[1:])
}

func ExecuteArgs(deps Dependencies, args []string) error {
	root, state := newRootCommand(deps)
	root.SetArgs(args)
	command, err := root.ExecuteC()
	var commandContext context.Context
	if command != nil {
		commandContext = command.Context()
	}
	if finishErr := state.finish(commandContext); finishErr != nil && err == nil {
		err = finishErr
	}
	emitStatus := shouldEmitExecutionStatus(args, command)

	if err != nil {
		if emitStatus {
			writeExecutionErrorStatus(root.ErrOrStderr(), err, args)
		} else {
			_, _ = fmt.Fprintln(root.ErrOrStderr(), strings.TrimSpace(err.Error()))
		}
		return err
	}
	if emitStatus {
		writeExecutionOKStatus(root.ErrOrStderr(), args)
	}
	return nil
}

func ExitCodeForError(err error) int {
	if err == nil {
		return 0
	}

	var typedErr *faults.TypedError
	if !errors.As(err, &typedErr) {
		return 1
	}

	switch typedErr.Category {
	case faults.ValidationError:
		return 2
	case faults.NotFoundError:
		return 3
	case faults.AuthError:
		return 4
	case faults.ConflictError:
		return 5
	case faults.TransportError:
		return 6
	case faults.ApplicationError:
		return 7
	case faults.ParseError:
		return 8
	case faults.ProtocolError:
		return 9
	case faults.OperationFailedError:
		return 10
	case faults.AggregateError:
		return 11
	default:
		return 1
	}
}

func writeExecutionOKStatus(w io.Writer, args []string) {
	_, _ = fmt.Fprintf(w, "%s command executed successfully.\n", formatStatusLabel(w, "OK", args))
}

func writeExecutionErrorStatus(w io.Writer, err error, args []string) {
	description := "command execution failed"
	if err != nil {
		description = fmt.Sprintf("%s: %s", description, strings.TrimSpace(err.Error()))
	}
	_, _ = fmt.Fprintf(w, "%s %s.\n", formatStatusLabel(w, "ERROR", args), description)
}

func formatStatusLabel(w io.Writer, status string, args []string) string {
	label := fmt.Sprintf("[%s]", strings.TrimSpace(status))
	if !supportsANSIStatus(w, args) {
		return label
	}

	switch strings.TrimSpace(status) {
	case "OK":
		return "\x1b[1;32m" + label + "\x1b[0m"
	case "ERROR":
		return "\x1b[1;31m" + label + "\x1b[0m"
	default:
		return label
	}
}

func supportsANSIStatus(w io.Writer, args []string) bool {
	if shouldSuppressColor(args) {
		return false
	}

	file, ok := w.(*os.File)
	if !ok {
		return false
	}

	info, err := file.Stat()
	if err != nil || info == nil {
		return false
	}
	if (info.Mode() & os.ModeCharDevice) == 0 {
		return false
	}

	term := strings.TrimSpace(strings.ToLower(os.Getenv("TERM")))
	return term != "" && term != "dumb"
}

func shouldSuppressColor(args []string) bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return true
	}
	return hasNoColorArgToken(args)
}

func shouldEmitExecutionStatus(args []string, command *cobra.Command) bool {
	if shouldSuppressStatusMessage(args) {
		return false
	}
	if isHelpOrCompletionInvocation(args) {
		return false
	}
	return commandPathSupportsExecutionStatus(commandPath(command))
}

func commandPath(command *cobra.Command) string {
	if command == nil {
		return ""
	}
	return strings.TrimSpace(command.CommandPath())
}

func commandPathSupportsExecutionStatus(path string) bool {
	return commandmeta.EmitsExecutionStatusPath(path)
}

func shouldSuppressStatusMessage(args []string) bool {
	flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.SetOutput(io.Discard)

	var noStatus bool
	flags.BoolVarP(&noStatus, "no-status", "n", false, "hide status output")
	if err := flags.Parse(args); err != nil {
		return hasNoStatusArgToken(args)
	}
	return noStatus
}

func isHelpOrCompletionInvocation(args []string) bool {
	if len(args) == 0 {
		return true
	}
	if args[0] == "help" {
		return true
	}
	switch args[0] {
	case "completion", "__complete", "__completeNoDesc":
		return true
	}

	for _, current := range args {
		if current == "--" {
			break
		}
		if current == "--help" || current == "-h" {
			return true
		}
	}
	return false
}

func hasNoStatusArgToken(args []string) bool {
	for _, current := range args {
		if current == "--no-status" || current == "-n" {
			return true
		}
		if strings.HasPrefix(current, "--no-status=") {
			return strings.TrimSpace(strings.TrimPrefix(current, "--no-status=")) != "false"
		}
	}
	return false
}

func hasNoColorArgToken(args []string) bool {
	for _, current := range args {
		if current == "--no-color" {
			return true
		}
		if strings.HasPrefix(current, "--no-color=") {
			return strings.TrimSpace(strings.TrimPrefix(current, "--no-color=")) != "false"
		}
	}
	return false
}
