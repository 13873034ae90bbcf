package mobile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/crmarques/mobilectl/faults"
	"github.com/crmarques/mobilectl/internal/cli/common"
	mobiledomain "github.com/crmarques/mobilectl/mobile"
	"github.com/spf13/cobra"
)

const scriptLabel = "script name (table/<table>.<operation>, scheduler/<job> or shared/apnsFeedback)"

func newScriptCommand(env *commandEnv) *cobra.Command {
	command := &cobra.Command{
		Use:   "script",
		Short: "Manage mobile service scripts",
		Args:  cobra.NoArgs,
	}
	command.AddCommand(
		newScriptListCommand(env),
		newScriptDownloadCommand(env),
		newScriptUploadCommand(env),
		newScriptDeleteCommand(env),
	)
	return command
}

// serviceScriptAndClient resolves the service and script arguments, then
// opens the client.
func (e *commandEnv) serviceScriptAndClient(command *cobra.Command, args []string) (string, mobiledomain.ScriptName, *mobiledomain.Client, error) {
	service, err := e.arg(command, args, 0, serviceLabel)
	if err != nil {
		return "", mobiledomain.ScriptName{}, nil, err
	}
	rawScript, err := e.arg(command, args, 1, scriptLabel)
	if err != nil {
		return "", mobiledomain.ScriptName{}, nil, err
	}
	script, err := mobiledomain.ParseScriptName(rawScript)
	if err != nil {
		return "", mobiledomain.ScriptName{}, nil, err
	}
	client, err := e.client(command)
	if err != nil {
		return "", mobiledomain.ScriptName{}, nil, err
	}
	return service, script, client, nil
}

func newScriptListCommand(env *commandEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "list [service]",
		Short: "List mobile service scripts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			service, client, err := env.serviceAndClient(command, args)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Getting script information")
			listing := client.ListScripts(command.Context(), service)
			spinner.Stop()

			groups := make([]string, 0, len(listing.Errors))
			for group := range listing.Errors {
				groups = append(groups, group)
			}
			sort.Strings(groups)
			for _, group := range groups {
				env.info(command, "warning: cannot list %s scripts: %v", group, listing.Errors[group])
			}
			if len(groups) == 3 {
				causes := make([]error, 0, len(groups))
				for _, group := range groups {
					causes = append(causes, listing.Errors[group])
				}
				return faults.NewTypedError(faults.AggregateError, "cannot list the scripts of the service", errors.Join(causes...))
			}

			return writeResult(env, command, listing, renderScriptListing)
		},
	}
}

func renderScriptListing(w io.Writer, listing mobiledomain.ScriptListing) error {
	if _, err := fmt.Fprintln(w, "Table scripts"); err != nil {
		return err
	}
	if len(listing.Table) == 0 {
		if err := common.WriteEmptyMessage(w, "There are no table scripts."); err != nil {
			return err
		}
	} else {
		table := common.NewTable(w, "NAME", "SIZE")
		for _, script := range listing.Table {
			name := mobiledomain.ScriptName{Kind: mobiledomain.ScriptKindTable, Name: script.Table, Operation: script.Operation}
			table.AppendRow([]any{name.String(), script.SizeBytes})
		}
		table.Render()
	}

	if _, err := fmt.Fprintln(w, "Scheduler scripts"); err != nil {
		return err
	}
	if len(listing.Scheduler) == 0 {
		if err := common.WriteEmptyMessage(w, "There are no scheduler scripts."); err != nil {
			return err
		}
	} else {
		table := common.NewTable(w, "NAME", "STATUS", "INTERVAL", "LAST RUN", "NEXT RUN")
		for _, job := range listing.Scheduler {
			table.AppendRow([]any{job.ScriptName().String(), job.Status, job.IntervalView(), valueOrNA(job.LastRun), valueOrNA(job.NextRun)})
		}
		table.Render()
	}

	if _, err := fmt.Fprintln(w, "Shared scripts"); err != nil {
		return err
	}
	if len(listing.Shared) == 0 {
		return common.WriteEmptyMessage(w, "There are no shared scripts.")
	}
	table := common.NewTable(w, "NAME", "SIZE")
	for _, script := range listing.Shared {
		name := mobiledomain.ScriptName{Kind: mobiledomain.ScriptKindShared, Name: script.Name}
		table.AppendRow([]any{name.String(), script.SizeBytes})
	}
	table.Render()
	return nil
}

type downloadFlags struct {
	file     string
	override bool
	console  bool
}

func newScriptDownloadCommand(env *commandEnv) *cobra.Command {
	flags := &downloadFlags{}

	command := &cobra.Command{
		Use:   "download [service] [script]",
		Short: "Download a mobile service script",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			service, script, client, err := env.serviceScriptAndClient(command, args)
			if err != nil {
				return err
			}

			target := flags.file
			if target == "" {
				target = script.FilePath()
			}
			if !flags.console && !flags.override {
				if _, err := os.Stat(target); err == nil {
					return common.ValidationError(fmt.Sprintf("file %s already exists; use --override to overwrite it", target), nil)
				}
			}

			spinner := env.spin(command, "Downloading script")
			code, err := client.GetScript(command.Context(), service, script)
			spinner.Stop()
			if err != nil {
				return err
			}

			if flags.console {
				_, err := io.WriteString(command.OutOrStdout(), code)
				return err
			}
			if err := writeScriptFile(target, code); err != nil {
				return err
			}
			env.info(command, "Saved script to %s", target)
			return nil
		},
	}

	command.Flags().StringVarP(&flags.file, "file", "f", "", "file to save the script in")
	command.Flags().BoolVar(&flags.override, "override", false, "override existing files")
	command.Flags().BoolVarP(&flags.console, "console", "c", false, "write the script to the console instead of a file")
	return command
}

func writeScriptFile(path string, code string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return common.ValidationError(fmt.Sprintf("failed to create directory %s", dir), err)
		}
	}
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return common.ValidationError(fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

func newScriptUploadCommand(env *commandEnv) *cobra.Command {
	var file string

	command := &cobra.Command{
		Use:   "upload [service] [script]",
		Short: "Upload a mobile service script",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			service, script, client, err := env.serviceScriptAndClient(command, args)
			if err != nil {
				return err
			}

			source := file
			if source == "" {
				source = script.FilePath()
			}
			code, err := common.ReadTextFile(command, source)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Uploading script")
			err = client.SetScript(command.Context(), service, script, code)
			spinner.Stop()
			return err
		},
	}

	command.Flags().StringVarP(&file, "file", "f", "", "file to read the script from")
	return command
}

func newScriptDeleteCommand(env *commandEnv) *cobra.Command {
	var quiet bool

	command := &cobra.Command{
		Use:   "delete [service] [script]",
		Short: "Delete a mobile service script",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			service, script, client, err := env.serviceScriptAndClient(command, args)
			if err != nil {
				return err
			}
			if proceed, err := env.confirm(command, quiet, fmt.Sprintf("Do you want to delete the script %s?", script)); err != nil || !proceed {
				return err
			}

			spinner := env.spin(command, "Deleting script")
			err = client.DeleteScript(command.Context(), service, script)
			spinner.Stop()
			return err
		},
	}

	common.BindQuietFlag(command, &quiet)
	return command
}
