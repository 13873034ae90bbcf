package mobile

import (
	"fmt"
	"io"
	"os"

	"github.com/crmarques/mobilectl/internal/cli/common"
	mobiledomain "github.com/crmarques/mobilectl/mobile"
	"github.com/crmarques/mobilectl/settings"
	"github.com/spf13/cobra"
)

const (
	notConfiguredText = "Not configured"
	unavailableText   = "Unable to obtain the value of this setting"
)

type configRow struct {
	Key   string `json:"key" yaml:"key"`
	State string `json:"state" yaml:"state"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newConfigCommand(env *commandEnv) *cobra.Command {
	command := &cobra.Command{
		Use:   "config",
		Short: "Manage mobile service configuration",
		Args:  cobra.NoArgs,
	}
	command.AddCommand(
		newConfigListCommand(env),
		newConfigGetCommand(env),
		newConfigSetCommand(env),
	)
	return command
}

func newConfigListCommand(env *commandEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "list [service]",
		Short: "Show mobile service configuration settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			service, client, err := env.serviceAndClient(command, args)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Getting mobile service configuration")
			entries, err := client.ConfigSnapshot(command.Context(), service)
			spinner.Stop()
			if err != nil {
				return err
			}

			rows := make([]configRow, 0, len(entries))
			for _, entry := range entries {
				row := configRow{Key: entry.Key, State: string(entry.State), Value: entry.Value}
				if entry.Err != nil {
					row.Error = entry.Err.Error()
				}
				rows = append(rows, row)
			}

			return writeResult(env, command, rows, func(w io.Writer, value []configRow) error {
				table := common.NewTable(w, "SETTING", "VALUE")
				for _, row := range value {
					table.AppendRow([]any{row.Key, configValueText(row)})
				}
				table.Render()
				return nil
			})
		},
	}
}

func configValueText(row configRow) string {
	switch settings.EntryState(row.State) {
	case settings.StateConfigured:
		return fmt.Sprint(row.Value)
	case settings.StateNotConfigured:
		return notConfiguredText
	default:
		return unavailableText
	}
}

func newConfigGetCommand(env *commandEnv) *cobra.Command {
	var file string

	command := &cobra.Command{
		Use:   "get [service] [key]",
		Short: "Get a mobile service configuration setting",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			service, err := env.arg(command, args, 0, serviceLabel)
			if err != nil {
				return err
			}
			key, err := env.arg(command, args, 1, "setting name")
			if err != nil {
				return err
			}
			client, err := env.client(command)
			if err != nil {
				return err
			}

			projector := settings.Projector{Table: mobiledomain.SettingsTable(client, service)}
			spinner := env.spin(command, "Getting mobile service configuration")
			value, found, err := projector.Get(command.Context(), key)
			spinner.Stop()
			if err != nil {
				return err
			}

			if file != "" {
				if !found {
					return common.ValidationError(fmt.Sprintf("setting %s is not configured", key), nil)
				}
				if err := os.WriteFile(file, []byte(fmt.Sprint(value)), 0o600); err != nil {
					return common.ValidationError(fmt.Sprintf("failed to write %s", file), err)
				}
				env.info(command, "Setting %s saved to %s.", key, file)
				return nil
			}

			result := map[string]any{key: value}
			return writeResult(env, command, result, func(w io.Writer, _ map[string]any) error {
				if !found {
					return common.WriteEmptyMessage(w, fmt.Sprintf("Setting %s is not configured.", key))
				}
				_, err := fmt.Fprintf(w, "%s %v\n", key, value)
				return err
			})
		},
	}

	command.Flags().StringVarP(&file, "file", "f", "", "save the value of the setting to a file")
	return command
}

func newConfigSetCommand(env *commandEnv) *cobra.Command {
	var file string

	command := &cobra.Command{
		Use:   "set [service] [key] [value]",
		Short: "Set a mobile service configuration setting",
		Args:  cobra.MaximumNArgs(3),
		RunE: func(command *cobra.Command, args []string) error {
			service, err := env.arg(command, args, 0, serviceLabel)
			if err != nil {
				return err
			}
			key, err := env.arg(command, args, 1, "setting name")
			if err != nil {
				return err
			}

			var value string
			switch {
			case file != "":
				if len(args) > 2 {
					return common.ValidationError("specify either a value or --file, not both", nil)
				}
				content, err := common.ReadTextFile(command, file)
				if err != nil {
					return err
				}
				value = content
			default:
				value, err = env.arg(command, args, 2, "setting value")
				if err != nil {
					return err
				}
			}

			client, err := env.client(command)
			if err != nil {
				return err
			}

			projector := settings.Projector{Table: mobiledomain.SettingsTable(client, service)}
			spinner := env.spin(command, "Setting mobile service configuration")
			err = projector.Set(command.Context(), key, value)
			spinner.Stop()
			return err
		},
	}

	command.Flags().StringVarP(&file, "file", "f", "", "read the value of the setting from a file")
	return command
}
