package mobile

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/crmarques/mobilectl/faults"
	"github.com/crmarques/mobilectl/internal/cli/common"
	mobiledomain "github.com/crmarques/mobilectl/mobile"
	"github.com/spf13/cobra"
)

func newLocationsCommand(env *commandEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "List locations a mobile service can be created in",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			client, err := env.client(command)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Getting locations")
			regions, err := client.Regions(command.Context())
			spinner.Stop()
			if err != nil {
				return err
			}

			return writeResult(env, command, regions, func(w io.Writer, value []mobiledomain.Region) error {
				if len(value) == 0 {
					return common.WriteEmptyMessage(w, "No locations are available.")
				}
				for idx, region := range value {
					suffix := ""
					if idx == 0 {
						suffix = " (default)"
					}
					if _, err := fmt.Fprintf(w, "%s%s\n", region.Region, suffix); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newListCommand(env *commandEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List mobile services",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			client, err := env.client(command)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Getting list of mobile services")
			services, err := client.ListServices(command.Context())
			spinner.Stop()
			if err != nil {
				return err
			}

			return writeResult(env, command, services, func(w io.Writer, value []mobiledomain.Service) error {
				if len(value) == 0 {
					return common.WriteEmptyMessage(w, "No mobile services created yet. You can create new mobile services using \"mobilectl mobile create\".")
				}
				table := common.NewTable(w, "NAME", "STATE", "URL")
				for _, service := range value {
					table.AppendRow([]any{service.Name, service.State, service.ApplicationURL})
				}
				table.Render()
				return nil
			})
		},
	}
}

func newShowCommand(env *commandEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "show [service]",
		Short: "Show details of a mobile service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			service, client, err := env.serviceAndClient(command, args)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Getting information")
			view, err := client.ShowService(command.Context(), service)
			spinner.Stop()
			if err != nil {
				return err
			}
			for part, partErr := range view.Errors {
				env.info(command, "warning: cannot read the %s of the service: %v", part, partErr)
			}

			return writeResult(env, command, view, renderServiceView)
		},
	}
}

func renderServiceView(w io.Writer, view mobiledomain.ServiceView) error {
	if view.Application != nil {
		if _, err := fmt.Fprintln(w, "Mobile application"); err != nil {
			return err
		}
		common.RenderKeyValues(w, "status", applicationStatus(*view.Application))
		if len(view.Application.Resources) > 0 {
			table := common.NewTable(w, "TYPE", "NAME", "STATE", "ERROR")
			for _, resource := range view.Application.Resources {
				table.AppendRow([]any{resource.TypeView, resource.NameView, resource.State, resource.Error})
			}
			table.Render()
		}
	}

	if view.Service != nil {
		if _, err := fmt.Fprintln(w, "Mobile service"); err != nil {
			return err
		}
		service := view.Service
		tables := make([]string, 0, len(service.Tables))
		for _, table := range service.Tables {
			tables = append(tables, table.Name)
		}
		common.RenderKeyValues(w,
			"name", service.Name,
			"state", valueOrNA(service.State),
			"applicationUrl", valueOrNA(service.ApplicationURL),
			"applicationKey", valueOrNA(service.ApplicationKey),
			"masterKey", valueOrNA(service.MasterKey),
			"webspace", valueOrNA(service.Webspace),
			"region", valueOrNA(service.Region),
			"tables", valueOrNA(strings.Join(tables, ", ")),
		)
	}

	if view.Webspace != nil {
		if _, err := fmt.Fprintln(w, "Scale"); err != nil {
			return err
		}
		renderWebspace(w, *view.Webspace)
	}
	return nil
}

func applicationStatus(application mobiledomain.Application) string {
	if application.Healthy() {
		return "Healthy"
	}
	return valueOrNA(application.State)
}

type createFlags struct {
	location    string
	sqlServer   string
	sqlDatabase string
	sqlLocation string
}

func newCreateCommand(env *commandEnv) *cobra.Command {
	flags := &createFlags{}

	command := &cobra.Command{
		Use:   "create [service] [sql-admin-username] [sql-admin-password]",
		Short: "Create a new mobile service",
		Args:  cobra.MaximumNArgs(3),
		RunE: func(command *cobra.Command, args []string) error {
			service, err := env.arg(command, args, 0, serviceLabel)
			if err != nil {
				return err
			}
			username, err := env.arg(command, args, 1, "SQL administrator user name")
			if err != nil {
				return err
			}
			if err := mobiledomain.ValidateAdministratorLogin(username); err != nil {
				return err
			}
			password, err := createPassword(command, env, args, username)
			if err != nil {
				return err
			}

			client, err := env.client(command)
			if err != nil {
				return err
			}

			location := flags.location
			if location == "" {
				regions, err := client.Regions(command.Context())
				if err != nil {
					return err
				}
				if len(regions) == 0 {
					return faults.NewTypedError(faults.NotFoundError, "no locations are available for mobile services", nil)
				}
				location = regions[0].Region
			}

			spinner := env.spin(command, "Creating mobile service")
			application, err := client.CreateService(command.Context(), mobiledomain.CreateServiceOptions{
				Name:        service,
				Location:    location,
				Username:    username,
				Password:    password,
				SQLServer:   flags.sqlServer,
				SQLDatabase: flags.sqlDatabase,
				SQLLocation: flags.sqlLocation,
			})
			spinner.Stop()
			if err != nil {
				if faults.IsCategory(err, faults.OperationFailedError) && application.Name != "" {
					if writeErr := writeResult(env, command, application, renderApplication); writeErr != nil {
						return errors.Join(err, writeErr)
					}
				}
				return err
			}

			return writeResult(env, command, application, renderApplication)
		},
	}

	command.Flags().StringVarP(&flags.location, "location", "l", "", "create the service in this location (see \"mobilectl mobile locations\")")
	command.Flags().StringVar(&flags.sqlServer, "sql-server", "", "use an existing SQL server")
	command.Flags().StringVar(&flags.sqlDatabase, "sql-db", "", "use an existing SQL database")
	command.Flags().StringVar(&flags.sqlLocation, "sql-location", "", "create a new SQL server in this location")
	return command
}

// createPassword reads the administrator password from args or prompts for it
// twice without echo.
func createPassword(command *cobra.Command, env *commandEnv, args []string, username string) (string, error) {
	if len(args) > 2 && strings.TrimSpace(args[2]) != "" {
		password := args[2]
		return password, mobiledomain.ValidateAdministratorPassword(username, password)
	}
	if env.prompter == nil || !env.prompter.IsInteractive(command) {
		return "", common.ValidationError("SQL administrator password is required", nil)
	}

	password, err := env.prompter.Secret(command, "SQL administrator password:")
	if err != nil {
		return "", err
	}
	if err := mobiledomain.ValidateAdministratorPassword(username, password); err != nil {
		return "", err
	}
	confirmation, err := env.prompter.Secret(command, "Confirm password:")
	if err != nil {
		return "", err
	}
	if confirmation != password {
		return "", common.ValidationError("passwords do not match", nil)
	}
	return password, nil
}

func renderApplication(w io.Writer, application mobiledomain.Application) error {
	common.RenderKeyValues(w,
		"name", application.Name,
		"status", applicationStatus(application),
	)
	for _, resource := range application.Resources {
		line := fmt.Sprintf("%s %s: %s", resource.TypeView, resource.NameView, resource.State)
		if resource.Error != "" {
			line += " (" + resource.Error + ")"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

type deleteFlags struct {
	deleteData bool
	deleteAll  bool
	quiet      bool
}

func newDeleteCommand(env *commandEnv) *cobra.Command {
	flags := &deleteFlags{}

	command := &cobra.Command{
		Use:   "delete [service]",
		Short: "Delete a mobile service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			service, client, err := env.serviceAndClient(command, args)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Getting mobile service details")
			application, err := client.GetApplication(command.Context(), service)
			spinner.Stop()
			if err != nil {
				return err
			}

			scope := mobiledomain.DeleteScope{DeleteData: flags.deleteData, DeleteSQLServer: flags.deleteAll}
			if !env.structured() {
				out := command.ErrOrStderr()
				for _, resource := range application.Resources {
					_, _ = fmt.Fprintf(out, "%s: %s\n", resource.TypeView, resource.NameView)
				}
			}
			if proceed, err := env.confirm(command, flags.quiet, fmt.Sprintf("Do you want to delete the mobile service %s %s?", service, scope.Description())); err != nil || !proceed {
				return err
			}

			steps, err := client.DeleteServicePlan(service, application, scope)
			if err != nil {
				return err
			}
			return env.runPlan(command, steps)
		},
	}

	command.Flags().BoolVar(&flags.deleteData, "delete-data", false, "delete all data from the database")
	command.Flags().BoolVar(&flags.deleteAll, "delete-all", false, "delete all data, the SQL database and the SQL server")
	common.BindQuietFlag(command, &flags.quiet)
	return command
}

func newRestartCommand(env *commandEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "restart [service]",
		Short: "Restart a mobile service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			service, client, err := env.serviceAndClient(command, args)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Restarting mobile service")
			err = client.RestartService(command.Context(), service)
			spinner.Stop()
			if err != nil {
				return err
			}
			env.info(command, "Service was restarted.")
			return nil
		},
	}
}

type logFlags struct {
	query             string
	entryType         string
	continuationToken string
	top               int
}

func newLogCommand(env *commandEnv) *cobra.Command {
	flags := &logFlags{}

	command := &cobra.Command{
		Use:   "log [service]",
		Short: "Get mobile service logs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			service, client, err := env.serviceAndClient(command, args)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Getting logs")
			page, err := client.Logs(command.Context(), service, mobiledomain.LogQuery{
				Raw:               flags.query,
				Top:               flags.top,
				Type:              flags.entryType,
				ContinuationToken: flags.continuationToken,
			})
			spinner.Stop()
			if err != nil {
				return err
			}

			return writeResult(env, command, page, renderLogPage)
		},
	}

	command.Flags().StringVarP(&flags.query, "query", "r", "", "log query; when specified all other parameters are ignored")
	command.Flags().StringVarP(&flags.entryType, "type", "t", "", "filter entry by type: information, warning or error")
	command.Flags().StringVarP(&flags.continuationToken, "continuation-token", "c", "", "show logs starting from the specified continuation token")
	command.Flags().IntVarP(&flags.top, "top", "p", mobiledomain.DefaultTop, "return the first <top> number of remaining rows")
	common.RegisterFlagValueCompletions(command, "type", []string{"information", "warning", "error"})
	return command
}

func renderLogPage(w io.Writer, page mobiledomain.LogPage) error {
	if len(page.Results) == 0 {
		return common.WriteEmptyMessage(w, "There are no matching log entries.")
	}

	for idx, entry := range page.Results {
		if idx > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		keys := make([]string, 0, len(entry))
		for key := range entry {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		pairs := make([]any, 0, 2*len(keys))
		for _, key := range keys {
			pairs = append(pairs, key, fmt.Sprint(entry[key]))
		}
		common.RenderKeyValues(w, pairs...)
	}

	if page.ContinuationToken != "" {
		if _, err := fmt.Fprintf(w, "Continuation token to receive the next result set: %s\n", page.ContinuationToken); err != nil {
			return err
		}
	}
	return nil
}

func newKeyCommand(env *commandEnv) *cobra.Command {
	command := &cobra.Command{
		Use:   "key",
		Short: "Manage mobile service keys",
		Args:  cobra.NoArgs,
	}

	regenerate := &cobra.Command{
		Use:   "regenerate [service] [application|master]",
		Short: "Regenerate the application or master key",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			service, err := env.arg(command, args, 0, serviceLabel)
			if err != nil {
				return err
			}
			rawType, err := env.arg(command, args, 1, "key type (application or master)")
			if err != nil {
				return err
			}
			keyType, err := mobiledomain.ParseKeyType(rawType)
			if err != nil {
				return err
			}
			client, err := env.client(command)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Regenerating key")
			keys, err := client.RegenerateKey(command.Context(), service, keyType)
			spinner.Stop()
			if err != nil {
				return err
			}

			return writeResult(env, command, keys, func(w io.Writer, value mobiledomain.RegeneratedKeys) error {
				_, err := fmt.Fprintf(w, "New %s key is %s\n", keyType, value.Key(keyType))
				return err
			})
		},
	}
	regenerate.ValidArgsFunction = func(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) != 1 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return common.CompleteValues([]string{string(mobiledomain.KeyApplication), string(mobiledomain.KeyMaster)}, toComplete)
	}
	command.AddCommand(regenerate)
	return command
}
