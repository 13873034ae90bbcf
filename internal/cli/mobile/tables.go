package mobile

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/crmarques/mobilectl/internal/cli/common"
	mobiledomain "github.com/crmarques/mobilectl/mobile"
	"github.com/spf13/cobra"
)

const tableLabel = "table name"

func newTableCommand(env *commandEnv) *cobra.Command {
	command := &cobra.Command{
		Use:   "table",
		Short: "Manage mobile service tables",
		Args:  cobra.NoArgs,
	}
	command.AddCommand(
		newTableListCommand(env),
		newTableShowCommand(env),
		newTableCreateCommand(env),
		newTableUpdateCommand(env),
		newTableDeleteCommand(env),
	)
	return command
}

// serviceTableAndClient resolves the service and table arguments, then opens
// the client.
func (e *commandEnv) serviceTableAndClient(command *cobra.Command, args []string) (string, string, *mobiledomain.Client, error) {
	service, err := e.arg(command, args, 0, serviceLabel)
	if err != nil {
		return "", "", nil, err
	}
	table, err := e.arg(command, args, 1, tableLabel)
	if err != nil {
		return "", "", nil, err
	}
	client, err := e.client(command)
	if err != nil {
		return "", "", nil, err
	}
	return service, table, client, nil
}

func newTableListCommand(env *commandEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "list [service]",
		Short: "List mobile service tables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			service, client, err := env.serviceAndClient(command, args)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Getting table information")
			tables, err := client.ListTables(command.Context(), service)
			spinner.Stop()
			if err != nil {
				return err
			}

			return writeResult(env, command, tables, func(w io.Writer, value []mobiledomain.Table) error {
				if len(value) == 0 {
					return common.WriteEmptyMessage(w, "No tables created yet. You can create a mobile service table using \"mobilectl mobile table create\".")
				}
				table := common.NewTable(w, "NAME", "INDEXES", "ROWS")
				for _, each := range value {
					table.AppendRow([]any{each.Name, each.Metrics.IndexCount, each.Metrics.RecordCount})
				}
				table.Render()
				return nil
			})
		},
	}
}

func newTableShowCommand(env *commandEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "show [service] [table]",
		Short: "Show details of a mobile service table",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			service, table, client, err := env.serviceTableAndClient(command, args)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Getting table information")
			view, err := client.ShowTable(command.Context(), service, table)
			spinner.Stop()
			if err != nil {
				return err
			}
			for part, partErr := range view.Errors {
				env.info(command, "warning: cannot read the %s of the table: %v", part, partErr)
			}

			return writeResult(env, command, view, renderTableView)
		},
	}
}

func renderTableView(w io.Writer, view mobiledomain.TableView) error {
	if view.Table != nil {
		if _, err := fmt.Fprintln(w, "Table statistics"); err != nil {
			return err
		}
		common.RenderKeyValues(w,
			"name", view.Table.Name,
			"indexes", view.Table.Metrics.IndexCount,
			"records", view.Table.Metrics.RecordCount,
		)
	}

	if _, err := fmt.Fprintln(w, "Table operations"); err != nil {
		return err
	}
	operations := common.NewTable(w, "OPERATION", "PERMISSION", "SCRIPT")
	for _, operation := range mobiledomain.TableOperations {
		permission := view.Permissions[operation]
		script := "Not defined"
		if defined, ok := view.Script(operation); ok {
			script = fmt.Sprintf("%d bytes", defined.SizeBytes)
		}
		operations.AppendRow([]any{operation, valueOrNA(permission), script})
	}
	operations.Render()

	if len(view.Columns) > 0 {
		if _, err := fmt.Fprintln(w, "Columns"); err != nil {
			return err
		}
		columns := common.NewTable(w, "NAME", "TYPE", "INDEXED")
		for _, column := range view.Columns {
			indexed := ""
			if column.Indexed {
				indexed = "Yes"
			}
			columns.AppendRow([]any{column.Name, column.Type, indexed})
		}
		columns.Render()
	}
	return nil
}

func newTableCreateCommand(env *commandEnv) *cobra.Command {
	var permissions string

	command := &cobra.Command{
		Use:   "create [service] [table]",
		Short: "Create a new mobile service table",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			parsed, err := mobiledomain.ParsePermissions(permissions)
			if err != nil {
				return err
			}
			service, table, client, err := env.serviceTableAndClient(command, args)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Creating table")
			err = client.CreateTable(command.Context(), service, table, parsed)
			spinner.Stop()
			return err
		},
	}

	command.Flags().StringVarP(&permissions, "permissions", "p", "", "comma delimited list of <operation>=<permission> pairs")
	return command
}

type tableUpdateFlags struct {
	permissions   string
	deleteColumns string
	addIndexes    string
	deleteIndexes string
	quiet         bool
}

func newTableUpdateCommand(env *commandEnv) *cobra.Command {
	flags := &tableUpdateFlags{}

	command := &cobra.Command{
		Use:   "update [service] [table]",
		Short: "Update mobile service table properties",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			permissions, err := mobiledomain.ParsePermissions(flags.permissions)
			if err != nil {
				return err
			}
			update := mobiledomain.TableUpdate{
				Permissions:   permissions,
				DeleteColumns: splitList(flags.deleteColumns),
				AddIndexes:    splitList(flags.addIndexes),
				DeleteIndexes: splitList(flags.deleteIndexes),
			}
			if update.Empty() {
				return common.ValidationError("no updates specified; use --permissions, --delete-column, --add-index or --delete-index", nil)
			}

			service, table, client, err := env.serviceTableAndClient(command, args)
			if err != nil {
				return err
			}

			if len(update.DeleteColumns) > 0 {
				prompt := fmt.Sprintf("Do you want to delete the columns %s and all data in them?", strings.Join(update.DeleteColumns, ", "))
				if proceed, err := env.confirm(command, flags.quiet, prompt); err != nil || !proceed {
					return err
				}
			}

			steps, err := client.UpdateTablePlan(service, table, update)
			if err != nil {
				return err
			}
			return env.runPlan(command, steps)
		},
	}

	command.Flags().StringVarP(&flags.permissions, "permissions", "p", "", "comma delimited list of <operation>=<permission> pairs")
	command.Flags().StringVar(&flags.deleteColumns, "delete-column", "", "comma separated list of columns to delete")
	command.Flags().StringVar(&flags.addIndexes, "add-index", "", "comma separated list of columns to create an index on")
	command.Flags().StringVar(&flags.deleteIndexes, "delete-index", "", "comma separated list of columns to delete an index from")
	common.BindQuietFlag(command, &flags.quiet)
	return command
}

func newTableDeleteCommand(env *commandEnv) *cobra.Command {
	var quiet bool

	command := &cobra.Command{
		Use:   "delete [service] [table]",
		Short: "Delete a mobile service table",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			service, table, client, err := env.serviceTableAndClient(command, args)
			if err != nil {
				return err
			}
			if proceed, err := env.confirm(command, quiet, fmt.Sprintf("Do you want to delete the table %s?", table)); err != nil || !proceed {
				return err
			}

			spinner := env.spin(command, "Deleting table")
			err = client.DeleteTable(command.Context(), service, table)
			spinner.Stop()
			return err
		},
	}

	common.BindQuietFlag(command, &quiet)
	return command
}

func newDataCommand(env *commandEnv) *cobra.Command {
	command := &cobra.Command{
		Use:   "data",
		Short: "Manage mobile service table data",
		Args:  cobra.NoArgs,
	}
	command.AddCommand(newDataReadCommand(env), newDataTruncateCommand(env))
	return command
}

func newDataReadCommand(env *commandEnv) *cobra.Command {
	var (
		skip int
		top  int
	)

	command := &cobra.Command{
		Use:   "read [service] [table] [query]",
		Short: "Query data from a mobile service table",
		Args:  cobra.MaximumNArgs(3),
		RunE: func(command *cobra.Command, args []string) error {
			service, table, client, err := env.serviceTableAndClient(command, args)
			if err != nil {
				return err
			}
			query := mobiledomain.DataQuery{Top: top, Skip: skip}
			if len(args) > 2 {
				query.Raw = args[2]
			}

			spinner := env.spin(command, "Reading data")
			rows, err := client.ReadData(command.Context(), service, table, query)
			spinner.Stop()
			if err != nil {
				return err
			}

			return writeResult(env, command, rows, renderRows)
		},
	}

	command.Flags().IntVarP(&skip, "skip", "k", 0, "skip the first <skip> number of rows")
	command.Flags().IntVarP(&top, "top", "t", 0, "return the first <top> number of remaining rows")
	return command
}

func renderRows(w io.Writer, rows []map[string]any) error {
	if len(rows) == 0 {
		return common.WriteEmptyMessage(w, "No matching records found.")
	}

	seen := map[string]struct{}{}
	var columns []string
	for _, row := range rows {
		for key := range row {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				columns = append(columns, key)
			}
		}
	}
	sort.Strings(columns)

	table := common.NewTable(w, columns...)
	for _, row := range rows {
		values := make([]any, 0, len(columns))
		for _, column := range columns {
			value, ok := row[column]
			if !ok || value == nil {
				values = append(values, "")
				continue
			}
			values = append(values, value)
		}
		table.AppendRow(values)
	}
	table.Render()
	return nil
}

func newDataTruncateCommand(env *commandEnv) *cobra.Command {
	var quiet bool

	command := &cobra.Command{
		Use:   "truncate [service] [table]",
		Short: "Delete all data from a mobile service table",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(command *cobra.Command, args []string) error {
			service, table, client, err := env.serviceTableAndClient(command, args)
			if err != nil {
				return err
			}

			spinner := env.spin(command, "Getting table information")
			preview, err := client.TruncateTable(command.Context(), service, table, false)
			spinner.Stop()
			if err != nil {
				return err
			}
			if preview.RowCount == 0 {
				return writeResult(env, command, preview, func(w io.Writer, _ mobiledomain.TruncateResult) error {
					return common.WriteEmptyMessage(w, "There is no data in the table.")
				})
			}

			prompt := fmt.Sprintf("Do you want to delete %d rows from the table %s?", preview.RowCount, table)
			if proceed, err := env.confirm(command, quiet, prompt); err != nil || !proceed {
				return err
			}

			spinner = env.spin(command, "Deleting data")
			result, err := client.TruncateTable(command.Context(), service, table, true)
			spinner.Stop()
			if err != nil {
				return err
			}
			return writeResult(env, command, result, renderTruncate)
		},
	}

	common.BindQuietFlag(command, &quiet)
	return command
}

func renderTruncate(w io.Writer, result mobiledomain.TruncateResult) error {
	_, err := fmt.Fprintf(w, "Deleted %d rows.\n", result.RowCount)
	return err
}
