package mobile

import (
	"context"
	"strings"

	"github.com/crmarques/mobilectl/plan"
)

// TableUpdate lists the changes of one table update. Empty fields are
// skipped.
type TableUpdate struct {
	Permissions   Permissions
	DeleteIndexes []string
	AddIndexes    []string
	DeleteColumns []string
}

func (u TableUpdate) Empty() bool {
	return len(u.Permissions) == 0 && len(u.DeleteIndexes) == 0 && len(u.AddIndexes) == 0 && len(u.DeleteColumns) == 0
}

// UpdateTablePlan orders the steps of a table update: permissions, index
// removals, index additions, column removals.
func (c *Client) UpdateTablePlan(service string, table string, update TableUpdate) ([]plan.Step, error) {
	if update.Empty() {
		return nil, validationError("no updates specified; specify at least one", nil)
	}
	if _, err := c.tableChannel(service, table); err != nil {
		return nil, err
	}

	builder := &plan.Builder{}
	builder.AddIf(len(update.Permissions) > 0, plan.Step{
		Progress: "Updating permissions",
		Success:  "Updated permissions",
		Failure:  "Failed to update permissions",
		Work: func(ctx context.Context) error {
			return c.UpdatePermissions(ctx, service, table, update.Permissions)
		},
	})

	for _, column := range update.DeleteIndexes {
		column := column
		builder.Add(plan.Step{
			Progress: "Deleting index from column " + column,
			Success:  "Deleted index from column " + column,
			Failure:  "Failed to delete index from column " + column,
			Work: func(ctx context.Context) error {
				return c.DeleteIndex(ctx, service, table, column)
			},
		})
	}
	for _, column := range update.AddIndexes {
		column := column
		builder.Add(plan.Step{
			Progress: "Adding index to column " + column,
			Success:  "Added index to column " + column,
			Failure:  "Failed to add index to column " + column,
			Work: func(ctx context.Context) error {
				return c.CreateIndex(ctx, service, table, column)
			},
		})
	}
	for _, column := range update.DeleteColumns {
		column := column
		builder.Add(plan.Step{
			Progress: "Deleting column " + column,
			Success:  "Deleted column " + column,
			Failure:  "Failed to delete column " + column,
			Work: func(ctx context.Context) error {
				return c.DeleteColumn(ctx, service, table, column)
			},
		})
	}
	return builder.Steps(), nil
}

// DeleteScope selects what a service deletion removes besides the service.
type DeleteScope struct {
	// DeleteData deletes the data of the service in its database.
	DeleteData bool
	// DeleteSQLServer deletes the SQL server of the service, which implies
	// DeleteData.
	DeleteSQLServer bool
}

// Description completes the sentence "delete the mobile service ...".
func (s DeleteScope) Description() string {
	switch {
	case s.DeleteSQLServer:
		return "with all data, SQL database, and the SQL server"
	case s.DeleteData:
		return "with all data but leave SQL database and SQL server intact"
	default:
		return "but leave all data, SQL database, and SQL server intact"
	}
}

// DeleteServicePlan orders the deletion of a service: the service itself,
// its SQL server when requested, then its application. application is the
// description read before deletion; it names the SQL server.
func (c *Client) DeleteServicePlan(service string, application Application, scope DeleteScope) ([]plan.Step, error) {
	name, err := requireName("mobile service", service)
	if err != nil {
		return nil, err
	}
	deleteData := scope.DeleteData || scope.DeleteSQLServer

	var server string
	if scope.DeleteSQLServer {
		resource, ok := application.Resource(ResourceTypeSQLServer)
		if !ok || strings.TrimSpace(resource.Name) == "" {
			return nil, notFoundError("the application of mobile service "+name+" has no SQL server resource", nil)
		}
		server = resource.Name
	}

	builder := &plan.Builder{}
	builder.Add(plan.Step{
		Progress: "Deleting mobile service",
		Success:  "Deleted mobile service",
		Failure:  "Failed to delete mobile service",
		Work: func(ctx context.Context) error {
			return c.DeleteService(ctx, name, deleteData)
		},
	})
	builder.AddIf(scope.DeleteSQLServer, plan.Step{
		Progress: "Deleting SQL server",
		Success:  "Deleted SQL server",
		Failure:  "Failed to delete SQL server",
		Work: func(ctx context.Context) error {
			return c.DeleteSQLServer(ctx, server)
		},
	})
	builder.Add(plan.Step{
		Progress: "Deleting mobile application",
		Success:  "Deleted mobile application",
		Failure:  "Failed to delete mobile application",
		Work: func(ctx context.Context) error {
			return c.DeleteApplication(ctx, name)
		},
	})
	return builder.Steps(), nil
}
