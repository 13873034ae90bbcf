package mobile

import (
	"context"
	"fmt"

	"github.com/crmarques/mobilectl/gather"
	"github.com/crmarques/mobilectl/settings"
)

// ServiceView combines what is known about a service. Parts that could not
// be fetched are nil and their errors are kept in Errors.
type ServiceView struct {
	Service     *Service         `json:"service,omitempty" yaml:"service,omitempty"`
	Application *Application     `json:"application,omitempty" yaml:"application,omitempty"`
	Webspace    *Webspace        `json:"webspace,omitempty" yaml:"webspace,omitempty"`
	Errors      map[string]error `json:"-" yaml:"-"`
}

// ShowService fetches the service and its application concurrently, then the
// webspace of the service. It fails only when neither the service nor the
// application could be read.
func (c *Client) ShowService(ctx context.Context, service string) (ServiceView, error) {
	name, err := requireName("mobile service", service)
	if err != nil {
		return ServiceView{}, err
	}

	outcomes := gather.All(ctx, map[string]gather.Task{
		"service": func(ctx context.Context) (any, error) {
			details, err := c.GetService(ctx, name)
			if err != nil {
				return nil, err
			}
			if details.Webspace == "" {
				return webspaceOutcome{service: details}, nil
			}
			webspace, webspaceErr := c.GetWebspace(ctx, details.Webspace)
			return webspaceOutcome{service: details, webspace: webspace, err: webspaceErr}, nil
		},
		"application": func(ctx context.Context) (any, error) {
			return c.GetApplication(ctx, name)
		},
	})

	view := ServiceView{Errors: map[string]error{}}
	if outcome := outcomes["service"]; outcome.Err != nil {
		view.Errors["service"] = outcome.Err
	} else if result, ok := outcome.Value.(webspaceOutcome); ok {
		details := result.service
		view.Service = &details
		switch {
		case result.err != nil:
			view.Errors["webspace"] = result.err
		case details.Webspace != "":
			webspace := result.webspace
			view.Webspace = &webspace
		}
	}
	if outcome := outcomes["application"]; outcome.Err != nil {
		view.Errors["application"] = outcome.Err
	} else if application, ok := outcome.Value.(Application); ok {
		view.Application = &application
	}

	if view.Service == nil && view.Application == nil {
		return view, notFoundError(
			fmt.Sprintf("cannot obtain information about the service %s; use \"mobilectl mobile list\" to check if it exists", name),
			view.Errors["service"],
		)
	}
	return view, nil
}

type webspaceOutcome struct {
	service  Service
	webspace Webspace
	err      error
}

type TableView struct {
	Table       *Table           `json:"table,omitempty" yaml:"table,omitempty"`
	Permissions Permissions      `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Columns     []Column         `json:"columns,omitempty" yaml:"columns,omitempty"`
	Scripts     []TableScript    `json:"scripts,omitempty" yaml:"scripts,omitempty"`
	Errors      map[string]error `json:"-" yaml:"-"`
}

// Script returns the script of a table operation.
func (v TableView) Script(operation string) (TableScript, bool) {
	for _, script := range v.Scripts {
		if script.Operation == operation {
			return script, true
		}
	}
	return TableScript{}, false
}

// ShowTable fetches a table with its permissions, columns and scripts
// concurrently. It fails when the table itself could not be read.
func (c *Client) ShowTable(ctx context.Context, service string, table string) (TableView, error) {
	if _, err := c.tableChannel(service, table); err != nil {
		return TableView{}, err
	}

	outcomes := gather.All(ctx, map[string]gather.Task{
		"table": func(ctx context.Context) (any, error) {
			return c.GetTable(ctx, service, table)
		},
		"permissions": func(ctx context.Context) (any, error) {
			return c.GetPermissions(ctx, service, table)
		},
		"columns": func(ctx context.Context) (any, error) {
			return c.GetColumns(ctx, service, table)
		},
		"scripts": func(ctx context.Context) (any, error) {
			return c.GetTableScripts(ctx, service, table)
		},
	})

	view := TableView{Errors: map[string]error{}}
	for name, outcome := range outcomes {
		if outcome.Err != nil {
			view.Errors[name] = outcome.Err
			continue
		}
		switch value := outcome.Value.(type) {
		case Table:
			view.Table = &value
		case Permissions:
			view.Permissions = value
		case []Column:
			view.Columns = value
		case []TableScript:
			view.Scripts = value
		}
	}

	if view.Table == nil {
		return view, notFoundError(
			fmt.Sprintf("table %s or mobile service %s does not exist", table, service),
			view.Errors["table"],
		)
	}
	return view, nil
}

// ConfigSnapshot reads the four settings resources of a service concurrently
// and reports every configuration key.
func (c *Client) ConfigSnapshot(ctx context.Context, service string) ([]settings.Entry, error) {
	if _, err := requireName("mobile service", service); err != nil {
		return nil, err
	}
	return settings.Projector{Table: SettingsTable(c, service)}.Snapshot(ctx), nil
}
