package mobile

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/crmarques/mobilectl/channel"
)

// Table operations and the permission levels that guard them.
var (
	TableOperations  = []string{"insert", "read", "update", "delete"}
	PermissionLevels = []string{"user", "public", "application", "admin"}
)

const DefaultPermission = "application"

var permissionPairPattern = regexp.MustCompile(`^([^=]+)=(.+)$`)

type TableMetrics struct {
	RecordCount int `json:"recordCount" yaml:"recordCount"`
	IndexCount  int `json:"indexCount" yaml:"indexCount"`
}

type Table struct {
	Name    string       `json:"name" yaml:"name"`
	Metrics TableMetrics `json:"metrics" yaml:"metrics"`
}

// Permissions maps a table operation to its permission level.
type Permissions map[string]string

type Column struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Indexed bool   `json:"indexed,omitempty" yaml:"indexed,omitempty"`
}

type TableScript struct {
	Table     string `json:"table,omitempty" yaml:"table,omitempty"`
	Operation string `json:"operation" yaml:"operation"`
	SizeBytes int    `json:"sizeBytes" yaml:"sizeBytes"`
}

type TruncateResult struct {
	RowCount int `json:"rowCount" yaml:"rowCount"`
}

// ParsePermissions parses a comma separated list of <operation>=<permission>
// pairs. The operation * sets every operation.
func ParsePermissions(value string) (Permissions, error) {
	result := Permissions{}
	if strings.TrimSpace(value) == "" {
		return result, nil
	}

	for _, pair := range strings.Split(value, ",") {
		match := permissionPairPattern.FindStringSubmatch(pair)
		if match == nil {
			return nil, validationError(fmt.Sprintf("syntax error in parsing the permission pair %q", pair), nil)
		}
		operation, level := match[1], match[2]

		if operation != "*" && !contains(TableOperations, operation) {
			return nil, validationError(fmt.Sprintf(
				"unsupported operation name %q; operation must be one of *, %s",
				operation, strings.Join(TableOperations, ", "),
			), nil)
		}
		if !contains(PermissionLevels, level) {
			return nil, validationError(fmt.Sprintf(
				"unsupported permission value %q; permission must be one of %s",
				level, strings.Join(PermissionLevels, ", "),
			), nil)
		}

		if operation == "*" {
			for _, each := range TableOperations {
				result[each] = level
			}
			continue
		}
		result[operation] = level
	}
	return result, nil
}

func (c *Client) tableChannel(service string, table string) (*channel.Channel, error) {
	serviceName, err := requireName("mobile service", service)
	if err != nil {
		return nil, err
	}
	tableName, err := requireName("table", table)
	if err != nil {
		return nil, err
	}
	return c.serviceChannel(serviceName).Path("tables").Path(tableName), nil
}

func (c *Client) ListTables(ctx context.Context, service string) ([]Table, error) {
	name, err := requireName("mobile service", service)
	if err != nil {
		return nil, err
	}

	response, err := c.serviceChannel(name).Path("tables").Get(ctx)
	if err != nil {
		return nil, err
	}

	var tables []Table
	if err := response.Decode(&tables); err != nil {
		return nil, err
	}
	return tables, nil
}

func (c *Client) GetTable(ctx context.Context, service string, table string) (Table, error) {
	var result Table
	err := c.decodeTable(ctx, service, table, "", &result)
	return result, err
}

// CreateTable creates a table. Operations missing from permissions default to
// application.
func (c *Client) CreateTable(ctx context.Context, service string, table string, permissions Permissions) error {
	serviceName, err := requireName("mobile service", service)
	if err != nil {
		return err
	}
	tableName, err := requireName("table", table)
	if err != nil {
		return err
	}

	body := map[string]string{"name": tableName}
	for _, operation := range TableOperations {
		body[operation] = DefaultPermission
		if level, ok := permissions[operation]; ok && level != "" {
			body[operation] = level
		}
	}

	_, err = c.serviceChannel(serviceName).Path("tables").Post(ctx, body)
	return err
}

func (c *Client) DeleteTable(ctx context.Context, service string, table string) error {
	request, err := c.tableChannel(service, table)
	if err != nil {
		return err
	}
	_, err = request.Delete(ctx)
	return err
}

// TruncateTable deletes all rows when confirm is set. Without confirm it only
// reports how many rows would be deleted.
func (c *Client) TruncateTable(ctx context.Context, service string, table string, confirm bool) (TruncateResult, error) {
	request, err := c.tableChannel(service, table)
	if err != nil {
		return TruncateResult{}, err
	}

	response, err := request.Path("truncate").Post(ctx, map[string]bool{"confirm": confirm})
	if err != nil {
		return TruncateResult{}, err
	}

	var result TruncateResult
	if err := response.Decode(&result); err != nil {
		return TruncateResult{}, err
	}
	return result, nil
}

func (c *Client) GetPermissions(ctx context.Context, service string, table string) (Permissions, error) {
	result := Permissions{}
	err := c.decodeTable(ctx, service, table, "permissions", &result)
	return result, err
}

// UpdatePermissions merges updates over the current permissions and writes
// the result.
func (c *Client) UpdatePermissions(ctx context.Context, service string, table string, updates Permissions) error {
	current, err := c.GetPermissions(ctx, service, table)
	if err != nil {
		return err
	}

	merged := Permissions{}
	for operation, level := range current {
		merged[operation] = level
	}
	for operation, level := range updates {
		merged[operation] = level
	}

	request, err := c.tableChannel(service, table)
	if err != nil {
		return err
	}
	_, err = request.Path("permissions").Put(ctx, merged)
	return err
}

func (c *Client) GetTableScripts(ctx context.Context, service string, table string) ([]TableScript, error) {
	var scripts []TableScript
	err := c.decodeTable(ctx, service, table, "scripts", &scripts)
	return scripts, err
}

func (c *Client) GetColumns(ctx context.Context, service string, table string) ([]Column, error) {
	var columns []Column
	err := c.decodeTable(ctx, service, table, "columns", &columns)
	return columns, err
}

func (c *Client) DeleteColumn(ctx context.Context, service string, table string, column string) error {
	return c.tableMember(ctx, service, table, "columns", column, "DELETE")
}

func (c *Client) CreateIndex(ctx context.Context, service string, table string, column string) error {
	return c.tableMember(ctx, service, table, "indexes", column, "PUT")
}

func (c *Client) DeleteIndex(ctx context.Context, service string, table string, column string) error {
	return c.tableMember(ctx, service, table, "indexes", column, "DELETE")
}

func (c *Client) tableMember(ctx context.Context, service string, table string, collection string, column string, method string) error {
	columnName, err := requireName("column", column)
	if err != nil {
		return err
	}
	request, err := c.tableChannel(service, table)
	if err != nil {
		return err
	}
	_, err = request.Path(collection).Path(columnName).Send(ctx, method, nil)
	return err
}

func (c *Client) decodeTable(ctx context.Context, service string, table string, segment string, target any) error {
	request, err := c.tableChannel(service, table)
	if err != nil {
		return err
	}

	response, err := request.Path(segment).Get(ctx)
	if err != nil {
		return err
	}
	return response.Decode(target)
}

func contains(values []string, candidate string) bool {
	for _, value := range values {
		if value == candidate {
			return true
		}
	}
	return false
}
