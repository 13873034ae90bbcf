package mobile

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/crmarques/mobilectl/channel"
	"github.com/crmarques/mobilectl/gather"
)

type ScriptKind string

const (
	ScriptKindTable     ScriptKind = "table"
	ScriptKindScheduler ScriptKind = "scheduler"
	ScriptKindShared    ScriptKind = "shared"

	APNSFeedbackScript = "apnsFeedback"
)

var (
	tableScriptPattern     = regexp.MustCompile(`^table/([^.]+)\.(insert|read|update|delete)(?:\.js)?$`)
	schedulerScriptPattern = regexp.MustCompile(`^scheduler/([^.]+)(?:\.js)?$`)
	sharedScriptPattern    = regexp.MustCompile(`^shared/apnsFeedback(?:\.js)?$`)
)

// ScriptName identifies one server script: a table operation script, a
// scheduled job script or a shared script.
type ScriptName struct {
	Kind ScriptKind
	// Name is the table, job or shared script name.
	Name string
	// Operation is set for table scripts only.
	Operation string
}

// ParseScriptName accepts table/<table>.<operation>, scheduler/<job> and
// shared/apnsFeedback, each optionally followed by .js.
func ParseScriptName(value string) (ScriptName, error) {
	if match := tableScriptPattern.FindStringSubmatch(value); match != nil {
		return ScriptName{Kind: ScriptKindTable, Name: match[1], Operation: match[2]}, nil
	}
	if match := schedulerScriptPattern.FindStringSubmatch(value); match != nil {
		return ScriptName{Kind: ScriptKindScheduler, Name: match[1]}, nil
	}
	if sharedScriptPattern.MatchString(value) {
		return ScriptName{Kind: ScriptKindShared, Name: APNSFeedbackScript}, nil
	}
	return ScriptName{}, validationError(fmt.Sprintf(
		"invalid script name %q; use table/<table>.{insert|read|update|delete}, scheduler/<job> or shared/apnsFeedback",
		value,
	), nil)
}

func (n ScriptName) String() string {
	if n.Kind == ScriptKindTable {
		return fmt.Sprintf("%s/%s.%s", n.Kind, n.Name, n.Operation)
	}
	return fmt.Sprintf("%s/%s", n.Kind, n.Name)
}

// FilePath is the default local path of the script, relative to the working
// directory.
func (n ScriptName) FilePath() string {
	return n.String() + ".js"
}

type SharedScript struct {
	Name      string `json:"name" yaml:"name"`
	SizeBytes int    `json:"sizeBytes" yaml:"sizeBytes"`
}

// ScriptListing groups the scripts of a service. A group that could not be
// fetched is nil and its error is kept in Errors under the group name.
type ScriptListing struct {
	Table     []TableScript    `json:"table" yaml:"table"`
	Shared    []SharedScript   `json:"shared" yaml:"shared"`
	Scheduler []Job            `json:"scheduler" yaml:"scheduler"`
	Errors    map[string]error `json:"-" yaml:"-"`
}

func (c *Client) scriptChannel(service string, script ScriptName) (*channel.Channel, error) {
	serviceName, err := requireName("mobile service", service)
	if err != nil {
		return nil, err
	}

	switch script.Kind {
	case ScriptKindTable:
		table, err := requireName("table", script.Name)
		if err != nil {
			return nil, err
		}
		if !contains(TableOperations, script.Operation) {
			return nil, validationError(fmt.Sprintf("unsupported table operation %q", script.Operation), nil)
		}
		return c.serviceChannel(serviceName).Path("tables").Path(table).Path("scripts").Path(script.Operation), nil
	case ScriptKindScheduler:
		job, err := requireName("scheduled job", script.Name)
		if err != nil {
			return nil, err
		}
		return c.serviceChannel(serviceName).Path("scheduler").Path("jobs").Path(job), nil
	case ScriptKindShared:
		if script.Name != APNSFeedbackScript {
			return nil, validationError(fmt.Sprintf("unsupported shared script name %q", script.Name), nil)
		}
		return c.serviceChannel(serviceName).Path("apns").Path("scripts").Path("feedback"), nil
	}
	return nil, validationError(fmt.Sprintf("unsupported script kind %q", script.Kind), nil)
}

func (c *Client) scriptCodeChannel(service string, script ScriptName) (*channel.Channel, error) {
	request, err := c.scriptChannel(service, script)
	if err != nil {
		return nil, err
	}
	switch script.Kind {
	case ScriptKindTable:
		request.Path("code")
	case ScriptKindScheduler:
		request.Path("script")
	}
	return request, nil
}

func (c *Client) GetScript(ctx context.Context, service string, script ScriptName) (string, error) {
	request, err := c.scriptCodeChannel(service, script)
	if err != nil {
		return "", err
	}

	response, err := request.Get(ctx)
	if err != nil {
		return "", err
	}
	return response.Text(), nil
}

func (c *Client) SetScript(ctx context.Context, service string, script ScriptName, code string) error {
	request, err := c.scriptCodeChannel(service, script)
	if err != nil {
		return err
	}

	_, err = request.Header("Content-Type", channel.MediaTypeText).Put(ctx, code)
	return err
}

// DeleteScript removes a script. Deleting a scheduler script removes its job.
func (c *Client) DeleteScript(ctx context.Context, service string, script ScriptName) error {
	request, err := c.scriptChannel(service, script)
	if err != nil {
		return err
	}

	_, err = request.Delete(ctx)
	return err
}

// ListAllTableScripts returns the scripts of every table, each tagged with its
// table. Tables are queried concurrently; the first failure in table order is
// returned together with the scripts that were fetched.
func (c *Client) ListAllTableScripts(ctx context.Context, service string) ([]TableScript, error) {
	tables, err := c.ListTables(ctx, service)
	if err != nil {
		return nil, err
	}

	tasks := make(map[string]gather.Task, len(tables))
	for _, table := range tables {
		name := table.Name
		tasks[name] = func(ctx context.Context) (any, error) {
			return c.GetTableScripts(ctx, service, name)
		}
	}
	outcomes := gather.All(ctx, tasks)

	names := make([]string, 0, len(outcomes))
	for name := range outcomes {
		names = append(names, name)
	}
	sort.Strings(names)

	results := []TableScript{}
	var firstErr error
	for _, name := range names {
		outcome := outcomes[name]
		if outcome.Err != nil {
			if firstErr == nil {
				firstErr = outcome.Err
			}
			continue
		}
		scripts, _ := outcome.Value.([]TableScript)
		for _, script := range scripts {
			script.Table = name
			results = append(results, script)
		}
	}
	return results, firstErr
}

func (c *Client) ListSharedScripts(ctx context.Context, service string) ([]SharedScript, error) {
	code, err := c.GetScript(ctx, service, ScriptName{Kind: ScriptKindShared, Name: APNSFeedbackScript})
	if err != nil {
		return nil, err
	}
	return []SharedScript{{Name: APNSFeedbackScript, SizeBytes: len(code)}}, nil
}

// ListScripts fetches the table, shared and scheduler scripts concurrently.
// Every group is attempted regardless of failures in the others, and a failed
// group keeps whatever it fetched before failing.
func (c *Client) ListScripts(ctx context.Context, service string) ScriptListing {
	outcomes := gather.All(ctx, map[string]gather.Task{
		"table": func(ctx context.Context) (any, error) {
			return c.ListAllTableScripts(ctx, service)
		},
		"shared": func(ctx context.Context) (any, error) {
			return c.ListSharedScripts(ctx, service)
		},
		"scheduler": func(ctx context.Context) (any, error) {
			return c.ListJobs(ctx, service)
		},
	})

	listing := ScriptListing{Errors: map[string]error{}}
	for name, outcome := range outcomes {
		if outcome.Err != nil {
			listing.Errors[name] = outcome.Err
		}
		switch value := outcome.Value.(type) {
		case []TableScript:
			listing.Table = value
		case []SharedScript:
			listing.Shared = value
		case []Job:
			listing.Scheduler = value
		}
	}
	return listing
}
