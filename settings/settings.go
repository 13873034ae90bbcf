package settings

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/crmarques/mobilectl/faults"
	"github.com/crmarques/mobilectl/gather"
)

// DiscriminatorField tags each record of a list shaped resource.
const DiscriminatorField = "provider"

// Resource is a remote settings document read and written as a whole.
type Resource struct {
	Name  string
	Load  func(ctx context.Context) (any, error)
	Store func(ctx context.Context, document any) error
}

// Projection locates one setting key inside a Resource.
//
// With only Field set the document is a flat record and the value lives at
// Field. With RecordField set too the document is a list of records; the one
// whose provider equals Field holds the value at RecordField.
type Projection struct {
	Key         string
	Resource    *Resource
	Field       string
	RecordField string
	// RecordDefaults seeds a record synthesized for a missing provider.
	RecordDefaults map[string]any
	// Parse converts a raw string value before it is written.
	Parse func(raw string) (any, error)
	// Write replaces the read-modify-write path.
	Write func(ctx context.Context, value any) error
}

func (p Projection) listShaped() bool {
	return p.RecordField != ""
}

// Table is the fixed key to projection mapping. Build it once and pass it to
// the projector.
type Table struct {
	projections map[string]Projection
	keys        []string
}

// NewTable panics on empty or duplicate keys and on projections without a
// resource.
func NewTable(projections ...Projection) *Table {
	table := &Table{projections: make(map[string]Projection, len(projections))}
	for _, projection := range projections {
		if projection.Key == "" {
			panic("settings: projection key must not be empty")
		}
		if projection.Resource == nil {
			panic(fmt.Sprintf("settings: projection %q has no resource", projection.Key))
		}
		if _, exists := table.projections[projection.Key]; exists {
			panic(fmt.Sprintf("settings: duplicate projection key %q", projection.Key))
		}
		table.projections[projection.Key] = projection
		table.keys = append(table.keys, projection.Key)
	}
	sort.Strings(table.keys)
	return table
}

func (t *Table) Keys() []string {
	keys := make([]string, len(t.keys))
	copy(keys, t.keys)
	return keys
}

func (t *Table) Lookup(key string) (Projection, error) {
	projection, ok := t.projections[key]
	if !ok {
		return Projection{}, faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("unsupported key %q; supported keys: %s", key, strings.Join(t.keys, ", ")),
			nil,
		)
	}
	return projection, nil
}

// Projector gets and sets keys through a Table. Writes to one resource are
// read-modify-write without compare-and-swap; concurrent Set calls on keys of
// the same resource can lose an update.
type Projector struct {
	Table *Table
}

// Get returns found=false when the key has no value, which is distinct from a
// failed fetch.
func (p Projector) Get(ctx context.Context, key string) (any, bool, error) {
	projection, err := p.Table.Lookup(key)
	if err != nil {
		return nil, false, err
	}

	document, err := projection.Resource.Load(ctx)
	if err != nil {
		return nil, false, err
	}

	value, found := extract(projection, document)
	return value, found, nil
}

func (p Projector) Set(ctx context.Context, key string, value any) error {
	projection, err := p.Table.Lookup(key)
	if err != nil {
		return err
	}

	if raw, ok := value.(string); ok && projection.Parse != nil {
		value, err = projection.Parse(raw)
		if err != nil {
			return err
		}
	}

	if projection.Write != nil {
		return projection.Write(ctx, value)
	}
	if projection.Resource.Store == nil {
		return faults.NewTypedError(faults.ValidationError, fmt.Sprintf("key %q is read-only", key), nil)
	}

	document, err := projection.Resource.Load(ctx)
	if err != nil {
		return err
	}

	updated, err := apply(projection, document, value)
	if err != nil {
		return err
	}

	return projection.Resource.Store(ctx, updated)
}

type EntryState string

const (
	StateConfigured    EntryState = "configured"
	StateNotConfigured EntryState = "not configured"
	StateUnavailable   EntryState = "unavailable"
)

type Entry struct {
	Key   string
	State EntryState
	Value any
	Err   error
}

// Snapshot loads every distinct resource once, concurrently, and reports each
// key in key order. A resource that fails to load marks its keys unavailable
// without failing the others.
func (p Projector) Snapshot(ctx context.Context) []Entry {
	tasks := map[string]gather.Task{}
	for _, key := range p.Table.keys {
		resource := p.Table.projections[key].Resource
		if _, seen := tasks[resource.Name]; seen {
			continue
		}
		tasks[resource.Name] = func(ctx context.Context) (any, error) {
			return resource.Load(ctx)
		}
	}

	outcomes := gather.All(ctx, tasks)

	entries := make([]Entry, 0, len(p.Table.keys))
	for _, key := range p.Table.keys {
		projection := p.Table.projections[key]
		outcome := outcomes[projection.Resource.Name]

		entry := Entry{Key: key}
		switch value, found := extract(projection, outcome.Value); {
		case outcome.Err != nil:
			entry.State = StateUnavailable
			entry.Err = outcome.Err
		case !found || isEmpty(value):
			entry.State = StateNotConfigured
		default:
			entry.State = StateConfigured
			entry.Value = value
		}
		entries = append(entries, entry)
	}
	return entries
}

func extract(projection Projection, document any) (any, bool) {
	if projection.listShaped() {
		records, ok := document.([]any)
		if !ok {
			return nil, false
		}
		if record := findRecord(records, projection.Field); record != nil {
			value, exists := record[projection.RecordField]
			return value, exists
		}
		return nil, false
	}

	record, ok := document.(map[string]any)
	if !ok {
		return nil, false
	}
	value, exists := record[projection.Field]
	return value, exists && value != nil
}

func apply(projection Projection, document any, value any) (any, error) {
	if projection.listShaped() {
		if document == nil {
			document = []any{}
		}
		records, ok := document.([]any)
		if !ok {
			return nil, faults.NewTypedError(
				faults.ParseError,
				fmt.Sprintf("settings resource %q is not a list", projection.Resource.Name),
				nil,
			)
		}

		if record := findRecord(records, projection.Field); record != nil {
			record[projection.RecordField] = value
			return records, nil
		}

		record := map[string]any{DiscriminatorField: projection.Field}
		for field, defaultValue := range projection.RecordDefaults {
			record[field] = defaultValue
		}
		record[projection.RecordField] = value
		return append(records, record), nil
	}

	if document == nil {
		document = map[string]any{}
	}
	record, ok := document.(map[string]any)
	if !ok {
		return nil, faults.NewTypedError(
			faults.ParseError,
			fmt.Sprintf("settings resource %q is not a record", projection.Resource.Name),
			nil,
		)
	}
	record[projection.Field] = value
	return record, nil
}

func findRecord(records []any, provider string) map[string]any {
	for _, item := range records {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if fmt.Sprint(record[DiscriminatorField]) == provider {
			return record
		}
	}
	return nil
}

func isEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	default:
		return false
	}
}
