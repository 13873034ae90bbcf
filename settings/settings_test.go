package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/crmarques/mobilectl/faults"
)

// memoryResource keeps the document as JSON so every Load returns a fresh
// copy, as a remote endpoint would.
type memoryResource struct {
	mu     sync.Mutex
	data   []byte
	loads  int
	stores int
	err    error
}

func (m *memoryResource) resource(name string) *Resource {
	return &Resource{
		Name: name,
		Load: func(context.Context) (any, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.loads++
			if m.err != nil {
				return nil, m.err
			}
			var document any
			if err := json.Unmarshal(m.data, &document); err != nil {
				return nil, err
			}
			return document, nil
		},
		Store: func(_ context.Context, document any) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.stores++
			encoded, err := json.Marshal(document)
			if err != nil {
				return err
			}
			m.data = encoded
			return nil
		},
	}
}

func newFixture(t *testing.T) (*Table, *memoryResource, *memoryResource) {
	t.Helper()

	auth := &memoryResource{data: []byte(`[{"provider":"twitter","appId":"a","secret":"s"}]`)}
	service := &memoryResource{data: []byte(`{"dynamicSchemaEnabled":true,"name":"todo"}`)}
	authResource := auth.resource("auth")
	serviceResource := service.resource("service")
	defaults := map[string]any{"appId": "", "secret": ""}

	table := NewTable(
		Projection{Key: "facebookClientId", Resource: authResource, Field: "facebook", RecordField: "appId", RecordDefaults: defaults},
		Projection{Key: "twitterClientId", Resource: authResource, Field: "twitter", RecordField: "appId", RecordDefaults: defaults},
		Projection{Key: "dynamicSchemaEnabled", Resource: serviceResource, Field: "dynamicSchemaEnabled", Parse: func(raw string) (any, error) {
			switch raw {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
			return nil, faults.NewTypedError(faults.ValidationError, "the value must be either true or false", nil)
		}},
	)
	return table, auth, service
}

func TestGetMissingProviderIsNotFound(t *testing.T) {
	t.Parallel()

	table, _, _ := newFixture(t)
	value, found, err := Projector{Table: table}.Get(context.Background(), "facebookClientId")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if found || value != nil {
		t.Fatalf("Get() = %v, %t; want nil, false", value, found)
	}
}

func TestSetSynthesizesRecordAndKeepsOthers(t *testing.T) {
	t.Parallel()

	table, auth, _ := newFixture(t)
	projector := Projector{Table: table}
	if err := projector.Set(context.Background(), "facebookClientId", "x"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	want := `[{"appId":"a","provider":"twitter","secret":"s"},{"appId":"x","provider":"facebook","secret":""}]`
	if got := string(auth.data); got != want {
		t.Fatalf("stored document = %s, want %s", got, want)
	}

	value, found, err := projector.Get(context.Background(), "facebookClientId")
	if err != nil || !found || value != "x" {
		t.Fatalf("Get() = %v, %t, %v; want x, true, nil", value, found, err)
	}
}

func TestSetIsIdempotent(t *testing.T) {
	t.Parallel()

	table, auth, _ := newFixture(t)
	projector := Projector{Table: table}

	if err := projector.Set(context.Background(), "facebookClientId", "x"); err != nil {
		t.Fatalf("first Set returned error: %v", err)
	}
	once := append([]byte(nil), auth.data...)

	if err := projector.Set(context.Background(), "facebookClientId", "x"); err != nil {
		t.Fatalf("second Set returned error: %v", err)
	}
	if !bytes.Equal(once, auth.data) {
		t.Fatalf("second Set changed document:\n%s\n%s", once, auth.data)
	}
}

func TestFlatRoundTripIsNoOp(t *testing.T) {
	t.Parallel()

	table, _, service := newFixture(t)
	projector := Projector{Table: table}
	before := append([]byte(nil), service.data...)

	value, found, err := projector.Get(context.Background(), "dynamicSchemaEnabled")
	if err != nil || !found {
		t.Fatalf("Get() = %v, %t, %v", value, found, err)
	}
	if err := projector.Set(context.Background(), "dynamicSchemaEnabled", value); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	var beforeDoc, afterDoc any
	_ = json.Unmarshal(before, &beforeDoc)
	_ = json.Unmarshal(service.data, &afterDoc)
	beforeJSON, _ := json.Marshal(beforeDoc)
	afterJSON, _ := json.Marshal(afterDoc)
	if !bytes.Equal(beforeJSON, afterJSON) {
		t.Fatalf("round trip changed document: %s -> %s", beforeJSON, afterJSON)
	}
}

func TestSetParsesRawValues(t *testing.T) {
	t.Parallel()

	table, _, service := newFixture(t)
	projector := Projector{Table: table}

	if err := projector.Set(context.Background(), "dynamicSchemaEnabled", "false"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if !strings.Contains(string(service.data), `"dynamicSchemaEnabled":false`) {
		t.Fatalf("expected boolean false, got %s", service.data)
	}

	err := projector.Set(context.Background(), "dynamicSchemaEnabled", "maybe")
	if !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUnknownKeyListsSupportedKeys(t *testing.T) {
	t.Parallel()

	table, _, _ := newFixture(t)
	_, _, err := Projector{Table: table}.Get(context.Background(), "bogus")
	if !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := `unsupported key "bogus"; supported keys: dynamicSchemaEnabled, facebookClientId, twitterClientId`
	if err.Error() != want {
		t.Fatalf("error = %q, want %q", err.Error(), want)
	}
}

func TestLoadErrorsPropagate(t *testing.T) {
	t.Parallel()

	table, auth, _ := newFixture(t)
	auth.err = errors.New("remote down")

	if _, _, err := (Projector{Table: table}).Get(context.Background(), "twitterClientId"); err == nil || err.Error() != "remote down" {
		t.Fatalf("expected load error to propagate unchanged, got %v", err)
	}
	if err := (Projector{Table: table}).Set(context.Background(), "twitterClientId", "z"); err == nil {
		t.Fatal("expected set to fail when load fails")
	}
	if auth.stores != 0 {
		t.Fatalf("expected no store after failed load, got %d", auth.stores)
	}
}

func TestWriteOverrideSkipsReadModifyWrite(t *testing.T) {
	t.Parallel()

	certs := &memoryResource{data: []byte(`{"mode":"dev"}`)}
	var written any
	table := NewTable(Projection{
		Key:      "apns",
		Resource: &Resource{Name: "apns", Load: certs.resource("apns").Load},
		Field:    "mode",
		Write: func(_ context.Context, value any) error {
			written = value
			return nil
		},
	})

	if err := (Projector{Table: table}).Set(context.Background(), "apns", "prod:pw:cert.pfx"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if written != "prod:pw:cert.pfx" || certs.loads != 0 {
		t.Fatalf("expected write override only, written=%v loads=%d", written, certs.loads)
	}
}

func TestSnapshotLoadsEachResourceOnce(t *testing.T) {
	t.Parallel()

	table, auth, service := newFixture(t)
	auth.err = errors.New("forbidden")

	entries := Projector{Table: table}.Snapshot(context.Background())
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if auth.loads != 1 || service.loads != 1 {
		t.Fatalf("loads auth=%d service=%d, want 1 each", auth.loads, service.loads)
	}

	byKey := map[string]Entry{}
	for _, entry := range entries {
		byKey[entry.Key] = entry
	}
	if byKey["dynamicSchemaEnabled"].State != StateConfigured || byKey["dynamicSchemaEnabled"].Value != true {
		t.Fatalf("dynamicSchemaEnabled entry = %+v", byKey["dynamicSchemaEnabled"])
	}
	if byKey["facebookClientId"].State != StateUnavailable || byKey["twitterClientId"].State != StateUnavailable {
		t.Fatalf("expected auth keys unavailable, got %+v %+v", byKey["facebookClientId"], byKey["twitterClientId"])
	}
}

func TestNewTablePanicsOnDuplicateKey(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for duplicate key")
		}
	}()
	resource := &Resource{Name: "r"}
	NewTable(Projection{Key: "a", Resource: resource}, Projection{Key: "a", Resource: resource})
}
