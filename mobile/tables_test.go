package mobile

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"testing"

	"github.com/crmarques/mobilectl/faults"
	"github.com/crmarques/mobilectl/plan"
)

func TestParsePermissions(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		value   string
		want    Permissions
		wantErr bool
	}{
		{name: "empty", value: "", want: Permissions{}},
		{name: "single", value: "insert=user", want: Permissions{"insert": "user"}},
		{
			name:  "wildcard then override",
			value: "*=admin,read=public",
			want:  Permissions{"insert": "admin", "read": "public", "update": "admin", "delete": "admin"},
		},
		{name: "missing value", value: "insert=", wantErr: true},
		{name: "unknown operation", value: "upsert=user", wantErr: true},
		{name: "unknown level", value: "read=everyone", wantErr: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParsePermissions(testCase.value)
			if testCase.wantErr {
				if !faults.IsCategory(err, faults.ValidationError) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePermissions returned error: %v", err)
			}
			if !reflect.DeepEqual(got, testCase.want) {
				t.Fatalf("ParsePermissions(%q) = %v, want %v", testCase.value, got, testCase.want)
			}
		})
	}
}

func TestCreateTableDefaultsPermissions(t *testing.T) {
	t.Parallel()

	fake := newFakeManagement()
	fake.replyJSON(http.MethodPost, servicePath+"/tables", `{}`)
	client := newTestClient(t, fake)

	if err := client.CreateTable(context.Background(), "todo", "items", Permissions{"delete": "admin"}); err != nil {
		t.Fatalf("CreateTable returned error: %v", err)
	}

	request, _ := fake.find(http.MethodPost, servicePath+"/tables")
	var body map[string]string
	if err := json.Unmarshal([]byte(request.Body), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	want := map[string]string{"name": "items", "insert": "application", "read": "application", "update": "application", "delete": "admin"}
	if !reflect.DeepEqual(body, want) {
		t.Fatalf("body = %v, want %v", body, want)
	}
}

func TestUpdatePermissionsMergesOverCurrent(t *testing.T) {
	t.Parallel()

	fake := newFakeManagement()
	fake.replyJSON(http.MethodGet, servicePath+"/tables/items/permissions", `{"insert":"user","read":"public","update":"user","delete":"admin"}`)
	fake.replyJSON(http.MethodPut, servicePath+"/tables/items/permissions", `{}`)
	client := newTestClient(t, fake)

	if err := client.UpdatePermissions(context.Background(), "todo", "items", Permissions{"read": "application"}); err != nil {
		t.Fatalf("UpdatePermissions returned error: %v", err)
	}

	request, _ := fake.find(http.MethodPut, servicePath+"/tables/items/permissions")
	if want := `{"delete":"admin","insert":"user","read":"application","update":"user"}`; request.Body != want {
		t.Fatalf("body = %s, want %s", request.Body, want)
	}
}

type labelReporter struct {
	finished []string
}

func (r *labelReporter) Started(plan.Step) {}

func (r *labelReporter) Finished(step plan.Step, err error) {
	if err != nil {
		r.finished = append(r.finished, step.Failure)
		return
	}
	r.finished = append(r.finished, step.Success)
}

func TestUpdateTablePlanOrder(t *testing.T) {
	t.Parallel()

	fake := newFakeManagement()
	fake.replyJSON(http.MethodGet, servicePath+"/tables/items/permissions", `{}`)
	fake.replyJSON(http.MethodPut, servicePath+"/tables/items/permissions", `{}`)
	fake.replyJSON(http.MethodDelete, servicePath+"/tables/items/indexes/old", `{}`)
	fake.replyJSON(http.MethodPut, servicePath+"/tables/items/indexes/new", `{}`)
	client := newTestClient(t, fake)

	steps, err := client.UpdateTablePlan("todo", "items", TableUpdate{
		Permissions:   Permissions{"read": "user"},
		DeleteIndexes: []string{"old"},
		AddIndexes:    []string{"new"},
		DeleteColumns: []string{"gone"},
	})
	if err != nil {
		t.Fatalf("UpdateTablePlan returned error: %v", err)
	}

	reporter := &labelReporter{}
	result, err := plan.Executor{Reporter: reporter}.Run(context.Background(), steps)
	if !faults.IsCategory(err, faults.AggregateError) || result.Failed != 1 {
		t.Fatalf("Run() = %+v, %v; want one failure", result, err)
	}

	want := []string{
		"Updated permissions",
		"Deleted index from column old",
		"Added index to column new",
		"Failed to delete column gone",
	}
	if !reflect.DeepEqual(reporter.finished, want) {
		t.Fatalf("finished = %v, want %v", reporter.finished, want)
	}
}

func TestUpdateTablePlanRequiresChanges(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, newFakeManagement())
	if _, err := client.UpdateTablePlan("todo", "items", TableUpdate{}); !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
