package mobile

import (
	"context"
	"net/http"
	"reflect"
	"testing"

	"github.com/crmarques/mobilectl/faults"
)

func TestParseScriptName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		value    string
		want     ScriptName
		wantPath string
		wantErr  bool
	}{
		{
			value:    "table/items.insert",
			want:     ScriptName{Kind: ScriptKindTable, Name: "items", Operation: "insert"},
			wantPath: "table/items.insert.js",
		},
		{
			value:    "table/items.read.js",
			want:     ScriptName{Kind: ScriptKindTable, Name: "items", Operation: "read"},
			wantPath: "table/items.read.js",
		},
		{
			value:    "scheduler/cleanup",
			want:     ScriptName{Kind: ScriptKindScheduler, Name: "cleanup"},
			wantPath: "scheduler/cleanup.js",
		},
		{
			value:    "shared/apnsFeedback.js",
			want:     ScriptName{Kind: ScriptKindShared, Name: APNSFeedbackScript},
			wantPath: "shared/apnsFeedback.js",
		},
		{value: "table/items.upsert", wantErr: true},
		{value: "shared/other", wantErr: true},
		{value: "items.insert", wantErr: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.value, func(t *testing.T) {
			t.Parallel()

			got, err := ParseScriptName(testCase.value)
			if testCase.wantErr {
				if !faults.IsCategory(err, faults.ValidationError) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseScriptName returned error: %v", err)
			}
			if got != testCase.want {
				t.Fatalf("ParseScriptName(%q) = %+v, want %+v", testCase.value, got, testCase.want)
			}
			if got.FilePath() != testCase.wantPath {
				t.Fatalf("FilePath() = %q, want %q", got.FilePath(), testCase.wantPath)
			}
		})
	}
}

func TestGetScriptEndpoints(t *testing.T) {
	t.Parallel()

	fake := newFakeManagement()
	fake.reply(http.MethodGet, servicePath+"/tables/items/scripts/read/code", http.StatusOK, "text/plain", "function read() {}")
	fake.reply(http.MethodGet, servicePath+"/scheduler/jobs/cleanup/script", http.StatusOK, "text/plain", "function cleanup() {}")
	client := newTestClient(t, fake)

	code, err := client.GetScript(context.Background(), "todo", ScriptName{Kind: ScriptKindTable, Name: "items", Operation: "read"})
	if err != nil || code != "function read() {}" {
		t.Fatalf("GetScript(table) = %q, %v", code, err)
	}
	code, err = client.GetScript(context.Background(), "todo", ScriptName{Kind: ScriptKindScheduler, Name: "cleanup"})
	if err != nil || code != "function cleanup() {}" {
		t.Fatalf("GetScript(scheduler) = %q, %v", code, err)
	}
}

func TestListScriptsKeepsPartialResults(t *testing.T) {
	t.Parallel()

	fake := newFakeManagement()
	fake.replyJSON(http.MethodGet, servicePath+"/tables", `[{"name":"items"},{"name":"orders"},{"name":"users"}]`)
	fake.replyJSON(http.MethodGet, servicePath+"/tables/items/scripts", `[{"operation":"insert","sizeBytes":120}]`)
	fake.reply(http.MethodGet, servicePath+"/tables/orders/scripts", http.StatusInternalServerError, "application/json", `{"message":"boom"}`)
	fake.replyJSON(http.MethodGet, servicePath+"/tables/users/scripts", `[{"operation":"read","sizeBytes":40}]`)
	fake.reply(http.MethodGet, servicePath+"/apns/scripts/feedback", http.StatusOK, "text/plain", "abcd")
	fake.replyJSON(http.MethodGet, servicePath+"/scheduler/jobs", `[{"name":"cleanup","status":"enabled","intervalUnit":"hour","intervalPeriod":1}]`)
	client := newTestClient(t, fake)

	listing := client.ListScripts(context.Background(), "todo")

	wantTable := []TableScript{
		{Table: "items", Operation: "insert", SizeBytes: 120},
		{Table: "users", Operation: "read", SizeBytes: 40},
	}
	if !reflect.DeepEqual(listing.Table, wantTable) {
		t.Fatalf("table scripts = %+v, want %+v", listing.Table, wantTable)
	}
	if faults.StatusCode(listing.Errors["table"]) != http.StatusInternalServerError {
		t.Fatalf("expected table error with status 500, got %v", listing.Errors["table"])
	}
	if len(listing.Shared) != 1 || listing.Shared[0].SizeBytes != 4 {
		t.Fatalf("shared scripts = %+v", listing.Shared)
	}
	if len(listing.Scheduler) != 1 || listing.Scheduler[0].IntervalView() != "1 [hour]" {
		t.Fatalf("scheduler scripts = %+v", listing.Scheduler)
	}
}
