package mobile

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/crmarques/mobilectl/config"
	"github.com/crmarques/mobilectl/faults"
	"github.com/crmarques/mobilectl/plan"
)

const applicationXML = `<?xml version="1.0" encoding="utf-8"?>
<Application xmlns="http://schemas.microsoft.com/windowsazure">
  <Name>todomobileservice</Name>
  <Label>todo</Label>
  <State>%STATE%</State>
  <InternalResources>
    <InternalResource>
      <Name>ZumoMobileService</Name>
      <Type>Microsoft.WindowsAzure.MobileServices.MobileService</Type>
      <State>Healthy</State>
    </InternalResource>
    <InternalResource>
      <Name>ZumoSqlDatabase_ref2</Name>
      <Label>todo_db</Label>
      <Type>Microsoft.WindowsAzure.SQLAzure.DataBase</Type>
      <State>Unhealthy</State>
      <FailureCode>&lt;Error&gt;&lt;Message&gt;quota exceeded&lt;/Message&gt;&lt;/Error&gt;</FailureCode>
    </InternalResource>
  </InternalResources>
  <ExternalResources>
    <ExternalResource>
      <Name>srv42</Name>
      <Type>Microsoft.WindowsAzure.SQLAzure.Server</Type>
      <State>Healthy</State>
    </ExternalResource>
  </ExternalResources>
</Application>`

func applicationBody(state string) string {
	return strings.Replace(applicationXML, "%STATE%", state, 1)
}

func TestGetApplicationFlattensResources(t *testing.T) {
	t.Parallel()

	fake := newFakeManagement()
	fake.reply(http.MethodGet, "/sub-1/applications/todomobileservice", http.StatusOK, "application/xml", applicationBody("Healthy"))
	client := newTestClient(t, fake)

	application, err := client.GetApplication(context.Background(), "todo")
	if err != nil {
		t.Fatalf("GetApplication returned error: %v", err)
	}
	if !application.Healthy() || application.Label != "todo" {
		t.Fatalf("unexpected application %+v", application)
	}
	if len(application.Resources) != 3 {
		t.Fatalf("expected 3 resources, got %d", len(application.Resources))
	}

	testCases := []struct {
		typeView string
		nameView string
		errText  string
	}{
		{typeView: "Mobile service", nameView: "ZumoMobileService"},
		{typeView: "SQL database", nameView: "todo_db", errText: "quota exceeded"},
		{typeView: "SQL server", nameView: "srv42"},
	}
	for index, testCase := range testCases {
		resource := application.Resources[index]
		if resource.TypeView != testCase.typeView || resource.NameView != testCase.nameView || resource.Error != testCase.errText {
			t.Fatalf("resource %d = %+v, want %+v", index, resource, testCase)
		}
	}

	request, _ := fake.find(http.MethodGet, "/sub-1/applications/todomobileservice")
	if got := request.Header.Get("Accept"); got != "application/xml" {
		t.Fatalf("Accept = %q, want application/xml", got)
	}
}

type decodedApplication struct {
	XMLName       xml.Name `xml:"Application"`
	Name          string   `xml:"Name"`
	Label         string   `xml:"Label"`
	Configuration string   `xml:"Configuration"`
}

func createFixture(t *testing.T, finalState string) (*fakeManagement, *Client) {
	t.Helper()

	fake := newFakeManagement()
	fake.handle(http.MethodPost, "/sub-1/applications", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("x-ms-request-id", "req-1")
		w.WriteHeader(http.StatusAccepted)
	})

	var mu sync.Mutex
	polls := 0
	fake.handle(http.MethodGet, "/sub-1/operations/req-1", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		polls++
		status := "InProgress"
		if polls > 1 {
			status = "Succeeded"
		}
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Status":"` + status + `"}`))
	})
	fake.reply(http.MethodGet, "/sub-1/applications/todomobileservice", http.StatusOK, "application/xml", applicationBody(finalState))
	return fake, newTestClient(t, fake)
}

func decodeSpecification(t *testing.T, body string) (decodedApplication, map[string]any) {
	t.Helper()

	var document decodedApplication
	if err := xml.Unmarshal([]byte(body), &document); err != nil {
		t.Fatalf("request body is not XML: %v\n%s", err, body)
	}
	raw, err := base64.StdEncoding.DecodeString(document.Configuration)
	if err != nil {
		t.Fatalf("configuration is not base64: %v", err)
	}
	var specification map[string]any
	if err := json.Unmarshal(raw, &specification); err != nil {
		t.Fatalf("configuration is not JSON: %v", err)
	}
	return document, specification
}

func TestCreateServiceProvisionsNewSQLResources(t *testing.T) {
	t.Parallel()

	fake, client := createFixture(t, "Healthy")
	options := CreateServiceOptions{Name: "todo", Location: "West US", Username: "admin", Password: "Passw0rd!x"}

	application, err := client.CreateService(context.Background(), options)
	if err != nil {
		t.Fatalf("CreateService returned error: %v", err)
	}
	if !application.Healthy() {
		t.Fatalf("expected healthy application, got %s", application.State)
	}

	request, ok := fake.find(http.MethodPost, "/sub-1/applications")
	if !ok {
		t.Fatal("expected application POST")
	}
	if got := request.Header.Get("Content-Type"); got != "application/xml" {
		t.Fatalf("Content-Type = %q, want application/xml", got)
	}

	document, specification := decodeSpecification(t, request.Body)
	if document.Name != "todomobileservice" || document.Label != "todo" {
		t.Fatalf("unexpected application document %+v", document)
	}

	internal := specification["InternalResources"].(map[string]any)
	server, ok := internal["ZumoSqlServer_ref1"].(map[string]any)
	if !ok {
		t.Fatalf("expected new SQL server in internal resources: %v", internal)
	}
	if location := server["ProvisioningParameters"].(map[string]any)["Location"]; location != "West US" {
		t.Fatalf("SQL server location = %v, want West US", location)
	}
	database, ok := internal["ZumoSqlDatabase_ref2"].(map[string]any)
	if !ok {
		t.Fatalf("expected new SQL database in internal resources: %v", internal)
	}
	if name := database["ProvisioningParameters"].(map[string]any)["Name"]; name != "todo_db" {
		t.Fatalf("database name = %v, want todo_db", name)
	}

	mobileService := internal["ZumoMobileService"].(map[string]any)
	concat := mobileService["ProvisioningConfigParameters"].(map[string]any)["Server"].(map[string]any)["StringConcat"].([]any)
	if concat[1] != config.DefaultSQLHostnameSuffix {
		t.Fatalf("server hostname suffix = %v, want %s", concat[1], config.DefaultSQLHostnameSuffix)
	}

	polls := 0
	for _, recorded := range fake.recorded() {
		if recorded.Path == "/sub-1/operations/req-1" {
			polls++
		}
	}
	if polls != 2 {
		t.Fatalf("operation polls = %d, want 2", polls)
	}
}

func TestCreateServiceReferencesExistingServer(t *testing.T) {
	t.Parallel()

	fake, client := createFixture(t, "Healthy")
	options := CreateServiceOptions{Name: "todo", Location: "West US", Username: "admin", Password: "Passw0rd!x", SQLServer: "srv42"}

	if _, err := client.CreateService(context.Background(), options); err != nil {
		t.Fatalf("CreateService returned error: %v", err)
	}

	request, _ := fake.find(http.MethodPost, "/sub-1/applications")
	_, specification := decodeSpecification(t, request.Body)

	external := specification["ExternalResources"].(map[string]any)
	server, ok := external["ZumoSqlServer_ref1"].(map[string]any)
	if !ok {
		t.Fatalf("expected existing SQL server in external resources: %v", external)
	}
	wantURI := "https://management.core.windows.net:8443/sub-1/services/sqlservers/servers/srv42"
	if server["URI"] != wantURI {
		t.Fatalf("server URI = %v, want %s", server["URI"], wantURI)
	}
	if _, ok := specification["InternalResources"].(map[string]any)["ZumoSqlDatabase_ref2"]; !ok {
		t.Fatal("expected a new database on the existing server")
	}
}

func TestCreateServiceReportsUnhealthyApplication(t *testing.T) {
	t.Parallel()

	_, client := createFixture(t, "Unhealthy")
	options := CreateServiceOptions{Name: "todo", Location: "West US", Username: "admin", Password: "Passw0rd!x"}

	application, err := client.CreateService(context.Background(), options)
	if !faults.IsCategory(err, faults.OperationFailedError) {
		t.Fatalf("expected operation failed error, got %v", err)
	}
	if application.State != "Unhealthy" || len(application.Resources) == 0 {
		t.Fatalf("expected the unhealthy application to be returned, got %+v", application)
	}
}

func TestCreateServiceOptionsValidation(t *testing.T) {
	t.Parallel()

	base := CreateServiceOptions{Name: "todo", Location: "West US", Username: "admin", Password: "Passw0rd!x"}
	testCases := []struct {
		name   string
		mutate func(*CreateServiceOptions)
	}{
		{name: "missing name", mutate: func(o *CreateServiceOptions) { o.Name = "" }},
		{name: "missing location", mutate: func(o *CreateServiceOptions) { o.Location = "" }},
		{name: "database without server", mutate: func(o *CreateServiceOptions) { o.SQLDatabase = "db" }},
		{name: "empty username", mutate: func(o *CreateServiceOptions) { o.Username = "" }},
		{name: "short password", mutate: func(o *CreateServiceOptions) { o.Password = "Pa0!" }},
		{name: "password contains username", mutate: func(o *CreateServiceOptions) { o.Password = "admin0!Passw" }},
		{name: "two categories", mutate: func(o *CreateServiceOptions) { o.Password = "password123" }},
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("base options rejected: %v", err)
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			options := base
			testCase.mutate(&options)
			if err := options.Validate(); !faults.IsCategory(err, faults.ValidationError) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDeleteServicePlanContinuesPastFailures(t *testing.T) {
	t.Parallel()

	fake := newFakeManagement()
	fake.reply(http.MethodDelete, servicePath, http.StatusInternalServerError, "application/json", `{"code":"Busy","message":"try later"}`)
	fake.reply(http.MethodDelete, "/sql/sub-1/servers/srv42", http.StatusOK, "", "")
	fake.handle(http.MethodDelete, "/sub-1/applications/todomobileservice", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("x-ms-request-id", "req-9")
		w.WriteHeader(http.StatusAccepted)
	})
	fake.replyJSON(http.MethodGet, "/sub-1/operations/req-9", `{"Status":"Succeeded"}`)
	client := newTestClient(t, fake)

	application := Application{Resources: []ApplicationResource{{Name: "srv42", Type: ResourceTypeSQLServer}}}
	steps, err := client.DeleteServicePlan("todo", application, DeleteScope{DeleteSQLServer: true})
	if err != nil {
		t.Fatalf("DeleteServicePlan returned error: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}

	result, err := plan.Executor{}.Run(context.Background(), steps)
	if !faults.IsCategory(err, faults.AggregateError) {
		t.Fatalf("expected aggregate error, got %v", err)
	}
	if result.Attempted != 3 || result.Failed != 1 {
		t.Fatalf("result = %+v, want 3 attempted and 1 failed", result)
	}

	deleteService, _ := fake.find(http.MethodDelete, servicePath)
	if deleteService.Query["deletedata"] != "true" {
		t.Fatal("deleting the SQL server must delete the service data too")
	}
	sqlRequest, ok := fake.find(http.MethodDelete, "/sql/sub-1/servers/srv42")
	if !ok {
		t.Fatal("expected SQL server deletion")
	}
	if got := sqlRequest.Header.Get("x-ms-version"); got != config.DefaultSQLAPIVersion {
		t.Fatalf("SQL x-ms-version = %q, want %q", got, config.DefaultSQLAPIVersion)
	}
	if _, ok := fake.find(http.MethodGet, "/sub-1/operations/req-9"); !ok {
		t.Fatal("expected application deletion to be tracked")
	}
}

func TestDeleteServicePlanWithoutServer(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, newFakeManagement())

	steps, err := client.DeleteServicePlan("todo", Application{}, DeleteScope{})
	if err != nil {
		t.Fatalf("DeleteServicePlan returned error: %v", err)
	}
	if len(steps) != 2 || steps[1].Progress != "Deleting mobile application" {
		t.Fatalf("unexpected steps %+v", steps)
	}

	if _, err := client.DeleteServicePlan("todo", Application{}, DeleteScope{DeleteSQLServer: true}); !faults.IsCategory(err, faults.NotFoundError) {
		t.Fatalf("expected not found error when the application has no SQL server, got %v", err)
	}
}
