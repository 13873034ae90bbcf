package mobile

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/crmarques/mobilectl/channel"
	"github.com/crmarques/mobilectl/faults"
)

const (
	applicationNamespace  = "http://schemas.microsoft.com/windowsazure"
	applicationNameSuffix = "mobileservice"
	applicationSchema     = "2012-05.1.0"
	mobileServiceVersion  = "2012-05-21.1.0"
	sqlResourceVersion    = "1.0"
	sqlReferenceBaseURL   = "https://management.core.windows.net:8443/"
	healthyState          = "Healthy"

	ResourceTypeMobileService = "Microsoft.WindowsAzure.MobileServices.MobileService"
	ResourceTypeSQLDatabase   = "Microsoft.WindowsAzure.SQLAzure.DataBase"
	ResourceTypeSQLServer     = "Microsoft.WindowsAzure.SQLAzure.Server"
)

var resourceTypeViews = map[string]string{
	ResourceTypeMobileService: "Mobile service",
	ResourceTypeSQLDatabase:   "SQL database",
	ResourceTypeSQLServer:     "SQL server",
}

var failureMessagePattern = regexp.MustCompile(`<Message>([^<]*)</Message>`)

// ApplicationName returns the application-manager name of a mobile service.
func ApplicationName(service string) string {
	return service + applicationNameSuffix
}

type applicationDocument struct {
	XMLName           xml.Name              `xml:"Application"`
	Name              string                `xml:"Name"`
	Label             string                `xml:"Label"`
	State             string                `xml:"State"`
	InternalResources []ApplicationResource `xml:"InternalResources>InternalResource"`
	ExternalResources []ApplicationResource `xml:"ExternalResources>ExternalResource"`
}

type ApplicationResource struct {
	Name        string `xml:"Name" json:"name" yaml:"name"`
	Label       string `xml:"Label" json:"label,omitempty" yaml:"label,omitempty"`
	Type        string `xml:"Type" json:"type" yaml:"type"`
	State       string `xml:"State" json:"state" yaml:"state"`
	FailureCode string `xml:"FailureCode" json:"failureCode,omitempty" yaml:"failureCode,omitempty"`

	TypeView string `xml:"-" json:"typeView" yaml:"typeView"`
	NameView string `xml:"-" json:"nameView,omitempty" yaml:"nameView,omitempty"`
	Error    string `xml:"-" json:"error,omitempty" yaml:"error,omitempty"`
}

// Application is the flattened application-manager description of a mobile
// service: internal resources first, then external ones.
type Application struct {
	Name      string                `json:"name" yaml:"name"`
	Label     string                `json:"label,omitempty" yaml:"label,omitempty"`
	State     string                `json:"state" yaml:"state"`
	Resources []ApplicationResource `json:"resources" yaml:"resources"`
}

func (a Application) Healthy() bool {
	return a.State == healthyState
}

// Resource returns the first resource of the given type.
func (a Application) Resource(resourceType string) (ApplicationResource, bool) {
	for _, resource := range a.Resources {
		if resource.Type == resourceType {
			return resource, true
		}
	}
	return ApplicationResource{}, false
}

func flattenApplication(document applicationDocument) Application {
	result := Application{
		Name:      document.Name,
		Label:     document.Label,
		State:     document.State,
		Resources: make([]ApplicationResource, 0, len(document.InternalResources)+len(document.ExternalResources)),
	}

	for _, group := range [][]ApplicationResource{document.InternalResources, document.ExternalResources} {
		for _, resource := range group {
			resource.TypeView = resourceTypeViews[resource.Type]
			if resource.TypeView == "" {
				resource.TypeView = resource.Type
			}
			resource.NameView = resource.Label
			if resource.NameView == "" {
				resource.NameView = resource.Name
			}
			if failure := strings.TrimSpace(resource.FailureCode); failure != "" {
				resource.Error = failure
				if match := failureMessagePattern.FindStringSubmatch(failure); match != nil {
					resource.Error = match[1]
				}
			}
			result.Resources = append(result.Resources, resource)
		}
	}
	return result
}

func (c *Client) GetApplication(ctx context.Context, service string) (Application, error) {
	name, err := requireName("mobile service", service)
	if err != nil {
		return Application{}, err
	}

	response, err := c.appManagerChannel().Path(ApplicationName(name)).Get(ctx)
	if err != nil {
		return Application{}, err
	}

	var document applicationDocument
	if err := response.DecodeXML(&document); err != nil {
		return Application{}, err
	}
	return flattenApplication(document), nil
}

// DeleteApplication removes the application-manager application of a service
// and waits for the asynchronous deletion to finish.
func (c *Client) DeleteApplication(ctx context.Context, service string) error {
	name, err := requireName("mobile service", service)
	if err != nil {
		return err
	}

	response, err := c.appManagerChannel().Path(ApplicationName(name)).Delete(ctx)
	if err != nil {
		return err
	}
	return c.waitForRequest(ctx, response)
}

func (c *Client) DeleteSQLServer(ctx context.Context, server string) error {
	name, err := requireName("SQL server", server)
	if err != nil {
		return err
	}
	if c.sqlSession == nil {
		return internalError("SQL management session is not configured", nil)
	}

	_, err = c.sqlSession.NewChannel().
		Header("Accept", channel.MediaTypeXML).
		Path("servers").
		Path(name).
		Delete(ctx)
	return err
}

// CreateServiceOptions describes a new mobile service. SQLServer and
// SQLDatabase name existing resources; when empty new ones are provisioned.
type CreateServiceOptions struct {
	Name        string
	Location    string
	Username    string
	Password    string
	SQLServer   string
	SQLDatabase string
	SQLLocation string
}

func (o CreateServiceOptions) Validate() error {
	if _, err := requireName("mobile service", o.Name); err != nil {
		return err
	}
	if strings.TrimSpace(o.Location) == "" {
		return validationError("mobile service location is required", nil)
	}
	if o.SQLDatabase != "" && o.SQLServer == "" {
		return validationError("an existing SQL database requires the name of its existing SQL server", nil)
	}
	if err := ValidateAdministratorLogin(o.Username); err != nil {
		return err
	}
	return ValidateAdministratorPassword(o.Username, o.Password)
}

func ValidateAdministratorLogin(username string) error {
	if strings.TrimSpace(username) == "" {
		return validationError("SQL administrator user name cannot be empty", nil)
	}
	return nil
}

// ValidateAdministratorPassword requires more than eight characters, no
// occurrence of the user name and characters from at least three of the
// categories upper case, lower case, digit and symbol.
func ValidateAdministratorPassword(username string, password string) error {
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	categories := 0
	for _, present := range []bool{upper, lower, digit, symbol} {
		if present {
			categories++
		}
	}

	if len(password) <= 8 || (username != "" && strings.Contains(password, username)) || categories < 3 {
		return validationError(
			"the SQL administrator password must be more than 8 characters long, must not contain the user name "+
				"and must contain characters from at least 3 of: upper case letters, lower case letters, digits, special characters",
			nil,
		)
	}
	return nil
}

// CreateService provisions the application-manager application of a new
// mobile service, waits for the operation and returns the resulting
// application. A non-healthy application is returned together with an
// OperationFailedError.
func (c *Client) CreateService(ctx context.Context, options CreateServiceOptions) (Application, error) {
	if options.SQLLocation == "" {
		options.SQLLocation = options.Location
	}
	if err := options.Validate(); err != nil {
		return Application{}, err
	}

	payload, err := c.applicationPayload(options)
	if err != nil {
		return Application{}, err
	}

	response, err := c.appManagerChannel().
		Header("Content-Type", channel.MediaTypeXML).
		Post(ctx, payload)
	if err != nil {
		return Application{}, err
	}
	if err := c.waitForRequest(ctx, response); err != nil {
		return Application{}, err
	}

	application, err := c.GetApplication(ctx, options.Name)
	if err != nil {
		return Application{}, err
	}
	if !application.Healthy() {
		return application, faults.NewTypedError(
			faults.OperationFailedError,
			fmt.Sprintf("creation of the mobile service failed; application state is %s", application.State),
			nil,
		)
	}
	return application, nil
}

type applicationRequest struct {
	XMLName       xml.Name `xml:"Application"`
	Namespace     string   `xml:"xmlns,attr"`
	Name          string   `xml:"Name"`
	Label         string   `xml:"Label"`
	Description   string   `xml:"Description"`
	Configuration string   `xml:"Configuration"`
}

func (c *Client) applicationPayload(options CreateServiceOptions) ([]byte, error) {
	specification, err := json.Marshal(c.applicationSpecification(options))
	if err != nil {
		return nil, internalError("failed to encode application specification", err)
	}

	body, err := xml.Marshal(applicationRequest{
		Namespace:     applicationNamespace,
		Name:          ApplicationName(options.Name),
		Label:         options.Name,
		Description:   options.Name,
		Configuration: base64.StdEncoding.EncodeToString(specification),
	})
	if err != nil {
		return nil, internalError("failed to encode application request", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func (c *Client) applicationSpecification(options CreateServiceOptions) map[string]any {
	subscription := c.session.SubscriptionID()
	serverRef := "ZumoSqlServer_" + c.newReferenceID()
	databaseRef := "ZumoSqlDatabase_" + c.newReferenceID()

	internal := map[string]any{
		"ZumoMobileService": map[string]any{
			"ProvisioningParameters": map[string]any{
				"Name":     options.Name,
				"Location": options.Location,
			},
			"ProvisioningConfigParameters": map[string]any{
				"Server": map[string]any{
					"StringConcat": []any{
						map[string]any{"ResourceReference": serverRef + ".Name"},
						c.sqlHostnameSuffix,
					},
				},
				"Database":                   map[string]any{"ResourceReference": databaseRef + ".Name"},
				"AdministratorLogin":         options.Username,
				"AdministratorLoginPassword": options.Password,
			},
			"Version": mobileServiceVersion,
			"Name":    "ZumoMobileService",
			"Type":    ResourceTypeMobileService,
		},
	}
	external := map[string]any{}

	serverURI := sqlReferenceBaseURL + subscription + "/services/sqlservers/servers/" + options.SQLServer
	if options.SQLServer != "" {
		external[serverRef] = map[string]any{
			"Name": serverRef,
			"Type": ResourceTypeSQLServer,
			"URI":  serverURI,
		}
	} else {
		internal[serverRef] = map[string]any{
			"ProvisioningParameters": map[string]any{
				"AdministratorLogin":         options.Username,
				"AdministratorLoginPassword": options.Password,
				"Location":                   options.SQLLocation,
			},
			"ProvisioningConfigParameters": map[string]any{
				"FirewallRules": []any{
					map[string]any{
						"Name":           "AllowAllWindowsAzureIps",
						"StartIPAddress": "0.0.0.0",
						"EndIPAddress":   "0.0.0.0",
					},
				},
			},
			"Version": sqlResourceVersion,
			"Name":    serverRef,
			"Type":    ResourceTypeSQLServer,
		}
	}

	if options.SQLDatabase != "" {
		external[databaseRef] = map[string]any{
			"Name": databaseRef,
			"Type": ResourceTypeSQLDatabase,
			"URI":  serverURI + "/databases/" + options.SQLDatabase,
		}
	} else {
		internal[databaseRef] = map[string]any{
			"ProvisioningParameters": map[string]any{
				"Name":          options.Name + "_db",
				"Edition":       "WEB",
				"MaxSizeInGB":   "1",
				"DBServer":      map[string]any{"ResourceReference": serverRef + ".Name"},
				"CollationName": "SQL_Latin1_General_CP1_CI_AS",
			},
			"Version": sqlResourceVersion,
			"Name":    databaseRef,
			"Type":    ResourceTypeSQLDatabase,
		}
	}

	return map[string]any{
		"SchemaVersion":     applicationSchema,
		"Location":          "West US",
		"ExternalResources": external,
		"InternalResources": internal,
	}
}
