package mobile

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/crmarques/mobilectl/channel"
)

type Region struct {
	Region string `json:"region" yaml:"region"`
}

type TableRef struct {
	Name string `json:"name" yaml:"name"`
}

type Service struct {
	Name           string     `json:"name" yaml:"name"`
	State          string     `json:"state,omitempty" yaml:"state,omitempty"`
	ApplicationURL string     `json:"applicationUrl,omitempty" yaml:"applicationUrl,omitempty"`
	ApplicationKey string     `json:"applicationKey,omitempty" yaml:"applicationKey,omitempty"`
	MasterKey      string     `json:"masterKey,omitempty" yaml:"masterKey,omitempty"`
	Webspace       string     `json:"webspace,omitempty" yaml:"webspace,omitempty"`
	Region         string     `json:"region,omitempty" yaml:"region,omitempty"`
	Tables         []TableRef `json:"tables,omitempty" yaml:"tables,omitempty"`
}

type KeyType string

const (
	KeyApplication KeyType = "application"
	KeyMaster      KeyType = "master"
)

func ParseKeyType(value string) (KeyType, error) {
	switch KeyType(strings.TrimSpace(value)) {
	case KeyApplication:
		return KeyApplication, nil
	case KeyMaster:
		return KeyMaster, nil
	}
	return "", validationError(`the key type must be "application" or "master"`, nil)
}

type RegeneratedKeys struct {
	ApplicationKey string `json:"applicationKey,omitempty" yaml:"applicationKey,omitempty"`
	MasterKey      string `json:"masterKey,omitempty" yaml:"masterKey,omitempty"`
}

// Key returns the value of the regenerated key of the given type.
func (k RegeneratedKeys) Key(keyType KeyType) string {
	if keyType == KeyMaster {
		return k.MasterKey
	}
	return k.ApplicationKey
}

// LogQuery selects log entries. Raw, when set, is a k=v&k=v query string sent
// as is and the other fields are ignored.
type LogQuery struct {
	Raw               string
	Top               int
	Type              string
	ContinuationToken string
}

const DefaultTop = 10

type LogPage struct {
	Results           []map[string]any `json:"results" yaml:"results"`
	ContinuationToken string           `json:"continuationToken,omitempty" yaml:"continuationToken,omitempty"`
}

// Regions lists the locations mobile services can be created in. The first
// entry is the default location.
func (c *Client) Regions(ctx context.Context) ([]Region, error) {
	response, err := c.mobileChannel().Path("regions").Get(ctx)
	if err != nil {
		return nil, err
	}

	var regions []Region
	if err := response.Decode(&regions); err != nil {
		return nil, err
	}
	return regions, nil
}

func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	response, err := c.mobileChannel().Path("mobileservices").Get(ctx)
	if err != nil {
		return nil, err
	}

	var services []Service
	if err := response.Decode(&services); err != nil {
		return nil, err
	}
	return services, nil
}

func (c *Client) GetService(ctx context.Context, service string) (Service, error) {
	name, err := requireName("mobile service", service)
	if err != nil {
		return Service{}, err
	}

	response, err := c.serviceChannel(name).Get(ctx)
	if err != nil {
		return Service{}, err
	}

	var result Service
	if err := response.Decode(&result); err != nil {
		return Service{}, err
	}
	return result, nil
}

func (c *Client) RestartService(ctx context.Context, service string) error {
	name, err := requireName("mobile service", service)
	if err != nil {
		return err
	}

	_, err = c.serviceChannel(name).Path("redeploy").Post(ctx, nil)
	return err
}

func (c *Client) RegenerateKey(ctx context.Context, service string, keyType KeyType) (RegeneratedKeys, error) {
	name, err := requireName("mobile service", service)
	if err != nil {
		return RegeneratedKeys{}, err
	}
	if _, err := ParseKeyType(string(keyType)); err != nil {
		return RegeneratedKeys{}, err
	}

	response, err := c.serviceChannel(name).
		Path("regenerateKey").
		Query("type", string(keyType)).
		Post(ctx, nil)
	if err != nil {
		return RegeneratedKeys{}, err
	}

	var keys RegeneratedKeys
	if err := response.Decode(&keys); err != nil {
		return RegeneratedKeys{}, err
	}
	return keys, nil
}

func (c *Client) Logs(ctx context.Context, service string, query LogQuery) (LogPage, error) {
	name, err := requireName("mobile service", service)
	if err != nil {
		return LogPage{}, err
	}

	request := c.serviceChannel(name).Path("logs")
	if strings.TrimSpace(query.Raw) != "" {
		if err := applyRawQuery(request, query.Raw); err != nil {
			return LogPage{}, err
		}
	} else {
		if query.ContinuationToken != "" {
			request.Query("continuationToken", query.ContinuationToken)
		}
		request.Query("$top", strconv.Itoa(topOrDefault(query.Top)))
		if query.Type != "" {
			request.Query("$filter", fmt.Sprintf("Type eq '%s'", query.Type))
		}
	}

	response, err := request.Get(ctx)
	if err != nil {
		return LogPage{}, err
	}

	var page LogPage
	if err := response.Decode(&page); err != nil {
		return LogPage{}, err
	}
	return page, nil
}

// DeleteService removes the mobile service. With deleteData the service data
// in the database is deleted as well.
func (c *Client) DeleteService(ctx context.Context, service string, deleteData bool) error {
	name, err := requireName("mobile service", service)
	if err != nil {
		return err
	}

	request := c.serviceChannel(name)
	if deleteData {
		request.Query("deletedata", "true")
	}
	_, err = request.Delete(ctx)
	return err
}

// applyRawQuery copies k=v&k=v pairs onto request.
func applyRawQuery(request *channel.Channel, raw string) error {
	for _, pair := range strings.Split(raw, "&") {
		parts := strings.Split(pair, "=")
		if len(parts) != 2 {
			return validationError(fmt.Sprintf("invalid format of query parameter %q", pair), nil)
		}
		request.Query(parts[0], parts[1])
	}
	return nil
}

func topOrDefault(top int) int {
	if top <= 0 {
		return DefaultTop
	}
	return top
}
