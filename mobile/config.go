package mobile

import (
	"context"
	"encoding/base64"
	"os"
	"regexp"
	"strings"

	"github.com/crmarques/mobilectl/channel"
	"github.com/crmarques/mobilectl/settings"
)

const apnsFormatMessage = "the value of the apns setting must be in the format (dev|prod):<password>:<pkcs12CertificateFile>, " +
	"e.g. dev:abc!123:./mycertificate.pfx; colons in the password must be escaped as :: (double colon)"

var apnsValuePattern = regexp.MustCompile(`^(dev|prod):((?:::|[^:])*):(.+)$`)

// APNSCredentials is a parsed apns setting value.
type APNSCredentials struct {
	Mode            string
	Password        string
	CertificateFile string
}

// ParseAPNS parses (dev|prod):<password>:<file>. A doubled colon in the
// password stands for a single one.
func ParseAPNS(value string) (APNSCredentials, error) {
	match := apnsValuePattern.FindStringSubmatch(value)
	if match == nil {
		return APNSCredentials{}, validationError(apnsFormatMessage, nil)
	}
	return APNSCredentials{
		Mode:            match[1],
		Password:        strings.ReplaceAll(match[2], "::", ":"),
		CertificateFile: match[3],
	}, nil
}

func parseBoolSetting(raw string) (any, error) {
	switch strings.TrimSpace(raw) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return nil, validationError("the value of dynamicSchemaEnabled must be either true or false", nil)
}

// SettingsTable builds the configuration keys of one mobile service.
func SettingsTable(client *Client, service string) *settings.Table {
	serviceSettings := client.documentResource(service, "settings", "PATCH")
	liveSettings := client.documentResource(service, "livesettings", "PUT")
	authSettings := client.documentResource(service, "authsettings", "PUT")
	apnsSettings := &settings.Resource{
		Name: "apns",
		Load: func(ctx context.Context) (any, error) {
			return client.loadDocument(ctx, client.serviceChannel(service).Path("apns").Path("settings"))
		},
	}

	credential := map[string]any{"appId": "", "secret": ""}
	provider := func(key string, name string, field string) settings.Projection {
		return settings.Projection{Key: key, Resource: authSettings, Field: name, RecordField: field, RecordDefaults: credential}
	}

	return settings.NewTable(
		settings.Projection{Key: "dynamicSchemaEnabled", Resource: serviceSettings, Field: "dynamicSchemaEnabled", Parse: parseBoolSetting},
		settings.Projection{Key: "microsoftAccountClientSecret", Resource: liveSettings, Field: "clientSecret"},
		settings.Projection{Key: "microsoftAccountClientId", Resource: liveSettings, Field: "clientID"},
		settings.Projection{Key: "microsoftAccountPackageSID", Resource: liveSettings, Field: "packageSID"},
		provider("facebookClientId", "facebook", "appId"),
		provider("facebookClientSecret", "facebook", "secret"),
		provider("twitterClientId", "twitter", "appId"),
		provider("twitterClientSecret", "twitter", "secret"),
		provider("googleClientId", "google", "appId"),
		provider("googleClientSecret", "google", "secret"),
		settings.Projection{
			Key:      "apns",
			Resource: apnsSettings,
			Field:    "mode",
			Parse: func(raw string) (any, error) {
				return ParseAPNS(raw)
			},
			Write: func(ctx context.Context, value any) error {
				credentials, ok := value.(APNSCredentials)
				if !ok {
					parsed, err := ParseAPNS(stringValue(value))
					if err != nil {
						return err
					}
					credentials = parsed
				}
				return client.UploadAPNSCertificate(ctx, service, credentials)
			},
		},
	)
}

// UploadAPNSCertificate sends the PKCS#12 push certificate of a service.
func (c *Client) UploadAPNSCertificate(ctx context.Context, service string, credentials APNSCredentials) error {
	name, err := requireName("mobile service", service)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(credentials.CertificateFile)
	if err != nil {
		return validationError("failed to read apns certificate file "+credentials.CertificateFile, err)
	}

	_, err = c.serviceChannel(name).
		Path("apns").
		Path("certificates").
		Post(ctx, map[string]string{
			"mode":     credentials.Mode,
			"password": credentials.Password,
			"data":     base64.StdEncoding.EncodeToString(data),
		})
	return err
}

func (c *Client) documentResource(service string, segment string, method string) *settings.Resource {
	return &settings.Resource{
		Name: segment,
		Load: func(ctx context.Context) (any, error) {
			return c.loadDocument(ctx, c.serviceChannel(service).Path(segment))
		},
		Store: func(ctx context.Context, document any) error {
			_, err := c.serviceChannel(service).Path(segment).Send(ctx, method, document)
			return err
		},
	}
}

func (c *Client) loadDocument(ctx context.Context, request *channel.Channel) (any, error) {
	response, err := request.Get(ctx)
	if err != nil {
		return nil, err
	}

	var document any
	if err := response.Decode(&document); err != nil {
		return nil, err
	}
	return document, nil
}

func stringValue(value any) string {
	if text, ok := value.(string); ok {
		return text
	}
	return ""
}
