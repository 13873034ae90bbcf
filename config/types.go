package config

import "time"

type AccountSelection struct {
	Name      string
	Overrides map[string]string
}

const (
	AccountFileEnvVar         = "MOBILECTL_ACCOUNTS_FILE"
	DefaultAccountCatalogPath = "~/.mobilectl/accounts.yaml"

	DefaultManagementEndpoint    = "https://management.core.windows.net"
	DefaultSQLManagementEndpoint = "https://management.database.windows.net:8443"
	DefaultAPIVersion            = "2012-03-01"
	DefaultSQLAPIVersion         = "1.0"
	DefaultSQLHostnameSuffix     = ".database.windows.net"
	DefaultPollInterval          = 5 * time.Second
	DefaultRequestTimeout        = 90 * time.Second
)

// Override keys accepted by AccountSelection.Overrides.
const (
	OverrideSubscription = "subscription"
	OverrideEndpoint     = "management-endpoint"
	OverrideAPIVersion   = "api-version"
)

type AccountCatalog struct {
	Accounts       []Account `yaml:"accounts"`
	CurrentAccount string    `yaml:"current-account"`
}

type Account struct {
	Name                  string            `yaml:"name"`
	SubscriptionID        string            `yaml:"subscription-id"`
	ManagementEndpoint    string            `yaml:"management-endpoint,omitempty"`
	SQLManagementEndpoint string            `yaml:"sql-management-endpoint,omitempty"`
	SQLHostnameSuffix     string            `yaml:"sql-hostname-suffix,omitempty"`
	APIVersion            string            `yaml:"api-version,omitempty"`
	Certificate           Certificate       `yaml:"certificate"`
	TLS                   *TLS              `yaml:"tls,omitempty"`
	DefaultHeaders        map[string]string `yaml:"default-headers,omitempty"`
	Requests              *Requests         `yaml:"requests,omitempty"`
}

// Certificate names the management certificate. Exactly one of PEMFile,
// the CertFile/KeyFile pair, or PFXFile is set.
type Certificate struct {
	PEMFile     string `yaml:"pem-file,omitempty"`
	CertFile    string `yaml:"cert-file,omitempty"`
	KeyFile     string `yaml:"key-file,omitempty"`
	PFXFile     string `yaml:"pfx-file,omitempty"`
	PFXPassword string `yaml:"pfx-password,omitempty"`
}

type TLS struct {
	CACertFile         string `yaml:"ca-cert-file,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure-skip-verify,omitempty"`
}

type Requests struct {
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	RequestsPerSecond float64       `yaml:"requests-per-second,omitempty"`
	Burst             int           `yaml:"burst,omitempty"`
	PollInterval      time.Duration `yaml:"poll-interval,omitempty"`
}

func (a Account) EffectiveManagementEndpoint() string {
	if a.ManagementEndpoint == "" {
		return DefaultManagementEndpoint
	}
	return a.ManagementEndpoint
}

func (a Account) EffectiveSQLManagementEndpoint() string {
	if a.SQLManagementEndpoint == "" {
		return DefaultSQLManagementEndpoint
	}
	return a.SQLManagementEndpoint
}

func (a Account) EffectiveSQLHostnameSuffix() string {
	if a.SQLHostnameSuffix == "" {
		return DefaultSQLHostnameSuffix
	}
	return a.SQLHostnameSuffix
}

func (a Account) EffectiveAPIVersion() string {
	if a.APIVersion == "" {
		return DefaultAPIVersion
	}
	return a.APIVersion
}

func (a Account) EffectiveTimeout() time.Duration {
	if a.Requests == nil || a.Requests.Timeout <= 0 {
		return DefaultRequestTimeout
	}
	return a.Requests.Timeout
}

func (a Account) EffectivePollInterval() time.Duration {
	if a.Requests == nil || a.Requests.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return a.Requests.PollInterval
}
