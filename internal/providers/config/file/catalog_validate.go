package file

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/crmarques/mobilectl/config"
)

// Environment variables applied on top of the resolved account.
const (
	SubscriptionEnvVar = "MOBILECTL_SUBSCRIPTION"
	EndpointEnvVar     = "MOBILECTL_ENDPOINT"
	APIVersionEnvVar   = "MOBILECTL_API_VERSION"
)

func validateCatalog(accountCatalog config.AccountCatalog) error {
	if len(accountCatalog.Accounts) == 0 {
		if accountCatalog.CurrentAccount != "" {
			return validationError("current-account must be empty when accounts list is empty", nil)
		}
		return nil
	}

	seen := map[string]struct{}{}
	for _, item := range accountCatalog.Accounts {
		if item.Name == "" {
			return validationError("account name must not be empty", nil)
		}
		if _, exists := seen[item.Name]; exists {
			return validationError(fmt.Sprintf("duplicate account name %q", item.Name), nil)
		}
		seen[item.Name] = struct{}{}

		if err := validateAccount(item); err != nil {
			return err
		}
	}

	if accountCatalog.CurrentAccount == "" {
		return validationError("current-account must be set when accounts are defined", nil)
	}
	if _, exists := seen[accountCatalog.CurrentAccount]; !exists {
		return validationError(fmt.Sprintf("current-account %q does not match any account", accountCatalog.CurrentAccount), nil)
	}

	return nil
}

func validateAccount(account config.Account) error {
	account = normalizeAccount(account)

	if account.Name == "" {
		return validationError("account name must not be empty", nil)
	}
	if account.SubscriptionID == "" {
		return validationError(fmt.Sprintf("account %q: subscription-id is required", account.Name), nil)
	}
	if strings.ContainsAny(account.SubscriptionID, "/?#") {
		return validationError(fmt.Sprintf("account %q: subscription-id must be a single path segment", account.Name), nil)
	}

	for field, raw := range map[string]string{
		"management-endpoint":     account.ManagementEndpoint,
		"sql-management-endpoint": account.SQLManagementEndpoint,
	} {
		if raw == "" {
			continue
		}
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return validationError(fmt.Sprintf("account %q: %s must be an absolute URL", account.Name, field), err)
		}
		if parsed.Scheme != "https" && parsed.Scheme != "http" {
			return validationError(fmt.Sprintf("account %q: %s scheme must be http or https", account.Name, field), nil)
		}
	}

	return validateCertificate(account.Name, account.Certificate)
}

func validateCertificate(name string, certificate config.Certificate) error {
	hasPair := certificate.CertFile != "" || certificate.KeyFile != ""
	if countSet(certificate.PEMFile != "", hasPair, certificate.PFXFile != "") != 1 {
		return validationError(fmt.Sprintf("account %q: certificate must define exactly one of pem-file, cert-file/key-file, pfx-file", name), nil)
	}
	if hasPair && (certificate.CertFile == "" || certificate.KeyFile == "") {
		return validationError(fmt.Sprintf("account %q: certificate.cert-file and certificate.key-file must be set together", name), nil)
	}
	if certificate.PFXPassword != "" && certificate.PFXFile == "" {
		return validationError(fmt.Sprintf("account %q: certificate.pfx-password requires certificate.pfx-file", name), nil)
	}
	return nil
}

func normalizeAccount(account config.Account) config.Account {
	account.Name = strings.TrimSpace(account.Name)
	account.SubscriptionID = strings.TrimSpace(account.SubscriptionID)
	account.ManagementEndpoint = strings.TrimRight(strings.TrimSpace(account.ManagementEndpoint), "/")
	account.SQLManagementEndpoint = strings.TrimRight(strings.TrimSpace(account.SQLManagementEndpoint), "/")
	return account
}

func applyOverrides(account config.Account, overrides map[string]string) (config.Account, error) {
	for _, key := range sortedOverrideKeys(overrides) {
		value := strings.TrimSpace(overrides[key])
		if value == "" {
			continue
		}
		switch key {
		case config.OverrideSubscription:
			account.SubscriptionID = value
		case config.OverrideEndpoint:
			account.ManagementEndpoint = value
		case config.OverrideAPIVersion:
			account.APIVersion = value
		default:
			return config.Account{}, unknownOverrideError(key)
		}
	}

	return normalizeAccount(account), nil
}

// environmentOverrides collects overrides from MOBILECTL_* variables. Explicit
// selection overrides win over the environment.
func environmentOverrides(lookup func(string) (string, bool), explicit map[string]string) map[string]string {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	merged := map[string]string{}
	for envVar, key := range map[string]string{
		SubscriptionEnvVar: config.OverrideSubscription,
		EndpointEnvVar:     config.OverrideEndpoint,
		APIVersionEnvVar:   config.OverrideAPIVersion,
	} {
		if value, ok := lookup(envVar); ok && strings.TrimSpace(value) != "" {
			merged[key] = value
		}
	}
	for key, value := range explicit {
		merged[key] = value
	}
	return merged
}

func sortedOverrideKeys(overrides map[string]string) []string {
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func countSet(values ...bool) int {
	count := 0
	for _, value := range values {
		if value {
			count++
		}
	}
	return count
}
