package common

import (
	"context"
	"strings"
	"time"

	"github.com/crmarques/mobilectl/config"
	"github.com/crmarques/mobilectl/mobile"
	"github.com/crmarques/mobilectl/operation"
	"github.com/spf13/cobra"
)

// Observer receives one call per management request and per operation poll.
type Observer interface {
	ObserveRequest(method string, status int, duration time.Duration)
	ObservePoll(id string, status operation.Status, attempt int)
}

// AccountsFactory opens the account catalog at path; an empty path selects
// the default location.
type AccountsFactory func(catalogPath string) config.AccountService

// MobileFactory resolves an account and returns a client bound to it.
type MobileFactory func(ctx context.Context, catalogPath string, selection config.AccountSelection, observer Observer) (*mobile.Client, error)

type CommandDependencies struct {
	NewAccounts AccountsFactory
	OpenMobile  MobileFactory
}

func RequireAccounts(deps CommandDependencies, globalFlags *GlobalFlags) (config.AccountService, error) {
	if deps.NewAccounts == nil {
		return nil, ValidationError("account service is not configured", nil)
	}
	return deps.NewAccounts(accountsFile(globalFlags)), nil
}

// RequireMobile opens the mobile client for the account selected by
// --account, or the current account. A non-empty subscription replaces the
// subscription of the account.
func RequireMobile(command *cobra.Command, deps CommandDependencies, globalFlags *GlobalFlags, subscription string) (*mobile.Client, error) {
	if deps.OpenMobile == nil {
		return nil, ValidationError("mobile client is not configured", nil)
	}

	selection := config.AccountSelection{}
	if globalFlags != nil {
		selection.Name = strings.TrimSpace(globalFlags.Account)
	}
	if subscription = strings.TrimSpace(subscription); subscription != "" {
		selection.Overrides = map[string]string{config.OverrideSubscription: subscription}
	}

	var observer Observer
	if metrics := Metrics(command.Context()); metrics != nil {
		observer = metrics
	}
	return deps.OpenMobile(command.Context(), accountsFile(globalFlags), selection, observer)
}

func accountsFile(globalFlags *GlobalFlags) string {
	if globalFlags == nil {
		return ""
	}
	return strings.TrimSpace(globalFlags.AccountsFile)
}
