package core

import (
	"github.com/crmarques/mobilectl/channel"
	"github.com/crmarques/mobilectl/config"
	"github.com/crmarques/mobilectl/mobile"
	"github.com/crmarques/mobilectl/operation"
)

// MobileContext is everything a command needs to talk to one subscription.
type MobileContext struct {
	Accounts   config.AccountService
	Account    config.Account
	Session    *channel.Session
	SQLSession *channel.Session
	Mobile     *mobile.Client
}

type BootstrapConfig struct {
	AccountCatalogPath string
	// Observer receives one call per management request and operation poll.
	Observer Observer
}

// Observer combines the request and operation poll hooks.
type Observer interface {
	channel.RequestObserver
	ObservePoll(id string, status operation.Status, attempt int)
}
