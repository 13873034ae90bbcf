package core

import (
	"context"

	"github.com/crmarques/mobilectl/channel"
	"github.com/crmarques/mobilectl/config"
	configfile "github.com/crmarques/mobilectl/internal/providers/config/file"
	"github.com/crmarques/mobilectl/internal/providers/shared/tlsconfig"
	"github.com/crmarques/mobilectl/mobile"
	"github.com/crmarques/mobilectl/operation"
)

func NewAccountService(opts BootstrapConfig) config.AccountService {
	return configfile.NewFileAccountService(opts.AccountCatalogPath)
}

// NewMobileContext resolves the selected account and opens the management
// and SQL management sessions with its certificate.
func NewMobileContext(ctx context.Context, opts BootstrapConfig, selection config.AccountSelection) (MobileContext, error) {
	accounts := NewAccountService(opts)
	account, err := accounts.ResolveAccount(ctx, selection)
	if err != nil {
		return MobileContext{}, err
	}

	tlsConfig, err := tlsconfig.BuildTLSConfig(account.Certificate, account.TLS, "account "+account.Name)
	if err != nil {
		return MobileContext{}, err
	}

	sessionOptions := []channel.SessionOption{channel.WithTLSConfig(tlsConfig)}
	if opts.Observer != nil {
		sessionOptions = append(sessionOptions, channel.WithObserver(opts.Observer))
	}

	session, err := channel.NewSession(account, sessionOptions...)
	if err != nil {
		return MobileContext{}, err
	}
	sqlSession, err := channel.NewSession(account, append(sessionOptions,
		channel.WithBaseURL(account.EffectiveSQLManagementEndpoint()),
		channel.WithAPIVersion(config.DefaultSQLAPIVersion),
	)...)
	if err != nil {
		return MobileContext{}, err
	}

	tracker := operation.Tracker{
		Fetcher:  operation.ChannelFetcher{Session: session},
		Interval: account.EffectivePollInterval(),
	}
	if opts.Observer != nil {
		tracker.Observer = opts.Observer
	}

	client, err := mobile.NewClient(session,
		mobile.WithSQLSession(sqlSession),
		mobile.WithSQLHostnameSuffix(account.EffectiveSQLHostnameSuffix()),
		mobile.WithTracker(tracker),
	)
	if err != nil {
		return MobileContext{}, err
	}

	return MobileContext{
		Accounts:   accounts,
		Account:    account,
		Session:    session,
		SQLSession: sqlSession,
		Mobile:     client,
	}, nil
}
