package main

import (
	"context"
	"os"

	"github.com/crmarques/mobilectl/config"
	"github.com/crmarques/mobilectl/core"
	"github.com/crmarques/mobilectl/internal/cli"
	"github.com/crmarques/mobilectl/mobile"
)

func main() {
	if err := cli.Execute(newDependencies()); err != nil {
		os.Exit(cli.ExitCodeForError(err))
	}
}

// newDependencies defers opening the account catalog and the management
// sessions until a command asks for them, so help and completion never
// touch certificates.
func newDependencies() cli.Dependencies {
	return cli.Dependencies{
		NewAccounts: func(catalogPath string) config.AccountService {
			return core.NewAccountService(core.BootstrapConfig{AccountCatalogPath: catalogPath})
		},
		OpenMobile: openMobile,
		LookupEnv:  os.LookupEnv,
	}
}

func openMobile(ctx context.Context, catalogPath string, selection config.AccountSelection, observer cli.Observer) (*mobile.Client, error) {
	opts := core.BootstrapConfig{AccountCatalogPath: catalogPath}
	if observer != nil {
		opts.Observer = observer
	}

	mobileContext, err := core.NewMobileContext(ctx, opts, selection)
	if err != nil {
		return nil, err
	}
	return mobileContext.Mobile, nil
}
