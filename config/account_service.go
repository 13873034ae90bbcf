package config

import "context"

type AccountCatalogWriter interface {
	Create(ctx context.Context, account Account) error
	Update(ctx context.Context, account Account) error
	Delete(ctx context.Context, name string) error
	Rename(ctx context.Context, fromName string, toName string) error
	SetCurrent(ctx context.Context, name string) error
}

type AccountCatalogReader interface {
	List(ctx context.Context) ([]Account, error)
	GetCurrent(ctx context.Context) (Account, error)
}

type AccountResolver interface {
	ResolveAccount(ctx context.Context, selection AccountSelection) (Account, error)
}

type AccountValidator interface {
	Validate(ctx context.Context, account Account) error
}

type AccountService interface {
	AccountCatalogWriter
	AccountCatalogReader
	AccountResolver
	AccountValidator
}
