package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crmarques/mobilectl/config"
	"github.com/crmarques/mobilectl/faults"
)

var _ config.AccountService = (*FileAccountService)(nil)

type FileAccountService struct {
	accountCatalogPath string
	lookupEnv          func(string) (string, bool)
}

func NewFileAccountService(path string) *FileAccountService {
	return &FileAccountService{accountCatalogPath: path, lookupEnv: os.LookupEnv}
}

func (m *FileAccountService) Create(_ context.Context, account config.Account) error {
	account = normalizeAccount(account)
	if err := validateAccount(account); err != nil {
		return err
	}

	accountCatalog, err := m.loadCatalog()
	if err != nil {
		return err
	}

	if idx := findAccountIndex(accountCatalog.Accounts, account.Name); idx >= 0 {
		return faults.NewTypedError(faults.ConflictError, fmt.Sprintf("account %q already exists", account.Name), nil)
	}

	accountCatalog.Accounts = append(accountCatalog.Accounts, account)
	if accountCatalog.CurrentAccount == "" {
		accountCatalog.CurrentAccount = account.Name
	}

	return m.saveCatalog(accountCatalog)
}

func (m *FileAccountService) Update(_ context.Context, account config.Account) error {
	account = normalizeAccount(account)
	if err := validateAccount(account); err != nil {
		return err
	}

	accountCatalog, err := m.loadCatalog()
	if err != nil {
		return err
	}

	idx := findAccountIndex(accountCatalog.Accounts, account.Name)
	if idx < 0 {
		return notFoundError(fmt.Sprintf("account %q not found", account.Name))
	}

	accountCatalog.Accounts[idx] = account
	return m.saveCatalog(accountCatalog)
}

func (m *FileAccountService) Delete(_ context.Context, name string) error {
	accountCatalog, err := m.loadCatalog()
	if err != nil {
		return err
	}

	idx := findAccountIndex(accountCatalog.Accounts, name)
	if idx < 0 {
		return notFoundError(fmt.Sprintf("account %q not found", name))
	}

	accountCatalog.Accounts = append(accountCatalog.Accounts[:idx], accountCatalog.Accounts[idx+1:]...)
	if accountCatalog.CurrentAccount == name {
		if len(accountCatalog.Accounts) == 0 {
			accountCatalog.CurrentAccount = ""
		} else {
			accountCatalog.CurrentAccount = accountCatalog.Accounts[0].Name
		}
	}

	return m.saveCatalog(accountCatalog)
}

func (m *FileAccountService) Rename(_ context.Context, fromName string, toName string) error {
	if toName == "" {
		return validationError("account name must not be empty", nil)
	}

	accountCatalog, err := m.loadCatalog()
	if err != nil {
		return err
	}

	fromIdx := findAccountIndex(accountCatalog.Accounts, fromName)
	if fromIdx < 0 {
		return notFoundError(fmt.Sprintf("account %q not found", fromName))
	}
	if findAccountIndex(accountCatalog.Accounts, toName) >= 0 {
		return faults.NewTypedError(faults.ConflictError, fmt.Sprintf("account %q already exists", toName), nil)
	}

	accountCatalog.Accounts[fromIdx].Name = toName
	if accountCatalog.CurrentAccount == fromName {
		accountCatalog.CurrentAccount = toName
	}

	return m.saveCatalog(accountCatalog)
}

func (m *FileAccountService) List(_ context.Context) ([]config.Account, error) {
	accountCatalog, err := m.loadCatalog()
	if err != nil {
		return nil, err
	}

	accounts := make([]config.Account, len(accountCatalog.Accounts))
	copy(accounts, accountCatalog.Accounts)
	return accounts, nil
}

func (m *FileAccountService) SetCurrent(_ context.Context, name string) error {
	accountCatalog, err := m.loadCatalog()
	if err != nil {
		return err
	}

	if findAccountIndex(accountCatalog.Accounts, name) < 0 {
		return notFoundError(fmt.Sprintf("account %q not found", name))
	}

	accountCatalog.CurrentAccount = name
	return m.saveCatalog(accountCatalog)
}

func (m *FileAccountService) GetCurrent(_ context.Context) (config.Account, error) {
	accountCatalog, err := m.loadCatalog()
	if err != nil {
		return config.Account{}, err
	}
	if accountCatalog.CurrentAccount == "" {
		return config.Account{}, notFoundError("current account not set")
	}

	idx := findAccountIndex(accountCatalog.Accounts, accountCatalog.CurrentAccount)
	if idx < 0 {
		return config.Account{}, notFoundError(fmt.Sprintf("current account %q not found", accountCatalog.CurrentAccount))
	}

	return accountCatalog.Accounts[idx], nil
}

func (m *FileAccountService) ResolveAccount(_ context.Context, selection config.AccountSelection) (config.Account, error) {
	accountCatalog, err := m.loadCatalog()
	if err != nil {
		return config.Account{}, err
	}

	effectiveName := selection.Name
	if effectiveName == "" {
		effectiveName = accountCatalog.CurrentAccount
	}
	if effectiveName == "" {
		return config.Account{}, notFoundError("no account configured; run \"mobilectl account add\" first")
	}

	idx := findAccountIndex(accountCatalog.Accounts, effectiveName)
	if idx < 0 {
		return config.Account{}, notFoundError(fmt.Sprintf("account %q not found", effectiveName))
	}

	overrides := environmentOverrides(m.lookupEnv, selection.Overrides)
	resolved, err := applyOverrides(accountCatalog.Accounts[idx], overrides)
	if err != nil {
		return config.Account{}, err
	}
	if err := validateAccount(resolved); err != nil {
		return config.Account{}, err
	}

	return resolved, nil
}

func (m *FileAccountService) Validate(_ context.Context, account config.Account) error {
	return validateAccount(account)
}

func (m *FileAccountService) saveCatalog(accountCatalog config.AccountCatalog) error {
	if err := validateCatalog(accountCatalog); err != nil {
		return err
	}

	resolvedPath, err := m.resolveCatalogPath()
	if err != nil {
		return err
	}

	encoded, err := encodeCatalog(accountCatalog)
	if err != nil {
		return internalError("failed to encode account catalog", err)
	}

	if err := os.MkdirAll(filepath.Dir(resolvedPath), 0o700); err != nil {
		return internalError("failed to create account config directory", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(resolvedPath), ".mobilectl-accounts-*")
	if err != nil {
		return internalError("failed to create temporary account catalog file", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(encoded); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return internalError("failed to write account catalog", err)
	}
	if err := tempFile.Chmod(0o600); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return internalError("failed to set account catalog permissions", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return internalError("failed to finalize account catalog", err)
	}

	if err := os.Rename(tempPath, resolvedPath); err != nil {
		_ = os.Remove(tempPath)
		return internalError("failed to replace account catalog", err)
	}

	return ensureUserOnlyReadWriteFile(resolvedPath)
}

func (m *FileAccountService) loadCatalog() (config.AccountCatalog, error) {
	resolvedPath, err := m.resolveCatalogPath()
	if err != nil {
		return config.AccountCatalog{}, err
	}

	accountCatalog, err := decodeCatalogFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.AccountCatalog{}, nil
		}
		return config.AccountCatalog{}, err
	}
	if err := ensureUserOnlyReadWriteFile(resolvedPath); err != nil {
		return config.AccountCatalog{}, err
	}

	if err := validateCatalog(accountCatalog); err != nil {
		return config.AccountCatalog{}, err
	}

	return accountCatalog, nil
}

func (m *FileAccountService) resolveCatalogPath() (string, error) {
	return resolveCatalogPath(m.accountCatalogPath)
}

func findAccountIndex(accounts []config.Account, name string) int {
	for idx, item := range accounts {
		if item.Name == name {
			return idx
		}
	}
	return -1
}

func validationError(message string, cause error) error {
	return faults.NewTypedError(faults.ValidationError, message, cause)
}

func notFoundError(message string) error {
	return faults.NewTypedError(faults.NotFoundError, message, nil)
}

func internalError(message string, cause error) error {
	return faults.NewTypedError(faults.InternalError, message, cause)
}

func ensureUserOnlyReadWriteFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return internalError("failed to inspect account catalog permissions", err)
	}

	if info.Mode().Perm() == 0o600 {
		return nil
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return internalError("failed to update account catalog permissions", err)
	}
	return nil
}
