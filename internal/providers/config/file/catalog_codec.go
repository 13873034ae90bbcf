package file

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/crmarques/mobilectl/config"
	"go.yaml.in/yaml/v3"
)

func decodeCatalogFile(path string) (config.AccountCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config.AccountCatalog{}, err
	}
	return decodeCatalog(data)
}

func decodeCatalog(data []byte) (config.AccountCatalog, error) {
	var accountCatalog config.AccountCatalog
	if len(bytes.TrimSpace(data)) == 0 {
		return accountCatalog, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&accountCatalog); err != nil {
		return config.AccountCatalog{}, validationError("invalid account catalog yaml", err)
	}

	return accountCatalog, nil
}

func encodeCatalog(accountCatalog config.AccountCatalog) ([]byte, error) {
	buffer := &bytes.Buffer{}
	encoder := yaml.NewEncoder(buffer)
	encoder.SetIndent(2)
	if err := encoder.Encode(accountCatalog); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func resolveCatalogPath(explicitPath string) (string, error) {
	path := explicitPath
	if path == "" {
		path = os.Getenv(config.AccountFileEnvVar)
	}
	if path == "" {
		path = config.DefaultAccountCatalogPath
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", internalError("failed to resolve user home directory", err)
	}

	if path == "~" {
		path = homeDir
	} else if strings.HasPrefix(path, "~/") {
		path = filepath.Join(homeDir, strings.TrimPrefix(path, "~/"))
	}

	cleanPath := filepath.Clean(path)
	if cleanPath == "." {
		return "", validationError("account catalog path is invalid", errors.New("resolved to current directory"))
	}

	if !filepath.IsAbs(cleanPath) {
		cleanPath = filepath.Join(homeDir, cleanPath)
	}

	return cleanPath, nil
}

func unknownOverrideError(key string) error {
	return validationError(fmt.Sprintf("unknown override key %q", key), nil)
}
