package core

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crmarques/mobilectl/config"
	"github.com/crmarques/mobilectl/faults"
	configfile "github.com/crmarques/mobilectl/internal/providers/config/file"
)

func TestNewMobileContext(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	catalogPath := filepath.Join(tempDir, "accounts.yaml")
	writeAccountCatalog(t, catalogPath, writeCertificate(t, tempDir))

	mobileContext, err := NewMobileContext(context.Background(), BootstrapConfig{AccountCatalogPath: catalogPath}, config.AccountSelection{})
	if err != nil {
		t.Fatalf("NewMobileContext returned error: %v", err)
	}

	if _, ok := mobileContext.Accounts.(*configfile.FileAccountService); !ok {
		t.Fatalf("expected FileAccountService, got %T", mobileContext.Accounts)
	}
	if mobileContext.Account.Name != "dev" {
		t.Fatalf("account = %q, want dev", mobileContext.Account.Name)
	}
	if mobileContext.Mobile == nil {
		t.Fatal("expected non-nil mobile client")
	}
	if got := mobileContext.Session.Host(); got != "management.core.windows.net" {
		t.Fatalf("management host = %q", got)
	}
	if got := mobileContext.SQLSession.Host(); got != "sql.example.com:8443" {
		t.Fatalf("SQL management host = %q", got)
	}
	if got := mobileContext.SQLSession.APIVersion(); got != config.DefaultSQLAPIVersion {
		t.Fatalf("SQL api version = %q, want %q", got, config.DefaultSQLAPIVersion)
	}
}

func TestNewMobileContextUsesSelection(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	catalogPath := filepath.Join(tempDir, "accounts.yaml")
	writeAccountCatalog(t, catalogPath, writeCertificate(t, tempDir))

	mobileContext, err := NewMobileContext(context.Background(), BootstrapConfig{AccountCatalogPath: catalogPath}, config.AccountSelection{Name: "prod"})
	if err != nil {
		t.Fatalf("NewMobileContext returned error: %v", err)
	}
	if mobileContext.Session.SubscriptionID() != "2222-3333" {
		t.Fatalf("subscription = %q, want 2222-3333", mobileContext.Session.SubscriptionID())
	}

	_, err = NewMobileContext(context.Background(), BootstrapConfig{AccountCatalogPath: catalogPath}, config.AccountSelection{Name: "missing"})
	if !faults.IsCategory(err, faults.NotFoundError) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestNewMobileContextRejectsUnreadableCertificate(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	catalogPath := filepath.Join(tempDir, "accounts.yaml")
	writeAccountCatalog(t, catalogPath, filepath.Join(tempDir, "missing.pem"))

	_, err := NewMobileContext(context.Background(), BootstrapConfig{AccountCatalogPath: catalogPath}, config.AccountSelection{})
	if !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func writeAccountCatalog(t *testing.T, path string, pemFile string) {
	t.Helper()

	content := fmt.Sprintf(`
accounts:
  - name: dev
    subscription-id: 0000-1111
    sql-management-endpoint: https://sql.example.com:8443
    certificate:
      pem-file: %s
  - name: prod
    subscription-id: 2222-3333
    certificate:
      pem-file: %s
current-account: dev
`, pemFile, pemFile)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func writeCertificate(t *testing.T, dir string) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "management"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}

	path := filepath.Join(dir, "management.pem")
	data := append(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})...,
	)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
	return path
}
