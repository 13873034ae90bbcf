package tlsconfig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crmarques/mobilectl/config"
	"github.com/crmarques/mobilectl/faults"
)

func TestBuildTLSConfigCertificateSources(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	certPEM, keyPEM := generatePEM(t)
	combined := filepath.Join(dir, "combined.pem")
	certFile := filepath.Join(dir, "client.crt")
	keyFile := filepath.Join(dir, "client.key")
	garbage := filepath.Join(dir, "broken.pfx")
	writeFile(t, combined, append(append([]byte{}, certPEM...), keyPEM...))
	writeFile(t, certFile, certPEM)
	writeFile(t, keyFile, keyPEM)
	writeFile(t, garbage, []byte("not a pkcs12 archive"))

	testCases := []struct {
		name        string
		certificate config.Certificate
		wantErr     bool
	}{
		{name: "combined_pem", certificate: config.Certificate{PEMFile: combined}},
		{name: "cert_and_key", certificate: config.Certificate{CertFile: certFile, KeyFile: keyFile}},
		{name: "cert_only", certificate: config.Certificate{CertFile: certFile}, wantErr: true},
		{name: "pem_without_key", certificate: config.Certificate{PEMFile: certFile}, wantErr: true},
		{name: "invalid_pfx", certificate: config.Certificate{PFXFile: garbage, PFXPassword: "x"}, wantErr: true},
		{name: "missing_file", certificate: config.Certificate{PEMFile: filepath.Join(dir, "missing.pem")}, wantErr: true},
		{name: "none", certificate: config.Certificate{}, wantErr: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			tlsConfig, err := BuildTLSConfig(testCase.certificate, nil, "account dev")
			if testCase.wantErr {
				if !faults.IsCategory(err, faults.ValidationError) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildTLSConfig returned error: %v", err)
			}
			if len(tlsConfig.Certificates) != 1 {
				t.Fatalf("expected one client certificate, got %d", len(tlsConfig.Certificates))
			}
			if tlsConfig.MinVersion != tls.VersionTLS12 {
				t.Fatalf("MinVersion = %d, want TLS1.2", tlsConfig.MinVersion)
			}
		})
	}
}

func TestBuildTLSConfigCAFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	certPEM, keyPEM := generatePEM(t)
	combined := filepath.Join(dir, "combined.pem")
	caFile := filepath.Join(dir, "ca.pem")
	badCA := filepath.Join(dir, "bad-ca.pem")
	writeFile(t, combined, append(append([]byte{}, certPEM...), keyPEM...))
	writeFile(t, caFile, certPEM)
	writeFile(t, badCA, []byte("nope"))

	tlsConfig, err := BuildTLSConfig(config.Certificate{PEMFile: combined}, &config.TLS{CACertFile: caFile, InsecureSkipVerify: true}, "account dev")
	if err != nil {
		t.Fatalf("BuildTLSConfig returned error: %v", err)
	}
	if tlsConfig.RootCAs == nil || !tlsConfig.InsecureSkipVerify {
		t.Fatalf("expected CA pool and insecure flag to be applied")
	}

	if _, err := BuildTLSConfig(config.Certificate{PEMFile: combined}, &config.TLS{CACertFile: badCA}, "account dev"); err == nil {
		t.Fatal("expected invalid CA PEM to fail")
	}
}

func generatePEM(t *testing.T) ([]byte, []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(7),
		Subject:               pkix.Name{CommonName: "management"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}
