package tlsconfig

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/crmarques/mobilectl/config"
	"github.com/crmarques/mobilectl/faults"
	"golang.org/x/crypto/pkcs12"
)

// BuildTLSConfig returns a client TLS configuration presenting the account's
// management certificate.
func BuildTLSConfig(certificate config.Certificate, tlsSettings *config.TLS, scope string) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if tlsSettings != nil {
		tlsConfig.InsecureSkipVerify = tlsSettings.InsecureSkipVerify

		if strings.TrimSpace(tlsSettings.CACertFile) != "" {
			caBytes, err := os.ReadFile(tlsSettings.CACertFile)
			if err != nil {
				return nil, validationError(fmt.Sprintf("%s.tls.ca-cert-file could not be read", scope), err)
			}

			pool := x509.NewCertPool()
			if ok := pool.AppendCertsFromPEM(caBytes); !ok {
				return nil, validationError(fmt.Sprintf("%s.tls.ca-cert-file is not valid PEM", scope), nil)
			}
			tlsConfig.RootCAs = pool
		}
	}

	clientCertificate, err := LoadCertificate(certificate, scope)
	if err != nil {
		return nil, err
	}
	tlsConfig.Certificates = []tls.Certificate{clientCertificate}

	return tlsConfig, nil
}

// LoadCertificate reads the key pair from a combined PEM file, a cert/key
// pair, or a PKCS#12 archive.
func LoadCertificate(certificate config.Certificate, scope string) (tls.Certificate, error) {
	pemFile := strings.TrimSpace(certificate.PEMFile)
	certFile := strings.TrimSpace(certificate.CertFile)
	keyFile := strings.TrimSpace(certificate.KeyFile)
	pfxFile := strings.TrimSpace(certificate.PFXFile)

	switch {
	case pemFile != "":
		data, err := os.ReadFile(pemFile)
		if err != nil {
			return tls.Certificate{}, validationError(fmt.Sprintf("%s.certificate.pem-file could not be read", scope), err)
		}
		pair, err := tls.X509KeyPair(data, data)
		if err != nil {
			return tls.Certificate{}, validationError(fmt.Sprintf("%s.certificate.pem-file must hold a certificate and its private key", scope), err)
		}
		return pair, nil
	case certFile != "" || keyFile != "":
		if certFile == "" || keyFile == "" {
			return tls.Certificate{}, validationError(
				fmt.Sprintf("%s.certificate requires both cert-file and key-file", scope),
				nil,
			)
		}
		pair, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return tls.Certificate{}, validationError(
				fmt.Sprintf("%s.certificate client certificate pair is invalid", scope),
				err,
			)
		}
		return pair, nil
	case pfxFile != "":
		data, err := os.ReadFile(pfxFile)
		if err != nil {
			return tls.Certificate{}, validationError(fmt.Sprintf("%s.certificate.pfx-file could not be read", scope), err)
		}
		pair, err := decodePFX(data, certificate.PFXPassword)
		if err != nil {
			return tls.Certificate{}, validationError(fmt.Sprintf("%s.certificate.pfx-file is not a valid PKCS#12 archive", scope), err)
		}
		return pair, nil
	default:
		return tls.Certificate{}, validationError(fmt.Sprintf("%s.certificate is required", scope), nil)
	}
}

func decodePFX(data []byte, password string) (tls.Certificate, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return tls.Certificate{}, err
	}

	var encoded bytes.Buffer
	for _, block := range blocks {
		if err := pem.Encode(&encoded, block); err != nil {
			return tls.Certificate{}, err
		}
	}
	return tls.X509KeyPair(encoded.Bytes(), encoded.Bytes())
}

func validationError(message string, cause error) error {
	return faults.NewTypedError(faults.ValidationError, message, cause)
}
