package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

const (
	certKeyBits  = 2048
	certValidity = 24 * time.Hour
	certOrg      = "qrdrop"
)

// EphemeralCertificate is a self-signed identity for exactly one host. It only
// lives in memory and dies with the listener that asked for it.
type EphemeralCertificate struct {
	Host           string
	CertificateDER []byte
	PrivateKeyDER  []byte // PKCS#8

	key *rsa.PrivateKey
}

// TLSCertificate returns the pair ready for a tls.Config
func (c *EphemeralCertificate) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{c.CertificateDER},
		PrivateKey:  c.key,
	}
}

// CertGenerationError reports a failed key generation or self-signing
type CertGenerationError struct {
	Host string
	Err  error
}

func (e *CertGenerationError) Error() string {
	return fmt.Sprintf("failed to generate certificate for %s: %v", e.Host, e.Err)
}

func (e *CertGenerationError) Unwrap() error {
	return e.Err
}

// ProvisionCertificate generates an RSA key and a certificate signed by it
// whose only subject alternative name is host.
func ProvisionCertificate(host string) (*EphemeralCertificate, error) {
	if host == "" {
		return nil, &CertGenerationError{Host: host, Err: fmt.Errorf("empty host")}
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, certKeyBits)
	if err != nil {
		return nil, &CertGenerationError{Host: host, Err: fmt.Errorf("failed to generate private key: %w", err)}
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, &CertGenerationError{Host: host, Err: fmt.Errorf("failed to generate serial number: %w", err)}
	}

	// Leave a little room for clock skew on the phone
	notBefore := time.Now().Add(-time.Minute)

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{certOrg},
			CommonName:   host,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(certValidity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	if ip := net.ParseIP(host); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{host}
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, &CertGenerationError{Host: host, Err: fmt.Errorf("failed to create certificate: %w", err)}
	}

	keyBytes, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, &CertGenerationError{Host: host, Err: fmt.Errorf("failed to marshal private key: %w", err)}
	}

	return &EphemeralCertificate{
		Host:           host,
		CertificateDER: derBytes,
		PrivateKeyDER:  keyBytes,
		key:            privateKey,
	}, nil
}
