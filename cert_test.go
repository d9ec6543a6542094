package main

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvisionCertificateIP(t *testing.T) {
	cert, err := ProvisionCertificate("192.168.1.5")
	require.NoError(t, err)

	parsed, err := x509.ParseCertificate(cert.CertificateDER)
	require.NoError(t, err)

	assert.NoError(t, parsed.VerifyHostname("192.168.1.5"))
	assert.Error(t, parsed.VerifyHostname("192.168.1.6"))
	assert.Error(t, parsed.VerifyHostname("localhost"))

	require.Len(t, parsed.IPAddresses, 1)
	assert.Empty(t, parsed.DNSNames)
	assert.Equal(t, "192.168.1.5", parsed.Subject.CommonName)
	assert.True(t, parsed.NotAfter.Sub(parsed.NotBefore) <= certValidity+time.Minute)
	assert.True(t, time.Now().After(parsed.NotBefore))
}

func TestProvisionCertificateDNSName(t *testing.T) {
	cert, err := ProvisionCertificate("drop.local")
	require.NoError(t, err)

	parsed, err := x509.ParseCertificate(cert.CertificateDER)
	require.NoError(t, err)

	assert.Equal(t, []string{"drop.local"}, parsed.DNSNames)
	assert.NoError(t, parsed.VerifyHostname("drop.local"))
	assert.Error(t, parsed.VerifyHostname("other.local"))
}

func TestProvisionCertificateKeyPair(t *testing.T) {
	cert, err := ProvisionCertificate("10.0.0.7")
	require.NoError(t, err)

	key, err := x509.ParsePKCS8PrivateKey(cert.PrivateKeyDER)
	require.NoError(t, err)
	rsaKey, ok := key.(*rsa.PrivateKey)
	require.True(t, ok)

	parsed, err := x509.ParseCertificate(cert.CertificateDER)
	require.NoError(t, err)
	assert.True(t, rsaKey.PublicKey.Equal(parsed.PublicKey))

	pair := cert.TLSCertificate()
	require.Len(t, pair.Certificate, 1)
	assert.Equal(t, cert.CertificateDER, pair.Certificate[0])
	assert.NotNil(t, pair.PrivateKey)
}

func TestProvisionCertificateUnique(t *testing.T) {
	a, err := ProvisionCertificate("10.0.0.7")
	require.NoError(t, err)
	b, err := ProvisionCertificate("10.0.0.7")
	require.NoError(t, err)

	assert.NotEqual(t, a.CertificateDER, b.CertificateDER)
	assert.NotEqual(t, a.PrivateKeyDER, b.PrivateKeyDER)
}

func TestProvisionCertificateEmptyHost(t *testing.T) {
	_, err := ProvisionCertificate("")

	var certErr *CertGenerationError
	require.True(t, errors.As(err, &certErr))
	assert.Contains(t, err.Error(), "failed to generate certificate")
}
