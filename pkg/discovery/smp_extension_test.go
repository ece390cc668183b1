package discovery

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSignedCertForExtensionTest(t *testing.T) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Extension AP"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestParseCertificateExtension(t *testing.T) {
	cert := selfSignedCertForExtensionTest(t)
	extensionXML := fmt.Sprintf(
		`<Extension><ExtensionID>%s</ExtensionID><CertificateList><Certificate type="signing-cert">%s</Certificate></CertificateList></Extension>`,
		ExtensionCertPub, base64.StdEncoding.EncodeToString(cert.Raw))

	parsed, err := parseCertificateExtension([]byte(extensionXML))
	require.NoError(t, err)
	assert.Equal(t, cert.Raw, parsed.Raw)
}

func TestResolveEndpointCertificate_PrefersInlineCertificate(t *testing.T) {
	cert := selfSignedCertForExtensionTest(t)
	ep := rawEndpoint{certB64: base64.StdEncoding.EncodeToString(cert.Raw)}

	resolved, err := resolveEndpointCertificate(ep)
	require.NoError(t, err)
	assert.Equal(t, cert.Raw, resolved.Raw)
}

func TestResolveEndpointCertificate_FallsBackToExtension(t *testing.T) {
	cert := selfSignedCertForExtensionTest(t)
	extensionXML := fmt.Sprintf(
		`<Extension><ExtensionID>%s</ExtensionID><CertificateList><Certificate type="signing-cert">%s</Certificate></CertificateList></Extension>`,
		ExtensionCertPub, base64.StdEncoding.EncodeToString(cert.Raw))
	ep := rawEndpoint{extension: []byte(extensionXML)}

	resolved, err := resolveEndpointCertificate(ep)
	require.NoError(t, err)
	assert.Equal(t, cert.Raw, resolved.Raw)
}

func TestResolveEndpointCertificate_NoneAvailable(t *testing.T) {
	_, err := resolveEndpointCertificate(rawEndpoint{})
	assert.Error(t, err)
}
