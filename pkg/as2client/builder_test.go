package as2client

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phax/as2-peppol-client/pkg/discovery"
	"github.com/phax/as2-peppol-client/pkg/peppolid"
	"github.com/phax/as2-peppol-client/pkg/security"
)

const invoiceXML = `<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"><ID>INV-1</ID></Invoice>`

// selfSignedKeyPairForClientTest issues a throwaway self-signed certificate;
// these tests only exercise orchestration, never the wire protocol, so the
// receiver URL is never actually dialed to success.
func selfSignedKeyPairForClientTest(t *testing.T, cn string) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, key
}

func newReadyBuilder(t *testing.T) (*Builder, *x509.Certificate) {
	t.Helper()
	cert, key := selfSignedKeyPairForClientTest(t, "sender.example")
	signer := security.NewSMIMESigner(cert, key)

	b := NewBuilder().
		WithSender("sender-as2-id", "sender@example.org", "", peppolid.NewParticipantID("", "9908:111111111")).
		WithReceiver("receiver-as2-id", peppolid.NewParticipantID("", "9908:222222222")).
		WithReceiverEndpoint("https://receiver.example/as2", cert).
		WithDocumentType(peppolid.NewDocumentTypeID("", "invoice"), peppolid.NewProcessID("", "process1")).
		WithBusinessDocument(strings.NewReader(invoiceXML)).
		WithSigner(signer)
	return b, cert
}

func TestSendSynchronous_MissingSMPResolverAndEndpoint(t *testing.T) {
	b := NewBuilder().
		WithSender("sender-as2-id", "sender@example.org", "", peppolid.NewParticipantID("", "9908:111111111")).
		WithReceiver("receiver-as2-id", peppolid.NewParticipantID("", "9908:222222222")).
		WithDocumentType(peppolid.NewDocumentTypeID("", "invoice"), peppolid.NewProcessID("", "process1")).
		WithBusinessDocument(strings.NewReader(invoiceXML))

	resp, err := b.SendSynchronous(context.Background())
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrBuilderIncomplete)
	assert.Equal(t, StateFailed, b.State())
}

func TestSendSynchronous_MissingSenderIDFailsVerification(t *testing.T) {
	cert, _ := selfSignedKeyPairForClientTest(t, "receiver.example")
	b := NewBuilder().
		WithReceiver("receiver-as2-id", peppolid.NewParticipantID("", "9908:222222222")).
		WithReceiverEndpoint("https://receiver.example/as2", cert).
		WithDocumentType(peppolid.NewDocumentTypeID("", "invoice"), peppolid.NewProcessID("", "process1")).
		WithBusinessDocument(strings.NewReader(invoiceXML))

	resp, err := b.SendSynchronous(context.Background())
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrBuilderIncomplete)
}

func TestSendSynchronous_NoSignerReportsKeyStoreIOError(t *testing.T) {
	cert, _ := selfSignedKeyPairForClientTest(t, "receiver.example")
	b := NewBuilder().
		WithSender("sender-as2-id", "sender@example.org", "", peppolid.NewParticipantID("", "9908:111111111")).
		WithReceiver("receiver-as2-id", peppolid.NewParticipantID("", "9908:222222222")).
		WithReceiverEndpoint("https://receiver.example/as2", cert).
		WithDocumentType(peppolid.NewDocumentTypeID("", "invoice"), peppolid.NewProcessID("", "process1")).
		WithBusinessDocument(strings.NewReader(invoiceXML))

	resp, err := b.SendSynchronous(context.Background())
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrKeyStoreIO)
}

func TestSendSynchronous_TerminalStateRejectsReuse(t *testing.T) {
	b, _ := newReadyBuilder(t)
	_, err := b.SendSynchronous(context.Background())
	require.Error(t, err) // receiver.example does not resolve; transport-stage failure

	_, err = b.SendSynchronous(context.Background())
	assert.ErrorIs(t, err, ErrTerminalStateReached)
}

// rejectingValidator always reports the certificate as untrusted, exercising
// the StrictRejectHandler default.
type rejectingValidator struct{}

func (rejectingValidator) CheckAccessPointCertificate(cert *x509.Certificate, now time.Time, policy security.Policy) security.CheckResult {
	return security.CheckResult{Outcome: security.RevokedOrUnknownIssuer, Reason: "not in trust anchor pool"}
}

func TestSendSynchronous_StrictRejectHandlerFailsOnInvalidCertificate(t *testing.T) {
	b, _ := newReadyBuilder(t)
	b.WithCertificateValidator(rejectingValidator{}, security.Policy{})

	resp, err := b.SendSynchronous(context.Background())
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrBuilderIncomplete)
	assert.Equal(t, StateFailed, b.State())
}

func TestSendSynchronous_PermissiveWarnHandlerAllowsInvalidCertificateThrough(t *testing.T) {
	b, _ := newReadyBuilder(t)
	msgHandler := NewDefaultMessageHandler()
	b.WithCertificateValidator(rejectingValidator{}, security.Policy{}).
		WithMessageHandler(msgHandler).
		WithCertificateCheckResultHandler(PermissiveWarnHandler{Handler: msgHandler})

	// The send itself still fails (no real receiver to dial), but it must
	// fail at the transport stage, not during verification.
	_, err := b.SendSynchronous(context.Background())
	assert.NotErrorIs(t, err, ErrBuilderIncomplete)
	assert.NotEmpty(t, msgHandler.Warnings())
}

// smpServiceMetadataXML builds a minimal SignedServiceMetadata document
// publishing a single endpoint for process, with certDER as its Certificate.
func smpServiceMetadataXML(process, transportProfile, endpointURL string, certDER []byte) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<SignedServiceMetadata xmlns="http://busdox.org/serviceMetadata/publishing/1.0/">
  <ServiceMetadata>
    <ServiceInformation>
      <ProcessList>
        <Process>
          <ProcessIdentifier scheme="cenbii-procid-ubl">%s</ProcessIdentifier>
          <ServiceEndpointList>
            <Endpoint transportProfile="%s">
              <EndpointURI>%s</EndpointURI>
              <Certificate>%s</Certificate>
            </Endpoint>
          </ServiceEndpointList>
        </Process>
      </ProcessList>
    </ServiceInformation>
  </ServiceMetadata>
</SignedServiceMetadata>`, process, transportProfile, endpointURL, base64.StdEncoding.EncodeToString(certDER))
}

// TestSendSynchronous_SMPResolutionFillsReceiverIDAndAlgorithm exercises
// spec.md §4.5 Scenario 1: receiverAS2Id unset, resolved via SMP. The
// resolved endpoint's AS2-v2 transport profile must switch signing to
// SHA-256, and the receiver AS2 id must come from the resolved
// certificate's Subject Common Name.
func TestSendSynchronous_SMPResolutionFillsReceiverIDAndAlgorithm(t *testing.T) {
	senderCert, senderKey := selfSignedKeyPairForClientTest(t, "sender.example")
	receiverCert, _ := selfSignedKeyPairForClientTest(t, "receiver-ap.example")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(smpServiceMetadataXML(
			"urn:process1", string(discovery.TransportProfileAS2v2),
			"https://receiver-ap.example/as2", receiverCert.Raw)))
	}))
	defer srv.Close()

	resolver := discovery.NewResolver(discovery.NewSMPClient(), nil)

	b := NewBuilder().
		WithSender("sender-as2-id", "sender@example.org", "", peppolid.NewParticipantID("", "9908:111111111")).
		WithReceiver("", peppolid.NewParticipantID("", "9908:222222222")).
		WithSMPResolver(resolver, srv.URL).
		WithDocumentType(peppolid.NewDocumentTypeID("", "invoice"), peppolid.NewProcessID("", "urn:process1")).
		WithBusinessDocument(strings.NewReader(invoiceXML)).
		WithSigner(security.NewSMIMESigner(senderCert, senderKey))

	// The send itself still fails (no real receiver to dial), but resolution
	// and derivation must have already happened by then.
	_, err := b.SendSynchronous(context.Background())
	assert.NotErrorIs(t, err, ErrBuilderIncomplete)

	assert.Equal(t, "receiver-ap.example", b.req.ReceiverAS2ID)
	assert.Equal(t, "receiver-ap.example", b.req.ReceiverKeyAlias)
	assert.Equal(t, security.SHA256, b.req.SigningAlgorithm)
	assert.Equal(t, "https://receiver-ap.example/as2", b.req.ReceiverURL)
}

func TestExpandMessageID_SubstitutesAllTokens(t *testing.T) {
	now := time.Date(2026, 8, 3, 10, 30, 0, 0, time.UTC)
	id, err := expandMessageID(DefaultMessageIDFormat, "sender-id", "receiver-id", now)
	require.NoError(t, err)
	assert.Contains(t, id, "sender-id")
	assert.Contains(t, id, "receiver-id")
	assert.Contains(t, id, "03082026")
	assert.NotContains(t, id, "$")
}

func TestDerive_DefaultsReceiverAndSenderKeyAlias(t *testing.T) {
	req := defaultSendRequest()
	req.SenderAS2ID = "sender-id"
	req.ReceiverAS2ID = "receiver-id"

	derived := derive(req)
	assert.Equal(t, "sender-id", derived.SenderKeyAlias)
	assert.Equal(t, "receiver-id", derived.ReceiverKeyAlias)
}

func TestDerive_DoesNotOverwriteExplicitValues(t *testing.T) {
	req := defaultSendRequest()
	req.SenderAS2ID = "sender-id"
	req.SenderKeyAlias = "custom-alias"

	derived := derive(req)
	assert.Equal(t, "custom-alias", derived.SenderKeyAlias)
}
