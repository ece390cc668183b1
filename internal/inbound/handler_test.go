package inbound

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phax/as2-peppol-client/internal/keystore"
	"github.com/phax/as2-peppol-client/internal/storage"
	"github.com/phax/as2-peppol-client/pkg/as2transport"
	"github.com/phax/as2-peppol-client/pkg/peppolid"
	"github.com/phax/as2-peppol-client/pkg/reliability"
	"github.com/phax/as2-peppol-client/pkg/sbd"
	"github.com/phax/as2-peppol-client/pkg/security"
)

// memKeyStore is a minimal in-memory keystore.SignerProvider for tests: one
// key pair per alias, no persistence.
type memKeyStore struct {
	mu    sync.RWMutex
	keys  map[string]*ecdsa.PrivateKey
	certs map[string]*x509.Certificate
}

func newMemKeyStore() *memKeyStore {
	return &memKeyStore{keys: map[string]*ecdsa.PrivateKey{}, certs: map[string]*x509.Certificate{}}
}

func (m *memKeyStore) add(t *testing.T, alias string) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	cert, key := selfSignedKeyPairForInboundTest(t, alias)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[alias] = key
	m.certs[alias] = cert
	return cert, key
}

func (m *memKeyStore) GetSigner(ctx context.Context, alias string) (keystore.Signer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key, ok := m.keys[alias]
	if !ok {
		return nil, keystore.ErrKeyNotFound
	}
	return &memSigner{key: key, cert: m.certs[alias]}, nil
}

func (m *memKeyStore) GetCertificate(ctx context.Context, alias string) (*x509.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cert, ok := m.certs[alias]
	if !ok {
		return nil, keystore.ErrKeyNotFound
	}
	return cert, nil
}

func (m *memKeyStore) StoreReceiverCertificate(ctx context.Context, alias string, cert *x509.Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.certs[alias] = cert
	return nil
}

func (m *memKeyStore) ListKeys(ctx context.Context) ([]keystore.KeyInfo, error) { return nil, nil }
func (m *memKeyStore) Close() error                                            { return nil }

// memSigner adapts an *ecdsa.PrivateKey to keystore.Signer.
type memSigner struct {
	key  *ecdsa.PrivateKey
	cert *x509.Certificate
}

func (s *memSigner) Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	return s.key.Sign(rand, digest, opts)
}
func (s *memSigner) Public() crypto.PublicKey       { return s.key.Public() }
func (s *memSigner) Certificate() *x509.Certificate { return s.cert }

func selfSignedKeyPairForInboundTest(t *testing.T, cn string) (*x509.Certificate, *ecdsa.PrivateKey) {
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

type capturingSBDHandler struct {
	mu   sync.Mutex
	docs []*sbd.Document
}

func (h *capturingSBDHandler) HandleSBD(ctx context.Context, doc *sbd.Document) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.docs = append(h.docs, doc)
	return nil
}

func buildTestInvoiceElement() *etree.Element {
	invoice := etree.NewElement("Invoice")
	invoice.CreateElement("ID").SetText("INV-1")
	return invoice
}

func buildTestSBDPayload(t *testing.T, senderID, receiverID string) []byte {
	t.Helper()
	doc, err := sbd.Build(
		peppolid.NewParticipantID("", senderID),
		peppolid.NewParticipantID("", receiverID),
		peppolid.NewDocumentTypeID("", "Invoice"),
		peppolid.NewProcessID("", "urn:process"),
		"", "", buildTestInvoiceElement())
	require.NoError(t, err)
	payload, err := sbd.Serialize(doc, nil)
	require.NoError(t, err)
	return payload
}

func TestServeHTTP_DeliversToAllHandlersAndReturnsSignedMDN(t *testing.T) {
	ks := newMemKeyStore()
	receiverCert, _ := ks.add(t, "receiver")
	senderCert, senderKey := ks.add(t, "sender-id")

	handlerA := &capturingSBDHandler{}
	handlerB := &capturingSBDHandler{}

	h := NewHandler(Config{KeyStore: ks, ReceiverAlias: "receiver", Store: storage.NewNoopStore()})
	h.RegisterHandler(handlerA)
	h.RegisterHandler(handlerB)

	server := httptest.NewServer(h)
	defer server.Close()

	payload := buildTestSBDPayload(t, "sender-id", "receiver")

	settings := as2transport.Settings{
		PartnershipName:  "sender-id-receiver",
		Sender:           as2transport.PartnerData{AS2ID: "sender-id", KeyAlias: "sender-id"},
		Receiver:         as2transport.PartnerData{AS2ID: "receiver", KeyAlias: "receiver", URL: server.URL, Certificate: receiverCert},
		SigningAlgorithm: security.SHA256,
		Disposition:      as2transport.DefaultDispositionOptions(security.SHA256),
		MessageID:        "<test-message-1@example>",
		Signer:           security.NewSMIMESigner(senderCert, senderKey),
	}
	request := as2transport.Request{
		Subject:                 "Peppol AS2 Message",
		Body:                    payload,
		ContentType:             "application/xml",
		ContentTransferEncoding: "binary",
	}

	resp := as2transport.NewTransport().Send(context.Background(), settings, request)
	require.NoError(t, resp.Exception)
	require.True(t, resp.MDNPresent)
	assert.Contains(t, resp.MDN.Disposition, "processed")
	assert.True(t, resp.MDN.SignatureVerified)

	require.Len(t, handlerA.docs, 1)
	require.Len(t, handlerB.docs, 1)
	assert.Equal(t, "sender-id", handlerA.docs[0].Sender.Value)
}

func TestServeHTTP_UnknownSenderFailsWithErrorDisposition(t *testing.T) {
	ks := newMemKeyStore()
	receiverCert, _ := ks.add(t, "receiver")
	senderCert, senderKey := ks.add(t, "unregistered-sender")

	h := NewHandler(Config{KeyStore: ks, ReceiverAlias: "receiver"})
	server := httptest.NewServer(h)
	defer server.Close()

	payload := buildTestSBDPayload(t, "unregistered-sender", "receiver")

	settings := as2transport.Settings{
		Sender:           as2transport.PartnerData{AS2ID: "unregistered-sender"},
		Receiver:         as2transport.PartnerData{AS2ID: "receiver", URL: server.URL, Certificate: receiverCert},
		SigningAlgorithm: security.SHA256,
		Disposition:      as2transport.DefaultDispositionOptions(security.SHA256),
		MessageID:        "<test-message-2@example>",
		Signer:           security.NewSMIMESigner(senderCert, senderKey),
	}
	request := as2transport.Request{
		Body:                    payload,
		ContentType:             "application/xml",
		ContentTransferEncoding: "binary",
	}

	resp := as2transport.NewTransport().Send(context.Background(), settings, request)
	require.NoError(t, resp.Exception)
	require.True(t, resp.MDNPresent)
	assert.Contains(t, resp.MDN.Disposition, "failed")
}

func TestServeHTTP_DuplicateMessageIDSkipsRedispatch(t *testing.T) {
	ks := newMemKeyStore()
	receiverCert, _ := ks.add(t, "receiver")
	senderCert, senderKey := ks.add(t, "sender-id")

	handler := &capturingSBDHandler{}

	h := NewHandler(Config{
		KeyStore:      ks,
		ReceiverAlias: "receiver",
		Store:         storage.NewNoopStore(),
		Duplicates:    reliability.NewDuplicateTracker(time.Hour),
	})
	h.RegisterHandler(handler)

	server := httptest.NewServer(h)
	defer server.Close()

	payload := buildTestSBDPayload(t, "sender-id", "receiver")

	send := func() *as2transport.Response {
		settings := as2transport.Settings{
			PartnershipName:  "sender-id-receiver",
			Sender:           as2transport.PartnerData{AS2ID: "sender-id", KeyAlias: "sender-id"},
			Receiver:         as2transport.PartnerData{AS2ID: "receiver", KeyAlias: "receiver", URL: server.URL, Certificate: receiverCert},
			SigningAlgorithm: security.SHA256,
			Disposition:      as2transport.DefaultDispositionOptions(security.SHA256),
			MessageID:        "<test-message-dup@example>",
			Signer:           security.NewSMIMESigner(senderCert, senderKey),
		}
		request := as2transport.Request{
			Body:                    payload,
			ContentType:             "application/xml",
			ContentTransferEncoding: "binary",
		}
		return as2transport.NewTransport().Send(context.Background(), settings, request)
	}

	first := send()
	require.NoError(t, first.Exception)
	require.True(t, first.MDNPresent)
	assert.Contains(t, first.MDN.Disposition, "processed")

	second := send()
	require.NoError(t, second.Exception)
	require.True(t, second.MDNPresent)
	assert.Contains(t, second.MDN.Disposition, "processed")

	require.Len(t, handler.docs, 1)
}
