// Package as2client implements the builder state machine that drives SMP
// resolution, verification, SBD construction, and the synchronous AS2 send:
// spec.md §4.5.
package as2client

import (
	"crypto/x509"
	"io"
	"time"

	"github.com/beevik/etree"

	"github.com/phax/as2-peppol-client/pkg/as2transport"
	"github.com/phax/as2-peppol-client/pkg/discovery"
	"github.com/phax/as2-peppol-client/pkg/peppolid"
	"github.com/phax/as2-peppol-client/pkg/security"
	"github.com/phax/as2-peppol-client/pkg/validation"
)

// DefaultAS2Subject is applied by derive when SendRequest.AS2Subject is empty.
const DefaultAS2Subject = "Peppol AS2 Message"

// DefaultMessageIDFormat is the template described in spec.md §6.
const DefaultMessageIDFormat = "OpenPEPPOL-$date.ddMMyyyyHHmmssZ$-$rand.1234$@$msg.sender.as2_id$_$msg.receiver.as2_id$"

// DefaultContentTransferEncoding is applied when unset.
const DefaultContentTransferEncoding = "binary"

// DefaultMIMEType is applied when unset.
const DefaultMIMEType = "application/xml"

// SendRequest is the builder's mutable aggregate: spec.md §3.
type SendRequest struct {
	// Key-store binding. SendSynchronous does not read these fields and no
	// builder method sets them; signing uses Signer.
	KeyStoreType              string
	KeyStoreFile              string
	KeyStoreBytes             []byte
	KeyStorePassword          string
	SaveKeyStoreChangesToFile bool

	AS2Subject string

	SenderAS2ID      string
	SenderEmail      string
	SenderKeyAlias   string
	ReceiverAS2ID    string
	ReceiverKeyAlias string
	ReceiverURL      string
	ReceiverCert     *x509.Certificate

	SigningAlgorithm security.SigningAlgorithm
	MessageIDFormat  string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	SenderParticipant   peppolid.ParticipantID
	ReceiverParticipant peppolid.ParticipantID
	DocumentType        peppolid.DocumentTypeID
	Process              peppolid.ProcessID

	// Exactly one of BusinessDocumentReader/BusinessDocumentElement is set.
	BusinessDocumentReader  io.Reader
	BusinessDocumentElement *etree.Element

	ValidationRuleSetID  string
	SBDHNamespaceContext map[string]string
	SBDHBytesObserver    func([]byte)

	ContentTransferEncoding string
	MIMEType                string
	UseDataHandler          bool

	OutgoingDump io.Writer
	IncomingDump io.Writer

	SMPResolver                *discovery.Resolver
	SMPURL                     string
	PreferredTransportProfiles []discovery.TransportProfile

	MessageHandler                MessageHandler
	CertificateCheckResultHandler CertificateCheckResultHandler
	CertificateValidator          security.CertificateValidator
	CertificatePolicy             security.Policy

	ValidationRegistry      *validation.Registry
	ValidationResultHandler validation.ResultHandler

	TransportFactory as2transport.Factory

	// Signer produces the detached CMS signature over the outbound body.
	// Populated by the caller through WithSigner; nothing in this package
	// loads it from the KeyStore* fields.
	Signer *security.SMIMESigner

	InstanceIdentifier string
	UBLVersion         string
}

// defaultSendRequest returns a SendRequest with every documented default
// applied: spec.md §3/§6.
func defaultSendRequest() SendRequest {
	return SendRequest{
		KeyStoreType:               "PKCS12",
		AS2Subject:                 DefaultAS2Subject,
		MessageIDFormat:            DefaultMessageIDFormat,
		ConnectTimeout:             30 * time.Second,
		ReadTimeout:                60 * time.Second,
		ContentTransferEncoding:    DefaultContentTransferEncoding,
		MIMEType:                   DefaultMIMEType,
		UseDataHandler:             true,
		PreferredTransportProfiles: discovery.DefaultTransportProfiles,
		SigningAlgorithm:           security.SHA1,
		MessageHandler:             NewDefaultMessageHandler(),
		CertificateCheckResultHandler: StrictRejectHandler{},
		TransportFactory:              as2transport.DefaultFactory{},
	}
}
