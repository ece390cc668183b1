package as2client

import (
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"time"

	"github.com/beevik/etree"

	"github.com/phax/as2-peppol-client/pkg/as2transport"
	"github.com/phax/as2-peppol-client/pkg/discovery"
	"github.com/phax/as2-peppol-client/pkg/peppolid"
	"github.com/phax/as2-peppol-client/pkg/sbd"
	"github.com/phax/as2-peppol-client/pkg/security"
	"github.com/phax/as2-peppol-client/pkg/validation"
)

// Builder drives the send pipeline's state machine: spec.md §4.5. It mirrors
// the teacher's fluent With*/Add* builder, but the terminal call is
// SendSynchronous rather than Build, since there is no standalone message
// value to hand to a caller ahead of the send.
type Builder struct {
	req   SendRequest
	state BuilderState
}

// NewBuilder starts a Builder in the Building state with every documented
// default applied.
func NewBuilder() *Builder {
	return &Builder{req: defaultSendRequest(), state: StateBuilding}
}

// State reports the builder's current pipeline stage.
func (b *Builder) State() BuilderState {
	return b.state
}

func (b *Builder) checkNotTerminal() error {
	if b.state.terminal() {
		return ErrTerminalStateReached
	}
	return nil
}

// WithSigner attaches an already-loaded signer, bypassing key-store I/O.
func (b *Builder) WithSigner(signer *security.SMIMESigner) *Builder {
	b.req.Signer = signer
	return b
}

// WithSender sets the sender AS2 identity and its Peppol participant id.
func (b *Builder) WithSender(as2ID, email, keyAlias string, participant peppolid.ParticipantID) *Builder {
	b.req.SenderAS2ID = as2ID
	b.req.SenderEmail = email
	b.req.SenderKeyAlias = keyAlias
	b.req.SenderParticipant = participant
	return b
}

// WithReceiver sets the receiver AS2 identity and its Peppol participant id.
// ReceiverURL/ReceiverCert may be left empty when an SMP resolver is set.
func (b *Builder) WithReceiver(as2ID string, participant peppolid.ParticipantID) *Builder {
	b.req.ReceiverAS2ID = as2ID
	b.req.ReceiverParticipant = participant
	return b
}

// WithReceiverEndpoint bypasses SMP resolution with an already-known
// receiver URL and certificate: spec.md §4.4 Scenario "SMP bypass".
func (b *Builder) WithReceiverEndpoint(url string, cert *x509.Certificate) *Builder {
	b.req.ReceiverURL = url
	b.req.ReceiverCert = cert
	return b
}

// WithDocumentType sets the Peppol document type and process identifiers.
func (b *Builder) WithDocumentType(docType peppolid.DocumentTypeID, process peppolid.ProcessID) *Builder {
	b.req.DocumentType = docType
	b.req.Process = process
	return b
}

// WithBusinessDocument supplies the payload as a stream of XML bytes.
func (b *Builder) WithBusinessDocument(r io.Reader) *Builder {
	b.req.BusinessDocumentReader = r
	b.req.BusinessDocumentElement = nil
	return b
}

// WithBusinessDocumentElement supplies the payload as an already-parsed
// element, skipping the read-and-parse step.
func (b *Builder) WithBusinessDocumentElement(el *etree.Element) *Builder {
	b.req.BusinessDocumentElement = el
	b.req.BusinessDocumentReader = nil
	return b
}

// WithSigningAlgorithm overrides the default (SHA-1, AS2-v1) signing digest.
func (b *Builder) WithSigningAlgorithm(alg security.SigningAlgorithm) *Builder {
	b.req.SigningAlgorithm = alg
	return b
}

// WithCertificateValidator enables the receiver AP certificate check.
func (b *Builder) WithCertificateValidator(validator security.CertificateValidator, policy security.Policy) *Builder {
	b.req.CertificateValidator = validator
	b.req.CertificatePolicy = policy
	return b
}

// WithSMPResolver enables SMP-based endpoint resolution.
func (b *Builder) WithSMPResolver(resolver *discovery.Resolver, smpURL string) *Builder {
	b.req.SMPResolver = resolver
	b.req.SMPURL = smpURL
	return b
}

// WithTransportProfiles overrides the default transport-profile preference
// order used when several endpoints are published for the receiver.
func (b *Builder) WithTransportProfiles(profiles []discovery.TransportProfile) *Builder {
	b.req.PreferredTransportProfiles = profiles
	return b
}

// WithTransportFactory overrides the default net/http-backed transport
// factory, e.g. to supply a client with a non-default TLS posture built by
// pkg/transport.
func (b *Builder) WithTransportFactory(factory as2transport.Factory) *Builder {
	b.req.TransportFactory = factory
	return b
}

// WithValidation attaches a rule-set registry, rule-set id, and result
// handler for pre-send payload validation.
func (b *Builder) WithValidation(registry *validation.Registry, ruleSetID string, handler validation.ResultHandler) *Builder {
	b.req.ValidationRegistry = registry
	b.req.ValidationRuleSetID = ruleSetID
	b.req.ValidationResultHandler = handler
	return b
}

// WithCertificateCheckResultHandler overrides the default StrictRejectHandler.
func (b *Builder) WithCertificateCheckResultHandler(handler CertificateCheckResultHandler) *Builder {
	b.req.CertificateCheckResultHandler = handler
	return b
}

// WithMessageHandler overrides the default accumulating message handler.
func (b *Builder) WithMessageHandler(handler MessageHandler) *Builder {
	b.req.MessageHandler = handler
	return b
}

// WithDumps attaches writers that receive the raw outgoing/incoming bytes,
// independent of success or failure.
func (b *Builder) WithDumps(outgoing, incoming io.Writer) *Builder {
	b.req.OutgoingDump = outgoing
	b.req.IncomingDump = incoming
	return b
}

// SendSynchronous runs the full pipeline of spec.md §4.5 to completion and
// returns the transport Response. It never panics on a business-level
// failure; ErrBuilderIncomplete, ErrCertificateInvalid, ErrPayloadMalformed
// and ErrKeyStoreIO are all returned as ordinary errors.
func (b *Builder) SendSynchronous(ctx context.Context) (*as2transport.Response, error) {
	if err := b.checkNotTerminal(); err != nil {
		return nil, err
	}

	b.req = derive(b.req)
	handler := b.req.MessageHandler
	if handler == nil {
		handler = NewDefaultMessageHandler()
	}

	// Step: resolve the receiver endpoint via SMP when not already known.
	b.state = StateResolving
	if b.req.ReceiverURL == "" || b.req.ReceiverCert == nil {
		if b.req.SMPResolver == nil {
			b.state = StateFailed
			return nil, fmt.Errorf("%w: receiver endpoint is unset and no SMP resolver was configured", ErrBuilderIncomplete)
		}
		endpoint, err := b.req.SMPResolver.Resolve(ctx, b.req.SMPURL, b.req.ReceiverParticipant, b.req.DocumentType, b.req.Process, b.req.PreferredTransportProfiles)
		if err != nil {
			b.state = StateFailed
			return nil, fmt.Errorf("resolving receiver endpoint: %w", err)
		}
		b.req.ReceiverURL = endpoint.URL
		b.req.ReceiverCert = endpoint.Certificate
		b.req.SigningAlgorithm = signingAlgorithmForProfile(endpoint.TransportProfile)
		if b.req.ReceiverAS2ID == "" {
			cn, err := peppolid.SubjectCN(endpoint.Certificate)
			if err != nil {
				b.state = StateFailed
				return nil, fmt.Errorf("%w: deriving receiver AS2 id from resolved certificate: %v", ErrBuilderIncomplete, err)
			}
			b.req.ReceiverAS2ID = cn
		}
		b.req = derive(b.req)
	}

	// Step: verify required fields and the receiver certificate.
	b.state = StateVerifying
	b.verifyRequiredFields(handler)
	var certErr error
	if b.req.CertificateValidator != nil && b.req.ReceiverCert != nil {
		result := b.req.CertificateValidator.CheckAccessPointCertificate(b.req.ReceiverCert, time.Now().UTC(), b.req.CertificatePolicy)
		checker := b.req.CertificateCheckResultHandler
		if checker == nil {
			checker = StrictRejectHandler{}
		}
		if err := checker.OnResult(b.req.ReceiverCert, time.Now().UTC(), result); err != nil {
			handler.Error("receiver certificate check failed", err)
			certErr = err
		}
	}
	if handler.ErrorCount() > 0 {
		b.state = StateFailed
		if certErr != nil {
			return nil, fmt.Errorf("%w: %d error(s) recorded during verification: %w", ErrBuilderIncomplete, handler.ErrorCount(), certErr)
		}
		return nil, fmt.Errorf("%w: %d error(s) recorded during verification", ErrBuilderIncomplete, handler.ErrorCount())
	}
	b.state = StateVerifyingComplete

	// Step: read and/or validate the business payload.
	payload, err := b.resolvePayload()
	if err != nil {
		b.state = StateFailed
		return nil, err
	}
	if b.req.ValidationRegistry != nil && b.req.ValidationRuleSetID != "" {
		if _, err := b.req.ValidationRegistry.Validate(b.req.ValidationRuleSetID, payload, b.req.ValidationResultHandler); err != nil {
			b.state = StateFailed
			return nil, fmt.Errorf("validating business document: %w", err)
		}
	}

	// Step: build and serialize the SBD envelope.
	doc, err := sbd.Build(b.req.SenderParticipant, b.req.ReceiverParticipant, b.req.DocumentType, b.req.Process, b.req.InstanceIdentifier, b.req.UBLVersion, payload)
	if err != nil {
		b.state = StateFailed
		return nil, fmt.Errorf("building SBD: %w", err)
	}
	sbdBytes, err := sbd.Serialize(doc, b.req.SBDHNamespaceContext)
	if err != nil {
		b.state = StateFailed
		return nil, fmt.Errorf("serializing SBD: %w", err)
	}
	if b.req.SBDHBytesObserver != nil {
		b.req.SBDHBytesObserver(sbdBytes)
	}

	// Step: assemble transport settings and request, then send.
	b.state = StateSending
	if b.req.Signer == nil {
		b.state = StateFailed
		return nil, fmt.Errorf("%w: no signer was attached (call WithSigner)", ErrKeyStoreIO)
	}
	messageID, err := expandMessageID(b.req.MessageIDFormat, b.req.SenderAS2ID, b.req.ReceiverAS2ID, time.Now().UTC())
	if err != nil {
		b.state = StateFailed
		return nil, fmt.Errorf("expanding message-id: %w", err)
	}

	settings := as2transport.Settings{
		PartnershipName: partnershipName(b.req.SenderAS2ID, b.req.ReceiverAS2ID),
		Sender: as2transport.PartnerData{
			AS2ID: b.req.SenderAS2ID,
			Email: b.req.SenderEmail,
		},
		Receiver: as2transport.PartnerData{
			AS2ID:       b.req.ReceiverAS2ID,
			URL:         b.req.ReceiverURL,
			Certificate: b.req.ReceiverCert,
		},
		SigningAlgorithm: b.req.SigningAlgorithm,
		Disposition:      as2transport.DefaultDispositionOptions(b.req.SigningAlgorithm),
		MessageID:        messageID,
		ConnectTimeout:   b.req.ConnectTimeout,
		ReadTimeout:      b.req.ReadTimeout,
		OutgoingDump:     b.req.OutgoingDump,
		IncomingDump:     b.req.IncomingDump,
		Signer:           b.req.Signer,
	}

	request := as2transport.Request{
		Subject:                 b.req.AS2Subject,
		Body:                    sbdBytes,
		ContentType:             b.req.MIMEType,
		ContentTransferEncoding: b.req.ContentTransferEncoding,
	}

	factory := b.req.TransportFactory
	if factory == nil {
		factory = as2transport.DefaultFactory{}
	}
	resp := factory.NewTransport().Send(ctx, settings, request)
	if resp.Exception != nil {
		b.state = StateFailed
		return resp, resp.Exception
	}
	b.state = StateCompleted
	return resp, nil
}

func (b *Builder) verifyRequiredFields(handler MessageHandler) {
	if b.req.SenderAS2ID == "" {
		handler.Error("sender AS2 id is required", ErrPayloadMalformed)
	}
	if b.req.ReceiverAS2ID == "" {
		handler.Error("receiver AS2 id is required", ErrPayloadMalformed)
	}
	if b.req.BusinessDocumentReader == nil && b.req.BusinessDocumentElement == nil {
		handler.Error("a business document (reader or element) is required", ErrPayloadMalformed)
	}
	if b.req.BusinessDocumentReader != nil && b.req.BusinessDocumentElement != nil {
		handler.Error("exactly one of business document reader or element may be set", ErrPayloadMalformed)
	}
}

func (b *Builder) resolvePayload() (*etree.Element, error) {
	if b.req.BusinessDocumentElement != nil {
		return b.req.BusinessDocumentElement, nil
	}
	data, err := io.ReadAll(b.req.BusinessDocumentReader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading business document: %v", ErrPayloadMalformed, err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: parsing business document: %v", ErrPayloadMalformed, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%w: business document has no root element", ErrPayloadMalformed)
	}
	return doc.Root(), nil
}
