// Package inbound implements the AS2 receiving servlet: spec.md §4.7.
package inbound

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phax/as2-peppol-client/internal/keystore"
	"github.com/phax/as2-peppol-client/internal/storage"
	"github.com/phax/as2-peppol-client/pkg/as2transport"
	"github.com/phax/as2-peppol-client/pkg/reliability"
	"github.com/phax/as2-peppol-client/pkg/sbd"
	"github.com/phax/as2-peppol-client/pkg/security"
)

// SBDHandler receives every successfully parsed inbound SBD, in registration
// order: spec.md §4.7 step 4.
type SBDHandler interface {
	HandleSBD(ctx context.Context, doc *sbd.Document) error
}

// Config configures a Handler.
type Config struct {
	// KeyStore resolves the partner certificate named by AS2-From and the
	// receiver's own signing key (ReceiverAlias) used to sign the MDN.
	KeyStore      keystore.SignerProvider
	ReceiverAlias string

	// Store records every inbound message for audit, if non-nil.
	Store storage.Store

	// Duplicates, if set, short-circuits redispatch to SBDHandlers when a
	// Message-ID was already seen within its window: the sender's AS2 stack
	// retransmits whenever it fails to receive an MDN in time.
	Duplicates *reliability.DuplicateTracker

	Logger      *slog.Logger
	ReportingUA string

	// IncomingDump, if set, receives a copy of every raw request body.
	IncomingDump io.Writer

	// AbortOnHandlerError stops dispatching to remaining handlers once one
	// returns an error; spec.md §4.7 step 4 default is to continue.
	AbortOnHandlerError bool
}

// Handler implements the inbound AS2 servlet. The zero value is not usable;
// build one with NewHandler.
type Handler struct {
	keyStore      keystore.SignerProvider
	receiverAlias string
	store         storage.Store
	duplicates    *reliability.DuplicateTracker
	logger        *slog.Logger
	reportingUA   string
	incomingDump  io.Writer
	abortOnError  bool

	handlers []SBDHandler
}

// NewHandler builds a Handler from cfg.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reportingUA := cfg.ReportingUA
	if reportingUA == "" {
		reportingUA = "as2-peppol-client"
	}
	return &Handler{
		keyStore:      cfg.KeyStore,
		receiverAlias: cfg.ReceiverAlias,
		store:         cfg.Store,
		duplicates:    cfg.Duplicates,
		logger:        logger,
		reportingUA:   reportingUA,
		incomingDump:  cfg.IncomingDump,
		abortOnError:  cfg.AbortOnHandlerError,
	}
}

// RegisterHandler adds handler to the dispatch list. Handlers run in
// registration order; this replaces the service-loader discovery the
// origin implementation used at startup.
func (h *Handler) RegisterHandler(handler SBDHandler) {
	h.handlers = append(h.handlers, handler)
}

// ServeHTTP implements the inbound pipeline: spec.md §4.7 steps 1-5.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	messageID := r.Header.Get("Message-ID")
	log := h.logger.With(slog.String("message_id", messageID))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("reading AS2 request body", "error", err)
		http.Error(w, "error reading request body", http.StatusBadRequest)
		return
	}
	if h.incomingDump != nil {
		_, _ = h.incomingDump.Write(body)
	}

	senderAS2ID := r.Header.Get("AS2-From")
	alg := requestedMicAlg(r.Header.Get("Disposition-Notification-Options"))

	var (
		mic         []byte
		doc         *sbd.Document
		disposition = "automatic-action/MDN-sent-automatically; processed"
		failureText string
	)

	partnerCert, err := h.keyStore.GetCertificate(ctx, senderAS2ID)
	if err != nil {
		log.Error("no certificate on file for sender", "sender", senderAS2ID, "error", err)
		disposition = failedDisposition("unknown-sender")
		failureText = fmt.Sprintf("no certificate on file for %q", senderAS2ID)
	} else {
		msg, err := as2transport.ReceiveSigned(r.Header, body, partnerCert, alg)
		if err != nil {
			log.Error("signature verification failed", "error", err)
			disposition = failedDisposition("decryption-failed")
			failureText = err.Error()
		} else {
			mic = msg.MIC
			parsed, err := sbd.Parse(msg.Body)
			if err != nil {
				log.Error("parsing SBD failed", "error", err)
				disposition = failedDisposition("unsupported-format")
				failureText = err.Error()
			} else {
				doc = parsed
			}
		}
	}

	duplicate := doc != nil && h.duplicates != nil && h.duplicates.Seen(messageID)

	if doc != nil && !duplicate {
		for _, handler := range h.handlers {
			if err := handler.HandleSBD(ctx, doc); err != nil {
				log.Error("SBD handler failed", "error", err)
				disposition = failedDisposition("unexpected-processing-error")
				failureText = err.Error()
				if h.abortOnError {
					break
				}
			}
		}
	} else if duplicate {
		log.Info("duplicate Message-ID, skipping redispatch", "sender", senderAS2ID)
	}

	if !duplicate {
		h.recordMessage(ctx, log, messageID, doc, mic, alg, disposition)
	}

	signer, err := h.signerFor(ctx)
	if err != nil {
		log.Error("loading MDN signer failed", "error", err)
		http.Error(w, "MDN signing key unavailable", http.StatusInternalServerError)
		return
	}

	mdnBody, contentType, err := as2transport.BuildSignedMDN(as2transport.MDNReport{
		ReportingUA:       h.reportingUA,
		OriginalMessageID: messageID,
		Disposition:       disposition,
		FailureText:       failureText,
		MIC:               mic,
		MicAlgorithm:      alg,
	}, signer, alg)
	if err != nil {
		log.Error("building MDN failed", "error", err)
		http.Error(w, "MDN construction failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("AS2-From", r.Header.Get("AS2-To"))
	w.Header().Set("AS2-To", senderAS2ID)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(mdnBody)
}

func (h *Handler) recordMessage(ctx context.Context, log *slog.Logger, messageID string, doc *sbd.Document, mic []byte, alg security.SigningAlgorithm, disposition string) {
	if h.store == nil || doc == nil {
		return
	}
	record := &storage.MessageRecord{
		MessageID:      strings.Trim(messageID, "<>"),
		Direction:      storage.DirectionInbound,
		SenderAS2ID:    doc.Sender.Value,
		ReceiverAS2ID:  doc.Receiver.Value,
		DocumentType:   doc.DocumentType.URIEncoded(),
		Process:        doc.Process.URIEncoded(),
		SBDHInstanceID: doc.InstanceIdentifier,
		SentAt:         time.Now().UTC(),
		MIC:            encodeMIC(mic),
		MicAlgorithm:   string(alg),
		Disposition:    disposition,
	}
	if err := h.store.StoreMessage(ctx, record); err != nil {
		log.Warn("recording inbound message failed", "error", err)
	}
}

func (h *Handler) signerFor(ctx context.Context) (*security.SMIMESigner, error) {
	signer, err := h.keyStore.GetSigner(ctx, h.receiverAlias)
	if err != nil {
		return nil, fmt.Errorf("loading receiver signing key %q: %w", h.receiverAlias, err)
	}
	cert, err := h.keyStore.GetCertificate(ctx, h.receiverAlias)
	if err != nil {
		return nil, fmt.Errorf("loading receiver certificate %q: %w", h.receiverAlias, err)
	}
	return security.NewSMIMESigner(cert, signer), nil
}

func failedDisposition(reason string) string {
	return fmt.Sprintf("automatic-action/MDN-sent-automatically; failed/error: %s", reason)
}

// requestedMicAlg reads the signed-receipt-micalg parameter off the sender's
// Disposition-Notification-Options header, defaulting to SHA-256 when
// absent or unrecognized.
func requestedMicAlg(header string) security.SigningAlgorithm {
	if strings.Contains(strings.ToLower(header), "sha1") {
		return security.SHA1
	}
	return security.SHA256
}

func encodeMIC(mic []byte) string {
	if len(mic) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(mic)
}
