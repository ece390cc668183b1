// Package as2transport wraps the outbound AS2 wire protocol: MIME-packing
// the signed body, sending it over HTTP, and parsing/verifying the returned
// MDN receipt. Spec.md §4.6.
package as2transport

import (
	"crypto/x509"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/phax/as2-peppol-client/pkg/security"
)

// ErrMDNVerification covers an unsigned MDN, a signature mismatch, or a MIC
// mismatch against the outbound body.
var ErrMDNVerification = errors.New("MDN verification failed")

// PartnerData identifies one side of an AS2 partnership.
type PartnerData struct {
	AS2ID       string
	KeyAlias    string
	Email       string             // sender only
	URL         string             // receiver only
	Certificate *x509.Certificate  // receiver only
}

// DispositionOptions mirrors the fields assembled into the
// Disposition-Notification-Options header: spec.md §4.5 step 9.
type DispositionOptions struct {
	MicAlg             security.SigningAlgorithm
	MicAlgImportance   string
	Protocol           string
	ProtocolImportance string
}

// DefaultDispositionOptions returns the options the orchestrator assembles
// by default: required MIC algorithm and required pkcs7-signature protocol.
func DefaultDispositionOptions(alg security.SigningAlgorithm) DispositionOptions {
	return DispositionOptions{
		MicAlg:             alg,
		MicAlgImportance:   "required",
		Protocol:           "pkcs7-signature",
		ProtocolImportance: "required",
	}
}

// Settings is the fully assembled partnership and request configuration the
// orchestrator hands to a Transport.
type Settings struct {
	PartnershipName  string
	Sender           PartnerData
	Receiver         PartnerData
	SigningAlgorithm security.SigningAlgorithm
	Disposition      DispositionOptions
	MessageID        string
	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration
	CustomHeaders    http.Header
	OutgoingDump     io.Writer
	IncomingDump     io.Writer
	Signer           *security.SMIMESigner
}

// Request is the business-level outbound message body, assembled by the
// orchestrator in step 10 of spec.md §4.5.
type Request struct {
	Subject                 string
	Body                    []byte
	ContentType             string
	ContentTransferEncoding string

	// Compress gzips Body before it is MIME-packed and signed, per spec.md
	// §4.7 step 2's "decompress where applicable". The MIC is still computed
	// over the uncompressed Body (transport.go), so compression is
	// transparent to MDN verification.
	Compress bool
}

// MDN is the parsed, signature-verified Message Disposition Notification.
type MDN struct {
	Disposition       string
	MIC               []byte
	MicAlgorithm      security.SigningAlgorithm
	Text              string
	SignatureVerified bool
}

// Response is always returned by Send, never replaced by an error: transport
// failures are reported as Exception so callers can inspect headers and MIC
// outcomes regardless of outcome (spec.md §4.6/§7).
type Response struct {
	MDNPresent bool
	MDN        *MDN
	ReceivedAt time.Time
	Headers    http.Header
	Exception  error
	RawText    string
}
