package as2transport

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/phax/as2-peppol-client/pkg/compression"
	"github.com/phax/as2-peppol-client/pkg/security"
)

// InboundMessage is a decrypted, signature-verified AS2 request body:
// spec.md §4.7 step 2.
type InboundMessage struct {
	ContentType string
	Body        []byte
	SignerCert  *x509.Certificate
	MIC         []byte
}

// ReceiveSigned parses a multipart/signed AS2 request, verifies its detached
// PKCS#7 signature against partnerCert, and computes the MIC that the
// outbound MDN will report back. Mirrors parseMDN's part-reading but on a
// request body rather than an MDN response.
func ReceiveSigned(headers http.Header, body []byte, partnerCert *x509.Certificate, alg security.SigningAlgorithm) (*InboundMessage, error) {
	mediaType, params, err := mime.ParseMediaType(headers.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("parsing Content-Type: %w", err)
	}
	if !strings.EqualFold(mediaType, "multipart/signed") {
		return nil, fmt.Errorf("expected multipart/signed AS2 message, got %q", mediaType)
	}

	reader := multipart.NewReader(bytes.NewReader(body), params["boundary"])

	contentHeader, signedBytes, contentBody, err := readSignedPart(reader)
	if err != nil {
		return nil, fmt.Errorf("reading AS2 content part: %w", err)
	}

	signature, err := readSignaturePart(reader)
	if err != nil {
		return nil, fmt.Errorf("reading AS2 signature part: %w", err)
	}

	signerCert, err := security.VerifyDetached(signedBytes, signature, partnerCert)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(contentHeader.Get("Content-Encoding"), "gzip") {
		contentBody, err = compression.NewCompressor().Decompress(contentBody)
		if err != nil {
			return nil, fmt.Errorf("decompressing content part: %w", err)
		}
	}

	return &InboundMessage{
		ContentType: contentHeader.Get("Content-Type"),
		Body:        contentBody,
		SignerCert:  signerCert,
		MIC:         security.ComputeMIC(contentBody, alg),
	}, nil
}

// MDNReport holds the fields needed to render a signed disposition
// notification: spec.md §4.7 step 5.
type MDNReport struct {
	ReportingUA       string
	OriginalMessageID string
	Disposition       string
	FailureText       string
	MIC               []byte
	MicAlgorithm      security.SigningAlgorithm
}

// BuildSignedMDN renders report as a signed multipart/report MDN body, using
// the same MIME-wrap-then-sign construction as packSigned applies to
// outbound content.
func BuildSignedMDN(report MDNReport, signer *security.SMIMESigner, alg security.SigningAlgorithm) (body []byte, contentType string, err error) {
	reportPart := buildDispositionReportPart(report)

	signature, err := signer.Sign(reportPart, alg)
	if err != nil {
		return nil, "", fmt.Errorf("signing MDN: %w", err)
	}

	boundary := "----=_MDN_" + uuid.NewString()

	var buf bytes.Buffer
	buf.WriteString("--" + boundary + "\r\n")
	buf.Write(reportPart)
	buf.WriteString("\r\n--" + boundary + "\r\n")
	buf.WriteString("Content-Type: application/pkcs7-signature; name=\"smime.p7s\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	buf.WriteString("Content-Disposition: attachment; filename=\"smime.p7s\"\r\n\r\n")
	buf.WriteString(base64Wrapped(signature))
	buf.WriteString("\r\n--" + boundary + "--\r\n")

	contentType = fmt.Sprintf(
		`multipart/signed; boundary="%s"; protocol="application/pkcs7-signature"; micalg=%s`,
		boundary, alg.MicAlgName())
	return buf.Bytes(), contentType, nil
}

func buildDispositionReportPart(report MDNReport) []byte {
	reportBoundary := "----=_MDN_Report_" + uuid.NewString()

	var notif bytes.Buffer
	fmt.Fprintf(&notif, "Reporting-UA: %s\r\n", report.ReportingUA)
	fmt.Fprintf(&notif, "Original-Recipient: rfc822; %s\r\n", report.OriginalMessageID)
	fmt.Fprintf(&notif, "Final-Recipient: rfc822; %s\r\n", report.OriginalMessageID)
	fmt.Fprintf(&notif, "Original-Message-ID: %s\r\n", report.OriginalMessageID)
	fmt.Fprintf(&notif, "Disposition: %s\r\n", report.Disposition)
	if len(report.MIC) > 0 {
		fmt.Fprintf(&notif, "Received-Content-MIC: %s, %s\r\n",
			base64.StdEncoding.EncodeToString(report.MIC), report.MicAlgorithm.MicAlgName())
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Content-Type: multipart/report; report-type=disposition-notification; boundary=\"%s\"\r\n\r\n", reportBoundary)
	buf.WriteString("--" + reportBoundary + "\r\n")
	buf.WriteString("Content-Type: text/plain\r\n\r\n")
	buf.WriteString(humanReadableText(report))
	buf.WriteString("\r\n--" + reportBoundary + "\r\n")
	buf.WriteString("Content-Type: message/disposition-notification\r\n\r\n")
	buf.Write(notif.Bytes())
	buf.WriteString("\r\n--" + reportBoundary + "--\r\n")
	return buf.Bytes()
}

func humanReadableText(report MDNReport) string {
	if report.FailureText != "" {
		return report.FailureText
	}
	if strings.Contains(report.Disposition, "processed") {
		return "The message was received and processed successfully."
	}
	return "The message could not be processed."
}
