package as2transport

import (
	"bufio"
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/phax/as2-peppol-client/pkg/security"
)

// parseMDN reads a multipart/signed MDN response, verifies its PKCS#7
// signature against the partner certificate, and checks that the
// Received-Content-MIC it reports matches expectedMIC: spec.md §4.6.
func parseMDN(headers http.Header, body []byte, partnerCert *x509.Certificate, expectedMIC []byte) (*MDN, error) {
	mediaType, params, err := mime.ParseMediaType(headers.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("parsing Content-Type: %w", err)
	}
	if !strings.EqualFold(mediaType, "multipart/signed") {
		return nil, fmt.Errorf("%w: expected multipart/signed MDN, got %q", ErrMDNVerification, mediaType)
	}

	reader := multipart.NewReader(bytes.NewReader(body), params["boundary"])

	reportHeader, signedBytes, reportBody, err := readSignedPart(reader)
	if err != nil {
		return nil, fmt.Errorf("reading MDN report part: %w", err)
	}

	signatureBytes, err := readSignaturePart(reader)
	if err != nil {
		return nil, fmt.Errorf("reading MDN signature part: %w", err)
	}

	verified := true
	if _, err := security.VerifyDetached(signedBytes, signatureBytes, partnerCert); err != nil {
		verified = false
	}

	disposition, micText, micAlgName, humanText, err := parseDispositionReport(reportHeader.Get("Content-Type"), reportBody)
	if err != nil {
		return nil, fmt.Errorf("parsing disposition-notification: %w", err)
	}

	mic, err := decodeMIC(micText)
	if err != nil {
		return nil, fmt.Errorf("decoding Received-Content-MIC: %w", err)
	}

	if !verified {
		return nil, fmt.Errorf("%w: signature did not verify against partner certificate", ErrMDNVerification)
	}
	if expectedMIC != nil && !bytes.Equal(mic, expectedMIC) {
		return nil, fmt.Errorf("%w: MIC mismatch", ErrMDNVerification)
	}

	return &MDN{
		Disposition:       disposition,
		MIC:               mic,
		MicAlgorithm:      security.SigningAlgorithm(micAlgName),
		Text:              humanText,
		SignatureVerified: verified,
	}, nil
}

// readSignedPart reads the first (protected) part of a multipart/signed
// entity, returning both its header and the canonical "headers + blank line
// + body" byte sequence the signature was computed over.
func readSignedPart(reader *multipart.Reader) (textproto.MIMEHeader, []byte, []byte, error) {
	part, err := reader.NextPart()
	if err != nil {
		return nil, nil, nil, err
	}
	defer part.Close()

	raw, err := io.ReadAll(part)
	if err != nil {
		return nil, nil, nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Content-Type: %s\r\n", part.Header.Get("Content-Type"))
	if cte := part.Header.Get("Content-Transfer-Encoding"); cte != "" {
		fmt.Fprintf(&buf, "Content-Transfer-Encoding: %s\r\n", cte)
	}
	if ce := part.Header.Get("Content-Encoding"); ce != "" {
		fmt.Fprintf(&buf, "Content-Encoding: %s\r\n", ce)
	}
	buf.WriteString("\r\n")
	buf.Write(raw)

	return part.Header, buf.Bytes(), raw, nil
}

// readSignaturePart reads the detached PKCS#7 signature part, decoding its
// base64 Content-Transfer-Encoding.
func readSignaturePart(reader *multipart.Reader) ([]byte, error) {
	part, err := reader.NextPart()
	if err != nil {
		return nil, err
	}
	defer part.Close()
	raw, err := io.ReadAll(part)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(part.Header.Get("Content-Transfer-Encoding"), "base64") {
		return base64.StdEncoding.DecodeString(strings.Join(strings.Fields(string(raw)), ""))
	}
	return raw, nil
}

// parseDispositionReport extracts Disposition/Received-Content-MIC from
// either a bare message/disposition-notification part or a multipart/report
// wrapping one alongside a human-readable text/plain part.
func parseDispositionReport(contentType string, body []byte) (disposition, micText, micAlg, humanText string, err error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", "", "", "", err
	}

	switch {
	case strings.EqualFold(mediaType, "message/disposition-notification"):
		disposition, micText, micAlg, err = parseDispositionFields(body)
		return disposition, micText, micAlg, "", err

	case strings.EqualFold(mediaType, "multipart/report"):
		sub := multipart.NewReader(bytes.NewReader(body), params["boundary"])
		for {
			part, err := sub.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return "", "", "", "", err
			}
			data, err := io.ReadAll(part)
			if err != nil {
				return "", "", "", "", err
			}
			ct := strings.ToLower(part.Header.Get("Content-Type"))
			switch {
			case strings.HasPrefix(ct, "text/plain"):
				humanText = string(data)
			case strings.HasPrefix(ct, "message/disposition-notification"):
				disposition, micText, micAlg, err = parseDispositionFields(data)
				if err != nil {
					return "", "", "", "", err
				}
			}
		}
		return disposition, micText, micAlg, humanText, nil

	default:
		return "", "", "", "", fmt.Errorf("unsupported disposition report content type %q", mediaType)
	}
}

// parseDispositionFields reads the Disposition and Received-Content-MIC
// header fields out of a message/disposition-notification body.
func parseDispositionFields(data []byte) (disposition, micText, micAlg string, err error) {
	reader := textproto.NewReader(bufio.NewReader(bytes.NewReader(data)))
	header, err := reader.ReadMIMEHeader()
	if err != nil && !errors.Is(err, io.EOF) {
		return "", "", "", err
	}

	disposition = header.Get("Disposition")

	micField := header.Get("Received-Content-MIC")
	parts := strings.SplitN(micField, ",", 2)
	if len(parts) == 2 {
		micText = strings.TrimSpace(parts[0])
		micAlg = strings.TrimSpace(parts[1])
	}
	return disposition, micText, micAlg, nil
}
