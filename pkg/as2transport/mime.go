package as2transport

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/phax/as2-peppol-client/pkg/compression"
)

// packSigned wraps request into a multipart/signed MIME entity per RFC 1847,
// signing the first part with settings.Signer. Returns the complete body and
// the boundary used, for the Content-Type header.
func packSigned(request Request, settings Settings) ([]byte, string, error) {
	if settings.Signer == nil {
		return nil, "", fmt.Errorf("no S/MIME signer configured")
	}

	part1, err := buildContentPart(request)
	if err != nil {
		return nil, "", err
	}

	signature, err := settings.Signer.Sign(part1, settings.SigningAlgorithm)
	if err != nil {
		return nil, "", fmt.Errorf("signing message: %w", err)
	}

	boundary := "----=_AS2_" + uuid.NewString()

	var buf bytes.Buffer
	buf.WriteString("This is an S/MIME signed message\r\n")
	buf.WriteString("--" + boundary + "\r\n")
	buf.Write(part1)
	buf.WriteString("\r\n--" + boundary + "\r\n")
	buf.WriteString("Content-Type: application/pkcs7-signature; name=\"smime.p7s\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	buf.WriteString("Content-Disposition: attachment; filename=\"smime.p7s\"\r\n\r\n")
	buf.WriteString(base64Wrapped(signature))
	buf.WriteString("\r\n--" + boundary + "--\r\n")

	return buf.Bytes(), boundary, nil
}

// buildContentPart renders the business-document MIME part: headers, a
// blank line, then the raw body, all CRLF-terminated so the bytes fed to the
// signer match what is transmitted on the wire. When request.Compress is
// set, the body is gzipped and a Content-Encoding header added; the
// receiving side reverses this in ReceiveSigned.
func buildContentPart(request Request) ([]byte, error) {
	body := request.Body
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("Content-Type: %s\r\n", request.ContentType))
	buf.WriteString(fmt.Sprintf("Content-Transfer-Encoding: %s\r\n", request.ContentTransferEncoding))
	if request.Compress {
		compressed, err := compression.NewCompressor().Compress(body)
		if err != nil {
			return nil, fmt.Errorf("compressing content part: %w", err)
		}
		body = compressed
		buf.WriteString("Content-Encoding: gzip\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

func base64Wrapped(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var sb strings.Builder
	for i := 0; i < len(encoded); i += 76 {
		end := i + 76
		if end > len(encoded) {
			end = len(encoded)
		}
		sb.WriteString(encoded[i:end])
		sb.WriteString("\r\n")
	}
	return sb.String()
}
