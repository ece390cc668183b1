package as2transport

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phax/as2-peppol-client/pkg/security"
)

func headersWithContentType(contentType string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	return h
}

func TestReceiveSigned_RoundTripsWithPackSigned(t *testing.T) {
	cert, key := selfSignedKeyPair(t, "Sender AP")
	signer := security.NewSMIMESigner(cert, key)

	body := []byte("<StandardBusinessDocument/>")
	settings := Settings{SigningAlgorithm: security.SHA256, Signer: signer}
	request := Request{Body: body, ContentType: "application/xml", ContentTransferEncoding: "binary"}

	signedBody, boundary, err := packSigned(request, settings)
	require.NoError(t, err)

	contentType := `multipart/signed; boundary="` + boundary + `"; protocol="application/pkcs7-signature"; micalg=sha256`

	msg, err := ReceiveSigned(headersWithContentType(contentType), signedBody, cert, security.SHA256)
	require.NoError(t, err)
	assert.Equal(t, body, msg.Body)
	assert.Equal(t, "application/xml", msg.ContentType)
}

func TestReceiveSigned_DecompressesGzippedContent(t *testing.T) {
	cert, key := selfSignedKeyPair(t, "Sender AP")
	signer := security.NewSMIMESigner(cert, key)

	repeated := "<StandardBusinessDocument>field value repeats here</StandardBusinessDocument>"
	body := []byte(repeated + repeated + repeated)
	settings := Settings{SigningAlgorithm: security.SHA256, Signer: signer}
	request := Request{Body: body, ContentType: "application/xml", ContentTransferEncoding: "binary", Compress: true}

	signedBody, boundary, err := packSigned(request, settings)
	require.NoError(t, err)

	contentType := `multipart/signed; boundary="` + boundary + `"; protocol="application/pkcs7-signature"; micalg=sha256`

	msg, err := ReceiveSigned(headersWithContentType(contentType), signedBody, cert, security.SHA256)
	require.NoError(t, err)
	assert.Equal(t, body, msg.Body)
}
