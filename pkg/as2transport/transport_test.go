package as2transport

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

	"github.com/phax/as2-peppol-client/pkg/security"
)

func selfSignedKeyPair(t *testing.T, cn string) (*x509.Certificate, *ecdsa.PrivateKey) {
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

func writeMDNResponse(t *testing.T, w http.ResponseWriter, mic []byte, signer *security.SMIMESigner, alg security.SigningAlgorithm) {
	t.Helper()

	reportBoundary := "report-boundary"
	reportHeader := fmt.Sprintf("Content-Type: message/disposition-notification\r\n\r\n")
	micB64 := micBase64(mic)
	dispositionBody := fmt.Sprintf(
		"Reporting-UA: test-ap\r\nDisposition: automatic-action/MDN-sent-automatically; processed\r\nReceived-Content-MIC: %s, %s\r\n",
		micB64, alg.MicAlgName())

	var reportBuf strings.Builder
	reportBuf.WriteString("--" + reportBoundary + "\r\n")
	reportBuf.WriteString("Content-Type: text/plain\r\n\r\n")
	reportBuf.WriteString("The message has been processed.\r\n")
	reportBuf.WriteString("--" + reportBoundary + "\r\n")
	reportBuf.WriteString(reportHeader)
	reportBuf.WriteString(dispositionBody)
	reportBuf.WriteString("--" + reportBoundary + "--\r\n")

	reportContentType := fmt.Sprintf("multipart/report; report-type=disposition-notification; boundary=%s", reportBoundary)
	signedPart1 := fmt.Sprintf("Content-Type: %s\r\n\r\n%s", reportContentType, reportBuf.String())

	signature, err := signer.Sign([]byte(signedPart1), alg)
	require.NoError(t, err)

	outerBoundary := "outer-boundary"
	w.Header().Set("Content-Type", fmt.Sprintf(`multipart/signed; boundary="%s"; protocol="application/pkcs7-signature"; micalg=%s`, outerBoundary, alg.MicAlgName()))
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "--%s\r\n", outerBoundary)
	fmt.Fprint(w, signedPart1)
	fmt.Fprintf(w, "\r\n--%s\r\n", outerBoundary)
	fmt.Fprint(w, "Content-Type: application/pkcs7-signature\r\nContent-Transfer-Encoding: base64\r\n\r\n")
	fmt.Fprint(w, base64Wrapped(signature))
	fmt.Fprintf(w, "--%s--\r\n", outerBoundary)
}

func micBase64(mic []byte) string {
	return base64.StdEncoding.EncodeToString(mic)
}

func TestTransport_Send_SuccessfulMDN(t *testing.T) {
	receiverCert, receiverKey := selfSignedKeyPair(t, "Receiver AP")
	receiverSigner := security.NewSMIMESigner(receiverCert, receiverKey)

	senderCert, senderKey := selfSignedKeyPair(t, "Sender AP")
	senderSigner := security.NewSMIMESigner(senderCert, senderKey)

	body := []byte("<StandardBusinessDocument/>")
	expectedMIC := security.ComputeMIC(body, security.SHA256)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMDNResponse(t, w, expectedMIC, receiverSigner, security.SHA256)
	}))
	defer srv.Close()

	settings := Settings{
		PartnershipName:  "POP000092-POP000092",
		Sender:           PartnerData{AS2ID: "POP000092"},
		Receiver:         PartnerData{AS2ID: "POP000092", URL: srv.URL, Certificate: receiverCert},
		SigningAlgorithm: security.SHA256,
		Disposition:      DefaultDispositionOptions(security.SHA256),
		MessageID:        "test-message-id",
		Signer:           senderSigner,
	}

	request := Request{
		Subject:                 "Peppol AS2 Message",
		Body:                    body,
		ContentType:             "application/xml",
		ContentTransferEncoding: "binary",
	}

	transport := NewTransport()
	resp := transport.Send(context.Background(), settings, request)

	require.NoError(t, resp.Exception)
	assert.True(t, resp.MDNPresent)
	require.NotNil(t, resp.MDN)
	assert.True(t, resp.MDN.SignatureVerified)
	assert.Equal(t, expectedMIC, resp.MDN.MIC)
	assert.Contains(t, resp.MDN.Disposition, "processed")
}

func TestTransport_Send_MissingSignerReportedAsException(t *testing.T) {
	settings := Settings{
		Receiver: PartnerData{URL: "http://localhost:0"},
	}
	request := Request{Body: []byte("x"), ContentType: "application/xml", ContentTransferEncoding: "binary"}

	transport := NewTransport()
	resp := transport.Send(context.Background(), settings, request)

	assert.Error(t, resp.Exception)
	assert.False(t, resp.MDNPresent)
}
