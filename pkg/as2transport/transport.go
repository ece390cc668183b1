package as2transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/phax/as2-peppol-client/pkg/security"
)

// Factory builds Transport instances, letting the orchestrator swap
// implementations (e.g. in tests) without changing pipeline code.
type Factory interface {
	NewTransport() *Transport
}

// DefaultFactory builds Transports backed by net/http.
type DefaultFactory struct {
	HTTPClient *http.Client
}

// NewTransport implements Factory.
func (f DefaultFactory) NewTransport() *Transport {
	client := f.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Transport{httpClient: client}
}

// Transport implements spec.md §4.6: MIME-pack, S/MIME-sign, HTTP send,
// MDN parse/verify against the receiver AP certificate.
type Transport struct {
	httpClient *http.Client
}

// NewTransport builds a transport with a bare net/http.Client.
func NewTransport() *Transport {
	return &Transport{httpClient: &http.Client{}}
}

// Send executes one synchronous AS2 round trip. Per spec.md §4.6/§7, it
// never returns an error: transport-stage failures are captured on the
// returned Response's Exception field.
func (t *Transport) Send(ctx context.Context, settings Settings, request Request) *Response {
	resp := &Response{}

	mic := security.ComputeMIC(request.Body, settings.SigningAlgorithm)

	signedBody, boundary, err := packSigned(request, settings)
	if err != nil {
		resp.Exception = fmt.Errorf("packing signed body: %w", err)
		return resp
	}

	if settings.OutgoingDump != nil {
		_, _ = settings.OutgoingDump.Write(signedBody)
	}

	sendCtx := ctx
	var cancel context.CancelFunc
	if timeout := effectiveTimeout(settings); timeout > 0 {
		sendCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(sendCtx, http.MethodPost, settings.Receiver.URL, bytes.NewReader(signedBody))
	if err != nil {
		resp.Exception = fmt.Errorf("building request: %w", err)
		return resp
	}

	httpReq.Header.Set("AS2-Version", "1.2")
	httpReq.Header.Set("AS2-From", settings.Sender.AS2ID)
	httpReq.Header.Set("AS2-To", settings.Receiver.AS2ID)
	httpReq.Header.Set("Subject", request.Subject)
	httpReq.Header.Set("Message-ID", settings.MessageID)
	httpReq.Header.Set("Disposition-Notification-To", "dummy")
	httpReq.Header.Set("Disposition-Notification-Options", fmt.Sprintf(
		"signed-receipt-protocol=%s, %s; signed-receipt-micalg=%s, %s",
		settings.Disposition.ProtocolImportance, settings.Disposition.Protocol,
		settings.Disposition.MicAlgImportance, settings.Disposition.MicAlg.MicAlgName()))
	httpReq.Header.Set("Content-Type", fmt.Sprintf(
		`multipart/signed; boundary="%s"; protocol="application/pkcs7-signature"; micalg=%s`,
		boundary, settings.SigningAlgorithm.MicAlgName()))
	httpReq.Header.Set("Content-Transfer-Encoding", request.ContentTransferEncoding)
	for key, values := range settings.CustomHeaders {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	httpClient := t.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	httpResp, err := httpClient.Do(httpReq)
	if err != nil {
		resp.Exception = fmt.Errorf("sending AS2 request: %w", err)
		return resp
	}
	defer httpResp.Body.Close()

	resp.ReceivedAt = time.Now().UTC()
	resp.Headers = httpResp.Header

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		resp.Exception = fmt.Errorf("reading MDN response: %w", err)
		return resp
	}
	resp.RawText = string(rawBody)

	if settings.IncomingDump != nil {
		_, _ = settings.IncomingDump.Write(rawBody)
	}

	if httpResp.StatusCode/100 != 2 {
		resp.Exception = fmt.Errorf("receiver returned HTTP status %d", httpResp.StatusCode)
		return resp
	}

	mdn, err := parseMDN(httpResp.Header, rawBody, settings.Receiver.Certificate, mic)
	if err != nil {
		resp.Exception = err
		return resp
	}

	resp.MDNPresent = true
	resp.MDN = mdn
	return resp
}

func effectiveTimeout(settings Settings) time.Duration {
	if settings.ConnectTimeout == 0 && settings.ReadTimeout == 0 {
		return 0
	}
	return settings.ConnectTimeout + settings.ReadTimeout
}
