// Package discovery implements the SMP Resolver Adapter: SMP metadata
// fetch/parse, SML DNS zone resolution, and transport-profile-ordered
// endpoint selection.
package discovery

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phax/as2-peppol-client/pkg/peppolid"
)

// TransportProfile identifies a Peppol wire-protocol variant for an endpoint.
type TransportProfile string

const (
	TransportProfileAS2v1 TransportProfile = "peppol-transport-as2-v1_0"
	TransportProfileAS2v2 TransportProfile = "peppol-transport-as2-v2_0"
)

// DefaultTransportProfiles is the default preference order: spec.md §6.
var DefaultTransportProfiles = []TransportProfile{TransportProfileAS2v2, TransportProfileAS2v1}

var (
	// ErrNoEndpoint is returned when the SMP responded but no endpoint
	// matches any requested transport profile.
	ErrNoEndpoint = errors.New("no matching endpoint found in service metadata")
	// ErrLookupFailed covers SMP network and parse failures.
	ErrLookupFailed = errors.New("SMP lookup failed")
)

// EndpointInfo is the resolved AP endpoint: spec.md §3.
type EndpointInfo struct {
	URL              string
	Certificate      *x509.Certificate
	TransportProfile TransportProfile
}

// SMPClientConfig configures the SMP HTTP client.
type SMPClientConfig struct {
	HTTPClient *http.Client
	UserAgent  string
}

// SMPClient fetches and parses signed Peppol service metadata.
type SMPClient struct {
	httpClient *http.Client
	userAgent  string
}

// NewSMPClient builds an SMP client with sensible defaults.
func NewSMPClient() *SMPClient {
	return &SMPClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  "as2-peppol-client/1.0",
	}
}

// NewSMPClientWithConfig builds an SMP client from explicit configuration.
func NewSMPClientWithConfig(cfg SMPClientConfig) *SMPClient {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "as2-peppol-client/1.0"
	}
	return &SMPClient{httpClient: client, userAgent: ua}
}

// signedServiceMetadata mirrors the subset of the SMP 1.0 response consumed
// per spec.md §6: SignedServiceMetadata → ServiceMetadata → ServiceInformation
// → ProcessList → Process → ServiceEndpointList → Endpoint.
type signedServiceMetadata struct {
	XMLName         xml.Name `xml:"SignedServiceMetadata"`
	ServiceMetadata struct {
		ServiceInformation struct {
			ProcessList struct {
				Processes []struct {
					ProcessIdentifier struct {
						Value  string `xml:",chardata"`
						Scheme string `xml:"scheme,attr"`
					} `xml:"ProcessIdentifier"`
					ServiceEndpointList struct {
						Endpoints []struct {
							TransportProfile string `xml:"transportProfile,attr"`
							EndpointURI      string `xml:"EndpointURI"`
							Certificate      string `xml:"Certificate"`
							Extension        struct {
								InnerXML []byte `xml:",innerxml"`
							} `xml:"Extension"`
						} `xml:"Endpoint"`
					} `xml:"ServiceEndpointList"`
				} `xml:"Process"`
			} `xml:"ProcessList"`
		} `xml:"ServiceInformation"`
	} `xml:"ServiceMetadata"`
}

// rawEndpoint is a single Process/Endpoint pair as read off the wire, kept in
// document order so ties within a transport profile resolve correctly.
type rawEndpoint struct {
	processValue     string
	transportProfile TransportProfile
	url              string
	certB64          string
	extension        []byte
}

// fetch retrieves and parses ServiceMetadata for (receiver, docType).
func (c *SMPClient) fetch(ctx context.Context, smpURL string, receiver peppolid.ParticipantID, docType peppolid.DocumentTypeID) ([]rawEndpoint, error) {
	reqURL := fmt.Sprintf("%s/%s/services/%s",
		strings.TrimRight(smpURL, "/"),
		url.PathEscape(receiver.URIEncoded()),
		url.PathEscape(docType.URIEncoded()),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: SMP returned status %d", ErrLookupFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrLookupFailed, err)
	}

	var ssm signedServiceMetadata
	if err := xml.Unmarshal(body, &ssm); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %v", ErrLookupFailed, err)
	}

	var endpoints []rawEndpoint
	for _, p := range ssm.ServiceMetadata.ServiceInformation.ProcessList.Processes {
		for _, ep := range p.ServiceEndpointList.Endpoints {
			var extension []byte
			if len(ep.Extension.InnerXML) > 0 {
				extension = append(append([]byte("<Extension>"), ep.Extension.InnerXML...), "</Extension>"...)
			}
			endpoints = append(endpoints, rawEndpoint{
				processValue:     p.ProcessIdentifier.Value,
				transportProfile: TransportProfile(ep.TransportProfile),
				url:              ep.EndpointURI,
				certB64:          ep.Certificate,
				extension:        extension,
			})
		}
	}
	return endpoints, nil
}

// decodeCertificate parses the SMP's (possibly whitespace-wrapped) Base64 DER
// certificate field.
func decodeCertificate(b64 string) (*x509.Certificate, error) {
	clean := strings.Join(strings.Fields(b64), "")
	der, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("decoding certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate: %w", err)
	}
	return cert, nil
}
