package discovery

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
)

// ExtensionCertPub identifies the certificate-publishing SMP Extension some
// Peppol access points use instead of (or alongside) the endpoint's inline
// Certificate element.
const ExtensionCertPub = "urn:fdc:peppol:certpub"

// resolveEndpointCertificate prefers the endpoint's inline certificate and
// falls back to an Extension-published one when the inline field is empty.
func resolveEndpointCertificate(ep rawEndpoint) (*x509.Certificate, error) {
	if ep.certB64 != "" {
		return decodeCertificate(ep.certB64)
	}
	if len(ep.extension) == 0 {
		return nil, fmt.Errorf("endpoint publishes no certificate, inline or extension")
	}
	return parseCertificateExtension(ep.extension)
}

// parseCertificateExtension extracts a signing certificate from an SMP
// Extension element structured as:
//
//	<Extension>
//	  <ExtensionID>urn:fdc:peppol:certpub</ExtensionID>
//	  <CertificateList>
//	    <Certificate type="signing-cert">BASE64...</Certificate>
//	  </CertificateList>
//	</Extension>
func parseCertificateExtension(extensionXML []byte) (*x509.Certificate, error) {
	type certEntry struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	}
	type wrapper struct {
		ExtensionID     string      `xml:"ExtensionID"`
		CertificateList []certEntry `xml:"CertificateList>Certificate"`
	}

	var w wrapper
	if err := xml.Unmarshal(extensionXML, &w); err != nil {
		return nil, fmt.Errorf("parsing SMP extension: %w", err)
	}
	if w.ExtensionID != "" && w.ExtensionID != ExtensionCertPub {
		return nil, fmt.Errorf("unrecognized SMP extension %q", w.ExtensionID)
	}
	if len(w.CertificateList) == 0 {
		return nil, fmt.Errorf("SMP extension carries no certificate")
	}

	der, err := base64.StdEncoding.DecodeString(w.CertificateList[0].Value)
	if err != nil {
		return nil, fmt.Errorf("decoding extension certificate: %w", err)
	}
	return x509.ParseCertificate(der)
}
