package peppolid

import (
	"crypto/x509"
	"fmt"
)

// ErrCertificateParse is returned when a certificate's Subject DN does not
// carry a Common Name component.
var ErrCertificateParse = fmt.Errorf("certificate has no Subject Common Name")

// SubjectCN returns the Subject Common Name of cert, which Peppol uses as
// the AS2 identifier of the certificate's owner.
func SubjectCN(cert *x509.Certificate) (string, error) {
	if cert == nil {
		return "", fmt.Errorf("nil certificate: %w", ErrCertificateParse)
	}
	if cert.Subject.CommonName == "" {
		return "", ErrCertificateParse
	}
	return cert.Subject.CommonName, nil
}
