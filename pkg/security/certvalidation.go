// Package security implements AP certificate validation, OCSP/CRL revocation
// checking, and S/MIME (CMS/PKCS#7) signing for AS2 messages.
package security

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCertificateExpired is returned when a certificate's validity window
	// has passed.
	ErrCertificateExpired = errors.New("certificate has expired")
	// ErrCertificateNotYetValid is returned when now precedes NotBefore.
	ErrCertificateNotYetValid = errors.New("certificate is not yet valid")
	// ErrCertificateUntrusted is returned when the chain does not terminate
	// in a configured Peppol trust anchor.
	ErrCertificateUntrusted = errors.New("certificate is not trusted")
	// ErrCertificateRevoked is returned when OCSP or a CRL reports the
	// certificate as revoked.
	ErrCertificateRevoked = errors.New("certificate has been revoked")
	// ErrInvalidCertificate covers malformed input.
	ErrInvalidCertificate = errors.New("certificate validation failed")
)

// CheckOutcome is the result of CheckAccessPointCertificate.
type CheckOutcome int

const (
	Valid CheckOutcome = iota
	NotYetValid
	Expired
	RevokedOrUnknownIssuer
	Invalid
)

func (o CheckOutcome) String() string {
	switch o {
	case Valid:
		return "Valid"
	case NotYetValid:
		return "NotYetValid"
	case Expired:
		return "Expired"
	case RevokedOrUnknownIssuer:
		return "RevokedOrUnknownIssuer"
	default:
		return "Invalid"
	}
}

// CheckResult pairs an outcome with the reason for a non-Valid result.
type CheckResult struct {
	Outcome CheckOutcome
	Reason  string
}

// Policy controls which optional checks CheckAccessPointCertificate runs.
type Policy struct {
	CheckRevocation bool
	Revocation      RevocationChecker
	RevocationCtx   context.Context
}

// CertificateValidator validates an AP certificate against a trust anchor
// pool and an optional revocation policy.
type CertificateValidator interface {
	CheckAccessPointCertificate(cert *x509.Certificate, now time.Time, policy Policy) CheckResult
}

// DefaultCertificateValidator implements PKI chain validation against a
// configured Peppol trust-anchor pool.
type DefaultCertificateValidator struct {
	roots *x509.CertPool
}

// NewDefaultCertificateValidator builds a validator trusting only the given
// root pool (the Peppol trust-anchor certificates).
func NewDefaultCertificateValidator(roots *x509.CertPool) *DefaultCertificateValidator {
	return &DefaultCertificateValidator{roots: roots}
}

// CheckAccessPointCertificate implements spec.md §4.1.
func (v *DefaultCertificateValidator) CheckAccessPointCertificate(cert *x509.Certificate, now time.Time, policy Policy) CheckResult {
	if cert == nil {
		return CheckResult{Outcome: Invalid, Reason: "nil certificate"}
	}
	if now.Before(cert.NotBefore) {
		return CheckResult{Outcome: NotYetValid, Reason: "before NotBefore"}
	}
	if now.After(cert.NotAfter) {
		return CheckResult{Outcome: Expired, Reason: "after NotAfter"}
	}

	opts := x509.VerifyOptions{
		Roots:       v.roots,
		CurrentTime: now,
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	chains, err := cert.Verify(opts)
	if err != nil {
		return CheckResult{Outcome: RevokedOrUnknownIssuer, Reason: fmt.Sprintf("chain verification failed: %v", err)}
	}

	if policy.CheckRevocation && policy.Revocation != nil && len(chains) > 0 && len(chains[0]) > 1 {
		ctx := policy.RevocationCtx
		if ctx == nil {
			ctx = context.Background()
		}
		issuer := chains[0][1]
		if err := policy.Revocation.CheckRevocation(ctx, cert, issuer); err != nil {
			if errors.Is(err, ErrCertificateRevoked) {
				return CheckResult{Outcome: RevokedOrUnknownIssuer, Reason: "certificate revoked"}
			}
			return CheckResult{Outcome: RevokedOrUnknownIssuer, Reason: fmt.Sprintf("revocation check failed: %v", err)}
		}
	}

	return CheckResult{Outcome: Valid}
}
