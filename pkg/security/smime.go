package security

import (
	"crypto"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	"go.mozilla.org/pkcs7"
)

// SigningAlgorithm names the digest algorithm used for an AS2 signature,
// taken directly from the Peppol transport profile (AS2-v1 ⇒ SHA-1,
// AS2-v2 ⇒ SHA-256).
type SigningAlgorithm string

const (
	SHA1   SigningAlgorithm = "sha1"
	SHA256 SigningAlgorithm = "sha256"
)

// MicAlgName returns the algorithm token used in the Disposition-Notification
// header (`micalg=...`) and the micalg attribute of the signed receipt.
func (a SigningAlgorithm) MicAlgName() string {
	switch a {
	case SHA1:
		return "sha1"
	default:
		return "sha256"
	}
}

func (a SigningAlgorithm) hash() crypto.Hash {
	if a == SHA1 {
		return crypto.SHA1
	}
	return crypto.SHA256
}

// ComputeMIC hashes body with the digest named by alg, matching the MIC the
// receiver will recompute over the signed body to verify against the MDN.
func ComputeMIC(body []byte, alg SigningAlgorithm) []byte {
	if alg == SHA1 {
		sum := sha1.Sum(body)
		return sum[:]
	}
	sum := sha256.Sum256(body)
	return sum[:]
}

// SMIMESigner produces detached CMS/PKCS#7 signatures over AS2 message
// bodies and MDN receipts, using the sender's (or receiver's, for MDNs)
// private key and certificate.
type SMIMESigner struct {
	cert *x509.Certificate
	key  crypto.Signer
}

// NewSMIMESigner builds a signer bound to a single key pair.
func NewSMIMESigner(cert *x509.Certificate, key crypto.Signer) *SMIMESigner {
	return &SMIMESigner{cert: cert, key: key}
}

// Sign produces a detached, DER-encoded PKCS#7 SignedData structure over
// body using the given digest algorithm.
func (s *SMIMESigner) Sign(body []byte, alg SigningAlgorithm) ([]byte, error) {
	toBeSigned, err := pkcs7.NewSignedData(body)
	if err != nil {
		return nil, fmt.Errorf("initializing signed data: %w", err)
	}
	toBeSigned.SetDigestAlgorithm(digestOID(alg))
	if err := toBeSigned.AddSigner(s.cert, s.key, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("adding signer: %w", err)
	}
	toBeSigned.Detach()

	signature, err := toBeSigned.Finish()
	if err != nil {
		return nil, fmt.Errorf("finishing signature: %w", err)
	}
	return signature, nil
}

// VerifyDetached checks a detached PKCS#7 signature over body against the
// partner certificate. Returns the signing certificate found embedded in
// the signature (for AS2-From/partner-certificate cross-checking).
func VerifyDetached(body, signature []byte, trusted *x509.Certificate) (*x509.Certificate, error) {
	p7, err := pkcs7.Parse(signature)
	if err != nil {
		return nil, fmt.Errorf("parsing pkcs7 signature: %w", err)
	}
	p7.Content = body

	if err := p7.Verify(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertificateUntrusted, err)
	}

	if len(p7.Certificates) == 0 {
		return nil, fmt.Errorf("signature carries no certificate")
	}
	signer := p7.Certificates[0]

	if trusted != nil && !signer.Equal(trusted) {
		return signer, fmt.Errorf("%w: signer certificate does not match expected partner certificate", ErrCertificateUntrusted)
	}

	return signer, nil
}

func digestOID(alg SigningAlgorithm) asn1.ObjectIdentifier {
	if alg == SHA1 {
		return pkcs7.OIDDigestAlgorithmSHA1
	}
	return pkcs7.OIDDigestAlgorithmSHA256
}
