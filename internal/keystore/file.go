// Package keystore: the file-backed signer implementation.
package keystore

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"software.sslmate.com/src/go-pkcs12"
)

// FileProvider implements SignerProvider using a password-protected PKCS#12
// container for the sender's own signing key, plus a directory of
// PEM-encoded partner certificates learned from SMP lookups.
//
// Safe for concurrent use.
type FileProvider struct {
	mu              sync.RWMutex
	senderAlias     string
	senderKey       crypto.Signer
	senderCert      *x509.Certificate
	receiverCertDir string
	receiverCerts   map[string]*x509.Certificate
}

// NewFileProvider loads the sender's key/certificate from a PKCS#12
// container and prepares a cache directory for partner certificates.
func NewFileProvider(p12Path, password, senderAlias, receiverCertDir string) (*FileProvider, error) {
	data, err := os.ReadFile(p12Path)
	if err != nil {
		return nil, fmt.Errorf("reading key store file: %w", err)
	}

	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("decoding PKCS#12 key store: %w", err)
	}
	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("key store private key does not implement crypto.Signer")
	}

	if receiverCertDir != "" {
		if err := os.MkdirAll(receiverCertDir, 0o700); err != nil {
			return nil, fmt.Errorf("preparing receiver certificate cache directory: %w", err)
		}
	}

	return &FileProvider{
		senderAlias:     senderAlias,
		senderKey:       signer,
		senderCert:      cert,
		receiverCertDir: receiverCertDir,
		receiverCerts:   make(map[string]*x509.Certificate),
	}, nil
}

// GetSigner returns the sender's signer when alias matches senderAlias.
// Partner aliases never resolve to a signer: the sender never holds the
// receiver's private key.
func (p *FileProvider) GetSigner(ctx context.Context, alias string) (Signer, error) {
	if alias != p.senderAlias {
		return nil, ErrKeyNotFound
	}
	return &fileSigner{key: p.senderKey, cert: p.senderCert}, nil
}

// GetCertificate returns the sender's own certificate, or a cached partner
// certificate previously stored via StoreReceiverCertificate.
func (p *FileProvider) GetCertificate(ctx context.Context, alias string) (*x509.Certificate, error) {
	if alias == p.senderAlias {
		return p.senderCert, nil
	}

	p.mu.RLock()
	cert, ok := p.receiverCerts[alias]
	p.mu.RUnlock()
	if ok {
		return cert, nil
	}

	if p.receiverCertDir == "" {
		return nil, ErrKeyNotFound
	}
	cert, err := loadCertificate(filepath.Join(p.receiverCertDir, alias+".crt"))
	if err != nil {
		return nil, ErrKeyNotFound
	}

	p.mu.Lock()
	p.receiverCerts[alias] = cert
	p.mu.Unlock()
	return cert, nil
}

// StoreReceiverCertificate caches a partner certificate in memory and, when
// a cache directory is configured, persists it as a PEM file so it survives
// process restarts without a repeat SMP lookup.
func (p *FileProvider) StoreReceiverCertificate(ctx context.Context, alias string, cert *x509.Certificate) error {
	p.mu.Lock()
	p.receiverCerts[alias] = cert
	p.mu.Unlock()

	if p.receiverCertDir == "" {
		return nil
	}
	block := &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}
	path := filepath.Join(p.receiverCertDir, alias+".crt")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("persisting receiver certificate: %w", err)
	}
	return nil
}

// ListKeys returns the sender key plus every cached partner certificate.
func (p *FileProvider) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	keys := []KeyInfo{{
		Alias:              p.senderAlias,
		Algorithm:          keyAlgorithmName(p.senderCert.PublicKey),
		KeySize:            keySize(p.senderCert.PublicKey),
		NotBefore:          p.senderCert.NotBefore,
		NotAfter:           p.senderCert.NotAfter,
		CertificateSubject: p.senderCert.Subject.String(),
	}}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for alias, cert := range p.receiverCerts {
		keys = append(keys, KeyInfo{
			Alias:              alias,
			Algorithm:          keyAlgorithmName(cert.PublicKey),
			KeySize:            keySize(cert.PublicKey),
			NotBefore:          cert.NotBefore,
			NotAfter:           cert.NotAfter,
			CertificateSubject: cert.Subject.String(),
		})
	}
	return keys, nil
}

// Close releases the in-memory certificate cache.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receiverCerts = make(map[string]*x509.Certificate)
	return nil
}

// fileSigner implements Signer over a PKCS#12-decoded key pair.
type fileSigner struct {
	key  crypto.Signer
	cert *x509.Certificate
}

func (s *fileSigner) Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	return s.key.Sign(rand, digest, opts)
}

func (s *fileSigner) Public() crypto.PublicKey {
	return s.key.Public()
}

func (s *fileSigner) Certificate() *x509.Certificate {
	return s.cert
}

func loadCertificate(path string) (*x509.Certificate, error) {
	certPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading certificate file: %w", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	return x509.ParseCertificate(block.Bytes)
}

func keyAlgorithmName(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *ecdsa.PublicKey:
		return "EC"
	case *rsa.PublicKey:
		return "RSA"
	default:
		return "Unknown"
	}
}

func keySize(pub crypto.PublicKey) int {
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		return k.Curve.Params().BitSize
	case *rsa.PublicKey:
		return k.N.BitLen()
	default:
		return 0
	}
}
