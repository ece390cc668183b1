//go:build pkcs11

// Package keystore: the PKCS#11 signer implementation.
package keystore

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"io"
	"sync"

	"github.com/ThalesGroup/crypto11"
)

// PKCS11Provider implements SignerProvider using a PKCS#11 token (HSM or
// smart card). Unlike FileProvider it has no notion of a sender/receiver
// split: every alias is looked up as a key label on the token, so it can
// also serve cached partner certificates if the token holds them.
type PKCS11Provider struct {
	ctx     *crypto11.Context
	mu      sync.RWMutex
	signers map[string]*pkcs11Signer
}

// PKCS11Config holds configuration for the PKCS#11 provider.
type PKCS11Config struct {
	// ModulePath is the path to the PKCS#11 library (.so/.dylib/.dll)
	ModulePath string
	// SlotID is the slot number to use (optional if SlotLabel is provided)
	SlotID *uint
	// SlotLabel is the token label to search for (optional if SlotID is provided)
	SlotLabel string
	// PIN is the user PIN for authentication
	PIN string
}

// NewPKCS11Provider opens a session against the configured token.
func NewPKCS11Provider(cfg *PKCS11Config) (*PKCS11Provider, error) {
	config := &crypto11.Config{
		Path: cfg.ModulePath,
		Pin:  cfg.PIN,
	}

	if cfg.SlotID != nil {
		slotID := int(*cfg.SlotID)
		config.SlotNumber = &slotID
	}
	if cfg.SlotLabel != "" {
		config.TokenLabel = cfg.SlotLabel
	}

	ctx, err := crypto11.Configure(config)
	if err != nil {
		return nil, fmt.Errorf("configuring PKCS#11: %w", err)
	}

	return &PKCS11Provider{
		ctx:     ctx,
		signers: make(map[string]*pkcs11Signer),
	}, nil
}

// GetSigner returns a signer for the key labeled alias on the token.
func (p *PKCS11Provider) GetSigner(ctx context.Context, alias string) (Signer, error) {
	p.mu.RLock()
	if signer, ok := p.signers[alias]; ok {
		p.mu.RUnlock()
		return signer, nil
	}
	p.mu.RUnlock()

	signer, err := p.loadSigner(alias)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.signers[alias] = signer
	p.mu.Unlock()

	return signer, nil
}

// GetCertificate returns the certificate labeled alias on the token.
func (p *PKCS11Provider) GetCertificate(ctx context.Context, alias string) (*x509.Certificate, error) {
	cert, err := p.ctx.FindCertificate(nil, []byte(alias), nil)
	if err != nil {
		return nil, fmt.Errorf("finding certificate: %w", err)
	}
	if cert == nil {
		return nil, ErrKeyNotFound
	}
	return cert, nil
}

// StoreReceiverCertificate is not supported: tokens are provisioned
// out-of-band, not written to at send time.
func (p *PKCS11Provider) StoreReceiverCertificate(ctx context.Context, alias string, cert *x509.Certificate) error {
	return fmt.Errorf("pkcs11 provider does not support storing receiver certificates")
}

// ListKeys is unimplemented: PKCS#11 has no generic way to enumerate all
// objects by pattern across every token vendor.
func (p *PKCS11Provider) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	return nil, nil
}

// Close releases the PKCS#11 session.
func (p *PKCS11Provider) Close() error {
	return p.ctx.Close()
}

func (p *PKCS11Provider) loadSigner(alias string) (*pkcs11Signer, error) {
	key, err := p.ctx.FindKeyPair(nil, []byte(alias))
	if err != nil {
		return nil, fmt.Errorf("finding key pair: %w", err)
	}
	if key == nil {
		return nil, ErrKeyNotFound
	}

	cert, err := p.ctx.FindCertificate(nil, []byte(alias), nil)
	if err != nil {
		return nil, fmt.Errorf("finding certificate: %w", err)
	}

	return &pkcs11Signer{key: key, cert: cert}, nil
}

// pkcs11Signer implements Signer using a PKCS#11-resident key.
type pkcs11Signer struct {
	key  crypto.Signer
	cert *x509.Certificate
}

func (s *pkcs11Signer) Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	return s.key.Sign(rand, digest, opts)
}

func (s *pkcs11Signer) Public() crypto.PublicKey {
	return s.key.Public()
}

func (s *pkcs11Signer) Certificate() *x509.Certificate {
	return s.cert
}
