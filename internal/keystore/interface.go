// Package keystore provides key management abstractions for the AS2 sender
// and inbound receiver.
//
// This package defines a unified interface for signing operations that can
// be implemented by different backends:
//
//   - File-based: a password-protected PKCS#12 container (default)
//   - PKCS#11: keys stored in a hardware security module (HSM) or smart card
//
// The abstraction lets the rest of the module sign and verify AS2 messages
// without knowing the underlying key storage mechanism.
package keystore

import (
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"io"
	"time"
)

// Common errors.
var (
	ErrKeyNotFound = errors.New("signing key not found")
	ErrKeyLocked   = errors.New("signing key is locked")
	ErrPINRequired = errors.New("PIN required to unlock key")
)

// SignerProvider provides signing capabilities keyed by alias.
//
// Implementations must be safe for concurrent use.
type SignerProvider interface {
	// GetSigner returns a signer for the given alias. The providers in this
	// package do not read credentials from the context; the PKCS#11 provider
	// uses the PIN from its configuration.
	GetSigner(ctx context.Context, alias string) (Signer, error)

	// GetCertificate returns the X.509 certificate for the given alias.
	// This can be called without authentication since certificates are
	// public.
	GetCertificate(ctx context.Context, alias string) (*x509.Certificate, error)

	// StoreReceiverCertificate caches a partner certificate learned from an
	// SMP lookup so it survives process restarts.
	StoreReceiverCertificate(ctx context.Context, alias string, cert *x509.Certificate) error

	// ListKeys returns metadata for every alias the provider knows about.
	ListKeys(ctx context.Context) ([]KeyInfo, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Signer performs cryptographic signing operations.
//
// This interface is intentionally minimal: just enough to produce the
// detached CMS signature an AS2 message requires.
type Signer interface {
	// Sign signs the digest using the underlying private key. The opts
	// parameter specifies the signature algorithm.
	Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error)

	// Public returns the public key corresponding to the private key.
	Public() crypto.PublicKey

	// Certificate returns the X.509 certificate for this signer.
	Certificate() *x509.Certificate
}

// KeyInfo describes a signing key or cached partner certificate.
type KeyInfo struct {
	Alias              string
	Algorithm          string
	KeySize            int
	NotBefore          time.Time
	NotAfter           time.Time
	CertificateSubject string
}

// SessionCredentials carries authentication context for PKCS#11 signing.
type SessionCredentials struct {
	PIN       string
	ExpiresAt time.Time
}

// ContextKey is the type for context keys in this package.
type ContextKey string

// CredentialsKey is the context key for SessionCredentials.
const CredentialsKey ContextKey = "keystore.credentials"

// CredentialsFromContext extracts session credentials from context.
func CredentialsFromContext(ctx context.Context) (*SessionCredentials, bool) {
	creds, ok := ctx.Value(CredentialsKey).(*SessionCredentials)
	return creds, ok
}

// ContextWithCredentials adds session credentials to context.
func ContextWithCredentials(ctx context.Context, creds *SessionCredentials) context.Context {
	return context.WithValue(ctx, CredentialsKey, creds)
}
