// Package transport builds the TLS configuration used by the AS2 HTTP
// client and server: spec.md §4.6's "TLS-capable HTTP connection" and the
// optional mutual-TLS posture some Peppol access points require at the
// transport layer, below and independent of the S/MIME signature.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"time"
)

const (
	TLS12 = tls.VersionTLS12
	TLS13 = tls.VersionTLS13
)

// RecommendedCipherSuites restricts TLS 1.2 negotiation to AEAD,
// forward-secret suites; TLS 1.3 suites are not configurable in crypto/tls
// and need no entry here.
var RecommendedCipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// Config describes the TLS posture of one side of an AS2 connection.
type Config struct {
	MinVersion   uint16
	MaxVersion   uint16
	CipherSuites []uint16

	// Certificates is this side's own TLS identity. On the client it is
	// only needed when the partner requires mutual TLS; on the server it
	// is always required to serve HTTPS.
	Certificates []tls.Certificate

	// RootCAs validates the peer's certificate. Nil means use the system
	// pool.
	RootCAs *x509.CertPool

	// ClientAuth and ClientCAs configure server-side mutual TLS: require
	// and validate a client certificate alongside the S/MIME signature.
	ClientAuth tls.ClientAuthType
	ClientCAs  *x509.CertPool

	Timeout         time.Duration
	IdleConnTimeout time.Duration
}

// DefaultConfig returns the baseline TLS posture: 1.2 minimum, no client
// certificate required.
func DefaultConfig() *Config {
	return &Config{
		MinVersion:      TLS12,
		MaxVersion:      TLS13,
		CipherSuites:    RecommendedCipherSuites,
		ClientAuth:      tls.NoClientCert,
		Timeout:         30 * time.Second,
		IdleConnTimeout: 90 * time.Second,
	}
}

// NewHTTPClient builds an *http.Client with cfg's TLS posture, suitable for
// as2transport.DefaultFactory.HTTPClient. A nil cfg uses DefaultConfig.
func NewHTTPClient(cfg *Config) *http.Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion:   cfg.MinVersion,
			MaxVersion:   cfg.MaxVersion,
			CipherSuites: cfg.CipherSuites,
			Certificates: cfg.Certificates,
			RootCAs:      cfg.RootCAs,
		},
		IdleConnTimeout:     cfg.IdleConnTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
	}
	return &http.Client{Transport: transport, Timeout: cfg.Timeout}
}

// NewServerTLSConfig builds the *tls.Config for an inbound AS2 servlet's
// http.Server. Mutual TLS is governed by cfg.ClientAuth; cfg.ClientCAs is the
// pool client certificates are verified against.
func NewServerTLSConfig(cfg *Config) *tls.Config {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &tls.Config{
		MinVersion:   cfg.MinVersion,
		MaxVersion:   cfg.MaxVersion,
		CipherSuites: cfg.CipherSuites,
		Certificates: cfg.Certificates,
		ClientCAs:    cfg.ClientCAs,
		ClientAuth:   cfg.ClientAuth,
	}
}
