package transport

import (
	"crypto/tls"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.MinVersion != TLS12 {
		t.Errorf("expected MinVersion TLS12, got %d", cfg.MinVersion)
	}
	if cfg.MaxVersion != TLS13 {
		t.Errorf("expected MaxVersion TLS13, got %d", cfg.MaxVersion)
	}
	if len(cfg.CipherSuites) == 0 {
		t.Error("expected CipherSuites to be set")
	}
	if cfg.ClientAuth != tls.NoClientCert {
		t.Errorf("expected NoClientCert, got %d", cfg.ClientAuth)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected Timeout 30s, got %v", cfg.Timeout)
	}
}

func TestRecommendedCipherSuites(t *testing.T) {
	if len(RecommendedCipherSuites) == 0 {
		t.Error("expected recommended cipher suites to be defined")
	}
	for _, suite := range RecommendedCipherSuites {
		if tls.CipherSuiteName(suite) == "" {
			t.Errorf("unknown cipher suite: %d", suite)
		}
	}
}

func TestNewHTTPClient_NilConfig(t *testing.T) {
	client := NewHTTPClient(nil)

	if client == nil {
		t.Fatal("expected non-nil client")
	}
	if client.Transport == nil {
		t.Error("expected http.Transport to be initialized")
	}
}

func TestNewHTTPClient_CustomConfig(t *testing.T) {
	client := NewHTTPClient(&Config{
		MinVersion: TLS13,
		MaxVersion: TLS13,
		Timeout:    60 * time.Second,
	})

	if client.Timeout != 60*time.Second {
		t.Error("expected custom Timeout")
	}
}

func TestNewServerTLSConfig_MutualTLS(t *testing.T) {
	cfg := NewServerTLSConfig(&Config{
		MinVersion: TLS12,
		MaxVersion: TLS13,
		ClientAuth: tls.RequireAndVerifyClientCert,
	})

	if cfg.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Error("expected mutual TLS client auth to carry through")
	}
}

func TestTLSConstants(t *testing.T) {
	if TLS12 != tls.VersionTLS12 {
		t.Error("TLS12 constant mismatch")
	}
	if TLS13 != tls.VersionTLS13 {
		t.Error("TLS13 constant mismatch")
	}
}
