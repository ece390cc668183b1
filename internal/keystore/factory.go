// Package keystore: the factory for creating signer providers.
package keystore

import (
	"fmt"

	"github.com/phax/as2-peppol-client/internal/config"
)

// NewProvider creates a SignerProvider based on the configuration.
func NewProvider(cfg *config.KeyStoreConfig) (SignerProvider, error) {
	switch cfg.Mode {
	case "pkcs11":
		return newPKCS11Provider(cfg)
	case "file":
		return newFileProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown key store mode: %s", cfg.Mode)
	}
}

func newPKCS11Provider(cfg *config.KeyStoreConfig) (SignerProvider, error) {
	p11cfg := &PKCS11Config{
		ModulePath: cfg.PKCS11.ModulePath,
		SlotLabel:  cfg.PKCS11.SlotLabel,
		PIN:        cfg.PKCS11.PIN,
	}
	if cfg.PKCS11.SlotID > 0 {
		slotID := cfg.PKCS11.SlotID
		p11cfg.SlotID = &slotID
	}
	return NewPKCS11Provider(p11cfg)
}

func newFileProvider(cfg *config.KeyStoreConfig) (SignerProvider, error) {
	alias := cfg.File.SenderAlias
	if alias == "" {
		alias = "sender"
	}
	return NewFileProvider(cfg.File.Path, cfg.File.Password, alias, cfg.File.ReceiverCertDir)
}
