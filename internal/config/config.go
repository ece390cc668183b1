// Package config handles configuration loading for the AS2 sender and
// inbound receiver.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows sensitive values
// like key-store passwords and HSM PINs to be injected at runtime.
//
// # Configuration Sections
//
//   - server: inbound HTTP settings (port, base path, TLS)
//   - keystore: signing key management mode (file/PKCS#12 or pkcs11)
//   - discovery: SMP/SML lookup settings
//   - storage: optional message-audit persistence (MongoDB)
//   - observability: metrics and tracing endpoints
//
// # Example Configuration
//
//	server:
//	  port: 8080
//	  basePath: "/as2"
//
//	keystore:
//	  mode: file
//	  file:
//	    path: /etc/as2/keystore.p12
//	    password: ${KEYSTORE_PASSWORD}
//
//	discovery:
//	  smlZone: edelivery.tech.ec.europa.eu
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	KeyStore  KeyStoreConfig  `yaml:"keystore"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"observability"`
}

// ServerConfig holds inbound HTTP server settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"basePath"`
	TLS      struct {
		Enabled  bool   `yaml:"enabled"`
		CertFile string `yaml:"certFile"`
		KeyFile  string `yaml:"keyFile"`
	} `yaml:"tls"`
}

// KeyStoreConfig holds signing key management settings.
type KeyStoreConfig struct {
	// Mode determines how signing keys are managed.
	//   - "file": a password-protected PKCS#12 container (default)
	//   - "pkcs11": keys stored in a PKCS#11 token (HSM/smart card)
	Mode string `yaml:"mode"`

	File   FileKeyStoreConfig `yaml:"file"`
	PKCS11 PKCS11Config       `yaml:"pkcs11"`
}

// FileKeyStoreConfig holds PKCS#12 file-backed key-store settings.
type FileKeyStoreConfig struct {
	Path     string `yaml:"path"`
	Password string `yaml:"password"`
	// SenderAlias is the alias under which the sender's own signing key is
	// stored. ReceiverCertDir is where partner certificates learned from
	// SMP lookups are cached for reuse between sends.
	SenderAlias     string `yaml:"senderAlias"`
	ReceiverCertDir string `yaml:"receiverCertDir"`
}

// PKCS11Config holds PKCS#11 HSM settings.
type PKCS11Config struct {
	// Path to the PKCS#11 library (.so/.dylib/.dll)
	ModulePath string `yaml:"modulePath"`
	SlotID     uint   `yaml:"slotId"`
	SlotLabel  string `yaml:"slotLabel"`
	// PIN for authentication (can be an env var reference like ${HSM_PIN})
	PIN      string `yaml:"pin"`
	KeyLabel string `yaml:"keyLabel"`
}

// DiscoveryConfig holds SMP/SML lookup settings.
type DiscoveryConfig struct {
	SMLZone           string        `yaml:"smlZone"`
	SMPURLOverride    string        `yaml:"smpUrlOverride"`
	PreferredProfiles []string      `yaml:"preferredProfiles"`
	LookupTimeout     time.Duration `yaml:"lookupTimeout"`
}

// StorageConfig holds optional message-audit persistence settings.
type StorageConfig struct {
	MongoDB MongoDBConfig `yaml:"mongodb"`
}

// MongoDBConfig holds MongoDB connection settings for the audit sink.
type MongoDBConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Tracing struct {
		Enabled  bool   `yaml:"enabled"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"tracing"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/as2"
	}
	if c.KeyStore.Mode == "" {
		c.KeyStore.Mode = "file" // Default to file for development
	}
	if c.Discovery.LookupTimeout == 0 {
		c.Discovery.LookupTimeout = 30 * time.Second
	}
	if len(c.Discovery.PreferredProfiles) == 0 {
		c.Discovery.PreferredProfiles = []string{"peppol-transport-as2-v2_0", "peppol-transport-as2-v1_0"}
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "as2"
	}
}

func (c *Config) validate() error {
	switch c.KeyStore.Mode {
	case "file", "pkcs11":
		// Valid modes
	default:
		return fmt.Errorf("keystore.mode must be 'file' or 'pkcs11', got '%s'", c.KeyStore.Mode)
	}

	if c.KeyStore.Mode == "file" && c.KeyStore.File.Path == "" {
		return fmt.Errorf("keystore.file.path is required when mode is 'file'")
	}
	if c.KeyStore.Mode == "pkcs11" && c.KeyStore.PKCS11.ModulePath == "" {
		return fmt.Errorf("keystore.pkcs11.modulePath is required when mode is 'pkcs11'")
	}
	if c.Storage.MongoDB.Enabled && c.Storage.MongoDB.URI == "" {
		return fmt.Errorf("storage.mongodb.uri is required when storage.mongodb.enabled is true")
	}

	return nil
}
