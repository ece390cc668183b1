package discovery

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/miekg/dns"

	"github.com/phax/as2-peppol-client/pkg/peppolid"
)

// Errors returned by SML DNS zone resolution.
var (
	ErrNoNAPTRRecords  = errors.New("no U-NAPTR records found for participant")
	ErrInvalidNAPTR    = errors.New("invalid NAPTR record format")
	ErrNoSMPServiceURL = errors.New("no matching SMP service found in SML records")
)

// SMLClientConfig configures SML (Service Metadata Locator) zone resolution.
type SMLClientConfig struct {
	// SMLZone is the root DNS zone of the SML, e.g. "edelivery.tech.ec.europa.eu".
	SMLZone string
	// DNSServer overrides the system resolver, "ip:port".
	DNSServer string
}

// SMLClient resolves a Peppol participant identifier to its SMP base URL via
// DNS U-NAPTR lookup against the BusDox SML zone.
type SMLClient struct {
	cfg       SMLClientConfig
	dnsClient *dns.Client
}

// NewSMLClient builds a client for the given SML zone.
func NewSMLClient(smlZone string) *SMLClient {
	return &SMLClient{
		cfg:       SMLClientConfig{SMLZone: smlZone},
		dnsClient: new(dns.Client),
	}
}

// NewSMLClientWithConfig builds a client from explicit configuration.
func NewSMLClientWithConfig(cfg SMLClientConfig) *SMLClient {
	return &SMLClient{cfg: cfg, dnsClient: new(dns.Client)}
}

// DiscoverSMP resolves the SMP base URL responsible for receiver.
func (c *SMLClient) DiscoverSMP(ctx context.Context, receiver peppolid.ParticipantID) (string, error) {
	queryDomain := c.formatQueryDomain(receiver)

	dnsServer := c.cfg.DNSServer
	if dnsServer == "" {
		conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return "", fmt.Errorf("reading DNS config: %w", err)
		}
		if len(conf.Servers) == 0 {
			return "", errors.New("no DNS servers configured")
		}
		dnsServer = conf.Servers[0] + ":" + conf.Port
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(queryDomain), dns.TypeNAPTR)
	msg.RecursionDesired = true

	resp, _, err := c.dnsClient.ExchangeContext(ctx, msg, dnsServer)
	if err != nil {
		return "", fmt.Errorf("DNS lookup failed for %s: %w", queryDomain, err)
	}
	if resp.Rcode == dns.RcodeNameError {
		return "", fmt.Errorf("%w: %s", ErrNoNAPTRRecords, queryDomain)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("DNS lookup failed for %s: rcode=%d", queryDomain, resp.Rcode)
	}

	var records []*dns.NAPTR
	for _, rr := range resp.Answer {
		if naptr, ok := rr.(*dns.NAPTR); ok {
			records = append(records, naptr)
		}
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoNAPTRRecords, queryDomain)
	}

	return selectSMPServiceURL(records)
}

// formatQueryDomain hashes the participant identifier per the BusDox SML
// convention: BASE32(SHA256("<scheme>:<value>")), zone-appended.
func (c *SMLClient) formatQueryDomain(receiver peppolid.ParticipantID) string {
	canonical := strings.ToLower(receiver.Scheme) + ":" + strings.ToLower(receiver.Value)
	hash := sha256.Sum256([]byte(canonical))
	encoded := strings.TrimRight(base32.StdEncoding.EncodeToString(hash[:]), "=")
	return fmt.Sprintf("B-%s.%s", encoded, c.cfg.SMLZone)
}

// selectSMPServiceURL picks the U-NAPTR record naming a Meta:SMP service and
// extracts the replacement URL from its regexp field.
func selectSMPServiceURL(records []*dns.NAPTR) (string, error) {
	var best *dns.NAPTR
	var bestPriority int = 1<<31 - 1

	for _, record := range records {
		if strings.ToUpper(record.Flags) != "U" {
			continue
		}
		if !strings.EqualFold(record.Service, "Meta:SMP") {
			continue
		}
		priority := int(record.Order)*1000 + int(record.Preference)
		if best == nil || priority < bestPriority {
			best = record
			bestPriority = priority
		}
	}
	if best == nil {
		return "", ErrNoSMPServiceURL
	}
	return extractURLFromRegexp(best.Regexp)
}

// extractURLFromRegexp extracts the replacement URL from a NAPTR regexp
// field of the form "!<pattern>!<replacement>!".
func extractURLFromRegexp(field string) (string, error) {
	if field == "" {
		return "", ErrInvalidNAPTR
	}
	parts := strings.Split(field, "!")
	if len(parts) < 3 {
		return "", fmt.Errorf("%w: %s", ErrInvalidNAPTR, field)
	}
	replacement := parts[2]
	parsed, err := url.Parse(replacement)
	if err != nil {
		return "", fmt.Errorf("%w: invalid URL: %v", ErrInvalidNAPTR, err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return "", fmt.Errorf("%w: invalid URL scheme %q", ErrInvalidNAPTR, parsed.Scheme)
	}
	return replacement, nil
}
