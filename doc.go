/*
Package as2peppolclient implements AS2 messaging for Peppol access points:
signed, optionally compressed, multipart/signed MIME transport with signed
MDN receipts, SBDH-wrapped business document envelopes, and SMP-based
capability discovery.

# Package Structure

The library is organized into the following packages:

	github.com/phax/as2-peppol-client/pkg/as2client    - client builder / orchestrator
	github.com/phax/as2-peppol-client/pkg/as2transport  - AS2 wire protocol: MIME packing, signing, MDN
	github.com/phax/as2-peppol-client/pkg/security      - S/MIME signing, certificate validation, OCSP
	github.com/phax/as2-peppol-client/pkg/discovery     - SMP (Service Metadata Publisher) resolution
	github.com/phax/as2-peppol-client/pkg/sbd           - Standard Business Document envelope
	github.com/phax/as2-peppol-client/pkg/peppolid      - Peppol participant/document/process identifiers
	github.com/phax/as2-peppol-client/pkg/validation    - adapter for externally registered payload rule-set executors
	github.com/phax/as2-peppol-client/pkg/transport     - TLS posture for the AS2 client and server
	github.com/phax/as2-peppol-client/pkg/compression   - optional AS2 content-part gzip
	github.com/phax/as2-peppol-client/pkg/reliability   - inbound duplicate Message-ID detection

# Quick Start

To send a document:

	import (
	    "github.com/phax/as2-peppol-client/pkg/as2client"
	    "github.com/phax/as2-peppol-client/pkg/discovery"
	    "github.com/phax/as2-peppol-client/pkg/peppolid"
	    "github.com/phax/as2-peppol-client/pkg/security"
	)

	resp, err := as2client.NewBuilder().
	    WithSigner(security.NewSMIMESigner(senderCert, senderKey)).
	    WithSender("sender-as2-id", "sender@example.org", "", peppolid.NewParticipantID("", "sender-id")).
	    WithReceiver("", peppolid.NewParticipantID("", "receiver-id")).
	    WithDocumentType(documentTypeID, processID).
	    WithBusinessDocument(payload).
	    WithSMPResolver(discovery.NewResolver(discovery.NewSMPClient(), nil), smpURL).
	    SendSynchronous(ctx)

# Security

Messages are signed with a detached CMS signature over the MIME content
part (multipart/signed, RFC 1847); the receiver verifies the signature and
recomputes the MIC before accepting the message, and returns a signed MDN
disposition notification.

# References

  - Peppol AS2 Profile: https://docs.peppol.eu/edelivery/as2/
  - RFC 4130: MIME-Based Secure Peer-to-Peer Business Data Interchange (AS2)
  - RFC 1847: Security Multiparts for MIME
*/
package as2peppolclient
