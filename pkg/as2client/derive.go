package as2client

import (
	"github.com/phax/as2-peppol-client/pkg/discovery"
	"github.com/phax/as2-peppol-client/pkg/security"
)

// signingAlgorithmForProfile implements spec.md §4.2's resolution side
// effect: the transport profile an SMP endpoint publishes binds the
// signature digest used to send to it (AS2-v1 => SHA-1, AS2-v2 => SHA-256).
func signingAlgorithmForProfile(profile discovery.TransportProfile) security.SigningAlgorithm {
	if profile == discovery.TransportProfileAS2v2 {
		return security.SHA256
	}
	return security.SHA1
}

// derive fills in fields the caller left unset from the fields it did set:
// spec.md §9 Design Notes ("model as an explicit derive(config) → config
// pure function"). It never overwrites a value the caller already supplied.
func derive(req SendRequest) SendRequest {
	if req.ReceiverKeyAlias == "" {
		req.ReceiverKeyAlias = req.ReceiverAS2ID
	}
	if req.SenderKeyAlias == "" {
		req.SenderKeyAlias = req.SenderAS2ID
	}
	if req.AS2Subject == "" {
		req.AS2Subject = DefaultAS2Subject
	}
	if req.MessageIDFormat == "" {
		req.MessageIDFormat = DefaultMessageIDFormat
	}
	if req.ContentTransferEncoding == "" {
		req.ContentTransferEncoding = DefaultContentTransferEncoding
	}
	if req.MIMEType == "" {
		req.MIMEType = DefaultMIMEType
	}
	if req.PreferredTransportProfiles == nil {
		req.PreferredTransportProfiles = discovery.DefaultTransportProfiles
	}
	return req
}

// partnershipName mirrors the teacher's AS4 P-Mode naming convention:
// "<senderAS2Id>-<receiverAS2Id>".
func partnershipName(senderAS2ID, receiverAS2ID string) string {
	return senderAS2ID + "-" + receiverAS2ID
}
