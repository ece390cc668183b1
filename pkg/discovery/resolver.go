package discovery

import (
	"context"
	"fmt"

	"github.com/phax/as2-peppol-client/pkg/peppolid"
)

// Resolver wraps an SMPClient with transport-profile-ordered endpoint
// selection: spec.md §4.2.
type Resolver struct {
	smp *SMPClient
	sml *SMLClient
}

// NewResolver builds a resolver. sml may be nil when the caller always
// supplies an explicit SMP URL.
func NewResolver(smp *SMPClient, sml *SMLClient) *Resolver {
	if smp == nil {
		smp = NewSMPClient()
	}
	return &Resolver{smp: smp, sml: sml}
}

// Resolve implements spec.md §4.2's resolve(receiver, docType, process,
// preferredProfiles[]).
//
// smpURL may be empty, in which case the resolver performs an SML lookup
// first to find the participant's SMP host.
func (r *Resolver) Resolve(ctx context.Context, smpURL string, receiver peppolid.ParticipantID, docType peppolid.DocumentTypeID, process peppolid.ProcessID, preferredProfiles []TransportProfile) (*EndpointInfo, error) {
	if smpURL == "" {
		if r.sml == nil {
			return nil, fmt.Errorf("%w: no SMP URL configured and no SML client available", ErrLookupFailed)
		}
		resolved, err := r.sml.DiscoverSMP(ctx, receiver)
		if err != nil {
			return nil, fmt.Errorf("%w: SML lookup: %v", ErrLookupFailed, err)
		}
		smpURL = resolved
	}

	endpoints, err := r.smp.fetch(ctx, smpURL, receiver, docType)
	if err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoint
	}

	profiles := preferredProfiles
	if len(profiles) == 0 {
		profiles = DefaultTransportProfiles
	}

	for _, profile := range profiles {
		for _, ep := range endpoints {
			if ep.processValue != process.Value {
				continue
			}
			if ep.transportProfile != profile {
				continue
			}
			cert, err := resolveEndpointCertificate(ep)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
			}
			return &EndpointInfo{
				URL:              ep.url,
				Certificate:      cert,
				TransportProfile: ep.transportProfile,
			}, nil
		}
	}

	return nil, ErrNoEndpoint
}
