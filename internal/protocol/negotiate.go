package protocol

import (
	"time"

	"github.com/s12016/exabgp/internal/wire"
)

// RecordReceived stores a decoded OPEN as the received half of the
// negotiation record — `negotiated.received(message)` in spec.md §4.3.
func (a *Adapter) RecordReceived(o wire.Open) { a.Negotiated.Received = o }

// RecordSent stores the OPEN this speaker sent.
func (a *Adapter) RecordSent(o wire.Open) { a.Negotiated.Sent = o }

// ValidateOpen runs the OPEN validation spec.md §4.2.1/§4.2.2 step 4/5
// names, deriving the negotiated hold time and address family
// intersection on success. Collision resolution (spec.md §5: "the
// standard BGP higher-BGP-ID rule") is performed by the caller, which
// has both directions' adapters in hand; this method only checks one
// side's OPEN against local policy.
func (a *Adapter) ValidateOpen(expectedRemoteAS wire.ASN, localHoldTime time.Duration, localFamilies []wire.AFISAFI) error {
	if err := a.Negotiated.Received.Validate(expectedRemoteAS, localHoldTime); err != nil {
		return err
	}
	remoteHold := time.Duration(a.Negotiated.Received.HoldTime) * time.Second
	a.Negotiated.HoldTime = wire.NegotiatedHoldTime(localHoldTime, remoteHold)
	a.Negotiated.Families = wire.Intersect(
		wire.Capabilities{Families: localFamilies},
		a.Negotiated.Received.Capabilities,
	)
	return nil
}
