package wire

import "time"

// OpenTemplate is what the session package supplies the protocol
// adapter to build the OPEN it sends: this speaker's own identity plus
// whether graceful-restart semantics should be advertised this
// incarnation (spec.md §3's `restarted` flag: "this incarnation should
// advertise graceful-restart open semantics").
type OpenTemplate struct {
	MyAS            ASN
	HoldTime        time.Duration
	BGPIdentifier   Identifier
	Families        []AFISAFI
	GracefulRestart bool // true only if both configured and Restarted
}

// Build constructs the OPEN this template describes.
func (t OpenTemplate) Build() Open {
	return NewOpen(t.MyAS, t.HoldTime, t.BGPIdentifier, Capabilities{
		Families:        t.Families,
		GracefulRestart: t.GracefulRestart,
	})
}
