package wire

// Capability numbers this speaker understands, IANA "BGP Capability
// Codes" registry (RFC 5492). Only the two capabilities the established
// loop and the EOR logic (spec.md §4.2.3) care about are modeled; any
// other optional parameter or capability in a received OPEN is dropped
// on decode.
const (
	CapMultiprotocol    = 1
	CapGracefulRestart  = 64
)

// AFISAFI identifies one negotiated address family, e.g. IPv4 unicast
// (1,1) or IPv6 unicast (2,1).
type AFISAFI struct {
	AFI  uint16
	SAFI uint8
}

// Capabilities is the set of optional-parameter capabilities a speaker
// announced in its OPEN: the multiprotocol families and the
// graceful-restart flag. Announced(id) (spec.md §4.3's
// negotiated.sent_open.capabilities.announced(id)) maps a capability
// number onto these fields.
type Capabilities struct {
	Families        []AFISAFI
	GracefulRestart bool
}

// Announced reports whether capability id was present in this set.
// The §4.3 contract names this as the check behind the graceful-restart
// silent-close path; session.closeEstablished instead reads
// Peer.neighbor.GracefulRestart && Peer.restarted directly, so this
// method's only caller is protocol.Negotiated.Announced, which is itself
// unused.
func (c Capabilities) Announced(id byte) bool {
	switch id {
	case CapGracefulRestart:
		return c.GracefulRestart
	case CapMultiprotocol:
		return len(c.Families) > 0
	default:
		return false
	}
}

// Intersect returns the address families both sides announced — the
// "set of address-family capabilities that were mutually agreed" the
// negotiation record holds (spec.md §3, Protocol adapter).
func Intersect(local, remote Capabilities) []AFISAFI {
	remoteSet := make(map[AFISAFI]bool, len(remote.Families))
	for _, f := range remote.Families {
		remoteSet[f] = true
	}
	var out []AFISAFI
	for _, f := range local.Families {
		if remoteSet[f] {
			out = append(out, f)
		}
	}
	return out
}

// optional parameter type 2 is "Capabilities" (RFC 5492 §4).
const optionalParameterCapabilities = 2

// encodeOptionalParameters packs Capabilities into OPEN optional
// parameters: a single type-2 parameter holding every capability, each
// capability itself a <code, length, value> triplet.
func (c Capabilities) encodeOptionalParameters() []byte {
	var caps []byte
	for _, f := range c.Families {
		caps = append(caps, CapMultiprotocol, 4, byte(f.AFI>>8), byte(f.AFI), 0, f.SAFI)
	}
	if c.GracefulRestart {
		caps = append(caps, CapGracefulRestart, 2, 0, 0)
	}
	if len(caps) == 0 {
		return nil
	}
	return append([]byte{optionalParameterCapabilities, byte(len(caps))}, caps...)
}

// decodeCapabilities unpacks the optional parameters of a received OPEN.
// Parameters of a type other than Capabilities, or capabilities this
// speaker does not recognize, are silently skipped — RFC 5492 requires
// only that unrecognized *mandatory* capabilities cause rejection, and
// this speaker has none.
func decodeCapabilities(params []byte) Capabilities {
	var c Capabilities
	i := 0
	for i+2 <= len(params) {
		ptype, plen := params[i], params[i+1]
		i += 2
		if i+int(plen) > len(params) {
			break
		}
		value := params[i : i+int(plen)]
		i += int(plen)
		if ptype != optionalParameterCapabilities {
			continue
		}
		j := 0
		for j+2 <= len(value) {
			code, clen := value[j], value[j+1]
			j += 2
			if j+int(clen) > len(value) {
				break
			}
			capValue := value[j : j+int(clen)]
			j += int(clen)
			switch code {
			case CapMultiprotocol:
				if len(capValue) == 4 {
					c.Families = append(c.Families, AFISAFI{
						AFI:  uint16(capValue[0])<<8 | uint16(capValue[1]),
						SAFI: capValue[3],
					})
				}
			case CapGracefulRestart:
				c.GracefulRestart = true
			}
		}
	}
	return c
}
