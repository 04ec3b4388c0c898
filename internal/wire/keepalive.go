package wire

// KEEPALIVE messages consist of only the message header and have a
// length of 19 octets (RFC 4271 §4.4). BGP does not use a TCP-level
// keepalive; liveness is entirely this message plus the hold timer.

// EncodeKeepalive returns the 19-byte wire form of a KEEPALIVE message.
func EncodeKeepalive() []byte {
	return EncodeHeader(HeaderLength, KEEPALIVE)
}
