package wire

import "encoding/binary"

// UPDATE message layout, RFC 4271 §4.3:
//
//	+-----------------------------------------------------+
//	|   Withdrawn Routes Length (2 octets)                 |
//	+-----------------------------------------------------+
//	|   Withdrawn Routes (variable)                        |
//	+-----------------------------------------------------+
//	|   Total Path Attribute Length (2 octets)              |
//	+-----------------------------------------------------+
//	|   Path Attributes (variable)                          |
//	+-----------------------------------------------------+
//	|   Network Layer Reachability Information (variable)   |
//	+-----------------------------------------------------+
//
// Path attribute semantics (ORIGIN, AS_PATH, NEXT_HOP, ...) and the
// route table they feed are external collaborators per spec.md §1; this
// package only needs enough of the frame to find the NLRI and withdrawn
// route fields, since the established loop's only use for UPDATE
// contents is counting routes (spec.md §4.2.3).

// minUpdateLength is the smallest possible UPDATE body: a zero-length
// withdrawn-routes field and a zero-length path-attribute field.
const minUpdateLength = 4

// CountRoutes returns the number of routes an UPDATE message body
// carries — withdrawn routes plus advertised NLRI prefixes — by walking
// the variable-length prefix lists without interpreting path attributes.
// A malformed body (truncated mid-prefix) returns what could be counted
// and an error; the caller treats that as an UPDATE Message Error.
func CountRoutes(body []byte) (int, error) {
	if len(body) < minUpdateLength {
		return 0, NewNotify(CodeUpdateMessageError, SubcodeUnspecific, "UPDATE body too short")
	}
	withdrawnLen := int(binary.BigEndian.Uint16(body[0:2]))
	pos := 2
	if pos+withdrawnLen > len(body) {
		return 0, NewNotify(CodeUpdateMessageError, SubcodeMalformedAttributeList, "withdrawn routes length overruns message")
	}
	withdrawnCount, err := countPrefixes(body[pos : pos+withdrawnLen])
	pos += withdrawnLen
	if err != nil {
		return withdrawnCount, err
	}

	if pos+2 > len(body) {
		return withdrawnCount, NewNotify(CodeUpdateMessageError, SubcodeUnspecific, "missing total path attribute length")
	}
	pathAttrLen := int(binary.BigEndian.Uint16(body[pos : pos+2]))
	pos += 2 + pathAttrLen
	if pos > len(body) {
		return withdrawnCount, NewNotify(CodeUpdateMessageError, SubcodeAttributeLengthError, "path attribute length overruns message")
	}

	nlriCount, err := countPrefixes(body[pos:])
	return withdrawnCount + nlriCount, err
}

// countPrefixes walks a withdrawn-routes or NLRI field, each entry a
// 1-octet prefix length (bits) followed by ceil(length/8) octets.
func countPrefixes(field []byte) (int, error) {
	count := 0
	i := 0
	for i < len(field) {
		bits := int(field[i])
		i++
		octets := (bits + 7) / 8
		if i+octets > len(field) {
			return count, NewNotify(CodeUpdateMessageError, SubcodeMalformedAttributeList, "truncated prefix")
		}
		i += octets
		count++
	}
	return count, nil
}

// Remaining UPDATE Message Error subcodes this package raises, RFC 4271
// §6.3, beyond the ones notification.go already defines for OPEN/header.
const (
	SubcodeMalformedAttributeList = 1
	SubcodeAttributeLengthError   = 5
)

// EOR encodes an End-of-RIB marker for one address family: an UPDATE
// with zero withdrawn routes and zero path attributes (RFC 4724 §2). For
// the default IPv4 unicast family this degenerates to the minimal UPDATE
// body: two zero length fields and nothing else.
func EOR(family AFISAFI) []byte {
	if family.AFI == 1 && family.SAFI == 1 {
		body := make([]byte, minUpdateLength)
		msg := EncodeHeader(uint16(HeaderLength+len(body)), UPDATE)
		return append(msg, body...)
	}
	// MP_UNREACH_NLRI-based EOR for other address families: a path
	// attribute carrying the AFI/SAFI with no NLRI inside it.
	attr := []byte{0xC0, 15, 3, byte(family.AFI >> 8), byte(family.AFI), family.SAFI}
	body := make([]byte, 0, minUpdateLength+len(attr))
	body = append(body, 0, 0) // withdrawn routes length
	body = append(body, byte(len(attr)>>8), byte(len(attr)))
	body = append(body, attr...)
	msg := EncodeHeader(uint16(HeaderLength+len(body)), UPDATE)
	return append(msg, body...)
}
