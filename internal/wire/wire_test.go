package wire

import (
	"testing"
	"time"
)

func TestMarker(t *testing.T) {
	m := Marker()
	if len(m) != MarkerLength {
		t.Fatalf("expected marker length %d but got %d", MarkerLength, len(m))
	}
	for i, v := range m {
		if v != 0xFF {
			t.Errorf("expected all bits set, got %#x at position %d", v, i)
		}
	}
	if !ValidMarker(m) {
		t.Errorf("expected a freshly built marker to validate")
	}
}

func TestValidHoldTime(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want bool
	}{
		{0, true},
		{1 * time.Second, false},
		{2 * time.Second, false},
		{3 * time.Second, true},
		{90 * time.Second, true},
	}
	for _, c := range cases {
		if got := ValidHoldTime(c.d); got != c.want {
			t.Errorf("ValidHoldTime(%s) = %v, want %v", c.d, got, c.want)
		}
	}
}

func TestDecodeHeaderRejectsBadMarker(t *testing.T) {
	buf := make([]byte, HeaderLength)
	buf[0] = 0xFE
	if _, err := DecodeHeader(buf); err != ErrInvalidMarker {
		t.Errorf("expected ErrInvalidMarker, got %v", err)
	}
}

func TestDecodeHeaderReadsAccumulatedLength(t *testing.T) {
	// Regression for spec.md §9: the length field must be read from the
	// fully accumulated buffer, not whatever chunk most recently arrived.
	full := EncodeHeader(29, OPEN)
	h, err := DecodeHeader(full)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Length != 29 {
		t.Errorf("expected length 29, got %d", h.Length)
	}
	if h.Type != OPEN {
		t.Errorf("expected type OPEN, got %d", h.Type)
	}
}

func TestOpenRoundTrip(t *testing.T) {
	o := NewOpen(65001, 90*time.Second, Identifier(0x01020304), Capabilities{
		Families: []AFISAFI{{AFI: 1, SAFI: 1}},
	})
	encoded := o.Encode()
	h, err := DecodeHeader(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Type != OPEN {
		t.Fatalf("expected OPEN type, got %d", h.Type)
	}
	decoded, err := DecodeOpen(encoded[HeaderLength:])
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if decoded.MyAS != 65001 {
		t.Errorf("expected AS 65001, got %d", decoded.MyAS)
	}
	if decoded.HoldTime != 90 {
		t.Errorf("expected hold time 90, got %d", decoded.HoldTime)
	}
	if len(decoded.Capabilities.Families) != 1 || decoded.Capabilities.Families[0] != (AFISAFI{1, 1}) {
		t.Errorf("expected one negotiated family (1,1), got %v", decoded.Capabilities.Families)
	}
}

func TestOpenValidateBadPeerAS(t *testing.T) {
	o := NewOpen(111, 30*time.Second, Identifier(1), Capabilities{})
	err := o.Validate(222, 30*time.Second)
	n, ok := err.(*Notify)
	if !ok {
		t.Fatalf("expected a *Notify, got %v", err)
	}
	if n.Code != CodeOpenMessageError || n.Subcode != SubcodeBadPeerAS {
		t.Errorf("expected (2,2), got (%d,%d)", n.Code, n.Subcode)
	}
}

func TestCapabilitiesIntersect(t *testing.T) {
	local := Capabilities{Families: []AFISAFI{{1, 1}, {2, 1}}}
	remote := Capabilities{Families: []AFISAFI{{2, 1}, {25, 70}}}
	got := Intersect(local, remote)
	if len(got) != 1 || got[0] != (AFISAFI{2, 1}) {
		t.Errorf("expected exactly (2,1), got %v", got)
	}
	// commutative
	got2 := Intersect(remote, local)
	if len(got2) != 1 || got2[0] != (AFISAFI{2, 1}) {
		t.Errorf("expected intersection to be commutative, got %v", got2)
	}
}

func TestCountRoutesOnlyNLRIAndWithdrawn(t *testing.T) {
	// withdrawn: one /24, path attrs: none, nlri: one /32
	body := []byte{
		0, 4, // withdrawn routes length
		24, 10, 0, 1, // withdrawn /24 10.0.1
		0, 0, // total path attribute length
		32, 10, 0, 0, 1, // nlri /32 10.0.0.1
	}
	n, err := CountRoutes(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 routes, got %d", n)
	}
}

func TestCountRoutesTruncatedIsError(t *testing.T) {
	body := []byte{0, 1, 32, 0, 0} // claims 1 withdrawn byte but gives a full prefix length byte
	if _, err := CountRoutes(body); err == nil {
		t.Errorf("expected an error for a truncated withdrawn-routes field")
	}
}

func TestEOREncodesMinimalUpdate(t *testing.T) {
	msg := EOR(AFISAFI{AFI: 1, SAFI: 1})
	h, err := DecodeHeader(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Type != UPDATE {
		t.Errorf("expected UPDATE type, got %d", h.Type)
	}
	n, err := CountRoutes(msg[HeaderLength:])
	if err != nil {
		t.Fatalf("unexpected error counting EOR routes: %v", err)
	}
	if n != 0 {
		t.Errorf("expected an EOR to carry zero routes, got %d", n)
	}
}
