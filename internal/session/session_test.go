package session

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/s12016/exabgp/internal/wire"
)

func testNeighbor(peerAS wire.ASN) Neighbor {
	return Neighbor{
		PeerAddress:     net.ParseIP("127.0.0.1"),
		LocalAS:         65000,
		PeerAS:          peerAS,
		LocalIdentifier: 0x0A000001,
		HoldTime:        6 * time.Second,
	}
}

func remoteOpenBytes(myAS wire.ASN, holdTime uint16, id uint32) []byte {
	o := wire.NewOpen(myAS, time.Duration(holdTime)*time.Second, wire.Identifier(id), wire.Capabilities{})
	return o.Encode()
}

func pumpUntil(t *testing.T, p *Peer, deadline time.Time, want func() bool) {
	t.Helper()
	for time.Now().Before(deadline) {
		p.Step(time.Now())
		if want() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

// driveRemote acts as the far end of the TCP connection during
// establishment: read whatever the peer sends, and once it has seen an
// OPEN followed eventually by a KEEPALIVE request, reply with its own
// KEEPALIVE. This mirrors spec.md §4.2.1 steps 3-6 from the remote's
// perspective.
func driveRemote(t *testing.T, conn net.Conn) {
	t.Helper()
	buf := make([]byte, 4096)
	// read OPEN
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := readFullMessage(conn, buf)
	if err != nil {
		t.Errorf("remote: reading OPEN: %v", err)
		return
	}
	if wire.MessageType(n[18]) != wire.OPEN {
		t.Errorf("remote: expected OPEN, got type %d", n[18])
		return
	}
	// read KEEPALIVE
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFullMessage(conn, buf); err != nil {
		t.Errorf("remote: reading KEEPALIVE: %v", err)
		return
	}
	// send our own KEEPALIVE
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write(wire.EncodeKeepalive()); err != nil {
		t.Errorf("remote: writing KEEPALIVE: %v", err)
	}
}

// driveRemoteOutbound plays the remote side of _connect (spec.md
// §4.2.2): unlike the inbound half, the peer here waits to read our
// OPEN and KEEPALIVE before sending its own, so the remote must write
// both up front rather than answering request-response.
func driveRemoteOutbound(t *testing.T, conn net.Conn) {
	t.Helper()
	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write(remoteOpenBytes(65002, 180, 0x05060708)); err != nil {
		t.Errorf("remote: writing OPEN: %v", err)
		return
	}
	if _, err := conn.Write(wire.EncodeKeepalive()); err != nil {
		t.Errorf("remote: writing KEEPALIVE: %v", err)
		return
	}

	buf := make([]byte, 4096)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFullMessage(conn, buf); err != nil {
		t.Errorf("remote: reading OPEN: %v", err)
		return
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFullMessage(conn, buf); err != nil {
		t.Errorf("remote: reading KEEPALIVE: %v", err)
	}
}

func readFullMessage(conn net.Conn, buf []byte) ([]byte, error) {
	got := 0
	for got < wire.HeaderLength {
		n, err := conn.Read(buf[got:])
		got += n
		if err != nil {
			return nil, err
		}
	}
	h, err := wire.DecodeHeader(buf[:got])
	if err != nil {
		return nil, err
	}
	for got < int(h.Length) {
		n, err := conn.Read(buf[got:])
		got += n
		if err != nil {
			return nil, err
		}
	}
	return buf[:got], nil
}

func TestIncomingRejectedWhenNotIdle(t *testing.T) {
	n := testNeighbor(65001)
	p := New(n, nil, time.Second, 0, false, zerolog.Nop())
	p.inState = Active

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	if p.Incoming(server, remoteOpenBytes(65001, 180, 1)) {
		t.Errorf("expected incoming to be rejected when in_state != idle")
	}
}

func TestIncomingRejectedWhenOutboundEstablished(t *testing.T) {
	n := testNeighbor(65001)
	p := New(n, nil, time.Second, 0, false, zerolog.Nop())
	p.outState = Established

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	if p.Incoming(server, remoteOpenBytes(65001, 180, 1)) {
		t.Errorf("expected incoming to be rejected when out_state = established")
	}
}

func TestInboundEstablishment(t *testing.T) {
	n := testNeighbor(65001)
	n.Passive = true // keep the outbound half absent so it doesn't race a dial against nothing
	p := New(n, nil, 5*time.Second, 0, false, zerolog.Nop())

	server, client := net.Pipe()
	defer client.Close()

	open := remoteOpenBytes(65001, 180, 0x01020304)
	if !p.Incoming(server, open) {
		t.Fatalf("expected incoming to be accepted")
	}

	go driveRemote(t, client)

	pumpUntil(t, p, time.Now().Add(3*time.Second), func() bool {
		return p.inState == Established
	})

	if p.proto == nil {
		t.Errorf("expected proto to be aliased to the winning adapter")
	}
}

func TestStopIsIdempotentAndTerminates(t *testing.T) {
	n := testNeighbor(65001)
	n.Passive = true
	p := New(n, nil, time.Second, 0, false, zerolog.Nop())
	p.Stop()

	for i := 0; i < 5; i++ {
		if intent := p.Step(time.Now()); intent != IntentDone {
			t.Fatalf("step %d: expected Done, got %v", i, intent)
		}
	}
}

// TestGracefulRestartClosesWithoutNotification matches spec.md §8
// scenario 6: an established session with graceful restart negotiated
// closes on stop() without ever writing a NOTIFICATION.
func TestGracefulRestartClosesWithoutNotification(t *testing.T) {
	n := testNeighbor(65001)
	n.GracefulRestart = true
	n.Passive = true
	p := New(n, nil, 5*time.Second, 0, false, zerolog.Nop())
	p.restarted = true

	server, client := net.Pipe()
	defer client.Close()

	open := remoteOpenBytes(65001, 180, 0x01020304)
	if !p.Incoming(server, open) {
		t.Fatalf("expected incoming to be accepted")
	}
	go driveRemote(t, client)
	pumpUntil(t, p, time.Now().Add(3*time.Second), func() bool {
		return p.inState == Established
	})

	p.Stop()

	remoteSawBytes := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		client.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := client.Read(buf)
		if err != nil {
			remoteSawBytes <- nil
			return
		}
		remoteSawBytes <- buf[:n]
	}()

	pumpUntil(t, p, time.Now().Add(3*time.Second), func() bool {
		return !p.running && p.proto == nil
	})

	select {
	case b := <-remoteSawBytes:
		if b != nil {
			t.Errorf("expected graceful-restart close to send no bytes, got %d bytes", len(b))
		}
	case <-time.After(100 * time.Millisecond):
		// the remote read has not returned within 100ms, so no bytes
		// arrived; that is the expected outcome for a silent close.
	}
}

// TestOutboundEstablishment exercises _connect (spec.md §4.2.2) against
// a real loopback listener standing in for the remote peer, since
// Adapter.Connect dials a real socket rather than a net.Pipe.
func TestOutboundEstablishment(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port := 0
	fmt.Sscanf(portStr, "%d", &port)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			accepted <- nil
			return
		}
		accepted <- conn
	}()

	n := testNeighbor(65002)
	p := New(n, nil, 5*time.Second, port, false, zerolog.Nop())

	pumpUntil(t, p, time.Now().Add(3*time.Second), func() bool {
		return p.outLoop == Running && p.outState != Idle
	})

	var remote net.Conn
	select {
	case remote = <-accepted:
		if remote == nil {
			t.Fatalf("accept failed")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("remote never accepted the outbound connection")
	}
	defer remote.Close()

	remoteDone := make(chan struct{})
	go func() {
		driveRemoteOutbound(t, remote)
		close(remoteDone)
	}()

	pumpUntil(t, p, time.Now().Add(3*time.Second), func() bool {
		return p.outState == Established
	})

	if p.proto == nil {
		t.Errorf("expected proto to be aliased to the winning outbound adapter")
	}
	// let the remote finish reading our OPEN and KEEPALIVE before the
	// deferred Close tears its socket down
	<-remoteDone
}
