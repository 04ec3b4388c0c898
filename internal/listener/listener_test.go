package listener

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/s12016/exabgp/internal/metrics"
	"github.com/s12016/exabgp/internal/wire"
)

func testOpenBytes(t *testing.T) []byte {
	t.Helper()
	o := wire.NewOpen(65001, 180*time.Second, 0x01020304, wire.Capabilities{})
	return o.Encode()
}

func dialLoopback(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func newTestListener(t *testing.T) (*Listener, string) {
	t.Helper()
	l := New(0, 8, zerolog.Nop())
	if err := l.Start([]string{"127.0.0.1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	addr := l.sockets[0].Addr().String()
	t.Cleanup(l.Stop)
	return l, addr
}

func TestAcceptAndBufferOpen(t *testing.T) {
	l, addr := newTestListener(t)
	conn := dialLoopback(t, addr)
	defer conn.Close()

	open := testOpenBytes(t)
	if _, err := conn.Write(open); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		accepted, err := l.Connections(time.Now())
		if err != nil {
			t.Fatalf("connections: %v", err)
		}
		if len(accepted) == 1 {
			if string(accepted[0].Open) != string(open) {
				t.Errorf("buffered OPEN mismatch")
			}
			if !accepted[0].RemoteIP.IsLoopback() {
				t.Errorf("expected loopback remote, got %v", accepted[0].RemoteIP)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for accepted OPEN")
}

func TestRejectsBadMarker(t *testing.T) {
	l, addr := newTestListener(t)
	conn := dialLoopback(t, addr)
	defer conn.Close()

	rejected := metrics.RejectedTotal.Get()
	bad := make([]byte, wire.HeaderLength)
	conn.Write(bad)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		l.Connections(time.Now())
		if metrics.RejectedTotal.Get() > rejected && len(l.pending) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("connection with invalid marker was never dropped")
}

func TestOpenWaitTimeoutDropsIdleConnection(t *testing.T) {
	l, addr := newTestListener(t)
	conn := dialLoopback(t, addr)
	defer conn.Close()

	future := time.Now().Add(MaxOpenWait + time.Second)
	if _, err := l.Connections(time.Now()); err != nil {
		t.Fatalf("connections: %v", err)
	}
	if _, err := l.Connections(future); err != nil {
		t.Fatalf("connections: %v", err)
	}
	if len(l.pending) != 0 {
		t.Errorf("expected pending connection to be dropped after open-wait timeout")
	}
}

func TestStopClosesSockets(t *testing.T) {
	l := New(0, 8, zerolog.Nop())
	if err := l.Start([]string{"127.0.0.1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	addr := l.sockets[0].Addr().String()
	l.Stop()

	if _, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		t.Errorf("expected dial to closed listener to fail")
	}
}
