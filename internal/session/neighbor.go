package session

import (
	"net"
	"time"

	"github.com/s12016/exabgp/internal/wire"
)

// Neighbor is the consumed-not-defined peer configuration spec.md §6
// lists: "peer address, peer ASN, passive flag, graceful_restart flag,
// api.neighbor_changes flag, and opaque capability/family set."
type Neighbor struct {
	PeerAddress       net.IP
	LocalAS, PeerAS   wire.ASN
	LocalIdentifier   wire.Identifier
	Passive           bool
	GracefulRestart   bool
	NeighborChanges   bool
	HoldTime          time.Duration
	Families          []wire.AFISAFI
}

// ProcessBridge is the external process API spec.md §4.2.3/§6 names:
// "announce the peer as up", and a liveness probe the outbound
// establishment phase consults before dialing.
type ProcessBridge interface {
	Broken(peerAddress string) bool
	Up(peerAddress string) error
}

// NullProcessBridge is a ProcessBridge that is never broken and never
// fails to announce — the default when no external process API is
// wired, matching the teacher's habit of a no-op default collaborator
// (see old/session's unconfigured-API fallback).
type NullProcessBridge struct{}

func (NullProcessBridge) Broken(string) bool   { return false }
func (NullProcessBridge) Up(string) error      { return nil }
