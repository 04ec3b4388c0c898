// exabgpd runs one reactor loop over a listener and a set of configured
// peers, the same top-level shape as the teacher's cmd/main.go (bind,
// configure peers, run), generalized from a single hardcoded neighbor
// list to config.Load-driven settings plus a listener-fed accept path.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/s12016/exabgp/internal/config"
	"github.com/s12016/exabgp/internal/listener"
	"github.com/s12016/exabgp/internal/session"
	"github.com/s12016/exabgp/internal/wire"
)

// tickInterval bounds how long the reactor sleeps when every peer and
// the listener reported IntentIdle in the same pass.
const tickInterval = 50 * time.Millisecond

func main() {
	fs := pflag.NewFlagSet("exabgpd", pflag.ExitOnError)
	configPath := fs.String("config", "", "path to an optional YAML config file")
	peerAddrs := fs.StringSlice("neighbor", nil, "peer IP address to configure (repeatable)")
	peerAS := fs.Int("peer-as", 0, "peer AS number shared by every configured neighbor")
	localAS := fs.Int("local-as", 0, "local AS number")
	localID := fs.String("router-id", "", "local BGP identifier, dotted-quad (auto-detected from a host interface if omitted)")
	fs.Bool("debug", false, "log at debug level instead of info")
	config.Flags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := zerolog.InfoLevel
	if debug, _ := fs.GetBool("debug"); debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	settings, err := config.Load(*configPath, fs)
	if err != nil {
		log.Fatal().Err(err).Msg("loading configuration")
	}

	ln := listener.New(settings.ListenPort, settings.Backlog, log)
	if err := ln.Start(settings.ListenHosts); err != nil {
		log.Fatal().Err(err).Msg("binding listener")
	}
	defer ln.Stop()

	var id wire.Identifier
	if *localID == "" {
		id, err = config.AutoIdentifier()
		if err != nil {
			log.Fatal().Err(err).Msg("auto-detecting router id")
		}
	} else {
		id, err = parseIdentifier(*localID)
		if err != nil {
			log.Fatal().Err(err).Str("router-id", *localID).Msg("parsing router id")
		}
	}

	peers := make(map[string]*session.Peer, len(*peerAddrs))
	for _, addr := range *peerAddrs {
		n := session.Neighbor{
			PeerAddress:     net.ParseIP(addr),
			LocalAS:         wire.ASN(*localAS),
			PeerAS:          wire.ASN(*peerAS),
			LocalIdentifier: id,
			HoldTime:        90 * time.Second,
		}
		if n.PeerAddress == nil {
			log.Fatal().Str("neighbor", addr).Msg("invalid neighbor address")
		}
		peers[n.PeerAddress.String()] = session.New(n, nil, settings.OpenWait, 179, settings.TCPOnce, log)
		log.Info().Str("neighbor", addr).Msg("configured neighbor")
	}

	run(ln, peers, log)
}

// run is the single-threaded reactor: poll the listener for newly
// accepted connections, hand each to its configured peer, then step
// every peer once per pass. Mirrors the teacher's Speaker.Speak()
// accept-then-serve loop (bgp/speaker.go), replacing its
// one-goroutine-per-peer model with the non-blocking step() contract
// spec.md §2/§5 require.
func run(ln *listener.Listener, peers map[string]*session.Peer, log zerolog.Logger) {
	for {
		now := time.Now()
		urgent := false

		accepted, err := ln.Connections(now)
		if err != nil {
			log.Warn().Err(err).Msg("listener")
		}
		for _, a := range accepted {
			p, ok := peers[a.RemoteIP.String()]
			if !ok {
				log.Warn().Str("remote", a.RemoteIP.String()).Msg("rejecting connection from unconfigured neighbor")
				a.Conn.Close()
				continue
			}
			if !p.Incoming(a.Conn, a.Open) {
				log.Warn().Str("remote", a.RemoteIP.String()).Msg("peer refused incoming connection")
				a.Conn.Close()
				continue
			}
			urgent = true
		}

		for _, p := range peers {
			if p.Step(now) == session.IntentUrgent {
				urgent = true
			}
		}

		if !urgent {
			time.Sleep(tickInterval)
		}
	}
}

func parseIdentifier(s string) (wire.Identifier, error) {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return 0, fmt.Errorf("not a dotted-quad address: %q", s)
	}
	return wire.Identifier(uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])), nil
}
