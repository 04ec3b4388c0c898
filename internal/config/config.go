// Package config loads the environment-provided settings spec.md §6
// names (tcp.once, bgp.openwait) plus the listener's own bind
// configuration, layering an optional YAML file under CLI flags —
// flags win. Full neighbor configuration (peer address/ASN/policy)
// stays an external contract per spec.md §1; this package only owns the
// small slice of settings the listener and peer packages consume
// directly.
package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Settings holds the values spec.md §6 calls out plus the listener's
// bind configuration (spec.md §4.1 start(hosts, port, backlog)).
type Settings struct {
	// TCPOnce: if true, a single failed outbound attempt terminates the
	// peer rather than re-arming back-off (spec.md §6).
	TCPOnce bool
	// OpenWait bounds how long a half-session may wait for its peer's
	// OPEN (spec.md §6 bgp.openwait).
	OpenWait time.Duration

	ListenHosts []string
	ListenPort  int
	Backlog     int
}

const defaultBacklog = 200
const defaultOpenWait = 10 * time.Second
const defaultPort = 179

// defaults seeds every key so a completely bare invocation still has
// sane values, matching the teacher's use of package-level consts
// (timer/timer.go's interval, message/keepalive.go's
// minKeepaliveInterval) for protocol defaults.
func defaults() *koanf.Koanf {
	k := koanf.New(".")
	k.Load(confmap.Provider(map[string]interface{}{
		"tcp.once":       false,
		"bgp.openwait":   defaultOpenWait.String(),
		"listen.hosts":   []string{"0.0.0.0"},
		"listen.port":    defaultPort,
		"listen.backlog": defaultBacklog,
	}, "."), nil)
	return k
}

// Load builds Settings from, in increasing precedence: built-in
// defaults, an optional YAML file at path (skipped if path is empty; a
// file that cannot be read or parsed is an error), and CLI flags already
// parsed into fs.
func Load(path string, fs *pflag.FlagSet) (*Settings, error) {
	k := defaults()

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return nil, fmt.Errorf("config: reading flags: %w", err)
		}
	}

	openWait, err := time.ParseDuration(k.String("bgp.openwait"))
	if err != nil {
		return nil, fmt.Errorf("config: bgp.openwait: %w", err)
	}

	return &Settings{
		TCPOnce:     k.Bool("tcp.once"),
		OpenWait:    openWait,
		ListenHosts: k.Strings("listen.hosts"),
		ListenPort:  k.Int("listen.port"),
		Backlog:     k.Int("listen.backlog"),
	}, nil
}

// Flags registers the CLI flags Load reads back out of fs, for cmd/ to
// call before flag.Parse().
func Flags(fs *pflag.FlagSet) {
	fs.Bool("tcp.once", false, "stop a peer after one failed outbound connection attempt")
	fs.Duration("bgp.openwait", defaultOpenWait, "how long to wait for a peer's OPEN before giving up")
	fs.StringSlice("listen.hosts", []string{"0.0.0.0"}, "addresses to listen for incoming BGP sessions on")
	fs.Int("listen.port", defaultPort, "TCP port to listen on")
	fs.Int("listen.backlog", defaultBacklog, "listen backlog")
}
