package config

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/s12016/exabgp/internal/wire"
)

// AutoIdentifier picks a BGP identifier from the host's own interfaces
// when the operator hasn't pinned one explicitly. Adapted from the
// teacher's network.FindBGPIdentifier (network/network.go): same
// first-global-unicast-IPv4-wins selection, rewired to return
// wire.Identifier instead of a bare uint32.
func AutoIdentifier() (wire.Identifier, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return 0, err
	}
	for _, iface := range ifs {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ip, _, err := net.ParseCIDR(addr.String())
			if err != nil {
				continue
			}
			ip4 := ip.To4()
			if ip4 == nil {
				continue
			}
			if ip.IsGlobalUnicast() {
				return wire.Identifier(binary.BigEndian.Uint32(ip4)), nil
			}
		}
	}
	return 0, fmt.Errorf("config: no global-unicast IPv4 address found for an automatic router id")
}
