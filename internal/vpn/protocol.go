package vpn

import "strings"

// Protocol is the tunnelling method requested by the client.
type Protocol string

const (
	ProtocolTCP       Protocol = "tcp"
	ProtocolUDP       Protocol = "udp"
	ProtocolIKEv2     Protocol = "ikev2"
	ProtocolWireGuard Protocol = "wireguard"
)

// Protocols lists every protocol with a generation strategy, in display order.
var Protocols = []Protocol{ProtocolTCP, ProtocolUDP, ProtocolIKEv2, ProtocolWireGuard}

// ProtocolPort is the OpenVPN transport port for a protocol.
type ProtocolPort int

const (
	PortTCP ProtocolPort = 443
	PortUDP ProtocolPort = 1194
)

// ParseProtocol normalizes user input into a Protocol. Unknown values are returned
// as-is so dispatch can reject them with ErrUnsupportedProtocol.
func ParseProtocol(raw string) Protocol {
	switch value := strings.ToLower(strings.TrimSpace(raw)); value {
	case "openvpn-tcp":
		return ProtocolTCP
	case "openvpn-udp", "openvpn":
		return ProtocolUDP
	case "ike", "ikev2", "strongswan":
		return ProtocolIKEv2
	case "wg", "wireguard":
		return ProtocolWireGuard
	default:
		return Protocol(value)
	}
}

// Known reports whether p has a generation strategy.
func (p Protocol) Known() bool {
	switch p {
	case ProtocolTCP, ProtocolUDP, ProtocolIKEv2, ProtocolWireGuard:
		return true
	}
	return false
}

// OpenVPN reports whether p is carried over OpenVPN.
func (p Protocol) OpenVPN() bool {
	return p == ProtocolTCP || p == ProtocolUDP
}

func (p Protocol) String() string {
	return string(p)
}

// Port returns the OpenVPN port for p. ok is false for protocols not carried over OpenVPN.
func (p Protocol) Port() (port ProtocolPort, ok bool) {
	switch p {
	case ProtocolTCP:
		return PortTCP, true
	case ProtocolUDP:
		return PortUDP, true
	}
	return 0, false
}
