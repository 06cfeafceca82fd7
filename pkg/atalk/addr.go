package atalk

import (
	"fmt"
	"math/rand/v2"
)

// Mac is an IEEE 802 hardware address: a 3-byte OUI followed by a 3-byte
// NIC identifier.
type Mac [6]byte

// String renders the address in the conventional colon-hex form.
func (m Mac) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsZero reports whether m is the all-zeros placeholder used by AARP for
// "unknown hardware address".
func (m Mac) IsZero() bool {
	return m == ZeroMAC
}

// RandomLAAMac mints a locally-administered MAC under LAAOUI with a random
// NIC portion.
func RandomLAAMac() Mac {
	var m Mac
	copy(m[:3], LAAOUI[:])
	m[3] = byte(rand.IntN(256))
	m[4] = byte(rand.IntN(256))
	m[5] = byte(rand.IntN(256))
	return m
}

// NodeKind classifies an Addr's node byte.
type NodeKind int

const (
	NodeUnknown NodeKind = iota
	NodeBroadcast
	NodeNumbered
)

// Addr is an AppleTalk network.node address.
type Addr struct {
	Net  uint16
	Node uint8
}

// Kind classifies the node byte: 0 is Unknown, 255 is Broadcast, and
// anything in between is a numbered node.
func (a Addr) Kind() NodeKind {
	switch a.Node {
	case 0:
		return NodeUnknown
	case 255:
		return NodeBroadcast
	default:
		return NodeNumbered
	}
}

// IsBroadcast reports whether a is the AppleTalk link broadcast address
// (any network number with node 255 is treated as locally broadcast).
func (a Addr) IsBroadcast() bool {
	return a.Kind() == NodeBroadcast
}

func (a Addr) String() string {
	switch a.Kind() {
	case NodeUnknown:
		return fmt.Sprintf("%d.0", a.Net)
	case NodeBroadcast:
		return fmt.Sprintf("%d.255", a.Net)
	default:
		return fmt.Sprintf("%d.%d", a.Net, a.Node)
	}
}

// RandomStartupAddr picks a candidate address from the startup-range
// network numbers and a node in [1,254], per §3 of the address model.
func RandomStartupAddr() Addr {
	net := StartupNetMin + uint16(rand.IntN(int(StartupNetMax-StartupNetMin)+1))
	node := uint8(1 + rand.IntN(254))
	return Addr{Net: net, Node: node}
}

// SocketRegion classifies a socket number into the regions defined in §3.
type SocketRegion int

const (
	SocketRegionReserved SocketRegion = iota
	SocketRegionNBP
	SocketRegionAEP
	SocketRegionStatic
	SocketRegionDynamic
)

// Classify returns the region a socket number falls into.
func Classify(socket uint8) SocketRegion {
	switch {
	case socket == SocketNBP:
		return SocketRegionNBP
	case socket == SocketAEP:
		return SocketRegionAEP
	case socket >= SocketStaticMin && socket <= SocketStaticMax:
		return SocketRegionStatic
	case socket >= SocketDynamicMin && socket <= SocketDynamicMax:
		return SocketRegionDynamic
	default:
		return SocketRegionReserved
	}
}

// RandomDynamicSocket picks uniformly from the dynamically-assignable
// socket range [128,253].
func RandomDynamicSocket() uint8 {
	return uint8(SocketDynamicMin + rand.IntN(SocketDynamicMax-SocketDynamicMin+1))
}
