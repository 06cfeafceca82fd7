package atalk

// Well-known ethertypes carried over the link in SNAP frames.
const (
	EthertypeAppleTalk uint16 = 0x809B // DDP
	EthertypeAARP      uint16 = 0x80F3
)

// SNAP indicator carried in the shared DSAP/SSAP byte pair. 0x55 is the
// 7-bit value; the low bit of each byte is the I/G or C/R flag.
const snapSAP = 0x55

// MaxFrameSize is the MTU enforced on both ingress and egress, measured as
// the ELAP length field (bytes following the 14-byte MAC+length prefix).
const MaxFrameSize = 1600

// DDPHeaderSize is the fixed length of a DDP long header, exported so
// callers building the length field of a wrapping header don't have to
// re-derive it from Ddp.Encode's output.
const DDPHeaderSize = ddpHeaderSize

// Socket number regions (AppleTalk socket numbers are one byte).
const (
	SocketReserved    = 0
	SocketNBP         = 1 // Name Binding Protocol, static
	SocketAEP         = 4 // AppleTalk Echo Protocol, static
	SocketStaticMin   = 2
	SocketStaticMax   = 127
	SocketDynamicMin  = 128
	SocketDynamicMax  = 253
	SocketReservedMin = 254
)

// Startup-range network numbers used when picking a random tentative
// address (the "startup range" AppleTalk phase 2 reserves for nodes that
// have not yet been assigned a real network number).
const (
	StartupNetMin uint16 = 0xFF00
	StartupNetMax uint16 = 0xFFFE
)

// AppleOUI is Apple Computer's IEEE OUI, used as the SNAP OUI for DDP
// frames.
var AppleOUI = [3]byte{0x08, 0x00, 0x07}

// AppleTalkBroadcastOUI is the OUI AppleTalk uses for its link-layer
// broadcast address — distinct from AppleOUI, which this stack uses only
// as the SNAP OUI of DDP frames.
var AppleTalkBroadcastOUI = [3]byte{0x09, 0x00, 0x07}

// AARPOUI is the SNAP OUI carried by AARP frames: always zero.
var AARPOUI = [3]byte{0x00, 0x00, 0x00}

// LAAOUI is the OUI prefix used when this stack mints its own
// locally-administered MAC addresses.
var LAAOUI = [3]byte{0x52, 0x54, 0x00}

// ZeroMAC is the all-zeros MAC, used as the AARP "don't know" placeholder
// for dst_hw during probes and requests.
var ZeroMAC = Mac{}

// BroadcastMAC is the Ethernet broadcast address.
var BroadcastMAC = Mac{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// AppleTalkBroadcastMAC is the link-layer broadcast address AppleTalk uses
// to reach every node on the segment (AppleTalkBroadcastOUI ‖ 0xFFFFFF).
var AppleTalkBroadcastMAC = Mac{
	AppleTalkBroadcastOUI[0], AppleTalkBroadcastOUI[1], AppleTalkBroadcastOUI[2],
	0xFF, 0xFF, 0xFF,
}

// AppleTalkBroadcast is the network-layer broadcast address, net 0 node 255.
var AppleTalkBroadcast = Addr{Net: 0, Node: 255}
