package atalk

import (
	"encoding/binary"
	"fmt"
)

// AarpFunction is the AARP operation code.
type AarpFunction uint16

const (
	AarpRequest  AarpFunction = 1
	AarpResponse AarpFunction = 2
	AarpProbe    AarpFunction = 3
)

func (f AarpFunction) String() string {
	switch f {
	case AarpRequest:
		return "request"
	case AarpResponse:
		return "response"
	case AarpProbe:
		return "probe"
	default:
		return fmt.Sprintf("aarp-function(%d)", uint16(f))
	}
}

// aarpSize is the fixed 28-byte AARP packet: hardware, protocol, hw-len,
// proto-len, function, src hw+pad+atalk, dst hw+pad+atalk.
const aarpSize = 28

// Aarp is an AppleTalk Address Resolution Protocol packet.
type Aarp struct {
	Hardware uint16 // 1 = Ethernet
	Protocol uint16 // the AppleTalk ethertype
	HWLen    uint8  // 6
	ProtoLen uint8  // 4
	Function AarpFunction
	SrcHW    Mac
	SrcAtalk Addr
	DstHW    Mac
	DstAtalk Addr
}

// NewAarp fills in the fixed fields (hardware=Ethernet, protocol=AppleTalk,
// hw-len=6, proto-len=4) for a freshly constructed packet.
func NewAarp(function AarpFunction, srcHW Mac, srcAtalk Addr, dstHW Mac, dstAtalk Addr) Aarp {
	return Aarp{
		Hardware: 1,
		Protocol: EthertypeAppleTalk,
		HWLen:    6,
		ProtoLen: 4,
		Function: function,
		SrcHW:    srcHW,
		SrcAtalk: srcAtalk,
		DstHW:    dstHW,
		DstAtalk: dstAtalk,
	}
}

// Encode packs the fixed 28-byte AARP body. The two reserved pad bytes are
// always emitted as literal zero.
func (a Aarp) Encode() []byte {
	buf := make([]byte, aarpSize)
	binary.BigEndian.PutUint16(buf[0:2], a.Hardware)
	binary.BigEndian.PutUint16(buf[2:4], a.Protocol)
	buf[4] = a.HWLen
	buf[5] = a.ProtoLen
	binary.BigEndian.PutUint16(buf[6:8], uint16(a.Function))

	copy(buf[8:14], a.SrcHW[:])
	buf[14] = 0 // pad
	binary.BigEndian.PutUint16(buf[15:17], a.SrcAtalk.Net)
	buf[17] = a.SrcAtalk.Node

	copy(buf[18:24], a.DstHW[:])
	buf[24] = 0 // pad
	binary.BigEndian.PutUint16(buf[25:27], a.DstAtalk.Net)
	buf[27] = a.DstAtalk.Node

	return buf
}

// DecodeAARPSplit decodes the fixed 28-byte AARP body from the front of
// data and returns the trailing bytes (normally empty — AARP carries no
// payload beyond its fixed body).
func DecodeAARPSplit(data []byte) (Aarp, []byte, error) {
	if len(data) < aarpSize {
		return Aarp{}, nil, fmt.Errorf("decode aarp: %w: need %d bytes, got %d", ErrMalformedFrame, aarpSize, len(data))
	}

	var a Aarp
	a.Hardware = binary.BigEndian.Uint16(data[0:2])
	a.Protocol = binary.BigEndian.Uint16(data[2:4])
	a.HWLen = data[4]
	a.ProtoLen = data[5]
	a.Function = AarpFunction(binary.BigEndian.Uint16(data[6:8]))

	copy(a.SrcHW[:], data[8:14])
	a.SrcAtalk.Net = binary.BigEndian.Uint16(data[15:17])
	a.SrcAtalk.Node = data[17]

	copy(a.DstHW[:], data[18:24])
	a.DstAtalk.Net = binary.BigEndian.Uint16(data[25:27])
	a.DstAtalk.Node = data[27]

	if a.Hardware != 1 && a.Hardware != 2 {
		return Aarp{}, nil, fmt.Errorf("decode aarp: %w: hardware type %d out of range", ErrMalformedFrame, a.Hardware)
	}
	if a.Function != AarpRequest && a.Function != AarpResponse && a.Function != AarpProbe {
		return Aarp{}, nil, fmt.Errorf("decode aarp: %w: function %d out of range", ErrMalformedFrame, a.Function)
	}

	return a, data[aarpSize:], nil
}
