package atalk

import (
	"encoding/binary"
	"fmt"
)

// ddpHeaderSize is the fixed 13-byte DDP long header.
const ddpHeaderSize = 13

// Ddp is a DDP long-header datagram. Short-form headers are not part of
// this stack; every packet this core emits or accepts carries the long
// form.
type Ddp struct {
	HopCount  uint8  // 4 bits
	Length    uint16 // 10 bits: header + payload
	Checksum  uint16 // 0 on ingress means "not checked"
	DstNet    uint16
	SrcNet    uint16
	DstNode   uint8
	SrcNode   uint8
	DstSocket uint8
	SrcSocket uint8
	Type      uint8
}

// DstAddr returns the destination as an Addr.
func (d Ddp) DstAddr() Addr { return Addr{Net: d.DstNet, Node: d.DstNode} }

// SrcAddr returns the source as an Addr.
func (d Ddp) SrcAddr() Addr { return Addr{Net: d.SrcNet, Node: d.SrcNode} }

// Encode packs the fixed 13-byte header. It does not include the trailing
// payload.
func (d Ddp) Encode() []byte {
	buf := make([]byte, ddpHeaderSize)

	first := uint16(d.HopCount&0xF)<<10 | (d.Length & 0x3FF)
	binary.BigEndian.PutUint16(buf[0:2], first)

	binary.BigEndian.PutUint16(buf[2:4], d.Checksum)
	binary.BigEndian.PutUint16(buf[4:6], d.DstNet)
	binary.BigEndian.PutUint16(buf[6:8], d.SrcNet)
	buf[8] = d.DstNode
	buf[9] = d.SrcNode
	buf[10] = d.DstSocket
	buf[11] = d.SrcSocket
	buf[12] = d.Type

	return buf
}

// DecodeDDPSplit decodes the fixed 13-byte DDP header from the front of
// data and returns the trailing payload bytes.
func DecodeDDPSplit(data []byte) (Ddp, []byte, error) {
	if len(data) < ddpHeaderSize {
		return Ddp{}, nil, fmt.Errorf("decode ddp: %w: need %d bytes, got %d", ErrMalformedFrame, ddpHeaderSize, len(data))
	}

	var d Ddp
	first := binary.BigEndian.Uint16(data[0:2])
	d.HopCount = uint8((first >> 10) & 0xF)
	d.Length = first & 0x3FF

	d.Checksum = binary.BigEndian.Uint16(data[2:4])
	d.DstNet = binary.BigEndian.Uint16(data[4:6])
	d.SrcNet = binary.BigEndian.Uint16(data[6:8])
	d.DstNode = data[8]
	d.SrcNode = data[9]
	d.DstSocket = data[10]
	d.SrcSocket = data[11]
	d.Type = data[12]

	return d, data[ddpHeaderSize:], nil
}
