package atalk

import (
	"encoding/binary"
	"fmt"
)

// elapHeaderSize is the fixed 22-byte EtherTalk link header: dst MAC, src
// MAC, length, DSAP/IG, SSAP/CR, control, OUI, ethertype.
const elapHeaderSize = 22

// Elap is the EtherTalk Link Access Protocol header: 802.3/SNAP framing
// wrapping either an AARP or a DDP payload.
type Elap struct {
	DstMAC    Mac
	SrcMAC    Mac
	Length    uint16 // bytes following the 14-byte MAC+length prefix: the 8 SNAP header bytes plus payload
	DSAP      uint8  // 7 bits
	IG        bool   // low bit of the DSAP byte
	SSAP      uint8  // 7 bits
	CR        bool   // low bit of the SSAP byte
	Control   uint8
	OUI       [3]byte
	Ethertype uint16
}

// NewSNAPElap builds an ELAP header for AppleTalk-carrying traffic: SNAP
// DSAP/SSAP, IG/CR clear, control 3. payloadLen is the size of the body
// that follows the 22-byte header; the length field also counts the 8
// SNAP header bytes after the MAC+length prefix.
func NewSNAPElap(dst, src Mac, oui [3]byte, ethertype uint16, payloadLen int) Elap {
	return Elap{
		DstMAC:    dst,
		SrcMAC:    src,
		Length:    uint16(elapHeaderSize - 14 + payloadLen),
		DSAP:      snapSAP,
		SSAP:      snapSAP,
		Control:   3,
		OUI:       oui,
		Ethertype: ethertype,
	}
}

// IsSNAP reports whether the DSAP/SSAP pair identifies this as a SNAP
// frame, the only kind of frame this stack accepts.
func (e Elap) IsSNAP() bool {
	return e.DSAP == snapSAP && e.SSAP == snapSAP
}

// Encode packs the fixed 22-byte header. It does not include the trailing
// payload; callers append that themselves.
func (e Elap) Encode() []byte {
	buf := make([]byte, elapHeaderSize)
	copy(buf[0:6], e.DstMAC[:])
	copy(buf[6:12], e.SrcMAC[:])
	binary.BigEndian.PutUint16(buf[12:14], e.Length)

	dsapByte := (e.DSAP << 1) & 0xFE
	if e.IG {
		dsapByte |= 1
	}
	buf[14] = dsapByte

	ssapByte := (e.SSAP << 1) & 0xFE
	if e.CR {
		ssapByte |= 1
	}
	buf[15] = ssapByte

	buf[16] = e.Control
	copy(buf[17:20], e.OUI[:])
	binary.BigEndian.PutUint16(buf[20:22], e.Ethertype)
	return buf
}

// DecodeELAPSplit decodes the fixed ELAP header from the front of data and
// returns the remaining trailing bytes (the SNAP payload). Unknown
// ethertypes are not a decode failure — the caller decides what to do with
// them.
func DecodeELAPSplit(data []byte) (Elap, []byte, error) {
	if len(data) < elapHeaderSize {
		return Elap{}, nil, fmt.Errorf("decode elap: %w: need %d bytes, got %d", ErrMalformedFrame, elapHeaderSize, len(data))
	}

	var e Elap
	copy(e.DstMAC[:], data[0:6])
	copy(e.SrcMAC[:], data[6:12])
	e.Length = binary.BigEndian.Uint16(data[12:14])

	e.DSAP = (data[14] >> 1) & 0x7F
	e.IG = data[14]&1 != 0
	e.SSAP = (data[15] >> 1) & 0x7F
	e.CR = data[15]&1 != 0

	e.Control = data[16]
	copy(e.OUI[:], data[17:20])
	e.Ethertype = binary.BigEndian.Uint16(data[20:22])

	return e, data[elapHeaderSize:], nil
}
