package stack

import (
	"time"

	"github.com/habnabit/crabbletalk/pkg/atalk"
)

// Datagram is a DDP payload delivered to a local socket, with the header
// fields a recipient needs and none it doesn't.
type Datagram struct {
	SrcAddr   atalk.Addr
	SrcSocket uint8
	Type      uint8
	Payload   []byte
}

// egressEvent is what DdpSocket.SendTo enqueues on the shared per-socket
// egress channel: everything the sending socket already knows about the
// datagram, short of the source network/node (the driver fills that in
// from the current Accepted address when it resolves the frame).
type egressEvent struct {
	dst       atalk.Addr
	dstSocket uint8
	srcSocket uint8
	ddpType   uint8
	payload   []byte
}

// pendingEgress is an egress event still waiting on an AARP resolution.
type pendingEgress struct {
	ev          egressEvent
	submittedAt time.Time
}

type openRequest struct {
	reply chan *DdpSocket
}

type closeRequest struct {
	socket uint8
}

// socketRegistration is the driver's bookkeeping for one open DdpSocket.
type socketRegistration struct {
	socket  uint8
	inbound chan Datagram
}
