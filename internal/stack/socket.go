package stack

import (
	"context"
	"fmt"
	"sync"

	"github.com/habnabit/crabbletalk/pkg/atalk"
)

// DdpSocket is a DDP endpoint bound to a dynamically-allocated socket
// number on the stack's Accepted AppleTalk address. It is safe for
// concurrent use by one sender and one receiver, the same contract
// net.PacketConn gives.
type DdpSocket struct {
	localAddr   atalk.Addr
	localSocket uint8

	egressCh   chan<- egressEvent
	inbound    <-chan Datagram
	closeReqCh chan<- closeRequest
	driverDone <-chan struct{}

	closeOnce sync.Once
}

// LocalAddr returns the AppleTalk address this socket was opened under.
// Fixed for the socket's lifetime — once Accepted, the stack never
// reassigns its address.
func (s *DdpSocket) LocalAddr() atalk.Addr { return s.localAddr }

// LocalSocket returns the allocated socket number.
func (s *DdpSocket) LocalSocket() uint8 { return s.localSocket }

// SendTo enqueues a datagram for delivery. The payload is copied; callers
// may reuse their buffer immediately after this returns. Returns
// atalk.ErrHangup if the driver has exited.
func (s *DdpSocket) SendTo(ctx context.Context, payload []byte, dst atalk.Addr, dstSocket, ddpType uint8) error {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	ev := egressEvent{
		dst:       dst,
		dstSocket: dstSocket,
		srcSocket: s.localSocket,
		ddpType:   ddpType,
		payload:   buf,
	}
	select {
	case s.egressCh <- ev:
		return nil
	case <-s.driverDone:
		return fmt.Errorf("sendto: %w", atalk.ErrHangup)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecvFrom blocks for the next inbound datagram and copies up to len(buf)
// bytes into it, returning the copied length and the sender's address,
// socket, and DDP type. Truncation beyond len(buf) is silent. Returns
// atalk.ErrHangup if the socket was closed or the driver exited.
func (s *DdpSocket) RecvFrom(ctx context.Context, buf []byte) (n int, src atalk.Addr, srcSocket, ddpType uint8, err error) {
	select {
	case dg, ok := <-s.inbound:
		if !ok {
			return 0, atalk.Addr{}, 0, 0, fmt.Errorf("recvfrom: %w", atalk.ErrHangup)
		}
		n = copy(buf, dg.Payload)
		return n, dg.SrcAddr, dg.SrcSocket, dg.Type, nil
	case <-s.driverDone:
		return 0, atalk.Addr{}, 0, 0, fmt.Errorf("recvfrom: %w", atalk.ErrHangup)
	case <-ctx.Done():
		return 0, atalk.Addr{}, 0, 0, ctx.Err()
	}
}

// Close releases the socket. The driver deregisters it on its next event
// loop iteration; any RecvFrom blocked on it wakes with atalk.ErrHangup.
// Safe to call more than once.
func (s *DdpSocket) Close() error {
	s.closeOnce.Do(func() {
		select {
		case s.closeReqCh <- closeRequest{socket: s.localSocket}:
		case <-s.driverDone:
		}
	})
	return nil
}
