package stack

import (
	"context"
	"fmt"

	"github.com/habnabit/crabbletalk/internal/events"
	"github.com/habnabit/crabbletalk/pkg/atalk"
)

// Handle is the clonable external façade onto a running Driver. Multiple
// goroutines may hold and use a Handle concurrently; none of them ever
// touch the Driver's internal state directly.
type Handle struct {
	ingressCh chan<- []byte
	openCh    chan<- openRequest
	egressOut <-chan []byte
	done      <-chan struct{}
	bus       *events.Bus
}

// Bus returns the driver's diagnostic event bus directly, for consumers
// (like the audit log) that want to manage their own subscription
// lifecycle rather than go through Subscribe/Unsubscribe.
func (h *Handle) Bus() *events.Bus {
	return h.bus
}

// Subscribe returns a channel of diagnostic events (address acquisition,
// conflicts, gleaned bindings, socket lifecycle). Callers must either keep
// draining it or call Unsubscribe — the bus drops events into a full
// subscriber buffer rather than blocking the driver.
func (h *Handle) Subscribe(bufferSize int) chan events.Event {
	return h.bus.Subscribe(bufferSize)
}

// Unsubscribe stops delivery to a channel returned by Subscribe.
func (h *Handle) Unsubscribe(ch chan events.Event) {
	h.bus.Unsubscribe(ch)
}

// ProcessEthernet hands a raw Ethernet frame to the driver for decoding
// and dispatch. Returns atalk.ErrHangup if the driver has exited.
func (h *Handle) ProcessEthernet(ctx context.Context, frame []byte) error {
	select {
	case h.ingressCh <- frame:
		return nil
	case <-h.done:
		return fmt.Errorf("process ethernet: %w", atalk.ErrHangup)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OpenDDP allocates a new DDP socket. It blocks until the stack has an
// Accepted AppleTalk address, since a DdpSocket's local address is fixed
// at construction. Returns atalk.ErrHangup if the driver has exited before
// that happens.
func (h *Handle) OpenDDP(ctx context.Context) (*DdpSocket, error) {
	reply := make(chan *DdpSocket, 1)
	req := openRequest{reply: reply}

	select {
	case h.openCh <- req:
	case <-h.done:
		return nil, fmt.Errorf("open ddp: %w", atalk.ErrHangup)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case sock := <-reply:
		if sock == nil {
			return nil, fmt.Errorf("open ddp: %w", atalk.ErrHangup)
		}
		return sock, nil
	case <-h.done:
		return nil, fmt.Errorf("open ddp: %w", atalk.ErrHangup)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Egress returns the channel of outbound Ethernet frames the driver
// produces. Callers pump this into their transport's Send. The channel is
// never closed by the driver; it simply stops producing once the driver
// exits, so a caller ranging over it should also select on a context or
// the driver's lifetime to know when to stop.
func (h *Handle) Egress() <-chan []byte {
	return h.egressOut
}
