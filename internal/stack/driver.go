// Package stack implements the AarpStack driver: the single goroutine
// that owns address acquisition, the address mapping table, and DDP
// socket registration, and multiplexes ingress frames, egress datagrams,
// and open/close requests from any number of concurrently-held Handles.
package stack

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/habnabit/crabbletalk/internal/amt"
	"github.com/habnabit/crabbletalk/internal/config"
	"github.com/habnabit/crabbletalk/internal/events"
	"github.com/habnabit/crabbletalk/internal/macvendor"
	"github.com/habnabit/crabbletalk/internal/metrics"
	"github.com/habnabit/crabbletalk/internal/phase"
	"github.com/habnabit/crabbletalk/internal/pool"
	"github.com/habnabit/crabbletalk/pkg/atalk"
)

// Driver owns the AarpStack exclusively. Nothing outside this package
// ever reads or writes its fields directly; all interaction happens
// through the channels a Handle wraps.
type Driver struct {
	cfg      *config.Config
	localMAC atalk.Mac
	logger   *slog.Logger
	vendors  *macvendor.DB

	phase           phase.Phase
	amt             *amt.Table
	socketNums      *pool.SocketPool
	bus             *events.Bus
	sockets         map[uint8]*socketRegistration
	pending         map[atalk.Addr][]pendingEgress
	lookupRequested map[atalk.Addr]bool
	myAddr          atalk.Addr

	ingressCh      chan []byte
	openCh         chan openRequest
	closeReqCh     chan closeRequest
	socketEgressCh chan egressEvent
	egressOutCh    chan []byte

	doneCh     chan struct{}
	acceptedCh chan struct{}
	shutdownCh <-chan struct{} // set once Run starts; nil select case before that
}

// NewDriver constructs a Driver ready to Run. localMAC is this host's
// hardware address on the configured interface. vendors may be nil, in
// which case vendor-name annotations are simply omitted from diagnostics.
func NewDriver(cfg *config.Config, localMAC atalk.Mac, logger *slog.Logger, vendors *macvendor.DB) *Driver {
	socketNums, err := pool.NewSocketPool(atalk.SocketDynamicMin, atalk.SocketDynamicMax)
	if err != nil {
		// The dynamic range is a package constant, never operator-supplied;
		// a bad range here is a programming error, not a runtime condition.
		panic(err)
	}
	return &Driver{
		cfg:      cfg,
		localMAC: localMAC,
		logger:   logger,
		vendors:  vendors,

		phase:           phase.Uninit(),
		amt:             amt.New(),
		socketNums:      socketNums,
		bus:             events.NewBus(cfg.SocketBuffer*4, logger),
		sockets:         make(map[uint8]*socketRegistration),
		pending:         make(map[atalk.Addr][]pendingEgress),
		lookupRequested: make(map[atalk.Addr]bool),

		ingressCh:      make(chan []byte, cfg.IngressBuffer),
		openCh:         make(chan openRequest),
		closeReqCh:     make(chan closeRequest, 4),
		socketEgressCh: make(chan egressEvent, cfg.SocketBuffer),
		egressOutCh:    make(chan []byte, cfg.TransportEgressBuffer),

		doneCh:     make(chan struct{}),
		acceptedCh: make(chan struct{}),
	}
}

// Handle returns a new façade onto this driver. Safe to call repeatedly
// and concurrently; every returned Handle shares the same underlying
// channels.
func (d *Driver) Handle() *Handle {
	return &Handle{
		ingressCh: d.ingressCh,
		openCh:    d.openCh,
		egressOut: d.egressOutCh,
		done:      d.doneCh,
		bus:       d.bus,
	}
}

// Run executes the driver's event loop until ctx is cancelled or the
// ingress/open channels are closed, then waits for every spawned helper
// (the acquisition task, per-socket accept helpers) to unwind before
// returning. Run must be called at most once.
func (d *Driver) Run(ctx context.Context) error {
	defer close(d.doneCh)

	go d.bus.Start()
	defer d.bus.Stop()

	gctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, gctx := errgroup.WithContext(gctx)
	d.shutdownCh = gctx.Done()

	phaseCh := make(chan phase.Phase)
	eg.Go(func() error {
		return runAcquisition(gctx, d.cfg.ProbeWindow(), phaseCh)
	})

	ticker := time.NewTicker(d.cfg.ProbeInterval())
	defer ticker.Stop()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break loop

		case frame, ok := <-d.ingressCh:
			if !ok {
				break loop
			}
			d.handleIngressFrame(frame, time.Now())

		case req, ok := <-d.openCh:
			if !ok {
				break loop
			}
			d.handleOpen(gctx, eg, req)

		case creq := <-d.closeReqCh:
			d.handleClose(creq)

		case ev := <-d.socketEgressCh:
			d.resolveAndSend(ev, time.Now())

		case ph := <-phaseCh:
			d.handlePhaseUpdate(ph)

		case <-ticker.C:
			d.handleTick(time.Now())
		}
	}

	cancel()
	if err := eg.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (d *Driver) handlePhaseUpdate(ph phase.Phase) {
	d.phase = ph
	switch ph.Kind {
	case phase.Accepted:
		d.myAddr = ph.Addr
		select {
		case <-d.acceptedCh:
		default:
			close(d.acceptedCh)
		}
		d.logger.Info("appletalk address accepted", "addr", ph.Addr.String())
		d.bus.Publish(events.Event{Type: events.TypeAddressAccepted, Timestamp: time.Now(), Net: ph.Addr.Net, Node: ph.Addr.Node})
	case phase.Tentative:
		d.logger.Info("appletalk address tentative", "addr", ph.Addr.String())
		d.bus.Publish(events.Event{Type: events.TypeAddressTentative, Timestamp: time.Now(), Net: ph.Addr.Net, Node: ph.Addr.Node})
		d.sendProbe(ph.Addr)
	}
}

func (d *Driver) handleTick(now time.Time) {
	if d.phase.Kind == phase.Tentative {
		d.sendProbe(d.phase.Addr)
	}
	d.sweepPending(now)
}

func (d *Driver) handleOpen(ctx context.Context, eg *errgroup.Group, req openRequest) {
	socketNum, ok := d.allocateSocket()
	if !ok {
		d.logger.Error("no dynamic socket numbers available")
		req.reply <- nil
		return
	}

	reg := &socketRegistration{
		socket:  socketNum,
		inbound: make(chan Datagram, d.cfg.SocketBuffer),
	}
	d.sockets[socketNum] = reg
	metrics.SocketsOpen.Set(float64(len(d.sockets)))
	d.bus.Publish(events.Event{Type: events.TypeSocketOpened, Timestamp: time.Now(), Socket: socketNum})

	eg.Go(func() error {
		return d.acceptHelper(ctx, reg, req.reply)
	})
}

// acceptHelper waits for the stack's first (and only, per this design's
// terminal-Accepted simplification) Accepted address before constructing
// and handing back the DdpSocket. Reading d.myAddr here is safe without a
// lock: the driver writes it before closing acceptedCh, and a receive
// that observes a channel close happens after that write.
func (d *Driver) acceptHelper(ctx context.Context, reg *socketRegistration, reply chan<- *DdpSocket) error {
	select {
	case <-d.acceptedCh:
	case <-ctx.Done():
		reply <- nil
		return ctx.Err()
	}

	sock := &DdpSocket{
		localAddr:   d.myAddr,
		localSocket: reg.socket,
		egressCh:    d.socketEgressCh,
		inbound:     reg.inbound,
		closeReqCh:  d.closeReqCh,
		driverDone:  d.doneCh,
	}

	select {
	case reply <- sock:
	case <-ctx.Done():
	}
	return nil
}

func (d *Driver) handleClose(req closeRequest) {
	reg, ok := d.sockets[req.socket]
	if !ok {
		return
	}
	delete(d.sockets, req.socket)
	close(reg.inbound)
	d.socketNums.Release(req.socket)
	metrics.SocketsOpen.Set(float64(len(d.sockets)))
	d.bus.Publish(events.Event{Type: events.TypeSocketClosed, Timestamp: time.Now(), Socket: req.socket})
}

func (d *Driver) allocateSocket() (uint8, bool) {
	return d.socketNums.Allocate()
}

// vendorName returns a best-effort vendor name for a hardware address, or
// "" if no vendor database is loaded or the prefix is unknown.
func (d *Driver) vendorName(hw atalk.Mac) string {
	if d.vendors == nil {
		return ""
	}
	return d.vendors.Lookup(hw.String())
}
