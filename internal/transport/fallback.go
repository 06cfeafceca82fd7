package transport

import (
	"log/slog"

	"github.com/habnabit/crabbletalk/pkg/atalk"
)

// FallbackConn is a Conn that accepts egress sends silently and never
// produces ingress frames. It lets the driver start up and serve local
// AMT/acquisition logic even when the host has no usable raw socket (no
// CAP_NET_RAW, interface down, running under a sandboxed test harness), at
// the cost of the stack never actually seeing the wire.
type FallbackConn struct {
	logger *slog.Logger
	done   chan struct{}
}

// NewFallbackConn returns a Conn that discards everything sent to it and
// blocks forever on Recv until Close is called. Every call to Send is
// logged once so the degraded mode is visible in the logs.
func NewFallbackConn(logger *slog.Logger) *FallbackConn {
	return &FallbackConn{logger: logger, done: make(chan struct{})}
}

// Recv implements Conn.
func (f *FallbackConn) Recv() (Frame, error) {
	<-f.done
	return Frame{}, errClosed
}

// Send implements Conn.
func (f *FallbackConn) Send(ethertype uint16, dst atalk.Mac, payload []byte) error {
	f.logger.Warn("dropping egress frame on fallback transport",
		"ethertype", ethertype, "dst", dst.String(), "len", len(payload))
	return nil
}

// Close implements Conn.
func (f *FallbackConn) Close() error {
	close(f.done)
	return nil
}

var errClosed = errClosedError{}

type errClosedError struct{}

func (errClosedError) Error() string { return "fallback transport closed" }

// Open opens a RawEthernetConn on ifaceName for the given ethertypes,
// falling back to a FallbackConn and logging loudly if the raw sockets
// cannot be opened, rather than failing startup outright.
func Open(ifaceName string, ethertypes []uint16, logger *slog.Logger) Conn {
	conn, err := NewRawEthernetConn(ifaceName, ethertypes, logger)
	if err != nil {
		logger.Error("FAILED TO OPEN RAW ETHERNET SOCKETS — running in degraded mode, no frames will be sent or received",
			"interface", ifaceName,
			"error", err,
			"hint", "grant CAP_NET_RAW or run as root")
		return NewFallbackConn(logger)
	}
	return conn
}
