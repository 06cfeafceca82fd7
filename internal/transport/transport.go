// Package transport opens the raw Ethernet sockets crabbletalkd reads and
// writes frames on. It owns exactly two sockets per interface, one bound to
// each ethertype the stack cares about (AppleTalk/SNAP and AARP), since a
// single raw socket can only filter on one ethertype at a time.
package transport

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/mdlayher/raw"

	"github.com/habnabit/crabbletalk/pkg/atalk"
)

// Frame is a single Ethernet frame read from or destined for the wire,
// paired with the ethertype it arrived on so the caller doesn't need to
// re-parse the 22-byte ELAP header just to route it.
type Frame struct {
	Ethertype uint16
	Payload   []byte
	Peer      atalk.Mac
}

// Conn is the bidirectional transport the stack driver reads ingress frames
// from and writes egress frames to. Implementations must be safe for
// concurrent use by one reader and one writer.
type Conn interface {
	// Recv blocks for the next ingress frame.
	Recv() (Frame, error)
	// Send writes an egress frame to the given destination MAC on the given
	// ethertype socket.
	Send(ethertype uint16, dst atalk.Mac, payload []byte) error
	Close() error
}

// RawEthernetConn multiplexes a pair of raw.Conn sockets — one for
// EtherTypeAppleTalk, one for EtherTypeAARP — behind a single Conn. Frames
// from either socket are merged onto one ingress stream by a pair of reader
// goroutines feeding a shared channel.
type RawEthernetConn struct {
	iface    *net.Interface
	sockets  map[uint16]*raw.Conn
	ingress  chan ingressResult
	closeAll chan struct{}
}

type ingressResult struct {
	frame Frame
	err   error
}

// NewRawEthernetConn opens one raw socket per ethertype in ethertypes on
// ifaceName. If any socket fails to open — most commonly because the
// process lacks CAP_NET_RAW — the error is returned and no sockets are
// leaked; the caller decides whether to fall back to FallbackConn.
func NewRawEthernetConn(ifaceName string, ethertypes []uint16, logger *slog.Logger) (*RawEthernetConn, error) {
	ifc, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("looking up interface %s: %w", ifaceName, err)
	}

	c := &RawEthernetConn{
		iface:    ifc,
		sockets:  make(map[uint16]*raw.Conn, len(ethertypes)),
		ingress:  make(chan ingressResult, 32),
		closeAll: make(chan struct{}),
	}

	for _, et := range ethertypes {
		conn, err := raw.ListenPacket(ifc, et, nil)
		if err != nil {
			c.closeOpened()
			return nil, fmt.Errorf("opening raw socket for ethertype %#04x on %s: %w", et, ifaceName, err)
		}
		c.sockets[et] = conn
		go c.readLoop(et, conn)
	}

	logger.Info("raw ethernet transport opened",
		"interface", ifaceName,
		"hw_addr", ifc.HardwareAddr.String(),
		"ethertypes", ethertypes)
	return c, nil
}

func (c *RawEthernetConn) closeOpened() {
	for _, conn := range c.sockets {
		conn.Close()
	}
}

func (c *RawEthernetConn) readLoop(ethertype uint16, conn *raw.Conn) {
	buf := make([]byte, atalk.MaxFrameSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case c.ingress <- ingressResult{err: fmt.Errorf("reading ethertype %#04x: %w", ethertype, err)}:
			case <-c.closeAll:
			}
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])

		var peer atalk.Mac
		if ha, ok := addr.(*raw.Addr); ok {
			copy(peer[:], ha.HardwareAddr)
		}

		select {
		case c.ingress <- ingressResult{frame: Frame{Ethertype: ethertype, Payload: payload, Peer: peer}}:
		case <-c.closeAll:
			return
		}
	}
}

// Recv implements Conn.
func (c *RawEthernetConn) Recv() (Frame, error) {
	r, ok := <-c.ingress
	if !ok {
		return Frame{}, fmt.Errorf("transport closed")
	}
	return r.frame, r.err
}

// Send implements Conn.
func (c *RawEthernetConn) Send(ethertype uint16, dst atalk.Mac, payload []byte) error {
	conn, ok := c.sockets[ethertype]
	if !ok {
		return fmt.Errorf("no socket open for ethertype %#04x", ethertype)
	}
	_, err := conn.WriteTo(payload, &raw.Addr{HardwareAddr: net.HardwareAddr(dst[:])})
	if err != nil {
		return fmt.Errorf("writing ethertype %#04x frame: %w", ethertype, err)
	}
	return nil
}

// Close implements Conn.
func (c *RawEthernetConn) Close() error {
	close(c.closeAll)
	var firstErr error
	for _, conn := range c.sockets {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LocalMAC returns the interface's hardware address.
func (c *RawEthernetConn) LocalMAC() atalk.Mac {
	var m atalk.Mac
	copy(m[:], c.iface.HardwareAddr)
	return m
}
