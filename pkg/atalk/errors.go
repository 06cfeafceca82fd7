// Package atalk implements the wire-level primitives of the AppleTalk link
// and network layers: addressing, ELAP/SNAP framing, AARP, and DDP.
package atalk

import "errors"

// Sentinel error kinds. Callers use errors.Is against these, never type
// assertions — the concrete error returned from a decode or lookup is
// always wrapped with call-site context via fmt.Errorf's %w.
var (
	// ErrMalformedFrame is returned when a decoder is handed bytes that are
	// too short for the fixed structure, or that contain an enumerated
	// field outside its declared range.
	ErrMalformedFrame = errors.New("atalk: malformed frame")

	// ErrTransient names an address lookup that could not complete on
	// this attempt. No function in this module returns it: the stack
	// driver drops a datagram whose lookup times out and counts it in
	// metrics instead.
	ErrTransient = errors.New("atalk: transient lookup failure")

	// ErrHangup is returned when a counterpart goroutine or channel has
	// gone away (the stack driver exited, a socket was dropped).
	ErrHangup = errors.New("atalk: counterpart hung up")

	// ErrOversizeFrame names an ELAP frame whose length field exceeds the
	// 1600-byte MTU. No function in this module returns it: the stack
	// driver drops such frames on ingress and egress and counts them in
	// metrics instead.
	ErrOversizeFrame = errors.New("atalk: oversize frame")
)
