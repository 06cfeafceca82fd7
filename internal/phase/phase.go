// Package phase models the AddressPhase lifecycle AARP address acquisition
// runs through: Uninitialized, Tentative (while probing a candidate),
// Accepted (once the probe window has elapsed without conflict).
package phase

import "github.com/habnabit/crabbletalk/pkg/atalk"

// Kind tags which variant a Phase value holds.
type Kind int

const (
	Uninitialized Kind = iota
	Tentative
	Accepted
)

func (k Kind) String() string {
	switch k {
	case Uninitialized:
		return "uninitialized"
	case Tentative:
		return "tentative"
	case Accepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// Phase is the address-acquisition state machine's current value, carried
// as data on a channel rather than branched on as control flow (see §9 of
// the design notes). Tentative carries the candidate address and a
// conflict-notify channel; closing that channel is how the driver tells
// the acquisition goroutine "someone else already has this address, pick
// another."
type Phase struct {
	Kind           Kind
	Addr           atalk.Addr
	ConflictNotify chan<- struct{}
}

// Uninit is the zero Phase.
func Uninit() Phase { return Phase{Kind: Uninitialized} }

// NewTentative builds a Tentative phase carrying a fresh conflict-notify
// channel, returning both the phase to publish and the receive side the
// acquisition goroutine should select on.
func NewTentative(addr atalk.Addr) (Phase, <-chan struct{}) {
	ch := make(chan struct{})
	return Phase{Kind: Tentative, Addr: addr, ConflictNotify: ch}, ch
}

// NewAccepted builds an Accepted phase.
func NewAccepted(addr atalk.Addr) Phase {
	return Phase{Kind: Accepted, Addr: addr}
}

// MyAddr returns the published "my AppleTalk address" observable: only
// Accepted carries a value.
func (p Phase) MyAddr() (atalk.Addr, bool) {
	if p.Kind != Accepted {
		return atalk.Addr{}, false
	}
	return p.Addr, true
}

// NotifyConflict signals the acquisition goroutine that its current
// Tentative candidate lost to a conflicting Probe or Response. The
// channel is closed, not sent on; calling this again on the same
// Tentative value is harmless. Every new Tentative carries a fresh
// ConflictNotify.
func (p Phase) NotifyConflict() {
	if p.Kind != Tentative || p.ConflictNotify == nil {
		return
	}
	defer func() { recover() }() // already-closed is a harmless double-notify
	close(p.ConflictNotify)
}
