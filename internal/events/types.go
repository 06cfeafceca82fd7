// Package events provides a diagnostic event bus for the AppleTalk stack
// driver: address acquisition, conflict, and gleaning notifications fanned
// out to any number of subscribers (a log sink, the audit log, a future
// UI) without coupling the driver itself to any of them.
package events

import "time"

// Type identifies what happened.
type Type string

const (
	TypeAddressTentative Type = "address.tentative"
	TypeAddressAccepted  Type = "address.accepted"
	TypeAddressConflict  Type = "address.conflict"
	TypeBindingGleaned   Type = "binding.gleaned"
	TypeSocketOpened     Type = "socket.opened"
	TypeSocketClosed     Type = "socket.closed"
)

// Event is the payload passed through the bus. Fields irrelevant to a
// given Type are left at their zero value.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Net       uint16    `json:"net,omitempty"`
	Node      uint8     `json:"node,omitempty"`
	HW        string    `json:"hw,omitempty"`
	Vendor    string    `json:"vendor,omitempty"`
	Socket    uint8     `json:"socket,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}
