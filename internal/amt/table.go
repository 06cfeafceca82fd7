// Package amt implements the address mapping table AARP uses to glean and
// resolve AppleTalk-address-to-MAC bindings.
//
// The table is owned exclusively by the stack driver goroutine (see
// internal/stack); nothing here takes a lock. The only cross-goroutine
// coordination is the per-entry notifier that lets a lookup goroutine wait
// for a binding the driver hasn't gleaned yet.
package amt

import (
	"time"

	"github.com/habnabit/crabbletalk/pkg/atalk"
)

// Entry is the shared record both the MAC-keyed and AppleTalk-keyed views
// point at. HW and Atalk are the zero value until the first insert fills
// them in.
type Entry struct {
	HW     atalk.Mac
	Atalk  atalk.Addr
	SetAt  time.Time
	notify notifier
}

// Filled reports whether this entry has ever been written to.
func (e *Entry) Filled() bool {
	return !e.SetAt.IsZero()
}

// Wait does not block: it returns a channel that is closed the next time
// the entry is (re)filled, so callers can select on it alongside other
// suspension points. The stack driver does not use it; it resolves
// pending lookups on its periodic tick instead.
func (e *Entry) Wait() <-chan struct{} {
	return e.notify.channel()
}

// notifier is a one-slot, replace-on-write notification channel: each
// fire() closes the current channel (waking everyone blocked on it) and
// swaps in a fresh one for the next generation of waiters.
type notifier struct {
	ch chan struct{}
}

func (n *notifier) channel() <-chan struct{} {
	if n.ch == nil {
		n.ch = make(chan struct{})
	}
	return n.ch
}

func (n *notifier) fire() {
	if n.ch == nil {
		n.ch = make(chan struct{})
		return
	}
	close(n.ch)
	n.ch = make(chan struct{})
}

// Table is the Address Mapping Table: two independently-keyed views over a
// shared set of entries.
type Table struct {
	byHW    map[atalk.Mac]*Entry
	byAtalk map[atalk.Addr]*Entry
}

// New returns an empty table.
func New() *Table {
	return &Table{
		byHW:    make(map[atalk.Mac]*Entry),
		byAtalk: make(map[atalk.Addr]*Entry),
	}
}

// LookupHW returns the entry for a MAC address, or nil if never seen.
func (t *Table) LookupHW(hw atalk.Mac) *Entry {
	return t.byHW[hw]
}

// LookupAtalk returns the entry for an AppleTalk address, or nil if never
// seen.
func (t *Table) LookupAtalk(addr atalk.Addr) *Entry {
	return t.byAtalk[addr]
}

// EntryForAtalk returns the existing entry for addr, creating an empty
// (unfilled) one if none exists yet. Used by the resolver so it has
// something to Wait() on even before any binding has arrived.
func (t *Table) EntryForAtalk(addr atalk.Addr) *Entry {
	if e, ok := t.byAtalk[addr]; ok {
		return e
	}
	e := &Entry{}
	t.byAtalk[addr] = e
	return e
}

// Insert records a gleaned (hw, atalk) binding, creating the shared entry
// if this is the first sighting of either key and overwriting whichever
// record was already indexed under atalk (last-writer-wins — AARP has no
// tie-break and hosts re-announce periodically). Existing waiters on the
// entry (addressed by its AppleTalk key — see EntryForAtalk) are woken.
//
// The entry object keyed by addr is never replaced, only updated in place:
// a resolver that called EntryForAtalk(addr) before this binding existed
// must see this same object fill in, or its Wait() channel would never
// fire.
func (t *Table) Insert(hw atalk.Mac, addr atalk.Addr, now time.Time) *Entry {
	e, ok := t.byAtalk[addr]
	if !ok {
		if byHW, ok := t.byHW[hw]; ok {
			e = byHW
		} else {
			e = &Entry{}
		}
	}

	// If hw is currently claimed by a different entry, that entry no
	// longer speaks for this hw (last-writer-wins) — drop the stale
	// reverse mapping so byHW and byAtalk stay mutually consistent.
	if other, ok := t.byHW[hw]; ok && other != e {
		delete(t.byHW, hw)
	}
	// If e previously claimed a different hw, that hw no longer maps here.
	if e.Filled() && e.HW != hw {
		if t.byHW[e.HW] == e {
			delete(t.byHW, e.HW)
		}
	}

	e.HW = hw
	e.Atalk = addr
	e.SetAt = now
	t.byHW[hw] = e
	t.byAtalk[addr] = e
	e.notify.fire()
	return e
}

// Len returns the number of distinct entries (by AppleTalk-address key),
// for metrics reporting.
func (t *Table) Len() int {
	return len(t.byAtalk)
}
