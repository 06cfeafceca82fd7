package stack

import (
	"context"
	"time"

	"github.com/habnabit/crabbletalk/internal/phase"
	"github.com/habnabit/crabbletalk/pkg/atalk"
)

// runAcquisition runs the address-acquisition loop as a one-shot helper:
// it publishes a Tentative phase, waits out the probe window racing
// against a conflict notification, and on timeout publishes Accepted and
// returns. On conflict it restarts with a fresh candidate. The caller
// (the driver) is responsible for actually emitting Probe frames on its
// periodic tick while a Tentative phase is current.
func runAcquisition(ctx context.Context, probeWindow time.Duration, phaseCh chan<- phase.Phase) error {
	for {
		addr := atalk.RandomStartupAddr()
		tentative, conflict := phase.NewTentative(addr)

		select {
		case phaseCh <- tentative:
		case <-ctx.Done():
			return ctx.Err()
		}

		select {
		case <-conflict:
			continue
		case <-time.After(probeWindow):
			accepted := phase.NewAccepted(addr)
			select {
			case phaseCh <- accepted:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
