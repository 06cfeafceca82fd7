package stack

import (
	"time"

	"github.com/habnabit/crabbletalk/internal/metrics"
	"github.com/habnabit/crabbletalk/pkg/atalk"
)

// resolveAndSend handles one socket egress event: broadcast destinations
// go straight out, known bindings go straight out, and anything else is
// queued pending a single AARP request per target address.
func (d *Driver) resolveAndSend(ev egressEvent, now time.Time) {
	if ev.dst.IsBroadcast() {
		d.sendDDPFrame(atalk.AppleTalkBroadcastMAC, ev)
		return
	}

	entry := d.amt.EntryForAtalk(ev.dst)
	if entry.Filled() {
		d.sendDDPFrame(entry.HW, ev)
		return
	}

	if !d.lookupRequested[ev.dst] {
		d.sendAARPRequest(ev.dst)
		d.lookupRequested[ev.dst] = true
	}
	d.pending[ev.dst] = append(d.pending[ev.dst], pendingEgress{ev: ev, submittedAt: now})
}

// sweepPending is called on the driver's periodic tick. It resolves
// anything the AMT has since learned, and drops anything that's exceeded
// its lookup timeout, counting it as a transient lookup failure.
func (d *Driver) sweepPending(now time.Time) {
	for addr, list := range d.pending {
		entry := d.amt.LookupAtalk(addr)
		if entry != nil && entry.Filled() {
			for _, p := range list {
				d.sendDDPFrame(entry.HW, p.ev)
			}
			delete(d.pending, addr)
			delete(d.lookupRequested, addr)
			continue
		}

		kept := list[:0]
		for _, p := range list {
			if now.Sub(p.submittedAt) >= d.cfg.LookupTimeout() {
				metrics.LookupTransient.Inc()
				d.logger.Warn("ddp lookup timed out, dropping datagram", "dst", addr.String())
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) == 0 {
			delete(d.pending, addr)
			delete(d.lookupRequested, addr)
		} else {
			d.pending[addr] = kept
		}
	}
}

// sendDDPFrame fills in the source address and checksum, wraps the result
// in a SNAP ELAP header, and hands the frame to the transport egress
// channel. Oversize results are refused, matching the ingress rule.
func (d *Driver) sendDDPFrame(dstMAC atalk.Mac, ev egressEvent) {
	myAddr, ok := d.phase.MyAddr()
	if !ok {
		// A socket only exists once Accepted, so this should not happen;
		// guard anyway rather than emit a frame with a zero source.
		d.logger.Warn("dropping ddp send, no accepted address", "dst", ev.dst.String())
		return
	}

	hdr := atalk.Ddp{
		HopCount:  0,
		Length:    uint16(atalk.DDPHeaderSize + len(ev.payload)),
		Checksum:  atalk.Checksum(ev.payload),
		DstNet:    ev.dst.Net,
		SrcNet:    myAddr.Net,
		DstNode:   ev.dst.Node,
		SrcNode:   myAddr.Node,
		DstSocket: ev.dstSocket,
		SrcSocket: ev.srcSocket,
		Type:      ev.ddpType,
	}

	body := append(hdr.Encode(), ev.payload...)
	elap := atalk.NewSNAPElap(dstMAC, d.localMAC, atalk.AppleOUI, atalk.EthertypeAppleTalk, len(body))
	if elap.Length > atalk.MaxFrameSize {
		metrics.FramesDropped.WithLabelValues("oversize").Inc()
		d.logger.Warn("refusing oversize ddp send", "dst", ev.dst.String(), "length", elap.Length)
		return
	}

	frame := append(elap.Encode(), body...)
	d.sendEthernetFrame(frame, "appletalk")
}

// sendAARPRequest emits a single AARP Request for target, broadcast on
// the link with dst_hw unknown (zero).
func (d *Driver) sendAARPRequest(target atalk.Addr) {
	myAddr, ok := d.phase.MyAddr()
	if !ok {
		return
	}
	a := atalk.NewAarp(atalk.AarpRequest, d.localMAC, myAddr, atalk.ZeroMAC, target)
	d.sendAARPFrame(atalk.AppleTalkBroadcastMAC, a)
}

// sendAARPResponse replies to a Request or Probe addressed to our
// Accepted address.
func (d *Driver) sendAARPResponse(dstHW atalk.Mac, dstAtalk atalk.Addr) {
	myAddr, ok := d.phase.MyAddr()
	if !ok {
		return
	}
	a := atalk.NewAarp(atalk.AarpResponse, d.localMAC, myAddr, dstHW, dstAtalk)
	d.sendAARPFrame(dstHW, a)
	metrics.ResponsesSent.Inc()
}

// sendProbe emits an AARP Probe for a Tentative candidate address.
func (d *Driver) sendProbe(candidate atalk.Addr) {
	a := atalk.NewAarp(atalk.AarpProbe, d.localMAC, candidate, atalk.ZeroMAC, candidate)
	d.sendAARPFrame(atalk.AppleTalkBroadcastMAC, a)
	metrics.ProbesSent.Inc()
}

func (d *Driver) sendAARPFrame(dstMAC atalk.Mac, a atalk.Aarp) {
	body := a.Encode()
	elap := atalk.NewSNAPElap(dstMAC, d.localMAC, atalk.AARPOUI, atalk.EthertypeAARP, len(body))
	frame := append(elap.Encode(), body...)
	d.sendEthernetFrame(frame, "aarp")
}

// sendEthernetFrame hands a fully-wrapped frame to the transport egress
// channel, blocking if it's full — the transport is the slowest consumer
// in this pipeline anyway, per the concurrency design.
func (d *Driver) sendEthernetFrame(frame []byte, ethertypeLabel string) {
	select {
	case d.egressOutCh <- frame:
		metrics.FramesEgressed.WithLabelValues(ethertypeLabel).Inc()
	case <-d.shutdownCh:
	}
}
