package stack

import (
	"time"

	"github.com/habnabit/crabbletalk/internal/events"
	"github.com/habnabit/crabbletalk/internal/metrics"
	"github.com/habnabit/crabbletalk/internal/phase"
	"github.com/habnabit/crabbletalk/pkg/atalk"
)

// handleIngressFrame decodes one Ethernet frame and dispatches it by
// ethertype. Decode and validation failures are absorbed here and never
// propagate — a malformed or hostile frame from the wire must never take
// the driver down.
func (d *Driver) handleIngressFrame(frame []byte, now time.Time) {
	elap, rest, err := atalk.DecodeELAPSplit(frame)
	if err != nil {
		metrics.FramesDropped.WithLabelValues("malformed").Inc()
		d.logger.Debug("dropping malformed ethernet frame", "error", err)
		return
	}
	if !elap.IsSNAP() {
		metrics.FramesDropped.WithLabelValues("not_snap").Inc()
		return
	}
	if elap.Length > atalk.MaxFrameSize {
		metrics.FramesDropped.WithLabelValues("oversize").Inc()
		d.logger.Debug("dropping oversize ethernet frame", "length", elap.Length)
		return
	}

	switch elap.Ethertype {
	case atalk.EthertypeAARP:
		metrics.FramesIngested.WithLabelValues("aarp").Inc()
		d.handleAARPFrame(rest, now)
	case atalk.EthertypeAppleTalk:
		metrics.FramesIngested.WithLabelValues("appletalk").Inc()
		d.handleDDPFrame(rest)
	default:
		metrics.FramesDropped.WithLabelValues("unknown_ethertype").Inc()
	}
}

func (d *Driver) handleAARPFrame(body []byte, now time.Time) {
	aarp, _, err := atalk.DecodeAARPSplit(body)
	if err != nil {
		metrics.FramesDropped.WithLabelValues("malformed").Inc()
		d.logger.Debug("dropping malformed aarp frame", "error", err)
		return
	}

	// Gleaning: every Request or Response teaches us a binding. Probes
	// carry no reliable source binding (the sender doesn't own the
	// address it's probing for) and are excluded.
	if aarp.Function != atalk.AarpProbe {
		if d.amt.LookupHW(aarp.SrcHW) == nil {
			vendor := d.vendorName(aarp.SrcHW)
			d.logger.Debug("gleaned new address binding",
				"hw", aarp.SrcHW.String(), "atalk", aarp.SrcAtalk.String(), "vendor", vendor)
			d.bus.Publish(events.Event{
				Type: events.TypeBindingGleaned, Timestamp: now,
				Net: aarp.SrcAtalk.Net, Node: aarp.SrcAtalk.Node, HW: aarp.SrcHW.String(), Vendor: vendor,
			})
		}
		d.amt.Insert(aarp.SrcHW, aarp.SrcAtalk, now)
		metrics.AMTEntries.Set(float64(d.amt.Len()))
	}

	switch d.phase.Kind {
	case phase.Tentative:
		tentativeAddr := d.phase.Addr
		conflict := (aarp.Function == atalk.AarpProbe && aarp.DstAtalk == tentativeAddr) ||
			(aarp.Function == atalk.AarpResponse && aarp.SrcAtalk == tentativeAddr)
		if conflict {
			metrics.ConflictsObserved.Inc()
			d.bus.Publish(events.Event{Type: events.TypeAddressConflict, Timestamp: now, Net: tentativeAddr.Net, Node: tentativeAddr.Node})
			d.phase.NotifyConflict()
		}
	case phase.Accepted:
		ourAddr := d.phase.Addr
		if (aarp.Function == atalk.AarpRequest || aarp.Function == atalk.AarpProbe) && aarp.DstAtalk == ourAddr {
			d.sendAARPResponse(aarp.SrcHW, aarp.SrcAtalk)
		}
	}
}

func (d *Driver) handleDDPFrame(body []byte) {
	if d.phase.Kind != phase.Accepted {
		return
	}
	ddp, payload, err := atalk.DecodeDDPSplit(body)
	if err != nil {
		metrics.FramesDropped.WithLabelValues("malformed").Inc()
		d.logger.Debug("dropping malformed ddp packet", "error", err)
		return
	}

	dst := ddp.DstAddr()
	if dst != d.phase.Addr && !dst.IsBroadcast() {
		metrics.FramesDropped.WithLabelValues("no_route").Inc()
		return
	}

	reg, ok := d.sockets[ddp.DstSocket]
	if !ok {
		metrics.FramesDropped.WithLabelValues("no_socket").Inc()
		return
	}

	dg := Datagram{
		SrcAddr:   ddp.SrcAddr(),
		SrcSocket: ddp.SrcSocket,
		Type:      ddp.Type,
		Payload:   payload,
	}
	select {
	case reg.inbound <- dg:
		metrics.DatagramsDelivered.Inc()
	default:
		metrics.FramesDropped.WithLabelValues("socket_full").Inc()
		d.logger.Warn("dropping ddp datagram, socket inbound buffer full", "socket", ddp.DstSocket)
	}
}
