package stack

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/habnabit/crabbletalk/internal/config"
	"github.com/habnabit/crabbletalk/internal/logging"
	"github.com/habnabit/crabbletalk/internal/phase"
	"github.com/habnabit/crabbletalk/pkg/atalk"
)

func testDriver(t *testing.T) *Driver {
	t.Helper()
	cfg := config.Defaults()
	cfg.Interface = "test0"
	cfg.ProbeIntervalMS = 5
	cfg.ProbeWindowMS = 20
	cfg.LookupTimeoutMS = 50
	logger := logging.Setup("error", io.Discard)
	return NewDriver(cfg, atalk.Mac{0x52, 0x54, 0x00, 0x01, 0x02, 0x03}, logger, nil)
}

func buildAARPFrame(t *testing.T, dst atalk.Mac, a atalk.Aarp) []byte {
	t.Helper()
	body := a.Encode()
	elap := atalk.NewSNAPElap(dst, a.SrcHW, atalk.AARPOUI, atalk.EthertypeAARP, len(body))
	return append(elap.Encode(), body...)
}

func drainEgress(t *testing.T, d *Driver) []byte {
	t.Helper()
	select {
	case frame := <-d.egressOutCh:
		return frame
	default:
		return nil
	}
}

// Scenario: conflict during Tentative triggers a reattempt notification.
func TestConflictDuringTentativeNotifies(t *testing.T) {
	d := testDriver(t)
	addr := atalk.Addr{Net: 0xFF10, Node: 0x42}
	tentative, conflict := phase.NewTentative(addr)
	d.phase = tentative

	probe := atalk.NewAarp(atalk.AarpProbe, atalk.Mac{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, atalk.Addr{}, atalk.ZeroMAC, addr)
	d.handleAARPFrame(probe.Encode(), time.Now())

	select {
	case <-conflict:
	case <-time.After(time.Second):
		t.Fatal("conflicting Probe did not notify the acquisition goroutine")
	}
}

func TestConflictOnResponseSrcMatch(t *testing.T) {
	d := testDriver(t)
	addr := atalk.Addr{Net: 0xFF10, Node: 0x42}
	tentative, conflict := phase.NewTentative(addr)
	d.phase = tentative

	resp := atalk.NewAarp(atalk.AarpResponse, atalk.Mac{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, addr, atalk.ZeroMAC, atalk.Addr{})
	d.handleAARPFrame(resp.Encode(), time.Now())

	select {
	case <-conflict:
	case <-time.After(time.Second):
		t.Fatal("conflicting Response did not notify the acquisition goroutine")
	}
}

// Scenario: gleaning then immediate (synchronous) resolution.
func TestGleaningThenSynchronousResolution(t *testing.T) {
	d := testDriver(t)
	d.phase = phase.NewAccepted(atalk.Addr{Net: 0xFF10, Node: 0x42})

	peerMAC := atalk.Mac{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	peerAddr := atalk.Addr{Net: 0xFF20, Node: 0x55}
	resp := atalk.NewAarp(atalk.AarpResponse, peerMAC, peerAddr, atalk.ZeroMAC, atalk.Addr{})
	d.handleAARPFrame(resp.Encode(), time.Now())

	entry := d.amt.LookupAtalk(peerAddr)
	if entry == nil || !entry.Filled() || entry.HW != peerMAC {
		t.Fatalf("gleaning did not record (%v -> %v)", peerAddr, peerMAC)
	}
	if got := d.amt.LookupHW(peerMAC); got == nil || got.Atalk != peerAddr {
		t.Fatalf("byHW view inconsistent for %v", peerMAC)
	}

	// Now sendto should resolve synchronously: no AARP request emitted.
	ev := egressEvent{dst: peerAddr, dstSocket: 0x80, srcSocket: 0x81, ddpType: 4, payload: []byte("ping")}
	d.resolveAndSend(ev, time.Now())

	frame := drainEgress(t, d)
	if frame == nil {
		t.Fatal("expected one egress frame, got none")
	}
	if more := drainEgress(t, d); more != nil {
		t.Fatal("expected exactly one egress frame (no AARP request), got a second")
	}

	elap, rest, err := atalk.DecodeELAPSplit(frame)
	if err != nil {
		t.Fatalf("decode elap: %v", err)
	}
	if elap.DstMAC != peerMAC || elap.Ethertype != atalk.EthertypeAppleTalk {
		t.Fatalf("unexpected elap header: %+v", elap)
	}
	ddp, payload, err := atalk.DecodeDDPSplit(rest)
	if err != nil {
		t.Fatalf("decode ddp: %v", err)
	}
	if ddp.DstAddr() != peerAddr || ddp.DstSocket != 0x80 || ddp.Type != 4 {
		t.Fatalf("unexpected ddp header: %+v", ddp)
	}
	if string(payload) != "ping" {
		t.Fatalf("payload = %q, want ping", payload)
	}
	wantChecksum := atalk.Checksum([]byte("ping"))
	if ddp.Checksum != wantChecksum {
		t.Fatalf("checksum = %#04x, want %#04x", ddp.Checksum, wantChecksum)
	}
}

// Scenario: unresolved lookup emits exactly one AARP Request and queues
// the datagram pending resolution.
func TestUnresolvedLookupEmitsSingleRequest(t *testing.T) {
	d := testDriver(t)
	ourAddr := atalk.Addr{Net: 0xFF10, Node: 0x42}
	d.phase = phase.NewAccepted(ourAddr)

	target := atalk.Addr{Net: 0xFF20, Node: 0x55}
	ev1 := egressEvent{dst: target, dstSocket: 0x80, srcSocket: 0x81, ddpType: 4, payload: []byte("a")}
	ev2 := egressEvent{dst: target, dstSocket: 0x80, srcSocket: 0x81, ddpType: 4, payload: []byte("b")}
	d.resolveAndSend(ev1, time.Now())
	d.resolveAndSend(ev2, time.Now())

	frame := drainEgress(t, d)
	if frame == nil {
		t.Fatal("expected an AARP request frame")
	}
	if more := drainEgress(t, d); more != nil {
		t.Fatal("expected only a single AARP request for two queued sends to the same target")
	}

	elap, rest, err := atalk.DecodeELAPSplit(frame)
	if err != nil || elap.Ethertype != atalk.EthertypeAARP {
		t.Fatalf("expected an AARP frame, got %+v err=%v", elap, err)
	}
	a, _, err := atalk.DecodeAARPSplit(rest)
	if err != nil {
		t.Fatalf("decode aarp: %v", err)
	}
	if a.Function != atalk.AarpRequest || a.DstAtalk != target || a.SrcAtalk != ourAddr {
		t.Fatalf("unexpected aarp request: %+v", a)
	}

	if len(d.pending[target]) != 2 {
		t.Fatalf("pending[target] = %d entries, want 2", len(d.pending[target]))
	}
}

// Scenario: pending lookups resolve on the next tick once the AMT learns
// the binding, and exceeding the lookup timeout drops with no resolution.
func TestSweepPendingResolvesAndExpires(t *testing.T) {
	d := testDriver(t)
	d.phase = phase.NewAccepted(atalk.Addr{Net: 0xFF10, Node: 0x42})
	resolved := atalk.Addr{Net: 0xFF20, Node: 0x10}
	stale := atalk.Addr{Net: 0xFF20, Node: 0x20}

	now := time.Now()
	d.pending[resolved] = []pendingEgress{{
		ev:          egressEvent{dst: resolved, payload: []byte("x")},
		submittedAt: now,
	}}
	d.pending[stale] = []pendingEgress{{
		ev:          egressEvent{dst: stale, payload: []byte("y")},
		submittedAt: now.Add(-time.Hour),
	}}
	d.amt.Insert(atalk.Mac{1, 2, 3, 4, 5, 6}, resolved, now)

	d.sweepPending(now)

	if _, ok := d.pending[resolved]; ok {
		t.Fatal("resolved target should have been removed from pending")
	}
	if _, ok := d.pending[stale]; ok {
		t.Fatal("expired target should have been removed from pending")
	}
	if frame := drainEgress(t, d); frame == nil {
		t.Fatal("expected the resolved target to produce an egress frame")
	}
}

// Scenario: an AARP Request or Probe addressed to our Accepted address
// produces exactly one Response.
func TestAcceptedRespondsToRequest(t *testing.T) {
	d := testDriver(t)
	ourAddr := atalk.Addr{Net: 0xFF10, Node: 0x42}
	d.phase = phase.NewAccepted(ourAddr)

	reqHW := atalk.Mac{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	reqAddr := atalk.Addr{Net: 0xFF30, Node: 0x07}
	req := atalk.NewAarp(atalk.AarpRequest, reqHW, reqAddr, atalk.ZeroMAC, ourAddr)
	d.handleAARPFrame(req.Encode(), time.Now())

	frame := drainEgress(t, d)
	if frame == nil {
		t.Fatal("expected an AARP response frame")
	}
	elap, rest, err := atalk.DecodeELAPSplit(frame)
	if err != nil {
		t.Fatalf("decode elap: %v", err)
	}
	if elap.DstMAC != reqHW || elap.Ethertype != atalk.EthertypeAARP {
		t.Fatalf("unexpected response elap header: %+v", elap)
	}
	a, _, err := atalk.DecodeAARPSplit(rest)
	if err != nil {
		t.Fatalf("decode aarp: %v", err)
	}
	if a.Function != atalk.AarpResponse || a.SrcHW != d.localMAC || a.SrcAtalk != ourAddr || a.DstHW != reqHW || a.DstAtalk != reqAddr {
		t.Fatalf("unexpected aarp response: %+v", a)
	}
}

// Scenario: oversize ELAP frames are dropped with no state change.
func TestOversizeFrameDropped(t *testing.T) {
	d := testDriver(t)
	body := make([]byte, 50)
	elap := atalk.NewSNAPElap(atalk.BroadcastMAC, d.localMAC, atalk.AARPOUI, atalk.EthertypeAARP, 1601)
	frame := append(elap.Encode(), body...)

	d.handleIngressFrame(frame, time.Now())

	if d.amt.Len() != 0 {
		t.Fatal("oversize frame should not have touched the amt")
	}
	if frame := drainEgress(t, d); frame != nil {
		t.Fatal("oversize frame should not have produced any egress")
	}
}

// Full integration: acquisition reaches Accepted, open_ddp waits for it,
// and a DDP send with no prior AMT knowledge round-trips through an AARP
// request/response before the datagram egresses.
func TestAcquisitionThenResolvedEcho(t *testing.T) {
	cfg := config.Defaults()
	cfg.Interface = "test0"
	cfg.ProbeIntervalMS = 5
	cfg.ProbeWindowMS = 20
	cfg.LookupTimeoutMS = 200
	logger := logging.Setup("error", io.Discard)
	localMAC := atalk.Mac{0x52, 0x54, 0x00, 0x01, 0x02, 0x03}
	d := NewDriver(cfg, localMAC, logger, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()

	h := d.Handle()
	sock, err := h.OpenDDP(ctx)
	if err != nil {
		t.Fatalf("OpenDDP: %v", err)
	}
	defer sock.Close()

	addr := sock.LocalAddr()
	if addr.Net < atalk.StartupNetMin || addr.Net > atalk.StartupNetMax {
		t.Fatalf("accepted address net %#04x out of startup range", addr.Net)
	}
	if addr.Node < 1 || addr.Node > 254 {
		t.Fatalf("accepted address node %d out of range", addr.Node)
	}

	// The Probe frames sent while Tentative are still buffered (nothing
	// pumps egress here); discard them so the next frame read is the
	// AARP Request. Acquisition is over, so no further Probes follow.
	for len(h.Egress()) > 0 {
		<-h.Egress()
	}

	peerAddr := atalk.Addr{Net: 0xFF01, Node: 0x09}
	peerMAC := atalk.Mac{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}

	sendErr := make(chan error, 1)
	go func() { sendErr <- sock.SendTo(ctx, []byte("ping"), peerAddr, 0x80, 4) }()

	reqFrame := readEgress(t, h, 2*time.Second)
	elap, rest, err := atalk.DecodeELAPSplit(reqFrame)
	if err != nil || elap.Ethertype != atalk.EthertypeAARP {
		t.Fatalf("expected an AARP request frame, got %+v err=%v", elap, err)
	}
	a, _, err := atalk.DecodeAARPSplit(rest)
	if err != nil || a.Function != atalk.AarpRequest || a.DstAtalk != peerAddr {
		t.Fatalf("unexpected aarp request: %+v err=%v", a, err)
	}

	resp := atalk.NewAarp(atalk.AarpResponse, peerMAC, peerAddr, atalk.ZeroMAC, atalk.Addr{})
	respFrame := buildAARPFrame(t, localMAC, resp)
	if err := h.ProcessEthernet(ctx, respFrame); err != nil {
		t.Fatalf("ProcessEthernet: %v", err)
	}

	ddpFrame := readEgress(t, h, 2*time.Second)
	elap2, rest2, err := atalk.DecodeELAPSplit(ddpFrame)
	if err != nil {
		t.Fatalf("decode elap: %v", err)
	}
	if elap2.DstMAC != peerMAC || elap2.Ethertype != atalk.EthertypeAppleTalk {
		t.Fatalf("unexpected ddp-wrapping elap: %+v", elap2)
	}
	ddp, payload, err := atalk.DecodeDDPSplit(rest2)
	if err != nil {
		t.Fatalf("decode ddp: %v", err)
	}
	if ddp.DstAddr() != peerAddr || ddp.SrcAddr() != addr || ddp.DstSocket != 0x80 || ddp.Type != 4 {
		t.Fatalf("unexpected ddp header: %+v", ddp)
	}
	if string(payload) != "ping" {
		t.Fatalf("payload = %q, want ping", payload)
	}

	if err := <-sendErr; err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	cancel()
	<-runDone
}

func readEgress(t *testing.T, h *Handle, timeout time.Duration) []byte {
	t.Helper()
	select {
	case frame := <-h.Egress():
		return frame
	case <-time.After(timeout):
		t.Fatal("timed out waiting for an egress frame")
		return nil
	}
}
