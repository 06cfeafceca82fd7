// crabbletalkd — a userspace AppleTalk link and network layer daemon:
// ELAP/SNAP framing, AARP address resolution, and DDP datagram delivery
// over a single Ethernet interface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	bolt "go.etcd.io/bbolt"

	"github.com/habnabit/crabbletalk/internal/audit"
	"github.com/habnabit/crabbletalk/internal/config"
	"github.com/habnabit/crabbletalk/internal/logging"
	"github.com/habnabit/crabbletalk/internal/macvendor"
	"github.com/habnabit/crabbletalk/internal/stack"
	"github.com/habnabit/crabbletalk/internal/transport"
	"github.com/habnabit/crabbletalk/pkg/atalk"
)

func main() {
	configPath := flag.String("config", "/etc/crabbletalkd/config.toml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, os.Stdout)
	logger.Info("crabbletalkd starting", "config", *configPath, "interface", cfg.Interface)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	localMAC, err := resolveLocalMAC(cfg)
	if err != nil {
		logger.Error("failed to determine local MAC address", "error", err)
		os.Exit(1)
	}

	conn := transport.Open(cfg.Interface, []uint16{atalk.EthertypeAppleTalk, atalk.EthertypeAARP}, logger)
	defer conn.Close()

	vendors := loadVendorDB(cfg.VendorDBPath, logger)
	driver := stack.NewDriver(cfg, localMAC, logger, vendors)
	handle := driver.Handle()

	if cfg.AuditDBPath != "" {
		auditLog, err := openAuditLog(cfg.AuditDBPath, handle, logger)
		if err != nil {
			logger.Error("failed to open audit log", "error", err)
			os.Exit(1)
		}
		go auditLog.Start()
		defer auditLog.Stop()
	}

	driverDone := make(chan error, 1)
	go func() { driverDone <- driver.Run(ctx) }()

	go pumpIngress(ctx, conn, handle, logger)
	go pumpEgress(ctx, conn, handle, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-driverDone:
		logger.Error("stack driver exited unexpectedly", "error", err)
	}

	cancel()
	select {
	case <-driverDone:
	case <-time.After(5 * time.Second):
		logger.Warn("timed out waiting for stack driver to stop")
	}
	logger.Info("crabbletalkd stopped")
}

// resolveLocalMAC uses the configured MAC if set, otherwise mints a fresh
// locally-administered one — acceptable for a link whose only other
// citizens are other AppleTalk nodes that resolve each other by AARP, not
// by any registry of real hardware addresses.
func resolveLocalMAC(cfg *config.Config) (atalk.Mac, error) {
	if cfg.LocalMAC == "" {
		return atalk.RandomLAAMac(), nil
	}
	var m atalk.Mac
	n, err := fmt.Sscanf(cfg.LocalMAC, "%02x:%02x:%02x:%02x:%02x:%02x",
		&m[0], &m[1], &m[2], &m[3], &m[4], &m[5])
	if err != nil || n != 6 {
		return atalk.Mac{}, fmt.Errorf("parsing local_mac %q: %w", cfg.LocalMAC, err)
	}
	return m, nil
}

// pumpIngress forwards frames from the transport to the stack driver
// until ctx is cancelled or the transport errors out.
func pumpIngress(ctx context.Context, conn transport.Conn, h *stack.Handle, logger *slog.Logger) {
	for {
		frame, err := conn.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("transport receive failed", "error", err)
			return
		}
		if err := h.ProcessEthernet(ctx, frame.Payload); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("dropping ingress frame, stack driver gone", "error", err)
			return
		}
	}
}

// pumpEgress forwards frames the stack driver produces out to the
// transport until ctx is cancelled.
func pumpEgress(ctx context.Context, conn transport.Conn, h *stack.Handle, logger *slog.Logger) {
	for {
		select {
		case frame := <-h.Egress():
			elap, _, err := atalk.DecodeELAPSplit(frame)
			if err != nil {
				logger.Error("stack produced an unparseable egress frame", "error", err)
				continue
			}
			if err := conn.Send(elap.Ethertype, elap.DstMAC, frame); err != nil {
				logger.Error("transport send failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// loadVendorDB loads an optional OUI vendor database for diagnostic
// logging. A missing path or a read/parse failure is non-fatal: vendor
// annotations are a convenience, not a dependency of the stack itself.
func loadVendorDB(path string, logger *slog.Logger) *macvendor.DB {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read vendor database, continuing without vendor names", "path", path, "error", err)
		return nil
	}
	db := macvendor.NewDB()
	if err := db.Load(data); err != nil {
		logger.Warn("failed to parse vendor database, continuing without vendor names", "path", path, "error", err)
		return nil
	}
	logger.Info("loaded vendor database", "path", path, "entries", db.Count())
	return db
}

// openAuditLog opens (creating if necessary) a BoltDB-backed audit log and
// wires it to the stack driver's diagnostic event bus.
func openAuditLog(path string, h *stack.Handle, logger *slog.Logger) (*audit.Log, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening audit database %s: %w", path, err)
	}
	return audit.NewLog(db, h.Bus(), logger)
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := nethttp.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	logger.Info("metrics server listening", "addr", addr)
	if err := nethttp.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", "error", err)
	}
}
