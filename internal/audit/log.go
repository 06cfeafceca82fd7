// Package audit provides a persistent audit trail for AppleTalk address
// acquisition and conflict events. Every tentative claim, acceptance, and
// conflict is recorded with full context in a dedicated BoltDB bucket,
// independent of the in-memory address mapping table.
package audit

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/habnabit/crabbletalk/internal/events"
)

var (
	bucketAudit     = []byte("audit_log")
	bucketAuditAddr = []byte("audit_addr_index") // "net.node" -> list of audit record keys
)

// Record is a single audit log entry.
type Record struct {
	ID        uint64 `json:"id"`
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Net       uint16 `json:"net,omitempty"`
	Node      uint8  `json:"node,omitempty"`
	HW        string `json:"hw,omitempty"`
	Vendor    string `json:"vendor,omitempty"`
	Socket    uint8  `json:"socket,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// QueryParams holds filter parameters for querying the audit log.
type QueryParams struct {
	Addr  string    // filter by "net.node" address string
	Event string    // filter by event type
	From  time.Time // range start (inclusive)
	To    time.Time // range end (inclusive)
	Limit int       // max results (0 = default 1000)
}

// Log provides append-only audit logging for stack events.
type Log struct {
	db     *bolt.DB
	bus    *events.Bus
	logger *slog.Logger
	ch     chan events.Event
	done   chan struct{}
}

// NewLog creates a new audit log backed by BoltDB.
func NewLog(db *bolt.DB, bus *events.Bus, logger *slog.Logger) (*Log, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketAudit); err != nil {
			return fmt.Errorf("creating audit bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(bucketAuditAddr); err != nil {
			return fmt.Errorf("creating audit address index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Log{
		db:     db,
		bus:    bus,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Start subscribes to the event bus and begins recording audit entries.
// Call in a goroutine.
func (l *Log) Start() {
	l.ch = l.bus.Subscribe(2000)
	l.logger.Info("audit log started")

	for {
		select {
		case evt, ok := <-l.ch:
			if !ok {
				return
			}
			l.handleEvent(evt)
		case <-l.done:
			return
		}
	}
}

// Stop shuts down the audit log subscriber.
func (l *Log) Stop() {
	close(l.done)
	if l.ch != nil {
		l.bus.Unsubscribe(l.ch)
	}
	l.logger.Info("audit log stopped")
}

// handleEvent converts a bus event into an audit record and persists it.
// Socket lifecycle events are diagnostic noise for compliance purposes and
// are not recorded here; address acquisition and conflict history is.
func (l *Log) handleEvent(evt events.Event) {
	switch evt.Type {
	case events.TypeAddressTentative, events.TypeAddressAccepted,
		events.TypeAddressConflict, events.TypeBindingGleaned:
		// record these
	default:
		return
	}

	rec := Record{
		Timestamp: evt.Timestamp.UTC().Format(time.RFC3339Nano),
		Event:     string(evt.Type),
		Net:       evt.Net,
		Node:      evt.Node,
		HW:        evt.HW,
		Vendor:    evt.Vendor,
		Socket:    evt.Socket,
		Reason:    evt.Reason,
	}

	if err := l.append(rec); err != nil {
		l.logger.Error("failed to write audit record", "event", rec.Event, "error", err)
	}
}

func addrKey(net uint16, node uint8) string {
	return fmt.Sprintf("%d.%d", net, node)
}

// append persists a single audit record to BoltDB with an auto-increment ID.
func (l *Log) append(rec Record) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAudit)

		id, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("generating audit ID: %w", err)
		}
		rec.ID = id

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshalling audit record: %w", err)
		}

		key := uint64Key(id)
		if err := b.Put(key, data); err != nil {
			return fmt.Errorf("storing audit record: %w", err)
		}

		if rec.Net != 0 || rec.Node != 0 {
			idx := tx.Bucket(bucketAuditAddr)
			addrIdxKey := []byte(addrKey(rec.Net, rec.Node))
			existing := idx.Get(addrIdxKey)
			var ids []uint64
			if existing != nil {
				json.Unmarshal(existing, &ids)
			}
			ids = append(ids, id)
			idData, _ := json.Marshal(ids)
			idx.Put(addrIdxKey, idData)
		}

		return nil
	})
}

// Query searches the audit log with the given parameters.
func (l *Log) Query(params QueryParams) ([]Record, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 1000
	}

	if params.Addr != "" {
		return l.queryByAddr(params, limit)
	}

	var results []Record
	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAudit)
		c := b.Cursor()

		for k, v := c.Last(); k != nil && len(results) < limit; k, v = c.Prev() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			if matchesQuery(rec, params) {
				results = append(results, rec)
			}
		}
		return nil
	})

	return results, err
}

func (l *Log) queryByAddr(params QueryParams, limit int) ([]Record, error) {
	var results []Record

	err := l.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket(bucketAuditAddr)
		b := tx.Bucket(bucketAudit)

		idsData := idx.Get([]byte(params.Addr))
		if idsData == nil {
			return nil
		}

		var ids []uint64
		if err := json.Unmarshal(idsData, &ids); err != nil {
			return nil
		}

		for i := len(ids) - 1; i >= 0 && len(results) < limit; i-- {
			data := b.Get(uint64Key(ids[i]))
			if data == nil {
				continue
			}
			var rec Record
			if err := json.Unmarshal(data, &rec); err != nil {
				continue
			}
			if matchesQuery(rec, params) {
				results = append(results, rec)
			}
		}
		return nil
	})

	return results, err
}

// Count returns the total number of audit records.
func (l *Log) Count() int {
	var count int
	l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAudit)
		count = b.Stats().KeyN
		return nil
	})
	return count
}

func matchesQuery(rec Record, params QueryParams) bool {
	if params.Event != "" && rec.Event != params.Event {
		return false
	}

	recTime, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
	if err != nil {
		return false
	}

	if !params.From.IsZero() && recTime.Before(params.From) {
		return false
	}
	if !params.To.IsZero() && recTime.After(params.To) {
		return false
	}

	return true
}

func uint64Key(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}
