package events

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(100, testLogger())
	go bus.Start()
	defer bus.Stop()

	ch := bus.Subscribe(100)
	defer bus.Unsubscribe(ch)

	evt := Event{
		Type:      TypeAddressAccepted,
		Timestamp: time.Now(),
		Net:       0xff10,
		Node:      0x42,
	}

	bus.Publish(evt)

	select {
	case received := <-ch:
		if received.Type != TypeAddressAccepted {
			t.Errorf("received event type = %q, want %q", received.Type, TypeAddressAccepted)
		}
		if received.Node != 0x42 {
			t.Error("node not preserved")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := NewBus(100, testLogger())
	go bus.Start()
	defer bus.Stop()

	ch1 := bus.Subscribe(100)
	ch2 := bus.Subscribe(100)
	defer bus.Unsubscribe(ch1)
	defer bus.Unsubscribe(ch2)

	bus.Publish(Event{Type: TypeAddressConflict, Timestamp: time.Now()})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Type != TypeAddressConflict {
				t.Errorf("event type = %q, want %q", e.Type, TypeAddressConflict)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event on subscriber")
		}
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(100, testLogger())
	go bus.Start()
	defer bus.Stop()

	ch := bus.Subscribe(100)
	bus.Unsubscribe(ch)

	// Publish after unsubscribe — should not block or panic
	bus.Publish(Event{Type: TypeSocketClosed, Timestamp: time.Now()})

	// Give a moment for the event to propagate
	time.Sleep(50 * time.Millisecond)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("should not receive events after unsubscribe")
		}
	default:
		// Expected — channel closed or empty
	}
}

func TestBusNonBlocking(t *testing.T) {
	// Tiny buffer
	bus := NewBus(1, testLogger())
	go bus.Start()
	defer bus.Stop()

	// Publish many events — should not block even with tiny buffer
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(Event{Type: TypeBindingGleaned, Timestamp: time.Now()})
		}
		close(done)
	}()

	select {
	case <-done:
		// Good — publishing didn't block
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked — event bus should be non-blocking")
	}
}
