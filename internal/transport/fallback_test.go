package transport

import (
	"io"
	"testing"

	"github.com/habnabit/crabbletalk/internal/logging"
	"github.com/habnabit/crabbletalk/pkg/atalk"
)

func TestFallbackConnSendNeverFails(t *testing.T) {
	logger := logging.Setup("error", io.Discard)
	f := NewFallbackConn(logger)
	defer f.Close()

	if err := f.Send(atalk.EthertypeAppleTalk, atalk.BroadcastMAC, []byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestFallbackConnRecvUnblocksOnClose(t *testing.T) {
	logger := logging.Setup("error", io.Discard)
	f := NewFallbackConn(logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := f.Recv(); err == nil {
			t.Error("Recv after Close: expected error, got nil")
		}
	}()

	f.Close()
	<-done
}
