package daemon

import (
	"context"
	"testing"

	"github.com/doldecomp/agentcoord/internal/rpc"
)

func TestHandlePingReturnsVersion(t *testing.T) {
	s := &Server{Version: "1.2.3", handlers: map[string]HandlerFunc{}}
	s.handlers = s.buildHandlers()

	resp, err := s.handlePing(context.Background(), &rpc.Request{Operation: rpc.OpPing})
	if err != nil {
		t.Fatalf("handlePing: %v", err)
	}
	ping, ok := resp.(rpc.PingResponse)
	if !ok {
		t.Fatalf("expected rpc.PingResponse, got %T", resp)
	}
	if ping.Version != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %q", ping.Version)
	}
}

func TestHandleShutdownClosesChannel(t *testing.T) {
	s := NewServer(nil, "/tmp/does-not-matter.sock", "1.0.0", nil)
	if _, err := s.handleShutdown(context.Background(), &rpc.Request{Operation: rpc.OpShutdown}); err != nil {
		t.Fatalf("handleShutdown: %v", err)
	}
	select {
	case <-s.shutdown:
	default:
		t.Fatal("expected shutdown channel to be closed")
	}
}

func TestDispatchUnknownOperation(t *testing.T) {
	s := NewServer(nil, "/tmp/does-not-matter.sock", "1.0.0", nil)
	if _, err := s.dispatch(context.Background(), &rpc.Request{Operation: "bogus"}); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}
