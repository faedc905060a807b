package dispatchtest

import (
	"net"
	"testing"

	"github.com/blockberries/dispatch"
	dispatchgrpc "github.com/blockberries/dispatch/grpc"

	"google.golang.org/grpc"
)

// StartNode serves node over gRPC on a random loopback port for the
// duration of the test and returns its address.
func StartNode(t *testing.T, node dispatch.Node) string {
	t.Helper()
	return serve(t, dispatchgrpc.NewNodeServer(node).Register)
}

// StartGossip serves peer over gRPC on a random loopback port for the
// duration of the test and returns its address.
func StartGossip(t *testing.T, peer dispatch.Gossip) string {
	t.Helper()
	return serve(t, dispatchgrpc.NewGossipServer(peer).Register)
}

// UnusedAddr returns a loopback address that nothing is listening on.
func UnusedAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	if err := lis.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	return addr
}

func serve(t *testing.T, register func(*grpc.Server)) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := grpc.NewServer()
	register(s)

	go func() {
		// Serve returns once the server is stopped in cleanup.
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	return lis.Addr().String()
}
