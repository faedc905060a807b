package dispatchgrpc

import (
	"context"
	"net"

	"github.com/blockberries/dispatch"
	"github.com/blockberries/dispatch/types"

	"google.golang.org/grpc"
)

// Compile-time interface checks.
var (
	_ NodeServiceServer   = (*NodeServer)(nil)
	_ GossipServiceServer = (*GossipServer)(nil)
)

// NodeServer exposes a dispatch.Node as a gRPC service.
// No type conversion is needed; types are serialized
// directly via cramberry.
type NodeServer struct {
	node dispatch.Node
}

// NewNodeServer creates a gRPC server wrapping the given node.
func NewNodeServer(node dispatch.Node) *NodeServer {
	return &NodeServer{node: node}
}

// Register adds the node service to a gRPC server.
func (s *NodeServer) Register(gs *grpc.Server) {
	RegisterNodeServiceServer(gs, s)
}

// Serve starts a gRPC server on the given listener.
func (s *NodeServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

func (s *NodeServer) Query(ctx context.Context, req *types.QueryRequest) (*types.QueryResult, error) {
	result, err := s.node.Query(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *NodeServer) BroadcastTxSync(ctx context.Context, req *BroadcastRequest) (*types.BroadcastResult, error) {
	result, err := s.node.BroadcastTxSync(ctx, req.Tx)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *NodeServer) BroadcastTxCommit(ctx context.Context, req *BroadcastRequest) (*types.BroadcastResult, error) {
	result, err := s.node.BroadcastTxCommit(ctx, req.Tx)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *NodeServer) TxStatus(ctx context.Context, req *TxStatusRequest) (*types.TxStatus, error) {
	status, err := s.node.TxStatus(ctx, req.Hash)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// GossipServer exposes a dispatch.Gossip as a gRPC service.
type GossipServer struct {
	peer dispatch.Gossip
}

// NewGossipServer creates a gRPC server wrapping the given gossip peer.
func NewGossipServer(peer dispatch.Gossip) *GossipServer {
	return &GossipServer{peer: peer}
}

// Register adds the gossip service to a gRPC server.
func (s *GossipServer) Register(gs *grpc.Server) {
	RegisterGossipServiceServer(gs, s)
}

// Serve starts a gRPC server on the given listener.
func (s *GossipServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

func (s *GossipServer) SendMessage(ctx context.Context, msg *types.GossipMessage) (*types.Ack, error) {
	ack, err := s.peer.SendMessage(ctx, *msg)
	if err != nil {
		return nil, err
	}
	return &ack, nil
}
