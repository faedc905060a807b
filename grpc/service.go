package dispatchgrpc

import (
	"context"
	"fmt"

	"github.com/blockberries/dispatch/types"

	"google.golang.org/grpc"
)

const (
	nodeServiceName   = "dispatch.v1.Node"
	gossipServiceName = "dispatch.v1.Gossip"
)

// NodeServiceServer is the server-side interface for the node gRPC service.
type NodeServiceServer interface {
	Query(context.Context, *types.QueryRequest) (*types.QueryResult, error)
	BroadcastTxSync(context.Context, *BroadcastRequest) (*types.BroadcastResult, error)
	BroadcastTxCommit(context.Context, *BroadcastRequest) (*types.BroadcastResult, error)
	TxStatus(context.Context, *TxStatusRequest) (*types.TxStatus, error)
}

// GossipServiceServer is the server-side interface for the gossip gRPC service.
type GossipServiceServer interface {
	SendMessage(context.Context, *types.GossipMessage) (*types.Ack, error)
}

// RegisterNodeServiceServer registers the NodeServiceServer on a gRPC server.
func RegisterNodeServiceServer(s *grpc.Server, srv NodeServiceServer) {
	s.RegisterService(&nodeServiceDesc, srv)
}

// RegisterGossipServiceServer registers the GossipServiceServer on a gRPC server.
func RegisterGossipServiceServer(s *grpc.Server, srv GossipServiceServer) {
	s.RegisterService(&gossipServiceDesc, srv)
}

// --- Handler functions ---

func handlerQuery(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(types.QueryRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(NodeServiceServer).Query(ctx, req)
}

func handlerBroadcastTxSync(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(BroadcastRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(NodeServiceServer).BroadcastTxSync(ctx, req)
}

func handlerBroadcastTxCommit(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(BroadcastRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(NodeServiceServer).BroadcastTxCommit(ctx, req)
}

func handlerTxStatus(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(TxStatusRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(NodeServiceServer).TxStatus(ctx, req)
}

func handlerSendMessage(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(types.GossipMessage)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(GossipServiceServer).SendMessage(ctx, req)
}

// nodeMethod builds the full gRPC method path for the node service.
func nodeMethod(method string) string {
	return fmt.Sprintf("/%s/%s", nodeServiceName, method)
}

// gossipMethod builds the full gRPC method path for the gossip service.
func gossipMethod(method string) string {
	return fmt.Sprintf("/%s/%s", gossipServiceName, method)
}

// nodeServiceDesc is the manual gRPC service descriptor for the node RPCs.
var nodeServiceDesc = grpc.ServiceDesc{
	ServiceName: nodeServiceName,
	HandlerType: (*NodeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: handlerQuery},
		{MethodName: "BroadcastTxSync", Handler: handlerBroadcastTxSync},
		{MethodName: "BroadcastTxCommit", Handler: handlerBroadcastTxCommit},
		{MethodName: "TxStatus", Handler: handlerTxStatus},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dispatch/v1/node.cram",
}

// gossipServiceDesc is the manual gRPC service descriptor for the gossip RPCs.
var gossipServiceDesc = grpc.ServiceDesc{
	ServiceName: gossipServiceName,
	HandlerType: (*GossipServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendMessage", Handler: handlerSendMessage},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dispatch/v1/gossip.cram",
}
