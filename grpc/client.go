package dispatchgrpc

import (
	"context"

	"github.com/blockberries/dispatch"
	"github.com/blockberries/dispatch/types"

	"google.golang.org/grpc"
)

// Compile-time interface checks.
var (
	_ dispatch.NodeConn   = (*NodeClient)(nil)
	_ dispatch.GossipConn = (*GossipClient)(nil)
)

// NodeClient implements dispatch.NodeConn for remote nodes over
// gRPC using cramberry serialization.
type NodeClient struct {
	cc   *grpc.ClientConn
	addr string
}

// DialNode connects to a remote node. Dial failures are returned as
// *dispatch.TransportError.
func DialNode(ctx context.Context, addr string, opts ...grpc.DialOption) (*NodeClient, error) {
	cc, err := dial(ctx, addr, opts)
	if err != nil {
		return nil, err
	}
	return &NodeClient{cc: cc, addr: addr}, nil
}

// Addr returns the address the client was dialed with.
func (c *NodeClient) Addr() string { return c.addr }

func (c *NodeClient) Close() error {
	return c.cc.Close()
}

func (c *NodeClient) Query(ctx context.Context, req types.QueryRequest) (types.QueryResult, error) {
	resp := new(types.QueryResult)
	if err := c.cc.Invoke(ctx, nodeMethod("Query"), &req, resp); err != nil {
		return types.QueryResult{}, err
	}
	return *resp, nil
}

func (c *NodeClient) BroadcastTxSync(ctx context.Context, tx []byte) (types.BroadcastResult, error) {
	req := &BroadcastRequest{Tx: tx}
	resp := new(types.BroadcastResult)
	if err := c.cc.Invoke(ctx, nodeMethod("BroadcastTxSync"), req, resp); err != nil {
		return types.BroadcastResult{}, err
	}
	return *resp, nil
}

func (c *NodeClient) BroadcastTxCommit(ctx context.Context, tx []byte) (types.BroadcastResult, error) {
	req := &BroadcastRequest{Tx: tx}
	resp := new(types.BroadcastResult)
	if err := c.cc.Invoke(ctx, nodeMethod("BroadcastTxCommit"), req, resp); err != nil {
		return types.BroadcastResult{}, err
	}
	return *resp, nil
}

func (c *NodeClient) TxStatus(ctx context.Context, hash types.Hash) (types.TxStatus, error) {
	req := &TxStatusRequest{Hash: hash}
	resp := new(types.TxStatus)
	if err := c.cc.Invoke(ctx, nodeMethod("TxStatus"), req, resp); err != nil {
		return types.TxStatus{}, err
	}
	return *resp, nil
}

// GossipClient implements dispatch.GossipConn for remote gossip
// peers over gRPC.
type GossipClient struct {
	cc   *grpc.ClientConn
	addr string
}

// DialGossip connects to a remote gossip peer. Dial failures are
// returned as *dispatch.TransportError.
func DialGossip(ctx context.Context, addr string, opts ...grpc.DialOption) (*GossipClient, error) {
	cc, err := dial(ctx, addr, opts)
	if err != nil {
		return nil, err
	}
	return &GossipClient{cc: cc, addr: addr}, nil
}

// Addr returns the address the client was dialed with.
func (c *GossipClient) Addr() string { return c.addr }

func (c *GossipClient) Close() error {
	return c.cc.Close()
}

func (c *GossipClient) SendMessage(ctx context.Context, msg types.GossipMessage) (types.Ack, error) {
	resp := new(types.Ack)
	if err := c.cc.Invoke(ctx, gossipMethod("SendMessage"), &msg, resp); err != nil {
		return types.Ack{}, err
	}
	return *resp, nil
}

func dial(ctx context.Context, addr string, opts []grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(CramberryCodec{}),
	))
	cc, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, &dispatch.TransportError{Op: "dial", Addr: addr, Err: err}
	}
	return cc, nil
}
