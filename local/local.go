// Package local provides in-process node and gossip connections.
//
// For a node or orderbook compiled into the same binary as the
// client (devnets, tests), these adapters satisfy the client's
// connection factories with no serialization overhead.
package local

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/blockberries/dispatch"
	"github.com/blockberries/dispatch/types"
)

// Compile-time interface checks.
var (
	_ dispatch.NodeConn   = (*NodeConnection)(nil)
	_ dispatch.GossipConn = (*GossipConnection)(nil)
)

// NodeConnection wraps an in-process node. Calls after Close fail
// with a *dispatch.TransportError, as a closed network connection
// would.
type NodeConnection struct {
	node   dispatch.Node
	closed atomic.Bool
}

// NewNodeConnection creates a connection to node.
func NewNodeConnection(node dispatch.Node) *NodeConnection {
	return &NodeConnection{node: node}
}

// NodeFactory returns a client.NodeFactory-compatible function that
// opens a fresh connection to node on every call. The address is
// ignored.
func NodeFactory(node dispatch.Node) func(context.Context, string) (dispatch.NodeConn, error) {
	return func(context.Context, string) (dispatch.NodeConn, error) {
		return NewNodeConnection(node), nil
	}
}

func (c *NodeConnection) Query(ctx context.Context, req types.QueryRequest) (types.QueryResult, error) {
	if err := c.check("query"); err != nil {
		return types.QueryResult{}, err
	}
	req.Data = clone(req.Data)
	return c.node.Query(ctx, req)
}

func (c *NodeConnection) BroadcastTxSync(ctx context.Context, tx []byte) (types.BroadcastResult, error) {
	if err := c.check("broadcast"); err != nil {
		return types.BroadcastResult{}, err
	}
	return c.node.BroadcastTxSync(ctx, clone(tx))
}

func (c *NodeConnection) BroadcastTxCommit(ctx context.Context, tx []byte) (types.BroadcastResult, error) {
	if err := c.check("broadcast"); err != nil {
		return types.BroadcastResult{}, err
	}
	return c.node.BroadcastTxCommit(ctx, clone(tx))
}

func (c *NodeConnection) TxStatus(ctx context.Context, hash types.Hash) (types.TxStatus, error) {
	if err := c.check("tx status"); err != nil {
		return types.TxStatus{}, err
	}
	return c.node.TxStatus(ctx, hash)
}

func (c *NodeConnection) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *NodeConnection) check(op string) error {
	if c.closed.Load() {
		return &dispatch.TransportError{Op: op, Addr: "local", Err: net.ErrClosed}
	}
	return nil
}

// GossipConnection wraps an in-process gossip peer.
type GossipConnection struct {
	peer   dispatch.Gossip
	closed atomic.Bool
}

// NewGossipConnection creates a connection to peer.
func NewGossipConnection(peer dispatch.Gossip) *GossipConnection {
	return &GossipConnection{peer: peer}
}

// GossipFactory is NodeFactory for gossip peers.
func GossipFactory(peer dispatch.Gossip) func(context.Context, string) (dispatch.GossipConn, error) {
	return func(context.Context, string) (dispatch.GossipConn, error) {
		return NewGossipConnection(peer), nil
	}
}

func (c *GossipConnection) SendMessage(ctx context.Context, msg types.GossipMessage) (types.Ack, error) {
	if c.closed.Load() {
		return types.Ack{}, &dispatch.TransportError{Op: "send", Addr: "local", Err: net.ErrClosed}
	}
	// The peer may keep the message; give it its own payload.
	if msg.Intent != nil {
		im := *msg.Intent
		im.Intent.Data = clone(im.Intent.Data)
		msg.Intent = &im
	}
	return c.peer.SendMessage(ctx, msg)
}

func (c *GossipConnection) Close() error {
	c.closed.Store(true)
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
