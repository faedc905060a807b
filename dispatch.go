// Package dispatch defines the client-side boundary between a
// transaction/intent submitter and the remote peers it talks to:
// consensus nodes and gossip (orderbook) services.
//
// The [Node] and [Gossip] interfaces describe what a peer offers.
// Transports (gRPC, ZeroMQ, in-process) implement [NodeConn] and
// [GossipConn] on the client side and serve a [Node] or [Gossip]
// on the peer side.
package dispatch

import (
	"context"

	"github.com/blockberries/dispatch/types"
)

// Node is the RPC surface of a consensus node as seen by a
// transaction submitter.
type Node interface {
	// Query reads node state. A query on types.DryRunPath with an
	// encoded transaction as Data simulates that transaction
	// against committed state without persisting anything.
	//
	// This method MUST NOT change node state and MUST be safe for
	// concurrent use.
	Query(ctx context.Context, req types.QueryRequest) (types.QueryResult, error)

	// BroadcastTxSync admits an encoded transaction to the mempool
	// and returns the admission result without waiting for
	// inclusion.
	BroadcastTxSync(ctx context.Context, tx []byte) (types.BroadcastResult, error)

	// BroadcastTxCommit admits an encoded transaction and blocks
	// until it has been included and executed.
	BroadcastTxCommit(ctx context.Context, tx []byte) (types.BroadcastResult, error)

	// TxStatus reports whether the transaction with the given hash
	// has been included. Read-only.
	TxStatus(ctx context.Context, hash types.Hash) (types.TxStatus, error)
}

// Gossip is the RPC surface of a gossip peer (an orderbook node).
type Gossip interface {
	// SendMessage delivers one envelope and returns the peer's
	// acknowledgement. Propagation beyond the receiving peer is not
	// part of this contract.
	SendMessage(ctx context.Context, msg types.GossipMessage) (types.Ack, error)
}

// NodeConn is one client connection to a node.
type NodeConn interface {
	Node

	// Close terminates the connection.
	Close() error
}

// GossipConn is one client connection to a gossip peer.
type GossipConn interface {
	Gossip

	// Close terminates the connection.
	Close() error
}
