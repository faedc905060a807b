// Package dispatchtest provides test utilities for code that talks
// to nodes and gossip peers: configurable mocks, a gRPC server
// harness, and a node compliance suite.
package dispatchtest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/blockberries/dispatch"
	"github.com/blockberries/dispatch/types"
)

// Compile-time checks that the mocks satisfy the peer interfaces.
var (
	_ dispatch.Node       = (*MockNode)(nil)
	_ dispatch.NodeConn   = (*MockNode)(nil)
	_ dispatch.Gossip     = (*MockGossip)(nil)
	_ dispatch.GossipConn = (*MockGossip)(nil)
)

// MockNode is a configurable mock node. All methods are configurable
// via function fields. Unconfigured methods return an accepting,
// zero-value result.
type MockNode struct {
	QueryFn             func(context.Context, types.QueryRequest) (types.QueryResult, error)
	BroadcastTxSyncFn   func(context.Context, []byte) (types.BroadcastResult, error)
	BroadcastTxCommitFn func(context.Context, []byte) (types.BroadcastResult, error)
	TxStatusFn          func(context.Context, types.Hash) (types.TxStatus, error)

	// Call counters (atomic for concurrent access).
	QueryCalls             atomic.Int64
	BroadcastTxSyncCalls   atomic.Int64
	BroadcastTxCommitCalls atomic.Int64
	TxStatusCalls          atomic.Int64
	CloseCalls             atomic.Int64
}

func (m *MockNode) Query(ctx context.Context, req types.QueryRequest) (types.QueryResult, error) {
	m.QueryCalls.Add(1)
	if m.QueryFn != nil {
		return m.QueryFn(ctx, req)
	}
	return types.QueryResult{Code: types.CodeOK}, nil
}

func (m *MockNode) BroadcastTxSync(ctx context.Context, tx []byte) (types.BroadcastResult, error) {
	m.BroadcastTxSyncCalls.Add(1)
	if m.BroadcastTxSyncFn != nil {
		return m.BroadcastTxSyncFn(ctx, tx)
	}
	return types.BroadcastResult{Hash: types.TxHash(tx)}, nil
}

func (m *MockNode) BroadcastTxCommit(ctx context.Context, tx []byte) (types.BroadcastResult, error) {
	m.BroadcastTxCommitCalls.Add(1)
	if m.BroadcastTxCommitFn != nil {
		return m.BroadcastTxCommitFn(ctx, tx)
	}
	return types.BroadcastResult{Hash: types.TxHash(tx), Height: 1}, nil
}

func (m *MockNode) TxStatus(ctx context.Context, hash types.Hash) (types.TxStatus, error) {
	m.TxStatusCalls.Add(1)
	if m.TxStatusFn != nil {
		return m.TxStatusFn(ctx, hash)
	}
	return types.TxStatus{Hash: hash, Included: true, Height: 1}, nil
}

func (m *MockNode) Close() error {
	m.CloseCalls.Add(1)
	return nil
}

// Broadcasts returns the total number of broadcast calls of either kind.
func (m *MockNode) Broadcasts() int64 {
	return m.BroadcastTxSyncCalls.Load() + m.BroadcastTxCommitCalls.Load()
}

// MockGossip is a configurable mock gossip peer. It records every
// message it receives.
type MockGossip struct {
	SendMessageFn func(context.Context, types.GossipMessage) (types.Ack, error)

	SendMessageCalls atomic.Int64
	CloseCalls       atomic.Int64

	mu       sync.Mutex
	received []types.GossipMessage
}

func (m *MockGossip) SendMessage(ctx context.Context, msg types.GossipMessage) (types.Ack, error) {
	m.SendMessageCalls.Add(1)
	m.mu.Lock()
	m.received = append(m.received, msg)
	m.mu.Unlock()
	if m.SendMessageFn != nil {
		return m.SendMessageFn(ctx, msg)
	}
	return types.Ack{Code: types.CodeOK}, nil
}

func (m *MockGossip) Close() error {
	m.CloseCalls.Add(1)
	return nil
}

// Received returns a copy of the messages received so far.
func (m *MockGossip) Received() []types.GossipMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.GossipMessage, len(m.received))
	copy(out, m.received)
	return out
}
