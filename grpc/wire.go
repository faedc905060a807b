package dispatchgrpc

import "github.com/blockberries/dispatch/types"

// Transport-specific wrapper types for RPC methods whose interface
// signatures don't map to a single request/response struct.
// These are used only for gRPC serialization boundaries.

// BroadcastRequest wraps the encoded transaction for
// Node.BroadcastTxSync and Node.BroadcastTxCommit.
type BroadcastRequest struct {
	Tx []byte `cramberry:"1"`
}

// TxStatusRequest wraps the parameter for Node.TxStatus.
type TxStatusRequest struct {
	Hash types.Hash `cramberry:"1"`
}
