package types

// TxResult is the result of checking or executing a single transaction.
type TxResult struct {
	// Node-defined result code. 0 = success.
	Code uint32 `cramberry:"1" json:"code"`
	// Human-readable result info (non-deterministic, for debugging).
	Info string `cramberry:"2" json:"info,omitempty"`
	// Execution log emitted by the node.
	Log string `cramberry:"3" json:"log,omitempty"`
	// Data returned from execution (deterministic).
	Data    []byte `cramberry:"4" json:"data,omitempty"`
	GasUsed uint64 `cramberry:"5" json:"gas_used,omitempty"`
	// Events emitted by this transaction.
	Events []Event `cramberry:"6" json:"events,omitempty"`
}

// OK returns true if the transaction was accepted.
func (r TxResult) OK() bool { return r.Code == 0 }

// Reason returns the most specific rejection detail the node supplied.
func (r TxResult) Reason() string {
	if r.Info != "" {
		return r.Info
	}
	return r.Log
}

// TxStatus reports whether a broadcast transaction has been
// included in a block.
type TxStatus struct {
	Hash     Hash     `cramberry:"1" json:"hash"`
	Included bool     `cramberry:"2" json:"included"`
	Height   uint64   `cramberry:"3" json:"height,omitempty"`
	Result   TxResult `cramberry:"4" json:"result"`
}
