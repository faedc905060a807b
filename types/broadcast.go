package types

// Result codes shared by the node implementations in this module.
// Nodes may return any non-zero code; these are the ones the
// development node uses.
const (
	CodeOK        uint32 = 0
	CodeMalformed uint32 = 1
	CodeRejected  uint32 = 2
	// CodeDuplicate is returned when the anti-replay cache has
	// already seen the transaction.
	CodeDuplicate   uint32 = 3
	CodeUnknownPath uint32 = 4
)

// BroadcastResult is the node's response to a broadcast.
//
// For a sync broadcast only Check is populated by the node; the
// dispatcher fills Deliver and Height once inclusion is observed.
type BroadcastResult struct {
	Hash   Hash   `cramberry:"1" json:"hash"`
	Height uint64 `cramberry:"2" json:"height,omitempty"`
	// Mempool admission result.
	Check TxResult `cramberry:"3" json:"check"`
	// Execution result once included.
	Deliver TxResult `cramberry:"4" json:"deliver"`
}

// Accepted returns true if both admission and execution succeeded.
func (r BroadcastResult) Accepted() bool {
	return r.Check.OK() && r.Deliver.OK()
}
