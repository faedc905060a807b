package types

// QueryRequest is a request to read node state.
type QueryRequest struct {
	Path QueryPath `cramberry:"1" json:"path"`
	Data []byte    `cramberry:"2" json:"data,omitempty"`
	// Height to query at. Nil = latest committed state.
	Height *uint64 `cramberry:"3" json:"height,omitempty"`
	// If true, include a Merkle proof in the result.
	Prove bool `cramberry:"4" json:"prove,omitempty"`
}

// QueryResult is the node's response to a query.
type QueryResult struct {
	// 0 = success. Non-zero = the node rejected the query.
	Code   uint32  `cramberry:"1" json:"code"`
	Key    []byte  `cramberry:"2" json:"key,omitempty"`
	Value  []byte  `cramberry:"3" json:"value,omitempty"`
	Height uint64  `cramberry:"4" json:"height"`
	Info   string  `cramberry:"5" json:"info,omitempty"`
	Log    string  `cramberry:"6" json:"log,omitempty"`
	Events []Event `cramberry:"7" json:"events,omitempty"`
}

// OK returns true if the query succeeded.
func (r QueryResult) OK() bool { return r.Code == 0 }
