package types

// EventAttribute is a single key-value tag within an event.
type EventAttribute struct {
	Key   string `cramberry:"1" json:"key"`
	Value string `cramberry:"2" json:"value"`
	Index bool   `cramberry:"3" json:"index,omitempty"` // Whether indexers should pick this up.
}

// Event is a node-emitted execution event.
type Event struct {
	Kind       string           `cramberry:"1" json:"kind"`
	Attributes []EventAttribute `cramberry:"2" json:"attributes,omitempty"`
}
