// Package orderbook implements a minimal gossip peer that collects
// published intents. It does no matching; it is the receiving end
// used by the dispatch CLI in development and tests.
package orderbook

import (
	"context"
	"fmt"
	"sync"

	"github.com/blockberries/dispatch"
	"github.com/blockberries/dispatch/types"
)

// Compile-time interface check.
var _ dispatch.Gossip = (*Book)(nil)

// Ack codes returned by the book.
const (
	AckOK          uint32 = 0
	AckEmptyIntent uint32 = 1
	AckUnsupported uint32 = 2
)

// Option configures a Book.
type Option func(*Book)

// WithRejectEmpty makes the book refuse intents with no payload.
func WithRejectEmpty() Option {
	return func(b *Book) { b.rejectEmpty = true }
}

// Book stores intents in arrival order, dropping repeats by ID.
type Book struct {
	mu          sync.Mutex
	intents     []types.IntentMessage
	seen        map[string]struct{}
	rejectEmpty bool
}

// New creates an empty book.
func New(opts ...Option) *Book {
	b := &Book{seen: make(map[string]struct{})}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Book) SendMessage(_ context.Context, msg types.GossipMessage) (types.Ack, error) {
	switch msg.Kind() {
	case types.KindIntent:
		return b.addIntent(*msg.Intent), nil
	default:
		return types.Ack{Code: AckUnsupported, Info: fmt.Sprintf("unsupported message kind %s", msg.Kind())}, nil
	}
}

func (b *Book) addIntent(im types.IntentMessage) types.Ack {
	if b.rejectEmpty && len(im.Intent.Data) == 0 {
		return types.Ack{Code: AckEmptyIntent, Info: "intent payload is empty"}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Re-delivery of a known intent is acknowledged but not stored twice.
	if _, ok := b.seen[im.ID]; ok {
		return types.Ack{Code: AckOK, Info: "duplicate"}
	}
	b.seen[im.ID] = struct{}{}
	b.intents = append(b.intents, im)
	return types.Ack{Code: AckOK}
}

// Intents returns a copy of the stored intents in arrival order.
func (b *Book) Intents() []types.IntentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.IntentMessage, len(b.intents))
	copy(out, b.intents)
	return out
}

// Len returns the number of stored intents.
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.intents)
}
