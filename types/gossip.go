package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/google/uuid"
)

// ErrEmptyEnvelope is returned for a GossipMessage with no variant set.
var ErrEmptyEnvelope = errors.New("gossip message carries no variant")

// Intent is an opaque trade/order payload published to the
// gossip network for matching.
type Intent struct {
	Data      []byte    `cramberry:"1" json:"data"`
	Timestamp Timestamp `cramberry:"2" json:"timestamp"`
}

// IntentMessage tags an Intent as the intent variant of a
// GossipMessage. ID lets peers drop copies they have already seen.
type IntentMessage struct {
	ID     string `cramberry:"1" json:"id"`
	Intent Intent `cramberry:"2" json:"intent"`
}

// MessageKind identifies which variant a GossipMessage carries.
type MessageKind uint8

const (
	KindUnknown MessageKind = iota
	KindIntent
)

func (k MessageKind) String() string {
	switch k {
	case KindIntent:
		return "intent"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// GossipMessage is the envelope sent to gossip peers. It is a tagged
// union: exactly one variant field is set. New variants are added as
// new pointer fields with the next free tag and a new MessageKind.
type GossipMessage struct {
	Intent *IntentMessage `cramberry:"1" json:"intent,omitempty"`
}

// Kind returns the variant carried by m.
func (m GossipMessage) Kind() MessageKind {
	switch {
	case m.Intent != nil:
		return KindIntent
	default:
		return KindUnknown
	}
}

// Validate checks that exactly one variant is set.
func (m GossipMessage) Validate() error {
	if m.Kind() == KindUnknown {
		return ErrEmptyEnvelope
	}
	return nil
}

// WrapIntent tags payload as an intent captured at now. The payload
// is opaque and not inspected.
func WrapIntent(payload []byte, now time.Time) GossipMessage {
	return GossipMessage{
		Intent: &IntentMessage{
			ID: uuid.NewString(),
			Intent: Intent{
				Data:      payload,
				Timestamp: TimeToTimestamp(now),
			},
		},
	}
}

// EncodeGossipMessage produces the wire form of m used by framed
// transports that carry raw bytes.
func EncodeGossipMessage(m GossipMessage) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	data, err := cramberry.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("encode gossip message: %w", err)
	}
	return data, nil
}

// DecodeGossipMessage is the inverse of EncodeGossipMessage.
func DecodeGossipMessage(data []byte) (GossipMessage, error) {
	var m GossipMessage
	if err := cramberry.Unmarshal(data, &m); err != nil {
		return GossipMessage{}, fmt.Errorf("decode gossip message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return GossipMessage{}, fmt.Errorf("decode gossip message: %w", err)
	}
	return m, nil
}

// Ack is a gossip peer's acknowledgement of one message.
type Ack struct {
	// 0 = accepted. Non-zero = the peer refused the message.
	Code uint32 `cramberry:"1" json:"code"`
	Info string `cramberry:"2" json:"info,omitempty"`
}

// OK returns true if the peer accepted the message.
func (a Ack) OK() bool { return a.Code == 0 }
