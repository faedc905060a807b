package client

import (
	"context"
	"time"

	"github.com/blockberries/dispatch"
	"github.com/blockberries/dispatch/types"
	"github.com/rs/zerolog"
)

// IntentPublisher delivers gossip messages to a single peer.
type IntentPublisher struct {
	dial    GossipFactory
	timeout time.Duration
	log     zerolog.Logger
}

// NewIntentPublisher creates a publisher. A nil dial uses DialGossip.
// A positive timeout bounds each Publish call.
func NewIntentPublisher(dial GossipFactory, timeout time.Duration, log zerolog.Logger) *IntentPublisher {
	if dial == nil {
		dial = DialGossip
	}
	return &IntentPublisher{dial: dial, timeout: timeout, log: log}
}

// Publish sends msg to the peer at addr and waits for its Ack. The
// message is sent once. A negative Ack is returned together with a
// *dispatch.GossipRejectedError.
func (p *IntentPublisher) Publish(ctx context.Context, rawAddr string, msg types.GossipMessage) (ack types.Ack, err error) {
	attempt := NewAttempt()
	attempt.BeginEncoding()
	defer func() {
		if err != nil {
			attempt.Fail()
		} else {
			attempt.Complete()
		}
	}()

	if err := msg.Validate(); err != nil {
		return types.Ack{}, &dispatch.InputError{Op: "publish", Err: err}
	}
	scheme, target, err := GossipAddr(rawAddr)
	if err != nil {
		return types.Ack{}, err
	}
	addr := canonicalGossipAddr(scheme, target)

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	log := p.log.With().Str("peer", addr).Stringer("kind", msg.Kind()).Logger()

	conn, err := p.dial(ctx, addr)
	if err != nil {
		return types.Ack{}, dialError(addr, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("closing gossip connection")
		}
	}()
	attempt.Connected()

	attempt.Sent()
	ack, err = conn.SendMessage(ctx, msg)
	if err != nil {
		return types.Ack{}, gossipError("send", addr, err)
	}
	if !ack.OK() {
		return ack, &dispatch.GossipRejectedError{Code: ack.Code, Reason: ack.Info}
	}
	log.Info().Msg("intent published")
	return ack, nil
}

// PublishFile loads an intent payload from path, timestamps it with
// the current time and publishes it.
func (p *IntentPublisher) PublishFile(ctx context.Context, addr, path string) (types.GossipMessage, types.Ack, error) {
	msg, err := LoadIntent(path, time.Now())
	if err != nil {
		return types.GossipMessage{}, types.Ack{}, err
	}
	ack, err := p.Publish(ctx, addr, msg)
	return msg, ack, err
}
