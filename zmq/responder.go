package zmq

import (
	"context"
	"fmt"
	"net"

	"github.com/blockberries/dispatch"
	"github.com/blockberries/dispatch/types"
	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog"
)

// Ack codes produced by the responder itself rather than the peer.
const (
	// CodeMalformedEnvelope is acked for frames that do not decode to
	// a valid GossipMessage. The peer never sees them.
	CodeMalformedEnvelope uint32 = 100
	// CodePeerError is acked when the peer returned an error instead
	// of an Ack.
	CodePeerError uint32 = 101
)

// ResponderOption configures a GossipResponder.
type ResponderOption func(*GossipResponder)

// WithLogger sets the responder's logger. The default discards.
func WithLogger(log zerolog.Logger) ResponderOption {
	return func(r *GossipResponder) { r.log = log }
}

// GossipResponder serves a dispatch.Gossip peer on a REP socket.
type GossipResponder struct {
	peer   dispatch.Gossip
	sock   zmq4.Socket
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

// Listen binds a REP socket on addr (host:port, port 0 picks a free
// one). The socket lives until Close or until ctx is done.
func Listen(ctx context.Context, addr string, peer dispatch.Gossip, opts ...ResponderOption) (*GossipResponder, error) {
	sctx, cancel := context.WithCancel(ctx)
	r := &GossipResponder{
		peer:   peer,
		sock:   zmq4.NewRep(sctx),
		ctx:    sctx,
		cancel: cancel,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.sock.Listen(endpoint(addr)); err != nil {
		cancel()
		_ = r.sock.Close()
		return nil, fmt.Errorf("zmq listen %s: %w", addr, err)
	}
	return r, nil
}

// Addr returns the bound address.
func (r *GossipResponder) Addr() net.Addr {
	return r.sock.Addr()
}

// Serve answers requests until the responder is closed. It returns
// nil on a clean shutdown.
func (r *GossipResponder) Serve() error {
	for {
		req, err := r.sock.Recv()
		if err != nil {
			if r.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("zmq recv: %w", err)
		}

		ack := r.handle(req.Bytes())
		data, err := encodeAck(ack)
		if err != nil {
			return fmt.Errorf("zmq encode ack: %w", err)
		}
		if err := r.sock.Send(zmq4.NewMsg(data)); err != nil {
			if r.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("zmq send: %w", err)
		}
	}
}

func (r *GossipResponder) handle(frame []byte) types.Ack {
	msg, err := types.DecodeGossipMessage(frame)
	if err != nil {
		r.log.Warn().Err(err).Int("bytes", len(frame)).Msg("dropping malformed gossip frame")
		return types.Ack{Code: CodeMalformedEnvelope, Info: err.Error()}
	}
	ack, err := r.peer.SendMessage(r.ctx, msg)
	if err != nil {
		r.log.Error().Err(err).Stringer("kind", msg.Kind()).Msg("gossip peer failed")
		return types.Ack{Code: CodePeerError, Info: err.Error()}
	}
	r.log.Debug().Stringer("kind", msg.Kind()).Uint32("code", ack.Code).Msg("gossip message handled")
	return ack
}

// Close stops Serve and releases the socket.
func (r *GossipResponder) Close() error {
	r.cancel()
	return r.sock.Close()
}
