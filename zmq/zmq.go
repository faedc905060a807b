// Package zmq carries gossip messages over ZeroMQ. A client sends one
// cramberry-encoded GossipMessage per REQ frame and reads the peer's
// Ack from the REP frame.
package zmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/blockberries/dispatch"
	"github.com/blockberries/dispatch/types"
	"github.com/go-zeromq/zmq4"
)

// Compile-time interface check.
var _ dispatch.GossipConn = (*GossipClient)(nil)

// ErrSocketBroken is returned after a request was abandoned
// mid-exchange. A REQ socket cannot send again until it has read the
// reply, so the client must be closed and redialed.
var ErrSocketBroken = errors.New("zmq: request abandoned, socket out of sequence")

// GossipClient implements dispatch.GossipConn over a REQ socket.
type GossipClient struct {
	mu     sync.Mutex
	sock   zmq4.Socket
	cancel context.CancelFunc
	addr   string
	broken bool
}

// DialGossip connects a REQ socket to the responder at addr
// (host:port). All errors are *dispatch.TransportError.
func DialGossip(ctx context.Context, addr string) (*GossipClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, &dispatch.TransportError{Op: "dial", Addr: addr, Err: err}
	}
	sctx, cancel := context.WithCancel(context.Background())
	sock := zmq4.NewReq(sctx)

	dialed := make(chan error, 1)
	go func() { dialed <- sock.Dial(endpoint(addr)) }()

	select {
	case err := <-dialed:
		if err != nil {
			cancel()
			_ = sock.Close()
			return nil, &dispatch.TransportError{Op: "dial", Addr: addr, Err: err}
		}
	case <-ctx.Done():
		cancel()
		_ = sock.Close()
		return nil, &dispatch.TransportError{Op: "dial", Addr: addr, Err: ctx.Err()}
	}
	return &GossipClient{sock: sock, cancel: cancel, addr: addr}, nil
}

// Addr returns the address the client was dialed with.
func (c *GossipClient) Addr() string { return c.addr }

func (c *GossipClient) SendMessage(ctx context.Context, msg types.GossipMessage) (types.Ack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken {
		return types.Ack{}, &dispatch.TransportError{Op: "send", Addr: c.addr, Err: ErrSocketBroken}
	}
	data, err := types.EncodeGossipMessage(msg)
	if err != nil {
		return types.Ack{}, &dispatch.TransportError{Op: "encode", Addr: c.addr, Err: err}
	}

	type reply struct {
		msg zmq4.Msg
		err error
	}
	done := make(chan reply, 1)
	go func() {
		if err := c.sock.Send(zmq4.NewMsg(data)); err != nil {
			done <- reply{err: fmt.Errorf("send: %w", err)}
			return
		}
		m, err := c.sock.Recv()
		if err != nil {
			err = fmt.Errorf("recv: %w", err)
		}
		done <- reply{msg: m, err: err}
	}()

	var r reply
	select {
	case r = <-done:
	case <-ctx.Done():
		c.broken = true
		return types.Ack{}, &dispatch.TransportError{Op: "send", Addr: c.addr, Err: ctx.Err()}
	}
	if r.err != nil {
		c.broken = true
		return types.Ack{}, &dispatch.TransportError{Op: "send", Addr: c.addr, Err: r.err}
	}

	ack, err := decodeAck(r.msg.Bytes())
	if err != nil {
		return types.Ack{}, &dispatch.TransportError{Op: "decode ack", Addr: c.addr, Err: err}
	}
	return ack, nil
}

func (c *GossipClient) Close() error {
	c.cancel()
	return c.sock.Close()
}

func endpoint(addr string) string {
	return "tcp://" + addr
}

func encodeAck(ack types.Ack) ([]byte, error) {
	return cramberry.Marshal(&ack)
}

func decodeAck(data []byte) (types.Ack, error) {
	var ack types.Ack
	if err := cramberry.Unmarshal(data, &ack); err != nil {
		return types.Ack{}, err
	}
	return ack, nil
}
