package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/blockberries/dispatch"
	dispatchgrpc "github.com/blockberries/dispatch/grpc"
	"github.com/blockberries/dispatch/zmq"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// NodeFactory opens a connection to the node at addr (host:port).
type NodeFactory func(ctx context.Context, addr string) (dispatch.NodeConn, error)

// GossipFactory opens a connection to the gossip peer at addr, in
// the canonical form produced by GossipAddr (zmq://host:port or
// host:port).
type GossipFactory func(ctx context.Context, addr string) (dispatch.GossipConn, error)

// DialNode is the default NodeFactory: plaintext gRPC.
func DialNode(ctx context.Context, addr string) (dispatch.NodeConn, error) {
	c, err := dispatchgrpc.DialNode(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DialGossip is the default GossipFactory. zmq:// addresses use a
// ZeroMQ REQ socket, everything else plaintext gRPC.
func DialGossip(ctx context.Context, addr string) (dispatch.GossipConn, error) {
	scheme, target, err := GossipAddr(addr)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case SchemeZMQ:
		c, err := zmq.DialGossip(ctx, target)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		c, err := dispatchgrpc.DialGossip(ctx, target,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func canonicalGossipAddr(scheme Scheme, target string) string {
	if scheme == SchemeZMQ {
		return "zmq://" + target
	}
	return target
}

// transient reports whether err means the exchange broke down rather
// than the peer deciding against the request.
func transient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled,
		codes.Internal, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

// dialError wraps a factory failure. Anything short of a typed error
// means the peer was not reached.
func dialError(addr string, err error) error {
	if typed(err) {
		return err
	}
	return &dispatch.TransportError{Op: "dial", Addr: addr, Err: err}
}

// nodeError maps a failed node call to the error taxonomy. Errors
// that are already typed pass through.
func nodeError(op, addr string, err error) error {
	if typed(err) {
		return err
	}
	if transient(err) {
		return &dispatch.TransportError{Op: op, Addr: addr, Err: err}
	}
	if st, ok := status.FromError(err); ok {
		return &dispatch.NodeRejectedError{Op: op, Code: uint32(st.Code()), Reason: st.Message()}
	}
	return &dispatch.NodeRejectedError{Op: op, Reason: err.Error()}
}

// gossipError is nodeError for gossip peers.
func gossipError(op, addr string, err error) error {
	if typed(err) {
		return err
	}
	if transient(err) {
		return &dispatch.TransportError{Op: op, Addr: addr, Err: err}
	}
	if st, ok := status.FromError(err); ok {
		return &dispatch.GossipRejectedError{Code: uint32(st.Code()), Reason: st.Message()}
	}
	return &dispatch.GossipRejectedError{Reason: fmt.Sprintf("%s: %v", op, err)}
}

func typed(err error) bool {
	if _, ok := dispatch.IsInput(err); ok {
		return true
	}
	if _, ok := dispatch.IsTransport(err); ok {
		return true
	}
	if _, ok := dispatch.IsNodeRejected(err); ok {
		return true
	}
	_, ok := dispatch.IsGossipRejected(err)
	return ok
}
