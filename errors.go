package dispatch

import (
	"errors"
	"fmt"
)

// InputError reports a problem with caller-supplied input: a missing
// file, invalid hex, an empty transaction. It is always raised before
// any network call is attempted.
type InputError struct {
	Op   string
	Path string
	Err  error
}

func (e *InputError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("input: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("input: %s: %v", e.Op, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// TransportError reports that a peer could not be reached or that the
// exchange broke down before a well-formed answer arrived. The request
// may or may not have been delivered.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NodeRejectedError reports that the node processed the request and
// refused it. Only this error means the transaction itself is invalid.
type NodeRejectedError struct {
	Op     string
	Code   uint32
	Reason string
}

func (e *NodeRejectedError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("node rejected %s (code %d): %s", e.Op, e.Code, e.Reason)
	}
	return fmt.Sprintf("node rejected %s: %s", e.Op, e.Reason)
}

// GossipRejectedError reports a negative acknowledgement from a
// gossip peer.
type GossipRejectedError struct {
	Code   uint32
	Reason string
}

func (e *GossipRejectedError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("gossip rejected (code %d): %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("gossip rejected: %s", e.Reason)
}

// IsInput checks whether an error is an InputError and returns it.
func IsInput(err error) (*InputError, bool) {
	var e *InputError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsTransport checks whether an error is a TransportError and returns it.
func IsTransport(err error) (*TransportError, bool) {
	var e *TransportError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsNodeRejected checks whether an error is a NodeRejectedError and returns it.
func IsNodeRejected(err error) (*NodeRejectedError, bool) {
	var e *NodeRejectedError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsGossipRejected checks whether an error is a GossipRejectedError and returns it.
func IsGossipRejected(err error) (*GossipRejectedError, bool) {
	var e *GossipRejectedError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
