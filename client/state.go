package client

import (
	"fmt"
	"sync/atomic"
)

// Phase is a step in the lifetime of a single dispatch or publish.
type Phase uint32

const (
	// PhaseIdle: created, nothing done yet.
	PhaseIdle Phase = iota
	// PhaseEncoding: input is being loaded and encoded.
	PhaseEncoding
	// PhaseConnected: a connection to the peer is open.
	PhaseConnected
	// PhaseAwaitingResponse: the request is on the wire.
	PhaseAwaitingResponse
	// PhaseCompleted: a response arrived and was surfaced. Terminal.
	PhaseCompleted
	// PhaseFailed: the attempt ended with an error. Terminal.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseEncoding:
		return "Encoding"
	case PhaseConnected:
		return "Connected"
	case PhaseAwaitingResponse:
		return "AwaitingResponse"
	case PhaseCompleted:
		return "Completed"
	case PhaseFailed:
		return "Failed"
	default:
		return fmt.Sprintf("unknown(%d)", p)
	}
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Attempt enforces the ordering of one invocation:
// Idle → Encoding → Connected → AwaitingResponse → Completed,
// with Failed reachable from any non-terminal phase.
//
// An Attempt is single use. Misordered calls are programming
// errors and panic.
type Attempt struct {
	phase atomic.Uint32
}

// NewAttempt creates an attempt in the Idle phase.
func NewAttempt() *Attempt {
	return &Attempt{}
}

// Phase returns the current phase.
func (a *Attempt) Phase() Phase {
	return Phase(a.phase.Load())
}

// BeginEncoding transitions Idle → Encoding.
func (a *Attempt) BeginEncoding() { a.advance(PhaseIdle, PhaseEncoding) }

// Connected transitions Encoding → Connected.
func (a *Attempt) Connected() { a.advance(PhaseEncoding, PhaseConnected) }

// Sent transitions Connected → AwaitingResponse.
func (a *Attempt) Sent() { a.advance(PhaseConnected, PhaseAwaitingResponse) }

// Complete transitions AwaitingResponse → Completed.
func (a *Attempt) Complete() { a.advance(PhaseAwaitingResponse, PhaseCompleted) }

// Fail moves any non-terminal phase to Failed.
// Panics if the attempt already ended.
func (a *Attempt) Fail() {
	for {
		cur := Phase(a.phase.Load())
		if cur.Terminal() {
			panic(fmt.Sprintf("dispatch/client: Fail called in terminal phase %s", cur))
		}
		if a.phase.CompareAndSwap(uint32(cur), uint32(PhaseFailed)) {
			return
		}
	}
}

func (a *Attempt) advance(from, to Phase) {
	if !a.phase.CompareAndSwap(uint32(from), uint32(to)) {
		panic(fmt.Sprintf("dispatch/client: transition to %s in phase %s (expected %s)",
			to, Phase(a.phase.Load()), from))
	}
}
