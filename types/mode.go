package types

import (
	"fmt"
	"strings"
)

// DispatchMode selects how a transaction is sent to a node.
// Exactly one mode is used per dispatch.
type DispatchMode uint8

const (
	// DryRun simulates the transaction with a read-only query.
	// It never changes node state and may be repeated freely.
	DryRun DispatchMode = 1
	// Commit broadcasts the transaction and waits for the
	// execution result. It is sent at most once per dispatch.
	Commit DispatchMode = 2
)

func (m DispatchMode) String() string {
	switch m {
	case DryRun:
		return "dry-run"
	case Commit:
		return "commit"
	default:
		return fmt.Sprintf("unknown(%d)", m)
	}
}

// Valid reports whether m is one of the defined modes.
func (m DispatchMode) Valid() bool {
	return m == DryRun || m == Commit
}

// MarshalText implements encoding.TextMarshaler.
func (m DispatchMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// BroadcastMode selects how a Commit dispatch waits for inclusion.
type BroadcastMode uint8

const (
	// BroadcastSync submits the transaction, returns after mempool
	// admission, and then polls the node for inclusion.
	BroadcastSync BroadcastMode = 1
	// BroadcastCommit submits the transaction in a single call that
	// blocks until the node has included and executed it.
	BroadcastCommit BroadcastMode = 2
)

func (m BroadcastMode) String() string {
	switch m {
	case BroadcastSync:
		return "sync"
	case BroadcastCommit:
		return "commit"
	default:
		return fmt.Sprintf("unknown(%d)", m)
	}
}

// ParseBroadcastMode parses the config form of a BroadcastMode.
func ParseBroadcastMode(raw string) (BroadcastMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sync", "":
		return BroadcastSync, nil
	case "commit", "blocking":
		return BroadcastCommit, nil
	default:
		return 0, fmt.Errorf("unknown broadcast mode %q", raw)
	}
}
