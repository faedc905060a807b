// Package types defines the data types exchanged between the
// dispatch client, consensus nodes and gossip peers.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. Transport concerns
// (gRPC codec registration, ZeroMQ framing) are handled in the
// transport packages.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hash is a 32-byte cryptographic hash.
type Hash [32]byte

// String returns the upper-case hex form used by node RPCs.
func (h Hash) String() string {
	return fmt.Sprintf("%X", h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == Hash{} }

// MarshalText encodes the hash as hex so that JSON output stays readable.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hex hash.
func (h *Hash) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	if len(b) != len(h) {
		return fmt.Errorf("hash: expected %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return nil
}

// TxHash returns the hash a node uses to identify an encoded
// transaction in its mempool and anti-replay cache.
func TxHash(txBytes []byte) Hash {
	return Hash(sha256.Sum256(txBytes))
}

// QueryPath is a structured key for node queries
// (e.g., "dry_run_tx").
type QueryPath string

// DryRunPath is the reserved query path that simulates a
// transaction against committed state without persisting anything.
const DryRunPath QueryPath = "dry_run_tx"
