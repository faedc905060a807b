package types

import (
	"errors"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// ErrEmptyCode is returned when a transaction carries no code.
var ErrEmptyCode = errors.New("tx code is empty")

// Tx is a unit of executable code plus optional input data
// submitted to a node for execution.
type Tx struct {
	// Executable payload. Required.
	Code []byte `cramberry:"1" json:"code"`
	// Optional auxiliary input. Nil = absent. An empty slice carries
	// no data and is encoded and decoded as nil.
	Data []byte `cramberry:"2" json:"data,omitempty"`
	// Caller-supplied differentiator so that resubmitting the same
	// code and data is not rejected by the node's anti-replay cache.
	// 0 = none supplied.
	Nonce uint64 `cramberry:"3" json:"nonce,omitempty"`
}

// Validate checks the invariants every encodable Tx must hold.
func (tx Tx) Validate() error {
	if len(tx.Code) == 0 {
		return ErrEmptyCode
	}
	return nil
}

// EncodeTx produces the canonical binary encoding of tx.
//
// The encoding is deterministic: equal transactions always produce
// equal bytes. An empty Data slice is encoded as absent.
func EncodeTx(tx Tx) ([]byte, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if len(tx.Data) == 0 {
		tx.Data = nil
	}
	data, err := cramberry.Marshal(&tx)
	if err != nil {
		return nil, fmt.Errorf("encode tx: %w", err)
	}
	return data, nil
}

// DecodeTx is the inverse of EncodeTx.
func DecodeTx(data []byte) (Tx, error) {
	var tx Tx
	if err := cramberry.Unmarshal(data, &tx); err != nil {
		return Tx{}, fmt.Errorf("decode tx: %w", err)
	}
	if err := tx.Validate(); err != nil {
		return Tx{}, fmt.Errorf("decode tx: %w", err)
	}
	if len(tx.Data) == 0 {
		tx.Data = nil
	}
	return tx, nil
}
