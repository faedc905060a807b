// Package devnode implements an in-memory development node that
// honours the node contract the dispatcher relies on: dry-run
// queries never mutate state, broadcasts pass through an anti-replay
// cache, and inclusion can be polled by transaction hash.
//
// It does not run consensus. Blocks are produced on demand by
// ProduceBlock (or by BroadcastTxCommit, which produces one
// immediately). Executing a transaction records its data under the
// hash of its code.
package devnode

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/blockberries/dispatch"
	"github.com/blockberries/dispatch/types"
)

// Compile-time interface check.
var _ dispatch.Node = (*App)(nil)

const (
	// StatePath reads the value stored under a 32-byte code hash.
	StatePath types.QueryPath = "/state"

	// gasPerByte is the flat execution cost charged per byte of code and data.
	gasPerByte = 10
)

// Validator decides whether a decoded transaction may execute.
// A non-nil error rejects the transaction with its message as the reason.
type Validator func(tx types.Tx) error

// Option configures an App.
type Option func(*App)

// WithValidator installs an execution-time check.
func WithValidator(v Validator) Option {
	return func(app *App) { app.validate = v }
}

type inclusion struct {
	height uint64
	result types.TxResult
}

// App is an in-memory node.
type App struct {
	mu       sync.RWMutex
	height   uint64
	state    map[types.Hash][]byte
	seen     map[types.Hash]struct{}
	included map[types.Hash]inclusion
	pending  [][]byte
	validate Validator
}

// New creates a node at height 0 with empty state.
func New(opts ...Option) *App {
	app := &App{
		state:    make(map[types.Hash][]byte),
		seen:     make(map[types.Hash]struct{}),
		included: make(map[types.Hash]inclusion),
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// ---------------------------------------------------------------------------
// Node
// ---------------------------------------------------------------------------

func (app *App) Query(_ context.Context, req types.QueryRequest) (types.QueryResult, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()

	switch req.Path {
	case types.DryRunPath:
		tx, err := types.DecodeTx(req.Data)
		if err != nil {
			return types.QueryResult{Code: types.CodeMalformed, Info: err.Error(), Height: app.height}, nil
		}
		res := app.execute(tx, nil)
		return types.QueryResult{
			Code:   res.Code,
			Key:    codeKey(tx.Code),
			Value:  res.Data,
			Height: app.height,
			Info:   res.Info,
			Log:    res.Log,
			Events: res.Events,
		}, nil
	case StatePath:
		var key types.Hash
		if len(req.Data) != len(key) {
			return types.QueryResult{Code: types.CodeMalformed, Info: "state key must be 32 bytes", Height: app.height}, nil
		}
		copy(key[:], req.Data)
		return types.QueryResult{Key: req.Data, Value: app.state[key], Height: app.height}, nil
	default:
		return types.QueryResult{
			Code:   types.CodeUnknownPath,
			Info:   fmt.Sprintf("unknown query path %q", req.Path),
			Height: app.height,
		}, nil
	}
}

func (app *App) BroadcastTxSync(_ context.Context, txBytes []byte) (types.BroadcastResult, error) {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.admit(txBytes), nil
}

func (app *App) BroadcastTxCommit(_ context.Context, txBytes []byte) (types.BroadcastResult, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	res := app.admit(txBytes)
	if !res.Check.OK() {
		return res, nil
	}
	app.produceLocked()
	inc := app.included[res.Hash]
	res.Height = inc.height
	res.Deliver = inc.result
	return res, nil
}

func (app *App) TxStatus(_ context.Context, hash types.Hash) (types.TxStatus, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()

	inc, ok := app.included[hash]
	if !ok {
		return types.TxStatus{Hash: hash}, nil
	}
	return types.TxStatus{Hash: hash, Included: true, Height: inc.height, Result: inc.result}, nil
}

// ---------------------------------------------------------------------------
// Block production
// ---------------------------------------------------------------------------

// ProduceBlock includes every pending transaction in a new block and
// returns the new height. An empty mempool still advances the height.
func (app *App) ProduceBlock() uint64 {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.produceLocked()
}

func (app *App) produceLocked() uint64 {
	app.height++
	for _, txBytes := range app.pending {
		hash := types.TxHash(txBytes)
		tx, err := types.DecodeTx(txBytes)
		if err != nil {
			// admit already decoded it; keep the cache consistent anyway.
			app.included[hash] = inclusion{height: app.height, result: types.TxResult{Code: types.CodeMalformed, Info: err.Error()}}
			continue
		}
		res := app.execute(tx, app.state)
		app.included[hash] = inclusion{height: app.height, result: res}
	}
	app.pending = nil
	return app.height
}

// Height returns the last produced height.
func (app *App) Height() uint64 {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.height
}

// Pending returns the number of admitted but not yet included transactions.
func (app *App) Pending() int {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return len(app.pending)
}

// StateHash returns a deterministic fingerprint of the executed state.
func (app *App) StateHash() types.Hash {
	app.mu.RLock()
	defer app.mu.RUnlock()

	keys := make([]types.Hash, 0, len(app.state))
	for k := range app.state {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return string(keys[i][:]) < string(keys[j][:])
	})
	h := sha256.New()
	var height [8]byte
	binary.BigEndian.PutUint64(height[:], app.height)
	h.Write(height[:])
	for _, k := range keys {
		h.Write(k[:])
		h.Write(app.state[k])
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// ---------------------------------------------------------------------------
// Internal
// ---------------------------------------------------------------------------

// admit runs the mempool gate. Caller holds the write lock.
func (app *App) admit(txBytes []byte) types.BroadcastResult {
	hash := types.TxHash(txBytes)
	res := types.BroadcastResult{Hash: hash}

	if _, dup := app.seen[hash]; dup {
		res.Check = types.TxResult{Code: types.CodeDuplicate, Info: "tx already exists in cache"}
		return res
	}
	tx, err := types.DecodeTx(txBytes)
	if err != nil {
		res.Check = types.TxResult{Code: types.CodeMalformed, Info: err.Error()}
		return res
	}
	if app.validate != nil {
		if err := app.validate(tx); err != nil {
			res.Check = types.TxResult{Code: types.CodeRejected, Info: err.Error()}
			return res
		}
	}

	app.seen[hash] = struct{}{}
	app.pending = append(app.pending, txBytes)
	res.Check = types.TxResult{Code: types.CodeOK, GasUsed: gasPerByte * uint64(len(txBytes))}
	return res
}

// execute runs tx. When state is nil the run is a simulation and
// nothing is written.
func (app *App) execute(tx types.Tx, state map[types.Hash][]byte) types.TxResult {
	if app.validate != nil {
		if err := app.validate(tx); err != nil {
			return types.TxResult{Code: types.CodeRejected, Info: err.Error()}
		}
	}
	key := types.Hash(sha256.Sum256(tx.Code))
	if state != nil {
		state[key] = append([]byte(nil), tx.Data...)
	}
	return types.TxResult{
		Code:    types.CodeOK,
		Data:    key[:],
		Log:     fmt.Sprintf("stored %d bytes", len(tx.Data)),
		GasUsed: gasPerByte * uint64(len(tx.Code)+len(tx.Data)),
		Events: []types.Event{{
			Kind: "exec",
			Attributes: []types.EventAttribute{
				{Key: "code_hash", Value: key.String(), Index: true},
				{Key: "nonce", Value: fmt.Sprintf("%d", tx.Nonce)},
			},
		}},
	}
}

func codeKey(code []byte) []byte {
	key := sha256.Sum256(code)
	return key[:]
}
