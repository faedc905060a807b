package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blockberries/dispatch"
	"github.com/blockberries/dispatch/types"
	"github.com/rs/zerolog"
)

var errEmptyTx = errors.New("transaction bytes are empty")

// Config tunes a TxDispatcher.
type Config struct {
	// BroadcastMode selects how Commit waits for inclusion.
	BroadcastMode types.BroadcastMode
	// PollInterval and PollTimeout drive the TxStatus loop used by
	// BroadcastSync.
	PollInterval time.Duration
	PollTimeout  time.Duration
	// Timeout bounds one Dispatch call. Zero means no deadline
	// beyond the caller's context.
	Timeout time.Duration
}

// DefaultConfig returns the dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		BroadcastMode: types.BroadcastSync,
		PollInterval:  500 * time.Millisecond,
		PollTimeout:   30 * time.Second,
	}
}

// Response is the raw node answer for one dispatch. Exactly one of
// Query (DryRun) or Broadcast (Commit) is set.
type Response struct {
	Mode      types.DispatchMode     `json:"mode"`
	Query     *types.QueryResult     `json:"query,omitempty"`
	Broadcast *types.BroadcastResult `json:"broadcast,omitempty"`
}

// TxDispatcher sends encoded transactions to nodes. It holds only
// configuration and is safe for concurrent use.
type TxDispatcher struct {
	dial NodeFactory
	cfg  Config
	log  zerolog.Logger
}

// NewTxDispatcher creates a dispatcher. A nil dial uses DialNode.
// Zero poll settings fall back to DefaultConfig.
func NewTxDispatcher(dial NodeFactory, cfg Config, log zerolog.Logger) *TxDispatcher {
	if dial == nil {
		dial = DialNode
	}
	def := DefaultConfig()
	if cfg.BroadcastMode == 0 {
		cfg.BroadcastMode = def.BroadcastMode
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = def.PollTimeout
	}
	return &TxDispatcher{dial: dial, cfg: cfg, log: log}
}

// Submit encodes tx and dispatches it. Encoding failures are
// *dispatch.InputError.
func (d *TxDispatcher) Submit(ctx context.Context, addr string, tx types.Tx, mode types.DispatchMode) (Response, error) {
	return d.run(ctx, addr, mode, func() ([]byte, error) {
		b, err := types.EncodeTx(tx)
		if err != nil {
			return nil, &dispatch.InputError{Op: "encode tx", Err: err}
		}
		return b, nil
	})
}

// Dispatch sends already-encoded transaction bytes to the node at
// addr in the given mode.
//
// DryRun issues one Query on types.DryRunPath. Commit issues exactly
// one broadcast; under BroadcastSync it then polls TxStatus until the
// transaction is included or PollTimeout passes. A non-zero result
// code is returned as *dispatch.NodeRejectedError together with the
// raw Response.
func (d *TxDispatcher) Dispatch(ctx context.Context, addr string, txBytes []byte, mode types.DispatchMode) (Response, error) {
	return d.run(ctx, addr, mode, func() ([]byte, error) {
		if len(txBytes) == 0 {
			return nil, &dispatch.InputError{Op: "dispatch", Err: errEmptyTx}
		}
		return txBytes, nil
	})
}

func (d *TxDispatcher) run(ctx context.Context, rawAddr string, mode types.DispatchMode, encode func() ([]byte, error)) (resp Response, err error) {
	attempt := NewAttempt()
	attempt.BeginEncoding()
	defer func() {
		if err != nil {
			attempt.Fail()
		} else {
			attempt.Complete()
		}
	}()

	if !mode.Valid() {
		return Response{}, &dispatch.InputError{Op: "dispatch", Err: fmt.Errorf("invalid dispatch mode %s", mode)}
	}
	txBytes, err := encode()
	if err != nil {
		return Response{}, err
	}
	addr, err := NodeAddr(rawAddr)
	if err != nil {
		return Response{}, err
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	hash := types.TxHash(txBytes)
	log := d.log.With().Str("node", addr).Stringer("mode", mode).Stringer("hash", hash).Logger()

	conn, err := d.dial(ctx, addr)
	if err != nil {
		return Response{}, dialError(addr, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("closing node connection")
		}
	}()
	attempt.Connected()

	resp = Response{Mode: mode}
	attempt.Sent()
	switch mode {
	case types.DryRun:
		log.Debug().Msg("simulating tx")
		qr, err := conn.Query(ctx, types.QueryRequest{Path: types.DryRunPath, Data: txBytes})
		if err != nil {
			return Response{}, nodeError("dry run", addr, err)
		}
		resp.Query = &qr
		if !qr.OK() {
			return resp, &dispatch.NodeRejectedError{Op: "dry run", Code: qr.Code, Reason: reason(qr.Info, qr.Log)}
		}
	case types.Commit:
		br, err := d.broadcast(ctx, log, conn, addr, txBytes, hash)
		if br != nil {
			resp.Broadcast = br
		}
		if err != nil {
			return resp, err
		}
	}
	log.Info().Msg("tx dispatched")
	return resp, nil
}

// broadcast sends txBytes once. The returned result is non-nil
// whenever the node answered the broadcast, even if the transaction
// was later rejected or inclusion could not be confirmed.
func (d *TxDispatcher) broadcast(ctx context.Context, log zerolog.Logger, conn dispatch.Node, addr string, txBytes []byte, hash types.Hash) (*types.BroadcastResult, error) {
	var (
		br  types.BroadcastResult
		err error
	)
	switch d.cfg.BroadcastMode {
	case types.BroadcastCommit:
		log.Debug().Msg("broadcasting tx (commit)")
		br, err = conn.BroadcastTxCommit(ctx, txBytes)
	default:
		log.Debug().Msg("broadcasting tx (sync)")
		br, err = conn.BroadcastTxSync(ctx, txBytes)
	}
	if err != nil {
		return nil, nodeError("broadcast", addr, err)
	}
	if br.Hash.IsZero() {
		br.Hash = hash
	}
	if !br.Check.OK() {
		return &br, &dispatch.NodeRejectedError{Op: "check", Code: br.Check.Code, Reason: br.Check.Reason()}
	}

	if d.cfg.BroadcastMode != types.BroadcastCommit {
		st, err := d.awaitInclusion(ctx, log, conn, addr, br.Hash)
		if err != nil {
			return &br, err
		}
		br.Height = st.Height
		br.Deliver = st.Result
	}

	if !br.Deliver.OK() {
		return &br, &dispatch.NodeRejectedError{Op: "deliver", Code: br.Deliver.Code, Reason: br.Deliver.Reason()}
	}
	return &br, nil
}

// awaitInclusion polls TxStatus until the transaction is included.
// Transport failures during polling are retried; the status call is
// read-only.
func (d *TxDispatcher) awaitInclusion(ctx context.Context, log zerolog.Logger, conn dispatch.Node, addr string, hash types.Hash) (types.TxStatus, error) {
	pctx, cancel := context.WithTimeout(ctx, d.cfg.PollTimeout)
	defer cancel()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		st, err := conn.TxStatus(pctx, hash)
		switch {
		case err == nil && st.Included:
			log.Debug().Uint64("height", st.Height).Msg("tx included")
			return st, nil
		case err != nil:
			err = nodeError("tx status", addr, err)
			if _, ok := dispatch.IsTransport(err); !ok {
				return types.TxStatus{}, err
			}
			lastErr = err
			log.Debug().Err(err).Msg("tx status poll failed")
		}

		select {
		case <-pctx.Done():
			cause := pctx.Err()
			if lastErr != nil && ctx.Err() == nil {
				cause = fmt.Errorf("%w (last poll error: %v)", cause, lastErr)
			}
			return types.TxStatus{}, &dispatch.TransportError{Op: "await inclusion", Addr: addr, Err: cause}
		case <-ticker.C:
		}
	}
}

func reason(info, log string) string {
	if info != "" {
		return info
	}
	return log
}
