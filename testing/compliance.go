package dispatchtest

import (
	"bytes"
	"context"
	"testing"

	"github.com/blockberries/dispatch"
	"github.com/blockberries/dispatch/types"
)

// RunNodeCompliance runs a standard suite against a node
// implementation to verify the contract the dispatcher relies on.
//
// The factory function should return a fresh node for each test.
func RunNodeCompliance(t *testing.T, factory func() dispatch.Node) {
	t.Helper()

	ctx := context.Background()
	mustEncode := func(t *testing.T, tx types.Tx) []byte {
		t.Helper()
		b, err := types.EncodeTx(tx)
		if err != nil {
			t.Fatalf("EncodeTx: %v", err)
		}
		return b
	}

	t.Run("dry_run_is_repeatable", func(t *testing.T) {
		node := factory()
		txBytes := mustEncode(t, types.Tx{Code: []byte("compliance"), Data: []byte{0x01}})

		r1, err := node.Query(ctx, types.QueryRequest{Path: types.DryRunPath, Data: txBytes})
		if err != nil {
			t.Fatalf("first dry run: %v", err)
		}
		r2, err := node.Query(ctx, types.QueryRequest{Path: types.DryRunPath, Data: txBytes})
		if err != nil {
			t.Fatalf("second dry run: %v", err)
		}
		if r1.Code != r2.Code || !bytes.Equal(r1.Value, r2.Value) || r1.Height != r2.Height {
			t.Errorf("dry run not repeatable: %+v vs %+v", r1, r2)
		}
	})

	t.Run("dry_run_does_not_mutate", func(t *testing.T) {
		node := factory()
		txBytes := mustEncode(t, types.Tx{Code: []byte("compliance")})

		if _, err := node.Query(ctx, types.QueryRequest{Path: types.DryRunPath, Data: txBytes}); err != nil {
			t.Fatalf("dry run: %v", err)
		}
		st, err := node.TxStatus(ctx, types.TxHash(txBytes))
		if err != nil {
			t.Fatalf("TxStatus: %v", err)
		}
		if st.Included {
			t.Error("dry run must not include the transaction")
		}

		// The same bytes can still be committed afterwards.
		res, err := node.BroadcastTxCommit(ctx, txBytes)
		if err != nil {
			t.Fatalf("BroadcastTxCommit: %v", err)
		}
		if !res.Check.OK() {
			t.Errorf("commit after dry run rejected: %+v", res.Check)
		}
	})

	t.Run("commit_includes", func(t *testing.T) {
		node := factory()
		txBytes := mustEncode(t, types.Tx{Code: []byte("compliance"), Nonce: 1})

		res, err := node.BroadcastTxCommit(ctx, txBytes)
		if err != nil {
			t.Fatalf("BroadcastTxCommit: %v", err)
		}
		if !res.Accepted() {
			t.Fatalf("commit rejected: %+v", res)
		}
		st, err := node.TxStatus(ctx, types.TxHash(txBytes))
		if err != nil {
			t.Fatalf("TxStatus: %v", err)
		}
		if !st.Included || st.Height != res.Height {
			t.Errorf("status disagrees with commit: %+v vs height %d", st, res.Height)
		}
	})

	t.Run("duplicate_rejected", func(t *testing.T) {
		node := factory()
		txBytes := mustEncode(t, types.Tx{Code: []byte("compliance"), Nonce: 2})

		if _, err := node.BroadcastTxCommit(ctx, txBytes); err != nil {
			t.Fatalf("first broadcast: %v", err)
		}
		dup, err := node.BroadcastTxSync(ctx, txBytes)
		if err != nil {
			t.Fatalf("duplicate broadcast: %v", err)
		}
		if dup.Check.OK() {
			t.Error("duplicate broadcast should be rejected by the anti-replay cache")
		}
	})

	t.Run("nonce_differentiates", func(t *testing.T) {
		node := factory()
		a := mustEncode(t, types.Tx{Code: []byte("compliance"), Nonce: 10})
		b := mustEncode(t, types.Tx{Code: []byte("compliance"), Nonce: 11})

		for i, txBytes := range [][]byte{a, b} {
			res, err := node.BroadcastTxCommit(ctx, txBytes)
			if err != nil {
				t.Fatalf("broadcast %d: %v", i, err)
			}
			if !res.Accepted() {
				t.Errorf("broadcast %d rejected: %+v", i, res)
			}
		}
	})

	t.Run("unknown_tx_not_included", func(t *testing.T) {
		node := factory()
		st, err := node.TxStatus(ctx, types.TxHash([]byte("never sent")))
		if err != nil {
			t.Fatalf("TxStatus: %v", err)
		}
		if st.Included {
			t.Error("unknown hash reported as included")
		}
	})

	t.Run("malformed_tx_rejected", func(t *testing.T) {
		node := factory()
		res, err := node.Query(ctx, types.QueryRequest{Path: types.DryRunPath, Data: []byte{0xFF, 0xFF, 0xFF}})
		if err != nil {
			t.Fatalf("dry run: %v", err)
		}
		if res.OK() {
			t.Error("malformed tx should not simulate successfully")
		}
	})
}
