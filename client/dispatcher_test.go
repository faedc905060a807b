package client_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blockberries/dispatch"
	"github.com/blockberries/dispatch/client"
	dispatchtest "github.com/blockberries/dispatch/testing"
	"github.com/blockberries/dispatch/types"
	"github.com/rs/zerolog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// nodeFactory returns a factory that always hands out node and
// counts how often it was asked.
func nodeFactory(node dispatch.NodeConn, calls *atomic.Int64) client.NodeFactory {
	return func(context.Context, string) (dispatch.NodeConn, error) {
		calls.Add(1)
		return node, nil
	}
}

func fastConfig(mode types.BroadcastMode) client.Config {
	return client.Config{
		BroadcastMode: mode,
		PollInterval:  time.Millisecond,
		PollTimeout:   time.Second,
	}
}

func encodeTx(t *testing.T, tx types.Tx) []byte {
	t.Helper()
	b, err := types.EncodeTx(tx)
	if err != nil {
		t.Fatalf("EncodeTx: %v", err)
	}
	return b
}

func TestDispatch_DryRun(t *testing.T) {
	txBytes := encodeTx(t, types.Tx{Code: []byte("code"), Data: []byte{0x01}})

	var gotReq types.QueryRequest
	mock := &dispatchtest.MockNode{
		QueryFn: func(_ context.Context, req types.QueryRequest) (types.QueryResult, error) {
			gotReq = req
			return types.QueryResult{Code: types.CodeOK, Value: []byte("sim"), Height: 4}, nil
		},
	}
	var dials atomic.Int64
	d := client.NewTxDispatcher(nodeFactory(mock, &dials), client.DefaultConfig(), zerolog.Nop())

	resp, err := d.Dispatch(context.Background(), "", txBytes, types.DryRun)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if gotReq.Path != types.DryRunPath || string(gotReq.Data) != string(txBytes) {
		t.Fatalf("unexpected query: %+v", gotReq)
	}
	if resp.Mode != types.DryRun || resp.Query == nil || resp.Broadcast != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if string(resp.Query.Value) != "sim" {
		t.Errorf("raw result not surfaced: %+v", resp.Query)
	}
	if mock.Broadcasts() != 0 {
		t.Fatalf("dry run must not broadcast, got %d", mock.Broadcasts())
	}
	if dials.Load() != 1 || mock.CloseCalls.Load() != 1 {
		t.Errorf("expected one dial and one close, got %d/%d", dials.Load(), mock.CloseCalls.Load())
	}
}

func TestDispatch_DryRunRejected(t *testing.T) {
	mock := &dispatchtest.MockNode{
		QueryFn: func(context.Context, types.QueryRequest) (types.QueryResult, error) {
			return types.QueryResult{Code: 5, Log: "insufficient funds"}, nil
		},
	}
	var dials atomic.Int64
	d := client.NewTxDispatcher(nodeFactory(mock, &dials), client.DefaultConfig(), zerolog.Nop())

	resp, err := d.Dispatch(context.Background(), "", []byte{0x01}, types.DryRun)
	re, ok := dispatch.IsNodeRejected(err)
	if !ok {
		t.Fatalf("expected NodeRejectedError, got %v", err)
	}
	if re.Code != 5 || re.Reason != "insufficient funds" {
		t.Errorf("unexpected rejection: %+v", re)
	}
	if resp.Query == nil {
		t.Error("raw result should accompany the rejection")
	}
}

func TestDispatch_CommitSingleShot(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "connection reset")
	mock := &dispatchtest.MockNode{
		BroadcastTxCommitFn: func(context.Context, []byte) (types.BroadcastResult, error) {
			return types.BroadcastResult{}, unavailable
		},
	}
	var dials atomic.Int64
	d := client.NewTxDispatcher(nodeFactory(mock, &dials), fastConfig(types.BroadcastCommit), zerolog.Nop())

	_, err := d.Dispatch(context.Background(), "", []byte{0x01}, types.Commit)
	te, ok := dispatch.IsTransport(err)
	if !ok {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Op != "broadcast" {
		t.Errorf("op = %q", te.Op)
	}
	if !errors.Is(err, unavailable) {
		t.Errorf("cause lost: %v", err)
	}
	if mock.Broadcasts() != 1 || dials.Load() != 1 {
		t.Fatalf("commit must be sent exactly once, got %d broadcasts over %d dials", mock.Broadcasts(), dials.Load())
	}
}

func TestDispatch_CommitBlocking(t *testing.T) {
	mock := &dispatchtest.MockNode{}
	var dials atomic.Int64
	d := client.NewTxDispatcher(nodeFactory(mock, &dials), fastConfig(types.BroadcastCommit), zerolog.Nop())

	txBytes := []byte{0x0A, 0x01}
	resp, err := d.Dispatch(context.Background(), "", txBytes, types.Commit)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Broadcast == nil || resp.Broadcast.Hash != types.TxHash(txBytes) {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if mock.BroadcastTxCommitCalls.Load() != 1 || mock.TxStatusCalls.Load() != 0 {
		t.Fatalf("blocking commit should not poll: commit=%d status=%d",
			mock.BroadcastTxCommitCalls.Load(), mock.TxStatusCalls.Load())
	}
}

func TestDispatch_CommitSyncPollsUntilIncluded(t *testing.T) {
	var polls atomic.Int64
	mock := &dispatchtest.MockNode{
		TxStatusFn: func(_ context.Context, hash types.Hash) (types.TxStatus, error) {
			switch polls.Add(1) {
			case 1:
				return types.TxStatus{Hash: hash}, nil
			case 2:
				return types.TxStatus{}, status.Error(codes.Unavailable, "node restarting")
			default:
				return types.TxStatus{
					Hash:     hash,
					Included: true,
					Height:   12,
					Result:   types.TxResult{Data: []byte("ok")},
				}, nil
			}
		},
	}
	var dials atomic.Int64
	d := client.NewTxDispatcher(nodeFactory(mock, &dials), fastConfig(types.BroadcastSync), zerolog.Nop())

	resp, err := d.Dispatch(context.Background(), "", []byte{0x01}, types.Commit)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp.Broadcast.Height != 12 || string(resp.Broadcast.Deliver.Data) != "ok" {
		t.Fatalf("inclusion not merged into result: %+v", resp.Broadcast)
	}
	if mock.BroadcastTxSyncCalls.Load() != 1 {
		t.Fatalf("expected exactly one broadcast, got %d", mock.BroadcastTxSyncCalls.Load())
	}
	if polls.Load() != 3 {
		t.Errorf("expected 3 polls, got %d", polls.Load())
	}
}

func TestDispatch_CommitSyncPollTimeout(t *testing.T) {
	mock := &dispatchtest.MockNode{
		TxStatusFn: func(_ context.Context, hash types.Hash) (types.TxStatus, error) {
			return types.TxStatus{Hash: hash}, nil
		},
	}
	cfg := fastConfig(types.BroadcastSync)
	cfg.PollTimeout = 20 * time.Millisecond
	var dials atomic.Int64
	d := client.NewTxDispatcher(nodeFactory(mock, &dials), cfg, zerolog.Nop())

	resp, err := d.Dispatch(context.Background(), "", []byte{0x01}, types.Commit)
	te, ok := dispatch.IsTransport(err)
	if !ok || te.Op != "await inclusion" {
		t.Fatalf("expected await-inclusion TransportError, got %v", err)
	}
	if resp.Broadcast == nil {
		t.Error("admission result should be returned with the timeout")
	}
	if mock.Broadcasts() != 1 {
		t.Fatalf("poll timeout must not rebroadcast, got %d", mock.Broadcasts())
	}
}

func TestDispatch_CommitSyncPollRejected(t *testing.T) {
	mock := &dispatchtest.MockNode{
		TxStatusFn: func(context.Context, types.Hash) (types.TxStatus, error) {
			return types.TxStatus{}, status.Error(codes.PermissionDenied, "status disabled")
		},
	}
	var dials atomic.Int64
	d := client.NewTxDispatcher(nodeFactory(mock, &dials), fastConfig(types.BroadcastSync), zerolog.Nop())

	_, err := d.Dispatch(context.Background(), "", []byte{0x01}, types.Commit)
	re, ok := dispatch.IsNodeRejected(err)
	if !ok {
		t.Fatalf("expected NodeRejectedError, got %v", err)
	}
	if re.Code != uint32(codes.PermissionDenied) || re.Op != "tx status" {
		t.Errorf("unexpected rejection: %+v", re)
	}
	if mock.TxStatusCalls.Load() != 1 {
		t.Errorf("rejection should stop polling, got %d polls", mock.TxStatusCalls.Load())
	}
}

func TestDispatch_CheckRejected(t *testing.T) {
	mock := &dispatchtest.MockNode{
		BroadcastTxSyncFn: func(_ context.Context, tx []byte) (types.BroadcastResult, error) {
			return types.BroadcastResult{
				Hash:  types.TxHash(tx),
				Check: types.TxResult{Code: types.CodeDuplicate, Info: "tx already exists in cache"},
			}, nil
		},
	}
	var dials atomic.Int64
	d := client.NewTxDispatcher(nodeFactory(mock, &dials), fastConfig(types.BroadcastSync), zerolog.Nop())

	resp, err := d.Dispatch(context.Background(), "", []byte{0x01}, types.Commit)
	re, ok := dispatch.IsNodeRejected(err)
	if !ok || re.Op != "check" || re.Code != types.CodeDuplicate {
		t.Fatalf("expected check rejection, got %v", err)
	}
	if resp.Broadcast == nil || resp.Broadcast.Check.Code != types.CodeDuplicate {
		t.Errorf("raw check result missing: %+v", resp)
	}
	if mock.TxStatusCalls.Load() != 0 {
		t.Error("rejected tx must not be polled")
	}
}

func TestDispatch_DeliverRejected(t *testing.T) {
	mock := &dispatchtest.MockNode{
		BroadcastTxCommitFn: func(_ context.Context, tx []byte) (types.BroadcastResult, error) {
			return types.BroadcastResult{
				Hash:    types.TxHash(tx),
				Height:  3,
				Deliver: types.TxResult{Code: 9, Log: "out of gas"},
			}, nil
		},
	}
	var dials atomic.Int64
	d := client.NewTxDispatcher(nodeFactory(mock, &dials), fastConfig(types.BroadcastCommit), zerolog.Nop())

	_, err := d.Dispatch(context.Background(), "", []byte{0x01}, types.Commit)
	re, ok := dispatch.IsNodeRejected(err)
	if !ok || re.Op != "deliver" || re.Reason != "out of gas" {
		t.Fatalf("expected deliver rejection, got %v", err)
	}
}

func TestDispatch_InputErrorsNeverDial(t *testing.T) {
	mock := &dispatchtest.MockNode{}
	var dials atomic.Int64
	d := client.NewTxDispatcher(nodeFactory(mock, &dials), client.DefaultConfig(), zerolog.Nop())
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
	}{
		{"empty bytes", func() error {
			_, err := d.Dispatch(ctx, "", nil, types.DryRun)
			return err
		}},
		{"invalid mode", func() error {
			_, err := d.Dispatch(ctx, "", []byte{0x01}, types.DispatchMode(9))
			return err
		}},
		{"bad address", func() error {
			_, err := d.Dispatch(ctx, "ftp://node", []byte{0x01}, types.DryRun)
			return err
		}},
		{"empty code", func() error {
			_, err := d.Submit(ctx, "", types.Tx{Data: []byte{0x01}}, types.Commit)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := dispatch.IsInput(tt.run()); !ok {
				t.Fatal("expected InputError")
			}
		})
	}
	if dials.Load() != 0 {
		t.Fatalf("input errors must not dial, got %d dials", dials.Load())
	}
}

func TestDispatch_DialFailure(t *testing.T) {
	refused := errors.New("connection refused")
	d := client.NewTxDispatcher(func(context.Context, string) (dispatch.NodeConn, error) {
		return nil, refused
	}, client.DefaultConfig(), zerolog.Nop())

	_, err := d.Dispatch(context.Background(), "10.0.0.1", []byte{0x01}, types.Commit)
	te, ok := dispatch.IsTransport(err)
	if !ok {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Op != "dial" || te.Addr != "10.0.0.1:26657" {
		t.Errorf("unexpected error: %+v", te)
	}
}

func TestDispatch_Timeout(t *testing.T) {
	mock := &dispatchtest.MockNode{
		QueryFn: func(ctx context.Context, _ types.QueryRequest) (types.QueryResult, error) {
			<-ctx.Done()
			return types.QueryResult{}, ctx.Err()
		},
	}
	cfg := client.DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	var dials atomic.Int64
	d := client.NewTxDispatcher(nodeFactory(mock, &dials), cfg, zerolog.Nop())

	_, err := d.Dispatch(context.Background(), "", []byte{0x01}, types.DryRun)
	if _, ok := dispatch.IsTransport(err); !ok {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline in chain, got %v", err)
	}
}

func TestDispatch_UnreachableNode(t *testing.T) {
	d := client.NewTxDispatcher(nil, client.DefaultConfig(), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := d.Dispatch(ctx, dispatchtest.UnusedAddr(t), []byte{0x01}, types.DryRun)
	if _, ok := dispatch.IsTransport(err); !ok {
		t.Fatalf("expected TransportError, got %v", err)
	}
}
