package types_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/blockberries/dispatch/types"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// roundTrip marshals v, unmarshals into a new T, and returns it.
func roundTrip[T any](t *testing.T, v T) T {
	t.Helper()
	data, err := cramberry.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var out T
	if err := cramberry.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return out
}

func TestTimestamp_RoundTrip(t *testing.T) {
	ts := types.TimeToTimestamp(time.Date(2024, 6, 15, 12, 30, 45, 123456789, time.UTC))
	got := roundTrip(t, ts)
	if got != ts {
		t.Fatalf("Timestamp round-trip failed: got %+v, want %+v", got, ts)
	}
	goTime := got.ToTime()
	if goTime.Year() != 2024 || goTime.Month() != 6 || goTime.Day() != 15 {
		t.Fatalf("Timestamp.ToTime date wrong: %v", goTime)
	}
	if goTime.Nanosecond() != 123456789 {
		t.Fatalf("Timestamp.ToTime nanos wrong: %d", goTime.Nanosecond())
	}
}

func TestEncodeTx_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		tx   types.Tx
	}{
		{"code only", types.Tx{Code: []byte{0x00, 0x61, 0x73, 0x6d}}},
		{"code and data", types.Tx{Code: []byte("wasm"), Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}}},
		{"with nonce", types.Tx{Code: []byte("wasm"), Data: []byte{0x01}, Nonce: 1700000000000000000}},
		{"binary zeroes", types.Tx{Code: make([]byte, 4096), Data: make([]byte, 17)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := types.EncodeTx(tc.tx)
			if err != nil {
				t.Fatalf("EncodeTx: %v", err)
			}
			got, err := types.DecodeTx(data)
			if err != nil {
				t.Fatalf("DecodeTx: %v", err)
			}
			if !bytes.Equal(got.Code, tc.tx.Code) {
				t.Fatalf("code mismatch: got %x, want %x", got.Code, tc.tx.Code)
			}
			if !bytes.Equal(got.Data, tc.tx.Data) {
				t.Fatalf("data mismatch: got %x, want %x", got.Data, tc.tx.Data)
			}
			if (got.Data == nil) != (tc.tx.Data == nil) {
				t.Fatalf("data presence mismatch: got %v, want %v", got.Data != nil, tc.tx.Data != nil)
			}
			if got.Nonce != tc.tx.Nonce {
				t.Fatalf("nonce mismatch: got %d, want %d", got.Nonce, tc.tx.Nonce)
			}
		})
	}
}

func TestEncodeTx_EmptyDataIsAbsent(t *testing.T) {
	withEmpty, err := types.EncodeTx(types.Tx{Code: []byte("c"), Data: []byte{}})
	if err != nil {
		t.Fatal(err)
	}
	withNil, err := types.EncodeTx(types.Tx{Code: []byte("c")})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(withEmpty, withNil) {
		t.Fatal("empty data should encode the same as absent data")
	}

	got, err := types.DecodeTx(withEmpty)
	if err != nil {
		t.Fatalf("DecodeTx: %v", err)
	}
	if got.Data != nil {
		t.Fatalf("empty data should decode as absent, got %#v", got.Data)
	}
}

func TestEncodeTx_EmptyCode(t *testing.T) {
	_, err := types.EncodeTx(types.Tx{Data: []byte{0x01}})
	if !errors.Is(err, types.ErrEmptyCode) {
		t.Fatalf("expected ErrEmptyCode, got %v", err)
	}
}

func TestDecodeTx_Garbage(t *testing.T) {
	if _, err := types.DecodeTx([]byte{0xFF, 0xFF, 0xFF}); err == nil {
		t.Fatal("expected error decoding garbage")
	}
}

// TestEncodeTx_Determinism verifies that the same tx always produces
// the same bytes (cramberry's core guarantee).
func TestEncodeTx_Determinism(t *testing.T) {
	tx := types.Tx{Code: []byte("code"), Data: []byte("data"), Nonce: 42}
	data1, err := types.EncodeTx(tx)
	if err != nil {
		t.Fatal(err)
	}
	data2, err := types.EncodeTx(types.Tx{Code: []byte("code"), Data: []byte("data"), Nonce: 42})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data1, data2) {
		t.Fatalf("non-deterministic: %x vs %x", data1, data2)
	}
	if types.TxHash(data1) != types.TxHash(data2) {
		t.Fatal("equal encodings must hash equally")
	}

	other, err := types.EncodeTx(types.Tx{Code: []byte("code"), Data: []byte("data"), Nonce: 43})
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(data1, other) {
		t.Fatal("different nonces must produce different encodings")
	}
}

func TestGossipMessage_RoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 500, time.UTC)
	msg := types.WrapIntent([]byte(`{"pair":"ETH/USD","side":"buy"}`), now)

	data, err := types.EncodeGossipMessage(msg)
	if err != nil {
		t.Fatalf("EncodeGossipMessage: %v", err)
	}
	got, err := types.DecodeGossipMessage(data)
	if err != nil {
		t.Fatalf("DecodeGossipMessage: %v", err)
	}
	if got.Kind() != types.KindIntent {
		t.Fatalf("expected intent kind, got %s", got.Kind())
	}
	if got.Intent.ID != msg.Intent.ID {
		t.Fatalf("ID mismatch: %q vs %q", got.Intent.ID, msg.Intent.ID)
	}
	if !bytes.Equal(got.Intent.Intent.Data, msg.Intent.Intent.Data) {
		t.Fatal("payload mismatch")
	}
	if !got.Intent.Intent.Timestamp.ToTime().Equal(now) {
		t.Fatalf("timestamp mismatch: %v", got.Intent.Intent.Timestamp.ToTime())
	}
}

func TestGossipMessage_EmptyEnvelope(t *testing.T) {
	var msg types.GossipMessage
	if msg.Kind() != types.KindUnknown {
		t.Fatalf("expected unknown kind, got %s", msg.Kind())
	}
	if _, err := types.EncodeGossipMessage(msg); !errors.Is(err, types.ErrEmptyEnvelope) {
		t.Fatalf("expected ErrEmptyEnvelope, got %v", err)
	}
}

func TestWrapIntent_UniqueIDs(t *testing.T) {
	now := time.Now()
	a := types.WrapIntent([]byte("x"), now)
	b := types.WrapIntent([]byte("x"), now)
	if a.Intent.ID == b.Intent.ID {
		t.Fatal("expected distinct intent IDs")
	}
}

func TestBroadcastResult_RoundTrip(t *testing.T) {
	v := types.BroadcastResult{
		Hash:   types.TxHash([]byte("tx")),
		Height: 12,
		Check:  types.TxResult{Code: 0},
		Deliver: types.TxResult{
			Code:   types.CodeRejected,
			Info:   "invalid signature",
			Events: []types.Event{{Kind: "exec", Attributes: []types.EventAttribute{{Key: "k", Value: "v"}}}},
		},
	}
	got := roundTrip(t, v)
	if got.Hash != v.Hash || got.Height != v.Height {
		t.Fatalf("BroadcastResult round-trip failed: got %+v", got)
	}
	if got.Accepted() {
		t.Fatal("expected not accepted")
	}
	if got.Deliver.Reason() != "invalid signature" {
		t.Fatalf("unexpected reason %q", got.Deliver.Reason())
	}
}

func TestHash_Text(t *testing.T) {
	h := types.TxHash([]byte("abc"))
	text, err := h.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var back types.Hash
	if err := back.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if back != h {
		t.Fatal("hash text round-trip failed")
	}
	if err := back.UnmarshalText([]byte("abcd")); err == nil {
		t.Fatal("expected short hash error")
	}
}

func TestModes(t *testing.T) {
	if types.DryRun.String() != "dry-run" || types.Commit.String() != "commit" {
		t.Fatal("unexpected DispatchMode strings")
	}
	if types.DispatchMode(9).Valid() {
		t.Fatal("mode 9 must be invalid")
	}
	m, err := types.ParseBroadcastMode("Blocking")
	if err != nil || m != types.BroadcastCommit {
		t.Fatalf("ParseBroadcastMode(Blocking) = %v, %v", m, err)
	}
	m, err = types.ParseBroadcastMode("")
	if err != nil || m != types.BroadcastSync {
		t.Fatalf("ParseBroadcastMode(\"\") = %v, %v", m, err)
	}
	if _, err := types.ParseBroadcastMode("async"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
