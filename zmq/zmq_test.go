package zmq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blockberries/dispatch"
	"github.com/blockberries/dispatch/example/orderbook"
	dispatchtest "github.com/blockberries/dispatch/testing"
	"github.com/blockberries/dispatch/types"
	"github.com/blockberries/dispatch/zmq"
)

func startResponder(t *testing.T, peer dispatch.Gossip) string {
	t.Helper()
	r, err := zmq.Listen(context.Background(), "127.0.0.1:0", peer)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- r.Serve() }()
	t.Cleanup(func() {
		_ = r.Close()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after Close")
		}
	})
	return r.Addr().String()
}

func TestZMQ_SendIntent(t *testing.T) {
	book := orderbook.New()
	addr := startResponder(t, book)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := zmq.DialGossip(ctx, addr)
	if err != nil {
		t.Fatalf("DialGossip: %v", err)
	}
	defer client.Close()

	for i, payload := range []string{"first", "second"} {
		ack, err := client.SendMessage(ctx, types.WrapIntent([]byte(payload), time.Now()))
		if err != nil {
			t.Fatalf("SendMessage %d: %v", i, err)
		}
		if !ack.OK() {
			t.Fatalf("ack %d rejected: %+v", i, ack)
		}
	}

	intents := book.Intents()
	if len(intents) != 2 || string(intents[1].Intent.Data) != "second" {
		t.Fatalf("unexpected intents: %+v", intents)
	}
}

func TestZMQ_PeerRejection(t *testing.T) {
	peer := &dispatchtest.MockGossip{
		SendMessageFn: func(context.Context, types.GossipMessage) (types.Ack, error) {
			return types.Ack{Code: 7, Info: "book closed"}, nil
		},
	}
	addr := startResponder(t, peer)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := zmq.DialGossip(ctx, addr)
	if err != nil {
		t.Fatalf("DialGossip: %v", err)
	}
	defer client.Close()

	ack, err := client.SendMessage(ctx, types.WrapIntent([]byte("x"), time.Now()))
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if ack.Code != 7 || ack.Info != "book closed" {
		t.Fatalf("unexpected ack: %+v", ack)
	}
}

func TestZMQ_PeerError(t *testing.T) {
	peer := &dispatchtest.MockGossip{
		SendMessageFn: func(context.Context, types.GossipMessage) (types.Ack, error) {
			return types.Ack{}, errors.New("disk full")
		},
	}
	addr := startResponder(t, peer)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := zmq.DialGossip(ctx, addr)
	if err != nil {
		t.Fatalf("DialGossip: %v", err)
	}
	defer client.Close()

	ack, err := client.SendMessage(ctx, types.WrapIntent([]byte("x"), time.Now()))
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if ack.Code != zmq.CodePeerError {
		t.Fatalf("expected CodePeerError, got %+v", ack)
	}
}

func TestZMQ_EmptyEnvelopeNeverSent(t *testing.T) {
	peer := &dispatchtest.MockGossip{}
	addr := startResponder(t, peer)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := zmq.DialGossip(ctx, addr)
	if err != nil {
		t.Fatalf("DialGossip: %v", err)
	}
	defer client.Close()

	_, err = client.SendMessage(ctx, types.GossipMessage{})
	te, ok := dispatch.IsTransport(err)
	if !ok || te.Op != "encode" {
		t.Fatalf("expected encode TransportError, got %v", err)
	}
	if !errors.Is(err, types.ErrEmptyEnvelope) {
		t.Errorf("expected ErrEmptyEnvelope in chain, got %v", err)
	}
	if peer.SendMessageCalls.Load() != 0 {
		t.Fatal("peer should not have been called")
	}
}
