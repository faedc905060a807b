// Package client submits transactions to consensus nodes and
// publishes intents to gossip peers.
//
// A TxDispatcher sends an encoded transaction in exactly one of two
// modes. DryRun simulates it through a read-only query and may be
// repeated freely. Commit broadcasts it once and never retries, so a
// transaction is never submitted twice by this package.
//
// An IntentPublisher wraps an opaque payload in a gossip envelope
// and delivers it to one peer, over gRPC or ZeroMQ depending on the
// address scheme.
//
// Every invocation opens a fresh connection through a factory and
// closes it before returning. Failures are typed (see the dispatch
// package): input problems never reach the network, transport
// failures leave delivery unknown, and rejections mean the peer
// answered no.
package client
