package client

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/blockberries/dispatch"
)

// Default peer addresses used when the caller supplies none.
const (
	DefaultNodePort   = "26657"
	DefaultGossipPort = "26659"

	DefaultNodeAddr   = "127.0.0.1:" + DefaultNodePort
	DefaultGossipAddr = "127.0.0.1:" + DefaultGossipPort
)

// Scheme selects the transport used to reach a peer.
type Scheme uint8

const (
	SchemeGRPC Scheme = iota
	SchemeZMQ
)

func (s Scheme) String() string {
	switch s {
	case SchemeGRPC:
		return "grpc"
	case SchemeZMQ:
		return "zmq"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

var errBadScheme = errors.New("unsupported address scheme")

// ParseAddr splits raw into a transport scheme and a host:port
// target. Accepted forms are host, host:port, and the same prefixed
// with tcp://, http://, grpc:// or zmq://. A missing port is filled
// with defaultPort and a missing host with 127.0.0.1.
func ParseAddr(raw, defaultPort string) (Scheme, string, error) {
	s := strings.TrimSpace(raw)
	scheme := SchemeGRPC

	if i := strings.Index(s, "://"); i >= 0 {
		switch strings.ToLower(s[:i]) {
		case "tcp", "http", "grpc":
		case "zmq":
			scheme = SchemeZMQ
		default:
			return 0, "", &dispatch.InputError{Op: "parse address", Path: raw, Err: errBadScheme}
		}
		s = s[i+3:]
	}
	s = strings.TrimSuffix(s, "/")
	if s == "" {
		return 0, "", &dispatch.InputError{Op: "parse address", Path: raw, Err: errors.New("empty address")}
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		// No port, or a bare IPv6 literal.
		host, port = strings.Trim(s, "[]"), ""
	}
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = defaultPort
	}
	return scheme, net.JoinHostPort(host, port), nil
}

// NodeAddr resolves a node address. An empty address selects
// DefaultNodeAddr. Nodes are only reachable over gRPC.
func NodeAddr(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultNodeAddr, nil
	}
	scheme, target, err := ParseAddr(raw, DefaultNodePort)
	if err != nil {
		return "", err
	}
	if scheme != SchemeGRPC {
		return "", &dispatch.InputError{Op: "parse address", Path: raw, Err: fmt.Errorf("%w for node: %s", errBadScheme, scheme)}
	}
	return target, nil
}

// GossipAddr resolves a gossip peer address. An empty address
// selects DefaultGossipAddr over gRPC.
func GossipAddr(raw string) (Scheme, string, error) {
	if strings.TrimSpace(raw) == "" {
		return SchemeGRPC, DefaultGossipAddr, nil
	}
	return ParseAddr(raw, DefaultGossipPort)
}
