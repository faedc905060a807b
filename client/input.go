package client

import (
	"encoding/hex"
	"os"
	"time"

	"github.com/blockberries/dispatch"
	"github.com/blockberries/dispatch/types"
)

// LoadTx reads transaction code from codePath and decodes the
// optional hex data. Every failure is an *dispatch.InputError and
// happens before any peer is contacted. An empty dataHex means no
// data.
func LoadTx(codePath, dataHex string, nonce uint64) (types.Tx, error) {
	code, err := os.ReadFile(codePath)
	if err != nil {
		return types.Tx{}, &dispatch.InputError{Op: "read code", Path: codePath, Err: err}
	}
	if len(code) == 0 {
		return types.Tx{}, &dispatch.InputError{Op: "read code", Path: codePath, Err: types.ErrEmptyCode}
	}

	var data []byte
	if dataHex != "" {
		data, err = hex.DecodeString(dataHex)
		if err != nil {
			return types.Tx{}, &dispatch.InputError{Op: "decode data hex", Err: err}
		}
	}
	return types.Tx{Code: code, Data: data, Nonce: nonce}, nil
}

// LoadIntent reads an intent payload from path and wraps it as a
// gossip message timestamped with now. The payload is not inspected.
func LoadIntent(path string, now time.Time) (types.GossipMessage, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return types.GossipMessage{}, &dispatch.InputError{Op: "read intent", Path: path, Err: err}
	}
	return types.WrapIntent(payload, now), nil
}
