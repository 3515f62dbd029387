// Package p2p implements the peer protocol: newline delimited JSON
// envelopes exchanged over TCP, a per connection handshake state machine,
// and a server that bounds, registers and fans out to its peers.
package p2p

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/blacksilk/node/foundation/blockchain/signature"
)

// ProtocolVersion is the version announced in the handshake.
const ProtocolVersion = 1

// Set of message types exchanged between peers.
const (
	TypeVersion     = "Version"
	TypePing        = "Ping"
	TypePong        = "Pong"
	TypeBlock       = "Block"
	TypeTransaction = "Transaction"
	TypePeerList    = "PeerList"
	TypeGetBlocks   = "GetBlocks"
	TypeBlocks      = "Blocks"
	TypeGetMempool  = "GetMempool"
	TypeMempool     = "Mempool"
)

// Set of errors returned by the handshake and the framing.
var (
	ErrMagic       = errors.New("network magic does not match")
	ErrIdentity    = errors.New("version signature does not match node id")
	ErrSelf        = errors.New("connected to self")
	ErrMessageSize = errors.New("message exceeds the maximum size")
)

// Message is the envelope every frame on the wire is encoded in. One
// message is written per line.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage constructs a message of the specified type. A nil payload
// produces a message without one.
func NewMessage(typ string, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: typ}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s: %w", typ, err)
	}

	return Message{Type: typ, Payload: data}, nil
}

// Batch returns the longest prefix of items whose JSON array fits in a
// single message. A first item too large to send on its own is an error.
func Batch[T any](items []T) ([]T, error) {
	size := envelopeOverhead + 2
	for i, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}

		size += len(data) + 1
		if size > MaxMessageSize {
			if i == 0 {
				return nil, fmt.Errorf("item of %d bytes: %w", len(data), ErrMessageSize)
			}
			return items[:i], nil
		}
	}

	return items, nil
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", m.Type)
	}

	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decoding %s: %w", m.Type, err)
	}

	return nil
}

// =============================================================================

// Version is the handshake a node sends first on every connection. The
// signature covers every other field and must recover NodeID.
type Version struct {
	Version    uint32        `json:"version"`
	Node       string        `json:"node"`
	Magic      uint32        `json:"magic"`
	Height     uint64        `json:"height"`
	NodeID     string        `json:"node_id"`
	ListenAddr string        `json:"listen_addr"`
	Timestamp  int64         `json:"timestamp"`
	Signature  hexutil.Bytes `json:"signature"`
}

// Sign sets the node id and signature from the private key.
func (v *Version) Sign(privateKey *ecdsa.PrivateKey) error {
	v.NodeID = signature.NodeID(privateKey)

	sig, err := signature.Sign(v.unsigned(), privateKey)
	if err != nil {
		return err
	}
	v.Signature = sig

	return nil
}

// Verify checks the version belongs to the network and was signed by the
// node it claims to come from.
func (v Version) Verify(magic uint32) error {
	if v.Magic != magic {
		return fmt.Errorf("got %#x, exp %#x: %w", v.Magic, magic, ErrMagic)
	}

	id, err := signature.FromAddress(v.unsigned(), v.Signature)
	if err != nil {
		return fmt.Errorf("%s: %w", err, ErrIdentity)
	}

	if !strings.EqualFold(id, v.NodeID) {
		return fmt.Errorf("recovered %s, claimed %s: %w", id, v.NodeID, ErrIdentity)
	}

	return nil
}

func (v Version) unsigned() Version {
	v.Signature = nil
	return v
}

// GetBlocks asks a peer for every block at or above FromHeight.
type GetBlocks struct {
	FromHeight uint64 `json:"from_height"`
}
