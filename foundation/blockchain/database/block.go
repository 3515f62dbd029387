package database

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/blacksilk/node/foundation/blockchain/genesis"
	"github.com/blacksilk/node/foundation/blockchain/merkle"
)

// BlockVersion is the header version produced by this node.
const BlockVersion = 1

// HashingBlobSize is the number of header bytes a miner hashes before
// appending the nonce.
const HashingBlobSize = 2 + 32 + 32 + 8 + 8 + 8

// Pow is the proof-of-work solution carried by a header.
type Pow struct {
	Nonce uint64 `json:"nonce"` // Value identified to solve the hash solution.
	Hash  Hash   `json:"hash"`  // RandomX hash of the header bytes including the nonce.
}

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Version    uint16 `json:"version"`
	PrevHash   Hash   `json:"prev_hash"`   // Pow hash of the previous block in the chain.
	MerkleRoot Hash   `json:"merkle_root"` // Merkle root of the transactions in this block.
	Timestamp  uint64 `json:"timestamp"`   // Time the block was mined.
	Height     uint64 `json:"height"`      // Block number in the chain.
	Difficulty uint64 `json:"difficulty"`  // Expected number of hashes to find a solution.
	Pow        Pow    `json:"pow"`
}

// HashingBlob returns the header fields a miner hashes, in wire order and
// little endian: version, prev hash, merkle root, timestamp, height and
// difficulty.
func (h BlockHeader) HashingBlob() []byte {
	b := make([]byte, 0, HashingBlobSize)
	b = binary.LittleEndian.AppendUint16(b, h.Version)
	b = append(b, h.PrevHash[:]...)
	b = append(b, h.MerkleRoot[:]...)
	b = binary.LittleEndian.AppendUint64(b, h.Timestamp)
	b = binary.LittleEndian.AppendUint64(b, h.Height)
	b = binary.LittleEndian.AppendUint64(b, h.Difficulty)
	return b
}

// Bytes returns the hashing blob followed by the nonce. This is the input
// of the proof-of-work function.
func (h BlockHeader) Bytes() []byte {
	return binary.LittleEndian.AppendUint64(h.HashingBlob(), h.Pow.Nonce)
}

// ParseHashingBlob decodes a hashing blob back into a header with an empty
// proof-of-work.
func ParseHashingBlob(b []byte) (BlockHeader, error) {
	if len(b) != HashingBlobSize {
		return BlockHeader{}, fmt.Errorf("hashing blob must be %d bytes, got %d", HashingBlobSize, len(b))
	}

	var h BlockHeader
	h.Version = binary.LittleEndian.Uint16(b[0:2])
	copy(h.PrevHash[:], b[2:34])
	copy(h.MerkleRoot[:], b[34:66])
	h.Timestamp = binary.LittleEndian.Uint64(b[66:74])
	h.Height = binary.LittleEndian.Uint64(b[74:82])
	h.Difficulty = binary.LittleEndian.Uint64(b[82:90])

	return h, nil
}

// =============================================================================

// Target returns the value a hash prefix must stay below for the specified
// difficulty. A difficulty of zero is treated as one.
func Target(difficulty uint64) uint64 {
	if difficulty == 0 {
		difficulty = 1
	}
	return math.MaxUint64 / difficulty
}

// MeetsTarget checks the little endian value of the first 8 bytes of the
// hash is below the target for the difficulty.
func MeetsTarget(hash Hash, difficulty uint64) bool {
	return binary.LittleEndian.Uint64(hash[:8]) < Target(difficulty)
}

// =============================================================================

// Coinbase is the reward granted by a block.
type Coinbase struct {
	Reward uint64  `json:"reward"`
	To     Address `json:"to"`
}

// Block represents a group of transactions batched together. The first
// transaction slot is the coinbase and carries no inputs.
type Block struct {
	Header       BlockHeader `json:"header"`
	Coinbase     Coinbase    `json:"coinbase"`
	Transactions []Tx        `json:"transactions"`
}

// Hash returns the proof-of-work hash that identifies the block.
func (b Block) Hash() Hash {
	return b.Header.Pow.Hash
}

// KeyImages returns every key image spent by the block's transactions.
func (b Block) KeyImages() []KeyImage {
	var kis []KeyImage
	for _, tx := range b.Transactions {
		kis = append(kis, tx.KeyImages()...)
	}
	return kis
}

// GenesisBlock constructs the deterministic first block of the network.
func GenesisBlock(gen genesis.Genesis) Block {
	return Block{
		Header: BlockHeader{
			Version:    BlockVersion,
			Timestamp:  gen.GenesisTimestamp,
			Difficulty: 1,
		},
		Coinbase: Coinbase{
			Reward: gen.GenesisReward,
			To:     GenesisAddress(),
		},
	}
}

// MerkleRoot computes the root over the transaction hashes. An empty set of
// transactions produces the zero hash.
func MerkleRoot(txs []Tx) (Hash, error) {
	if len(txs) == 0 {
		return ZeroHash, nil
	}

	tree, err := merkle.NewTree(txs)
	if err != nil {
		return ZeroHash, err
	}

	var h Hash
	copy(h[:], tree.Root())
	return h, nil
}
