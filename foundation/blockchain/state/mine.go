package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/randomx"
)

// Set of errors returned by the mining operations.
var (
	ErrInvalidAddress  = errors.New("invalid coinbase address")
	ErrUnknownTemplate = errors.New("unknown or expired block template")
)

// Template is the work handed to an external miner. The miner appends the
// little endian nonce to Header and hashes it with Seed as the RandomX key.
type Template struct {
	Header          hexutil.Bytes    `json:"header"`
	Difficulty      uint64           `json:"difficulty"`
	Seed            hexutil.Bytes    `json:"seed"`
	CoinbaseAddress database.Address `json:"coinbase_address"`
	Height          uint64           `json:"height"`
	PrevHash        database.Hash    `json:"prev_hash"`
	Timestamp       uint64           `json:"timestamp"`
}

// MinedBlock is a solution to a template submitted by a miner.
type MinedBlock struct {
	Header       hexutil.Bytes `json:"header"`
	Nonce        uint64        `json:"nonce"`
	Hash         database.Hash `json:"hash"`
	MinerAddress string        `json:"miner_address,omitempty"`
}

// =============================================================================

// BlockTemplate builds the next block paying the coinbase to the address
// and remembers it until a solution is submitted or the tip moves.
func (s *State) BlockTemplate(address database.Address) (Template, error) {
	if !address.IsAddress() {
		return Template{}, fmt.Errorf("%q: %w", address, ErrInvalidAddress)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tip := s.db.Tip()
	prevHash := tip.Hash()
	height := tip.Header.Height + 1

	timestamp := uint64(s.clock.Now().Unix())
	if timestamp < tip.Header.Timestamp {
		timestamp = tip.Header.Timestamp
	}

	// Slot 0 is the coinbase, the rest are the best pooled transactions.
	txs := []database.Tx{database.NewCoinbaseTx(height, address)}
	txs = append(txs, s.mempool.PickBest(int(s.genesis.TransPerBlock)-1)...)

	root, err := database.MerkleRoot(txs)
	if err != nil {
		return Template{}, err
	}

	block := database.Block{
		Header: database.BlockHeader{
			Version:    database.BlockVersion,
			PrevHash:   prevHash,
			MerkleRoot: root,
			Timestamp:  timestamp,
			Height:     height,
			Difficulty: s.db.CalculateNextDifficulty(),
		},
		Coinbase: database.Coinbase{
			Reward: s.db.BlockReward(height),
			To:     address,
		},
		Transactions: txs,
	}

	blob := block.Header.HashingBlob()
	s.templates.Add(string(blob), block)

	s.evHandler("state: BlockTemplate: blk[%d]: difficulty[%d]: txs[%d]: to[%s]", height, block.Header.Difficulty, len(txs), address)

	tmpl := Template{
		Header:          blob,
		Difficulty:      block.Header.Difficulty,
		Seed:            prevHash[:],
		CoinbaseAddress: address,
		Height:          height,
		PrevHash:        prevHash,
		Timestamp:       timestamp,
	}

	return tmpl, nil
}

// SubmitMinedBlock completes the remembered template with the submitted
// proof of work and proposes the block. The verifier scores the submission
// under peerID, the address the miner connected from. The miner address in
// the request is only reported, it is chosen by the client.
func (s *State) SubmitMinedBlock(mined MinedBlock, peerID string) (database.Block, error) {
	block, ok := s.templates.Get(string(mined.Header))
	if !ok {
		return database.Block{}, ErrUnknownTemplate
	}

	block.Header.Pow = database.Pow{
		Nonce: mined.Nonce,
		Hash:  mined.Hash,
	}

	if !database.MeetsTarget(mined.Hash, block.Header.Difficulty) {
		return database.Block{}, fmt.Errorf("blk[%d]: difficulty[%d]: %w", block.Header.Height, block.Header.Difficulty, randomx.ErrTargetMissed)
	}

	if err := s.ProcessProposedBlock(block, peerID); err != nil {
		return database.Block{}, err
	}

	return block, nil
}
