package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/validator"
)

// ErrKnownBlock is returned when a proposed block is already in the chain.
var ErrKnownBlock = errors.New("block already in chain")

// =============================================================================

// ProcessProposedBlock takes a block received from a peer or a miner,
// validates it and if that passes, adds the block to the local blockchain
// and shares it with the connected peers.
func (s *State) ProcessProposedBlock(block database.Block, peerID string) error {
	s.evHandler("state: ProcessProposedBlock: started: prevBlk[%s]: newBlk[%s]: numTrans[%d]", block.Header.PrevHash, block.Hash(), len(block.Transactions))
	defer s.evHandler("state: ProcessProposedBlock: completed: newBlk[%s]", block.Hash())

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateUpdateDatabase(block, peerID); err != nil {
		return err
	}

	s.Worker.SignalShareBlock(block)

	return nil
}

// =============================================================================

// validateUpdateDatabase takes the block and validates the block against the
// consensus rules. If the block passes, then the state of the node is updated.
// The state lock must be held.
func (s *State) validateUpdateDatabase(block database.Block, peerID string) error {
	tip := s.db.Tip()

	if block.Header.Height <= tip.Header.Height {
		if known, err := s.db.QueryBlock(block.Header.Height); err == nil && known.Hash() == block.Hash() {
			return ErrKnownBlock
		}
	}

	if block.Header.Height != tip.Header.Height+1 || block.Header.PrevHash != tip.Hash() {
		s.evHandler("state: validateUpdateDatabase: possible fork: blk[%d] prev[%s]: tip[%d] hash[%s]", block.Header.Height, block.Header.PrevHash, tip.Header.Height, tip.Hash())
		s.metrics.BlockRejected("fork")
		return database.ErrChainForked
	}

	s.evHandler("state: validateUpdateDatabase: validate and append block")

	validate := func(block database.Block, chain database.ChainContext) error {
		return s.validator.ValidateBlock(block, chain, peerID)
	}

	var effects database.ContractEffects
	if s.contracts != nil {
		effects = s.contracts
	}

	if err := s.db.AddBlock(block, validate, effects); err != nil {
		s.evHandler("state: validateUpdateDatabase: blk[%d]: REJECTED: %s", block.Header.Height, err)
		s.metrics.BlockRejected(string(validator.CategoryOf(err)))
		return err
	}

	s.evHandler("state: validateUpdateDatabase: remove mined transactions from mempool")

	evicted := s.mempool.EvictMined(block)
	s.templates.Purge()

	s.metrics.BlockAccepted(block.Header.Height)
	s.metrics.SetMempoolSize(s.mempool.Count())

	s.evHandler("state: validateUpdateDatabase: blk[%d]: evicted[%d]", block.Header.Height, evicted)

	// Send an event about this new block.
	s.blockEvent(block)

	return nil
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockHeaderJSON, err := json.Marshal(block.Header)
	if err != nil {
		blockHeaderJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	blockTxsJSON, err := json.Marshal(block.Transactions)
	if err != nil {
		blockTxsJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"hash":%q,"header":%s,"transactions":%s}`, block.Hash(), string(blockHeaderJSON), string(blockTxsJSON))
}
