package state

import (
	"errors"

	"github.com/blacksilk/node/foundation/blockchain/database"
)

// ProcessBlocks appends a batch of blocks received while syncing. Blocks
// already in the chain are skipped. When the first new block does not
// extend the tip the batch is handed to the fork choice and the sync stops.
// The number of appended blocks is returned.
func (s *State) ProcessBlocks(blocks []database.Block, peerID string) (int, error) {
	s.evHandler("state: ProcessBlocks: started: blocks[%d]: peer[%s]", len(blocks), peerID)

	s.mu.Lock()
	defer s.mu.Unlock()

	var added int
	for _, block := range blocks {
		err := s.validateUpdateDatabase(block, peerID)
		switch {
		case err == nil:
			added++

		case errors.Is(err, ErrKnownBlock):

		case errors.Is(err, database.ErrChainForked):
			if !s.db.MaybeReorg(blocks) {
				s.evHandler("state: ProcessBlocks: completed: added[%d]: local chain kept", added)
				return added, err
			}

		default:
			s.evHandler("state: ProcessBlocks: completed: added[%d]: ERROR: %s", added, err)
			return added, err
		}
	}

	s.evHandler("state: ProcessBlocks: completed: added[%d]", added)

	return added, nil
}
