// Package memory implements the in-memory chain store. Chain data lives for
// the lifetime of the process.
package memory

import (
	"fmt"
	"sync"

	"github.com/blacksilk/node/foundation/blockchain/database"
)

// Memory represents the storage implementation for holding blocks in a
// slice. This implements the database.ChainStore interface.
type Memory struct {
	mu     sync.RWMutex
	blocks []database.Block
}

// New constructs an empty store.
func New() *Memory {
	return &Memory{}
}

// Append adds the block to the end of the chain. The block must carry the
// next height.
func (m *Memory) Append(block database.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if block.Header.Height != uint64(len(m.blocks)) {
		return fmt.Errorf("appending height %d to a store of %d blocks", block.Header.Height, len(m.blocks))
	}

	m.blocks = append(m.blocks, block)
	return nil
}

// Block returns the block at the specified height.
func (m *Memory) Block(height uint64) (database.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if height >= uint64(len(m.blocks)) {
		return database.Block{}, fmt.Errorf("height %d: %w", height, database.ErrBlockNotFound)
	}

	return m.blocks[height], nil
}

// Range returns a copy of every block at or above the specified height.
func (m *Memory) Range(from uint64) []database.Block {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if from >= uint64(len(m.blocks)) {
		return nil
	}

	blocks := make([]database.Block, len(m.blocks)-int(from))
	copy(blocks, m.blocks[from:])
	return blocks
}

// Len returns the number of stored blocks.
func (m *Memory) Len() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return uint64(len(m.blocks))
}
