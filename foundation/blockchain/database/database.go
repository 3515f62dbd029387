// Package database handles all the lower level support for maintaining the
// ordered block history, the key images it has spent, and the reward and
// difficulty rules derived from it.
package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blacksilk/node/foundation/blockchain/genesis"
	"github.com/blacksilk/node/foundation/blockchain/keyimage"
)

// Set of errors returned when a block can't be added to the chain.
var (
	ErrChainForked    = errors.New("blockchain forked, start resync")
	ErrNotNextBlock   = errors.New("block does not extend the tip")
	ErrCoinbaseReward = errors.New("coinbase reward does not match the emission schedule")
)

// KeyImageChecker represents anything that can report a spent key image.
type KeyImageChecker interface {
	HasKeyImage(ki KeyImage) bool
}

// KeyImageUnion reports a key image as spent if any member has it.
type KeyImageUnion []KeyImageChecker

// HasKeyImage implements KeyImageChecker.
func (u KeyImageUnion) HasKeyImage(ki KeyImage) bool {
	for _, c := range u {
		if c != nil && c.HasKeyImage(ki) {
			return true
		}
	}
	return false
}

// ChainContext is the read view of the chain a block is validated against.
type ChainContext interface {
	KeyImageChecker
	Tip() Block
	BlockReward(height uint64) uint64
	CalculateNextDifficulty() uint64
}

// BlockValidator checks a block before it is appended.
type BlockValidator func(block Block, chain ChainContext) error

// ContractEffects applies the contract side effects of an accepted block.
type ContractEffects interface {
	ApplyBlock(block Block) error
}

// =============================================================================

// Database manages the chain of blocks and the key images they spend.
type Database struct {
	mu sync.RWMutex

	genesis   genesis.Genesis
	store     ChainStore
	fork      ForkChoice
	keyImages *keyimage.Index
	evHandler func(v string, args ...any)

	// difficulty is the value the retarget rule computed for the tip.
	difficulty uint64
}

// New constructs a database over the store, seeding it with the genesis
// block when the store is empty.
func New(gen genesis.Genesis, store ChainStore, fork ForkChoice, evHandler func(v string, args ...any)) (*Database, error) {
	if evHandler == nil {
		evHandler = func(v string, args ...any) {}
	}

	if fork == nil {
		fork = NoReorg{EvHandler: evHandler}
	}

	db := Database{
		genesis:   gen,
		store:     store,
		fork:      fork,
		keyImages: keyimage.New(),
		evHandler: evHandler,
	}

	if store.Len() == 0 {
		if err := store.Append(GenesisBlock(gen)); err != nil {
			return nil, fmt.Errorf("seeding genesis: %w", err)
		}
	}

	var prev Block
	for i, block := range store.Range(0) {
		switch i {
		case 0:
			db.difficulty = block.Header.Difficulty
		default:
			db.difficulty = db.difficultyAfter(prev, db.difficulty)
		}
		prev = block

		for _, ki := range block.KeyImages() {
			db.keyImages.Add(ki)
		}
	}

	return &db, nil
}

// Genesis returns the network profile the chain runs under.
func (db *Database) Genesis() genesis.Genesis {
	return db.genesis
}

// Tip returns the latest block.
func (db *Database) Tip() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.tip()
}

// Height returns the height of the latest block.
func (db *Database) Height() uint64 {
	return db.Tip().Header.Height
}

// BlockReward returns the coinbase reward for the specified height.
func (db *Database) BlockReward(height uint64) uint64 {
	return db.genesis.BlockReward(height)
}

// CalculateNextDifficulty returns the difficulty the next block must carry.
func (db *Database) CalculateNextDifficulty() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.nextDifficulty()
}

// HasKeyImage reports whether a block in the chain spent the key image.
func (db *Database) HasKeyImage(ki KeyImage) bool {
	return db.keyImages.Contains(ki)
}

// KeyImageCount returns the number of key images spent on chain.
func (db *Database) KeyImageCount() int {
	return db.keyImages.Len()
}

// QueryBlock returns the block at the specified height.
func (db *Database) QueryBlock(height uint64) (Block, error) {
	return db.store.Block(height)
}

// QueryBlocksFrom returns every block at or above the specified height.
func (db *Database) QueryBlocksFrom(height uint64) []Block {
	return db.store.Range(height)
}

// MaybeReorg hands a competing chain to the fork choice.
func (db *Database) MaybeReorg(incoming []Block) bool {
	return db.fork.MaybeReorg(db.Height(), incoming)
}

// AddBlock validates the block against the current tip and appends it.
// The expected coinbase reward is recomputed before the validator runs and
// contract effects are applied once the block is part of the chain.
func (db *Database) AddBlock(block Block, validate BlockValidator, effects ContractEffects) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tip := db.tip()
	if block.Header.Height != tip.Header.Height+1 || block.Header.PrevHash != tip.Hash() {
		return fmt.Errorf("block[%d] prev[%s], tip[%d] hash[%s]: %w", block.Header.Height, block.Header.PrevHash, tip.Header.Height, tip.Hash(), ErrNotNextBlock)
	}

	if exp := db.genesis.BlockReward(block.Header.Height); block.Coinbase.Reward != exp {
		return fmt.Errorf("got %d, exp %d: %w", block.Coinbase.Reward, exp, ErrCoinbaseReward)
	}

	if validate != nil {
		if err := validate(block, chainView{db: db}); err != nil {
			return err
		}
	}

	expected := db.difficultyAfter(tip, db.difficulty)

	if err := db.store.Append(block); err != nil {
		return err
	}
	db.difficulty = expected

	for _, ki := range block.KeyImages() {
		db.keyImages.Add(ki)
	}

	db.evHandler("database: AddBlock: blk[%d]: hash[%s]: txs[%d]", block.Header.Height, block.Hash(), len(block.Transactions))

	if effects != nil {
		if err := effects.ApplyBlock(block); err != nil {
			db.evHandler("database: AddBlock: blk[%d]: contract effects: ERROR: %s", block.Header.Height, err)
		}
	}

	return nil
}

// =============================================================================

// tip returns the latest block. The store always holds the genesis block.
func (db *Database) tip() Block {
	block, err := db.store.Block(db.store.Len() - 1)
	if err != nil {
		return GenesisBlock(db.genesis)
	}
	return block
}

// chainView gives the validator read access to the chain while AddBlock
// holds the write lock.
type chainView struct {
	db *Database
}

func (v chainView) Tip() Block                       { return v.db.tip() }
func (v chainView) BlockReward(height uint64) uint64 { return v.db.genesis.BlockReward(height) }
func (v chainView) CalculateNextDifficulty() uint64  { return v.db.nextDifficulty() }
func (v chainView) HasKeyImage(ki KeyImage) bool     { return v.db.keyImages.Contains(ki) }
