// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/keyimage"
	"github.com/blacksilk/node/foundation/blockchain/mempool/selector"
)

// List of duplicate handling policies.
const (
	DedupNone        = "none"
	DedupPayloadHash = "payload-hash"
)

// Set of errors returned when a transaction is not pooled.
var (
	ErrDuplicate        = errors.New("transaction already in mempool")
	ErrKeyImageConflict = errors.New("key image already spent by a pooled transaction")
)

// Config represents the mempool settings.
type Config struct {
	Strategy string
	Dedup    string
}

// Mempool represents a cache of pending transactions in arrival order
// with a second index on the key images they spend. Pooled transactions
// are identified by their hash; under the none policy several entries may
// share a hash.
type Mempool struct {
	mu        sync.RWMutex
	pool      map[uint64]selector.Entry
	hashes    map[database.Hash]int
	keyImages *keyimage.Index
	arrival   uint64
	dedup     string
	selectFn  selector.Func
}

// New constructs a new mempool using the default configuration.
func New() (*Mempool, error) {
	return NewWithConfig(Config{})
}

// NewWithConfig constructs a new mempool with the specified select strategy
// and duplicate policy.
func NewWithConfig(cfg Config) (*Mempool, error) {
	if cfg.Strategy == "" {
		cfg.Strategy = selector.StrategyFee
	}

	switch cfg.Dedup {
	case "":
		cfg.Dedup = DedupNone
	case DedupNone, DedupPayloadHash:
	default:
		return nil, fmt.Errorf("dedup policy %q does not exist", cfg.Dedup)
	}

	selectFn, err := selector.Retrieve(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:      make(map[uint64]selector.Entry),
		hashes:    make(map[database.Hash]int),
		keyImages: keyimage.New(),
		dedup:     cfg.Dedup,
		selectFn:  selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Add inserts a transaction that has already been validated. A transaction
// spending a key image held by a different pooled payload is rejected, the
// check and the insert happen under the same lock.
func (mp *Mempool) Add(tx database.Tx) (int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	hash := tx.ID()
	if mp.dedup == DedupPayloadHash && mp.hashes[hash] > 0 {
		return len(mp.pool), fmt.Errorf("%s: %w", hash, ErrDuplicate)
	}

	if err := mp.conflict(tx, hash); err != nil {
		return len(mp.pool), err
	}

	mp.add(tx, hash)

	return len(mp.pool), nil
}

// Upsert inserts a transaction learned from a peer unless one with the same
// hash is already pooled, whatever the dedup policy. Key image conflicts are
// rejected as in Add.
func (mp *Mempool) Upsert(tx database.Tx) (int, bool, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	hash := tx.ID()
	if mp.hashes[hash] > 0 {
		return len(mp.pool), false, nil
	}

	if err := mp.conflict(tx, hash); err != nil {
		return len(mp.pool), false, err
	}

	mp.add(tx, hash)

	return len(mp.pool), true, nil
}

// Delete removes every pooled transaction with the specified hash.
func (mp *Mempool) Delete(hash database.Hash) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	var removed int
	for key, entry := range mp.pool {
		if entry.Hash == hash {
			mp.remove(key, entry)
			removed++
		}
	}

	return removed
}

// EvictMined removes the transactions included in the block along with any
// pooled transaction spending a key image the block spent.
func (mp *Mempool) EvictMined(block database.Block) int {
	mined := make(map[database.Hash]struct{}, len(block.Transactions))
	for _, tx := range block.Transactions {
		mined[tx.ID()] = struct{}{}
	}

	spent := make(map[database.KeyImage]struct{})
	for _, ki := range block.KeyImages() {
		spent[ki] = struct{}{}
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	var removed int
	for key, entry := range mp.pool {
		_, evict := mined[entry.Hash]
		for _, ki := range entry.Tx.KeyImages() {
			if _, exists := spent[ki]; exists {
				evict = true
				break
			}
		}

		if evict {
			mp.remove(key, entry)
			removed++
		}
	}

	return removed
}

// Contains reports whether a transaction with the hash is pooled.
func (mp *Mempool) Contains(hash database.Hash) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.hashes[hash] > 0
}

// HasKeyImage implements database.KeyImageChecker.
func (mp *Mempool) HasKeyImage(ki database.KeyImage) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.keyImages.Contains(ki)
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[uint64]selector.Entry)
	mp.hashes = make(map[database.Hash]int)
	mp.keyImages.Reset()
}

// Copy returns a list of the current transactions in arrival order.
func (mp *Mempool) Copy() []database.Tx {
	fifo, _ := selector.Retrieve(selector.StrategyFIFO)
	return fifo(mp.entries(), -1)
}

// PickBest uses the configured sort strategy to return the next set
// of transactions for the next block. Pass -1 for all of them. A
// transaction spending a key image already picked is skipped so the set
// never double spends within a block.
func (mp *Mempool) PickBest(howMany int) []database.Tx {
	if howMany == 0 {
		return []database.Tx{}
	}

	ordered := mp.selectFn(mp.entries(), -1)

	used := make(map[database.KeyImage]struct{})
	final := make([]database.Tx, 0, len(ordered))

next:
	for _, tx := range ordered {
		kis := tx.KeyImages()
		for _, ki := range kis {
			if _, exists := used[ki]; exists {
				continue next
			}
		}
		for _, ki := range kis {
			used[ki] = struct{}{}
		}

		final = append(final, tx)
		if howMany > 0 && len(final) == howMany {
			break
		}
	}

	return final
}

// =============================================================================

func (mp *Mempool) entries() []selector.Entry {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	entries := make([]selector.Entry, 0, len(mp.pool))
	for _, entry := range mp.pool {
		entries = append(entries, entry)
	}
	return entries
}

// conflict reports a key image of tx held by a pooled transaction with a
// different hash. Copies of the same payload share their key images. It
// expects the write lock to be held.
func (mp *Mempool) conflict(tx database.Tx, hash database.Hash) error {
	if mp.hashes[hash] > 0 {
		return nil
	}

	for _, ki := range tx.KeyImages() {
		if mp.keyImages.Contains(ki) {
			return fmt.Errorf("key image %s: %w", ki, ErrKeyImageConflict)
		}
	}

	return nil
}

// add expects the write lock to be held.
func (mp *Mempool) add(tx database.Tx, hash database.Hash) {
	mp.arrival++
	mp.pool[mp.arrival] = selector.Entry{Tx: tx, Hash: hash, Arrival: mp.arrival}
	mp.hashes[hash]++

	for _, ki := range tx.KeyImages() {
		mp.keyImages.Add(ki)
	}
}

// remove expects the write lock to be held.
func (mp *Mempool) remove(key uint64, entry selector.Entry) {
	delete(mp.pool, key)

	if mp.hashes[entry.Hash]--; mp.hashes[entry.Hash] <= 0 {
		delete(mp.hashes, entry.Hash)
	}

	for _, ki := range entry.Tx.KeyImages() {
		mp.keyImages.Remove(ki)
	}
}
