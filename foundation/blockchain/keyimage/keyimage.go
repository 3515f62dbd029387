// Package keyimage maintains an incremental index of spent key images so
// double-spend checks are a map lookup instead of a scan.
package keyimage

import "sync"

// Index tracks key images with a reference count. A key image referenced by
// more than one holder stays indexed until every holder has removed it.
type Index struct {
	mu sync.RWMutex
	m  map[[32]byte]int
}

// New constructs an empty index.
func New() *Index {
	return &Index{
		m: make(map[[32]byte]int),
	}
}

// Add indexes the key image and reports whether it was not present before.
func (idx *Index) Add(ki [32]byte) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.m[ki]++
	return idx.m[ki] == 1
}

// Remove drops one reference to the key image.
func (idx *Index) Remove(ki [32]byte) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	switch n := idx.m[ki]; {
	case n <= 1:
		delete(idx.m, ki)
	default:
		idx.m[ki] = n - 1
	}
}

// Contains reports whether the key image is indexed.
func (idx *Index) Contains(ki [32]byte) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	_, exists := idx.m[ki]
	return exists
}

// Len returns the number of distinct key images.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.m)
}

// Reset clears the index.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.m = make(map[[32]byte]int)
}
