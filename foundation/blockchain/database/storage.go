package database

import "errors"

// ErrBlockNotFound is returned when a height is beyond the stored chain.
var ErrBlockNotFound = errors.New("block not found")

// ChainStore represents the behavior required to be implemented by any
// package providing support for holding the ordered block history.
type ChainStore interface {
	Append(block Block) error
	Block(height uint64) (Block, error)
	Range(from uint64) []Block
	Len() uint64
}

// ForkChoice represents the behavior required to decide whether a longer
// competing chain should replace the local one.
type ForkChoice interface {
	MaybeReorg(localHeight uint64, incoming []Block) bool
}

// =============================================================================

// NoReorg is the fork choice used by the node. It never replaces the local
// chain.
type NoReorg struct {
	EvHandler func(v string, args ...any)
}

// MaybeReorg logs the longer chain and reports that no reorganization took
// place.
func (nr NoReorg) MaybeReorg(localHeight uint64, incoming []Block) bool {
	if nr.EvHandler != nil && len(incoming) > 0 {
		nr.EvHandler("database: MaybeReorg: reorganization not implemented: local[%d] incoming[%d]", localHeight, incoming[len(incoming)-1].Header.Height)
	}
	return false
}
