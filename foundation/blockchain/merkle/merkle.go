// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and turned into generics.

// Package merkle computes merkle roots and inclusion proofs over block
// transactions.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"hash"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// Tree holds every level of a merkle tree, leaves first. A level with an
// odd number of nodes is padded by duplicating its last node.
type Tree[T Hashable[T]] struct {
	values       []T
	levels       [][][]byte
	hashStrategy func() hash.Hash
}

// WithHashStrategy is used to change the default hash strategy of using
// sha256 when constructing a new tree.
func WithHashStrategy[T Hashable[T]](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a merkle tree over the values. An empty set of values
// produces a tree with a nil root.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	t := Tree[T]{
		values:       values,
		hashStrategy: sha256.New,
	}

	for _, option := range options {
		option(&t)
	}

	if len(values) == 0 {
		return &t, nil
	}

	leaves := make([][]byte, len(values))
	for i, value := range values {
		h, err := value.Hash()
		if err != nil {
			return nil, err
		}
		leaves[i] = h
	}

	t.levels = append(t.levels, leaves)
	for level := leaves; len(level) > 1; {
		level = t.parents(level)
		t.levels = append(t.levels, level)
	}

	return &t, nil
}

// Root returns the root hash or nil for an empty tree.
func (t *Tree[T]) Root() []byte {
	if len(t.levels) == 0 {
		return nil
	}
	return t.levels[len(t.levels)-1][0]
}

// RootHex converts the merkle root byte hash to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.Root())
}

// Values returns the values the tree was built from.
func (t *Tree[T]) Values() []T {
	return t.values
}

// Proof returns the sibling hashes from the leaf of data up to the root. The
// order value for each hash is 0 when the sibling is concatenated first and
// 1 when it is concatenated second.
func (t *Tree[T]) Proof(data T) ([][]byte, []int64, error) {
	idx := -1
	for i, value := range t.values {
		if value.Equals(data) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil, errors.New("unable to find data in tree")
	}

	var proof [][]byte
	var order []int64

	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := idx ^ 1
		if sibling >= len(level) {
			sibling = idx
		}

		proof = append(proof, level[sibling])
		switch {
		case idx%2 == 0:
			order = append(order, 1)
		default:
			order = append(order, 0)
		}

		idx /= 2
	}

	return proof, order, nil
}

// VerifyProof recomputes a root from the data and its proof and compares it
// against the specified root.
func VerifyProof[T Hashable[T]](data T, proof [][]byte, order []int64, root []byte, hashStrategy func() hash.Hash) error {
	if len(proof) != len(order) {
		return errors.New("proof and order lengths differ")
	}

	if hashStrategy == nil {
		hashStrategy = sha256.New
	}

	sum, err := data.Hash()
	if err != nil {
		return err
	}

	for i, sibling := range proof {
		h := hashStrategy()
		switch order[i] {
		case 0:
			h.Write(sibling)
			h.Write(sum)
		default:
			h.Write(sum)
			h.Write(sibling)
		}
		sum = h.Sum(nil)
	}

	if !bytes.Equal(sum, root) {
		return errors.New("calculated root does not match")
	}

	return nil
}

// =============================================================================

// parents hashes each pair of nodes into the next level up.
func (t *Tree[T]) parents(level [][]byte) [][]byte {
	next := make([][]byte, 0, (len(level)+1)/2)

	for i := 0; i < len(level); i += 2 {
		right := i + 1
		if right == len(level) {
			right = i
		}

		h := t.hashStrategy()
		h.Write(level[i])
		h.Write(level[right])
		next = append(next, h.Sum(nil))
	}

	return next
}
