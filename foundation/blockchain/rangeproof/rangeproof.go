// Package rangeproof checks the range proofs attached to transaction
// outputs.
package rangeproof

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// Set of errors returned by verification.
var (
	ErrEmptyProof  = errors.New("range proof is empty")
	ErrCommitment  = errors.New("amount commitment must be 32 bytes")
	ErrProofLength = errors.New("range proof has an invalid length")
	ErrProofScalar = errors.New("range proof contains a non canonical scalar")
)

// Layout of a bulletproof in its byte encoding: four commitments to the bit
// vectors and polynomial, three scalars, then the inner product argument of
// lg(n) point pairs followed by two scalars.
const (
	elemSize    = 32
	headPoints  = 4
	headScalars = 3
	tailScalars = 2
	minRounds   = 1
	maxRounds   = 8

	// ProofSize64 is the size of a single 64 bit range proof.
	ProofSize64 = (headPoints+headScalars+tailScalars)*elemSize + 2*6*elemSize
)

// Verifier represents the capability of checking a range proof against an
// amount commitment.
type Verifier interface {
	Verify(proof, commitment []byte) error
}

// Structural checks the encoding of a bulletproof and its commitment. It
// confirms the proof has a well formed inner product argument and that
// every scalar is reduced. It does not evaluate the proof equations.
type Structural struct{}

// New constructs a structural verifier.
func New() Structural {
	return Structural{}
}

// Verify implements Verifier.
func (Structural) Verify(proof, commitment []byte) error {
	if len(proof) == 0 {
		return ErrEmptyProof
	}

	if len(commitment) != elemSize {
		return fmt.Errorf("got %d bytes: %w", len(commitment), ErrCommitment)
	}

	fixed := (headPoints + headScalars + tailScalars) * elemSize
	rest := len(proof) - fixed
	if rest < 2*minRounds*elemSize || rest%(2*elemSize) != 0 || rest/(2*elemSize) > maxRounds {
		return fmt.Errorf("got %d bytes: %w", len(proof), ErrProofLength)
	}

	scalars := make([][]byte, 0, headScalars+tailScalars)
	for i := headPoints; i < headPoints+headScalars; i++ {
		scalars = append(scalars, proof[i*elemSize:(i+1)*elemSize])
	}
	tail := len(proof) - tailScalars*elemSize
	for i := 0; i < tailScalars; i++ {
		scalars = append(scalars, proof[tail+i*elemSize:tail+(i+1)*elemSize])
	}

	for i, s := range scalars {
		if _, err := edwards25519.NewScalar().SetCanonicalBytes(s); err != nil {
			return fmt.Errorf("scalar %d: %w", i, ErrProofScalar)
		}
	}

	return nil
}
