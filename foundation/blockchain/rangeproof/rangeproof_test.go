package rangeproof_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blacksilk/node/foundation/blockchain/rangeproof"
)

func TestStructural(t *testing.T) {
	v := rangeproof.New()
	commitment := bytes.Repeat([]byte{7}, 32)
	proof := make([]byte, rangeproof.ProofSize64)

	require.NoError(t, v.Verify(proof, commitment))

	require.ErrorIs(t, v.Verify(nil, commitment), rangeproof.ErrEmptyProof)
	require.ErrorIs(t, v.Verify(proof, commitment[:31]), rangeproof.ErrCommitment)
	require.ErrorIs(t, v.Verify(proof[:len(proof)-32], commitment), rangeproof.ErrProofLength)
	require.ErrorIs(t, v.Verify(make([]byte, 9*32), commitment), rangeproof.ErrProofLength)
	require.ErrorIs(t, v.Verify(make([]byte, 9*32+2*9*32), commitment), rangeproof.ErrProofLength)

	bad := append([]byte(nil), proof...)
	for i := 4 * 32; i < 5*32; i++ {
		bad[i] = 0xff
	}
	require.ErrorIs(t, v.Verify(bad, commitment), rangeproof.ErrProofScalar)

	bad = append([]byte(nil), proof...)
	for i := len(bad) - 32; i < len(bad); i++ {
		bad[i] = 0xff
	}
	require.ErrorIs(t, v.Verify(bad, commitment), rangeproof.ErrProofScalar)
}
