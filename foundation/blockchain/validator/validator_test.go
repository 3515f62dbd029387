package validator_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blacksilk/node/foundation/blockchain/contract"
	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/database/storage/memory"
	"github.com/blacksilk/node/foundation/blockchain/genesis"
	"github.com/blacksilk/node/foundation/blockchain/pqsig"
	"github.com/blacksilk/node/foundation/blockchain/randomx"
	"github.com/blacksilk/node/foundation/blockchain/rangeproof"
	"github.com/blacksilk/node/foundation/blockchain/ringsig"
	"github.com/blacksilk/node/foundation/blockchain/validator"
)

// fakePoW returns a fixed verdict and records the peers it saw.
type fakePoW struct {
	verdict randomx.Verdict
	err     error
	peers   []string
}

func (f *fakePoW) VerifyBlockPoW(header database.BlockHeader, peerID string) (randomx.Verdict, error) {
	f.peers = append(f.peers, peerID)
	return f.verdict, f.err
}

type spentSet map[database.KeyImage]bool

func (s spentSet) HasKeyImage(ki database.KeyImage) bool {
	return s[ki]
}

// signedTx builds a payment spending a fresh key from a ring of three.
func signedTx(t *testing.T, extra string) database.Tx {
	t.Helper()

	var (
		ring   = make([]database.PublicKey, 3)
		keys   = make([][32]byte, 3)
		signer [32]byte
	)
	for i := range ring {
		sk, pk, err := ringsig.GenerateKey()
		require.NoError(t, err)
		ring[i], keys[i] = pk, pk
		if i == 1 {
			signer = sk
		}
	}

	sig, err := ringsig.Sign([]byte(extra), keys, signer, 1)
	require.NoError(t, err)

	ki, err := ringsig.KeyImage(signer)
	require.NoError(t, err)

	oneTime, txPub, err := ringsig.DeriveStealth(keys[0], keys[2])
	require.NoError(t, err)

	return database.Tx{
		Kind: database.Payment{},
		Inputs: []database.TxInput{{
			KeyImage: ki,
			RingSignature: database.RingSignature{
				Ring:      ring,
				Signature: sig,
			},
		}},
		Outputs: []database.TxOutput{{
			AmountCommitment: bytes.Repeat([]byte{9}, 32),
			StealthAddress:   database.StealthAddress{ViewKey: txPub, SpendKey: oneTime},
			RangeProof:       make([]byte, rangeproof.ProofSize64),
		}},
		Fee:   10,
		Extra: []byte(extra),
	}
}

// nextBlock builds a block on the tip of db carrying txs after the coinbase.
func nextBlock(t *testing.T, db *database.Database, txs ...database.Tx) database.Block {
	t.Helper()

	tip := db.Tip()
	height := tip.Header.Height + 1
	to := database.GenesisAddress()

	all := append([]database.Tx{database.NewCoinbaseTx(height, to)}, txs...)
	root, err := database.MerkleRoot(all)
	require.NoError(t, err)

	return database.Block{
		Header: database.BlockHeader{
			Version:    database.BlockVersion,
			PrevHash:   tip.Hash(),
			MerkleRoot: root,
			Timestamp:  tip.Header.Timestamp + 120,
			Height:     height,
			Difficulty: db.CalculateNextDifficulty(),
			Pow:        database.Pow{Nonce: 1, Hash: database.Hash{byte(height), 0xaa}},
		},
		Coinbase:     database.Coinbase{Reward: db.BlockReward(height), To: to},
		Transactions: all,
	}
}

func newChain(t *testing.T) *database.Database {
	t.Helper()

	db, err := database.New(genesis.Testnet(), memory.New(), nil, nil)
	require.NoError(t, err)
	return db
}

// =============================================================================

func TestValidateTransaction(t *testing.T) {
	v := validator.New(validator.Config{})

	tx := signedTx(t, "pay bob")
	require.NoError(t, v.ValidateTransaction(tx, nil))

	t.Run("no outputs", func(t *testing.T) {
		bad := tx
		bad.Outputs = nil
		err := v.ValidateTransaction(bad, nil)
		require.ErrorIs(t, err, validator.ErrEmptyTransaction)
		require.Equal(t, validator.CategoryStructural, validator.CategoryOf(err))
	})

	t.Run("tampered extra", func(t *testing.T) {
		bad := tx
		bad.Extra = []byte("pay mallory")
		err := v.ValidateTransaction(bad, nil)
		require.ErrorIs(t, err, validator.ErrRingSignature)
		require.Equal(t, validator.CategoryCryptographic, validator.CategoryOf(err))
	})

	t.Run("empty range proof", func(t *testing.T) {
		bad := tx
		bad.Outputs = []database.TxOutput{tx.Outputs[0]}
		bad.Outputs[0].RangeProof = nil
		err := v.ValidateTransaction(bad, nil)
		require.ErrorIs(t, err, validator.ErrRangeProof)
		require.ErrorIs(t, err, rangeproof.ErrEmptyProof)
	})

	t.Run("spent key image", func(t *testing.T) {
		err := v.ValidateTransaction(tx, spentSet{tx.Inputs[0].KeyImage: true})
		require.ErrorIs(t, err, validator.ErrDoubleSpend)
		require.Contains(t, err.Error(), "double spend")
	})

	t.Run("key image reused inside the transaction", func(t *testing.T) {
		bad := tx
		bad.Inputs = []database.TxInput{tx.Inputs[0], tx.Inputs[0]}
		require.ErrorIs(t, v.ValidateTransaction(bad, nil), validator.ErrDoubleSpend)
	})
}

func TestDoubleSpend(t *testing.T) {
	v := validator.New(validator.Config{})

	first := signedTx(t, "first")
	second := signedTx(t, "second")
	second.Inputs[0].KeyImage = first.Inputs[0].KeyImage

	spent := spentSet{}
	require.NoError(t, v.ValidateTransaction(first, spent))
	spent[first.Inputs[0].KeyImage] = true

	err := v.ValidateTransaction(second, spent)
	require.ErrorIs(t, err, validator.ErrDoubleSpend)
}

func TestQuantumSignatures(t *testing.T) {
	v := validator.New(validator.Config{})

	tx := signedTx(t, "quantum")

	pub, priv, err := pqsig.GenerateKey(pqsig.SchemeMLDSA44)
	require.NoError(t, err)

	sig, err := pqsig.Sign(pqsig.SchemeMLDSA44, priv, tx.Extra)
	require.NoError(t, err)

	tx.QuantumSignature = &database.QuantumSignature{Scheme: pqsig.SchemeMLDSA44, PublicKey: pub, Signature: sig}
	require.NoError(t, v.ValidateTransaction(tx, nil))

	tx.Inputs[0].RingSignature.Quantum = &database.QuantumSignature{Scheme: pqsig.SchemeFalcon512, PublicKey: pub, Signature: sig}
	err = v.ValidateTransaction(tx, nil)
	require.ErrorIs(t, err, validator.ErrQuantumSignature)
	require.ErrorIs(t, err, pqsig.ErrUnsupportedScheme)

	tx.Inputs[0].RingSignature.Quantum = nil
	tx.QuantumSignature.Signature = append([]byte(nil), sig...)
	tx.QuantumSignature.Signature[0] ^= 1
	require.ErrorIs(t, v.ValidateTransaction(tx, nil), validator.ErrQuantumSignature)
}

func TestContractKinds(t *testing.T) {
	ctx := context.Background()
	registry := contract.New(ctx, nil)
	defer registry.Close(ctx)

	v := validator.New(validator.Config{Contracts: registry})
	module := []byte("\x00asm\x01\x00\x00\x00")

	tests := []struct {
		name string
		kind database.Kind
		err  error
	}{
		{"deploy", database.ContractDeploy{WasmCode: module, Creator: database.GenesisAddress()}, nil},
		{"deploy bad module", database.ContractDeploy{WasmCode: []byte("not wasm"), Creator: database.GenesisAddress()}, validator.ErrContract},
		{"deploy bad creator", database.ContractDeploy{WasmCode: module, Creator: "alice"}, validator.ErrContract},
		{"invoke", database.ContractInvoke{ContractAddress: contract.AddressOf(module), Function: "run", Caller: database.GenesisAddress()}, nil},
		{"invoke no function", database.ContractInvoke{ContractAddress: contract.AddressOf(module)}, validator.ErrContract},
		{"invoke bad address", database.ContractInvoke{ContractAddress: "0x12", Function: "run"}, validator.ErrContract},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := signedTx(t, tt.name)
			tx.Kind = tt.kind

			err := v.ValidateTransaction(tx, nil)
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
			require.Equal(t, validator.CategoryStructural, validator.CategoryOf(err))
		})
	}
}

func TestValidateBlockStructure(t *testing.T) {
	v := validator.New(validator.Config{})
	db := newChain(t)

	block := nextBlock(t, db, signedTx(t, "a"))
	require.NoError(t, v.ValidateBlock(block, db, ""))
	require.NoError(t, v.ValidateBlock(block, nil, ""))

	empty := block
	empty.Transactions = nil
	require.ErrorIs(t, v.ValidateBlock(empty, nil, ""), validator.ErrNoTransactions)

	coinbase := nextBlock(t, db, signedTx(t, "b"))
	coinbase.Transactions[0].Inputs = coinbase.Transactions[1].Inputs
	require.ErrorIs(t, v.ValidateBlock(coinbase, nil, ""), validator.ErrCoinbaseInputs)

	noInputs := signedTx(t, "c")
	noInputs.Inputs = nil
	require.ErrorIs(t, v.ValidateBlock(nextBlock(t, db, noInputs), nil, ""), validator.ErrEmptyTransaction)

	root := nextBlock(t, db, signedTx(t, "d"))
	root.Header.MerkleRoot = database.Hash{1}
	require.ErrorIs(t, v.ValidateBlock(root, nil, ""), validator.ErrMerkleRoot)
}

func TestValidateBlockChain(t *testing.T) {
	db := newChain(t)

	var warnings []string
	v := validator.New(validator.Config{
		EvHandler: func(s string, args ...any) { warnings = append(warnings, s) },
	})

	height := nextBlock(t, db)
	height.Header.Height = 5
	require.ErrorIs(t, v.ValidateBlock(height, db, ""), database.ErrNotNextBlock)

	prev := nextBlock(t, db)
	prev.Header.PrevHash = database.Hash{7}
	require.ErrorIs(t, v.ValidateBlock(prev, db, ""), database.ErrNotNextBlock)

	reward := nextBlock(t, db)
	reward.Coinbase.Reward++
	require.ErrorIs(t, v.ValidateBlock(reward, db, ""), database.ErrCoinbaseReward)

	difficulty := nextBlock(t, db)
	difficulty.Header.Difficulty = 99
	require.NoError(t, v.ValidateBlock(difficulty, db, ""), "a difficulty mismatch only warns")
	require.Len(t, warnings, 1)
}

func TestValidateBlockKeyImages(t *testing.T) {
	v := validator.New(validator.Config{})
	db := newChain(t)

	first := signedTx(t, "first")
	block := nextBlock(t, db, first)
	require.NoError(t, db.AddBlock(block, func(b database.Block, c database.ChainContext) error {
		return v.ValidateBlock(b, c, "")
	}, nil))

	again := signedTx(t, "again")
	again.Inputs[0].KeyImage = first.Inputs[0].KeyImage
	err := v.ValidateBlock(nextBlock(t, db, again), db, "")
	require.ErrorIs(t, err, validator.ErrDoubleSpend)
	require.Contains(t, err.Error(), "transaction 1")

	a := signedTx(t, "a")
	b := signedTx(t, "b")
	b.Inputs[0].KeyImage = a.Inputs[0].KeyImage
	require.ErrorIs(t, v.ValidateBlock(nextBlock(t, db, a, b), db, ""), validator.ErrDoubleSpend)
}

func TestValidateBlockPoW(t *testing.T) {
	db := newChain(t)

	tests := []struct {
		name     string
		verdict  randomx.Verdict
		err      error
		category validator.Category
	}{
		{"valid", randomx.Verdict{Valid: true, Class: randomx.ClassNormal}, nil, ""},
		{"flagged", randomx.Verdict{Valid: true, Suspicious: true, Class: randomx.ClassSlow}, nil, ""},
		{"mismatch", randomx.Verdict{Class: randomx.ClassInvalid}, randomx.ErrHashMismatch, validator.CategoryPoWInvalid},
		{"target", randomx.Verdict{Class: randomx.ClassInvalid}, randomx.ErrTargetMissed, validator.CategoryPoWInvalid},
		{"heuristic", randomx.Verdict{Class: randomx.ClassHeuristic}, randomx.ErrHeuristic, validator.CategoryPoWSuspicious},
		{"extreme", randomx.Verdict{Class: randomx.ClassExtreme}, randomx.ErrTooFast, validator.CategoryPoWRejected},
		{"blacklisted", randomx.Verdict{Class: randomx.ClassBlacklisted}, randomx.ErrBlacklisted, validator.CategoryPoWRejected},
		{"other", randomx.Verdict{}, errors.New("boom"), validator.CategoryPoWInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pow := fakePoW{verdict: tt.verdict, err: tt.err}
			v := validator.New(validator.Config{PoW: &pow})

			err := v.ValidateBlock(nextBlock(t, db), db, "peer-1")
			require.Equal(t, []string{"peer-1"}, pow.peers)

			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
			require.Equal(t, tt.category, validator.CategoryOf(err))
		})
	}
}
