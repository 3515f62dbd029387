// Package validator implements the consensus checks applied to blocks and
// transactions before they enter the chain or the mempool.
package validator

import (
	"context"
	"errors"

	"github.com/blacksilk/node/foundation/blockchain/contract"
	"github.com/blacksilk/node/foundation/blockchain/database"
	"github.com/blacksilk/node/foundation/blockchain/pqsig"
	"github.com/blacksilk/node/foundation/blockchain/randomx"
	"github.com/blacksilk/node/foundation/blockchain/rangeproof"
	"github.com/blacksilk/node/foundation/blockchain/ringsig"
)

// PoWVerifier represents the capability of recomputing and scoring a block
// proof of work.
type PoWVerifier interface {
	VerifyBlockPoW(header database.BlockHeader, peerID string) (randomx.Verdict, error)
}

// Config represents the collaborators the validator checks against.
type Config struct {
	PoW         PoWVerifier
	PQ          pqsig.Verifier
	RangeProofs rangeproof.Verifier
	Contracts   contract.Parser
	EvHandler   func(v string, args ...any)
}

// Validator checks blocks and transactions. It holds no state of its own.
type Validator struct {
	pow         PoWVerifier
	pq          pqsig.Verifier
	rangeProofs rangeproof.Verifier
	contracts   contract.Parser
	evHandler   func(v string, args ...any)
}

// New constructs a validator. Missing signature and range proof verifiers
// default to the package implementations. Without a PoW verifier the proof
// of work is not checked.
func New(cfg Config) *Validator {
	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	pq := cfg.PQ
	if pq == nil {
		pq = pqsig.New()
	}

	rp := cfg.RangeProofs
	if rp == nil {
		rp = rangeproof.New()
	}

	return &Validator{
		pow:         cfg.PoW,
		pq:          pq,
		rangeProofs: rp,
		contracts:   cfg.Contracts,
		evHandler:   ev,
	}
}

// ValidateBlock checks the block shape, its place on the chain when a chain
// context is provided, its proof of work, and every transaction after the
// coinbase. Key images are checked against the chain and the earlier
// inputs of the same block only.
func (v *Validator) ValidateBlock(block database.Block, chain database.ChainContext, peerID string) error {
	if err := structure(block); err != nil {
		return err
	}

	height := block.Header.Height

	if chain != nil {
		tip := chain.Tip()

		if height != tip.Header.Height+1 {
			return newError(CategoryStructural, database.ErrNotNextBlock, "invalid block height: got %d, exp %d", height, tip.Header.Height+1)
		}

		if block.Header.PrevHash != tip.Hash() {
			return newError(CategoryStructural, database.ErrNotNextBlock, "invalid previous hash: got %s, exp %s", block.Header.PrevHash, tip.Hash())
		}

		if exp := chain.BlockReward(height); block.Coinbase.Reward != exp {
			return newError(CategoryStructural, database.ErrCoinbaseReward, "invalid coinbase reward: got %d, exp %d", block.Coinbase.Reward, exp)
		}

		if exp := chain.CalculateNextDifficulty(); block.Header.Difficulty != exp {
			v.evHandler("validator: ValidateBlock: blk[%d]: WARNING: difficulty[%d] expected[%d]", height, block.Header.Difficulty, exp)
		}
	}

	if v.pow != nil {
		if err := v.validatePoW(block.Header, peerID); err != nil {
			return err
		}
	}

	var spent database.KeyImageChecker = blockKeyImages{}
	if chain != nil {
		spent = database.KeyImageUnion{chain, spent}
	}

	seen := make(blockKeyImages)
	spent = database.KeyImageUnion{spent, seen}

	for i, tx := range block.Transactions[1:] {
		if err := v.ValidateTransaction(tx, spent); err != nil {
			var verr *Error
			if errors.As(err, &verr) {
				return newError(verr.Category, verr, "transaction %d: %s", i+1, verr.Reason)
			}
			return err
		}

		for _, ki := range tx.KeyImages() {
			seen[ki] = struct{}{}
		}
	}

	return nil
}

// ValidateTransaction checks a transaction in isolation. Key images are
// rejected if spent reports them, so callers pass the union of the chain
// and the mempool.
func (v *Validator) ValidateTransaction(tx database.Tx, spent database.KeyImageChecker) error {
	if len(tx.Outputs) == 0 || len(tx.Inputs) == 0 {
		return newError(CategoryStructural, ErrEmptyTransaction, "transaction has %d inputs and %d outputs", len(tx.Inputs), len(tx.Outputs))
	}

	local := make(blockKeyImages, len(tx.Inputs))

	for i, in := range tx.Inputs {
		ring := make([][32]byte, len(in.RingSignature.Ring))
		for j, pk := range in.RingSignature.Ring {
			ring[j] = pk
		}

		if !ringsig.Verify(tx.Extra, ring, in.RingSignature.Signature) {
			return newError(CategoryCryptographic, ErrRingSignature, "input %d: invalid ring signature", i)
		}

		if _, exists := local[in.KeyImage]; exists || (spent != nil && spent.HasKeyImage(in.KeyImage)) {
			return newError(CategoryCryptographic, ErrDoubleSpend, "input %d: double spend detected: key image %s already used", i, in.KeyImage)
		}
		local[in.KeyImage] = struct{}{}

		if q := in.RingSignature.Quantum; q != nil {
			if err := v.pq.Verify(q.Scheme, q.PublicKey, tx.Extra, q.Signature); err != nil {
				return newError(CategoryCryptographic, errors.Join(ErrQuantumSignature, err), "input %d: %s", i, err)
			}
		}
	}

	for i, out := range tx.Outputs {
		if err := v.rangeProofs.Verify(out.RangeProof, out.AmountCommitment); err != nil {
			return newError(CategoryCryptographic, errors.Join(ErrRangeProof, err), "output %d: %s", i, err)
		}
	}

	if q := tx.QuantumSignature; q != nil {
		if err := v.pq.Verify(q.Scheme, q.PublicKey, tx.Extra, q.Signature); err != nil {
			return newError(CategoryCryptographic, errors.Join(ErrQuantumSignature, err), "transaction: %s", err)
		}
	}

	return v.validateKind(tx.Kind)
}

// =============================================================================

// structure checks the shape every block must have: a coinbase without
// inputs first, then transactions with inputs and outputs.
func structure(block database.Block) error {
	if len(block.Transactions) == 0 {
		return newError(CategoryStructural, ErrNoTransactions, "block has no transactions")
	}

	if len(block.Transactions[0].Inputs) > 0 {
		return newError(CategoryStructural, ErrCoinbaseInputs, "coinbase transaction has %d inputs", len(block.Transactions[0].Inputs))
	}

	for i, tx := range block.Transactions[1:] {
		if len(tx.Inputs) == 0 || len(tx.Outputs) == 0 {
			return newError(CategoryStructural, ErrEmptyTransaction, "transaction %d has %d inputs and %d outputs", i+1, len(tx.Inputs), len(tx.Outputs))
		}
	}

	root, err := database.MerkleRoot(block.Transactions)
	if err != nil {
		return newError(CategoryStructural, ErrMerkleRoot, "merkle root: %s", err)
	}
	if root != block.Header.MerkleRoot {
		return newError(CategoryStructural, ErrMerkleRoot, "merkle root mismatch: got %s, exp %s", block.Header.MerkleRoot, root)
	}

	return nil
}

// validatePoW maps the verdict of the proof of work verifier onto a
// rejection category.
func (v *Validator) validatePoW(header database.BlockHeader, peerID string) error {
	verdict, err := v.pow.VerifyBlockPoW(header, peerID)

	switch {
	case err == nil:
		if verdict.Suspicious {
			v.evHandler("validator: ValidatePoW: blk[%d]: peer[%s]: WARNING: %s", header.Height, peerID, verdict.Reason)
		}
		return nil

	case errors.Is(err, randomx.ErrHashMismatch), errors.Is(err, randomx.ErrTargetMissed):
		return newError(CategoryPoWInvalid, err, "invalid proof of work: %s", verdict.Reason)

	case errors.Is(err, randomx.ErrHeuristic):
		return newError(CategoryPoWSuspicious, err, "suspicious proof of work: %s", verdict.Reason)

	case errors.Is(err, randomx.ErrTooFast), errors.Is(err, randomx.ErrBlacklisted):
		return newError(CategoryPoWRejected, err, "proof of work rejected: %s", verdict.Reason)
	}

	return newError(CategoryPoWInvalid, err, "proof of work: %s", err)
}

// validateKind checks the contract payload of a transaction.
func (v *Validator) validateKind(kind database.Kind) error {
	switch k := kind.(type) {
	case nil, database.Payment:
		return nil

	case database.ContractDeploy:
		if !k.Creator.IsAddress() {
			return newError(CategoryStructural, ErrContract, "invalid creator address %q", k.Creator)
		}
		if v.contracts != nil {
			if err := v.contracts.Parse(context.Background(), k.WasmCode); err != nil {
				return newError(CategoryStructural, errors.Join(ErrContract, err), "invalid WASM module: %s", err)
			}
		}
		return nil

	case database.ContractInvoke:
		if !k.ContractAddress.IsAddress() {
			return newError(CategoryStructural, ErrContract, "invalid contract address %q", k.ContractAddress)
		}
		if k.Function == "" {
			return newError(CategoryStructural, ErrContract, "empty function name")
		}
		return nil
	}

	return newError(CategoryStructural, ErrContract, "unknown transaction kind %T", kind)
}

// blockKeyImages is a set of key images seen while validating.
type blockKeyImages map[database.KeyImage]struct{}

func (b blockKeyImages) HasKeyImage(ki database.KeyImage) bool {
	_, exists := b[ki]
	return exists
}
