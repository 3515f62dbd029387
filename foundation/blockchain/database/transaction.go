package database

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Set of transaction kind tags used on the wire.
const (
	KindPayment = "payment"
	KindDeploy  = "deploy"
	KindInvoke  = "invoke"
)

// Kind identifies what a transaction does beyond moving value. The set of
// kinds is closed: Payment, ContractDeploy and ContractInvoke.
type Kind interface {
	kind() string
}

// Payment is a plain value transfer.
type Payment struct{}

func (Payment) kind() string { return KindPayment }

// ContractDeploy publishes a WASM module on chain.
type ContractDeploy struct {
	WasmCode hexutil.Bytes     `json:"wasm_code"`
	Creator  Address           `json:"creator"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (ContractDeploy) kind() string { return KindDeploy }

// ContractInvoke calls a function on a deployed contract.
type ContractInvoke struct {
	ContractAddress Address           `json:"contract_address"`
	Function        string            `json:"function"`
	Params          hexutil.Bytes     `json:"params"`
	Caller          Address           `json:"caller"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

func (ContractInvoke) kind() string { return KindInvoke }

// KindName returns the wire tag of the kind, treating nil as a payment.
func KindName(k Kind) string {
	if k == nil {
		return KindPayment
	}
	return k.kind()
}

// =============================================================================

// QuantumSignature is a post-quantum signature over the transaction extra
// field, tagged with the scheme that produced it.
type QuantumSignature struct {
	Scheme    string        `json:"scheme"`
	PublicKey hexutil.Bytes `json:"public_key"`
	Signature hexutil.Bytes `json:"signature"`
}

// RingSignature proves one key in the ring authorized the input without
// revealing which.
type RingSignature struct {
	Ring      []PublicKey       `json:"ring"`
	Signature hexutil.Bytes     `json:"signature"`
	Quantum   *QuantumSignature `json:"quantum,omitempty"`
}

// TxInput spends a previous output.
type TxInput struct {
	KeyImage      KeyImage      `json:"key_image"`
	RingSignature RingSignature `json:"ring_signature"`
}

// StealthAddress is a one-time destination. ViewKey carries the transaction
// public key R and SpendKey the one-time output key P.
type StealthAddress struct {
	ViewKey  PublicKey `json:"view_key"`
	SpendKey PublicKey `json:"spend_key"`
}

// TxOutput is a hidden amount paid to a stealth address.
type TxOutput struct {
	AmountCommitment hexutil.Bytes  `json:"amount_commitment"`
	StealthAddress   StealthAddress `json:"stealth_address"`
	RangeProof       hexutil.Bytes  `json:"range_proof"`
}

// =============================================================================

// Tx is the transactional information carried in blocks and the mempool.
type Tx struct {
	Kind             Kind              `json:"-"`
	Inputs           []TxInput         `json:"inputs"`
	Outputs          []TxOutput        `json:"outputs"`
	Fee              uint64            `json:"fee"`
	Extra            hexutil.Bytes     `json:"extra"`
	QuantumSignature *QuantumSignature `json:"quantum_signature,omitempty"`
}

// NewCoinbaseTx constructs the implicit first transaction of a block.
func NewCoinbaseTx(height uint64, to Address) Tx {
	return Tx{
		Kind:  Payment{},
		Extra: []byte(fmt.Sprintf("coinbase:%d:%s", height, to)),
	}
}

// kindJSON is the tagged form of a transaction kind.
type kindJSON struct {
	Type   string          `json:"type"`
	Deploy *ContractDeploy `json:"deploy,omitempty"`
	Invoke *ContractInvoke `json:"invoke,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (tx Tx) MarshalJSON() ([]byte, error) {
	type plain Tx

	k := kindJSON{Type: KindName(tx.Kind)}
	switch v := tx.Kind.(type) {
	case ContractDeploy:
		k.Deploy = &v
	case ContractInvoke:
		k.Invoke = &v
	}

	return json.Marshal(struct {
		Kind kindJSON `json:"kind"`
		plain
	}{
		Kind:  k,
		plain: plain(tx),
	})
}

// UnmarshalJSON implements json.Unmarshaler. A missing kind decodes as a
// payment.
func (tx *Tx) UnmarshalJSON(data []byte) error {
	type plain Tx

	var v struct {
		Kind *kindJSON `json:"kind"`
		plain
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	*tx = Tx(v.plain)
	tx.Kind = Payment{}

	if v.Kind == nil {
		return nil
	}

	switch v.Kind.Type {
	case "", KindPayment:
	case KindDeploy:
		if v.Kind.Deploy == nil {
			return fmt.Errorf("deploy transaction is missing its deploy body")
		}
		tx.Kind = *v.Kind.Deploy
	case KindInvoke:
		if v.Kind.Invoke == nil {
			return fmt.Errorf("invoke transaction is missing its invoke body")
		}
		tx.Kind = *v.Kind.Invoke
	default:
		return fmt.Errorf("unknown transaction kind %q", v.Kind.Type)
	}

	return nil
}

// Hash implements the merkle Hashable interface. It is the keccak256 of the
// transaction JSON encoding.
func (tx Tx) Hash() ([]byte, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}

	return crypto.Keccak256(data), nil
}

// ID returns the transaction hash, or the zero hash when the transaction
// cannot be encoded.
func (tx Tx) ID() Hash {
	b, err := tx.Hash()
	if err != nil {
		return ZeroHash
	}

	var h Hash
	copy(h[:], b)
	return h
}

// Equals implements the merkle Hashable interface.
func (tx Tx) Equals(otherTx Tx) bool {
	return tx.ID() == otherTx.ID()
}

// KeyImages returns the key images of every input.
func (tx Tx) KeyImages() []KeyImage {
	kis := make([]KeyImage, len(tx.Inputs))
	for i, in := range tx.Inputs {
		kis[i] = in.KeyImage
	}
	return kis
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:%s:in[%d]:out[%d]:fee[%d]", tx.ID(), KindName(tx.Kind), len(tx.Inputs), len(tx.Outputs), tx.Fee)
}
