package database

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Hash represents a 32 byte value such as a block hash, a merkle root,
// a public key or a key image.
type Hash [32]byte

// ZeroHash represents a hash of all zeros.
var ZeroHash Hash

// KeyImage is the one-time tag an input uses to prevent a double spend.
type KeyImage = Hash

// PublicKey is a compressed edwards25519 point.
type PublicKey = Hash

// ToHash decodes a 0x prefixed hex string into a hash.
func ToHash(s string) (Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Hash{}, err
	}

	if len(b) != len(Hash{}) {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", len(Hash{}), len(b))
	}

	var h Hash
	copy(h[:], b)
	return h, nil
}

// String implements the fmt.Stringer interface.
func (h Hash) String() string {
	return hexutil.Encode(h[:])
}

// IsZero reports whether every byte of the hash is zero.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return hexutil.Bytes(h[:]).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("Hash", input, h[:])
}

// =============================================================================

// Address represents a 32 byte destination such as a miner payout or a
// contract account, hex encoded with a 0x prefix.
type Address string

// ToAddress converts a hex-encoded string to an address and validates the
// hex-encoded string is formatted correctly.
func ToAddress(hex string) (Address, error) {
	a := Address(hex)
	if !a.IsAddress() {
		return "", errors.New("invalid address format")
	}

	return a, nil
}

// AddressFromHash converts a hash into its address form.
func AddressFromHash(h Hash) Address {
	return Address(h.String())
}

// GenesisAddress returns the recipient of the genesis coinbase, derived
// from the hash of an all-zero key.
func GenesisAddress() Address {
	return AddressFromHash(sha256.Sum256(make([]byte, 32)))
}

// IsAddress verifies whether the underlying data represents a valid
// hex-encoded address.
func (a Address) IsAddress() bool {
	const addressLength = 32

	if !has0xPrefix(a) {
		return false
	}
	a = a[2:]

	return len(a) == 2*addressLength && isHex(a)
}

// has0xPrefix validates the address starts with a 0x.
func has0xPrefix(a Address) bool {
	return len(a) >= 2 && a[0] == '0' && (a[1] == 'x' || a[1] == 'X')
}

// isHex validates whether each byte is valid hexadecimal string.
func isHex(a Address) bool {
	if len(a)%2 != 0 {
		return false
	}

	for _, c := range []byte(a) {
		if !isHexCharacter(c) {
			return false
		}
	}

	return true
}

// isHexCharacter returns bool of c being a valid hexadecimal.
func isHexCharacter(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
