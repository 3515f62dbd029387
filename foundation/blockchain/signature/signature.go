// Package signature provides helper functions for the node identity
// signatures exchanged during the peer handshake.
package signature

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
)

// blacksilkID is an arbitrary number added to the recovery id. This will
// make it clear that the signature comes from a BlackSilk node.
// Ethereum and Bitcoin do this as well, but they use the value of 27.
const blacksilkID = 29

// ErrInvalidSignature is returned when signature bytes are malformed.
var ErrInvalidSignature = errors.New("invalid signature")

// =============================================================================

// Sign uses the specified private key to sign the data. The signature is
// 65 bytes in the [R|S|V] format with the BlackSilk id added to V.
func Sign(value any, privateKey *ecdsa.PrivateKey) ([]byte, error) {

	// Prepare the data for signing.
	data, err := stamp(value)
	if err != nil {
		return nil, err
	}

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return nil, err
	}

	// Extract the public key from the data and the signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return nil, err
	}

	// Check the public key extracted from the data and signature.
	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return nil, ErrInvalidSignature
	}

	sig[crypto.RecoveryIDOffset] += blacksilkID

	return sig, nil
}

// VerifySignature verifies the signature conforms to our standards.
func VerifySignature(sig []byte) error {
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("got %d bytes: %w", len(sig), ErrInvalidSignature)
	}

	// Check the recovery id is either 0 or 1.
	v := sig[crypto.RecoveryIDOffset] - blacksilkID
	if v != 0 && v != 1 {
		return fmt.Errorf("invalid recovery id: %w", ErrInvalidSignature)
	}

	// Check the signature values are valid.
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, false) {
		return fmt.Errorf("invalid signature values: %w", ErrInvalidSignature)
	}

	return nil
}

// FromAddress extracts the node id of the key that signed the data.
func FromAddress(value any, sig []byte) (string, error) {
	if err := VerifySignature(sig); err != nil {
		return "", err
	}

	// NOTE: If the same exact data for the given signature is not provided
	// we will get the wrong node id. The public key is being extracted from
	// the data and signature.

	// Prepare the data for public key extraction.
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	// Remove the BlackSilk id to get back the original 65 bytes.
	raw := make([]byte, crypto.SignatureLength)
	copy(raw, sig)
	raw[crypto.RecoveryIDOffset] -= blacksilkID

	// Capture the public key associated with this data and signature.
	publicKey, err := crypto.SigToPub(data, raw)
	if err != nil {
		return "", err
	}

	// Extract the node id from the public key.
	return crypto.PubkeyToAddress(*publicKey).String(), nil
}

// NodeID returns the identity a node announces for the private key.
func NodeID(privateKey *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(privateKey.PublicKey).String()
}

// LoadOrGenerate reads the node key at path, creating and saving a new
// one when the file does not exist.
func LoadOrGenerate(path string) (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.LoadECDSA(path)
	if err == nil {
		return privateKey, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading node key: %w", err)
	}

	privateKey, err = crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return nil, fmt.Errorf("saving node key: %w", err)
	}

	return privateKey, nil
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this data with
// the BlackSilk stamp embedded into the final hash.
func stamp(value any) ([]byte, error) {

	// Marshal the data.
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	// Hash the data into a 32 byte array. This will provide a data length
	// consistency with all data.
	hash := crypto.Keccak256(v)

	// This stamp is used so signatures we produce when signing data are
	// always unique to the BlackSilk network.
	stamp := []byte("\x19BlackSilk Signed Message:\n32")

	// Hash the stamp and hash together in a final 32 byte array that
	// represents the data.
	return crypto.Keccak256(stamp, hash), nil
}
