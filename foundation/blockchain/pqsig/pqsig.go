// Package pqsig verifies the post-quantum signatures transactions may
// carry alongside their ring signatures.
package pqsig

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode2"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
)

// Set of scheme tags a transaction can declare.
const (
	SchemeDilithium2 = "Dilithium2"
	SchemeFalcon512  = "Falcon512"
	SchemeMLDSA44    = "MLDSA44"
)

// Set of errors returned by verification.
var (
	ErrUnsupportedScheme = errors.New("unsupported post-quantum scheme")
	ErrInvalidKey        = errors.New("invalid post-quantum key")
	ErrBadSignature      = errors.New("post-quantum signature does not verify")
)

// Verifier represents the capability of checking a post-quantum signature
// over a message with a public key, keyed by the declared scheme tag.
type Verifier interface {
	Verify(scheme string, pubKey, msg, sig []byte) error
}

// Circl verifies signatures with the cloudflare circl implementations.
// Falcon512 is recognized but not supported.
type Circl struct{}

// New constructs a circl backed verifier.
func New() Circl {
	return Circl{}
}

// Verify implements Verifier.
func (Circl) Verify(scheme string, pubKey, msg, sig []byte) error {
	switch scheme {
	case SchemeDilithium2:
		var pk mode2.PublicKey
		if err := pk.UnmarshalBinary(pubKey); err != nil {
			return fmt.Errorf("%s: %w", scheme, ErrInvalidKey)
		}

		if !mode2.Verify(&pk, msg, sig) {
			return fmt.Errorf("%s: %w", scheme, ErrBadSignature)
		}
		return nil

	case SchemeMLDSA44:
		sch := mldsa44.Scheme()

		pk, err := sch.UnmarshalBinaryPublicKey(pubKey)
		if err != nil {
			return fmt.Errorf("%s: %w", scheme, ErrInvalidKey)
		}

		if !sch.Verify(pk, msg, sig, nil) {
			return fmt.Errorf("%s: %w", scheme, ErrBadSignature)
		}
		return nil
	}

	return fmt.Errorf("%q: %w", scheme, ErrUnsupportedScheme)
}

// =============================================================================

// GenerateKey creates a key pair for the scheme, returned in their binary
// encodings.
func GenerateKey(scheme string) (pubKey []byte, privKey []byte, err error) {
	switch scheme {
	case SchemeDilithium2:
		pk, sk, err := mode2.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		return pk.Bytes(), sk.Bytes(), nil

	case SchemeMLDSA44:
		sch := mldsa44.Scheme()

		pk, sk, err := sch.GenerateKey()
		if err != nil {
			return nil, nil, err
		}

		if pubKey, err = pk.MarshalBinary(); err != nil {
			return nil, nil, err
		}
		if privKey, err = sk.MarshalBinary(); err != nil {
			return nil, nil, err
		}
		return pubKey, privKey, nil
	}

	return nil, nil, fmt.Errorf("%q: %w", scheme, ErrUnsupportedScheme)
}

// Sign signs msg with a binary encoded private key of the scheme.
func Sign(scheme string, privKey, msg []byte) ([]byte, error) {
	switch scheme {
	case SchemeDilithium2:
		var sk mode2.PrivateKey
		if err := sk.UnmarshalBinary(privKey); err != nil {
			return nil, fmt.Errorf("%s: %w", scheme, ErrInvalidKey)
		}

		sig := make([]byte, mode2.SignatureSize)
		mode2.SignTo(&sk, msg, sig)
		return sig, nil

	case SchemeMLDSA44:
		sch := mldsa44.Scheme()

		sk, err := sch.UnmarshalBinaryPrivateKey(privKey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", scheme, ErrInvalidKey)
		}
		return sch.Sign(sk, msg, nil), nil
	}

	return nil, fmt.Errorf("%q: %w", scheme, ErrUnsupportedScheme)
}
