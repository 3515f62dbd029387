// Package ringsig implements linkable ring signatures, key images and
// stealth addresses over the edwards25519 group.
package ringsig

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// Set of errors returned while signing.
var (
	ErrEmptyRing     = errors.New("ring is empty")
	ErrSignerIndex   = errors.New("signer index is outside the ring")
	ErrKeyNotInRing  = errors.New("private key does not match the ring member at the signer index")
	ErrInvalidScalar = errors.New("invalid scalar encoding")
	ErrInvalidPoint  = errors.New("invalid point encoding")
)

// PairSize is the number of signature bytes per ring member: a challenge
// scalar followed by a response scalar.
const PairSize = 64

// GenerateKey creates a private scalar and its public point.
func GenerateKey() (sk [32]byte, pk [32]byte, err error) {
	s, err := randomScalar()
	if err != nil {
		return sk, pk, err
	}

	copy(sk[:], s.Bytes())
	copy(pk[:], new(edwards25519.Point).ScalarBaseMult(s).Bytes())
	return sk, pk, nil
}

// PublicKey derives the public point of a private scalar.
func PublicKey(sk [32]byte) ([32]byte, error) {
	s, err := scalar(sk[:])
	if err != nil {
		return [32]byte{}, err
	}

	var pk [32]byte
	copy(pk[:], new(edwards25519.Point).ScalarBaseMult(s).Bytes())
	return pk, nil
}

// Sign produces a ring signature over msg. The private key must belong to
// the ring member at index.
func Sign(msg []byte, ring [][32]byte, sk [32]byte, index int) ([]byte, error) {
	n := len(ring)
	switch {
	case n == 0:
		return nil, ErrEmptyRing
	case index < 0 || index >= n:
		return nil, ErrSignerIndex
	}

	x, err := scalar(sk[:])
	if err != nil {
		return nil, err
	}

	points := make([]*edwards25519.Point, n)
	for i := range ring {
		if points[i], err = point(ring[i][:]); err != nil {
			return nil, fmt.Errorf("ring member %d: %w", i, err)
		}
	}

	if new(edwards25519.Point).ScalarBaseMult(x).Equal(points[index]) != 1 {
		return nil, ErrKeyNotInRing
	}

	c := make([]*edwards25519.Scalar, n)
	r := make([]*edwards25519.Scalar, n)

	k, err := randomScalar()
	if err != nil {
		return nil, err
	}

	// The first link is a plain commitment r_0*G, so the walk is split in
	// two around it: from the signer to the end of the ring, then from
	// member 1 back up to the signer.
	switch {
	case n == 1:
		c[0] = challenge(new(edwards25519.Point).ScalarBaseMult(k), msg)

	case index == 0:
		if r[0], err = randomScalar(); err != nil {
			return nil, err
		}
		c[1] = challenge(new(edwards25519.Point).ScalarBaseMult(r[0]), msg)
		if err := walk(c, r, points, msg, 1, n); err != nil {
			return nil, err
		}

	default:
		c[(index+1)%n] = challenge(new(edwards25519.Point).ScalarBaseMult(k), msg)
		if err := walk(c, r, points, msg, index+1, n); err != nil {
			return nil, err
		}

		if r[0], err = randomScalar(); err != nil {
			return nil, err
		}
		c[1] = challenge(new(edwards25519.Point).ScalarBaseMult(r[0]), msg)
		if err := walk(c, r, points, msg, 1, index); err != nil {
			return nil, err
		}
	}

	if n == 1 || index != 0 {
		r[index] = edwards25519.NewScalar().Subtract(k, edwards25519.NewScalar().Multiply(c[index], x))
	}

	sig := make([]byte, 0, n*PairSize)
	for i := 0; i < n; i++ {
		sig = append(sig, c[i].Bytes()...)
		sig = append(sig, r[i].Bytes()...)
	}

	return sig, nil
}

// Verify checks a ring signature over msg. The first link is r_0*G and
// every later link is r_i*G + c_i*P_i. Each link's challenge must match the
// next member's challenge and the last link must close back on c_0.
func Verify(msg []byte, ring [][32]byte, sig []byte) bool {
	n := len(ring)
	if n == 0 || len(sig) != n*PairSize {
		return false
	}

	c := make([]*edwards25519.Scalar, n)
	r := make([]*edwards25519.Scalar, n)
	points := make([]*edwards25519.Point, n)

	for i := 0; i < n; i++ {
		var err error
		if c[i], err = scalar(sig[i*PairSize : i*PairSize+32]); err != nil {
			return false
		}
		if r[i], err = scalar(sig[i*PairSize+32 : (i+1)*PairSize]); err != nil {
			return false
		}
		if points[i], err = point(ring[i][:]); err != nil {
			return false
		}
	}

	if n == 1 {
		l := new(edwards25519.Point).VarTimeDoubleScalarBaseMult(c[0], points[0], r[0])
		return challenge(l, msg).Equal(c[0]) == 1
	}

	next := challenge(new(edwards25519.Point).ScalarBaseMult(r[0]), msg)
	if next.Equal(c[1]) != 1 {
		return false
	}

	for i := 1; i < n; i++ {
		l := new(edwards25519.Point).VarTimeDoubleScalarBaseMult(c[i], points[i], r[i])
		next = challenge(l, msg)
		if next.Equal(c[(i+1)%n]) != 1 {
			return false
		}
	}

	return true
}

// KeyImage computes I = sk * Hp(P) where P is the public key of sk. The
// image is the same every time the key spends, which is what links a
// double spend without revealing the signer.
func KeyImage(sk [32]byte) ([32]byte, error) {
	x, err := scalar(sk[:])
	if err != nil {
		return [32]byte{}, err
	}

	pk := new(edwards25519.Point).ScalarBaseMult(x)

	var ki [32]byte
	copy(ki[:], new(edwards25519.Point).ScalarMult(x, hashToPoint(pk.Bytes())).Bytes())
	return ki, nil
}

// =============================================================================

// walk fills the challenges and random responses for members from up to
// (but not including) to. c[from] must already be set.
func walk(c, r []*edwards25519.Scalar, points []*edwards25519.Point, msg []byte, from, to int) error {
	n := len(c)
	for i := from; i < to; i++ {
		var err error
		if r[i], err = randomScalar(); err != nil {
			return err
		}

		l := new(edwards25519.Point).VarTimeDoubleScalarBaseMult(c[i], points[i], r[i])
		c[(i+1)%n] = challenge(l, msg)
	}
	return nil
}

// challenge computes H(L || m) reduced into a scalar.
func challenge(l *edwards25519.Point, msg []byte) *edwards25519.Scalar {
	return hashToScalar(l.Bytes(), msg)
}

// hashToScalar reduces sha256 of the parts into a scalar.
func hashToScalar(parts ...[]byte) *edwards25519.Scalar {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}

	var wide [64]byte
	copy(wide[:], h.Sum(nil))

	s, _ := edwards25519.NewScalar().SetUniformBytes(wide[:])
	return s
}

// hashToPoint maps data onto the prime order subgroup by try and increment.
func hashToPoint(data []byte) *edwards25519.Point {
	identity := edwards25519.NewIdentityPoint()

	buf := make([]byte, len(data)+4)
	copy(buf, data)

	for ctr := uint32(0); ; ctr++ {
		binary.LittleEndian.PutUint32(buf[len(data):], ctr)
		sum := sha512.Sum512(buf)

		p, err := new(edwards25519.Point).SetBytes(sum[:32])
		if err != nil {
			continue
		}

		p.MultByCofactor(p)
		if p.Equal(identity) == 1 {
			continue
		}

		return p
	}
}

func randomScalar() (*edwards25519.Scalar, error) {
	var seed [64]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}
	return edwards25519.NewScalar().SetUniformBytes(seed[:])
}

func scalar(b []byte) (*edwards25519.Scalar, error) {
	s, err := edwards25519.NewScalar().SetCanonicalBytes(b)
	if err != nil {
		return nil, ErrInvalidScalar
	}
	return s, nil
}

func point(b []byte) (*edwards25519.Point, error) {
	p, err := new(edwards25519.Point).SetBytes(b)
	if err != nil {
		return nil, ErrInvalidPoint
	}
	return p, nil
}
