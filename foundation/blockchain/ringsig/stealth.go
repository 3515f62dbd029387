package ringsig

import (
	"filippo.io/edwards25519"
)

// stealthDomain separates the shared secret hash from the ring challenge.
var stealthDomain = []byte("blacksilk-stealth")

// DeriveStealth creates a one-time output key for the owner of the view and
// spend public keys. It returns the one-time key P = Hs(r*A)*G + B and the
// transaction public key R = r*G the owner needs to find it.
func DeriveStealth(viewPub, spendPub [32]byte) (oneTime [32]byte, txPub [32]byte, err error) {
	a, err := point(viewPub[:])
	if err != nil {
		return oneTime, txPub, err
	}

	b, err := point(spendPub[:])
	if err != nil {
		return oneTime, txPub, err
	}

	r, err := randomScalar()
	if err != nil {
		return oneTime, txPub, err
	}

	shared := new(edwards25519.Point).ScalarMult(r, a)
	hs := hashToScalar(stealthDomain, shared.Bytes())

	p := new(edwards25519.Point).ScalarBaseMult(hs)
	p.Add(p, b)

	copy(oneTime[:], p.Bytes())
	copy(txPub[:], new(edwards25519.Point).ScalarBaseMult(r).Bytes())
	return oneTime, txPub, nil
}

// RecoverStealthKey computes the private key x = Hs(a*R) + b that spends a
// one-time output.
func RecoverStealthKey(viewSk, spendSk, txPub [32]byte) ([32]byte, error) {
	a, err := scalar(viewSk[:])
	if err != nil {
		return [32]byte{}, err
	}

	b, err := scalar(spendSk[:])
	if err != nil {
		return [32]byte{}, err
	}

	r, err := point(txPub[:])
	if err != nil {
		return [32]byte{}, err
	}

	shared := new(edwards25519.Point).ScalarMult(a, r)
	x := edwards25519.NewScalar().Add(hashToScalar(stealthDomain, shared.Bytes()), b)

	var sk [32]byte
	copy(sk[:], x.Bytes())
	return sk, nil
}

// IsOwned reports whether the one-time key was derived for the holder of
// the view private key and spend public key.
func IsOwned(viewSk, spendPub, txPub, oneTime [32]byte) bool {
	a, err := scalar(viewSk[:])
	if err != nil {
		return false
	}

	b, err := point(spendPub[:])
	if err != nil {
		return false
	}

	r, err := point(txPub[:])
	if err != nil {
		return false
	}

	p, err := point(oneTime[:])
	if err != nil {
		return false
	}

	shared := new(edwards25519.Point).ScalarMult(a, r)
	exp := new(edwards25519.Point).ScalarBaseMult(hashToScalar(stealthDomain, shared.Bytes()))
	exp.Add(exp, b)

	return exp.Equal(p) == 1
}
