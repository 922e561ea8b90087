package blindrsa

import (
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/blind-sig/pkg/hash"
	"github.com/taurusgroup/blind-sig/pkg/math/arith"
	"github.com/taurusgroup/blind-sig/pkg/math/sample"
)

// Blind encodes message with h and blinds it under pk.
//
// It returns blinded = H(message)⋅rᴱ (mod N) together with the blinding factor r.
// The requester must keep r secret until the signature has been unblinded;
// revealing it links the blinded value to the message.
func Blind(rand io.Reader, h hash.Function, pk *PublicKey, message []byte) (blinded, r *saferith.Nat, err error) {
	return BlindDigest(rand, pk, h.Encode(message))
}

// BlindDigest is like Blind, for an already encoded message.
func BlindDigest(rand io.Reader, pk *PublicKey, digest *saferith.Nat) (blinded, r *saferith.Nat, err error) {
	r, err = sample.BlindFactor(rand, pk.n.Modulus)
	if err != nil {
		return nil, nil, fmt.Errorf("blindrsa: blind: %w", err)
	}
	return pk.blind(digest, r), r, nil
}

// blind returns digest⋅rᴱ (mod N).
func (pk *PublicKey) blind(digest, r *saferith.Nat) *saferith.Nat {
	n := pk.n.Modulus
	m := new(saferith.Nat).Mod(digest, n)
	rE := pk.n.Exp(new(saferith.Nat).Mod(r, n), pk.e)
	return rE.ModMul(rE, m, n)
}

// Unblind removes the blinding factor r from a signed blinded value.
//
// It returns signed⋅r⁻¹ (mod N), which is the signature on the message that was blinded.
// ErrNonInvertibleFactor is returned if gcd(r, N) ≠ 1, which cannot happen for an r
// produced by Blind.
func (pk *PublicKey) Unblind(signed, r *saferith.Nat) (*saferith.Nat, error) {
	n := pk.n.Modulus
	if !pk.inRange(signed) {
		return nil, fmt.Errorf("blindrsa: unblind: %w", ErrValueOutOfRange)
	}
	if r == nil || !arith.IsCoprime(r.Big(), n.Big()) {
		return nil, fmt.Errorf("blindrsa: unblind: %w", ErrNonInvertibleFactor)
	}
	rInv := new(saferith.Nat).ModInverse(new(saferith.Nat).Mod(r, n), n)
	return rInv.ModMul(rInv, signed, n), nil
}
