package blindrsa

import (
	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/blind-sig/pkg/hash"
)

// Verify returns true if sig is a valid signature on message under pk,
// i.e. sigᴱ ≡ H(message) (mod N).
//
// A mismatch, a nil signature, or a signature outside [0, N) all return false.
func (pk *PublicKey) Verify(h hash.Function, message []byte, sig *saferith.Nat) bool {
	if !pk.inRange(sig) {
		return false
	}
	n := pk.n.Modulus
	digest := new(saferith.Nat).Mod(h.Encode(message), n)
	candidate := pk.n.Exp(sig, pk.e)
	return candidate.Eq(digest) == 1
}

// VerifyBlinding returns true if blinded = H(message)⋅rᴱ (mod N).
//
// A signer who kept the blinded values it signed can use this once a requester
// discloses the message and its blinding factor, to check that the pair really
// produced the value that was signed.
func (pk *PublicKey) VerifyBlinding(h hash.Function, blinded, r *saferith.Nat, message []byte) bool {
	if r == nil || !pk.inRange(blinded) {
		return false
	}
	return pk.blind(h.Encode(message), r).Eq(blinded) == 1
}

// VerifySelf returns true if sig = H(message)ᴰ (mod N).
//
// RSA signing is deterministic, so the key holder can recompute the signature
// instead of inverting it, without knowing E. It agrees with PublicKey.Verify
// on every input.
func (sk *SecretKey) VerifySelf(h hash.Function, message []byte, sig *saferith.Nat) bool {
	n := sk.n.Modulus
	if !inRange(sig, n) {
		return false
	}
	expected, err := sk.signer.Sign(new(saferith.Nat).Mod(h.Encode(message), n))
	if err != nil {
		return false
	}
	return expected.Eq(sig) == 1
}
