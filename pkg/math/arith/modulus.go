package arith

import (
	"github.com/cronokirby/saferith"
)

// Modulus wraps a saferith.Modulus and enables faster modular exponentiation when
// the factorization is known.
// When n = p⋅q, xᵉ (mod n) can be computed with only two half-size exponentiations
// with p and q respectively, recombined with the Chinese Remainder Theorem.
type Modulus struct {
	// represents modulus n
	*saferith.Modulus
	// n = p⋅q
	p, q *saferith.Modulus
	// pNat, qNat are p and q as elements of ℤₙ
	pNat, qNat *saferith.Nat
	// qInvModP = q⁻¹ (mod p), pInvModQ = p⁻¹ (mod q)
	qInvModP, pInvModQ *saferith.Nat
	// cp = q⋅[q⁻¹ (mod p)] (mod n), cq = p⋅[p⁻¹ (mod q)] (mod n)
	cp, cq *saferith.Nat
	// pMinus1, qMinus1 are used to reduce exponents.
	pMinus1, qMinus1 *saferith.Modulus
}

// ModulusFromN creates a simple wrapper around a given modulus n.
// The modulus is not copied.
func ModulusFromN(n *saferith.Modulus) *Modulus {
	return &Modulus{
		Modulus: n,
	}
}

// ModulusFromFactors creates the necessary cached values to accelerate
// exponentiation mod n = p⋅q.
//
// p and q must be distinct odd primes; the values cached here are read-only
// afterwards, so the result can be shared between goroutines.
func ModulusFromFactors(p, q *saferith.Nat) *Modulus {
	one := new(saferith.Nat).SetUint64(1)

	nNat := new(saferith.Nat).Mul(p, q, -1)
	nMod := saferith.ModulusFromNat(nNat)
	pMod := saferith.ModulusFromNat(p)
	qMod := saferith.ModulusFromNat(q)

	qInvModP := new(saferith.Nat).ModInverse(new(saferith.Nat).Mod(q, pMod), pMod)
	pInvModQ := new(saferith.Nat).ModInverse(new(saferith.Nat).Mod(p, qMod), qMod)

	pNat := new(saferith.Nat).Mod(p, nMod)
	qNat := new(saferith.Nat).Mod(q, nMod)
	// cp ≡ 1 (mod p), cp ≡ 0 (mod q)
	cp := new(saferith.Nat).ModMul(qNat, new(saferith.Nat).Mod(qInvModP, nMod), nMod)
	// cq ≡ 0 (mod p), cq ≡ 1 (mod q)
	cq := new(saferith.Nat).ModMul(pNat, new(saferith.Nat).Mod(pInvModQ, nMod), nMod)

	pMinus1 := new(saferith.Nat).Sub(p, one, -1)
	qMinus1 := new(saferith.Nat).Sub(q, one, -1)

	return &Modulus{
		Modulus:  nMod,
		p:        pMod,
		q:        qMod,
		pNat:     pNat,
		qNat:     qNat,
		qInvModP: qInvModP,
		pInvModQ: pInvModQ,
		cp:       cp,
		cq:       cq,
		pMinus1:  saferith.ModulusFromNat(pMinus1),
		qMinus1:  saferith.ModulusFromNat(qMinus1),
	}
}

// Exp is equivalent to (saferith.Nat).Exp(x, e, n.Modulus).
// It returns xᵉ (mod n).
func (n *Modulus) Exp(x, e *saferith.Nat) *saferith.Nat {
	if n.hasFactorization() {
		return n.expCRT(x, e, e)
	}
	return new(saferith.Nat).Exp(x, e, n.Modulus)
}

// ExpReduced returns xᵉ (mod n) like Exp, but when the factorization is known,
// the exponent is first reduced mod p-1 and q-1.
//
// The result equals Exp as long as e is not a multiple of p-1 or q-1,
// which holds for any RSA private exponent.
func (n *Modulus) ExpReduced(x, e *saferith.Nat) *saferith.Nat {
	if n.hasFactorization() {
		ep := new(saferith.Nat).Mod(e, n.pMinus1)
		eq := new(saferith.Nat).Mod(e, n.qMinus1)
		return n.expCRT(x, ep, eq)
	}
	return new(saferith.Nat).Exp(x, e, n.Modulus)
}

func (n *Modulus) expCRT(x, ep, eq *saferith.Nat) *saferith.Nat {
	var xp, xq saferith.Nat
	xp.Mod(x, n.p)
	xq.Mod(x, n.q)
	// m₁ = xᵉ (mod p)
	m1 := new(saferith.Nat).Exp(&xp, ep, n.p)
	// m₂ = xᵉ (mod q)
	m2 := new(saferith.Nat).Exp(&xq, eq, n.q)
	// r = m₁⋅q⋅[q⁻¹ (mod p)] + m₂⋅p⋅[p⁻¹ (mod q)] (mod n)
	r := new(saferith.Nat).ModMul(new(saferith.Nat).Mod(m1, n.Modulus), n.cp, n.Modulus)
	t := new(saferith.Nat).ModMul(new(saferith.Nat).Mod(m2, n.Modulus), n.cq, n.Modulus)
	return r.ModAdd(r, t, n.Modulus)
}

// HasFactorization returns true if n was created with ModulusFromFactors.
func (n *Modulus) HasFactorization() bool {
	return n.hasFactorization()
}

// Factors returns p and q, or nil if the factorization is unknown.
func (n *Modulus) Factors() (p, q *saferith.Nat) {
	if !n.hasFactorization() {
		return nil, nil
	}
	return n.p.Nat(), n.q.Nat()
}

// CrossInverses returns q⁻¹ (mod p) and p⁻¹ (mod q), or nil if the factorization
// is unknown.
func (n *Modulus) CrossInverses() (qInvModP, pInvModQ *saferith.Nat) {
	if !n.hasFactorization() {
		return nil, nil
	}
	return n.qInvModP, n.pInvModQ
}

func (n Modulus) hasFactorization() bool {
	return n.p != nil && n.q != nil && n.cp != nil && n.cq != nil
}
