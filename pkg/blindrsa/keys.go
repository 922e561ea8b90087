package blindrsa

import (
	"crypto/rsa"
	"fmt"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/blind-sig/internal/params"
	"github.com/taurusgroup/blind-sig/pkg/math/arith"
)

// KeyMaterial is an RSA key as handed over by a key provider.
//
// Absent values are nil. The public subset is {N, E}; signing needs either {N, D}
// or {P, Q, D}.
type KeyMaterial struct {
	N, E, D, P, Q *big.Int
}

// FromRSA extracts the KeyMaterial of a standard library RSA key.
//
// Multi-prime keys keep only {N, E, D}, since the CRT signer works with two factors.
func FromRSA(key *rsa.PrivateKey) KeyMaterial {
	km := KeyMaterial{
		N: key.N,
		E: big.NewInt(int64(key.E)),
		D: key.D,
	}
	if len(key.Primes) == 2 {
		km.P, km.Q = key.Primes[0], key.Primes[1]
	}
	return km
}

// Public returns the part of km that can be sent to requesters.
func (km KeyMaterial) Public() KeyMaterial {
	return KeyMaterial{N: km.N, E: km.E}
}

// PublicKey validates {N, E} and returns the corresponding PublicKey.
func (km KeyMaterial) PublicKey() (*PublicKey, error) {
	n, err := modulusFromBig(km.N)
	if err != nil {
		return nil, err
	}
	e, err := exponentFromBig("E", km.E)
	if err != nil {
		return nil, err
	}
	return NewPublicKey(n, e)
}

// SecretKey validates the private part of km.
//
// When both P and Q are present the key uses the CRT signer, and N, if present,
// must equal P⋅Q. Otherwise N is required and the direct signer is used.
// E is optional; without it the SecretKey can still sign and VerifySelf.
func (km KeyMaterial) SecretKey() (*SecretKey, error) {
	d, err := exponentFromBig("D", km.D)
	if err != nil {
		return nil, err
	}

	var sk *SecretKey
	switch {
	case km.P != nil && km.Q != nil:
		if km.N != nil && new(big.Int).Mul(km.P, km.Q).Cmp(km.N) != 0 {
			return nil, fmt.Errorf("%w: P⋅Q ≠ N", ErrInvalidKeyMaterial)
		}
		if km.P.Sign() <= 0 || km.Q.Sign() <= 0 {
			return nil, fmt.Errorf("%w: factors must be positive", ErrInvalidKeyMaterial)
		}
		sk, err = NewSecretKeyFromFactors(natFromBig(km.P), natFromBig(km.Q), d)
	case km.P != nil || km.Q != nil:
		return nil, fmt.Errorf("%w: only one prime factor given", ErrInvalidKeyMaterial)
	default:
		var n *saferith.Modulus
		if n, err = modulusFromBig(km.N); err != nil {
			return nil, err
		}
		sk, err = NewSecretKey(n, d)
	}
	if err != nil {
		return nil, err
	}

	if km.E != nil {
		e, err := exponentFromBig("E", km.E)
		if err != nil {
			return nil, err
		}
		sk.e = e
	}
	return sk, nil
}

// PublicKey is the {N, E} part of an RSA key, enough to blind, unblind and verify.
//
// A PublicKey is immutable and safe to share between goroutines.
type PublicKey struct {
	n *arith.Modulus
	e *saferith.Nat
}

// NewPublicKey returns the PublicKey {n, e}.
func NewPublicKey(n *saferith.Modulus, e *saferith.Nat) (*PublicKey, error) {
	if err := validateModulus(n); err != nil {
		return nil, err
	}
	if e == nil || e.EqZero() == 1 {
		return nil, fmt.Errorf("%w: missing public exponent", ErrInvalidKeyMaterial)
	}
	return &PublicKey{n: arith.ModulusFromN(n), e: e}, nil
}

// N returns the modulus of the key.
// For efficiency, the value returned is a pointer to the same underlying N.
// WARNING: Do not modify the returned value.
func (pk *PublicKey) N() *saferith.Modulus {
	return pk.n.Modulus
}

// E returns the public exponent.
// WARNING: Do not modify the returned value.
func (pk *PublicKey) E() *saferith.Nat {
	return pk.e
}

// Equal returns true if pk and other are the same key.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	return pk.n.Nat().Eq(other.n.Nat()) == 1 && pk.e.Eq(other.e) == 1
}

// KeyMaterial returns {N, E}.
func (pk *PublicKey) KeyMaterial() KeyMaterial {
	return KeyMaterial{N: pk.n.Big(), E: pk.e.Big()}
}

// inRange returns true if x ∈ [0, N).
func (pk *PublicKey) inRange(x *saferith.Nat) bool {
	return inRange(x, pk.n.Modulus)
}

// SecretKey holds what the signer needs to sign and to check signatures
// without the public exponent.
//
// A SecretKey is immutable; the CRT values are computed once at construction and
// shared by every call, so a SecretKey can be used by concurrent sessions.
type SecretKey struct {
	n *arith.Modulus
	d *saferith.Nat
	// e is optional
	e      *saferith.Nat
	signer Signer
}

// NewSecretKey returns a SecretKey {n, d} which signs with the direct form.
func NewSecretKey(n *saferith.Modulus, d *saferith.Nat) (*SecretKey, error) {
	s, err := NewDirectSigner(n, d)
	if err != nil {
		return nil, err
	}
	return &SecretKey{
		n:      s.n,
		d:      d,
		signer: s,
	}, nil
}

// NewSecretKeyFromFactors returns a SecretKey {p, q, d} which signs with the CRT form.
func NewSecretKeyFromFactors(p, q, d *saferith.Nat) (*SecretKey, error) {
	s, err := NewCRTSigner(p, q, d)
	if err != nil {
		return nil, err
	}
	return &SecretKey{
		n:      s.n,
		d:      d,
		signer: s,
	}, nil
}

// N returns the modulus of the key.
// WARNING: Do not modify the returned value.
func (sk *SecretKey) N() *saferith.Modulus {
	return sk.n.Modulus
}

// HasFactors returns true if the key knows P and Q.
func (sk *SecretKey) HasFactors() bool {
	return sk.n.HasFactorization()
}

// Signer returns the fastest Signer the key material allows:
// the CRT form when P and Q are known, the direct form otherwise.
func (sk *SecretKey) Signer() Signer {
	return sk.signer
}

// DirectSigner returns a Signer using only {N, D}.
func (sk *SecretKey) DirectSigner() *DirectSigner {
	return &DirectSigner{n: arith.ModulusFromN(sk.n.Modulus), d: sk.d}
}

// CRTSigner returns a Signer using {P, Q, D}, or ErrInvalidKeyMaterial
// if the factors are unknown.
func (sk *SecretKey) CRTSigner() (*CRTSigner, error) {
	if !sk.n.HasFactorization() {
		return nil, fmt.Errorf("%w: CRT signer needs P and Q", ErrInvalidKeyMaterial)
	}
	return &CRTSigner{n: sk.n, d: sk.d}, nil
}

// PublicKey returns the matching PublicKey, or ErrInvalidKeyMaterial if E is unknown.
func (sk *SecretKey) PublicKey() (*PublicKey, error) {
	if sk.e == nil {
		return nil, fmt.Errorf("%w: missing public exponent", ErrInvalidKeyMaterial)
	}
	return &PublicKey{n: arith.ModulusFromN(sk.n.Modulus), e: sk.e}, nil
}

func validateModulus(n *saferith.Modulus) error {
	if n == nil {
		return fmt.Errorf("%w: missing modulus", ErrInvalidKeyMaterial)
	}
	nNat := n.Nat()
	if nNat.EqZero() == 1 {
		return fmt.Errorf("%w: N must be positive", ErrInvalidKeyMaterial)
	}
	if nNat.Byte(0)&1 != 1 {
		return fmt.Errorf("%w: N must be odd", ErrInvalidKeyMaterial)
	}
	return nil
}

func validateFactors(p, q *saferith.Nat) error {
	if p == nil || q == nil {
		return fmt.Errorf("%w: missing prime factor", ErrInvalidKeyMaterial)
	}
	if p.Eq(q) == 1 {
		return fmt.Errorf("%w: P = Q", ErrInvalidKeyMaterial)
	}
	for _, f := range []*saferith.Nat{p, q} {
		if f.Byte(0)&1 != 1 || !arith.IsProbablePrime(f.Big(), params.PrimalityIterations) {
			return fmt.Errorf("%w: factor is not an odd prime", ErrInvalidKeyMaterial)
		}
	}
	return nil
}

func modulusFromBig(n *big.Int) (*saferith.Modulus, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: missing modulus", ErrInvalidKeyMaterial)
	}
	if n.Sign() <= 0 {
		return nil, fmt.Errorf("%w: N must be positive", ErrInvalidKeyMaterial)
	}
	return saferith.ModulusFromNat(natFromBig(n)), nil
}

func exponentFromBig(name string, x *big.Int) (*saferith.Nat, error) {
	if x == nil || x.Sign() <= 0 {
		return nil, fmt.Errorf("%w: missing or non-positive exponent %s", ErrInvalidKeyMaterial, name)
	}
	return natFromBig(x), nil
}

func natFromBig(x *big.Int) *saferith.Nat {
	return new(saferith.Nat).SetBig(x, x.BitLen())
}

func inRange(x *saferith.Nat, n *saferith.Modulus) bool {
	if x == nil {
		return false
	}
	_, _, lt := x.CmpMod(n)
	return lt == 1
}
