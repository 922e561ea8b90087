package blindrsa

import (
	"fmt"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/blind-sig/pkg/math/arith"
	"github.com/taurusgroup/blind-sig/pkg/pool"
)

// Signer raises blinded values to the private exponent.
//
// The two implementations, DirectSigner and CRTSigner, return identical results;
// they only differ in which key material they need and in speed.
type Signer interface {
	// Sign returns blindedᴰ (mod N).
	// blinded must be in [0, N), otherwise ErrValueOutOfRange is returned.
	Sign(blinded *saferith.Nat) (*saferith.Nat, error)
	// Modulus returns N.
	Modulus() *saferith.Modulus
}

var (
	_ Signer = (*DirectSigner)(nil)
	_ Signer = (*CRTSigner)(nil)
)

// DirectSigner computes blindedᴰ (mod N) with a single exponentiation mod N.
// It only needs {N, D}.
type DirectSigner struct {
	n *arith.Modulus
	d *saferith.Nat
}

// NewDirectSigner returns a DirectSigner for {n, d}.
func NewDirectSigner(n *saferith.Modulus, d *saferith.Nat) (*DirectSigner, error) {
	if err := validateModulus(n); err != nil {
		return nil, err
	}
	if d == nil || d.EqZero() == 1 {
		return nil, fmt.Errorf("%w: missing private exponent", ErrInvalidKeyMaterial)
	}
	return &DirectSigner{n: arith.ModulusFromN(n), d: d}, nil
}

// Sign implements Signer.
func (s *DirectSigner) Sign(blinded *saferith.Nat) (*saferith.Nat, error) {
	if !inRange(blinded, s.n.Modulus) {
		return nil, fmt.Errorf("blindrsa: sign: %w", ErrValueOutOfRange)
	}
	return s.n.Exp(blinded, s.d), nil
}

// Modulus implements Signer.
func (s *DirectSigner) Modulus() *saferith.Modulus {
	return s.n.Modulus
}

// CRTSigner computes blindedᴰ (mod N) from blindedᴰ (mod P) and blindedᴰ (mod Q),
// recombined with the cross inverses Q⁻¹ (mod P) and P⁻¹ (mod Q).
// It needs {P, Q, D}.
type CRTSigner struct {
	n *arith.Modulus
	d *saferith.Nat
}

// NewCRTSigner returns a CRTSigner for N = p⋅q and d.
//
// p and q must be distinct odd primes. The cross inverses are computed here,
// once, and reused by every call to Sign.
func NewCRTSigner(p, q, d *saferith.Nat) (*CRTSigner, error) {
	if err := validateFactors(p, q); err != nil {
		return nil, err
	}
	if d == nil || d.EqZero() == 1 {
		return nil, fmt.Errorf("%w: missing private exponent", ErrInvalidKeyMaterial)
	}
	return &CRTSigner{n: arith.ModulusFromFactors(p, q), d: d}, nil
}

// Sign implements Signer.
func (s *CRTSigner) Sign(blinded *saferith.Nat) (*saferith.Nat, error) {
	if !inRange(blinded, s.n.Modulus) {
		return nil, fmt.Errorf("blindrsa: sign: %w", ErrValueOutOfRange)
	}
	return s.n.ExpReduced(blinded, s.d), nil
}

// Modulus implements Signer.
func (s *CRTSigner) Modulus() *saferith.Modulus {
	return s.n.Modulus
}

// SignBatch signs every blinded value with s, in parallel on pl.
//
// A nil pool signs on the current goroutine. The output is in the same order as
// the input; the first error encountered is returned.
func SignBatch(pl *pool.Pool, s Signer, blinded []*saferith.Nat) ([]*saferith.Nat, error) {
	type result struct {
		signed *saferith.Nat
		err    error
	}
	results := pl.Parallelize(len(blinded), func(i int) interface{} {
		signed, err := s.Sign(blinded[i])
		return result{signed, err}
	})
	out := make([]*saferith.Nat, len(blinded))
	for i, r := range results {
		res := r.(result)
		if res.err != nil {
			return nil, fmt.Errorf("blindrsa: batch item %d: %w", i, res.err)
		}
		out[i] = res.signed
	}
	return out, nil
}
