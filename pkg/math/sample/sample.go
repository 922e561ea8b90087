package sample

import (
	"errors"
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/blind-sig/internal/params"
	"github.com/taurusgroup/blind-sig/pkg/math/arith"
)

var (
	// ErrBlindFactorExhausted is returned when no valid blinding factor was found
	// after params.MaxBlindIterations draws.
	ErrBlindFactorExhausted = fmt.Errorf("sample: no blinding factor found after %d iterations", params.MaxBlindIterations)

	// ErrMaxIterations is returned when ModN found no element of ℤₙ after
	// params.MaxBlindIterations draws.
	ErrMaxIterations = fmt.Errorf("sample: failed to generate after %d iterations", params.MaxBlindIterations)

	// ErrReadFailed is returned when the random source keeps failing.
	ErrReadFailed = fmt.Errorf("sample: random source failed %d times", params.MaxReadAttempts)

	errNilModulus = errors.New("sample: nil modulus")
)

// readBits fills buf with randomness and clears the bits of buf[0] above bitLen,
// so that buf holds exactly bitLen random bits.
func readBits(rand io.Reader, buf []byte, bitLen int) error {
	var err error
	for i := 0; i < params.MaxReadAttempts; i++ {
		if _, err = io.ReadFull(rand, buf); err == nil {
			if excess := 8*len(buf) - bitLen; excess > 0 {
				buf[0] &= 0xff >> excess
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrReadFailed, err)
}

// ModN samples an element of ℤₙ.
func ModN(rand io.Reader, n *saferith.Modulus) (*saferith.Nat, error) {
	if n == nil {
		return nil, errNilModulus
	}
	out := new(saferith.Nat)
	buf := make([]byte, (n.BitLen()+7)/8)
	for i := 0; i < params.MaxBlindIterations; i++ {
		if err := readBits(rand, buf, n.BitLen()); err != nil {
			return nil, err
		}
		out.SetBytes(buf)
		_, _, lt := out.CmpMod(n)
		if lt == 1 {
			return out, nil
		}
	}
	return nil, ErrMaxIterations
}

// BlindFactor returns r ∈ ℤₙˣ with 1 < r < n, suitable for blinding a message.
//
// Every candidate has the bit length of n, drawn from rand, which should be a CSPRNG
// such as crypto/rand.Reader. Candidates outside (1, n) or sharing a factor with n
// are rejected, and after params.MaxBlindIterations rejections
// ErrBlindFactorExhausted is returned.
func BlindFactor(rand io.Reader, n *saferith.Modulus) (*saferith.Nat, error) {
	if n == nil {
		return nil, errNilModulus
	}
	nBig := n.Big()
	one := new(saferith.Nat).SetUint64(1)
	buf := make([]byte, (n.BitLen()+7)/8)
	for i := 0; i < params.MaxBlindIterations; i++ {
		if err := readBits(rand, buf, n.BitLen()); err != nil {
			return nil, err
		}
		r := new(saferith.Nat).SetBytes(buf)
		// r < n
		if _, _, lt := r.CmpMod(n); lt != 1 {
			continue
		}
		// r > 1
		if gt, _, _ := r.Cmp(one); gt != 1 {
			continue
		}
		if !arith.IsCoprime(r.Big(), nBig) {
			continue
		}
		return r, nil
	}
	return nil, ErrBlindFactorExhausted
}
