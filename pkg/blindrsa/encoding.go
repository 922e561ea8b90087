package blindrsa

import (
	"fmt"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/blind-sig/internal/params"
)

// FormatNat returns x in lowercase hexadecimal, without prefix or leading zeros.
//
// Hexadecimal is the only radix used on the wire, since it is also how digests
// are printed.
func FormatNat(x *saferith.Nat) string {
	return x.Big().Text(params.HexRadix)
}

// ParseNat is the inverse of FormatNat.
//
// Leading zeros and upper case digits are accepted; signs, prefixes, separators
// and empty strings are not.
func ParseNat(s string) (*saferith.Nat, error) {
	if s == "" || s[0] == '-' || s[0] == '+' {
		return nil, fmt.Errorf("%w: %q", ErrMalformedIntegerEncoding, s)
	}
	b, ok := new(big.Int).SetString(s, params.HexRadix)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedIntegerEncoding, s)
	}
	return natFromBig(b), nil
}

// ParseNatMod parses s and checks that the result lies in [0, n).
func ParseNatMod(s string, n *saferith.Modulus) (*saferith.Nat, error) {
	x, err := ParseNat(s)
	if err != nil {
		return nil, err
	}
	if !inRange(x, n) {
		return nil, fmt.Errorf("%w: %q", ErrValueOutOfRange, s)
	}
	return x, nil
}

// FormatPublicKey returns the hexadecimal N and E of pk.
func FormatPublicKey(pk *PublicKey) (n, e string) {
	return FormatNat(pk.n.Nat()), FormatNat(pk.e)
}

// ParsePublicKey is the inverse of FormatPublicKey.
func ParsePublicKey(n, e string) (*PublicKey, error) {
	nNat, err := ParseNat(n)
	if err != nil {
		return nil, fmt.Errorf("blindrsa: public key N: %w", err)
	}
	eNat, err := ParseNat(e)
	if err != nil {
		return nil, fmt.Errorf("blindrsa: public key E: %w", err)
	}
	if nNat.EqZero() == 1 {
		return nil, fmt.Errorf("%w: N must be positive", ErrInvalidKeyMaterial)
	}
	return NewPublicKey(saferith.ModulusFromNat(nNat), eNat)
}
