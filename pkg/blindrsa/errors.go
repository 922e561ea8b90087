package blindrsa

import (
	"errors"

	"github.com/taurusgroup/blind-sig/pkg/math/sample"
)

var (
	// ErrInvalidKeyMaterial is returned when N is absent, zero or even, when P⋅Q ≠ N,
	// or when an exponent or factor needed by the chosen signer is missing.
	ErrInvalidKeyMaterial = errors.New("blindrsa: invalid key material")

	// ErrBlindFactorExhausted is returned when no blinding factor could be sampled.
	ErrBlindFactorExhausted = sample.ErrBlindFactorExhausted

	// ErrNonInvertibleFactor is returned when a blinding factor has no inverse mod N.
	ErrNonInvertibleFactor = errors.New("blindrsa: blinding factor is not invertible")

	// ErrMalformedIntegerEncoding is returned when a transmitted integer is not valid hexadecimal.
	ErrMalformedIntegerEncoding = errors.New("blindrsa: malformed integer encoding")

	// ErrValueOutOfRange is returned when a protocol value is not in [0, N).
	ErrValueOutOfRange = errors.New("blindrsa: value out of range")
)
