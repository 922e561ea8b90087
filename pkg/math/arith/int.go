package arith

import "math/big"

var one = big.NewInt(1)

// IsCoprime returns true if gcd(a,b) = 1.
//
// Unlike saferith.Nat.Coprime, this makes no assumption on the parity of a or b,
// so it is safe to call with an untrusted modulus.
func IsCoprime(a, b *big.Int) bool {
	var gcd big.Int
	return gcd.GCD(nil, nil, a, b).Cmp(one) == 0
}

// IsProbablePrime reports whether p is prime, with the given number of Miller-Rabin rounds.
func IsProbablePrime(p *big.Int, rounds int) bool {
	return p.Sign() > 0 && p.ProbablyPrime(rounds)
}
