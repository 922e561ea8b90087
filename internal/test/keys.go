package test

import (
	"crypto/rand"
	"io"
	"math/big"
	"sync"

	"github.com/taurusgroup/blind-sig/pkg/blindrsa"
)

// PublicExponent is the E used by GenerateKey.
const PublicExponent = 65537

// GenerateKey plays the key provider in tests: it returns fresh RSA key material
// with a modulus of the given size.
//
// crypto/rsa refuses to generate keys this small, so the primes are drawn with
// crypto/rand.Prime directly.
func GenerateKey(rand io.Reader, bits int) (blindrsa.KeyMaterial, error) {
	one := big.NewInt(1)
	e := big.NewInt(PublicExponent)
	for {
		p, err := randPrime(rand, bits/2)
		if err != nil {
			return blindrsa.KeyMaterial{}, err
		}
		q, err := randPrime(rand, bits-bits/2)
		if err != nil {
			return blindrsa.KeyMaterial{}, err
		}
		if p.Cmp(q) == 0 {
			continue
		}
		n := new(big.Int).Mul(p, q)
		if n.BitLen() != bits {
			continue
		}
		pMinus1 := new(big.Int).Sub(p, one)
		qMinus1 := new(big.Int).Sub(q, one)
		// λ(N) = lcm(p-1, q-1)
		g := new(big.Int).GCD(nil, nil, pMinus1, qMinus1)
		lambda := new(big.Int).Mul(pMinus1, qMinus1)
		lambda.Div(lambda, g)
		d := new(big.Int).ModInverse(e, lambda)
		if d == nil {
			continue
		}
		return blindrsa.KeyMaterial{
			N: n,
			E: new(big.Int).Set(e),
			D: d,
			P: p,
			Q: q,
		}, nil
	}
}

func randPrime(r io.Reader, bits int) (*big.Int, error) {
	return rand.Prime(r, bits)
}

var (
	cachedKeys  = map[int]blindrsa.KeyMaterial{}
	cachedKeysM sync.Mutex
)

// Key returns key material of the given size, generated once per test binary.
// It panics if generation fails.
func Key(bits int) blindrsa.KeyMaterial {
	cachedKeysM.Lock()
	defer cachedKeysM.Unlock()
	if km, ok := cachedKeys[bits]; ok {
		return km
	}
	km, err := GenerateKey(rand.Reader, bits)
	if err != nil {
		panic(err)
	}
	cachedKeys[bits] = km
	return km
}
