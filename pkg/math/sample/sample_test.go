package sample

import (
	"crypto/rand"
	"errors"
	"math/big"
	mrand "math/rand"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

type onesReader struct{}

func (onesReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0xff
	}
	return len(p), nil
}

func TestModN(t *testing.T) {
	n := saferith.ModulusFromUint64(3 * 11 * 65519)
	x, err := ModN(rand.Reader, n)
	require.NoError(t, err)
	_, _, lt := x.CmpMod(n)
	if lt != 1 {
		t.Errorf("ModN generated a number >= %v: %v", x, n)
	}
}

func TestModN_MaxIterations(t *testing.T) {
	// every draw is 0b111 ≥ 4
	_, err := ModN(onesReader{}, saferith.ModulusFromUint64(4))
	assert.ErrorIs(t, err, ErrMaxIterations)
	assert.NotErrorIs(t, err, ErrBlindFactorExhausted)
}

func TestReadBits_Mask(t *testing.T) {
	buf := make([]byte, 3)
	require.NoError(t, readBits(onesReader{}, buf, 17))
	assert.Equal(t, []byte{0x01, 0xff, 0xff}, buf)
	require.NoError(t, readBits(onesReader{}, buf, 24))
	assert.Equal(t, []byte{0xff, 0xff, 0xff}, buf)
}

func TestBlindFactor_OddBitLength(t *testing.T) {
	// moduli of 8k+1 bits: a candidate of ⌈bits/8⌉ unmasked bytes would almost
	// never be below n
	nBytes := make([]byte, 65)
	_, _ = rand.Read(nBytes)
	nBytes[0] = 0x01
	nBytes[len(nBytes)-1] |= 1
	for _, n := range []*saferith.Modulus{saferith.ModulusFromUint64(65537), saferith.ModulusFromBytes(nBytes)} {
		require.Equal(t, 1, n.BitLen()%8)
		for i := 0; i < 300; i++ {
			r, err := BlindFactor(rand.Reader, n)
			require.NoError(t, err)
			_, _, lt := r.CmpMod(n)
			assert.Equal(t, saferith.Choice(1), lt)

			x, err := ModN(rand.Reader, n)
			require.NoError(t, err)
			_, _, lt = x.CmpMod(n)
			assert.Equal(t, saferith.Choice(1), lt)
		}
	}
}

func TestBlindFactor(t *testing.T) {
	// n = 3⋅11⋅65519 has small factors, so many candidates get rejected
	n := saferith.ModulusFromUint64(3 * 11 * 65519)
	nBig := n.Big()
	one := big.NewInt(1)
	for i := 0; i < 200; i++ {
		r, err := BlindFactor(rand.Reader, n)
		require.NoError(t, err)
		rBig := r.Big()
		assert.Equal(t, 1, rBig.Cmp(one), "r should be > 1")
		assert.Equal(t, -1, rBig.Cmp(nBig), "r should be < n")
		assert.Equal(t, 0, new(big.Int).GCD(nil, nil, rBig, nBig).Cmp(one), "r should be a unit mod n")
	}
}

func TestBlindFactor_Distinct(t *testing.T) {
	nBytes := make([]byte, 64)
	_, _ = rand.Read(nBytes)
	nBytes[len(nBytes)-1] |= 1
	nBytes[0] |= 0x80
	n := saferith.ModulusFromBytes(nBytes)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		r, err := BlindFactor(rand.Reader, n)
		require.NoError(t, err)
		_, ok := seen[r.Hex()]
		require.False(t, ok, "blinding factors should not repeat")
		seen[r.Hex()] = struct{}{}
	}
}

func TestBlindFactor_Deterministic(t *testing.T) {
	n := saferith.ModulusFromUint64(1000003)
	r1, err := BlindFactor(mrand.New(mrand.NewSource(1)), n)
	require.NoError(t, err)
	r2, err := BlindFactor(mrand.New(mrand.NewSource(1)), n)
	require.NoError(t, err)
	assert.True(t, r1.Eq(r2) == 1, "the same stream should yield the same factor")
}

func TestBlindFactor_Exhausted(t *testing.T) {
	for _, v := range []uint64{1, 2} {
		_, err := BlindFactor(rand.Reader, saferith.ModulusFromUint64(v))
		assert.ErrorIs(t, err, ErrBlindFactorExhausted, "n = %d admits no blinding factor", v)
	}
}

func TestBlindFactor_BadReader(t *testing.T) {
	_, err := BlindFactor(failingReader{}, saferith.ModulusFromUint64(1000003))
	assert.ErrorIs(t, err, ErrReadFailed)

	_, err = BlindFactor(rand.Reader, nil)
	assert.Error(t, err)
}

// This exists to save the results of functions we want to benchmark, to avoid
// having them optimized away.
var resultNat *saferith.Nat

func BenchmarkBlindFactor(b *testing.B) {
	b.StopTimer()
	nBytes := make([]byte, 256)
	_, _ = rand.Read(nBytes)
	nBytes[len(nBytes)-1] |= 1
	n := saferith.ModulusFromBytes(nBytes)
	b.StartTimer()
	for i := 0; i < b.N; i++ {
		resultNat, _ = BlindFactor(rand.Reader, n)
	}
}
