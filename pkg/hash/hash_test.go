package hash

import (
	"encoding/hex"
	stdhash "hash"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"
)

var all = []Function{SHA3_256, SHA256, BLAKE3, SM3}

var (
	sha3_512     Function
	registerOnce sync.Once
)

// registerSHA3_512 registers sha3-512 once per test binary.
func registerSHA3_512(t *testing.T) Function {
	registerOnce.Do(func() {
		var err error
		sha3_512, err = Register(" SHA3-512", sha3.New512)
		require.NoError(t, err)
	})
	return sha3_512
}

func TestFunction_Encode(t *testing.T) {
	m1 := []byte("Hello Chaum!")
	m2 := []byte("Invalid message")
	for _, f := range all {
		t.Run(f.String(), func(t *testing.T) {
			a := f.Encode(m1)
			b := f.Encode(m1)
			c := f.Encode(m2)
			assert.True(t, a.Eq(b) == 1, "encoding should be deterministic")
			assert.True(t, a.Eq(c) != 1, "different messages should encode differently")
			assert.LessOrEqual(t, a.TrueLen(), 8*f.Size())
			assert.GreaterOrEqual(t, f.Size(), 32)
		})
	}
}

func TestFunction_HexMatchesEncode(t *testing.T) {
	m := []byte("Hello Chaum!")
	for _, f := range all {
		h := f.Hex(m)
		raw, err := hex.DecodeString(h)
		require.NoError(t, err)
		assert.Equal(t, f.Sum(m), raw)
		assert.Equal(t, f.Sum(m), f.Encode(m).Bytes())
	}
}

func TestFunction_KnownDigest(t *testing.T) {
	// sha3-256("") and sha256("")
	assert.Equal(t, "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a", SHA3_256.Hex(nil))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SHA256.Hex(nil))
}

func TestLookup(t *testing.T) {
	for _, f := range all {
		g, err := Lookup(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, g)
	}
	f, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, Default, f)

	f, err = Lookup(" SHA256 ")
	require.NoError(t, err)
	assert.Equal(t, SHA256, f)

	_, err = Lookup("md5")
	assert.Error(t, err)
	assert.False(t, Function(42).Available())
	assert.Panics(t, func() { Function(42).New() })
	assert.Subset(t, Names(), []string{"blake3", "sha256", "sha3-256", "sm3"})
}

func TestRegister(t *testing.T) {
	f := registerSHA3_512(t)
	assert.True(t, f.Available())
	assert.Equal(t, "sha3-512", f.String())
	assert.Equal(t, 64, f.Size())
	assert.Contains(t, Names(), "sha3-512")

	g, err := Lookup("sha3-512")
	require.NoError(t, err)
	assert.Equal(t, f, g)

	m := []byte("Hello Chaum!")
	want := sha3.Sum512(m)
	assert.Equal(t, want[:], f.Sum(m))
	assert.Equal(t, want[:], f.Encode(m).Bytes())

	_, err = Register("sha3-512", sha3.New512)
	assert.ErrorIs(t, err, ErrInvalidRegistration)
	_, err = Register("SHA256", sha3.New512)
	assert.ErrorIs(t, err, ErrInvalidRegistration)
	_, err = Register("", sha3.New512)
	assert.ErrorIs(t, err, ErrInvalidRegistration)
	_, err = Register("nothing", nil)
	assert.ErrorIs(t, err, ErrInvalidRegistration)

	// 224 bits is below the floor
	_, err = Register("sha3-224", sha3.New224)
	assert.ErrorIs(t, err, ErrInvalidRegistration)
	_, err = Lookup("sha3-224")
	assert.Error(t, err)
}

// short reports the size of SHA3-256 but truncates its digest.
type short struct {
	stdhash.Hash
}

func (s short) Sum(b []byte) []byte {
	return s.Hash.Sum(b)[:len(b)+16]
}

func TestSum_Floor(t *testing.T) {
	f, err := Register("short", func() stdhash.Hash { return short{sha3.New256()} })
	if err != nil {
		// registered by an earlier run of this binary
		f, err = Lookup("short")
		require.NoError(t, err)
	}
	// Register only checks Size, Sum still refuses a short digest
	assert.Panics(t, func() { f.Sum([]byte("m")) })
}
