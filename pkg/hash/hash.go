package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	stdhash "hash"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/blind-sig/internal/params"
	"github.com/tjfoc/gmsm/sm3"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// Function identifies the hash primitive used to turn a message into the integer
// that gets blinded and signed.
//
// Both parties must agree on the Function, otherwise signatures will not verify.
type Function uint8

const (
	// SHA3_256 is the default function.
	SHA3_256 Function = iota
	SHA256
	BLAKE3
	SM3
)

// Default is the Function used when none is configured.
const Default = SHA3_256

var (
	// ErrInvalidRegistration is returned by Register for an empty or taken name,
	// or a function whose output is too short.
	ErrInvalidRegistration = errors.New("hash: invalid registration")

	registryMu sync.RWMutex
	// registry is indexed by Function.
	registry = []entry{
		SHA3_256: {"sha3-256", sha3.New256},
		SHA256:   {"sha256", sha256.New},
		BLAKE3:   {"blake3", func() stdhash.Hash { return blake3.New() }},
		SM3:      {"sm3", sm3.New},
	}
)

type entry struct {
	name string
	new  func() stdhash.Hash
}

func (f Function) entry() (entry, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if int(f) >= len(registry) {
		return entry{}, false
	}
	return registry[f], true
}

// Register makes newHash available under name, and returns its Function.
// Names are case-insensitive. The digest must be at least params.DigestBits long.
//
// Both parties must register the function under the same name: only the name
// travels on the wire.
func Register(name string, newHash func() stdhash.Hash) (Function, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || newHash == nil {
		return 0, fmt.Errorf("%w: empty name or constructor", ErrInvalidRegistration)
	}
	if size := newHash().Size(); size < params.DigestBytes {
		return 0, fmt.Errorf("%w: %s produces %d bytes, need at least %d", ErrInvalidRegistration, name, size, params.DigestBytes)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	for _, e := range registry {
		if e.name == name {
			return 0, fmt.Errorf("%w: %s already registered", ErrInvalidRegistration, name)
		}
	}
	if len(registry) > math.MaxUint8 {
		return 0, fmt.Errorf("%w: registry full", ErrInvalidRegistration)
	}
	registry = append(registry, entry{name: name, new: newHash})
	return Function(len(registry) - 1), nil
}

// Lookup returns the Function registered under name.
// Names are case-insensitive; the empty name resolves to Default.
func Lookup(name string) (Function, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Default, nil
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	for f, e := range registry {
		if e.name == name {
			return Function(f), nil
		}
	}
	return 0, fmt.Errorf("hash: unknown function %q", name)
}

// Names returns the names accepted by Lookup, sorted.
func Names() []string {
	registryMu.RLock()
	out := make([]string, 0, len(registry))
	for _, e := range registry {
		out = append(out, e.name)
	}
	registryMu.RUnlock()
	sort.Strings(out)
	return out
}

// String implements fmt.Stringer.
func (f Function) String() string {
	if e, ok := f.entry(); ok {
		return e.name
	}
	return fmt.Sprintf("hash.Function(%d)", uint8(f))
}

// Available returns true if f is a built-in or registered function.
func (f Function) Available() bool {
	_, ok := f.entry()
	return ok
}

// New returns a fresh hash.Hash for f.
// It panics if f is not available.
func (f Function) New() stdhash.Hash {
	e, ok := f.entry()
	if !ok {
		panic(fmt.Sprintf("hash: unavailable function %d", uint8(f)))
	}
	return e.new()
}

// Size returns the digest length of f in bytes.
func (f Function) Size() int {
	return f.New().Size()
}

// Sum returns the digest of message.
func (f Function) Sum(message []byte) []byte {
	h := f.New()
	// the underlying hash functions never return an error
	_, _ = h.Write(message)
	out := h.Sum(nil)
	if len(out) < params.DigestBytes {
		panic(fmt.Sprintf("hash: %s produced %d bytes, need at least %d", f, len(out), params.DigestBytes))
	}
	return out
}

// Hex returns the digest of message in hexadecimal, the textual form used on the wire.
func (f Function) Hex(message []byte) string {
	return hex.EncodeToString(f.Sum(message))
}

// Encode returns the digest of message interpreted as a big-endian non-negative integer.
//
// The result does not depend on any modulus; callers reduce it when needed.
func (f Function) Encode(message []byte) *saferith.Nat {
	return new(saferith.Nat).SetBytes(f.Sum(message))
}
