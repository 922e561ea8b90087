package protocol

import (
	"encoding"
	"fmt"

	"github.com/cronokirby/saferith"
	"github.com/fxamacker/cbor/v2"
	"github.com/taurusgroup/blind-sig/pkg/blindrsa"
	"github.com/taurusgroup/blind-sig/pkg/hash"
)

// The four messages exchanged during a session, in order:
//
//  1. Signer → Requester: PublicKeyMessage
//  2. Requester → Signer: BlindedMessage
//  3. Signer → Requester: SignedMessage
//  4. Requester → Signer: DisclosureMessage (optional)
//
// Integers are hexadecimal strings, and messages are encoded with CBOR.

var (
	_ encoding.BinaryMarshaler   = (*PublicKeyMessage)(nil)
	_ encoding.BinaryUnmarshaler = (*PublicKeyMessage)(nil)
	_ encoding.BinaryMarshaler   = (*BlindedMessage)(nil)
	_ encoding.BinaryUnmarshaler = (*BlindedMessage)(nil)
	_ encoding.BinaryMarshaler   = (*SignedMessage)(nil)
	_ encoding.BinaryUnmarshaler = (*SignedMessage)(nil)
	_ encoding.BinaryMarshaler   = (*DisclosureMessage)(nil)
	_ encoding.BinaryUnmarshaler = (*DisclosureMessage)(nil)
)

// PublicKeyMessage announces the signer's public key and hash function.
type PublicKeyMessage struct {
	N    string `cbor:"n"`
	E    string `cbor:"e"`
	Hash string `cbor:"hash"`
}

// NewPublicKeyMessage returns the announcement for pk and h.
func NewPublicKeyMessage(pk *blindrsa.PublicKey, h hash.Function) *PublicKeyMessage {
	n, e := blindrsa.FormatPublicKey(pk)
	return &PublicKeyMessage{N: n, E: e, Hash: h.String()}
}

// PublicKey parses the announced key and hash function.
func (m *PublicKeyMessage) PublicKey() (*blindrsa.PublicKey, hash.Function, error) {
	pk, err := blindrsa.ParsePublicKey(m.N, m.E)
	if err != nil {
		return nil, 0, err
	}
	h, err := hash.Lookup(m.Hash)
	if err != nil {
		return nil, 0, err
	}
	return pk, h, nil
}

// String implements fmt.Stringer.
func (m PublicKeyMessage) String() string {
	return fmt.Sprintf("public key: %d hex digits, e: %s, hash: %s", len(m.N), m.E, m.Hash)
}

type publicKeyMessage PublicKeyMessage

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *PublicKeyMessage) MarshalBinary() ([]byte, error) {
	return marshal((*publicKeyMessage)(m))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *PublicKeyMessage) UnmarshalBinary(data []byte) error {
	return unmarshal(data, (*publicKeyMessage)(m))
}

// BlindedMessage carries the blinded value to the signer.
type BlindedMessage struct {
	Session string `cbor:"session"`
	Blinded string `cbor:"blinded"`
}

// Value parses the blinded value and checks it is in [0, n).
func (m *BlindedMessage) Value(n *saferith.Modulus) (*saferith.Nat, error) {
	if m.Session == "" {
		return nil, ErrMissingSession
	}
	return blindrsa.ParseNatMod(m.Blinded, n)
}

// String implements fmt.Stringer.
func (m BlindedMessage) String() string {
	return fmt.Sprintf("blinded: session %s", m.Session)
}

type blindedMessage BlindedMessage

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *BlindedMessage) MarshalBinary() ([]byte, error) {
	return marshal((*blindedMessage)(m))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *BlindedMessage) UnmarshalBinary(data []byte) error {
	return unmarshal(data, (*blindedMessage)(m))
}

// SignedMessage carries the signed blinded value back to the requester.
type SignedMessage struct {
	Session string `cbor:"session"`
	Signed  string `cbor:"signed"`
}

// String implements fmt.Stringer.
func (m SignedMessage) String() string {
	return fmt.Sprintf("signed: session %s", m.Session)
}

type signedMessage SignedMessage

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *SignedMessage) MarshalBinary() ([]byte, error) {
	return marshal((*signedMessage)(m))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *SignedMessage) UnmarshalBinary(data []byte) error {
	return unmarshal(data, (*signedMessage)(m))
}

// DisclosureMessage reveals the message and its unblinded signature to the signer.
// BlindFactor is only set when the requester agrees to an audit.
type DisclosureMessage struct {
	Session     string `cbor:"session"`
	Message     []byte `cbor:"message"`
	Signature   string `cbor:"signature"`
	BlindFactor string `cbor:"r,omitempty"`
}

// String implements fmt.Stringer.
func (m DisclosureMessage) String() string {
	return fmt.Sprintf("disclosure: session %s, audit: %t", m.Session, m.BlindFactor != "")
}

type disclosureMessage DisclosureMessage

// MarshalBinary implements encoding.BinaryMarshaler.
func (m *DisclosureMessage) MarshalBinary() ([]byte, error) {
	return marshal((*disclosureMessage)(m))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *DisclosureMessage) UnmarshalBinary(data []byte) error {
	return unmarshal(data, (*disclosureMessage)(m))
}

// marshal must be given the method-less twin of a message, since CBOR would
// otherwise call MarshalBinary again.
func marshal(v interface{}) ([]byte, error) {
	data, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %T: %w", v, err)
	}
	return data, nil
}

func unmarshal(data []byte, v interface{}) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("protocol: unmarshal %T: %w", v, err)
	}
	return nil
}
