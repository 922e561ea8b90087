package protocol

import (
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/google/uuid"
	"github.com/taurusgroup/blind-sig/pkg/blindrsa"
	"github.com/taurusgroup/blind-sig/pkg/hash"
)

// State is the position of a requester's session in the protocol.
//
// Sessions move strictly forward:
//
//	Hashed → Blinded → Signed → Unblinded → Verified
//
// Each state is a distinct immutable type, and each transition is a method
// returning the next one. Only Hashed.Blind draws randomness.
type State uint8

const (
	StateHashed State = iota + 1
	StateBlinded
	StateSigned
	StateUnblinded
	StateVerified
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateHashed:
		return "hashed"
	case StateBlinded:
		return "blinded"
	case StateSigned:
		return "signed"
	case StateUnblinded:
		return "unblinded"
	case StateVerified:
		return "verified"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// base holds what every state knows about the session.
type base struct {
	pk      *blindrsa.PublicKey
	h       hash.Function
	message []byte
	digest  *saferith.Nat
}

// PublicKey returns the signer's key this session runs against.
func (b *base) PublicKey() *blindrsa.PublicKey {
	return b.pk
}

// Hash returns the function used to encode the message.
func (b *base) Hash() hash.Function {
	return b.h
}

// Message returns a copy of the message being signed.
func (b *base) Message() []byte {
	return append([]byte(nil), b.message...)
}

// Digest returns the encoded message.
func (b *base) Digest() *saferith.Nat {
	return b.digest
}

// blinding holds the values fixed when the message was blinded.
type blinding struct {
	session string
	blinded *saferith.Nat
	r       *saferith.Nat
}

// Session returns the identifier of this protocol run.
func (b *blinding) Session() string {
	return b.session
}

// BlindedValue returns the value sent to the signer.
func (b *blinding) BlindedValue() *saferith.Nat {
	return b.blinded
}

// BlindFactor returns r. It must stay private until the signature is unblinded,
// and should only be disclosed for an audit.
func (b *blinding) BlindFactor() *saferith.Nat {
	return b.r
}

// Hashed is the first state: the message has been encoded.
type Hashed struct {
	base
}

// Hash starts a session for message against the signer's public key pk.
func Hash(h hash.Function, pk *blindrsa.PublicKey, message []byte) *Hashed {
	return &Hashed{base{
		pk:      pk,
		h:       h,
		message: append([]byte(nil), message...),
		digest:  h.Encode(message),
	}}
}

// State returns StateHashed.
func (*Hashed) State() State { return StateHashed }

// Blind draws a fresh blinding factor from rand and blinds the digest.
// A new session identifier is assigned.
func (s *Hashed) Blind(rand io.Reader) (*Blinded, error) {
	blinded, r, err := blindrsa.BlindDigest(rand, s.pk, s.digest)
	if err != nil {
		return nil, &Error{State: StateHashed, Err: err}
	}
	return &Blinded{
		base: s.base,
		blinding: blinding{
			session: uuid.NewString(),
			blinded: blinded,
			r:       r,
		},
	}, nil
}

// Blinded is the state where the blinded value is ready to be sent to the signer.
type Blinded struct {
	base
	blinding
}

// State returns StateBlinded.
func (*Blinded) State() State { return StateBlinded }

// Request returns the message to send to the signer.
func (s *Blinded) Request() *BlindedMessage {
	return &BlindedMessage{
		Session: s.session,
		Blinded: blindrsa.FormatNat(s.blinded),
	}
}

// Receive processes the signer's answer.
func (s *Blinded) Receive(msg *SignedMessage) (*Signed, error) {
	if msg == nil {
		return nil, &Error{State: StateBlinded, Session: s.session, Err: ErrNilMessage}
	}
	if msg.Session != s.session {
		return nil, &Error{State: StateBlinded, Session: s.session, Err: ErrSessionMismatch}
	}
	signed, err := blindrsa.ParseNatMod(msg.Signed, s.pk.N())
	if err != nil {
		return nil, &Error{State: StateBlinded, Session: s.session, Err: err}
	}
	return &Signed{
		base:     s.base,
		blinding: s.blinding,
		signed:   signed,
	}, nil
}

// Signed is the state where the signer's output has been received.
type Signed struct {
	base
	blinding
	signed *saferith.Nat
}

// State returns StateSigned.
func (*Signed) State() State { return StateSigned }

// SignedValue returns the signer's output, still blinded.
func (s *Signed) SignedValue() *saferith.Nat {
	return s.signed
}

// Unblind removes the blinding factor.
func (s *Signed) Unblind() (*Unblinded, error) {
	sig, err := s.pk.Unblind(s.signed, s.r)
	if err != nil {
		return nil, &Error{State: StateSigned, Session: s.session, Err: err}
	}
	return &Unblinded{
		base:      s.base,
		blinding:  s.blinding,
		signature: sig,
	}, nil
}

// Unblinded is the state holding a signature on the original message,
// not yet checked.
type Unblinded struct {
	base
	blinding
	signature *saferith.Nat
}

// State returns StateUnblinded.
func (*Unblinded) State() State { return StateUnblinded }

// Signature returns the unblinded signature.
func (s *Unblinded) Signature() *saferith.Nat {
	return s.signature
}

// Verify checks the signature against the public key.
// It returns false, and no Verified state, if the signer cheated.
func (s *Unblinded) Verify() (*Verified, bool) {
	if !s.pk.Verify(s.h, s.message, s.signature) {
		return nil, false
	}
	return &Verified{
		base:      s.base,
		session:   s.session,
		signature: s.signature,
	}, true
}

// Disclose returns the message revealing the signed message to the signer.
// The blinding factor is only included when withBlindFactor is set, for an audit.
func (s *Unblinded) Disclose(withBlindFactor bool) *DisclosureMessage {
	msg := &DisclosureMessage{
		Session:   s.session,
		Message:   s.Message(),
		Signature: blindrsa.FormatNat(s.signature),
	}
	if withBlindFactor {
		msg.BlindFactor = blindrsa.FormatNat(s.r)
	}
	return msg
}

// Verified is the terminal state: the requester holds a valid signature.
type Verified struct {
	base
	session   string
	signature *saferith.Nat
}

// State returns StateVerified.
func (*Verified) State() State { return StateVerified }

// Session returns the identifier of this protocol run.
func (s *Verified) Session() string {
	return s.session
}

// Signature returns the verified signature.
func (s *Verified) Signature() *saferith.Nat {
	return s.signature
}
