package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cronokirby/saferith"
	"github.com/rs/zerolog"
	"github.com/taurusgroup/blind-sig/pkg/audit"
	"github.com/taurusgroup/blind-sig/pkg/blindrsa"
	"github.com/taurusgroup/blind-sig/pkg/hash"
	"github.com/taurusgroup/blind-sig/pkg/pool"
)

// Service is the signer's side of the protocol.
// It is safe for concurrent use.
type Service struct {
	sk     *blindrsa.SecretKey
	pk     *blindrsa.PublicKey
	signer blindrsa.Signer
	hash   hash.Function
	store  audit.Store
	pl     *pool.Pool
	log    zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithStore records every signed blinded value in store, enabling Audit.
func WithStore(store audit.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithHash sets the hash function announced to requesters.
func WithHash(h hash.Function) Option {
	return func(s *Service) { s.hash = h }
}

// WithPool parallelizes SignAll on pl.
func WithPool(pl *pool.Pool) Option {
	return func(s *Service) { s.pl = pl }
}

// WithSigner overrides the signer chosen by the secret key.
func WithSigner(signer blindrsa.Signer) Option {
	return func(s *Service) { s.signer = signer }
}

// NewService returns a signer for the key pair (sk, pk).
func NewService(sk *blindrsa.SecretKey, pk *blindrsa.PublicKey, opts ...Option) (*Service, error) {
	if sk == nil || pk == nil {
		return nil, fmt.Errorf("protocol: new service: %w", blindrsa.ErrInvalidKeyMaterial)
	}
	if sk.N().Nat().Eq(pk.N().Nat()) != 1 {
		return nil, fmt.Errorf("protocol: new service: %w: moduli differ", blindrsa.ErrInvalidKeyMaterial)
	}
	s := &Service{
		sk:     sk,
		pk:     pk,
		signer: sk.Signer(),
		hash:   hash.Default,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.hash.Available() {
		return nil, fmt.Errorf("protocol: new service: unknown hash function %s", s.hash)
	}
	if s.signer.Modulus().Nat().Eq(pk.N().Nat()) != 1 {
		return nil, fmt.Errorf("protocol: new service: %w: signer modulus differs", blindrsa.ErrInvalidKeyMaterial)
	}
	s.log = s.log.With().Str("hash", s.hash.String()).Logger()
	return s, nil
}

// Announce returns the first message of every session.
func (s *Service) Announce() *PublicKeyMessage {
	return NewPublicKeyMessage(s.pk, s.hash)
}

// Sign answers a requester's blinded value.
//
// With a store configured, the blinded value is recorded first and a session
// that was already signed is refused. The record is removed if signing fails.
func (s *Service) Sign(ctx context.Context, msg *BlindedMessage) (*SignedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blinded, err := s.parse(msg)
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if err = s.store.Put(ctx, msg.Session, s.record(msg.Session, blinded)); err != nil {
			s.log.Warn().Err(err).Str("session", msg.Session).Msg("failed to record")
			return nil, &Error{State: StateBlinded, Session: msg.Session, Err: err}
		}
	}
	signed, err := s.signer.Sign(blinded)
	if err != nil {
		s.log.Error().Err(err).Str("session", msg.Session).Msg("failed to sign")
		s.forget(msg.Session)
		return nil, &Error{State: StateBlinded, Session: msg.Session, Err: err}
	}
	s.log.Info().Str("session", msg.Session).Msg("signed")
	return &SignedMessage{Session: msg.Session, Signed: blindrsa.FormatNat(signed)}, nil
}

// SignAll answers several blinded values, signing them in parallel on the pool.
//
// Every message is validated before any is recorded, and the batch is recorded
// atomically. Nothing is returned, and nothing stays recorded, if any message
// is refused.
func (s *Service) SignAll(ctx context.Context, msgs []*BlindedMessage) ([]*SignedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blinded := make([]*saferith.Nat, len(msgs))
	for i, msg := range msgs {
		var err error
		if blinded[i], err = s.parse(msg); err != nil {
			return nil, err
		}
	}
	if s.store != nil {
		recs := make([]*audit.Record, len(msgs))
		for i, msg := range msgs {
			recs[i] = s.record(msg.Session, blinded[i])
		}
		if err := s.store.PutAll(ctx, recs); err != nil {
			s.log.Warn().Err(err).Int("count", len(msgs)).Msg("failed to record batch")
			return nil, &Error{State: StateBlinded, Err: err}
		}
	}
	signed, err := blindrsa.SignBatch(s.pl, s.signer, blinded)
	if err != nil {
		s.log.Error().Err(err).Int("count", len(msgs)).Msg("failed to sign batch")
		for _, msg := range msgs {
			s.forget(msg.Session)
		}
		return nil, err
	}
	out := make([]*SignedMessage, len(msgs))
	for i, msg := range msgs {
		out[i] = &SignedMessage{Session: msg.Session, Signed: blindrsa.FormatNat(signed[i])}
	}
	s.log.Info().Int("count", len(msgs)).Int("workers", s.pl.Workers()).Msg("signed batch")
	return out, nil
}

// parse validates msg against the modulus.
func (s *Service) parse(msg *BlindedMessage) (*saferith.Nat, error) {
	if msg == nil {
		return nil, &Error{State: StateBlinded, Err: ErrNilMessage}
	}
	blinded, err := msg.Value(s.pk.N())
	if err != nil {
		s.log.Warn().Err(err).Stringer("msg", msg).Msg("failed to validate")
		return nil, &Error{State: StateBlinded, Session: msg.Session, Err: err}
	}
	return blinded, nil
}

func (s *Service) record(session string, blinded *saferith.Nat) *audit.Record {
	return &audit.Record{
		Session:  session,
		Blinded:  blindrsa.FormatNat(blinded),
		SignedAt: time.Now().UnixNano(),
	}
}

// forget removes the record of a session that was not signed, so that the
// requester may retry it.
func (s *Service) forget(session string) {
	if s.store == nil {
		return
	}
	// the caller's context may already be done
	if err := s.store.Delete(context.Background(), session); err != nil {
		s.log.Error().Err(err).Str("session", session).Msg("failed to remove record")
	}
}

// VerifyDisclosure checks a disclosed signature with the private key.
// A malformed message is reported as false.
func (s *Service) VerifyDisclosure(msg *DisclosureMessage) bool {
	if msg == nil {
		return false
	}
	sig, err := blindrsa.ParseNatMod(msg.Signature, s.pk.N())
	if err != nil {
		s.log.Warn().Err(err).Stringer("msg", msg).Msg("failed to parse disclosure")
		return false
	}
	ok := s.sk.VerifySelf(s.hash, msg.Message, sig)
	s.log.Info().Str("session", msg.Session).Bool("valid", ok).Msg("disclosure verified")
	return ok
}

// Audit checks that the disclosed message and blinding factor produce the
// blinded value recorded for the session.
//
// It needs a store, and a disclosure carrying the blinding factor.
func (s *Service) Audit(ctx context.Context, msg *DisclosureMessage) (bool, error) {
	if s.store == nil {
		return false, ErrNoAuditStore
	}
	if msg == nil {
		return false, ErrNilMessage
	}
	if msg.Session == "" {
		return false, ErrMissingSession
	}
	if msg.BlindFactor == "" {
		return false, ErrMissingBlindFactor
	}
	r, err := blindrsa.ParseNatMod(msg.BlindFactor, s.pk.N())
	if err != nil {
		return false, fmt.Errorf("protocol: audit %s: %w", msg.Session, err)
	}
	a := audit.Auditor{Store: s.store, PublicKey: s.pk, Hash: s.hash}
	ok, err := a.Check(ctx, msg.Session, msg.Message, r)
	if err != nil {
		if !errors.Is(err, audit.ErrNotFound) {
			s.log.Error().Err(err).Str("session", msg.Session).Msg("failed to audit")
		}
		return false, err
	}
	s.log.Info().Str("session", msg.Session).Bool("match", ok).Msg("blinding audited")
	return ok, nil
}
