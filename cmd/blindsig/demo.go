package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	mrand "math/rand"
	"strings"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"
	"github.com/taurusgroup/blind-sig/pkg/audit"
	"github.com/taurusgroup/blind-sig/pkg/blindrsa"
	"github.com/taurusgroup/blind-sig/pkg/pool"
	"github.com/taurusgroup/blind-sig/pkg/protocol"
	"golang.org/x/sync/errgroup"
)

var errCheated = errors.New("signer returned an invalid signature")

// verdict is the signer's answer to a disclosure.
type verdict struct {
	Valid   bool `cbor:"valid"`
	Audited bool `cbor:"audited"`
	Match   bool `cbor:"match"`
}

// Report summarizes a demo run.
type Report struct {
	Sessions int
	Verified int64
	Audited  int64
}

// newSigner builds the signer's service from a freshly generated key.
func newSigner(cfg *Config, store audit.Store, pl *pool.Pool, log zerolog.Logger) (*protocol.Service, error) {
	key, err := rsa.GenerateKey(rand.Reader, cfg.Bits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	km := blindrsa.FromRSA(key)
	pk, err := km.PublicKey()
	if err != nil {
		return nil, err
	}
	sk, err := km.SecretKey()
	if err != nil {
		return nil, err
	}
	var signer blindrsa.Signer = sk.DirectSigner()
	if strings.ToLower(cfg.Signer) == signerCRT {
		if signer, err = sk.CRTSigner(); err != nil {
			return nil, err
		}
	}
	return protocol.NewService(sk, pk,
		protocol.WithSigner(signer),
		protocol.WithHash(cfg.HashFunction()),
		protocol.WithStore(store),
		protocol.WithPool(pl),
		protocol.WithLogger(log.With().Str("role", "signer").Str("mode", cfg.Signer).Logger()),
	)
}

// RunDemo runs cfg.Sessions requesters against a single signer.
func RunDemo(ctx context.Context, cfg *Config, log zerolog.Logger) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store *audit.LevelStore
	if cfg.AuditDir != "" {
		var err error
		if store, err = audit.OpenLevelStore(cfg.AuditDir); err != nil {
			return nil, err
		}
	} else {
		store = audit.NewMemStore()
	}
	defer store.Close()

	pl := pool.NewPool(cfg.Workers)
	defer pl.TearDown()

	log.Info().Int("bits", cfg.Bits).Msg("generating key")
	svc, err := newSigner(cfg, store, pl, log)
	if err != nil {
		return nil, err
	}

	// crypto/rand.Reader is safe for concurrent use, a seeded source is not
	var blindRand io.Reader = rand.Reader
	if cfg.Seed != 0 {
		log.Warn().Int64("seed", cfg.Seed).Msg("blinding factors are deterministic")
		blindRand = pool.NewLockedReader(mrand.New(mrand.NewSource(cfg.Seed)))
	}

	net := newNetwork(cfg.Sessions)
	served := make(chan struct{})
	go func() {
		defer close(served)
		serve(ctx, svc, net, cfg)
	}()

	report := &Report{Sessions: cfg.Sessions}
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Batch {
		// the batch is only signed once every requester has sent its value
		g.SetLimit(cfg.Sessions)
	} else {
		g.SetLimit(cfg.Concurrency)
	}
	for i := 0; i < cfg.Sessions; i++ {
		i := i
		g.Go(func() error {
			message := []byte(fmt.Sprintf("%s #%d", cfg.Message, i))
			audited, err := request(gctx, i, net, blindRand, message, cfg.Audit, log.With().Str("role", "requester").Int("id", i).Logger())
			if err != nil {
				return fmt.Errorf("requester %d: %w", i, err)
			}
			atomic.AddInt64(&report.Verified, 1)
			if audited {
				atomic.AddInt64(&report.Audited, 1)
			}
			return nil
		})
	}
	err = g.Wait()
	net.Close()
	<-served
	if err != nil {
		return report, err
	}
	log.Info().Int64("verified", report.Verified).Int64("audited", report.Audited).Msg("done")
	return report, nil
}

// serve answers requests until the network is closed.
func serve(ctx context.Context, svc *protocol.Service, net *network, cfg *Config) {
	var pending []envelope
	for req := range net.Next() {
		switch req.Kind {
		case kindAnnounce:
			data, err := svc.Announce().MarshalBinary()
			net.Reply(req, data, err)
		case kindBlinded:
			if !cfg.Batch {
				data, err := signOne(ctx, svc, req.Payload)
				net.Reply(req, data, err)
				continue
			}
			pending = append(pending, req)
			if len(pending) == cfg.Sessions {
				signBatch(ctx, svc, net, pending)
				pending = nil
			}
		case kindDisclosure:
			data, err := disclose(ctx, svc, req.Payload, cfg.Audit)
			net.Reply(req, data, err)
		default:
			net.Reply(req, nil, fmt.Errorf("unknown request %s", req.Kind))
		}
	}
}

func signOne(ctx context.Context, svc *protocol.Service, payload []byte) ([]byte, error) {
	var msg protocol.BlindedMessage
	if err := msg.UnmarshalBinary(payload); err != nil {
		return nil, err
	}
	signed, err := svc.Sign(ctx, &msg)
	if err != nil {
		return nil, err
	}
	return signed.MarshalBinary()
}

func signBatch(ctx context.Context, svc *protocol.Service, net *network, reqs []envelope) {
	msgs := make([]*protocol.BlindedMessage, len(reqs))
	for i, req := range reqs {
		msgs[i] = new(protocol.BlindedMessage)
		if err := msgs[i].UnmarshalBinary(req.Payload); err != nil {
			for _, r := range reqs {
				net.Reply(r, nil, err)
			}
			return
		}
	}
	signed, err := svc.SignAll(ctx, msgs)
	for i, req := range reqs {
		if err != nil {
			net.Reply(req, nil, err)
			continue
		}
		data, err := signed[i].MarshalBinary()
		net.Reply(req, data, err)
	}
}

func disclose(ctx context.Context, svc *protocol.Service, payload []byte, withAudit bool) ([]byte, error) {
	var msg protocol.DisclosureMessage
	if err := msg.UnmarshalBinary(payload); err != nil {
		return nil, err
	}
	v := verdict{Valid: svc.VerifyDisclosure(&msg)}
	if withAudit {
		match, err := svc.Audit(ctx, &msg)
		if err != nil {
			return nil, err
		}
		v.Audited, v.Match = true, match
	}
	return cbor.Marshal(v)
}

// request runs one session from the requester's side, and returns whether the
// signer audited it.
func request(ctx context.Context, id int, net *network, random io.Reader, message []byte, withAudit bool, log zerolog.Logger) (bool, error) {
	data, err := net.Call(ctx, id, kindAnnounce, nil)
	if err != nil {
		return false, err
	}
	var announce protocol.PublicKeyMessage
	if err = announce.UnmarshalBinary(data); err != nil {
		return false, err
	}
	pk, h, err := announce.PublicKey()
	if err != nil {
		return false, err
	}

	blinded, err := protocol.Hash(h, pk, message).Blind(random)
	if err != nil {
		return false, err
	}
	log = log.With().Str("session", blinded.Session()).Logger()
	if data, err = blinded.Request().MarshalBinary(); err != nil {
		return false, err
	}
	if data, err = net.Call(ctx, id, kindBlinded, data); err != nil {
		return false, err
	}
	var answer protocol.SignedMessage
	if err = answer.UnmarshalBinary(data); err != nil {
		return false, err
	}
	signed, err := blinded.Receive(&answer)
	if err != nil {
		return false, err
	}
	unblinded, err := signed.Unblind()
	if err != nil {
		return false, err
	}
	if _, ok := unblinded.Verify(); !ok {
		log.Error().Msg("failed to verify")
		return false, errCheated
	}
	log.Debug().Msg("signature verified")

	if data, err = unblinded.Disclose(withAudit).MarshalBinary(); err != nil {
		return false, err
	}
	if data, err = net.Call(ctx, id, kindDisclosure, data); err != nil {
		return false, err
	}
	var v verdict
	if err = cbor.Unmarshal(data, &v); err != nil {
		return false, err
	}
	if !v.Valid || (v.Audited && !v.Match) {
		return false, fmt.Errorf("signer rejected disclosure: %+v", v)
	}
	log.Info().Bool("audited", v.Audited).Msg("session complete")
	return v.Audited, nil
}
