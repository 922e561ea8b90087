package audit

import (
	"context"
	"fmt"

	"github.com/cronokirby/saferith"
	"github.com/taurusgroup/blind-sig/pkg/blindrsa"
	"github.com/taurusgroup/blind-sig/pkg/hash"
)

// Auditor checks that a disclosed message and blinding factor reproduce the
// blinded value the signer recorded for a session.
type Auditor struct {
	Store     Store
	PublicKey *blindrsa.PublicKey
	Hash      hash.Function
}

// Check loads the record of session and returns whether
// H(message)⋅rᴱ (mod N) equals the blinded value it holds.
//
// An error is returned only when the record cannot be loaded or decoded;
// a mismatch is reported as false.
func (a *Auditor) Check(ctx context.Context, session string, message []byte, r *saferith.Nat) (bool, error) {
	rec, err := a.Store.Get(ctx, session)
	if err != nil {
		return false, err
	}
	blinded, err := blindrsa.ParseNatMod(rec.Blinded, a.PublicKey.N())
	if err != nil {
		return false, fmt.Errorf("audit: record %s: %w", session, err)
	}
	return a.PublicKey.VerifyBlinding(a.Hash, blinded, r, message), nil
}
