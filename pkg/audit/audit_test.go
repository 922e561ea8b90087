package audit_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/blind-sig/internal/test"
	"github.com/taurusgroup/blind-sig/pkg/audit"
	"github.com/taurusgroup/blind-sig/pkg/blindrsa"
	"github.com/taurusgroup/blind-sig/pkg/hash"
)

func TestLevelStore(t *testing.T) {
	ctx := context.Background()
	stores := map[string]func(t *testing.T) *audit.LevelStore{
		"mem": func(t *testing.T) *audit.LevelStore {
			return audit.NewMemStore()
		},
		"file": func(t *testing.T) *audit.LevelStore {
			s, err := audit.OpenLevelStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			rec := &audit.Record{Session: "a", Blinded: "ff", SignedAt: time.Now().UnixNano()}
			require.NoError(t, s.Put(ctx, "a", rec))

			got, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, rec, got)

			err = s.Put(ctx, "a", &audit.Record{Session: "a", Blinded: "00"})
			assert.ErrorIs(t, err, audit.ErrDuplicateSession)
			got, err = s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "ff", got.Blinded, "a duplicate must not overwrite the record")

			_, err = s.Get(ctx, "b")
			assert.ErrorIs(t, err, audit.ErrNotFound)

			assert.Error(t, s.Put(ctx, "", rec))
			assert.Error(t, s.Put(ctx, "c", nil))

			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			assert.ErrorIs(t, s.Put(cancelled, "d", rec), context.Canceled)
			_, err = s.Get(cancelled, "a")
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestLevelStore_PutAll(t *testing.T) {
	ctx := context.Background()
	s := audit.NewMemStore()
	defer s.Close()

	require.NoError(t, s.PutAll(ctx, []*audit.Record{
		{Session: "a", Blinded: "01"},
		{Session: "b", Blinded: "02"},
	}))
	got, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "02", got.Blinded)

	// a session repeated within the batch writes nothing
	err = s.PutAll(ctx, []*audit.Record{
		{Session: "c", Blinded: "03"},
		{Session: "c", Blinded: "04"},
	})
	assert.ErrorIs(t, err, audit.ErrDuplicateSession)
	_, err = s.Get(ctx, "c")
	assert.ErrorIs(t, err, audit.ErrNotFound)

	// so does a session recorded earlier
	err = s.PutAll(ctx, []*audit.Record{
		{Session: "d", Blinded: "05"},
		{Session: "a", Blinded: "06"},
	})
	assert.ErrorIs(t, err, audit.ErrDuplicateSession)
	_, err = s.Get(ctx, "d")
	assert.ErrorIs(t, err, audit.ErrNotFound)
	got, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "01", got.Blinded)

	assert.Error(t, s.PutAll(ctx, []*audit.Record{{Session: "e"}, nil}))
	assert.Error(t, s.PutAll(ctx, []*audit.Record{{Blinded: "07"}}))
	require.NoError(t, s.PutAll(ctx, nil))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.PutAll(cancelled, []*audit.Record{{Session: "f"}}), context.Canceled)
}

func TestLevelStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := audit.NewMemStore()
	defer s.Close()

	require.NoError(t, s.Put(ctx, "a", &audit.Record{Session: "a", Blinded: "01"}))
	require.NoError(t, s.Delete(ctx, "a"))
	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, audit.ErrNotFound)
	require.NoError(t, s.Delete(ctx, "a"), "deleting a missing session is a no-op")

	// a deleted session can be recorded again
	require.NoError(t, s.Put(ctx, "a", &audit.Record{Session: "a", Blinded: "02"}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.Delete(cancelled, "a"), context.Canceled)
}

func TestLevelStore_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := audit.OpenLevelStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "a", &audit.Record{Session: "a", Blinded: "1234"}))
	require.NoError(t, s.Close())

	s, err = audit.OpenLevelStore(dir)
	require.NoError(t, err)
	defer s.Close()
	rec, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1234", rec.Blinded)
}

func TestLevelStore_ConcurrentPut(t *testing.T) {
	ctx := context.Background()
	s := audit.NewMemStore()
	defer s.Close()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Put(ctx, "same", &audit.Record{Session: "same", Blinded: fmt.Sprintf("%x", i)})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, audit.ErrDuplicateSession)
		}
	}
	assert.Equal(t, 1, ok, "exactly one writer should win")
}

func TestAuditor_Check(t *testing.T) {
	ctx := context.Background()
	pk, err := test.Key(512).PublicKey()
	require.NoError(t, err)
	h := hash.Default
	m := []byte("Hello Chaum!")

	blinded, r, err := blindrsa.Blind(rand.Reader, h, pk, m)
	require.NoError(t, err)

	s := audit.NewMemStore()
	defer s.Close()
	require.NoError(t, s.Put(ctx, "s1", &audit.Record{Session: "s1", Blinded: blindrsa.FormatNat(blinded)}))
	require.NoError(t, s.Put(ctx, "bad", &audit.Record{Session: "bad", Blinded: "not hex"}))

	a := &audit.Auditor{Store: s, PublicKey: pk, Hash: h}

	ok, err := a.Check(ctx, "s1", m, r)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Check(ctx, "s1", []byte("Bob have signed this before"), r)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = a.Check(ctx, "missing", m, r)
	assert.ErrorIs(t, err, audit.ErrNotFound)

	_, err = a.Check(ctx, "bad", m, r)
	assert.ErrorIs(t, err, blindrsa.ErrMalformedIntegerEncoding)
}
