package audit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

var (
	// ErrNotFound is returned when no record exists for a session.
	ErrNotFound = errors.New("audit: session not found")
	// ErrDuplicateSession is returned when a session is recorded twice.
	ErrDuplicateSession = errors.New("audit: session already recorded")
)

// Record is what the signer retains about a session it signed.
type Record struct {
	Session string `cbor:"session"`
	// Blinded is the hex encoding of the value the signer received.
	Blinded string `cbor:"blinded"`
	// SignedAt is a unix timestamp in nanoseconds.
	SignedAt int64 `cbor:"signed_at"`
}

// Store retains the blinded value of each signed session.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Put records rec under session. It fails with ErrDuplicateSession if the
	// session already exists.
	Put(ctx context.Context, session string, rec *Record) error
	// PutAll records every rec under rec.Session, or none of them. It fails with
	// ErrDuplicateSession if a session exists or appears twice in recs.
	PutAll(ctx context.Context, recs []*Record) error
	// Get returns the record of session, or ErrNotFound.
	Get(ctx context.Context, session string) (*Record, error)
	// Delete removes the record of session. Deleting a missing session is a no-op.
	Delete(ctx context.Context, session string) error
	Close() error
}

var _ Store = (*LevelStore)(nil)

const keyPrefix = "blinded/"

// LevelStore is a Store backed by goleveldb.
type LevelStore struct {
	db *leveldb.DB
	// mu makes the existence checks and the write of Put and PutAll atomic.
	mu sync.Mutex
}

// OpenLevelStore opens, or creates, a store in dir.
// A corrupted database is recovered.
func OpenLevelStore(dir string) (*LevelStore, error) {
	path := filepath.Join(dir, "audit.db")
	db, err := leveldb.OpenFile(path, &opt.Options{
		OpenFilesCacheCapacity: 64,
		BlockCacheCapacity:     8 * opt.MiB,
		WriteBuffer:            4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
	if _, corrupted := err.(*lerrors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	return &LevelStore{db: db}, nil
}

// NewMemStore returns a store held in memory, lost on Close.
func NewMemStore() *LevelStore {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		// memory storage cannot fail to open
		panic(fmt.Errorf("audit: open memory storage: %w", err))
	}
	return &LevelStore{db: db}
}

func key(session string) []byte {
	return []byte(keyPrefix + session)
}

// Put implements Store.
func (s *LevelStore) Put(ctx context.Context, session string, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == "" || rec == nil {
		return errors.New("audit: put: empty session or record")
	}
	data, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: put %s: %w", session, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	exists, err := s.db.Has(key(session), nil)
	if err != nil {
		return fmt.Errorf("audit: put %s: %w", session, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, session)
	}
	if err = s.db.Put(key(session), data, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("audit: put %s: %w", session, err)
	}
	return nil
}

// PutAll implements Store. The records are written in a single leveldb batch.
func (s *LevelStore) PutAll(ctx context.Context, recs []*Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	seen := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		if rec == nil || rec.Session == "" {
			return errors.New("audit: put: empty session or record")
		}
		if _, ok := seen[rec.Session]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateSession, rec.Session)
		}
		seen[rec.Session] = struct{}{}
		data, err := cbor.Marshal(rec)
		if err != nil {
			return fmt.Errorf("audit: put %s: %w", rec.Session, err)
		}
		batch.Put(key(rec.Session), data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for session := range seen {
		exists, err := s.db.Has(key(session), nil)
		if err != nil {
			return fmt.Errorf("audit: put %s: %w", session, err)
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateSession, session)
		}
	}
	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("audit: put batch: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *LevelStore) Delete(ctx context.Context, session string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Delete(key(session), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("audit: delete %s: %w", session, err)
	}
	return nil
}

// Get implements Store.
func (s *LevelStore) Get(ctx context.Context, session string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.db.Get(key(session), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, session)
	}
	if err != nil {
		return nil, fmt.Errorf("audit: get %s: %w", session, err)
	}
	rec := new(Record)
	if err = cbor.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("audit: get %s: %w", session, err)
	}
	return rec, nil
}

// Close implements Store.
func (s *LevelStore) Close() error {
	return s.db.Close()
}
