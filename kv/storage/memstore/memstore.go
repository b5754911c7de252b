// Package memstore is an in-memory implementation of the storage interfaces,
// backed by a btree. Data is not written to disk, nor sent anywhere. It is
// intended for tests and benchmarks only, but it implements the full contract:
// snapshot reads, optimistic conflict detection, and the store's transaction
// age and size ceilings, so every failure path of the engine can be exercised
// without a cluster.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"

	"github.com/pingcap-incubator/tinybulk/kv/storage"
)

const (
	// DefaultMaxTxnAge mirrors the duration ceiling of the target store.
	DefaultMaxTxnAge = 5 * time.Second
	// DefaultMaxTxnBytes mirrors the mutation byte ceiling.
	DefaultMaxTxnBytes = 10 << 20
)

type entry struct {
	key   []byte
	value []byte
}

func entryLess(a, b entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Store is an ordered in-memory keyspace with optimistic transactions.
// Configure the ceilings before the first transaction begins.
type Store struct {
	// MaxTxnAge is the age past which a transaction's reads and commit fail
	// with CodeTxnTooOld. Zero disables the check.
	MaxTxnAge time.Duration
	// MaxTxnBytes is the mutation byte budget of one transaction; exceeding
	// it fails with CodeTxnTooLarge. Zero disables the check.
	MaxTxnBytes int

	mu         sync.Mutex
	data       *btree.BTreeG[entry]
	version    uint64
	lastWrite  map[string]uint64
	failCodes  []int
	commitHook func() error
	closed     bool

	nextTxnID atomic.Uint64
}

func New() *Store {
	return &Store{
		MaxTxnAge:   DefaultMaxTxnAge,
		MaxTxnBytes: DefaultMaxTxnBytes,
		data:        btree.NewG[entry](32, entryLess),
		lastWrite:   make(map[string]uint64),
	}
}

var _ storage.Storage = (*Store)(nil)

func (s *Store) Begin(ctx context.Context) (storage.Txn, error) {
	return s.begin(ctx, false)
}

func (s *Store) BeginReadOnly(ctx context.Context) (storage.Txn, error) {
	return s.begin(ctx, true)
}

func (s *Store) begin(ctx context.Context, readOnly bool) (storage.Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("memstore: store is closed")
	}
	return &memTxn{
		s:           s,
		id:          s.nextTxnID.Inc(),
		readOnly:    readOnly,
		readVersion: s.version,
		start:       time.Now(),
		readKeys:    make(map[string]struct{}),
	}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FailNextCommits queues n commit attempts to fail with code before any
// conflict checking happens. Used by tests to force retry paths.
func (s *Store) FailNextCommits(code, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failCodes = append(s.failCodes, code)
	}
}

// SetCommitHook installs fn to run at the head of every commit; a non-nil
// return aborts the commit with that error. Pass nil to remove.
func (s *Store) SetCommitHook(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitHook = fn
}

// Fill inserts pairs directly, bypassing transactions. Test seeding helper.
func (s *Store) Fill(pairs []storage.KeyValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	for _, kv := range pairs {
		s.data.ReplaceOrInsert(entry{key: append([]byte(nil), kv.Key...), value: append([]byte(nil), kv.Value...)})
		s.lastWrite[string(kv.Key)] = s.version
	}
}

// Len returns the number of committed keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Len()
}

// Committed returns the committed value for key, or nil.
func (s *Store) Committed(key []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.data.Get(entry{key: key}); ok {
		return append([]byte(nil), e.value...)
	}
	return nil
}

// Version returns the current commit version.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

const (
	mutSet = iota
	mutClear
	mutClearRange
)

type mutation struct {
	kind  int
	key   []byte
	value []byte
	r     storage.KeyRange
}

type memTxn struct {
	s           *Store
	id          uint64
	readOnly    bool
	readVersion uint64
	start       time.Time
	muts        []mutation
	readKeys    map[string]struct{}
	readRanges  []storage.KeyRange
	size        int
	done        bool
}

var _ storage.Txn = (*memTxn)(nil)

func (t *memTxn) guard() error {
	if t.done {
		return storage.NewError(storage.CodeUsedAfterCommit)
	}
	if t.s.MaxTxnAge > 0 && time.Since(t.start) > t.s.MaxTxnAge {
		return storage.NewError(storage.CodeTxnTooOld)
	}
	return nil
}

func (t *memTxn) Get(key []byte) ([]byte, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	// The transaction sees its own buffered mutations, newest first.
	for i := len(t.muts) - 1; i >= 0; i-- {
		m := t.muts[i]
		switch m.kind {
		case mutSet:
			if bytes.Equal(m.key, key) {
				return append([]byte(nil), m.value...), nil
			}
		case mutClear:
			if bytes.Equal(m.key, key) {
				return nil, nil
			}
		case mutClearRange:
			if m.r.Contains(key) {
				return nil, nil
			}
		}
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.readKeys[string(key)] = struct{}{}
	if e, ok := t.s.data.Get(entry{key: key}); ok {
		return append([]byte(nil), e.value...), nil
	}
	return nil, nil
}

func (t *memTxn) GetRange(r storage.KeyRange, limit int) ([]storage.KeyValue, error) {
	if err := t.guard(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	merged := make(map[string][]byte)
	t.s.data.AscendGreaterOrEqual(entry{key: r.Begin}, func(e entry) bool {
		if len(r.End) > 0 && bytes.Compare(e.key, r.End) >= 0 {
			return false
		}
		merged[string(e.key)] = e.value
		return true
	})
	t.readRanges = append(t.readRanges, r)
	t.s.mu.Unlock()

	for _, m := range t.muts {
		switch m.kind {
		case mutSet:
			if r.Contains(m.key) {
				merged[string(m.key)] = m.value
			}
		case mutClear:
			delete(merged, string(m.key))
		case mutClearRange:
			for k := range merged {
				if m.r.Contains([]byte(k)) {
					delete(merged, k)
				}
			}
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]storage.KeyValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, storage.KeyValue{
			Key:   []byte(k),
			Value: append([]byte(nil), merged[k]...),
		})
	}
	return out, nil
}

func (t *memTxn) mutate(m mutation, cost int) error {
	if err := t.guard(); err != nil {
		return err
	}
	if t.readOnly {
		return storage.NewError(storage.CodeClientInvalidOp)
	}
	if t.s.MaxTxnBytes > 0 && t.size+cost > t.s.MaxTxnBytes {
		return storage.NewError(storage.CodeTxnTooLarge)
	}
	t.muts = append(t.muts, m)
	t.size += cost
	return nil
}

func (t *memTxn) Set(key, value []byte) error {
	return t.mutate(mutation{
		kind:  mutSet,
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	}, len(key)+len(value))
}

func (t *memTxn) Clear(key []byte) error {
	return t.mutate(mutation{kind: mutClear, key: append([]byte(nil), key...)}, len(key))
}

func (t *memTxn) ClearRange(r storage.KeyRange) error {
	return t.mutate(mutation{kind: mutClearRange, r: r}, len(r.Begin)+len(r.End))
}

func (t *memTxn) Commit() error {
	if t.done {
		return storage.NewError(storage.CodeUsedAfterCommit)
	}
	if t.s.MaxTxnAge > 0 && time.Since(t.start) > t.s.MaxTxnAge {
		return storage.NewError(storage.CodeTxnTooOld)
	}

	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.failCodes) > 0 {
		code := s.failCodes[0]
		s.failCodes = s.failCodes[1:]
		return storage.NewError(code)
	}
	if s.commitHook != nil {
		if err := s.commitHook(); err != nil {
			return err
		}
	}

	for k := range t.readKeys {
		if s.lastWrite[k] > t.readVersion {
			return storage.NewError(storage.CodeNotCommitted)
		}
	}
	for _, r := range t.readRanges {
		for k, v := range s.lastWrite {
			if v > t.readVersion && r.Contains([]byte(k)) {
				return storage.NewError(storage.CodeNotCommitted)
			}
		}
	}

	if len(t.muts) > 0 {
		s.version++
		for _, m := range t.muts {
			switch m.kind {
			case mutSet:
				s.data.ReplaceOrInsert(entry{key: m.key, value: m.value})
				s.lastWrite[string(m.key)] = s.version
			case mutClear:
				s.data.Delete(entry{key: m.key})
				s.lastWrite[string(m.key)] = s.version
			case mutClearRange:
				var doomed [][]byte
				s.data.AscendGreaterOrEqual(entry{key: m.r.Begin}, func(e entry) bool {
					if len(m.r.End) > 0 && bytes.Compare(e.key, m.r.End) >= 0 {
						return false
					}
					doomed = append(doomed, e.key)
					return true
				})
				for _, k := range doomed {
					s.data.Delete(entry{key: k})
					s.lastWrite[string(k)] = s.version
				}
			}
		}
	}
	t.done = true
	return nil
}

func (t *memTxn) Reset() error {
	s := t.s
	s.mu.Lock()
	rv := s.version
	s.mu.Unlock()

	t.readVersion = rv
	t.start = time.Now()
	t.muts = nil
	t.readKeys = make(map[string]struct{})
	t.readRanges = nil
	t.size = 0
	t.done = false
	return nil
}

func (t *memTxn) Discard() {
	t.done = true
}

func (t *memTxn) Size() int  { return t.size }
func (t *memTxn) ID() uint64 { return t.id }
