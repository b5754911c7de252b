package storage

import (
	"bytes"
	"context"

	"github.com/pingcap/errors"
)

// Key is an opaque byte string. Keys are ordered lexicographically by the
// store; the encoding that produced them is not this package's business.
type Key []byte

// KeyValue is one entry of the ordered keyspace.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// KeyRange is the half-open interval [Begin, End).
type KeyRange struct {
	Begin Key
	End   Key
}

// Contains reports whether k falls inside the range.
func (r KeyRange) Contains(k []byte) bool {
	return bytes.Compare(r.Begin, k) <= 0 && (len(r.End) == 0 || bytes.Compare(k, r.End) < 0)
}

// Empty reports whether the range can hold no keys.
func (r KeyRange) Empty() bool {
	return len(r.End) > 0 && bytes.Compare(r.Begin, r.End) >= 0
}

// KeyAfter returns the immediate successor of k in the key order: k + 0x00.
// Scans that resume past an already-delivered key start here.
func KeyAfter(k Key) Key {
	next := make(Key, len(k)+1)
	copy(next, k)
	return next
}

// Increment returns the first key that is not prefixed by k, i.e. k with its
// last non-0xff byte incremented and the tail dropped. Fails if k is empty or
// all bytes are 0xff.
func Increment(k Key) (Key, error) {
	for i := len(k) - 1; i >= 0; i-- {
		if k[i] != 0xff {
			next := make(Key, i+1)
			copy(next, k[:i+1])
			next[i]++
			return next, nil
		}
	}
	return nil, errors.New("storage: key has no incrementable byte")
}

// PrefixRange returns the range covering exactly the keys prefixed by p.
func PrefixRange(p Key) (KeyRange, error) {
	end, err := Increment(p)
	if err != nil {
		return KeyRange{}, err
	}
	begin := make(Key, len(p))
	copy(begin, p)
	return KeyRange{Begin: begin, End: end}, nil
}

// Storage is the handle to the transactional store. Implementations hide all
// cluster/engine concerns behind Begin.
type Storage interface {
	// Begin opens a read/write transaction.
	Begin(ctx context.Context) (Txn, error)
	// BeginReadOnly opens a transaction whose mutating methods fail with
	// CodeClientInvalidOp. Reads see a consistent snapshot.
	BeginReadOnly(ctx context.Context) (Txn, error)
	Close() error
}

// ReadTxn is the read-only capability handed to callbacks that must not
// mutate. The concrete transaction behind it still enforces the split, so
// coercing a ReadTxn back into a Txn does not grant write access.
type ReadTxn interface {
	// Get returns the value for key, or nil if the key is absent.
	Get(key []byte) ([]byte, error)
	// GetRange returns up to limit entries of r in ascending key order.
	// limit <= 0 means no limit.
	GetRange(r KeyRange, limit int) ([]KeyValue, error)
}

// Txn is one optimistic transaction. All mutations are buffered locally and
// take effect atomically at Commit, which fails with a retryable error when
// the transaction conflicted, ran too long, or buffered too much.
type Txn interface {
	ReadTxn

	Set(key, value []byte) error
	Clear(key []byte) error
	ClearRange(r KeyRange) error

	// Commit atomically applies the buffered mutations.
	Commit() error
	// Reset prepares the same transaction for another attempt: fresh read
	// version, cleared read/write state. The identity returned by ID is
	// preserved so telemetry can correlate attempts.
	Reset() error
	// Discard abandons the transaction. Safe to call after Commit.
	Discard()

	// Size returns the number of bytes of buffered mutations.
	Size() int
	// ID is a process-unique identity, stable across Reset.
	ID() uint64
}
