package bulk

import (
	"context"

	"github.com/pingcap-incubator/tinybulk/kv/storage"
)

// Fold reduces src through read-only chunked transactions. fold receives the
// state committed so far, a snapshot to read from, and one chunk; it returns
// the new state. The seed is consumed once at the start of the operation.
//
// A retried generation re-runs fold from the pre-generation state, never from
// a partially folded one, so fold must not mutate its input state in place.
//
// On error or cancellation the state accumulated from completed generations
// is returned alongside the error.
func Fold[T, S any](ctx context.Context, db storage.Storage, src Sequence[T], seed S, fold func(S, storage.ReadTxn, []T) (S, error), opts ...Option) (S, error) {
	o := newOptions(opts)
	// Reads have no effects to double-apply.
	o.idempotent = true

	state := seed
	var pending S
	_, err := runGenerations(ctx, db, src, o, -1, true,
		func(txn storage.Txn, chunk []T, _ *RetryContext) error {
			next, err := fold(state, txn, chunk)
			if err != nil {
				return err
			}
			pending = next
			return nil
		},
		func([]T, *RetryContext) error {
			state = pending
			return nil
		})
	return state, err
}

// Aggregate is Fold composed with a finishing transform, e.g. sum and count
// folded together, finished into an average.
func Aggregate[T, S, R any](ctx context.Context, db storage.Storage, src Sequence[T], seed S, fold func(S, storage.ReadTxn, []T) (S, error), finish func(S) R, opts ...Option) (R, error) {
	state, err := Fold(ctx, db, src, seed, fold, opts...)
	return finish(state), err
}

// FoldKeys is Fold over a key sequence with the value lookup done for the
// caller: fold sees each chunk's keys paired with their current values.
// Absent keys yield nil values.
func FoldKeys[S any](ctx context.Context, db storage.Storage, keys [][]byte, seed S, fold func(S, []storage.KeyValue) (S, error), opts ...Option) (S, error) {
	return Fold(ctx, db, FromSlice(keys), seed,
		func(s S, txn storage.ReadTxn, chunk [][]byte) (S, error) {
			kvs := make([]storage.KeyValue, 0, len(chunk))
			for _, k := range chunk {
				v, err := txn.Get(k)
				if err != nil {
					return s, err
				}
				kvs = append(kvs, storage.KeyValue{Key: k, Value: v})
			}
			return fold(s, kvs)
		}, opts...)
}
