package bulk

import (
	"context"

	"github.com/pingcap-incubator/tinybulk/kv/storage"
)

// ForEach applies fn to every item of src inside chunked transactions.
// With no generation-level retries fn runs exactly once per item; a retried
// generation re-invokes fn for that generation's chunk only. fn's effects
// must therefore tolerate re-execution within one uncommitted transaction,
// which the store discards on failure anyway.
//
// Returns the number of items whose effects committed.
func ForEach[T any](ctx context.Context, db storage.Storage, src Sequence[T], fn func(storage.Txn, T) error, opts ...Option) (int64, error) {
	return ForEachBatch(ctx, db, src, func(txn storage.Txn, chunk []T) error {
		for _, item := range chunk {
			if err := fn(txn, item); err != nil {
				return err
			}
		}
		return nil
	}, opts...)
}

// ForEachBatch is ForEach with fn receiving each whole chunk at once, which
// lets the callback do batch-level cost accounting, e.g. watch txn.Size() to
// self-limit what it buffers.
func ForEachBatch[T any](ctx context.Context, db storage.Storage, src Sequence[T], fn func(storage.Txn, []T) error, opts ...Option) (int64, error) {
	o := newOptions(opts)
	return runGenerations(ctx, db, src, o, -1, false,
		func(txn storage.Txn, chunk []T, _ *RetryContext) error {
			return fn(txn, chunk)
		}, nil)
}
