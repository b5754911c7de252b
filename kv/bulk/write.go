package bulk

import (
	"context"

	"github.com/pingcap-incubator/tinybulk/kv/storage"
)

// Write stores every pair, slicing the input into adaptively sized
// transactions. Returns the number of pairs durably written, which equals
// len(pairs) on success. Setting a key is idempotent, so maybe-committed
// failures are retried without the caller opting in.
func Write(ctx context.Context, db storage.Storage, pairs []storage.KeyValue, opts ...Option) (int64, error) {
	o := newOptions(opts)
	o.idempotent = true
	return runGenerations(ctx, db, FromSlice(pairs), o, int64(len(pairs)), false,
		func(txn storage.Txn, chunk []storage.KeyValue, _ *RetryContext) error {
			for _, kv := range chunk {
				if err := txn.Set(kv.Key, kv.Value); err != nil {
					return err
				}
			}
			return nil
		}, nil)
}

// Clear removes every key of r in a single adaptive operation. The range is
// cleared in one transaction per generation, sliced by key count.
func Clear(ctx context.Context, db storage.Storage, keys [][]byte, opts ...Option) (int64, error) {
	o := newOptions(opts)
	o.idempotent = true
	return runGenerations(ctx, db, FromSlice(keys), o, int64(len(keys)), false,
		func(txn storage.Txn, chunk [][]byte, _ *RetryContext) error {
			for _, k := range chunk {
				if err := txn.Clear(k); err != nil {
					return err
				}
			}
			return nil
		}, nil)
}
