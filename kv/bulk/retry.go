package bulk

import (
	"context"
	"time"

	"github.com/pingcap/errors"

	"github.com/pingcap-incubator/tinybulk/kv/storage"
	"github.com/pingcap-incubator/tinybulk/log"
)

// Executor runs a unit of work inside one transaction and retries it on
// classified-retryable failures. Retries reuse the same transaction identity
// through Reset, so telemetry can correlate the attempts of one logical unit.
type Executor struct {
	Storage storage.Storage

	// MaxRetries bounds the number of retries of one unit of work.
	// Zero means no bound.
	MaxRetries int
	// MaxDuration bounds the elapsed time spent on one unit of work
	// including retries. Zero means no bound.
	MaxDuration time.Duration
	// Idempotent declares that the unit of work is safe to re-apply. Only
	// idempotent work is retried after a maybe-committed failure; for
	// anything else the ambiguity propagates to the caller.
	Idempotent bool
	// RetryOverload controls whether size/duration pushback from the store
	// (transaction too old, too large, timed out) is retried here. The
	// generation controller disables it so it can shrink the chunk first.
	RetryOverload bool
}

// Run executes f inside a read/write transaction and commits. If ctx is
// already canceled, f is never called and no transaction is begun.
func (e *Executor) Run(ctx context.Context, f func(storage.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn, err := e.Storage.Begin(ctx)
	if err != nil {
		return err
	}
	defer txn.Discard()
	return e.RunWith(ctx, txn, false, func(int) error { return f(txn) })
}

// RunReadOnly executes f against a read-only snapshot. There is no commit;
// completing f is the unit's success.
func (e *Executor) RunReadOnly(ctx context.Context, f func(storage.ReadTxn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn, err := e.Storage.BeginReadOnly(ctx)
	if err != nil {
		return err
	}
	defer txn.Discard()
	return e.RunWith(ctx, txn, true, func(int) error { return f(txn) })
}

// RunWith drives the retry loop over an existing transaction. attempt
// receives the number of retries already performed for this unit (0 on the
// first call). The transaction is not discarded here; the caller owns it.
//
// Error contract: a store-classified fatal error, or any error produced by
// caller code, terminates the unit. Store errors surface as the single
// underlying *storage.Error; caller errors are returned as-is.
func (e *Executor) RunWith(ctx context.Context, txn storage.Txn, readOnly bool, attempt func(retries int) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	retries := 0
	for {
		err := attempt(retries)
		if err == nil && !readOnly {
			err = txn.Commit()
		}
		if err == nil {
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}

		cause := errors.Cause(err)
		serr, isStore := cause.(*storage.Error)
		if !isStore {
			// Caller code failed; not ours to retry.
			return err
		}
		switch storage.Classify(serr) {
		case storage.ClassFatal:
			return serr
		case storage.ClassMaybeCommitted:
			if !e.Idempotent {
				return serr
			}
		case storage.ClassRetryable:
			if !e.RetryOverload && storage.IsOverload(serr) {
				return serr
			}
		}

		retries++
		if e.MaxRetries > 0 && retries > e.MaxRetries {
			log.Warnf("txn %d: retry budget exhausted after %d retries: %v", txn.ID(), retries-1, serr)
			return serr
		}
		if e.MaxDuration > 0 && time.Since(start) > e.MaxDuration {
			log.Warnf("txn %d: retry time budget exhausted after %v: %v", txn.ID(), time.Since(start), serr)
			return serr
		}
		if rerr := txn.Reset(); rerr != nil {
			return errors.Cause(rerr)
		}
		log.Debugf("txn %d: retry %d after %s", txn.ID(), retries, storage.Classify(serr))
	}
}
