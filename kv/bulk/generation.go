package bulk

import (
	"context"
	"time"

	"github.com/pingcap/errors"

	"github.com/pingcap-incubator/tinybulk/kv/storage"
	"github.com/pingcap-incubator/tinybulk/log"
)

// RetryContext is the read-only view a chunk callback gets of the attempt it
// runs in. The controller builds a fresh one per generation and mutates it
// only between attempts.
type RetryContext struct {
	// Generation is the ordinal of the outer loop cycle. Internal retries
	// and overload re-slices of the same chunk keep the same ordinal.
	Generation int
	// Position is the cursor value at the start of this generation: the
	// number of items already durably processed.
	Position int64
	// Step is the chunk size this generation targets.
	Step int
	// Cooldown is the pause that preceded this generation.
	Cooldown time.Duration
	// Retries counts the internal transaction retries already performed for
	// the current attempt cycle. Resets to 0 at each new generation.
	Retries int
	// Txn is the transaction the current attempt runs in.
	Txn storage.Txn

	opStart  time.Time
	genStart time.Time
}

// ElapsedTotal is the time since the whole operation started.
func (rc *RetryContext) ElapsedTotal() time.Duration { return time.Since(rc.opStart) }

// ElapsedGeneration is the time since this generation started.
func (rc *RetryContext) ElapsedGeneration() time.Duration { return time.Since(rc.genStart) }

// tuner owns the adaptive knobs. Step sizing treats store pushback as a
// latency signal: grow while generations finish comfortably inside the
// target budget, halve on overload. Cooldown grows exponentially between its
// floor and ceiling on failure and decays back to zero on success.
type tuner struct {
	step    int
	maxStep int

	cooldown time.Duration
	floor    time.Duration
	ceiling  time.Duration
	target   time.Duration
}

func (t *tuner) success(dur time.Duration) {
	if dur < t.target/2 && t.step < t.maxStep {
		t.step *= 2
		if t.step > t.maxStep {
			t.step = t.maxStep
		}
	}
	if t.cooldown > 0 {
		t.cooldown /= 2
		if t.cooldown < t.floor {
			t.cooldown = 0
		}
	}
}

func (t *tuner) overload() {
	if t.step > 1 {
		t.step /= 2
	}
	if t.cooldown < t.floor {
		t.cooldown = t.floor
	} else {
		t.cooldown *= 2
		if t.cooldown > t.ceiling {
			t.cooldown = t.ceiling
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// runGenerations drives chunks of src through transactions until the input
// is exhausted. g runs inside the transaction and may be invoked several
// times per generation (internal retries); committed runs exactly once per
// successful generation, in cursor order, after its transaction completed.
//
// The returned count is the cursor: items durably processed before the
// operation ended, whether it ended by exhaustion, error, or cancellation.
func runGenerations[T any](
	ctx context.Context,
	db storage.Storage,
	src Sequence[T],
	o *options,
	inputLen int64,
	readOnly bool,
	g func(txn storage.Txn, chunk []T, rc *RetryContext) error,
	committed func(chunk []T, rc *RetryContext) error,
) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	opStart := time.Now()
	tun := &tuner{
		step:    o.initStep(inputLen),
		maxStep: o.cfg.MaxStep,
		floor:   o.cfg.CooldownFloor.Duration,
		ceiling: o.cfg.CooldownCeiling.Duration,
		target:  o.cfg.TargetGenerationTime.Duration,
	}
	exec := &Executor{
		Storage:       db,
		MaxRetries:    o.cfg.MaxRetries,
		MaxDuration:   o.cfg.MaxRetryTime.Duration,
		Idempotent:    o.idempotent,
		RetryOverload: false,
	}

	var cursor int64
	generation := 0
	overloadStreak := 0
	for {
		if err := sleepCtx(ctx, tun.cooldown); err != nil {
			return cursor, err
		}
		chunk, err := src(cursor, tun.step)
		if err != nil {
			return cursor, errors.Annotatef(err, "fetch chunk at position %d", cursor)
		}
		if len(chunk) == 0 {
			return cursor, nil
		}

		rc := &RetryContext{
			Generation: generation,
			Position:   cursor,
			Step:       tun.step,
			Cooldown:   tun.cooldown,
			opStart:    opStart,
			genStart:   time.Now(),
		}
		var txn storage.Txn
		if readOnly {
			txn, err = db.BeginReadOnly(ctx)
		} else {
			txn, err = db.Begin(ctx)
		}
		if err != nil {
			return cursor, err
		}
		rc.Txn = txn
		err = exec.RunWith(ctx, txn, readOnly, func(retries int) error {
			rc.Retries = retries
			return g(txn, chunk, rc)
		})
		txn.Discard()
		dur := time.Since(rc.genStart)
		o.metrics.retried(rc.Retries)

		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cursor, cerr
			}
			if storage.IsOverload(err) {
				overloadStreak++
				if o.cfg.MaxRetries > 0 && overloadStreak > o.cfg.MaxRetries {
					return cursor, err
				}
				tun.overload()
				o.metrics.tuned(tun.step, tun.cooldown)
				log.Warnf("generation %d at position %d overloaded (%v); step -> %d, cooldown -> %v",
					generation, cursor, err, tun.step, tun.cooldown)
				// Retry the same chunk boundaries, re-sliced smaller.
				continue
			}
			return cursor, err
		}

		overloadStreak = 0
		cursor += int64(len(chunk))
		if committed != nil {
			if err := committed(chunk, rc); err != nil {
				return cursor, err
			}
		}
		o.metrics.committed(len(chunk), dur)
		tun.success(dur)
		o.metrics.tuned(tun.step, tun.cooldown)
		if o.progress != nil {
			o.progress(cursor)
		}
		log.Debugf("generation %d committed %d items in %v (cursor %d, step %d)",
			generation, len(chunk), dur, cursor, tun.step)
		generation++
	}
}
