package bulk

import (
	"bytes"
	"context"
	"time"

	"github.com/pingcap-incubator/tinybulk/kv/storage"
	"github.com/pingcap-incubator/tinybulk/log"
)

// ExportRange streams the contents of r to sink in ascending key order.
// Each call delivers one chunk together with the absolute offset of its
// first key within the export, so sink can produce ordered side-effecting
// output such as file appends. Keys are delivered exactly once: no
// duplicates, no gaps, strictly increasing across chunk boundaries.
//
// Chunks are read in read-only snapshot transactions sized by the same
// adaptive policy as the other operations. sink runs outside the
// transaction, after the chunk's read completed, so it is never re-invoked
// for a retried read. An error from sink ends the export as-is.
//
// Returns the number of entries delivered.
func ExportRange(ctx context.Context, db storage.Storage, r storage.KeyRange, sink func(offset int64, kvs []storage.KeyValue) error, opts ...Option) (int64, error) {
	o := newOptions(opts)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tun := &tuner{
		step:    o.initStep(-1),
		maxStep: o.cfg.MaxStep,
		floor:   o.cfg.CooldownFloor.Duration,
		ceiling: o.cfg.CooldownCeiling.Duration,
		target:  o.cfg.TargetGenerationTime.Duration,
	}
	exec := &Executor{
		Storage:       db,
		MaxRetries:    o.cfg.MaxRetries,
		MaxDuration:   o.cfg.MaxRetryTime.Duration,
		Idempotent:    true, // reads only
		RetryOverload: false,
	}

	begin := r.Begin
	var offset int64
	generation := 0
	overloadStreak := 0
	for {
		if err := sleepCtx(ctx, tun.cooldown); err != nil {
			return offset, err
		}
		window := storage.KeyRange{Begin: begin, End: r.End}
		if window.Empty() {
			return offset, nil
		}

		genStart := time.Now()
		var kvs []storage.KeyValue
		err := exec.RunReadOnly(ctx, func(txn storage.ReadTxn) error {
			var rerr error
			kvs, rerr = txn.GetRange(window, tun.step)
			return rerr
		})
		dur := time.Since(genStart)

		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return offset, cerr
			}
			if storage.IsOverload(err) {
				overloadStreak++
				if o.cfg.MaxRetries > 0 && overloadStreak > o.cfg.MaxRetries {
					return offset, err
				}
				tun.overload()
				log.Warnf("export generation %d at offset %d overloaded (%v); step -> %d, cooldown -> %v",
					generation, offset, err, tun.step, tun.cooldown)
				continue
			}
			return offset, err
		}
		if len(kvs) == 0 {
			return offset, nil
		}

		overloadStreak = 0
		if o.limiter != nil {
			var nbytes int64
			for _, kv := range kvs {
				nbytes += int64(len(kv.Key) + len(kv.Value))
			}
			o.limiter.Wait(nbytes)
		}
		if err := sink(offset, kvs); err != nil {
			return offset, err
		}
		offset += int64(len(kvs))
		o.metrics.committed(len(kvs), dur)
		tun.success(dur)
		o.metrics.tuned(tun.step, tun.cooldown)
		if o.progress != nil {
			o.progress(offset)
		}
		last := kvs[len(kvs)-1].Key
		begin = storage.KeyAfter(last)
		if len(r.End) > 0 && bytes.Compare(begin, r.End) >= 0 {
			return offset, nil
		}
		generation++
	}
}
