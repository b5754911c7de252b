package bulk

import (
	"time"

	"github.com/juju/ratelimit"

	"github.com/pingcap-incubator/tinybulk/config"
)

// Option adjusts one bulk operation. Options apply on top of
// config.NewDefaultConfig.
type Option func(*options)

type options struct {
	cfg        config.Config
	batchCount int
	idempotent bool
	progress   func(done int64)
	metrics    *Metrics
	limiter    *ratelimit.Bucket
}

func newOptions(opts []Option) *options {
	o := &options{cfg: *config.NewDefaultConfig()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// initStep resolves the starting chunk size. A batch-count override divides
// the (known) input length into that many generations instead.
func (o *options) initStep(inputLen int64) int {
	step := o.cfg.InitStep
	if o.batchCount > 0 && inputLen > 0 {
		step = int((inputLen + int64(o.batchCount) - 1) / int64(o.batchCount))
	}
	if step < 1 {
		step = 1
	}
	if step > o.cfg.MaxStep {
		step = o.cfg.MaxStep
	}
	return step
}

// WithConfig replaces the whole tuning record.
func WithConfig(c *config.Config) Option {
	return func(o *options) { o.cfg = *c }
}

// WithInitStep sets the chunk size the first generation attempts.
func WithInitStep(n int) Option {
	return func(o *options) {
		o.cfg.InitStep = n
		if o.cfg.MaxStep < n {
			o.cfg.MaxStep = n
		}
	}
}

// WithMaxStep caps adaptive chunk growth.
func WithMaxStep(n int) Option {
	return func(o *options) { o.cfg.MaxStep = n }
}

// WithBatchCount overrides the initial step so a known input length splits
// into roughly n generations.
func WithBatchCount(n int) Option {
	return func(o *options) { o.batchCount = n }
}

// WithProgress registers fn to receive the cumulative committed item count,
// once per successful generation. Values are non-decreasing and the final
// one equals the operation's result.
func WithProgress(fn func(done int64)) Option {
	return func(o *options) { o.progress = fn }
}

// WithCooldown sets the bounds of the inter-generation pause.
func WithCooldown(floor, ceiling time.Duration) Option {
	return func(o *options) {
		o.cfg.CooldownFloor = config.NewDuration(floor)
		o.cfg.CooldownCeiling = config.NewDuration(ceiling)
	}
}

// WithMaxRetries bounds retries per generation. Zero means no bound.
func WithMaxRetries(n int) Option {
	return func(o *options) { o.cfg.MaxRetries = n }
}

// WithTargetDuration sets the per-generation duration budget the adaptive
// step sizing aims for.
func WithTargetDuration(d time.Duration) Option {
	return func(o *options) { o.cfg.TargetGenerationTime = config.NewDuration(d) }
}

// WithIdempotent declares the operation's effects safe to re-apply, allowing
// retry after a maybe-committed failure. Without it such a failure
// propagates, because silently retrying could double-apply effects.
func WithIdempotent() Option {
	return func(o *options) { o.idempotent = true }
}

// WithMetrics attaches prometheus instruments to the operation.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRateLimit throttles ExportRange to the bucket's byte rate. Ignored by
// the other operations.
func WithRateLimit(b *ratelimit.Bucket) Option {
	return func(o *options) { o.limiter = b }
}
