package bulk

import (
	"go.uber.org/atomic"
)

// Range is the half-open index interval [Begin, End).
type Range struct {
	Begin int64
	End   int64
}

// Len returns the number of indices in the range.
func (r Range) Len() int64 { return r.End - r.Begin }

// Partitioner hands out disjoint fixed-size sub-ranges of [0, total) from a
// shared cursor. It is the one piece of this package that is safe for
// concurrent mutation: N workers pulling from the same Partitioner cover the
// whole range with no overlap, no gaps, and no coordination beyond it.
type Partitioner struct {
	total int64
	batch int64
	next  atomic.Int64
}

// NewPartitioner partitions [0, total) into batches of size batch. The last
// batch may be short.
func NewPartitioner(total, batch int64) *Partitioner {
	if batch < 1 {
		batch = 1
	}
	return &Partitioner{total: total, batch: batch}
}

// Next claims the next batch. ok is false once the range is exhausted.
func (p *Partitioner) Next() (r Range, ok bool) {
	begin := p.next.Add(p.batch) - p.batch
	if begin >= p.total {
		return Range{}, false
	}
	end := begin + p.batch
	if end > p.total {
		end = p.total
	}
	return Range{Begin: begin, End: end}, true
}
