package bulk

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingcap-incubator/tinybulk/kv/storage"
	"github.com/pingcap-incubator/tinybulk/kv/storage/memstore"
)

func TestForEachExactlyOncePerItem(t *testing.T) {
	s := memstore.New()
	items := make([]int, 500)
	for i := range items {
		items[i] = i
	}

	calls := make(map[int]int)
	n, err := ForEach(context.Background(), s, FromSlice(items),
		func(txn storage.Txn, item int) error {
			calls[item]++
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, uint64(item))
			return txn.Set(key, []byte("x"))
		},
		WithInitStep(37))
	require.NoError(t, err)
	assert.Equal(t, int64(500), n)
	require.Len(t, calls, 500)
	for item, c := range calls {
		assert.Equal(t, 1, c, "item %d invoked more than once without retries", item)
	}
	assert.Equal(t, 500, s.Len())
}

func TestForEachRetriedGenerationReinvokesChunkOnly(t *testing.T) {
	s := memstore.New()
	// Exactly the first generation's commit conflicts once.
	s.FailNextCommits(storage.CodeNotCommitted, 1)

	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}
	calls := make(map[int]int)
	n, err := ForEach(context.Background(), s, FromSlice(items),
		func(txn storage.Txn, item int) error {
			calls[item]++
			return txn.Set([]byte(fmt.Sprintf("k%03d", item)), []byte("x"))
		},
		WithInitStep(10), WithMaxStep(10))
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)

	for item := 0; item < 10; item++ {
		assert.Equal(t, 2, calls[item], "retried chunk re-invokes its items")
	}
	for item := 10; item < 100; item++ {
		assert.Equal(t, 1, calls[item], "other chunks run once")
	}
}

func TestForEachBatch(t *testing.T) {
	s := memstore.New()
	items := make([]string, 95)
	for i := range items {
		items[i] = fmt.Sprintf("item-%02d", i)
	}

	var batchSizes []int
	n, err := ForEachBatch(context.Background(), s, FromSlice(items),
		func(txn storage.Txn, chunk []string) error {
			batchSizes = append(batchSizes, len(chunk))
			for _, it := range chunk {
				if err := txn.Set([]byte(it), []byte("x")); err != nil {
					return err
				}
			}
			// Batch-level cost accounting is the point of this shape.
			assert.Greater(t, txn.Size(), 0)
			return nil
		},
		WithInitStep(20), WithMaxStep(20))
	require.NoError(t, err)
	assert.Equal(t, int64(95), n)
	assert.Equal(t, []int{20, 20, 20, 20, 15}, batchSizes)
}

func TestForEachCallerErrorPropagatesAsIs(t *testing.T) {
	s := memstore.New()
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}
	boom := errors.New("bad item")
	n, err := ForEach(context.Background(), s, FromSlice(items),
		func(txn storage.Txn, item int) error {
			if item == 42 {
				return boom
			}
			return txn.Set([]byte(fmt.Sprintf("k%03d", item)), []byte("x"))
		},
		WithInitStep(10), WithMaxStep(10))
	assert.Equal(t, boom, errors.Cause(err))
	assert.Equal(t, int64(40), n, "generations before the failing chunk remain committed")
	assert.Equal(t, 40, s.Len())
}

func TestForEachUnboundedSource(t *testing.T) {
	s := memstore.New()
	// A lazy source that produces 75 items and then dries up.
	src := func(pos int64, n int) ([]int64, error) {
		const total = 75
		var out []int64
		for i := pos; i < pos+int64(n) && i < total; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	n, err := ForEach(context.Background(), s, src,
		func(txn storage.Txn, item int64) error {
			return txn.Set([]byte(fmt.Sprintf("k%03d", item)), []byte("x"))
		},
		WithInitStep(20))
	require.NoError(t, err)
	assert.Equal(t, int64(75), n)
	assert.Equal(t, 75, s.Len())
}
