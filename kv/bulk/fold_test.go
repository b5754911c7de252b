package bulk

import (
	"context"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingcap-incubator/tinybulk/kv/storage"
	"github.com/pingcap-incubator/tinybulk/kv/storage/memstore"
)

func TestAggregateExactSum(t *testing.T) {
	s := memstore.New()
	rng := rand.New(rand.NewSource(1))
	values := make([]int64, 50000)
	var want int64
	for i := range values {
		values[i] = int64(rng.Intn(1000))
		want += values[i]
	}

	sum, err := Fold(context.Background(), s, FromSlice(values), int64(0),
		func(acc int64, _ storage.ReadTxn, chunk []int64) (int64, error) {
			for _, v := range chunk {
				acc += v
			}
			return acc, nil
		},
		WithInitStep(512))
	require.NoError(t, err)
	assert.Equal(t, want, sum)
}

func TestAggregateAverage(t *testing.T) {
	s := memstore.New()
	rng := rand.New(rand.NewSource(2))
	values := make([]int64, 50000)
	var sum int64
	for i := range values {
		values[i] = int64(rng.Intn(1000))
		sum += values[i]
	}
	want := float64(sum) / float64(len(values))

	type sumCount struct {
		sum   int64
		count int64
	}
	avg, err := Aggregate(context.Background(), s, FromSlice(values), sumCount{},
		func(acc sumCount, _ storage.ReadTxn, chunk []int64) (sumCount, error) {
			for _, v := range chunk {
				acc.sum += v
				acc.count++
			}
			return acc, nil
		},
		func(acc sumCount) float64 {
			if acc.count == 0 {
				return 0
			}
			return float64(acc.sum) / float64(acc.count)
		},
		WithInitStep(1024))
	require.NoError(t, err)
	assert.InEpsilon(t, want, avg, 1e-9)
}

func TestFoldKeysReadsValues(t *testing.T) {
	s := memstore.New()
	keys := make([][]byte, 1000)
	fill := make([]storage.KeyValue, 0, 1000)
	var want uint64
	for i := range keys {
		k := make([]byte, 8)
		binary.BigEndian.PutUint64(k, uint64(i))
		v := make([]byte, 8)
		binary.BigEndian.PutUint64(v, uint64(i*3))
		keys[i] = k
		fill = append(fill, storage.KeyValue{Key: k, Value: v})
		want += uint64(i * 3)
	}
	s.Fill(fill)

	sum, err := FoldKeys(context.Background(), s, keys, uint64(0),
		func(acc uint64, kvs []storage.KeyValue) (uint64, error) {
			for _, kv := range kvs {
				if kv.Value != nil {
					acc += binary.BigEndian.Uint64(kv.Value)
				}
			}
			return acc, nil
		},
		WithInitStep(100))
	require.NoError(t, err)
	assert.Equal(t, want, sum)
}

func TestFoldKeysAbsentKeysYieldNil(t *testing.T) {
	s := memstore.New()
	keys := [][]byte{[]byte("present"), []byte("missing")}
	s.Fill([]storage.KeyValue{{Key: []byte("present"), Value: []byte("v")}})

	var absent int
	_, err := FoldKeys(context.Background(), s, keys, 0,
		func(acc int, kvs []storage.KeyValue) (int, error) {
			for _, kv := range kvs {
				if kv.Value == nil {
					absent++
				}
			}
			return acc, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, absent)
}

func TestFoldRetryRerunsFromPreGenerationState(t *testing.T) {
	s := memstore.New()
	values := make([]int64, 100)
	var want int64
	for i := range values {
		values[i] = int64(i)
		want += values[i]
	}

	// The second generation fails its first attempt with a retryable store
	// error after folding; the retry must start from the pre-generation
	// state or the chunk would be double-counted.
	failed := false
	sum, err := Fold(context.Background(), s, FromSlice(values), int64(0),
		func(acc int64, _ storage.ReadTxn, chunk []int64) (int64, error) {
			for _, v := range chunk {
				acc += v
			}
			if !failed && chunk[0] == 25 {
				failed = true
				return acc, storage.NewError(storage.CodeNotCommitted)
			}
			return acc, nil
		},
		WithInitStep(25), WithMaxStep(25))
	require.NoError(t, err)
	assert.True(t, failed)
	assert.Equal(t, want, sum)
}

func TestFoldPartialStateOnCancellation(t *testing.T) {
	s := memstore.New()
	values := make([]int64, 100)
	for i := range values {
		values[i] = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	state, err := Fold(ctx, s, FromSlice(values), int64(0),
		func(acc int64, _ storage.ReadTxn, chunk []int64) (int64, error) {
			acc += int64(len(chunk))
			if acc >= 40 {
				cancel()
			}
			return acc, nil
		},
		WithInitStep(20), WithMaxStep(20))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(40), state, "state from committed generations is retained")
}
