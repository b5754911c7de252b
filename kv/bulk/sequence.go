package bulk

// Sequence produces the chunk of up to n items starting at position pos.
// It must be replayable: two calls with the same arguments return the same
// items, because a failed generation re-fetches its chunk (possibly at a
// smaller size) before retrying. A short or empty result ends the input, so
// lazy and unbounded sources fit naturally.
type Sequence[T any] func(pos int64, n int) ([]T, error)

// FromSlice adapts an in-memory slice.
func FromSlice[T any](items []T) Sequence[T] {
	return func(pos int64, n int) ([]T, error) {
		if pos >= int64(len(items)) {
			return nil, nil
		}
		end := pos + int64(n)
		if end > int64(len(items)) {
			end = int64(len(items))
		}
		return items[pos:end], nil
	}
}
