package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyAfter(t *testing.T) {
	assert.Equal(t, Key{'a', 0}, KeyAfter(Key("a")))
	assert.Equal(t, Key{0}, KeyAfter(nil))
}

func TestIncrement(t *testing.T) {
	next, err := Increment(Key("ab"))
	require.NoError(t, err)
	assert.Equal(t, Key("ac"), next)

	next, err = Increment(Key{'a', 0xff})
	require.NoError(t, err)
	assert.Equal(t, Key{'b'}, next)

	_, err = Increment(Key{0xff, 0xff})
	assert.Error(t, err)
	_, err = Increment(nil)
	assert.Error(t, err)
}

func TestPrefixRange(t *testing.T) {
	r, err := PrefixRange(Key("user/"))
	require.NoError(t, err)
	assert.True(t, r.Contains([]byte("user/")))
	assert.True(t, r.Contains([]byte("user/42")))
	assert.False(t, r.Contains([]byte("user0")))
	assert.False(t, r.Contains([]byte("uses")))
}

func TestRangeContains(t *testing.T) {
	r := KeyRange{Begin: Key("b"), End: Key("d")}
	assert.True(t, r.Contains([]byte("b")))
	assert.True(t, r.Contains([]byte("c")))
	assert.False(t, r.Contains([]byte("d")))
	assert.False(t, r.Contains([]byte("a")))

	// Empty End means unbounded.
	open := KeyRange{Begin: Key("b")}
	assert.True(t, open.Contains([]byte("zzz")))
	assert.False(t, open.Empty())
	assert.True(t, KeyRange{Begin: Key("d"), End: Key("b")}.Empty())
}
