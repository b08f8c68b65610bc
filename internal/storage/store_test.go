package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreGetSetDelete(t *testing.T) {
	s := newTestStore(t)

	v, err := s.Get(BucketKeys, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.Set(BucketKeys, "a", []byte("1")))
	require.NoError(t, s.Set(BucketKeys, "b", []byte("2")))

	v, err = s.Get(BucketKeys, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	all, err := s.GetAll(BucketKeys)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, all)

	require.NoError(t, s.Delete(BucketKeys, "a"))
	v, err = s.Get(BucketKeys, "a")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStoreUnknownBucket(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get([]byte("nope"), "k")
	assert.ErrorIs(t, err, ErrBucketNotFound)
	assert.ErrorIs(t, s.Set([]byte("nope"), "k", nil), ErrBucketNotFound)
}

func TestStoreJSON(t *testing.T) {
	s := newTestStore(t)

	type item struct {
		Name string `json:"name"`
		N    int    `json:"n"`
	}

	var got item
	found, err := s.GetJSON(BucketSessions, "x", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetJSON(BucketSessions, "x", item{Name: "x", N: 3}))
	found, err = s.GetJSON(BucketSessions, "x", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, item{Name: "x", N: 3}, got)
}

func TestStoreUpdate(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Update(BucketSessions, "c", func(old []byte) ([]byte, error) {
		assert.Nil(t, old)
		return []byte("first"), nil
	}))
	require.NoError(t, s.Update(BucketSessions, "c", func(old []byte) ([]byte, error) {
		return append(append([]byte(nil), old...), "+second"...), nil
	}))

	v, err := s.Get(BucketSessions, "c")
	require.NoError(t, err)
	assert.Equal(t, "first+second", string(v))

	boom := errors.New("abort")
	err = s.Update(BucketSessions, "c", func(old []byte) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	v, err = s.Get(BucketSessions, "c")
	require.NoError(t, err)
	assert.Equal(t, "first+second", string(v), "aborted update must not change the value")
}

func TestStoreReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(BucketKeys, "persist", []byte("yes")))
	require.NoError(t, s.Close())

	s, err = NewStore(dir)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get(BucketKeys, "persist")
	require.NoError(t, err)
	assert.Equal(t, []byte("yes"), v)
}

func TestStorePing(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, s.Ping())

	require.NoError(t, s.Close())
	assert.Error(t, s.Ping())
}
