package dao

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xorcism-go/internal/cache"
	"github.com/xorcism-go/internal/storage"
	"github.com/xorcism-go/internal/xorcism"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestKeyDAO(t *testing.T) *KeyDAO {
	t.Helper()
	c := cache.New[[]byte](time.Minute, 100, time.Hour)
	t.Cleanup(c.Close)
	return NewKeyDAO(newTestStore(t), c)
}

func TestKeyDAOCreateGetList(t *testing.T) {
	d := newTestKeyDAO(t)

	p, err := d.Create(KeyProfile{Name: "beta", Source: "hex", Material: "0102"})
	require.NoError(t, err)
	assert.False(t, p.CreatedAt.IsZero())

	_, err = d.Create(KeyProfile{Name: "alpha", Material: "plain"})
	require.NoError(t, err)

	got, err := d.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "raw", got.Source, "source defaults to raw")

	list, err := d.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "beta", list[1].Name)
}

func TestKeyDAOCreateRejects(t *testing.T) {
	d := newTestKeyDAO(t)
	_, err := d.Create(KeyProfile{Name: "dup", Material: "x"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		profile KeyProfile
		wantErr error
	}{
		{"duplicate", KeyProfile{Name: "dup", Material: "y"}, ErrKeyExists},
		{"empty name", KeyProfile{Name: "", Material: "y"}, ErrInvalidKeyName},
		{"bad name", KeyProfile{Name: "a/b", Material: "y"}, ErrInvalidKeyName},
		{"empty material", KeyProfile{Name: "empty", Material: ""}, xorcism.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Create(tt.profile)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = d.Create(KeyProfile{Name: "badhex", Source: "hex", Material: "zz"})
	assert.Error(t, err)
	_, err = d.Create(KeyProfile{Name: "badsource", Source: "rot13", Material: "zz"})
	assert.Error(t, err)
}

func TestKeyDAOResolveAndInvalidate(t *testing.T) {
	d := newTestKeyDAO(t)
	_, err := d.Create(KeyProfile{Name: "k", Source: "hex", Material: "aabb"})
	require.NoError(t, err)

	key, err := d.Resolve("k")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa, 0xbb}, key)

	// Put replaces the profile and drops the cached key.
	_, err = d.Put(KeyProfile{Name: "k", Source: "raw", Material: "new"})
	require.NoError(t, err)
	key, err = d.Resolve("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), key)

	require.NoError(t, d.Delete("k"))
	_, err = d.Resolve("k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, d.Delete("k"), ErrKeyNotFound)
}

func TestKeyDAOWithoutCache(t *testing.T) {
	d := NewKeyDAO(newTestStore(t), nil)
	_, err := d.Create(KeyProfile{Name: "k", Material: "abc"})
	require.NoError(t, err)

	m, err := d.NewMunger("k", 1)
	require.NoError(t, err)

	data := []byte{0, 0}
	m.MungeInPlace(data)
	assert.Equal(t, []byte("bc"), data)
}

func TestSessionLifecycle(t *testing.T) {
	d := NewSessionDAO(newTestStore(t))

	s, err := d.Create("k", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, uint64(0), s.Position)

	s, err = d.Advance(s.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), s.Position)

	_, err = d.Advance(s.ID, 0, 5)
	assert.ErrorIs(t, err, ErrPositionConflict)

	got, err := d.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.Position)
	assert.Equal(t, "k", got.KeyName)

	require.NoError(t, d.Delete(s.ID))
	_, err = d.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = d.Advance(s.ID, 10, 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// TestSessionResumesKeyPhase munges a stream in session-sized chunks and
// checks it matches one uninterrupted pass.
func TestSessionResumesKeyPhase(t *testing.T) {
	store := newTestStore(t)
	keys := NewKeyDAO(store, nil)
	sessions := NewSessionDAO(store)

	_, err := keys.Create(KeyProfile{Name: "stream", Material: "resumable"})
	require.NoError(t, err)
	s, err := sessions.Create("stream", 0)
	require.NoError(t, err)

	data := bytes.Repeat([]byte("chunked payload "), 20)
	var out []byte
	for _, size := range []int{7, 50, 1, 100, 162} {
		chunk := bytes.Clone(data[len(out) : len(out)+size])
		m, err := keys.NewMunger(s.KeyName, s.Position)
		require.NoError(t, err)
		m.MungeInPlace(chunk)
		s, err = sessions.Advance(s.ID, s.Position, uint64(size))
		require.NoError(t, err)
		out = append(out, chunk...)
	}
	require.Len(t, out, len(data))

	want := bytes.Clone(data)
	xorcism.MustNew("resumable").MungeInPlace(want)
	assert.Equal(t, want, out)
}

func TestKeyDAOCreateIsAtomic(t *testing.T) {
	d := newTestKeyDAO(t)

	const workers = 16
	var (
		wg      sync.WaitGroup
		created atomic.Int32
		exists  atomic.Int32
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Create(KeyProfile{Name: "dup", Material: fmt.Sprintf("m%d", i)})
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, ErrKeyExists):
				exists.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(workers-1), exists.Load())
}
