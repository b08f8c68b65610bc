// Package xorcism implements a repeating-key XOR munger with a position cursor
// and io adapters that munge bytes as they stream through.
//
// Repeating-key XOR is not encryption. It obscures bytes; it does not protect them.
package xorcism

import (
	"errors"
	"io"
	"iter"
	"slices"
)

// ErrInvalidKey is returned when a munger is built from an empty key.
var ErrInvalidKey = errors.New("xorcism: key must not be empty")

// Munger XORs data with a repeating key. The cursor counts every byte the
// munger has processed and selects the key byte for the next one.
//
// A Munger is not safe for concurrent use; see Locked.
type Munger struct {
	key []byte
	pos uint64
}

// New creates a munger at position 0. The key is copied.
func New[K ~string | ~[]byte](key K) (*Munger, error) {
	return NewAt(key, 0)
}

// NewAt creates a munger whose cursor starts at pos.
func NewAt[K ~string | ~[]byte](key K, pos uint64) (*Munger, error) {
	if len(key) == 0 {
		return nil, ErrInvalidKey
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Munger{
		key: k,
		pos: pos,
	}, nil
}

// MustNew is like New but panics on an empty key.
func MustNew[K ~string | ~[]byte](key K) *Munger {
	m, err := New(key)
	if err != nil {
		panic(err)
	}
	return m
}

// MungeInPlace XORs each byte of data with the key, continuing from the
// current cursor. Repeated calls with the same input produce different
// output unless the cursor lands on the same key phase.
func (m *Munger) MungeInPlace(data []byte) {
	klen := uint64(len(m.key))
	off := m.pos % klen
	for i := range data {
		data[i] ^= m.key[off]
		off++
		if off == klen {
			off = 0
		}
	}
	m.pos += uint64(len(data))
}

// Transform implements Transformer.
func (m *Munger) Transform(data []byte) {
	m.MungeInPlace(data)
}

// Munge returns a lazy sequence of the munged bytes of seq. The cursor
// advances as values are drawn, so ranging over only part of the result
// advances it only that far.
//
// The munger must not be used for anything else while the returned sequence
// is being ranged over.
func (m *Munger) Munge(seq iter.Seq[byte]) iter.Seq[byte] {
	return func(yield func(byte) bool) {
		for b := range seq {
			k := m.key[m.pos%uint64(len(m.key))]
			m.pos++
			if !yield(b ^ k) {
				return
			}
		}
	}
}

// MungeBytes is Munge over the bytes of data. data is not modified.
func (m *Munger) MungeBytes(data []byte) iter.Seq[byte] {
	return m.Munge(slices.Values(data))
}

// Position returns the number of bytes munged since position 0.
func (m *Munger) Position() uint64 {
	return m.pos
}

// Seek moves the cursor to pos.
func (m *Munger) Seek(pos uint64) {
	m.pos = pos
}

// KeyLen returns the key length.
func (m *Munger) KeyLen() int {
	return len(m.key)
}

// Clone returns a munger with the same key at the same position. The clone
// and the original advance independently.
func (m *Munger) Clone() *Munger {
	return &Munger{key: m.key, pos: m.pos}
}

// Reader wraps r so bytes read from it are munged by m.
func (m *Munger) Reader(r io.Reader) *Reader {
	return NewReader(r, m)
}

// Writer wraps w so bytes written to it are munged by m first.
func (m *Munger) Writer(w io.Writer, opts ...WriterOption) *Writer {
	return NewWriter(w, m, opts...)
}
