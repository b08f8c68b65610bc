package xorcism

import (
	"io"
	"sync"
)

// Locked guards a Munger with a mutex so it can be shared between goroutines.
// Each call holds the lock for its whole duration, so the key phase is never
// split between two callers mid-operation.
type Locked struct {
	mu sync.Mutex
	m  *Munger
}

// NewLocked takes ownership of m. m must not be used directly afterwards.
func NewLocked(m *Munger) *Locked {
	return &Locked{m: m}
}

// MungeInPlace munges data under the lock.
func (l *Locked) MungeInPlace(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m.MungeInPlace(data)
}

// Transform implements Transformer.
func (l *Locked) Transform(data []byte) {
	l.MungeInPlace(data)
}

// Position returns the cursor.
func (l *Locked) Position() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.m.pos
}

// Seek moves the cursor to pos.
func (l *Locked) Seek(pos uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m.pos = pos
}

// Snapshot returns an unshared copy of the munger in its current state.
func (l *Locked) Snapshot() *Munger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.m.Clone()
}

// Do runs fn with exclusive access to the munger. Use it to drain a lazy
// Munge sequence without another goroutine advancing the cursor in between.
func (l *Locked) Do(fn func(m *Munger)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.m)
}

// writeStaged keeps the lock through the downstream write, so writers
// sharing l are serialized chunk by chunk.
func (l *Locked) writeStaged(w io.Writer, staged []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return writeStaged(l.m, l.m, w, staged)
}

// Reader wraps r so reads are munged under the lock.
func (l *Locked) Reader(r io.Reader) *Reader {
	return NewReader(r, l)
}

// Writer wraps w so writes are munged under the lock.
func (l *Locked) Writer(w io.Writer, opts ...WriterOption) *Writer {
	return NewWriter(w, l, opts...)
}
