package xorcism

import (
	"io"
)

// DefaultStageSize is the staging block size used by Writer.WriteChunk.
const DefaultStageSize = 1024

// Transformer munges data in place and advances its own state.
type Transformer interface {
	Transform(data []byte)
}

// TransformFunc is an adapter to use a function as a Transformer
type TransformFunc func(data []byte)

// Transform calls f(data).
func (f TransformFunc) Transform(data []byte) {
	f(data)
}

// positioner is implemented by transformers whose cursor can be rewound.
type positioner interface {
	Position() uint64
	Seek(pos uint64)
}

// stagedWriter is implemented by transformers that munge staged, write it to
// w and rewind past any bytes w did not take, as one step.
type stagedWriter interface {
	writeStaged(w io.Writer, staged []byte) (int, error)
}

// writeStaged munges staged from the cursor, writes it and leaves the cursor
// advanced by exactly the bytes w accepted.
func writeStaged(p positioner, t Transformer, w io.Writer, staged []byte) (int, error) {
	start := p.Position()
	t.Transform(staged)
	n, err := w.Write(staged)
	if n < len(staged) {
		p.Seek(start + uint64(max(n, 0)))
	}
	return n, err
}

// flusher matches bufio.Writer and friends.
type flusher interface {
	Flush() error
}

// Reader munges bytes read from an underlying reader.
type Reader struct {
	reader      io.Reader
	transformer Transformer
}

// NewReader creates a reader that transforms everything read from r.
func NewReader(r io.Reader, t Transformer) *Reader {
	return &Reader{
		reader:      r,
		transformer: t,
	}
}

// Read reads from the underlying reader and munges exactly the bytes read.
// Errors, including io.EOF, are returned unchanged.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.transformer.Transform(p[:n])
	}
	return n, err
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithStageSize sets the staging block size. Sizes below 1 are ignored.
func WithStageSize(size int) WriterOption {
	return func(w *Writer) {
		if size > 0 {
			w.stageSize = size
		}
	}
}

// Writer munges bytes before handing them to an underlying writer.
//
// WriteChunk is the primitive: it forwards at most one staging block per
// call and may consume less than it was given. Write loops over WriteChunk
// so that Writer satisfies io.Writer.
type Writer struct {
	writer      io.Writer
	transformer Transformer
	stageSize   int
	stage       []byte
}

// NewWriter creates a writer that transforms data before writing it to w.
func NewWriter(w io.Writer, t Transformer, opts ...WriterOption) *Writer {
	wr := &Writer{
		writer:      w,
		transformer: t,
		stageSize:   DefaultStageSize,
	}
	for _, opt := range opts {
		opt(wr)
	}
	return wr
}

// StageSize returns the staging block size.
func (w *Writer) StageSize() int {
	return w.stageSize
}

// WriteChunk munges up to one staging block from the front of p and writes it
// downstream. It returns the number of bytes of p that were forwarded, which
// may be less than len(p) with a nil error; callers resubmit the rest.
//
// If the downstream writer accepts fewer bytes than were staged and the
// transformer can be repositioned, the cursor is rewound to cover only the
// forwarded bytes. A Locked munger holds its lock across the downstream
// write so the rewind cannot undo another goroutine's progress.
func (w *Writer) WriteChunk(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if w.stage == nil {
		w.stage = make([]byte, w.stageSize)
	}

	staged := w.stage[:copy(w.stage, p)]

	switch t := w.transformer.(type) {
	case stagedWriter:
		return t.writeStaged(w.writer, staged)
	case positioner:
		return writeStaged(t, w.transformer, w.writer, staged)
	default:
		w.transformer.Transform(staged)
		return w.writer.Write(staged)
	}
}

// Write writes all of p, one staging block at a time.
func (w *Writer) Write(p []byte) (int, error) {
	var total int
	for len(p) > 0 {
		n, err := w.WriteChunk(p)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
		p = p[n:]
	}
	return total, nil
}

// Flush flushes the underlying writer if it buffers. The Writer itself holds
// nothing between calls.
func (w *Writer) Flush() error {
	if f, ok := w.writer.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Close flushes and closes the underlying writer if it is an io.Closer.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if c, ok := w.writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// WrapReaderFunc creates a reader using a transform function
func WrapReaderFunc(r io.Reader, transform func(data []byte)) *Reader {
	return NewReader(r, TransformFunc(transform))
}

// WrapWriterFunc creates a writer using a transform function
func WrapWriterFunc(w io.Writer, transform func(data []byte), opts ...WriterOption) *Writer {
	return NewWriter(w, TransformFunc(transform), opts...)
}
