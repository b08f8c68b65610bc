// Package pipeline chains an optional compression codec with a munger so a
// stream can be compressed and munged in one pass, and restored the same way.
package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/xorcism-go/internal/xorcism"
)

// Codec selects the compression applied before munging
type Codec string

const (
	CodecNone Codec = "none"
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
)

// ParseCodec parses a codec name. The empty string means none.
func ParseCodec(name string) (Codec, error) {
	switch c := Codec(strings.ToLower(strings.TrimSpace(name))); c {
	case "", CodecNone:
		return CodecNone, nil
	case CodecZstd, CodecLZ4:
		return c, nil
	default:
		return "", fmt.Errorf("unsupported codec: %s", name)
	}
}

// encoder compresses into a munging writer
type encoder struct {
	compressor io.WriteCloser // nil for CodecNone
	munged     *xorcism.Writer
}

// NewEncoder returns a writer that compresses (per codec), munges and writes
// to w. Close must be called to flush the compressor; it does not close w.
func NewEncoder(w io.Writer, m *xorcism.Munger, codec Codec, opts ...xorcism.WriterOption) (io.WriteCloser, error) {
	munged := xorcism.NewWriter(w, m, opts...)
	e := &encoder{munged: munged}

	switch codec {
	case "", CodecNone:
	case CodecZstd:
		zw, err := zstd.NewWriter(munged, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd: failed to initialize encoder: %w", err)
		}
		e.compressor = zw
	case CodecLZ4:
		e.compressor = lz4.NewWriter(munged)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", codec)
	}
	return e, nil
}

func (e *encoder) Write(p []byte) (int, error) {
	if e.compressor != nil {
		return e.compressor.Write(p)
	}
	return e.munged.Write(p)
}

func (e *encoder) Close() error {
	if e.compressor != nil {
		if err := e.compressor.Close(); err != nil {
			return fmt.Errorf("close compressor: %w", err)
		}
	}
	return e.munged.Flush()
}

// decoder unmunges then decompresses
type decoder struct {
	io.Reader
	closeFn func()
}

func (d *decoder) Close() error {
	if d.closeFn != nil {
		d.closeFn()
	}
	return nil
}

// NewDecoder returns a reader that unmunges r and then decompresses per
// codec. Close releases decoder resources; it does not close r.
func NewDecoder(r io.Reader, m *xorcism.Munger, codec Codec) (io.ReadCloser, error) {
	unmunged := xorcism.NewReader(r, m)

	switch codec {
	case "", CodecNone:
		return &decoder{Reader: unmunged}, nil
	case CodecZstd:
		zr, err := zstd.NewReader(unmunged)
		if err != nil {
			return nil, fmt.Errorf("zstd: failed to initialize decoder: %w", err)
		}
		return &decoder{Reader: zr, closeFn: zr.Close}, nil
	case CodecLZ4:
		return &decoder{Reader: lz4.NewReader(unmunged)}, nil
	default:
		return nil, fmt.Errorf("unsupported codec: %s", codec)
	}
}

// Encode copies src through an encoder into dst and returns the number of
// plaintext bytes consumed
func Encode(dst io.Writer, src io.Reader, m *xorcism.Munger, codec Codec, opts ...xorcism.WriterOption) (int64, error) {
	enc, err := NewEncoder(dst, m, codec, opts...)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(enc, src)
	if err != nil {
		enc.Close()
		return n, err
	}
	return n, enc.Close()
}

// Decode copies src through a decoder into dst and returns the number of
// plaintext bytes produced
func Decode(dst io.Writer, src io.Reader, m *xorcism.Munger, codec Codec) (int64, error) {
	dec, err := NewDecoder(src, m, codec)
	if err != nil {
		return 0, err
	}
	defer dec.Close()
	return io.Copy(dst, dec)
}
