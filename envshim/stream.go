package envshim

import (
	"errors"
	"io"

	"github.com/jamesrr39/goutil/errorsx"
)

const streamChunkSize = 32 * 1024

var ErrStreamLocked = errors.New("stream is locked to a reader")

// ReadableStream is a pull-based byte stream over an io.Reader
type ReadableStream struct {
	source io.Reader
	locked bool
}

func newReadableStream(source io.Reader) *ReadableStream {
	return &ReadableStream{source: source}
}

func (s *ReadableStream) Locked() bool {
	return s.locked
}

// GetReader locks the stream to a new reader
func (s *ReadableStream) GetReader() (*StreamReader, errorsx.Error) {
	if s.locked {
		return nil, errorsx.Wrap(ErrStreamLocked)
	}
	s.locked = true

	return &StreamReader{stream: s, buf: make([]byte, streamChunkSize)}, nil
}

// Cancel closes the underlying source, if it can be closed
func (s *ReadableStream) Cancel() errorsx.Error {
	closer, ok := s.source.(io.Closer)
	if !ok {
		return nil
	}

	return errorsx.Wrap(closer.Close())
}

type StreamReader struct {
	stream *ReadableStream
	buf    []byte
	done   bool
}

// Read returns the next chunk. done is true once the source is exhausted.
func (r *StreamReader) Read() (chunk []byte, done bool, err error) {
	if r.done {
		return nil, true, nil
	}

	n, err := r.stream.source.Read(r.buf)
	if n > 0 {
		chunk = make([]byte, n)
		copy(chunk, r.buf[:n])
	}

	if err == io.EOF {
		r.done = true
		return chunk, true, nil
	}
	if err != nil {
		return chunk, false, errorsx.Wrap(err)
	}

	return chunk, false, nil
}

func (r *StreamReader) ReleaseLock() {
	r.stream.locked = false
}
