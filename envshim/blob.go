package envshim

import (
	"github.com/jamesrr39/goutil/errorsx"
)

// Blob is an immutable chunk of bytes with a MIME type.
// Blobs made from a stream expose a stream accessor; blobs made from bytes do not.
type Blob struct {
	Type   string
	data   []byte
	stream func() *ReadableStream
}

func NewBlob(data []byte, mimeType string) *Blob {
	return &Blob{Type: mimeType, data: data}
}

func NewStreamBlob(mimeType string, stream func() *ReadableStream) *Blob {
	return &Blob{Type: mimeType, stream: stream}
}

// Stream returns the blob's stream accessor, if it has one
func (b *Blob) Stream() (*ReadableStream, bool) {
	if b.stream == nil {
		return nil, false
	}

	return b.stream(), true
}

// blobArrayBuffer reads a blob through its stream when it has one, otherwise through a FileReader
func blobArrayBuffer(blob *Blob) ([]byte, error) {
	stream, ok := blob.Stream()
	if ok {
		data, err := ReadAll(stream)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
		return data, nil
	}

	var result []byte
	var readErr error

	reader := &FileReader{
		OnLoad: func(data []byte) {
			result = data
		},
		OnError: func(err error) {
			readErr = err
		},
	}
	reader.ReadAsArrayBuffer(blob)

	if readErr != nil {
		return nil, errorsx.Wrap(readErr)
	}

	return result, nil
}

// FileReader reads blobs into byte slices, reporting through callbacks
type FileReader struct {
	OnLoad  func(data []byte)
	OnError func(err error)
}

func (r *FileReader) ReadAsArrayBuffer(blob *Blob) {
	if blob == nil {
		if r.OnError != nil {
			r.OnError(errorsx.Errorf("no blob to read"))
		}
		return
	}

	if blob.data == nil && blob.stream != nil {
		data, err := blobArrayBuffer(blob)
		if err != nil {
			if r.OnError != nil {
				r.OnError(err)
			}
			return
		}
		if r.OnLoad != nil {
			r.OnLoad(data)
		}
		return
	}

	data := make([]byte, len(blob.data))
	copy(data, blob.data)

	if r.OnLoad != nil {
		r.OnLoad(data)
	}
}
