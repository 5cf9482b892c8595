package resourceloader

import (
	"errors"
	"fmt"
)

var ErrReadableStreamMissing = errors.New("ReadableStream must be installed before the network layer is created")

// FetchError is a network failure, or a response without a 2xx status
type FetchError struct {
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to fetch %q: %s", e.URL, e.Err)
	}

	return fmt.Sprintf("failed to fetch %q: %d %s", e.URL, e.StatusCode, e.Status)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a local file does not exist
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file not found: %q", e.Path)
}

// DecodeError is returned for malformed data URIs
type DecodeError struct {
	Source string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	source := Abbreviate(e.Source)

	if e.Err != nil {
		return fmt.Sprintf("could not decode %q: %s: %s", source, e.Reason, e.Err)
	}

	return fmt.Sprintf("could not decode %q: %s", source, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
