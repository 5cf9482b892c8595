package envshim

import (
	"io"
	"sync"
	"time"
)

type Feature string

const (
	FeatureReadableStream  Feature = "ReadableStream"
	FeatureImmediate       Feature = "setImmediate"
	FeatureTimerHandles    Feature = "timerHandles"
	FeatureResourceTiming  Feature = "performance.markResourceTiming"
	FeatureTextCodec       Feature = "TextDecoder"
	FeatureBlobArrayBuffer Feature = "Blob.arrayBuffer"
)

// the stream type must be in place before the network layer is created, so it goes first
var allFeatures = []Feature{
	FeatureReadableStream,
	FeatureImmediate,
	FeatureTimerHandles,
	FeatureResourceTiming,
	FeatureTextCodec,
	FeatureBlobArrayBuffer,
}

var (
	appliedMu sync.Mutex
	applied   = make(map[Feature]bool)
)

// ApplyPolyfills installs every missing feature on g. Calling it again is cheap and changes nothing.
func ApplyPolyfills(g *Globals) {
	for _, feature := range allFeatures {
		ApplyFeature(g, feature)
	}
}

// ApplyFeature installs one feature on g if it is missing
func ApplyFeature(g *Globals, feature Feature) {
	appliedMu.Lock()
	defer appliedMu.Unlock()

	if applied[feature] && isPresent(g, feature) {
		return
	}

	switch feature {
	case FeatureReadableStream:
		if g.ReadableStream == nil {
			g.ReadableStream = newReadableStream
		}
	case FeatureImmediate:
		if g.SetImmediate == nil {
			g.SetImmediate = g.Loop.SetImmediate
		}
		if g.ClearImmediate == nil {
			g.ClearImmediate = g.Loop.ClearImmediate
		}
	case FeatureTimerHandles:
		patchTimerHandles(g)
	case FeatureResourceTiming:
		if g.Performance == nil {
			g.Performance = &Performance{TimeOrigin: time.Now()}
		}
		if g.Performance.MarkResourceTiming == nil {
			g.Performance.MarkResourceTiming = func(entry ResourceTiming) {}
		}
	case FeatureTextCodec:
		if g.TextDecoder == nil {
			g.TextDecoder = NewTextDecoder
		}
	case FeatureBlobArrayBuffer:
		if g.BlobArrayBuffer == nil {
			g.BlobArrayBuffer = blobArrayBuffer
		}
	}

	applied[feature] = true
}

func isPresent(g *Globals, feature Feature) bool {
	switch feature {
	case FeatureReadableStream:
		return g.ReadableStream != nil
	case FeatureImmediate:
		return g.SetImmediate != nil && g.ClearImmediate != nil
	case FeatureTimerHandles:
		return g.timerHandlesPatched
	case FeatureResourceTiming:
		return g.Performance != nil && g.Performance.MarkResourceTiming != nil
	case FeatureTextCodec:
		return g.TextDecoder != nil
	case FeatureBlobArrayBuffer:
		return g.BlobArrayBuffer != nil
	default:
		return false
	}
}

func patchTimerHandles(g *Globals) {
	if g.timerHandlesPatched {
		return
	}

	hostSetTimeout := g.SetTimeout
	if hostSetTimeout == nil {
		hostSetTimeout = func(fn func(), delay time.Duration) TimerRef {
			return g.Loop.SetTimeout(fn, delay)
		}
	}
	if g.ClearTimeout == nil {
		g.ClearTimeout = g.Loop.ClearTimeout
	}

	g.SetTimeout = func(fn func(), delay time.Duration) TimerRef {
		ref := hostSetTimeout(fn, delay)
		handle, ok := ref.(*TimerHandle)
		if ok {
			return handle
		}

		return &TimerHandle{
			id:    ref.TimerID(),
			loop:  g.Loop,
			fn:    fn,
			delay: delay,
		}
	}
	g.timerHandlesPatched = true
}

// IsApplied reports whether the feature has been applied since the last ResetForTests
func IsApplied(feature Feature) bool {
	appliedMu.Lock()
	defer appliedMu.Unlock()

	return applied[feature]
}

// ResetForTests clears the "already applied" flags. Patched globals are left in place.
func ResetForTests() {
	appliedMu.Lock()
	defer appliedMu.Unlock()

	applied = make(map[Feature]bool)
}

// ReadAll drains a stream
func ReadAll(stream *ReadableStream) ([]byte, error) {
	reader, err := stream.GetReader()
	if err != nil {
		return nil, err
	}
	defer reader.ReleaseLock()

	var data []byte
	for {
		chunk, done, err := reader.Read()
		if err != nil && err != io.EOF {
			return nil, err
		}
		data = append(data, chunk...)
		if done {
			return data, nil
		}
	}
}
