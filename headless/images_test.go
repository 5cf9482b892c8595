package headless

import (
	"bytes"
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/jamesrr39/headlessmap/envshim"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"github.com/jamesrr39/headlessmap/resourceloader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	events  []string
	details []interface{}
}

// watch records load and error events from both the handler slots and listeners
func (r *eventRecorder) watch(el *dom.Element) {
	for _, eventType := range []string{"load", "error"} {
		eventType := eventType
		el.SetEventHandler(eventType, func(event *dom.Event) {
			r.events = append(r.events, "on"+eventType)
		})
		el.AddEventListener(eventType, func(event *dom.Event) {
			r.events = append(r.events, eventType)
			r.details = append(r.details, event.Detail)
		})
	}
}

func TestSyntheticImages_dataURI(t *testing.T) {
	env := newTestEnvironment(t, nil)

	el, err := env.NewImage()
	require.NoError(t, err)

	recorder := new(eventRecorder)
	recorder.watch(el)

	el.SetSrc("data:image/png;base64," + base64.StdEncoding.EncodeToString(solidPNG(t, 3, 2, red)))

	_, ok := el.Width()
	assert.False(t, ok)
	assert.Equal(t, 1, env.Backings.PendingImages())

	env.runUntilIdle(t)

	assert.Equal(t, []string{"onload", "load"}, recorder.events)
	width, ok := el.Width()
	require.True(t, ok)
	assert.Equal(t, 3, width)
	height, _ := el.Height()
	assert.Equal(t, 2, height)

	img, ok := env.Backings.Image(el)
	require.True(t, ok)
	assert.Equal(t, 3, img.Width())
	assert.Equal(t, 0, env.Backings.PendingImages())
}

func TestSyntheticImages_missingFile(t *testing.T) {
	env := newTestEnvironment(t, nil)

	el, err := env.NewImage()
	require.NoError(t, err)

	recorder := new(eventRecorder)
	recorder.watch(el)

	el.SetSrc("file:///does/not/exist.png?v=1")
	env.runUntilIdle(t)

	assert.Equal(t, []string{"onerror", "error"}, recorder.events)
	require.Len(t, recorder.details, 1)
	detailErr, ok := recorder.details[0].(error)
	require.True(t, ok)
	assert.IsType(t, &resourceloader.NotFoundError{}, errorsx.Cause(detailErr))

	_, ok = el.Width()
	assert.False(t, ok)
	assert.Equal(t, detailErr, env.Backings.ImageErr(el))
}

func TestSyntheticImages_reassigningSrc(t *testing.T) {
	env := newTestEnvironment(t, nil)
	env.writePNG(t, "/first.png", 1, 1, red)
	env.writePNG(t, "/second.png", 4, 4, blue)

	el, err := env.NewImage()
	require.NoError(t, err)

	recorder := new(eventRecorder)
	recorder.watch(el)

	el.SetSrc("/first.png")
	env.runUntilIdle(t)
	el.SetSrc("/second.png")
	env.runUntilIdle(t)

	assert.Equal(t, []string{"onload", "load", "onload", "load"}, recorder.events)
	width, _ := el.Width()
	assert.Equal(t, 4, width)

	// clearing src ends the cycle without events
	el.SetSrc("")
	env.runUntilIdle(t)
	assert.Len(t, recorder.events, 4)
	_, ok := el.Width()
	assert.False(t, ok)
}

// controlledLoader blocks loads of the sources in blocked until their context is done
type controlledLoader struct {
	mu        sync.Mutex
	blocked   map[string]bool
	images    map[string]*rasterengine.Image
	cancelled []string
}

func (l *controlledLoader) LoadImage(ctx context.Context, source string) (*rasterengine.Image, errorsx.Error) {
	l.mu.Lock()
	blocked := l.blocked[source]
	img := l.images[source]
	l.mu.Unlock()

	if blocked {
		<-ctx.Done()

		l.mu.Lock()
		l.cancelled = append(l.cancelled, source)
		l.mu.Unlock()

		// a fetch that ignores cancellation still completes with an image
		return img, nil
	}

	return img, nil
}

func newControlledImages(t *testing.T, loader ImageLoader, timeout time.Duration) (*dom.Document, *envshim.Loop, *BackingTable) {
	doc := dom.NewDocument()
	loop := envshim.NewLoop()
	backings := NewBackingTable()

	logger := logpkg.NewLogger(new(bytes.Buffer), logpkg.LogLevelError)
	globals := envshim.NewGlobals(loop)
	envshim.ApplyPolyfills(globals)
	newSyntheticImages(logger, globals, loader, backings, timeout).install(doc)

	return doc, loop, backings
}

func runLoop(t *testing.T, loop *envshim.Loop) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, loop.RunUntilIdle(ctx))
}

func decoded(t *testing.T, data []byte) *rasterengine.Image {
	img, err := rasterengine.DecodeImage(data)
	require.NoError(t, err)

	return img
}

func TestSyntheticImages_staleCompletionIsIgnored(t *testing.T) {
	loader := &controlledLoader{
		blocked: map[string]bool{"slow": true},
		images: map[string]*rasterengine.Image{
			"slow": decoded(t, solidPNG(t, 1, 1, red)),
			"fast": decoded(t, solidPNG(t, 5, 5, green)),
		},
	}
	doc, loop, backings := newControlledImages(t, loader, time.Minute)

	el, err := doc.CreateElement("img")
	require.NoError(t, err)

	recorder := new(eventRecorder)
	recorder.watch(el)

	el.SetSrc("slow")
	el.SetSrc("fast")
	runLoop(t, loop)

	assert.Equal(t, []string{"onload", "load"}, recorder.events)
	img, ok := backings.Image(el)
	require.True(t, ok)
	assert.Equal(t, 5, img.Width())
	assert.Equal(t, []string{"slow"}, loader.cancelled)
}

func TestSyntheticImages_timeout(t *testing.T) {
	loader := &controlledLoader{
		blocked: map[string]bool{"http://unreachable.invalid/tile.png": true},
	}
	doc, loop, backings := newControlledImages(t, loader, 20*time.Millisecond)

	el, err := doc.CreateElement("img")
	require.NoError(t, err)

	recorder := new(eventRecorder)
	recorder.watch(el)

	start := time.Now()
	el.SetSrc("http://unreachable.invalid/tile.png")

	// the timeout is a wrapped timer handle that does not hold the loop open by itself
	handle, ok := backings.images[el].timer.(*envshim.TimerHandle)
	require.True(t, ok)
	assert.False(t, handle.HasRef())

	runLoop(t, loop)

	assert.Less(t, int64(time.Since(start)), int64(time.Second*5))
	assert.Equal(t, []string{"onerror", "error"}, recorder.events)

	detailErr, ok := recorder.details[0].(error)
	require.True(t, ok)
	assert.Equal(t, ErrImageLoadTimeout, errorsx.Cause(detailErr))

	// the timeout cancelled the fetch
	assert.Equal(t, []string{"http://unreachable.invalid/tile.png"}, loader.cancelled)
	assert.Equal(t, ErrImageLoadTimeout, errorsx.Cause(backings.ImageErr(el)))
}

func TestSyntheticImages_detachedElementStopsLoading(t *testing.T) {
	loader := &controlledLoader{
		blocked: map[string]bool{"slow": true},
	}
	doc, loop, backings := newControlledImages(t, loader, time.Minute)

	el, err := doc.CreateElement("img")
	require.NoError(t, err)
	_, err = doc.Body().AppendChild(el)
	require.NoError(t, err)

	recorder := new(eventRecorder)
	recorder.watch(el)

	el.SetSrc("slow")
	el.Remove()
	runLoop(t, loop)

	assert.Empty(t, recorder.events)
	assert.Equal(t, 0, backings.Len())
	assert.Equal(t, []string{"slow"}, loader.cancelled)
}
