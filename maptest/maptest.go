// Package maptest helps tests drive headless maps: creating and tearing down maps, and pumping
// the event loop until tiles have loaded.
//
// The wait functions pump the environment's event loop, so they must not be called from a loop callback.
package maptest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/headless"
	"github.com/jamesrr39/headlessmap/slippymap"
)

const (
	DefaultTimeout = time.Second * 10
	// CleanupGraceDelay is how long CleanupTestMaps lets already-due callbacks run before removing maps
	CleanupGraceDelay = time.Millisecond * 10
)

var (
	ErrTimeout  = errors.New("timed out waiting for tiles")
	ErrTileLoad = errors.New("tile failed to load")
)

// Progress reports how many tiles of a layer are still loading
type Progress struct {
	Layer   *slippymap.TileLayer
	Pending int
	Total   int
}

type WaitOptions struct {
	// Timeout defaults to DefaultTimeout
	Timeout time.Duration
	// OnProgress, if set, is called each time a tile finishes loading or fails
	OnProgress func(progress Progress)
}

type trackedMap struct {
	env *headless.Environment
	m   *headless.Map
}

var (
	trackedMu sync.Mutex
	tracked   []trackedMap
)

// CreateTestMap creates a map and remembers it for CleanupTestMaps
func CreateTestMap(env *headless.Environment, options headless.MapOptions) (*headless.Map, errorsx.Error) {
	m, err := env.NewMap(options)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	trackedMu.Lock()
	tracked = append(tracked, trackedMap{env, m})
	trackedMu.Unlock()

	return m, nil
}

// CleanupTestMaps removes every map made with CreateTestMap. Pending renderer frames are cancelled
// first and the loop is given CleanupGraceDelay to run anything else already due.
func CleanupTestMaps(ctx context.Context) errorsx.Error {
	trackedMu.Lock()
	maps := tracked
	tracked = nil
	trackedMu.Unlock()

	loops := make(map[*headless.Environment]bool)
	for _, entry := range maps {
		for _, renderer := range entry.m.Renderers() {
			renderer.CancelAnimationFrames()
		}
		loops[entry.env] = true
	}

	for env := range loops {
		err := runFor(ctx, env, CleanupGraceDelay)
		if err != nil {
			return errorsx.Wrap(err)
		}
	}

	for _, entry := range maps {
		entry.m.Remove()
	}

	return nil
}

// runFor pumps the loop for at least the given duration
func runFor(ctx context.Context, env *headless.Environment, duration time.Duration) errorsx.Error {
	elapsed := false
	env.Globals.SetTimeout(func() {
		elapsed = true
	}, duration)

	return env.Loop.RunUntil(ctx, func() bool {
		return elapsed
	})
}

// ResetForTests forgets the tracked maps without removing them
func ResetForTests() {
	trackedMu.Lock()
	tracked = nil
	trackedMu.Unlock()
}

// tileWaiter follows one tile layer until it has no tiles left to load, or a tile fails while others are still loading
type tileWaiter struct {
	layer      *slippymap.TileLayer
	err        errorsx.Error
	handlerIDs map[string]slippymap.HandlerID
}

func newTileWaiter(layer *slippymap.TileLayer, onProgress func(progress Progress)) *tileWaiter {
	w := &tileWaiter{
		layer:      layer,
		handlerIDs: make(map[string]slippymap.HandlerID),
	}

	reportProgress := func() {
		if onProgress != nil {
			onProgress(Progress{
				Layer:   layer,
				Pending: layer.PendingTiles(),
				Total:   len(layer.Tiles()),
			})
		}
	}

	w.handlerIDs["tileload"] = layer.On("tileload", func(event *slippymap.Event) {
		reportProgress()
	})
	w.handlerIDs["tileerror"] = layer.On("tileerror", func(event *slippymap.Event) {
		reportProgress()

		// the last tile failing still finishes the layer
		if layer.PendingTiles() == 0 || w.err != nil {
			return
		}

		src := ""
		if event.Tile != nil {
			src = event.Tile.Src()
		}
		cause := ""
		if event.Err != nil {
			cause = event.Err.Error()
		}
		w.err = errorsx.Wrap(ErrTileLoad, "src", src, "cause", cause)
	})

	return w
}

func (w *tileWaiter) done() bool {
	return w.err != nil || tilesSettled(w.layer)
}

func (w *tileWaiter) detach() {
	for eventType, id := range w.handlerIDs {
		w.layer.Off(eventType, id)
	}
}

func tilesSettled(layer *slippymap.TileLayer) bool {
	return !layer.IsLoading() && layer.PendingTiles() == 0
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return context.WithTimeout(ctx, timeout)
}

// WaitForTiles pumps the loop until the layer is not loading and has no pending tiles.
// It returns straight away if that is already the case. A failing tile is an error
// unless it was the last one pending.
func WaitForTiles(ctx context.Context, env *headless.Environment, layer *slippymap.TileLayer, options WaitOptions) errorsx.Error {
	if tilesSettled(layer) {
		return nil
	}

	return waitForLayers(ctx, env, []*slippymap.TileLayer{layer}, options)
}

func waitForLayers(ctx context.Context, env *headless.Environment, layers []*slippymap.TileLayer, options WaitOptions) errorsx.Error {
	waiters := make([]*tileWaiter, len(layers))
	for i, layer := range layers {
		waiters[i] = newTileWaiter(layer, options.OnProgress)
		defer waiters[i].detach()
	}

	ctx, cancel := withTimeout(ctx, options.Timeout)
	defer cancel()

	err := env.Loop.RunUntil(ctx, func() bool {
		for _, w := range waiters {
			if w.err != nil {
				return true
			}
			if !w.done() {
				return false
			}
		}
		return true
	})

	for _, w := range waiters {
		if w.err != nil {
			return w.err
		}
	}

	if err != nil {
		if errorsx.Cause(err) == context.DeadlineExceeded {
			pending := 0
			for _, layer := range layers {
				pending += layer.PendingTiles()
			}
			return errorsx.Wrap(ErrTimeout, "pendingTiles", pending)
		}
		return errorsx.Wrap(err)
	}

	return nil
}

// WaitForMapReady waits for the map to have a view, then for all of its tile layers together
func WaitForMapReady(ctx context.Context, env *headless.Environment, m *headless.Map, options WaitOptions) errorsx.Error {
	ctx, cancel := withTimeout(ctx, options.Timeout)
	defer cancel()

	ready := false
	m.WhenReady(func() {
		ready = true
	})

	err := env.Loop.RunUntil(ctx, func() bool {
		return ready
	})
	if err != nil {
		if errorsx.Cause(err) == context.DeadlineExceeded {
			return errorsx.Wrap(ErrTimeout, "reason", "map never became ready")
		}
		return errorsx.Wrap(err)
	}

	var layers []*slippymap.TileLayer
	m.EachLayer(func(layer slippymap.Layer) {
		tileLayer, ok := layer.(*slippymap.TileLayer)
		if ok && !tilesSettled(tileLayer) {
			layers = append(layers, tileLayer)
		}
	})

	if len(layers) == 0 {
		return nil
	}

	return waitForLayers(ctx, env, layers, options)
}
