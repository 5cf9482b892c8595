package headless

import (
	"context"
	"errors"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/jamesrr39/headlessmap/envshim"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"github.com/jamesrr39/headlessmap/resourceloader"
)

// DefaultImageLoadTimeout bounds every image load
const DefaultImageLoadTimeout = time.Second * 30

var ErrImageLoadTimeout = errors.New("image load timed out")

// ImageLoader fetches and decodes an image source
type ImageLoader interface {
	LoadImage(ctx context.Context, source string) (*rasterengine.Image, errorsx.Error)
}

// SyntheticImages makes img elements load their src through an ImageLoader.
// Loads run in the background; completion is delivered on the loop as a "load" or "error" event,
// which reaches both the onload/onerror slot and the listeners.
type SyntheticImages struct {
	logger   *logpkg.Logger
	globals  *envshim.Globals
	loader   ImageLoader
	backings *BackingTable
	timeout  time.Duration
}

func newSyntheticImages(logger *logpkg.Logger, globals *envshim.Globals, loader ImageLoader, backings *BackingTable, timeout time.Duration) *SyntheticImages {
	if timeout <= 0 {
		timeout = DefaultImageLoadTimeout
	}

	return &SyntheticImages{
		logger:   logger,
		globals:  globals,
		loader:   loader,
		backings: backings,
		timeout:  timeout,
	}
}

func (si *SyntheticImages) install(doc *dom.Document) {
	doc.RegisterHooks("img", dom.ElementHooks{
		AttributeChanged: func(el *dom.Element, name, value string) {
			if name == "src" {
				si.startLoad(el, value)
			}
		},
		Dimensions: si.naturalSize,
		Detached: func(el *dom.Element) {
			backing, ok := si.backings.images[el]
			if !ok {
				return
			}

			si.stop(backing)
			delete(si.backings.images, el)
		},
	})
}

// naturalSize reports the decoded image's size once loaded, unless the element has a width or height attribute
func (si *SyntheticImages) naturalSize(el *dom.Element) (int, int, bool) {
	if el.HasAttribute("width") || el.HasAttribute("height") {
		return 0, 0, false
	}

	img, ok := si.backings.Image(el)
	if !ok {
		return 0, 0, false
	}

	return img.Width(), img.Height(), true
}

// stop cancels the backing's in-flight load and its timeout
func (si *SyntheticImages) stop(backing *imageBacking) {
	if backing.cancel != nil {
		backing.cancel()
	}
	if backing.timer != nil {
		si.globals.ClearTimeout(backing.timer)
		backing.timer = nil
	}
}

// startLoad begins a load cycle for src. A load still in flight for an earlier src is cancelled,
// and its completion is ignored.
func (si *SyntheticImages) startLoad(el *dom.Element, src string) {
	backing := si.backings.imageBacking(el)
	si.stop(backing)

	backing.seq++
	seq := backing.seq
	backing.complete = false
	backing.image = nil
	backing.err = nil
	backing.cancel = nil

	if src == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	backing.cancel = cancel

	backing.timer = si.globals.SetTimeout(func() {
		backing.timer = nil
		si.complete(el, seq, nil, errorsx.Wrap(ErrImageLoadTimeout, "src", resourceloader.Abbreviate(src), "timeout", si.timeout.String()))
	}, si.timeout)
	// the tracked load keeps the loop busy, the timeout alone must not
	if handle, ok := backing.timer.(*envshim.TimerHandle); ok {
		handle.Unref()
	}

	loop := si.globals.Loop
	release := loop.Track()
	go func() {
		defer release()

		img, err := si.loader.LoadImage(ctx, src)
		loop.Post(func() {
			if err != nil {
				si.complete(el, seq, nil, err)
				return
			}
			si.complete(el, seq, img, nil)
		})
	}()
}

// complete settles load cycle seq of el, firing its load or error event. Settling a cycle
// that is not the element's current one, or that already settled, does nothing.
func (si *SyntheticImages) complete(el *dom.Element, seq uint64, img *rasterengine.Image, err error) {
	backing, ok := si.backings.images[el]
	if !ok || backing.seq != seq || backing.complete {
		return
	}

	si.stop(backing)
	backing.complete = true

	if err != nil {
		backing.err = err
		si.logger.Debug("image %q failed to load: %s", resourceloader.Abbreviate(el.Src()), err.Error())

		event := dom.NewEvent("error", false)
		event.Detail = err
		el.DispatchEvent(event)
		return
	}

	backing.image = img
	el.DispatchEvent(dom.NewEvent("load", false))
}
