package headless

import (
	"context"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/jamesrr39/headlessmap/envshim"
	"github.com/jamesrr39/headlessmap/rasterengine"
)

// imageBacking is the load state of one img element
type imageBacking struct {
	// seq counts src assignments; a completion for an older assignment is dropped
	seq    uint64
	cancel context.CancelFunc
	timer  envshim.TimerRef

	complete bool
	image    *rasterengine.Image
	err      error
}

// BackingTable maps DOM elements to the native resources behind them.
// Entries are dropped when their element is detached from the document tree.
type BackingTable struct {
	canvases map[*dom.Element]*rasterengine.Canvas
	images   map[*dom.Element]*imageBacking
}

func NewBackingTable() *BackingTable {
	return &BackingTable{
		canvases: make(map[*dom.Element]*rasterengine.Canvas),
		images:   make(map[*dom.Element]*imageBacking),
	}
}

// Canvas is the raster canvas behind a canvas element
func (b *BackingTable) Canvas(el *dom.Element) (*rasterengine.Canvas, bool) {
	canvas, ok := b.canvases[el]
	return canvas, ok
}

// Image is the decoded image of an img element, once its current src has loaded
func (b *BackingTable) Image(el *dom.Element) (*rasterengine.Image, bool) {
	backing, ok := b.images[el]
	if !ok || !backing.complete || backing.image == nil {
		return nil, false
	}

	return backing.image, true
}

// ImageErr is the error of the img element's last completed load, if it failed
func (b *BackingTable) ImageErr(el *dom.Element) error {
	backing, ok := b.images[el]
	if !ok {
		return nil
	}

	return backing.err
}

// PendingImages counts img elements whose current src is still loading
func (b *BackingTable) PendingImages() int {
	count := 0
	for _, backing := range b.images {
		if backing.cancel != nil && !backing.complete {
			count++
		}
	}

	return count
}

func (b *BackingTable) Len() int {
	return len(b.canvases) + len(b.images)
}

func (b *BackingTable) imageBacking(el *dom.Element) *imageBacking {
	backing, ok := b.images[el]
	if !ok {
		backing = &imageBacking{}
		b.images[el] = backing
	}

	return backing
}

// ContextProvider hands out the 2d contexts of backed canvases
func (b *BackingTable) GetContext(el *dom.Element, contextType string) (*rasterengine.Context2D, errorsx.Error) {
	canvas, ok := b.canvases[el]
	if !ok {
		return nil, errorsx.Wrap(rasterengine.ErrContextUnavailable, "reason", "element has no backing canvas")
	}

	return canvas.GetContext(contextType)
}

var _ dom.ContextProvider = &BackingTable{}
