package slippymap

import (
	"math"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/jamesrr39/headlessmap/envshim"
	"github.com/jamesrr39/headlessmap/rasterengine"
)

type RendererOptions struct {
	// Padding extends the canvas beyond the view on each side, as a fraction of the view size
	Padding float64
	// Tolerance widens the clickable area of paths, in pixels
	Tolerance float64
	Pane      string
}

func DefaultRendererOptions() RendererOptions {
	return RendererOptions{
		Padding: 0.1,
		Pane:    PaneOverlay,
	}
}

// CanvasRenderer draws vector paths onto one canvas element covering the view
type CanvasRenderer struct {
	Evented
	listeners mapListeners

	options RendererOptions

	m         *Map
	container *dom.Element
	surface   *rasterengine.Canvas
	bounds    PixelBounds
	paths     []Path

	redrawRequested bool
	redrawFrame     envshim.FrameID

	clickListener dom.ListenerID
}

func NewCanvasRenderer(options RendererOptions) *CanvasRenderer {
	if options.Pane == "" {
		options.Pane = PaneOverlay
	}

	return &CanvasRenderer{options: options}
}

// Container is the canvas element, nil when the renderer is not on a map
func (r *CanvasRenderer) Container() *dom.Element {
	return r.container
}

func (r *CanvasRenderer) Bounds() PixelBounds {
	return r.bounds
}

func (r *CanvasRenderer) OnAdd(m *Map) errorsx.Error {
	container, err := createElement(m.lib.doc, "canvas", "leaflet-zoom-animated", nil)
	if err != nil {
		return errorsx.Wrap(err)
	}

	ctx, err := container.GetContext("2d")
	if err != nil {
		return errorsx.Wrap(err)
	}

	// pointer events reach the drawing surface
	surface := ctx.Canvas()
	clickListener, err := m.lib.DomEvent.On(surface, "click", func(e *dom.Event) {
		r.onClick(e)
	})
	if err != nil {
		return errorsx.Wrap(err)
	}

	_, err = m.GetPane(r.options.Pane).AppendChild(container)
	if err != nil {
		return errorsx.Wrap(err)
	}

	r.m = m
	r.container = container
	r.surface = surface
	r.clickListener = clickListener

	r.listeners.on(m, "viewreset", func(event *Event) {
		r.update()
	})
	r.listeners.on(m, "moveend", func(event *Event) {
		r.update()
	})

	r.update()

	return nil
}

func (r *CanvasRenderer) OnRemove(m *Map) {
	r.CancelAnimationFrames()
	r.listeners.offAll(m)

	err := m.lib.DomEvent.Off(r.surface, "click", r.clickListener)
	if err != nil {
		m.lib.logger.Warn("removing canvas renderer click listener: %s", err.Error())
	}

	r.container.Remove()

	if m.defaultRenderer == r {
		m.defaultRenderer = nil
	}

	r.m = nil
	r.container = nil
	r.surface = nil
}

// update resizes and moves the canvas to cover the padded view, then redraws every path
func (r *CanvasRenderer) update() {
	if r.m == nil || !r.m.IsLoaded() {
		return
	}

	size := r.m.GetSize()
	padding := size.MultiplyBy(r.options.Padding)
	min := r.m.ContainerPointToLayerPoint(padding.MultiplyBy(-1)).Round()
	max := min.Add(size.Add(padding.MultiplyBy(2))).Round()
	r.bounds = PixelBounds{min, max}

	canvasSize := r.bounds.Size()
	width, height := int(math.Max(1, canvasSize.X)), int(math.Max(1, canvasSize.Y))

	SetPosition(r.container, min)
	r.container.SetWidth(width)
	r.container.SetHeight(height)
	r.container.Style.SetPx("width", float64(width))
	r.container.Style.SetPx("height", float64(height))

	for _, path := range r.paths {
		path.project(r.m)
	}

	r.CancelAnimationFrames()
	r.redraw()

	r.Fire("update", &Event{Target: r})
}

func (r *CanvasRenderer) addPath(path Path) {
	for _, p := range r.paths {
		if p == path {
			return
		}
	}

	r.paths = append(r.paths, path)
	if r.m != nil && r.m.IsLoaded() {
		path.project(r.m)
	}
	r.requestRedraw()
}

func (r *CanvasRenderer) removePath(path Path) {
	for i, p := range r.paths {
		if p == path {
			r.paths = append(r.paths[:i:i], r.paths[i+1:]...)
			break
		}
	}

	r.requestRedraw()
}

// updatePath re-projects a path after its geometry or style changed
func (r *CanvasRenderer) updatePath(path Path) {
	if r.m != nil && r.m.IsLoaded() {
		path.project(r.m)
	}

	r.requestRedraw()
}

// requestRedraw schedules one redraw on the next animation frame
func (r *CanvasRenderer) requestRedraw() {
	if r.m == nil || r.redrawRequested {
		return
	}

	r.redrawRequested = true
	r.redrawFrame = r.m.lib.scheduler.RequestAnimationFrame(func(time.Time) {
		r.redrawRequested = false
		r.redraw()
	})
}

// HasPendingRedraw reports whether a redraw is waiting for an animation frame
func (r *CanvasRenderer) HasPendingRedraw() bool {
	return r.redrawRequested
}

// CancelAnimationFrames cancels a pending redraw
func (r *CanvasRenderer) CancelAnimationFrames() {
	if !r.redrawRequested || r.m == nil {
		r.redrawRequested = false
		return
	}

	r.m.lib.scheduler.CancelAnimationFrame(r.redrawFrame)
	r.redrawRequested = false
}

// Flush runs a pending redraw straight away
func (r *CanvasRenderer) Flush() {
	if !r.redrawRequested {
		return
	}

	r.CancelAnimationFrames()
	r.redraw()
}

func (r *CanvasRenderer) redraw() {
	if r.m == nil || r.container == nil {
		return
	}

	// resizing the canvas replaces its context, so fetch it for every redraw
	ctx, err := r.container.GetContext("2d")
	if err != nil {
		r.m.lib.logger.Error("canvas renderer has no 2d context: %s", err.Error())
		return
	}

	size := r.bounds.Size()
	ctx.ResetTransform()
	ctx.ClearRect(0, 0, size.X, size.Y)

	ctx.Save()
	ctx.Translate(-r.bounds.Min.X, -r.bounds.Min.Y)
	for _, path := range r.paths {
		err := path.draw(ctx)
		if err != nil {
			r.m.lib.logger.Warn("drawing path: %s", err.Error())
		}
	}
	ctx.Restore()
}

func (r *CanvasRenderer) onClick(e *dom.Event) {
	if r.m == nil {
		return
	}

	containerPoint := r.m.MouseEventToContainerPoint(e)
	layerPoint := r.m.ContainerPointToLayerPoint(containerPoint)

	path := r.PathAt(layerPoint)
	if path == nil {
		return
	}

	path.Fire("click", &Event{
		Target:         path,
		ContainerPoint: containerPoint,
		LayerPoint:     layerPoint,
		LatLng:         r.m.LayerPointToLatLng(layerPoint),
		OriginalEvent:  e,
	})
}

// PathAt returns the top-most interactive path at a layer point
func (r *CanvasRenderer) PathAt(layerPoint Point) Path {
	for i := len(r.paths) - 1; i >= 0; i-- {
		path := r.paths[i]
		if path.pathOptions().Interactive && path.containsPoint(layerPoint, r.options.Tolerance) {
			return path
		}
	}

	return nil
}
