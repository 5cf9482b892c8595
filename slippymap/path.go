package slippymap

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/rasterengine"
)

// PathOptions styles a vector path. Start from DefaultPathOptions or DefaultPolygonOptions.
type PathOptions struct {
	Stroke    bool
	Color     string
	Weight    float64
	Opacity   float64
	LineCap   string
	LineJoin  string
	DashArray []float64

	Fill bool
	// FillColor defaults to Color when empty
	FillColor   string
	FillOpacity float64

	Interactive bool
	Renderer    *CanvasRenderer
}

// DefaultPathOptions is the style of lines
func DefaultPathOptions() PathOptions {
	return PathOptions{
		Stroke:      true,
		Color:       "#3388ff",
		Weight:      3,
		Opacity:     1,
		LineCap:     "round",
		LineJoin:    "round",
		FillOpacity: 0.2,
		Interactive: true,
	}
}

// DefaultPolygonOptions is the style of filled shapes: polygons, rectangles and circles
func DefaultPolygonOptions() PathOptions {
	options := DefaultPathOptions()
	options.Fill = true
	return options
}

// Path is a vector layer drawn by a canvas renderer
type Path interface {
	Layer
	Fire(eventType string, event *Event)
	SetStyle(options PathOptions)
	Redraw()

	pathOptions() PathOptions
	project(m *Map)
	draw(ctx *rasterengine.Context2D) errorsx.Error
	containsPoint(p Point, tolerance float64) bool
}

// pathBase holds what every path shares. The concrete path passes itself in, as the renderer needs the full Path.
type pathBase struct {
	Evented

	options  PathOptions
	m        *Map
	renderer *CanvasRenderer
}

func (pb *pathBase) pathOptions() PathOptions {
	return pb.options
}

func (pb *pathBase) onAdd(m *Map, self Path) errorsx.Error {
	renderer, err := m.getRenderer(pb.options)
	if err != nil {
		return errorsx.Wrap(err)
	}

	err = m.ensureRendererAdded(renderer)
	if err != nil {
		return errorsx.Wrap(err)
	}

	pb.m = m
	pb.renderer = renderer
	renderer.addPath(self)

	return nil
}

func (pb *pathBase) onRemove(self Path) {
	if pb.renderer != nil {
		pb.renderer.removePath(self)
	}

	pb.m = nil
	pb.renderer = nil
}

func (pb *pathBase) setStyle(options PathOptions, self Path) {
	options.Renderer = pb.options.Renderer
	pb.options = options
	pb.redraw(self)
}

func (pb *pathBase) redraw(self Path) {
	if pb.renderer != nil {
		pb.renderer.updatePath(self)
	}
}

// clickTolerance is how far outside a path's geometry a click still hits it
func (pb *pathBase) clickTolerance(tolerance float64) float64 {
	if pb.options.Stroke {
		return pb.options.Weight/2 + tolerance
	}

	return tolerance
}

// fillStroke paints the context's current path in the path's style
func (pb *pathBase) fillStroke(ctx *rasterengine.Context2D) errorsx.Error {
	options := pb.options

	if options.Fill {
		fillColor := options.FillColor
		if fillColor == "" {
			fillColor = options.Color
		}

		ctx.SetGlobalAlpha(options.FillOpacity)
		err := ctx.SetFillStyle(fillColor)
		if err != nil {
			return errorsx.Wrap(err)
		}
		ctx.Fill()
	}

	if options.Stroke && options.Weight > 0 {
		ctx.SetLineDash(options.DashArray)
		ctx.SetGlobalAlpha(options.Opacity)
		ctx.SetLineWidth(options.Weight)
		err := ctx.SetStrokeStyle(options.Color)
		if err != nil {
			return errorsx.Wrap(err)
		}
		ctx.SetLineCap(options.LineCap)
		ctx.SetLineJoin(options.LineJoin)
		ctx.Stroke()
	}

	ctx.SetLineDash(nil)
	ctx.SetGlobalAlpha(1)

	return nil
}
