package headless

import (
	"context"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"github.com/jamesrr39/headlessmap/slippymap"
)

type MapOptions struct {
	slippymap.MapOptions
	// Size is the map's size in pixels. Zero means the environment's default size.
	Size slippymap.Point
}

// Map is a slippy map that can size itself and export images without a layout engine
type Map struct {
	*slippymap.Map
	env   *Environment
	sizer *explicitSizer
}

// explicitSizer reports an assigned size, or a default one. The size is recomputed only when marked dirty.
type explicitSizer struct {
	defaultSize slippymap.Point
	explicit    *slippymap.Point
	cached      slippymap.Point
	dirty       bool
}

func (s *explicitSizer) Size(m *slippymap.Map) slippymap.Point {
	if !s.dirty {
		return s.cached
	}

	s.cached = s.defaultSize
	if s.explicit != nil {
		s.cached = *s.explicit
	}
	s.dirty = false

	return s.cached
}

// NewMap creates a map in a new container at the end of the document body.
// The library's defaults are used; options.MapOptions is ignored when it is the zero value.
func (env *Environment) NewMap(options MapOptions) (*Map, errorsx.Error) {
	mapOptions := options.MapOptions
	if isZeroMapOptions(mapOptions) {
		mapOptions = env.Library.MapDefaults
	}

	sizer := &explicitSizer{defaultSize: env.defaultSize, dirty: true}
	if !options.Size.IsZero() {
		size := options.Size
		sizer.explicit = &size
	}
	mapOptions.Sizer = sizer

	container, err := env.Document.CreateElement("div")
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	setContainerSize(container, sizer.Size(nil))
	sizer.dirty = true

	_, err = env.Document.Body().AppendChild(container)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	m, err := env.Library.NewMap(container, mapOptions)
	if err != nil {
		container.Remove()
		return nil, errorsx.Wrap(err)
	}

	return &Map{
		Map:   m,
		env:   env,
		sizer: sizer,
	}, nil
}

func isZeroMapOptions(options slippymap.MapOptions) bool {
	return options.View == nil &&
		options.MinZoom == 0 &&
		options.MaxZoom == 0 &&
		options.ZoomSnap == 0 &&
		!options.FadeAnimation &&
		!options.ZoomAnimation &&
		!options.MarkerZoomAnimation &&
		!options.PreferCanvas &&
		options.Renderer == nil &&
		options.Sizer == nil
}

func setContainerSize(container *dom.Element, size slippymap.Point) {
	container.Style.SetPx("width", size.X)
	container.Style.SetPx("height", size.Y)
}

// SetSize assigns the map's size and recomputes its pixel origin around the current centre
func (m *Map) SetSize(width, height float64) {
	size := slippymap.Point{X: width, Y: height}
	m.sizer.explicit = &size
	m.sizer.dirty = true

	setContainerSize(m.Container(), size)
	m.InvalidateSize()
}

// Settle runs the event loop until all loads, timers and frames are done, then draws pending vector redraws
func (m *Map) Settle(ctx context.Context) errorsx.Error {
	err := m.env.Loop.RunUntilIdle(ctx)
	if err != nil {
		return errorsx.Wrap(err)
	}

	m.FlushRenderers()

	return nil
}

// RenderToCanvas settles the map and composites it onto a new canvas
func (m *Map) RenderToCanvas(ctx context.Context) (*rasterengine.Canvas, errorsx.Error) {
	err := m.Settle(ctx)
	if err != nil {
		return nil, err
	}

	canvas, err := m.env.Compositor().RenderToCanvas(ctx, m.Map)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return canvas, nil
}

// ToBuffer renders the map and encodes it. quality only applies to JPEG; 0 means the default.
func (m *Map) ToBuffer(ctx context.Context, format rasterengine.Format, quality int) ([]byte, errorsx.Error) {
	if format == "" {
		format = rasterengine.FormatPNG
	}

	if format == rasterengine.FormatPNG && quality > 0 {
		m.env.Logger.Warn("quality %d ignored, PNG encoding has no quality setting", quality)
		quality = 0
	}

	canvas, err := m.RenderToCanvas(ctx)
	if err != nil {
		return nil, errorsx.Wrap(err, "format", format)
	}

	data, err := canvas.ToBuffer(format, quality)
	if err != nil {
		return nil, errorsx.Wrap(err, "format", format)
	}

	return data, nil
}

type SaveOptions struct {
	// Format defaults to the one matching the filename's extension
	Format  rasterengine.Format
	Quality int
}

// SaveImage renders the map and writes it to filename, returning the filename
func (m *Map) SaveImage(ctx context.Context, filename string, options SaveOptions) (string, errorsx.Error) {
	format := options.Format
	if format == "" {
		format = rasterengine.FormatFromFilename(filename)
	}

	data, err := m.ToBuffer(ctx, format, options.Quality)
	if err != nil {
		return "", errorsx.Wrap(err, "filename", filename)
	}

	writeErr := m.env.Fs.WriteFile(filename, data, 0644)
	if writeErr != nil {
		return "", errorsx.Wrap(writeErr, "filename", filename)
	}

	return filename, nil
}

// Remove cancels the renderers' pending animation frames, then removes the map and its container
func (m *Map) Remove() {
	for _, renderer := range m.Renderers() {
		renderer.CancelAnimationFrames()
	}

	container := m.Container()
	m.Map.Remove()
	container.Remove()
}
