package maprenderer

import (
	"context"
	"fmt"
	"time"

	"github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/headless"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"github.com/jamesrr39/headlessmap/slippymap"
	"github.com/jamesrr39/semaphore"
)

const (
	MaxDimension = 4096
	TileSize     = 256
)

// Request describes a single map export
type Request struct {
	Center  slippymap.LatLng    `json:"center"`
	Zoom    float64             `json:"zoom"`
	Width   int                 `json:"width"`
	Height  int                 `json:"height"`
	Format  rasterengine.Format `json:"format"`
	Quality int                 `json:"quality"`
	// TileURL is a tile URL template, e.g. https://tile.example.org/{z}/{x}/{y}.png. Empty means no base layer.
	TileURL string `json:"tileUrl"`
	// Marker places the default marker at the center
	Marker bool `json:"marker"`
	// Popup opens a popup with this HTML content on the center marker. Implies Marker.
	Popup string `json:"popup"`
}

// InvalidRequestError is returned for requests that can never be rendered
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid render request: " + e.Reason
}

func invalid(format string, args ...interface{}) errorsx.Error {
	return errorsx.Wrap(&InvalidRequestError{fmt.Sprintf(format, args...)})
}

func (r Request) Validate(minZoom, maxZoom float64) errorsx.Error {
	if r.Width <= 0 || r.Height <= 0 || r.Width > MaxDimension || r.Height > MaxDimension {
		return invalid("image size must be between 1x1 and %dx%d, got %dx%d", MaxDimension, MaxDimension, r.Width, r.Height)
	}

	if r.Center.Lat < -90 || r.Center.Lat > 90 || r.Center.Lng < -180 || r.Center.Lng > 180 {
		return invalid("center out of range: %v", r.Center)
	}

	if r.Zoom < minZoom || r.Zoom > maxZoom {
		return invalid("zoom must be between %v and %v, got %v", minZoom, maxZoom, r.Zoom)
	}

	if r.Quality < 0 || r.Quality > 100 {
		return invalid("quality must be between 0 and 100, got %d", r.Quality)
	}

	switch r.Format {
	case rasterengine.FormatPNG, rasterengine.FormatJPEG, "":
	default:
		return invalid("unsupported image format: %q", r.Format)
	}

	return nil
}

// TileRequest is the request for the 256x256 tile x/y at zoom level z, centered on the tile
func TileRequest(x, y, z int) Request {
	return Request{
		Center: slippymap.TileCenter(x, y, z),
		Zoom:   float64(z),
		Width:  TileSize,
		Height: TileSize,
		Format: rasterengine.FormatPNG,
	}
}

// TileRequestAt is the tile request for the tile containing ll at zoom level z
func TileRequestAt(ll slippymap.LatLng, z int) Request {
	coords := slippymap.TileAt(ll, z)

	return TileRequest(coords.X, coords.Y, coords.Z)
}

type MapRenderer interface {
	Render(ctx context.Context, request Request) ([]byte, errorsx.Error)
}

var _ MapRenderer = &Renderer{}

// Renderer exports one map at a time from a headless environment
type Renderer struct {
	env     *headless.Environment
	sema    *semaphore.Semaphore
	timeout time.Duration
}

// NewRenderer creates a renderer. A timeout of 0 means exports are only bounded by the caller's context.
func NewRenderer(env *headless.Environment, timeout time.Duration) *Renderer {
	// the environment's event loop is not reentrant, so exports run one at a time
	return &Renderer{env, semaphore.NewSemaphore(1), timeout}
}

func (rr *Renderer) Render(ctx context.Context, request Request) ([]byte, errorsx.Error) {
	defaults := rr.env.Library.MapDefaults

	err := request.Validate(defaults.MinZoom, defaults.MaxZoom)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	rr.sema.Add()
	defer rr.sema.Done()

	if rr.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rr.timeout)
		defer cancel()
	}

	setupSpan := startSpan(ctx, "set up map")

	mapOptions := defaults
	mapOptions.View = &slippymap.View{Center: request.Center, Zoom: request.Zoom}

	m, err := rr.env.NewMap(headless.MapOptions{
		MapOptions: mapOptions,
		Size:       slippymap.Point{X: float64(request.Width), Y: float64(request.Height)},
	})
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	defer m.Remove()

	err = addLayers(m, request)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	setupSpan.end(ctx)

	exportSpan := startSpan(ctx, "export")
	defer exportSpan.end(ctx)

	data, err := m.ToBuffer(ctx, request.Format, request.Quality)
	if err != nil {
		return nil, errorsx.Wrap(err, "center", request.Center, "zoom", request.Zoom)
	}

	return data, nil
}

func addLayers(m *headless.Map, request Request) errorsx.Error {
	if request.TileURL != "" {
		err := m.AddLayer(slippymap.NewTileLayer(request.TileURL, slippymap.DefaultTileLayerOptions()))
		if err != nil {
			return errorsx.Wrap(err, "tileURL", request.TileURL)
		}
	}

	if !request.Marker && request.Popup == "" {
		return nil
	}

	marker := slippymap.NewMarker(request.Center, slippymap.DefaultMarkerOptions())
	err := m.AddLayer(marker)
	if err != nil {
		return errorsx.Wrap(err)
	}

	if request.Popup == "" {
		return nil
	}

	marker.BindPopup(request.Popup, slippymap.DefaultPopupOptions())

	return marker.OpenPopup()
}

type span struct {
	span *tracing.Span
}

// startSpan starts a tracing span when the context carries a trace, and is a no-op otherwise
func startSpan(ctx context.Context, name string) span {
	if ctx.Value(tracing.TracerCtxKey) == nil || ctx.Value(tracing.TraceCtxKey) == nil {
		return span{}
	}

	return span{tracing.StartSpan(ctx, name)}
}

func (s span) end(ctx context.Context) {
	if s.span == nil {
		return
	}

	s.span.End(ctx)
}
