package compositor

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/jamesrr39/headlessmap/envshim"
	"github.com/jamesrr39/headlessmap/eventcompat"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"github.com/jamesrr39/headlessmap/slippymap"
	"github.com/stretchr/testify/require"
)

type testBackings struct {
	canvases map[*dom.Element]*rasterengine.Canvas
	images   map[*dom.Element]*rasterengine.Image
}

func (b *testBackings) Canvas(el *dom.Element) (*rasterengine.Canvas, bool) {
	canvas, ok := b.canvases[el]
	return canvas, ok
}

func (b *testBackings) Image(el *dom.Element) (*rasterengine.Image, bool) {
	img, ok := b.images[el]
	return img, ok
}

func (b *testBackings) GetContext(el *dom.Element, contextType string) (*rasterengine.Context2D, errorsx.Error) {
	canvas, ok := b.canvases[el]
	if !ok {
		return nil, errorsx.Wrap(rasterengine.ErrContextUnavailable)
	}

	return canvas.GetContext(contextType)
}

type testEnv struct {
	lib        *slippymap.Library
	loop       *envshim.Loop
	backings   *testBackings
	compositor *Compositor
	logs       *bytes.Buffer
}

// newTestEnv builds a library whose canvases are raster canvases. Images never load by themselves:
// tests put decoded images into the backings.
func newTestEnv(t *testing.T) *testEnv {
	doc := dom.NewDocument()
	loop := envshim.NewLoop()
	backings := &testBackings{
		canvases: make(map[*dom.Element]*rasterengine.Canvas),
		images:   make(map[*dom.Element]*rasterengine.Image),
	}

	doc.SetContextProvider(backings)
	doc.RegisterHooks("canvas", dom.ElementHooks{
		Created: func(el *dom.Element) errorsx.Error {
			canvas, err := rasterengine.NewCanvas(300, 150)
			if err != nil {
				return err
			}
			backings.canvases[el] = canvas
			return nil
		},
		AttributeChanged: func(el *dom.Element, name, value string) {
			canvas := backings.canvases[el]
			width, height := canvas.Width(), canvas.Height()
			switch name {
			case "width":
				width, _ = el.WidthAttribute()
			case "height":
				height, _ = el.HeightAttribute()
			default:
				return
			}
			require.NoError(t, canvas.Resize(width, height))
		},
	})

	logs := new(bytes.Buffer)
	logger := logpkg.NewLogger(logs, logpkg.LogLevelWarn)

	lib := slippymap.NewLibrary(logger, doc, envshim.NewGlobals(loop))
	lib.MapDefaults.FadeAnimation = false
	lib.MapDefaults.ZoomAnimation = false
	lib.MapDefaults.MarkerZoomAnimation = false
	lib.MapDefaults.PreferCanvas = true
	require.NoError(t, eventcompat.PatchEventCompatibility(lib))

	return &testEnv{
		lib:        lib,
		loop:       loop,
		backings:   backings,
		compositor: NewCompositor(logger, backings, nil),
		logs:       logs,
	}
}

func (env *testEnv) newTestMap(t *testing.T, width, height float64) *slippymap.Map {
	options := env.lib.MapDefaults
	options.Sizer = slippymap.SizerFunc(func(m *slippymap.Map) slippymap.Point {
		return slippymap.Point{X: width, Y: height}
	})
	options.View = &slippymap.View{Center: slippymap.LatLng{Lat: 0, Lng: 0}, Zoom: 1}

	m, err := env.lib.NewMapInBody(options)
	require.NoError(t, err)

	return m
}

func solidImage(width, height int, c color.Color) *rasterengine.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)

	return rasterengine.NewImage(img)
}

// addSquareMarker adds a marker whose icon is a loaded square of the given colour, centred on latlng
func (env *testEnv) addSquareMarker(t *testing.T, m *slippymap.Map, latlng slippymap.LatLng, size int, c color.Color) *slippymap.Marker {
	options := slippymap.DefaultMarkerOptions()
	options.Icon = slippymap.NewIcon(slippymap.IconOptions{
		IconURL:  "/square.png",
		IconSize: slippymap.Point{X: float64(size), Y: float64(size)},
	})
	marker := slippymap.NewMarker(latlng, options)
	require.NoError(t, m.AddLayer(marker))

	env.backings.images[marker.Element()] = solidImage(size, size, c)

	return marker
}

var (
	red         = color.RGBA{R: 0xff, A: 0xff}
	blue        = color.RGBA{B: 0xff, A: 0xff}
	white       = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	transparent = color.RGBA{}
)
