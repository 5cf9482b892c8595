package compositor

import (
	"context"
	"image"
	"testing"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/jamesrr39/headlessmap/slippymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidCircleOptions(fillColor string) slippymap.PathOptions {
	options := slippymap.DefaultPolygonOptions()
	options.Stroke = false
	options.FillColor = fillColor
	options.FillOpacity = 1
	return options
}

func TestRenderToCanvas_documentOrder(t *testing.T) {
	env := newTestEnv(t)
	m := env.newTestMap(t, 200, 100)

	circle := slippymap.NewCircleMarker(slippymap.LatLng{}, 10, solidCircleOptions("#0000ff"))
	require.NoError(t, m.AddLayer(circle))
	env.addSquareMarker(t, m, slippymap.LatLng{}, 10, red)

	canvas, err := env.compositor.RenderToCanvas(context.Background(), m)
	require.NoError(t, err)

	img := canvas.Image()
	assert.Equal(t, image.Rect(0, 0, 200, 100), img.Bounds())
	// the marker is above the vector pane
	assert.Equal(t, red, img.RGBAAt(100, 50))
	assert.Equal(t, red, img.RGBAAt(95, 45))
	assert.Equal(t, blue, img.RGBAAt(108, 50))
	assert.Equal(t, transparent, img.RGBAAt(5, 5))
}

func TestRenderToCanvas_removingAMarkerOnlyChangesItsArea(t *testing.T) {
	env := newTestEnv(t)
	m := env.newTestMap(t, 200, 100)

	require.NoError(t, m.AddLayer(slippymap.NewCircleMarker(slippymap.LatLng{}, 30, solidCircleOptions("#0000ff"))))
	marker := env.addSquareMarker(t, m, slippymap.LatLng{Lat: 0, Lng: 20}, 10, red)
	markerPoint := m.LatLngToContainerPoint(marker.GetLatLng())

	before, err := env.compositor.RenderToCanvas(context.Background(), m)
	require.NoError(t, err)

	m.RemoveLayer(marker)

	after, err := env.compositor.RenderToCanvas(context.Background(), m)
	require.NoError(t, err)

	changed := 0
	bounds := before.Image().Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if before.Image().RGBAAt(x, y) == after.Image().RGBAAt(x, y) {
				continue
			}
			changed++
			assert.InDelta(t, markerPoint.X, float64(x), 5+10)
			assert.InDelta(t, markerPoint.Y, float64(y), 5+10)
		}
	}
	assert.NotZero(t, changed)
}

func TestRenderToCanvas_opacityAndHidden(t *testing.T) {
	env := newTestEnv(t)
	m := env.newTestMap(t, 200, 100)

	marker := env.addSquareMarker(t, m, slippymap.LatLng{}, 10, red)
	marker.SetOpacity(0.5)

	canvas, err := env.compositor.RenderToCanvas(context.Background(), m)
	require.NoError(t, err)

	pixel := canvas.Image().RGBAAt(100, 50)
	assert.InDelta(t, 128, int(pixel.A), 2)
	assert.InDelta(t, 128, int(pixel.R), 2)
	assert.Zero(t, pixel.G)

	marker.Element().Style.Set("display", "none")

	canvas, err = env.compositor.RenderToCanvas(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, transparent, canvas.Image().RGBAAt(100, 50))
}

func TestRenderToCanvas_skipsImagesThatHaveNotLoaded(t *testing.T) {
	env := newTestEnv(t)
	m := env.newTestMap(t, 200, 100)

	marker := env.addSquareMarker(t, m, slippymap.LatLng{}, 10, red)
	delete(env.backings.images, marker.Element())
	env.addSquareMarker(t, m, slippymap.LatLng{Lat: 0, Lng: 20}, 10, red)

	canvas, err := env.compositor.RenderToCanvas(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, transparent, canvas.Image().RGBAAt(100, 50))
	assert.Equal(t, red, canvas.Image().RGBAAt(int(m.LatLngToContainerPoint(slippymap.LatLng{Lat: 0, Lng: 20}).X), 50))
	assert.Contains(t, env.logs.String(), "skipping image that has not loaded")
}

func TestRenderToCanvas_forcesARendererWhenNothingIsDrawable(t *testing.T) {
	env := newTestEnv(t)
	m := env.newTestMap(t, 200, 100)
	require.Empty(t, m.Renderers())

	canvas, err := env.compositor.RenderToCanvas(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, transparent, canvas.Image().RGBAAt(100, 50))
	assert.Len(t, m.Renderers(), 1)

	m.EachLayer(func(layer slippymap.Layer) {
		_, isCircleMarker := layer.(*slippymap.CircleMarker)
		assert.False(t, isCircleMarker)
	})
}

func TestRenderToCanvas_noDrawableContent(t *testing.T) {
	env := newTestEnv(t)
	env.lib.MapDefaults.PreferCanvas = false
	m := env.newTestMap(t, 200, 100)

	_, err := env.compositor.RenderToCanvas(context.Background(), m)
	require.Error(t, err)
	assert.Equal(t, ErrNoDrawableContent, errorsx.Cause(err))
}

func TestRenderToCanvas_containerUnavailable(t *testing.T) {
	env := newTestEnv(t)
	m := env.newTestMap(t, 200, 100)
	m.Remove()

	_, err := env.compositor.RenderToCanvas(context.Background(), m)
	require.Error(t, err)
	assert.Equal(t, ErrContainerUnavailable, errorsx.Cause(err))

	_, err = env.compositor.RenderToCanvas(context.Background(), nil)
	assert.Equal(t, ErrContainerUnavailable, errorsx.Cause(err))
}

func TestRenderToCanvas_contextCancelled(t *testing.T) {
	env := newTestEnv(t)
	m := env.newTestMap(t, 200, 100)
	env.addSquareMarker(t, m, slippymap.LatLng{}, 10, red)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.compositor.RenderToCanvas(ctx, m)
	require.Error(t, err)
	assert.Equal(t, context.Canceled, errorsx.Cause(err))
}

func Test_imageDrawSize(t *testing.T) {
	doc := dom.NewDocument()
	img := solidImage(30, 40, red)

	type test struct {
		style          map[string]string
		attributes     map[string]string
		expectedWidth  float64
		expectedHeight float64
	}

	tests := map[string]test{
		"natural size": {nil, nil, 30, 40},
		"attributes":   {nil, map[string]string{"width": "10", "height": "20"}, 10, 20},
		"style wins": {
			map[string]string{"width": "256px", "height": "128px"},
			map[string]string{"width": "10", "height": "20"},
			256, 128,
		},
		"mixed": {map[string]string{"width": "50px"}, map[string]string{"height": "5"}, 50, 5},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			el, err := doc.CreateElement("img")
			require.NoError(t, err)
			for key, value := range tc.style {
				el.Style.Set(key, value)
			}
			for key, value := range tc.attributes {
				el.SetAttribute(key, value)
			}

			width, height := imageDrawSize(el, img)
			assert.Equal(t, tc.expectedWidth, width)
			assert.Equal(t, tc.expectedHeight, height)
		})
	}
}
