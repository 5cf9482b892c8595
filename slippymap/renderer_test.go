package slippymap

import (
	"image/color"
	"testing"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidRedOptions() PathOptions {
	options := DefaultPolygonOptions()
	options.Stroke = false
	options.FillColor = "#ff0000"
	options.FillOpacity = 1
	return options
}

var (
	red         = color.RGBA{R: 0xff, A: 0xff}
	transparent = color.RGBA{}
)

func TestCanvasRenderer_drawsPaths(t *testing.T) {
	env := newTestEnv(t, true)
	m := env.newTestMap(t, 200, 100, &View{LatLng{0, 0}, 1})

	circle := NewCircleMarker(LatLng{0, 0}, 10, solidRedOptions())
	require.NoError(t, m.AddLayer(circle))

	renderers := m.Renderers()
	require.Len(t, renderers, 1)
	renderer := renderers[0]

	// the canvas covers the view plus 10% padding on each side
	el := renderer.Container()
	require.NotNil(t, el)
	assert.Same(t, m.GetPane(PaneOverlay), el.ParentElement())
	assert.Equal(t, PixelBounds{Point{-20, -10}, Point{220, 110}}, renderer.Bounds())
	assert.Equal(t, Point{-20, -10}, GetPosition(el))
	assert.Equal(t, "240px", el.Style.Get("width"))
	width, _ := el.WidthAttribute()
	assert.Equal(t, 240, width)

	canvas := env.canvases[el]
	require.NotNil(t, canvas)
	assert.Equal(t, 120, canvas.Height())

	assert.True(t, renderer.HasPendingRedraw())
	assert.Equal(t, transparent, canvas.Image().RGBAAt(120, 60))

	m.FlushRenderers()
	assert.False(t, renderer.HasPendingRedraw())
	assert.Equal(t, 0, env.loop.PendingAnimationFrames())
	assert.Equal(t, red, canvas.Image().RGBAAt(120, 60))
	assert.Equal(t, transparent, canvas.Image().RGBAAt(5, 5))

	m.RemoveLayer(circle)
	assert.True(t, renderer.HasPendingRedraw())
	env.runUntilIdle(t)
	assert.Equal(t, transparent, canvas.Image().RGBAAt(120, 60))
}

func TestCanvasRenderer_followsTheView(t *testing.T) {
	env := newTestEnv(t, true)
	m := env.newTestMap(t, 200, 100, &View{LatLng{0, 0}, 1})

	circle := NewCircleMarker(LatLng{0, 0}, 10, solidRedOptions())
	require.NoError(t, m.AddLayer(circle))
	renderer := m.Renderers()[0]

	updates := 0
	renderer.On("update", func(event *Event) {
		updates++
	})

	m.PanBy(Point{50, 0})
	assert.Equal(t, 1, updates)
	assert.Equal(t, PixelBounds{Point{30, -10}, Point{270, 110}}, renderer.Bounds())
	assert.False(t, renderer.HasPendingRedraw())

	// the circle is now 50px further left on the canvas
	canvas := env.canvases[renderer.Container()]
	assert.Equal(t, red, canvas.Image().RGBAAt(70, 60))
	assert.Equal(t, transparent, canvas.Image().RGBAAt(120, 60))
}

func TestCanvasRenderer_withoutCanvasListenerSupport(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 200, 100, &View{LatLng{0, 0}, 1})

	circle := NewCircleMarker(LatLng{0, 0}, 10, solidRedOptions())
	err := m.AddLayer(circle)
	require.Error(t, err)

	typeErr, ok := errorsx.Cause(err).(*TypeError)
	require.True(t, ok)
	assert.Equal(t, "TypeError: target.attachEvent is not a function", typeErr.Error())

	assert.False(t, m.HasLayer(circle))
	assert.Empty(t, m.Renderers())
	assert.Empty(t, m.GetPane(PaneOverlay).Children())
}

func TestMap_noVectorRenderer(t *testing.T) {
	env := newTestEnv(t, true)
	env.lib.MapDefaults.PreferCanvas = false
	m := env.newTestMap(t, 200, 100, &View{LatLng{0, 0}, 1})

	err := m.AddLayer(NewPolyline([]LatLng{{0, 0}, {1, 1}}, DefaultPathOptions()))
	require.Error(t, err)
	assert.Equal(t, ErrNoVectorRenderer, errorsx.Cause(err))

	// an explicit renderer still works
	options := DefaultPathOptions()
	options.Renderer = NewCanvasRenderer(DefaultRendererOptions())
	require.NoError(t, m.AddLayer(NewPolyline([]LatLng{{0, 0}, {1, 1}}, options)))
	assert.Len(t, m.Renderers(), 1)
}

func TestCanvasRenderer_PathAt(t *testing.T) {
	env := newTestEnv(t, true)
	m := env.newTestMap(t, 200, 100, &View{LatLng{0, 0}, 1})

	line := NewPolyline([]LatLng{{0, -90}, {0, 90}}, DefaultPathOptions())
	require.NoError(t, m.AddLayer(line))

	rectangle := NewRectangle(osm.Bounds{MinLat: -10, MaxLat: 10, MinLon: 30, MaxLon: 50}, DefaultPolygonOptions())
	require.NoError(t, m.AddLayer(rectangle))

	renderer := m.Renderers()[0]

	// the line runs along layer y = 50, from x = -28 to x = 228
	assert.True(t, renderer.PathAt(Point{0, 51}) == Path(line))
	assert.Nil(t, renderer.PathAt(Point{0, 60}))

	// the rectangle is drawn above the line, and its inside hits
	center := m.LatLngToLayerPoint(LatLng{0, 40})
	assert.True(t, renderer.PathAt(center) == Path(rectangle))
	assert.True(t, renderer.PathAt(center.Add(Point{0, 5})) == Path(rectangle))

	nonInteractive := DefaultPolygonOptions()
	nonInteractive.Interactive = false
	rectangle.SetStyle(nonInteractive)
	assert.True(t, renderer.PathAt(center) == Path(line))
}

func TestCircle_radiusInMetres(t *testing.T) {
	env := newTestEnv(t, true)
	m := env.newTestMap(t, 200, 100, &View{LatLng{0, 0}, 1})

	circle := NewCircle(LatLng{0, 0}, 1000000, DefaultPolygonOptions())
	require.NoError(t, m.AddLayer(circle))

	assert.Equal(t, Point{100, 50}, circle.point.Round())
	assert.InDelta(t, 12.8, circle.radiusX, 0.1)
	assert.InDelta(t, circle.radiusX, circle.radiusY, 0.5)

	circle.SetRadius(2000000)
	assert.InDelta(t, 25.6, circle.radiusX, 0.2)
}

func TestMap_Remove_cancelsRedraws(t *testing.T) {
	env := newTestEnv(t, true)
	m := env.newTestMap(t, 200, 100, &View{LatLng{0, 0}, 1})

	circle := NewCircleMarker(LatLng{0, 0}, 10, solidRedOptions())
	require.NoError(t, m.AddLayer(circle))
	renderer := m.Renderers()[0]
	require.True(t, renderer.HasPendingRedraw())

	m.Remove()

	assert.False(t, renderer.HasPendingRedraw())
	assert.Nil(t, renderer.Container())
	assert.Equal(t, 0, env.loop.PendingAnimationFrames())
	assert.Empty(t, m.Renderers())
}
