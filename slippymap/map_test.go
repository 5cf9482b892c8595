package slippymap

import (
	"testing"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMap_panes(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 200, 100, nil)

	assert.True(t, m.Container().HasClass("leaflet-container"))

	mapPane := m.GetPane(PaneMap)
	require.NotNil(t, mapPane)
	assert.Equal(t, m.Container(), mapPane.ParentElement())

	var classNames []string
	for _, pane := range mapPane.Children() {
		classNames = append(classNames, pane.ClassName())
	}
	assert.Equal(t, []string{
		"leaflet-pane leaflet-tile-pane",
		"leaflet-pane leaflet-overlay-pane",
		"leaflet-pane leaflet-shadow-pane leaflet-zoom-hide",
		"leaflet-pane leaflet-marker-pane leaflet-zoom-hide",
		"leaflet-pane leaflet-tooltip-pane",
		"leaflet-pane leaflet-popup-pane",
	}, classNames)

	assert.Equal(t, "700", m.GetPane(PanePopup).Style.Get("z-index"))
	assert.False(t, m.IsLoaded())
}

func TestNewMap_errors(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.lib.NewMap(nil, env.lib.MapDefaults)
	require.Error(t, err)

	m := env.newTestMap(t, 200, 100, nil)
	_, err = env.lib.NewMap(m.Container(), env.lib.MapDefaults)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")
}

func TestMap_SetView_events(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 200, 100, nil)

	var fired []string
	for _, eventType := range []string{"viewprereset", "movestart", "zoomstart", "zoom", "move", "zoomend", "moveend", "viewreset", "load"} {
		m.On(eventType, func(event *Event) {
			assert.Equal(t, m, event.Target)
			fired = append(fired, event.Type)
		})
	}

	m.SetView(LatLng{0, 0}, 1)
	assert.Equal(t, []string{"viewprereset", "movestart", "zoomstart", "zoom", "move", "zoomend", "moveend", "viewreset", "load"}, fired)

	fired = nil
	m.SetView(LatLng{10, 10}, 1)
	assert.Equal(t, []string{"viewprereset", "movestart", "move", "moveend", "viewreset"}, fired)
}

func TestMap_SetView_zoomAnimation(t *testing.T) {
	env := newTestEnv(t, false)
	env.lib.MapDefaults.ZoomAnimation = true
	m := env.newTestMap(t, 200, 100, &View{LatLng{0, 0}, 1})

	m.SetView(LatLng{0, 0}, 3)
	assert.Equal(t, float64(1), m.GetZoom())
	assert.Equal(t, 1, env.loop.PendingAnimationFrames())

	env.runUntilIdle(t)
	assert.Equal(t, float64(3), m.GetZoom())
}

func TestMap_SetView_limitsZoom(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 200, 100, &View{LatLng{0, 0}, 25})
	assert.Equal(t, float64(18), m.GetZoom())

	m.SetView(LatLng{0, 0}, 2.4)
	assert.Equal(t, float64(2), m.GetZoom())
}

func TestMap_WhenReady(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 200, 100, nil)

	readyCount := 0
	m.WhenReady(func() {
		readyCount++
	})
	assert.Equal(t, 0, readyCount)

	m.SetView(LatLng{0, 0}, 1)
	m.SetView(LatLng{0, 0}, 2)
	assert.Equal(t, 1, readyCount)

	m.WhenReady(func() {
		readyCount++
	})
	assert.Equal(t, 2, readyCount)
}

func TestMap_coordinates(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 200, 100, &View{LatLng{0, 0}, 1})

	assert.Equal(t, Point{200, 100}, m.GetSize())
	assert.Equal(t, Point{156, 206}, m.GetPixelOrigin())
	assert.Equal(t, Point{100, 50}, m.LatLngToContainerPoint(LatLng{0, 0}))
	assert.Equal(t, Point{100, 50}, m.LatLngToLayerPoint(LatLng{0, 0}))
	assert.Equal(t, PixelBounds{Point{156, 206}, Point{356, 306}}, m.GetPixelBounds())

	ll := m.ContainerPointToLatLng(Point{100, 50})
	assert.InDelta(t, 0, ll.Lat, 1e-9)
	assert.InDelta(t, 0, ll.Lng, 1e-9)

	bounds := m.GetBounds()
	assert.InDelta(t, -70.3125, bounds.MinLon, 1e-9)
	assert.InDelta(t, 70.3125, bounds.MaxLon, 1e-9)
	assert.True(t, IsInBounds(bounds, LatLng{0, 0}))
}

func TestMap_PanBy(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 200, 100, &View{LatLng{0, 0}, 1})

	var fired []string
	for _, eventType := range []string{"movestart", "move", "moveend", "viewreset"} {
		m.On(eventType, func(event *Event) {
			fired = append(fired, event.Type)
		})
	}

	m.PanBy(Point{10, 0})
	assert.Equal(t, []string{"movestart", "move", "moveend"}, fired)

	assert.Equal(t, Point{-10, 0}, GetPosition(m.GetPane(PaneMap)))
	assert.Equal(t, "translate3d(-10px, 0px, 0px)", m.GetPane(PaneMap).Style.Get("transform"))
	assert.Equal(t, Point{90, 50}, m.LatLngToContainerPoint(LatLng{0, 0}))

	center := m.GetCenter()
	assert.InDelta(t, 7.03125, center.Lng, 1e-9)

	// a view reset puts the map pane back at the origin
	m.ResetView()
	assert.Equal(t, Point{}, GetPosition(m.GetPane(PaneMap)))
	assert.InDelta(t, 7.03125, m.GetCenter().Lng, 1e-9)
}

func TestMap_InvalidateSize(t *testing.T) {
	env := newTestEnv(t, false)

	size := Point{200, 100}
	options := env.lib.MapDefaults
	options.View = &View{LatLng{0, 0}, 1}
	options.Sizer = SizerFunc(func(m *Map) Point {
		return size
	})
	m, err := env.lib.NewMapInBody(options)
	require.NoError(t, err)

	var resizeEvents []*Event
	m.On("resize", func(event *Event) {
		resizeEvents = append(resizeEvents, event)
	})

	m.InvalidateSize()
	assert.Len(t, resizeEvents, 0)

	size = Point{400, 300}
	assert.Equal(t, Point{200, 100}, m.GetSize())

	m.InvalidateSize()
	require.Len(t, resizeEvents, 1)
	assert.Equal(t, Point{200, 100}, resizeEvents[0].OldSize)
	assert.Equal(t, Point{400, 300}, resizeEvents[0].NewSize)
	assert.Equal(t, Point{200, 150}, m.LatLngToContainerPoint(LatLng{0, 0}))
}

func TestMap_layoutSizer(t *testing.T) {
	env := newTestEnv(t, false)
	container, err := env.doc.CreateElement("div")
	require.NoError(t, err)
	container.Style.Set("width", "320px")
	container.SetProperty("clientHeight", float64(240))

	m, err := env.lib.NewMap(container, env.lib.MapDefaults)
	require.NoError(t, err)

	assert.Equal(t, Point{320, 240}, m.GetSize())
}

func TestMap_FitBounds(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 256, 256, nil)

	bounds := osm.Bounds{MinLat: -10, MaxLat: 10, MinLon: -90, MaxLon: 90}
	assert.Equal(t, float64(1), m.GetBoundsZoom(bounds))

	m.FitBounds(bounds)
	assert.Equal(t, float64(1), m.GetZoom())
	assert.InDelta(t, 0, m.GetCenter().Lat, 1e-9)
	assert.InDelta(t, 0, m.GetCenter().Lng, 1e-9)
}

type recordingLayer struct {
	added, removed int
	err            errorsx.Error
}

func (l *recordingLayer) OnAdd(m *Map) errorsx.Error {
	l.added++
	return l.err
}

func (l *recordingLayer) OnRemove(m *Map) {
	l.removed++
}

func TestMap_layers(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 200, 100, &View{LatLng{0, 0}, 1})

	var layerEvents []string
	m.On("layeradd", func(event *Event) {
		layerEvents = append(layerEvents, "add")
	})
	m.On("layerremove", func(event *Event) {
		layerEvents = append(layerEvents, "remove")
	})

	layer := &recordingLayer{}
	require.NoError(t, m.AddLayer(layer))
	require.NoError(t, m.AddLayer(layer))
	assert.Equal(t, 1, layer.added)
	assert.True(t, m.HasLayer(layer))

	failing := &recordingLayer{err: errorsx.Errorf("cannot add")}
	require.Error(t, m.AddLayer(failing))
	assert.False(t, m.HasLayer(failing))

	var visited []Layer
	m.EachLayer(func(l Layer) {
		visited = append(visited, l)
	})
	assert.Equal(t, []Layer{layer}, visited)

	m.RemoveLayer(layer)
	m.RemoveLayer(layer)
	assert.Equal(t, 1, layer.removed)
	assert.Equal(t, []string{"add", "remove"}, layerEvents)
}

func TestMap_Remove(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 200, 100, &View{LatLng{0, 0}, 1})

	layer := &recordingLayer{}
	require.NoError(t, m.AddLayer(layer))

	unloadCount := 0
	m.On("unload", func(event *Event) {
		unloadCount++
	})

	container := m.Container()
	m.Remove()
	m.Remove()

	assert.Equal(t, 1, unloadCount)
	assert.Equal(t, 1, layer.removed)
	assert.True(t, m.IsRemoved())
	assert.False(t, m.IsLoaded())
	assert.Empty(t, container.Children())
	assert.Equal(t, 0, container.ListenerCount("click"))

	require.Error(t, m.AddLayer(&recordingLayer{}))

	// the container can hold a new map
	_, err := env.lib.NewMap(container, env.lib.MapDefaults)
	require.NoError(t, err)
}

func TestMap_mouseEvents(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 200, 100, &View{LatLng{0, 0}, 1})
	m.Container().SetProperty("offsetLeft", float64(10))

	var clicks []*Event
	m.On("click", func(event *Event) {
		clicks = append(clicks, event)
	})

	event := dom.NewEvent("click", true)
	event.ClientX = 110
	event.ClientY = 50
	m.Container().DispatchEvent(event)

	require.Len(t, clicks, 1)
	assert.Equal(t, Point{100, 50}, clicks[0].ContainerPoint)
	assert.InDelta(t, 0, clicks[0].LatLng.Lng, 1e-9)
	assert.Equal(t, event, clicks[0].OriginalEvent)
}
