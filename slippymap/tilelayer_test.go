package slippymap

import (
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileLayer_GetTileURL(t *testing.T) {
	type testType struct {
		Name        string
		Template    string
		Options     func(options *TileLayerOptions)
		Coords      TileCoords
		ExpectedURL string
		ExpectError bool
	}

	tests := []testType{
		{
			Name:        "standard template",
			Template:    "https://{s}.tile.example.org/{z}/{x}/{y}{r}.png",
			Coords:      TileCoords{X: 1, Y: 2, Z: 3},
			ExpectedURL: "https://a.tile.example.org/3/1/2.png",
		}, {
			Name:        "subdomain rotates with x and y",
			Template:    "https://{s}.example.org/{z}/{x}/{y}.png",
			Coords:      TileCoords{X: 1, Y: 1, Z: 3},
			ExpectedURL: "https://c.example.org/3/1/1.png",
		}, {
			Name:        "spaces inside braces",
			Template:    "/tiles/{ z }/{ x }/{ y }.png",
			Coords:      TileCoords{X: 4, Y: 5, Z: 6},
			ExpectedURL: "/tiles/6/4/5.png",
		}, {
			Name:        "inverted y",
			Template:    "/tiles/{z}/{x}/{-y}.png",
			Coords:      TileCoords{X: 0, Y: 0, Z: 2},
			ExpectedURL: "/tiles/2/0/3.png",
		}, {
			Name:     "tms",
			Template: "/tiles/{z}/{x}/{y}.png",
			Options: func(options *TileLayerOptions) {
				options.TMS = true
			},
			Coords:      TileCoords{X: 0, Y: 1, Z: 2},
			ExpectedURL: "/tiles/2/0/2.png",
		}, {
			Name:     "zoom offset",
			Template: "/tiles/{z}/{x}/{y}.png",
			Options: func(options *TileLayerOptions) {
				options.ZoomOffset = -1
			},
			Coords:      TileCoords{X: 0, Y: 0, Z: 2},
			ExpectedURL: "/tiles/1/0/0.png",
		}, {
			Name:        "unknown variable",
			Template:    "/tiles/{z}/{x}/{y}.png?key={apikey}",
			Coords:      TileCoords{X: 0, Y: 0, Z: 2},
			ExpectError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			options := DefaultTileLayerOptions()
			if tc.Options != nil {
				tc.Options(&options)
			}

			url, err := NewTileLayer(tc.Template, options).GetTileURL(tc.Coords)
			if tc.ExpectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "apikey")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.ExpectedURL, url)
		})
	}
}

func TestTileLayer_loadsTilesCoveringTheView(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 200, 100, &View{LatLng{0, 0}, 1})

	layer := NewTileLayer("/tiles/{z}/{x}/{y}.png", DefaultTileLayerOptions())

	var fired []string
	for _, eventType := range []string{"loading", "tileloadstart", "tileload", "load"} {
		layer.On(eventType, func(event *Event) {
			fired = append(fired, event.Type)
		})
	}

	require.NoError(t, m.AddLayer(layer))
	assert.True(t, layer.IsLoading())
	assert.Equal(t, 4, layer.PendingTiles())
	assert.Equal(t, []string{"loading", "tileloadstart", "tileloadstart", "tileloadstart", "tileloadstart"}, fired)
	assert.ElementsMatch(t, []string{
		"/tiles/1/0/0.png",
		"/tiles/1/1/0.png",
		"/tiles/1/0/1.png",
		"/tiles/1/1/1.png",
	}, env.srcs)

	env.runUntilIdle(t)

	assert.False(t, layer.IsLoading())
	assert.Equal(t, 0, layer.PendingTiles())
	assert.Equal(t, "load", fired[len(fired)-1])

	tiles := layer.Tiles()
	require.Len(t, tiles, 4)
	assert.Equal(t, TileCoords{0, 0, 1}, tiles[0].Coords)
	assert.True(t, tiles[0].Loaded)
	assert.NoError(t, tiles[0].Err)

	// tile (0, 0) sits at its projected position minus the pixel origin (156, 206)
	assert.Equal(t, Point{-156, -206}, GetPosition(tiles[0].El))
	assert.Equal(t, "256px", tiles[0].El.Style.Get("width"))
	assert.True(t, tiles[0].El.HasClass("leaflet-tile"))

	level := tiles[0].El.ParentElement()
	require.NotNil(t, level)
	assert.True(t, level.HasClass("leaflet-tile-container"))
	assert.Equal(t, layer.Container(), level.ParentElement())
	assert.Equal(t, m.GetPane(PaneTile), layer.Container().ParentElement())
}

func TestTileLayer_zoomChangeReplacesTiles(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 256, 256, &View{LatLng{0, 0}, 0})

	layer := NewTileLayer("/tiles/{z}/{x}/{y}.png", DefaultTileLayerOptions())
	require.NoError(t, m.AddLayer(layer))
	env.runUntilIdle(t)
	require.Len(t, layer.Tiles(), 1)

	unloaded := 0
	layer.On("tileunload", func(event *Event) {
		unloaded++
	})

	m.SetView(LatLng{0, 0}, 1)
	env.runUntilIdle(t)

	assert.Equal(t, 1, unloaded)
	tiles := layer.Tiles()
	require.Len(t, tiles, 4)
	for _, tile := range tiles {
		assert.Equal(t, 1, tile.Coords.Z)
	}
}

func TestTileLayer_outOfZoomRange(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 256, 256, &View{LatLng{0, 0}, 5})

	options := DefaultTileLayerOptions()
	options.MaxZoom = 4
	layer := NewTileLayer("/tiles/{z}/{x}/{y}.png", options)
	require.NoError(t, m.AddLayer(layer))

	assert.Empty(t, layer.Tiles())
	assert.False(t, layer.IsLoading())
	assert.Empty(t, env.srcs)
}

func TestTileLayer_bounds(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 512, 512, &View{LatLng{0, 0}, 1})

	options := DefaultTileLayerOptions()
	options.Bounds = &osm.Bounds{MinLat: 10, MaxLat: 20, MinLon: 10, MaxLon: 20}
	layer := NewTileLayer("/tiles/{z}/{x}/{y}.png", options)
	require.NoError(t, m.AddLayer(layer))

	tiles := layer.Tiles()
	require.Len(t, tiles, 1)
	assert.Equal(t, TileCoords{1, 0, 1}, tiles[0].Coords)
}

func TestTileLayer_wrapsAroundTheAntimeridian(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 512, 256, &View{LatLng{0, 180}, 0})

	layer := NewTileLayer("/tiles/{z}/{x}/{y}.png", DefaultTileLayerOptions())
	require.NoError(t, m.AddLayer(layer))

	assert.Len(t, layer.Tiles(), 2)
	assert.Equal(t, []string{"/tiles/0/0/0.png", "/tiles/0/0/0.png"}, env.srcs)

	noWrap := DefaultTileLayerOptions()
	noWrap.NoWrap = true
	noWrapLayer := NewTileLayer("/nowrap/{z}/{x}/{y}.png", noWrap)
	require.NoError(t, m.AddLayer(noWrapLayer))
	assert.Len(t, noWrapLayer.Tiles(), 1)
}

func TestTileLayer_errorTile(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 256, 256, &View{LatLng{0, 0}, 0})

	options := DefaultTileLayerOptions()
	options.ErrorTileURL = "/error.png"
	layer := NewTileLayer("/missing/{z}/{x}/{y}.png", options)

	var tileErrors []*Event
	layer.On("tileerror", func(event *Event) {
		tileErrors = append(tileErrors, event)
	})
	loadCount := 0
	layer.On("load", func(event *Event) {
		loadCount++
	})

	require.NoError(t, m.AddLayer(layer))
	env.runUntilIdle(t)

	require.Len(t, tileErrors, 1)
	assert.Contains(t, tileErrors[0].Err.Error(), "not found: /missing/0/0/0.png")
	assert.Equal(t, TileCoords{0, 0, 0}, tileErrors[0].Coords)
	assert.Equal(t, 1, loadCount)

	tiles := layer.Tiles()
	require.Len(t, tiles, 1)
	assert.Equal(t, "/error.png", tiles[0].El.Src())
	assert.Error(t, tiles[0].Err)
	assert.Equal(t, []string{"/missing/0/0/0.png", "/error.png"}, env.srcs)
}

func TestTileLayer_badTemplateReportsAfterBatch(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 256, 256, &View{LatLng{0, 0}, 1})

	layer := NewTileLayer("/tiles/{z}/{x}/{y}/{unknown}.png", DefaultTileLayerOptions())

	var events []string
	layer.On("tileerror", func(event *Event) {
		events = append(events, "tileerror")
	})
	layer.On("load", func(event *Event) {
		events = append(events, "load")
	})

	require.NoError(t, m.AddLayer(layer))
	assert.Empty(t, events)

	env.runUntilIdle(t)

	tileCount := len(layer.Tiles())
	require.Greater(t, tileCount, 1)
	require.Len(t, events, tileCount+1)
	for _, event := range events[:tileCount] {
		assert.Equal(t, "tileerror", event)
	}
	assert.Equal(t, "load", events[tileCount])
	assert.Empty(t, env.srcs)
}

func TestTileLayer_removedBeforeFailureIsReported(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 256, 256, &View{LatLng{0, 0}, 0})

	layer := NewTileLayer("/tiles/{unknown}.png", DefaultTileLayerOptions())

	tileErrors := 0
	layer.On("tileerror", func(event *Event) {
		tileErrors++
	})

	require.NoError(t, m.AddLayer(layer))
	m.RemoveLayer(layer)
	env.runUntilIdle(t)

	assert.Equal(t, 0, tileErrors)
}

func TestTileLayer_zIndexAndOpacity(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 256, 256, &View{LatLng{0, 0}, 0})

	topOptions := DefaultTileLayerOptions()
	topOptions.ZIndex = 5
	top := NewTileLayer("/top/{z}/{x}/{y}.png", topOptions)
	bottom := NewTileLayer("/bottom/{z}/{x}/{y}.png", DefaultTileLayerOptions())

	require.NoError(t, m.AddLayer(top))
	require.NoError(t, m.AddLayer(bottom))

	children := m.GetPane(PaneTile).Children()
	require.Len(t, children, 2)
	assert.Same(t, bottom.Container(), children[0])
	assert.Same(t, top.Container(), children[1])

	bottom.SetOpacity(0.5)
	assert.Equal(t, "0.5", bottom.Container().Style.Get("opacity"))
	bottom.SetOpacity(1)
	assert.Equal(t, "", bottom.Container().Style.Get("opacity"))
}

func TestTileLayer_removeAndRedraw(t *testing.T) {
	env := newTestEnv(t, false)
	m := env.newTestMap(t, 256, 256, &View{LatLng{0, 0}, 0})

	layer := NewTileLayer("/tiles/{z}/{x}/{y}.png", DefaultTileLayerOptions())
	require.NoError(t, m.AddLayer(layer))
	env.runUntilIdle(t)

	layer.SetURL("/other/{z}/{x}/{y}.png")
	assert.True(t, layer.IsLoading())
	env.runUntilIdle(t)
	assert.Equal(t, []string{"/tiles/0/0/0.png", "/other/0/0/0.png"}, env.srcs)

	m.RemoveLayer(layer)
	assert.Nil(t, layer.Container())
	assert.Empty(t, layer.Tiles())
	assert.Empty(t, m.GetPane(PaneTile).Children())

	// moving the map no longer updates the removed layer
	m.SetView(LatLng{10, 10}, 3)
	assert.Empty(t, layer.Tiles())
}
