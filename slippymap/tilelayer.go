package slippymap

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/jamesrr39/headlessmap/envshim"
	"github.com/paulmach/osm"
)

// TileLayerOptions configures a tile layer. Start from DefaultTileLayerOptions.
type TileLayerOptions struct {
	MinZoom float64
	MaxZoom float64
	// ZoomOffset is added to the zoom level in tile URLs
	ZoomOffset int
	TileSize   int
	Subdomains []string
	// ErrorTileURL replaces the image of a tile that failed to load
	ErrorTileURL string
	// NoWrap stops tiles repeating around the antimeridian
	NoWrap bool
	// TMS inverts the y axis in tile URLs
	TMS     bool
	Opacity float64
	// ZIndex orders tile layers within the tile pane
	ZIndex int
	// Bounds restricts loading to tiles overlapping it
	Bounds    *osm.Bounds
	ClassName string
}

func DefaultTileLayerOptions() TileLayerOptions {
	return TileLayerOptions{
		MinZoom:    0,
		MaxZoom:    18,
		TileSize:   TileSize,
		Subdomains: []string{"a", "b", "c"},
		Opacity:    1,
		ZIndex:     1,
	}
}

// Tile is a tile image of a tile layer
type Tile struct {
	Coords TileCoords
	El     *dom.Element
	// Loaded is set once the tile image loaded or failed
	Loaded bool
	Err    error

	current bool
	// pending is a failure waiting to be reported on the next loop pass
	pending *envshim.Immediate
}

const tileZIndexProperty = "slippymap.zIndex"

// TileLayer shows a grid of tile images from a URL template, e.g. "https://{s}.tile.example.org/{z}/{x}/{y}{r}.png"
type TileLayer struct {
	Evented
	listeners mapListeners

	url     string
	options TileLayerOptions

	m         *Map
	container *dom.Element
	level     *dom.Element
	tileZoom  int
	hasLevel  bool

	tiles   map[string]*Tile
	loading bool
}

func NewTileLayer(urlTemplate string, options TileLayerOptions) *TileLayer {
	if options.TileSize <= 0 {
		options.TileSize = TileSize
	}

	return &TileLayer{
		url:     urlTemplate,
		options: options,
		tiles:   make(map[string]*Tile),
	}
}

func (l *TileLayer) Options() TileLayerOptions {
	return l.options
}

func (l *TileLayer) Container() *dom.Element {
	return l.container
}

func (l *TileLayer) OnAdd(m *Map) errorsx.Error {
	container, err := createElement(m.lib.doc, "div", "leaflet-layer "+l.options.ClassName, nil)
	if err != nil {
		return errorsx.Wrap(err)
	}
	container.SetProperty(tileZIndexProperty, l.options.ZIndex)

	err = insertByZIndex(m.GetPane(PaneTile), container, l.options.ZIndex)
	if err != nil {
		return errorsx.Wrap(err)
	}

	l.m = m
	l.container = container
	l.hasLevel = false
	l.tiles = make(map[string]*Tile)
	l.updateOpacity()

	l.listeners.on(m, "viewreset", func(event *Event) {
		l.update()
	})
	l.listeners.on(m, "moveend", func(event *Event) {
		l.update()
	})

	l.update()

	return nil
}

// insertByZIndex keeps siblings ordered by their zIndex property, later insertions last among equals
func insertByZIndex(parent, el *dom.Element, zIndex int) errorsx.Error {
	for _, sibling := range parent.Children() {
		value, ok := sibling.Property(tileZIndexProperty)
		if !ok {
			continue
		}
		siblingZIndex, ok := value.(int)
		if ok && siblingZIndex > zIndex {
			_, err := parent.InsertBefore(el, sibling)
			return errorsx.Wrap(err)
		}
	}

	_, err := parent.AppendChild(el)
	return errorsx.Wrap(err)
}

func (l *TileLayer) OnRemove(m *Map) {
	l.listeners.offAll(m)
	l.removeAllTiles()
	l.container.Remove()

	l.m = nil
	l.container = nil
	l.level = nil
	l.hasLevel = false
	l.loading = false
}

func (l *TileLayer) SetOpacity(opacity float64) {
	l.options.Opacity = opacity
	l.updateOpacity()
}

func (l *TileLayer) updateOpacity() {
	if l.container == nil {
		return
	}

	if l.options.Opacity >= 1 {
		l.container.Style.Remove("opacity")
		return
	}

	l.container.Style.Set("opacity", formatFloat(l.options.Opacity))
}

// SetURL changes the URL template and reloads every tile
func (l *TileLayer) SetURL(urlTemplate string) {
	l.url = urlTemplate
	l.Redraw()
}

// Redraw removes every tile and loads them again
func (l *TileLayer) Redraw() {
	if l.m == nil {
		return
	}

	l.removeAllTiles()
	l.update()
}

// IsLoading is true between the "loading" and "load" events
func (l *TileLayer) IsLoading() bool {
	return l.loading
}

// PendingTiles is the number of tiles still loading
func (l *TileLayer) PendingTiles() int {
	count := 0
	for _, tile := range l.tiles {
		if !tile.Loaded {
			count++
		}
	}

	return count
}

// Tiles returns the current tiles, sorted by key
func (l *TileLayer) Tiles() []*Tile {
	var tiles []*Tile
	for _, tile := range l.tiles {
		tiles = append(tiles, tile)
	}

	sort.Slice(tiles, func(a, b int) bool {
		return tiles[a].Coords.Key() < tiles[b].Coords.Key()
	})

	return tiles
}

var tileURLTemplateRegexp = regexp.MustCompile(`\{ *([\w-]+) *\}`)

// GetTileURL fills in the URL template for a tile
func (l *TileLayer) GetTileURL(coords TileCoords) (string, errorsx.Error) {
	invertedY := int(math.Exp2(float64(coords.Z))) - 1 - coords.Y

	y := coords.Y
	if l.options.TMS {
		y = invertedY
	}

	data := map[string]string{
		"r":  "",
		"s":  l.subdomain(coords),
		"x":  strconv.Itoa(coords.X),
		"y":  strconv.Itoa(y),
		"-y": strconv.Itoa(invertedY),
		"z":  strconv.Itoa(coords.Z + l.options.ZoomOffset),
	}

	var err errorsx.Error
	url := tileURLTemplateRegexp.ReplaceAllStringFunc(l.url, func(match string) string {
		key := tileURLTemplateRegexp.FindStringSubmatch(match)[1]
		value, ok := data[key]
		if !ok {
			if err == nil {
				err = errorsx.Errorf("no value provided for variable %q in tile URL template %q", key, l.url)
			}
			return match
		}
		return value
	})
	if err != nil {
		return "", err
	}

	return url, nil
}

func (l *TileLayer) subdomain(coords TileCoords) string {
	if len(l.options.Subdomains) == 0 {
		return ""
	}

	index := coords.X + coords.Y
	if index < 0 {
		index = -index
	}

	return l.options.Subdomains[index%len(l.options.Subdomains)]
}

func (l *TileLayer) clampZoom(zoom float64) (int, bool) {
	tileZoom := math.Round(zoom)
	if tileZoom > l.options.MaxZoom || tileZoom < l.options.MinZoom {
		return 0, false
	}

	return int(tileZoom), true
}

// ensureLevel replaces the tile level, dropping every tile, when the tile zoom changes
func (l *TileLayer) ensureLevel() {
	tileZoom, ok := l.clampZoom(l.m.GetZoom())
	if ok && l.hasLevel && tileZoom == l.tileZoom {
		return
	}

	l.removeAllTiles()
	l.setLevel(tileZoom, ok)
}

func (l *TileLayer) setLevel(tileZoom int, ok bool) {
	if l.level != nil {
		l.level.Remove()
		l.level = nil
	}

	l.hasLevel = ok
	if !ok {
		return
	}

	level, err := createElement(l.m.lib.doc, "div", "leaflet-tile-container leaflet-zoom-animated", l.container)
	if err != nil {
		l.m.lib.logger.Error("creating tile level: %s", err.Error())
		l.hasLevel = false
		return
	}
	SetPosition(level, Point{})

	l.level = level
	l.tileZoom = tileZoom
}

// tileScale is the size of a tile on screen relative to its natural size, for fractional zooms
func (l *TileLayer) tileScale() float64 {
	return math.Exp2(l.m.GetZoom() - float64(l.tileZoom))
}

func (l *TileLayer) tilePosition(coords TileCoords) Point {
	size := float64(l.options.TileSize) * l.tileScale()
	return Point{float64(coords.X) * size, float64(coords.Y) * size}.Subtract(l.m.GetPixelOrigin())
}

func (l *TileLayer) isValidTile(coords TileCoords) bool {
	limit := int(math.Exp2(float64(coords.Z)))

	if coords.Y < 0 || coords.Y >= limit {
		return false
	}
	if l.options.NoWrap && (coords.X < 0 || coords.X >= limit) {
		return false
	}

	if l.options.Bounds != nil {
		wrapped := l.wrapCoords(coords)
		if !Overlaps(*l.options.Bounds, XYZToBounds(wrapped.X, wrapped.Y, wrapped.Z)) {
			return false
		}
	}

	return true
}

func (l *TileLayer) wrapCoords(coords TileCoords) TileCoords {
	if l.options.NoWrap {
		return coords
	}

	coords.X = wrapNum(coords.X, 0, int(math.Exp2(float64(coords.Z))))
	return coords
}

// update loads the tiles covering the view and drops the others
func (l *TileLayer) update() {
	if l.m == nil || !l.m.IsLoaded() {
		return
	}

	l.ensureLevel()
	if !l.hasLevel {
		l.checkLoaded()
		return
	}

	for _, tile := range l.tiles {
		SetPosition(tile.El, l.tilePosition(tile.Coords))
	}

	tileSize := float64(l.options.TileSize) * l.tileScale()
	pixelBounds := l.m.GetPixelBounds()
	tileMin := pixelBounds.Min.DivideBy(tileSize).Floor()
	tileMax := pixelBounds.Max.DivideBy(tileSize).Ceil().Subtract(Point{1, 1})
	center := pixelBounds.Center().DivideBy(tileSize).Subtract(Point{0.5, 0.5})

	for _, tile := range l.tiles {
		tile.current = false
	}

	var queue []TileCoords
	for y := int(tileMin.Y); y <= int(tileMax.Y); y++ {
		for x := int(tileMin.X); x <= int(tileMax.X); x++ {
			coords := TileCoords{x, y, l.tileZoom}
			if !l.isValidTile(coords) {
				continue
			}

			tile, ok := l.tiles[coords.Key()]
			if ok {
				tile.current = true
				continue
			}
			queue = append(queue, coords)
		}
	}

	for key, tile := range l.tiles {
		if !tile.current {
			l.removeTile(key)
		}
	}

	if len(queue) == 0 {
		l.checkLoaded()
		return
	}

	// load from the centre outwards
	sort.SliceStable(queue, func(a, b int) bool {
		pa := Point{float64(queue[a].X), float64(queue[a].Y)}
		pb := Point{float64(queue[b].X), float64(queue[b].Y)}
		return pa.DistanceTo(center) < pb.DistanceTo(center)
	})

	if !l.loading {
		l.loading = true
		l.Fire("loading", &Event{Target: l})
	}

	for _, coords := range queue {
		l.addTile(coords)
	}
}

func (l *TileLayer) addTile(coords TileCoords) {
	el, err := createElement(l.m.lib.doc, "img", "leaflet-tile", nil)
	if err != nil {
		l.m.lib.logger.Error("creating tile %s: %s", coords.Key(), err.Error())
		return
	}

	tileSize := float64(l.options.TileSize) * l.tileScale()
	el.SetAttribute("alt", "")
	el.SetAttribute("role", "presentation")
	el.Style.SetPx("width", tileSize)
	el.Style.SetPx("height", tileSize)
	if l.m.options.FadeAnimation {
		el.Style.Set("opacity", "0")
	}

	tile := &Tile{Coords: coords, El: el, current: true}
	l.tiles[coords.Key()] = tile

	el.AddEventListener("load", func(event *dom.Event) {
		l.tileReady(tile, nil)
	})
	el.AddEventListener("error", func(event *dom.Event) {
		l.tileOnError(tile, event)
	})

	SetPosition(el, l.tilePosition(coords))
	_, err = l.level.AppendChild(el)
	if err != nil {
		l.m.lib.logger.Error("appending tile %s: %s", coords.Key(), err.Error())
		return
	}

	l.Fire("tileloadstart", &Event{Target: l, Tile: el, Coords: coords})

	url, err := l.GetTileURL(l.wrapCoords(coords))
	if err != nil {
		// reported on the next pass, so that "load" waits for the rest of the batch
		tile.pending = l.m.lib.scheduler.Defer(func() {
			tile.pending = nil
			l.tileReady(tile, err)
		})
		return
	}

	el.SetSrc(url)
}

func (l *TileLayer) tileOnError(tile *Tile, event *dom.Event) {
	err, ok := event.Detail.(error)
	if !ok {
		err = errorsx.Errorf("tile image failed to load: %q", tile.El.Src())
	}

	errorURL := l.options.ErrorTileURL
	if errorURL != "" && tile.El.Src() != errorURL {
		defer tile.El.SetSrc(errorURL)
	}

	l.tileReady(tile, err)
}

func (l *TileLayer) tileReady(tile *Tile, err error) {
	if tile.Loaded || l.m == nil || l.tiles[tile.Coords.Key()] != tile {
		return
	}

	tile.Loaded = true
	tile.Err = err

	if err != nil {
		l.Fire("tileerror", &Event{Target: l, Tile: tile.El, Coords: tile.Coords, Err: err})
	} else {
		l.showTile(tile)
		l.Fire("tileload", &Event{Target: l, Tile: tile.El, Coords: tile.Coords})
	}

	l.checkLoaded()
}

// checkLoaded fires "load" when a loading cycle has no tiles left to load
func (l *TileLayer) checkLoaded() {
	if l.loading && l.PendingTiles() == 0 {
		l.loading = false
		l.Fire("load", &Event{Target: l})
	}
}

// showTile fades a loaded tile in over the next frame when fading is on
func (l *TileLayer) showTile(tile *Tile) {
	if !l.m.options.FadeAnimation {
		return
	}

	l.m.lib.scheduler.RequestAnimationFrame(func(time.Time) {
		tile.El.Style.Remove("opacity")
	})
}

func (l *TileLayer) removeTile(key string) {
	tile, ok := l.tiles[key]
	if !ok {
		return
	}

	delete(l.tiles, key)
	if tile.pending != nil {
		l.m.lib.scheduler.CancelDeferred(tile.pending)
		tile.pending = nil
	}
	tile.El.Remove()

	l.Fire("tileunload", &Event{Target: l, Tile: tile.El, Coords: tile.Coords})
}

func (l *TileLayer) removeAllTiles() {
	for key := range l.tiles {
		l.removeTile(key)
	}
}
