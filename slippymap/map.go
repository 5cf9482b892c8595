package slippymap

import (
	"errors"
	"math"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/paulmach/osm"
)

// Pane names, in stacking order
const (
	PaneMap     = "mapPane"
	PaneTile    = "tilePane"
	PaneOverlay = "overlayPane"
	PaneShadow  = "shadowPane"
	PaneMarker  = "markerPane"
	PaneTooltip = "tooltipPane"
	PanePopup   = "popupPane"
)

type paneDefinition struct {
	Name   string
	ZIndex int
}

// panes are appended in this order, so document order is stacking order
var paneDefinitions = []paneDefinition{
	{PaneTile, 200},
	{PaneOverlay, 400},
	{PaneShadow, 500},
	{PaneMarker, 600},
	{PaneTooltip, 650},
	{PanePopup, 700},
}

// ErrNoVectorRenderer is returned when a path is added to a map that has no renderer for it
var ErrNoVectorRenderer = errors.New("no vector renderer: enable PreferCanvas or give the path a Renderer")

// Sizer reports the size of a map's container
type Sizer interface {
	Size(m *Map) Point
}

// SizerFunc adapts a function to a Sizer
type SizerFunc func(m *Map) Point

func (f SizerFunc) Size(m *Map) Point {
	return f(m)
}

// layoutSizer reads the container's client size, falling back to its inline style
type layoutSizer struct{}

func (layoutSizer) Size(m *Map) Point {
	container := m.container
	width, height := container.ClientWidth(), container.ClientHeight()
	if width == 0 {
		width, _ = dom.ParsePx(container.Style.Get("width"))
	}
	if height == 0 {
		height, _ = dom.ParsePx(container.Style.Get("height"))
	}

	return Point{width, height}
}

type Map struct {
	Evented

	lib       *Library
	container *dom.Element
	options   MapOptions
	sizer     Sizer

	mapPane *dom.Element
	panes   map[string]*dom.Element

	layers []Layer

	loaded      bool
	zoom        float64
	pixelOrigin Point
	lastCenter  LatLng

	size        Point
	sizeChanged bool

	defaultRenderer *CanvasRenderer

	domListeners map[string]dom.ListenerID
	removed      bool
}

// NewMap creates a map in container. Start from lib.MapDefaults to build the options.
func (lib *Library) NewMap(container *dom.Element, options MapOptions) (*Map, errorsx.Error) {
	if container == nil {
		return nil, errorsx.Errorf("map container not found")
	}

	_, ok := container.Property(mapProperty)
	if ok {
		return nil, errorsx.Errorf("map container is already initialized")
	}

	sizer := options.Sizer
	if sizer == nil {
		sizer = layoutSizer{}
	}

	m := &Map{
		lib:          lib,
		container:    container,
		options:      options,
		sizer:        sizer,
		panes:        make(map[string]*dom.Element),
		sizeChanged:  true,
		domListeners: make(map[string]dom.ListenerID),
	}

	err := m.initLayout()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	err = m.initEvents()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	container.SetProperty(mapProperty, m)

	if options.View != nil {
		m.SetView(options.View.Center, options.View.Zoom)
	}

	return m, nil
}

const mapProperty = "slippymap.map"

func (m *Map) initLayout() errorsx.Error {
	m.container.AddClass("leaflet-container")
	if m.options.FadeAnimation {
		m.container.AddClass("leaflet-fade-anim")
	}

	mapPane, err := createElement(m.lib.doc, "div", "leaflet-pane leaflet-map-pane", m.container)
	if err != nil {
		return errorsx.Wrap(err)
	}
	SetPosition(mapPane, Point{})
	m.mapPane = mapPane
	m.panes[PaneMap] = mapPane

	for _, def := range paneDefinitions {
		_, err := m.CreatePane(def.Name, def.ZIndex)
		if err != nil {
			return errorsx.Wrap(err)
		}
	}

	if !m.options.MarkerZoomAnimation {
		m.panes[PaneMarker].AddClass("leaflet-zoom-hide")
		m.panes[PaneShadow].AddClass("leaflet-zoom-hide")
	}

	return nil
}

// CreatePane creates a pane in the map pane
func (m *Map) CreatePane(name string, zIndex int) (*dom.Element, errorsx.Error) {
	className := "leaflet-pane leaflet-" + paneClassName(name)

	pane, err := createElement(m.lib.doc, "div", className, m.mapPane)
	if err != nil {
		return nil, errorsx.Wrap(err, "pane", name)
	}
	pane.Style.Set("z-index", formatFloat(float64(zIndex)))
	m.panes[name] = pane

	return pane, nil
}

// paneClassName turns "tilePane" into "tile-pane"
func paneClassName(name string) string {
	var className []rune
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			className = append(className, '-', r+('a'-'A'))
			continue
		}
		className = append(className, r)
	}

	return string(className)
}

func (m *Map) initEvents() errorsx.Error {
	for _, eventType := range []string{"click", "mousemove"} {
		eventType := eventType
		id, err := m.lib.DomEvent.On(m.container, eventType, func(e *dom.Event) {
			m.fireMouseEvent(eventType, e)
		})
		if err != nil {
			return errorsx.Wrap(err)
		}
		m.domListeners[eventType] = id
	}

	return nil
}

func (m *Map) fireMouseEvent(eventType string, e *dom.Event) {
	if !m.loaded {
		return
	}

	containerPoint := m.MouseEventToContainerPoint(e)
	layerPoint := m.ContainerPointToLayerPoint(containerPoint)

	m.Fire(eventType, &Event{
		Target:         m,
		ContainerPoint: containerPoint,
		LayerPoint:     layerPoint,
		LatLng:         m.LayerPointToLatLng(layerPoint),
		OriginalEvent:  e,
	})
}

func (m *Map) Library() *Library {
	return m.lib
}

func (m *Map) Container() *dom.Element {
	return m.container
}

func (m *Map) Options() MapOptions {
	return m.options
}

func (m *Map) GetPane(name string) *dom.Element {
	return m.panes[name]
}

func (m *Map) IsLoaded() bool {
	return m.loaded
}

func (m *Map) IsRemoved() bool {
	return m.removed
}

func (m *Map) limitZoom(zoom float64) float64 {
	if m.options.ZoomSnap > 0 {
		zoom = math.Round(zoom/m.options.ZoomSnap) * m.options.ZoomSnap
	}

	return math.Max(m.options.MinZoom, math.Min(m.options.MaxZoom, zoom))
}

// SetView sets the centre and zoom. With ZoomAnimation, a zoom change completes on the next animation frame.
func (m *Map) SetView(center LatLng, zoom float64) {
	zoom = m.limitZoom(zoom)

	if m.options.ZoomAnimation && m.loaded && zoom != m.zoom {
		m.Fire("zoomanim", &Event{Target: m})
		m.lib.scheduler.RequestAnimationFrame(func(time.Time) {
			if m.removed {
				return
			}
			m.resetView(center, zoom)
		})
		return
	}

	m.resetView(center, zoom)
}

func (m *Map) resetView(center LatLng, zoom float64) {
	SetPosition(m.mapPane, Point{})

	loading := !m.loaded
	m.loaded = true

	m.Fire("viewprereset", &Event{Target: m})

	zoomChanged := loading || m.zoom != zoom

	m.Fire("movestart", &Event{Target: m})
	if zoomChanged {
		m.Fire("zoomstart", &Event{Target: m})
	}

	m.zoom = zoom
	m.lastCenter = center
	m.pixelOrigin = m.getNewPixelOrigin(center, zoom)

	if zoomChanged {
		m.Fire("zoom", &Event{Target: m})
	}
	m.Fire("move", &Event{Target: m})

	if zoomChanged {
		m.Fire("zoomend", &Event{Target: m})
	}
	m.Fire("moveend", &Event{Target: m})

	m.Fire("viewreset", &Event{Target: m})

	if loading {
		m.Fire("load", &Event{Target: m})
	}
}

// ResetView recomputes the pixel origin at the current centre and zoom
func (m *Map) ResetView() {
	if !m.loaded {
		return
	}

	m.resetView(m.GetCenter(), m.zoom)
}

func (m *Map) SetZoom(zoom float64) {
	if !m.loaded {
		m.zoom = zoom
		return
	}

	m.SetView(m.GetCenter(), zoom)
}

// PanBy moves the view by a pixel offset
func (m *Map) PanBy(offset Point) {
	offset = offset.Round()
	if offset.IsZero() || !m.loaded {
		return
	}

	m.Fire("movestart", &Event{Target: m})
	SetPosition(m.mapPane, m.getMapPanePos().Subtract(offset))
	m.Fire("move", &Event{Target: m})
	m.Fire("moveend", &Event{Target: m})
}

// FitBounds sets the largest view containing bounds
func (m *Map) FitBounds(bounds osm.Bounds) {
	zoom := m.GetBoundsZoom(bounds)

	nw := Project(LatLng{bounds.MaxLat, bounds.MinLon}, zoom)
	se := Project(LatLng{bounds.MinLat, bounds.MaxLon}, zoom)

	m.SetView(Unproject(nw.Add(se).DivideBy(2), zoom), zoom)
}

// GetBoundsZoom is the largest zoom at which bounds fits in the map
func (m *Map) GetBoundsZoom(bounds osm.Bounds) float64 {
	size := m.GetSize()

	nw := Project(LatLng{bounds.MaxLat, bounds.MinLon}, 0)
	se := Project(LatLng{bounds.MinLat, bounds.MaxLon}, 0)
	boundsSize := se.Subtract(nw)

	if boundsSize.X <= 0 || boundsSize.Y <= 0 || size.X <= 0 || size.Y <= 0 {
		return m.options.MaxZoom
	}

	scale := math.Min(size.X/boundsSize.X, size.Y/boundsSize.Y)
	zoom := math.Log2(scale)
	if m.options.ZoomSnap > 0 {
		zoom = math.Floor(zoom/m.options.ZoomSnap) * m.options.ZoomSnap
	}

	return math.Max(m.options.MinZoom, math.Min(m.options.MaxZoom, zoom))
}

func (m *Map) GetZoom() float64 {
	return m.zoom
}

func (m *Map) GetCenter() LatLng {
	if m.loaded && m.getMapPanePos().IsZero() {
		return m.lastCenter
	}

	return m.LayerPointToLatLng(m.ContainerPointToLayerPoint(m.GetSize().DivideBy(2)))
}

// GetSize is the container size, read through the map's Sizer when it has been invalidated
func (m *Map) GetSize() Point {
	if m.sizeChanged {
		m.size = m.sizer.Size(m)
		m.sizeChanged = false
	}

	return m.size
}

// InvalidateSize re-reads the container size. If it changed, the view is reset around the same centre.
func (m *Map) InvalidateSize() {
	if !m.loaded {
		m.sizeChanged = true
		return
	}

	oldSize := m.GetSize()
	center := m.GetCenter()

	m.sizeChanged = true
	newSize := m.GetSize()
	if oldSize == newSize {
		return
	}

	m.resetView(center, m.zoom)
	m.Fire("resize", &Event{Target: m, OldSize: oldSize, NewSize: newSize})
}

func (m *Map) getMapPanePos() Point {
	return GetPosition(m.mapPane)
}

func (m *Map) getNewPixelOrigin(center LatLng, zoom float64) Point {
	halfSize := m.GetSize().DivideBy(2)
	return Project(center, zoom).Subtract(halfSize).Add(m.getMapPanePos()).Round()
}

// GetPixelOrigin is the projected point of the layer origin
func (m *Map) GetPixelOrigin() Point {
	return m.pixelOrigin
}

// GetPixelBounds is the projected bounds of the current view
func (m *Map) GetPixelBounds() PixelBounds {
	topLeft := m.pixelOrigin.Subtract(m.getMapPanePos())
	return PixelBounds{topLeft, topLeft.Add(m.GetSize())}
}

func (m *Map) GetBounds() osm.Bounds {
	pixelBounds := m.GetPixelBounds()
	sw := m.Unproject(Point{pixelBounds.Min.X, pixelBounds.Max.Y})
	ne := m.Unproject(Point{pixelBounds.Max.X, pixelBounds.Min.Y})

	return osm.Bounds{
		MinLat: sw.Lat,
		MaxLat: ne.Lat,
		MinLon: sw.Lng,
		MaxLon: ne.Lng,
	}
}

// Project projects at the current zoom
func (m *Map) Project(ll LatLng) Point {
	return Project(ll, m.zoom)
}

func (m *Map) Unproject(p Point) LatLng {
	return Unproject(p, m.zoom)
}

func (m *Map) LatLngToLayerPoint(ll LatLng) Point {
	return m.Project(ll).Round().Subtract(m.pixelOrigin)
}

func (m *Map) LayerPointToLatLng(p Point) LatLng {
	return m.Unproject(p.Add(m.pixelOrigin))
}

func (m *Map) ContainerPointToLayerPoint(p Point) Point {
	return p.Subtract(m.getMapPanePos())
}

func (m *Map) LayerPointToContainerPoint(p Point) Point {
	return p.Add(m.getMapPanePos())
}

func (m *Map) LatLngToContainerPoint(ll LatLng) Point {
	return m.LayerPointToContainerPoint(m.LatLngToLayerPoint(ll))
}

func (m *Map) ContainerPointToLatLng(p Point) LatLng {
	return m.LayerPointToLatLng(m.ContainerPointToLayerPoint(p))
}

// MouseEventToContainerPoint positions a mouse event relative to the container
func (m *Map) MouseEventToContainerPoint(e *dom.Event) Point {
	return m.lib.DomEvent.GetMousePosition(e, m.container)
}

// WhenReady runs fn once the map has a view; straight away if it already has one
func (m *Map) WhenReady(fn func()) {
	if m.loaded {
		fn()
		return
	}

	m.Once("load", func(event *Event) {
		fn()
	})
}

func (m *Map) AddLayer(layer Layer) errorsx.Error {
	if m.HasLayer(layer) {
		return nil
	}
	if m.removed {
		return errorsx.Errorf("cannot add a layer to a removed map")
	}

	m.layers = append(m.layers, layer)

	err := layer.OnAdd(m)
	if err != nil {
		m.forgetLayer(layer)
		return errorsx.Wrap(err)
	}

	m.Fire("layeradd", &Event{Target: m, Layer: layer})

	return nil
}

func (m *Map) RemoveLayer(layer Layer) {
	if !m.HasLayer(layer) {
		return
	}

	layer.OnRemove(m)
	m.forgetLayer(layer)

	m.Fire("layerremove", &Event{Target: m, Layer: layer})
}

func (m *Map) forgetLayer(layer Layer) {
	for i, l := range m.layers {
		if l == layer {
			m.layers = append(m.layers[:i:i], m.layers[i+1:]...)
			return
		}
	}
}

func (m *Map) HasLayer(layer Layer) bool {
	for _, l := range m.layers {
		if l == layer {
			return true
		}
	}

	return false
}

// EachLayer calls fn for every layer, in the order they were added
func (m *Map) EachLayer(fn func(layer Layer)) {
	for _, layer := range append([]Layer(nil), m.layers...) {
		fn(layer)
	}
}

// getRenderer picks the renderer for a path
func (m *Map) getRenderer(options PathOptions) (*CanvasRenderer, errorsx.Error) {
	if options.Renderer != nil {
		return options.Renderer, nil
	}
	if m.options.Renderer != nil {
		return m.options.Renderer, nil
	}
	if !m.options.PreferCanvas {
		return nil, errorsx.Wrap(ErrNoVectorRenderer)
	}

	if m.defaultRenderer == nil {
		m.defaultRenderer = NewCanvasRenderer(DefaultRendererOptions())
	}

	return m.defaultRenderer, nil
}

// ensureRendererAdded adds a renderer as a layer when a path first needs it
func (m *Map) ensureRendererAdded(renderer *CanvasRenderer) errorsx.Error {
	if m.HasLayer(renderer) {
		return nil
	}

	return m.AddLayer(renderer)
}

// Renderers lists the canvas renderers on the map
func (m *Map) Renderers() []*CanvasRenderer {
	var renderers []*CanvasRenderer
	for _, layer := range m.layers {
		renderer, ok := layer.(*CanvasRenderer)
		if ok {
			renderers = append(renderers, renderer)
		}
	}

	return renderers
}

// FlushRenderers runs pending redraws straight away
func (m *Map) FlushRenderers() {
	for _, renderer := range m.Renderers() {
		renderer.Flush()
	}
}

// OpenPopup opens a popup, closing other open popups that close automatically
func (m *Map) OpenPopup(popup *Popup) errorsx.Error {
	if popup.options.AutoClose {
		for _, open := range m.OpenPopups() {
			if open != popup && open.options.AutoClose {
				m.RemoveLayer(open)
			}
		}
	}

	return m.AddLayer(popup)
}

// ClosePopup closes a popup. nil closes every open popup.
func (m *Map) ClosePopup(popup *Popup) {
	if popup != nil {
		m.RemoveLayer(popup)
		return
	}

	for _, open := range m.OpenPopups() {
		m.RemoveLayer(open)
	}
}

// OpenPopups lists the open popups, in the order they were opened
func (m *Map) OpenPopups() []*Popup {
	var popups []*Popup
	for _, layer := range m.layers {
		popup, ok := layer.(*Popup)
		if ok {
			popups = append(popups, popup)
		}
	}

	return popups
}

// Remove destroys the map: layers are removed, then the panes
func (m *Map) Remove() {
	if m.removed {
		return
	}

	if m.loaded {
		m.Fire("unload", &Event{Target: m})
	}

	// renderers last, as removing their paths requests redraws
	var renderers []Layer
	for _, layer := range append([]Layer(nil), m.layers...) {
		_, isRenderer := layer.(*CanvasRenderer)
		if isRenderer {
			renderers = append(renderers, layer)
			continue
		}
		m.RemoveLayer(layer)
	}
	for _, renderer := range renderers {
		m.RemoveLayer(renderer)
	}

	for eventType, id := range m.domListeners {
		err := m.lib.DomEvent.Off(m.container, eventType, id)
		if err != nil {
			m.lib.logger.Warn("removing %q listener from map container: %s", eventType, err.Error())
		}
	}

	m.mapPane.Remove()
	m.container.DeleteProperty(mapProperty)
	m.container.RemoveClass("leaflet-container leaflet-fade-anim")

	m.removed = true
	m.loaded = false
	m.OffAll()
}
