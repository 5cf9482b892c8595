package slippymap

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"github.com/paulmach/osm"
)

// Polyline is a line through a list of points
type Polyline struct {
	pathBase

	latlngs []LatLng
	closed  bool

	points []Point
}

func NewPolyline(latlngs []LatLng, options PathOptions) *Polyline {
	pl := &Polyline{latlngs: append([]LatLng(nil), latlngs...)}
	pl.options = options

	return pl
}

func (pl *Polyline) OnAdd(m *Map) errorsx.Error {
	return pl.onAdd(m, pl)
}

func (pl *Polyline) OnRemove(m *Map) {
	pl.onRemove(pl)
}

func (pl *Polyline) SetStyle(options PathOptions) {
	pl.setStyle(options, pl)
}

func (pl *Polyline) Redraw() {
	pl.redraw(pl)
}

func (pl *Polyline) GetLatLngs() []LatLng {
	return append([]LatLng(nil), pl.latlngs...)
}

func (pl *Polyline) SetLatLngs(latlngs []LatLng) {
	pl.latlngs = append([]LatLng(nil), latlngs...)
	pl.redraw(pl)
}

func (pl *Polyline) AddLatLng(latlng LatLng) {
	pl.latlngs = append(pl.latlngs, latlng)
	pl.redraw(pl)
}

func (pl *Polyline) GetBounds() osm.Bounds {
	return NewLatLngBounds(pl.latlngs...)
}

func (pl *Polyline) project(m *Map) {
	pl.points = pl.points[:0]
	for _, ll := range pl.latlngs {
		pl.points = append(pl.points, m.LatLngToLayerPoint(ll))
	}
}

func (pl *Polyline) draw(ctx *rasterengine.Context2D) errorsx.Error {
	if len(pl.points) < 2 {
		return nil
	}

	ctx.BeginPath()
	ctx.MoveTo(pl.points[0].X, pl.points[0].Y)
	for _, p := range pl.points[1:] {
		ctx.LineTo(p.X, p.Y)
	}
	if pl.closed {
		ctx.ClosePath()
	}

	return pl.fillStroke(ctx)
}

func (pl *Polyline) containsPoint(p Point, tolerance float64) bool {
	if pl.closed && pl.options.Fill && pointInPolygon(p, pl.points) {
		return true
	}

	maxDistance := pl.clickTolerance(tolerance)
	count := len(pl.points)
	for i := 1; i < count; i++ {
		if distanceToSegment(p, pl.points[i-1], pl.points[i]) <= maxDistance {
			return true
		}
	}

	if pl.closed && count > 2 {
		return distanceToSegment(p, pl.points[count-1], pl.points[0]) <= maxDistance
	}

	return false
}

// Polygon is a closed, filled Polyline
type Polygon struct {
	Polyline
}

func NewPolygon(latlngs []LatLng, options PathOptions) *Polygon {
	pg := &Polygon{}
	pg.latlngs = append([]LatLng(nil), latlngs...)
	pg.closed = true
	pg.options = options

	return pg
}

func (pg *Polygon) OnAdd(m *Map) errorsx.Error {
	return pg.onAdd(m, pg)
}

func (pg *Polygon) OnRemove(m *Map) {
	pg.onRemove(pg)
}

func (pg *Polygon) SetStyle(options PathOptions) {
	pg.setStyle(options, pg)
}

func (pg *Polygon) Redraw() {
	pg.redraw(pg)
}

func (pg *Polygon) SetLatLngs(latlngs []LatLng) {
	pg.latlngs = append([]LatLng(nil), latlngs...)
	pg.redraw(pg)
}

// Rectangle is a Polygon covering geographical bounds
type Rectangle struct {
	Polygon
}

func NewRectangle(bounds osm.Bounds, options PathOptions) *Rectangle {
	r := &Rectangle{}
	r.latlngs = rectangleLatLngs(bounds)
	r.closed = true
	r.options = options

	return r
}

func rectangleLatLngs(bounds osm.Bounds) []LatLng {
	return []LatLng{
		{bounds.MinLat, bounds.MinLon},
		{bounds.MaxLat, bounds.MinLon},
		{bounds.MaxLat, bounds.MaxLon},
		{bounds.MinLat, bounds.MaxLon},
	}
}

func (r *Rectangle) OnAdd(m *Map) errorsx.Error {
	return r.onAdd(m, r)
}

func (r *Rectangle) OnRemove(m *Map) {
	r.onRemove(r)
}

func (r *Rectangle) SetStyle(options PathOptions) {
	r.setStyle(options, r)
}

func (r *Rectangle) Redraw() {
	r.redraw(r)
}

func (r *Rectangle) SetBounds(bounds osm.Bounds) {
	r.latlngs = rectangleLatLngs(bounds)
	r.redraw(r)
}
