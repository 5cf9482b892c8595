package slippymap

import (
	"math"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/rasterengine"
)

// CircleMarker is a circle with a radius in pixels
type CircleMarker struct {
	pathBase

	latlng LatLng
	radius float64

	// metres makes radius a distance on the ground, see Circle
	metres bool

	point            Point
	radiusX, radiusY float64
}

func NewCircleMarker(latlng LatLng, radius float64, options PathOptions) *CircleMarker {
	cm := &CircleMarker{latlng: latlng, radius: radius}
	cm.options = options

	return cm
}

func (cm *CircleMarker) OnAdd(m *Map) errorsx.Error {
	return cm.onAdd(m, cm)
}

func (cm *CircleMarker) OnRemove(m *Map) {
	cm.onRemove(cm)
}

func (cm *CircleMarker) SetStyle(options PathOptions) {
	cm.setStyle(options, cm)
}

func (cm *CircleMarker) Redraw() {
	cm.redraw(cm)
}

func (cm *CircleMarker) GetLatLng() LatLng {
	return cm.latlng
}

func (cm *CircleMarker) SetLatLng(latlng LatLng) {
	cm.latlng = latlng
	cm.redraw(cm)
	cm.Fire("move", &Event{Target: cm, LatLng: latlng})
}

func (cm *CircleMarker) GetRadius() float64 {
	return cm.radius
}

func (cm *CircleMarker) SetRadius(radius float64) {
	cm.radius = radius
	cm.redraw(cm)
}

func (cm *CircleMarker) project(m *Map) {
	if cm.metres {
		cm.projectMetres(m)
		return
	}

	cm.point = m.LatLngToLayerPoint(cm.latlng)
	cm.radiusX = cm.radius
	cm.radiusY = cm.radius
}

// projectMetres converts a radius on the ground to pixel radii, which differ away from the equator
func (cm *CircleMarker) projectMetres(m *Map) {
	const d = math.Pi / 180

	lat, lng := cm.latlng.Lat, cm.latlng.Lng
	latR := (cm.radius / meanEarthRadius) / d

	top := m.Project(LatLng{lat + latR, lng})
	bottom := m.Project(LatLng{lat - latR, lng})
	p := top.Add(bottom).DivideBy(2)
	lat2 := m.Unproject(p).Lat

	lngR := math.Acos((math.Cos(latR*d)-math.Sin(lat*d)*math.Sin(lat2*d))/(math.Cos(lat*d)*math.Cos(lat2*d))) / d
	if math.IsNaN(lngR) || lngR == 0 {
		// at the poles
		lngR = latR / math.Cos(d*lat)
	}

	cm.point = p.Subtract(m.GetPixelOrigin())
	cm.radiusX = 0
	if !math.IsNaN(lngR) {
		cm.radiusX = p.X - m.Project(LatLng{lat2, lng - lngR}).X
	}
	cm.radiusY = p.Y - top.Y
}

func (cm *CircleMarker) draw(ctx *rasterengine.Context2D) errorsx.Error {
	if cm.radiusX <= 0 && cm.radiusY <= 0 {
		return nil
	}

	ctx.BeginPath()
	if cm.radiusX == cm.radiusY {
		ctx.Arc(cm.point.X, cm.point.Y, cm.radiusX, 0, 2*math.Pi, false)
	} else {
		ctx.Ellipse(cm.point.X, cm.point.Y, cm.radiusX, cm.radiusY)
	}
	ctx.ClosePath()

	return cm.fillStroke(ctx)
}

func (cm *CircleMarker) containsPoint(p Point, tolerance float64) bool {
	radius := math.Max(cm.radiusX, cm.radiusY)
	return p.DistanceTo(cm.point) <= radius+cm.clickTolerance(tolerance)
}

// Circle is a circle with a radius in metres
type Circle struct {
	CircleMarker
}

func NewCircle(latlng LatLng, radiusMetres float64, options PathOptions) *Circle {
	c := &Circle{}
	c.latlng = latlng
	c.radius = radiusMetres
	c.metres = true
	c.options = options

	return c
}

func (c *Circle) OnAdd(m *Map) errorsx.Error {
	return c.onAdd(m, c)
}

func (c *Circle) OnRemove(m *Map) {
	c.onRemove(c)
}

func (c *Circle) SetStyle(options PathOptions) {
	c.setStyle(options, c)
}

func (c *Circle) Redraw() {
	c.redraw(c)
}

func (c *Circle) SetLatLng(latlng LatLng) {
	c.latlng = latlng
	c.redraw(c)
	c.Fire("move", &Event{Target: c, LatLng: latlng})
}

func (c *Circle) SetRadius(radiusMetres float64) {
	c.radius = radiusMetres
	c.redraw(c)
}
