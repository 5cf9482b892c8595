package slippymap

import (
	"fmt"
	"math"

	"github.com/paulmach/osm"
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (ll LatLng) String() string {
	return fmt.Sprintf("LatLng(%f, %f)", ll.Lat, ll.Lng)
}

// Point is a pixel coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(other Point) Point {
	return Point{p.X + other.X, p.Y + other.Y}
}

func (p Point) Subtract(other Point) Point {
	return Point{p.X - other.X, p.Y - other.Y}
}

func (p Point) MultiplyBy(n float64) Point {
	return Point{p.X * n, p.Y * n}
}

func (p Point) DivideBy(n float64) Point {
	return Point{p.X / n, p.Y / n}
}

func (p Point) Round() Point {
	return Point{math.Round(p.X), math.Round(p.Y)}
}

func (p Point) Floor() Point {
	return Point{math.Floor(p.X), math.Floor(p.Y)}
}

func (p Point) Ceil() Point {
	return Point{math.Ceil(p.X), math.Ceil(p.Y)}
}

func (p Point) DistanceTo(other Point) float64 {
	return math.Hypot(other.X-p.X, other.Y-p.Y)
}

func (p Point) IsZero() bool {
	return p.X == 0 && p.Y == 0
}

// PixelBounds is a rectangle in pixel coordinates
type PixelBounds struct {
	Min Point
	Max Point
}

func (b PixelBounds) Size() Point {
	return b.Max.Subtract(b.Min)
}

func (b PixelBounds) Center() Point {
	return b.Min.Add(b.Max).DivideBy(2)
}

func (b PixelBounds) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

func (b PixelBounds) Intersects(other PixelBounds) bool {
	return other.Max.X >= b.Min.X && other.Min.X <= b.Max.X &&
		other.Max.Y >= b.Min.Y && other.Min.Y <= b.Max.Y
}

// NewLatLngBounds returns the smallest bounds containing every given point
func NewLatLngBounds(latlngs ...LatLng) osm.Bounds {
	if len(latlngs) == 0 {
		return osm.Bounds{}
	}

	bounds := osm.Bounds{
		MinLat: latlngs[0].Lat,
		MaxLat: latlngs[0].Lat,
		MinLon: latlngs[0].Lng,
		MaxLon: latlngs[0].Lng,
	}

	for _, ll := range latlngs[1:] {
		bounds.MinLat = math.Min(bounds.MinLat, ll.Lat)
		bounds.MaxLat = math.Max(bounds.MaxLat, ll.Lat)
		bounds.MinLon = math.Min(bounds.MinLon, ll.Lng)
		bounds.MaxLon = math.Max(bounds.MaxLon, ll.Lng)
	}

	return bounds
}

func BoundsCenter(bounds osm.Bounds) LatLng {
	return LatLng{(bounds.MinLat + bounds.MaxLat) / 2, (bounds.MinLon + bounds.MaxLon) / 2}
}

// Overlaps checks whether an item is at least partially inside a container
func Overlaps(container osm.Bounds, item osm.Bounds) bool {
	if container.MinLat > item.MaxLat {
		// container is wholly above item
		return false
	}

	if container.MaxLat < item.MinLat {
		// container is wholly below item
		return false
	}

	if container.MinLon > item.MaxLon {
		// container is wholly to the right of item
		return false
	}

	if container.MaxLon < item.MinLon {
		// container is wholly to the left of item
		return false
	}

	return true
}

// IsInBounds tests if a point is inside a container
func IsInBounds(bounds osm.Bounds, ll LatLng) bool {
	isInLatBounds := ll.Lat <= bounds.MaxLat && ll.Lat >= bounds.MinLat
	if !isInLatBounds {
		return false
	}

	return ll.Lng <= bounds.MaxLon && ll.Lng >= bounds.MinLon
}

// distanceToSegment is the distance from p to the segment a-b
func distanceToSegment(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lengthSquared := dx*dx + dy*dy
	if lengthSquared == 0 {
		return p.DistanceTo(a)
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lengthSquared
	t = math.Max(0, math.Min(1, t))

	return p.DistanceTo(Point{a.X + t*dx, a.Y + t*dy})
}

// pointInPolygon uses the even-odd rule
func pointInPolygon(p Point, ring []Point) bool {
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Y > p.Y) != (b.Y > p.Y) && p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}

	return inside
}
