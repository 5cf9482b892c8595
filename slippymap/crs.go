package slippymap

import (
	"math"
)

// spherical mercator, as used by web map tiles (EPSG:3857)
const (
	earthRadius = 6378137.0
	maxLatitude = 85.0511287798

	// meanEarthRadius is used for distances on the ground, e.g. circle radii in metres
	meanEarthRadius = 6371000.0

	TileSize = 256
)

// Scale is the width of the whole world in pixels at a zoom level
func Scale(zoom float64) float64 {
	return TileSize * math.Exp2(zoom)
}

// ZoomForScale is the inverse of Scale
func ZoomForScale(scale float64) float64 {
	return math.Log2(scale / TileSize)
}

// Project converts a geographical coordinate to a pixel coordinate at a zoom level
func Project(ll LatLng, zoom float64) Point {
	const d = math.Pi / 180

	lat := math.Max(math.Min(maxLatitude, ll.Lat), -maxLatitude)
	sin := math.Sin(lat * d)

	x := earthRadius * ll.Lng * d
	y := earthRadius * math.Log((1+sin)/(1-sin)) / 2

	return transform(Point{x, y}, Scale(zoom))
}

// Unproject converts a pixel coordinate at a zoom level to a geographical coordinate
func Unproject(p Point, zoom float64) LatLng {
	const d = 180 / math.Pi

	projected := untransform(p, Scale(zoom))

	return LatLng{
		Lat: (2*math.Atan(math.Exp(projected.Y/earthRadius)) - math.Pi/2) * d,
		Lng: projected.X * d / earthRadius,
	}
}

const transformationScale = 0.5 / (math.Pi * earthRadius)

func transform(p Point, scale float64) Point {
	return Point{
		X: scale * (transformationScale*p.X + 0.5),
		Y: scale * (-transformationScale*p.Y + 0.5),
	}
}

func untransform(p Point, scale float64) Point {
	return Point{
		X: (p.X/scale - 0.5) / transformationScale,
		Y: (p.Y/scale - 0.5) / -transformationScale,
	}
}
