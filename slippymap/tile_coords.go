package slippymap

import (
	"fmt"
	"math"

	"github.com/paulmach/osm"
)

// TileCoords identifies a map tile
type TileCoords struct {
	X, Y, Z int
}

func (c TileCoords) Key() string {
	return fmt.Sprintf("%d:%d:%d", c.X, c.Y, c.Z)
}

func Deg2num(lat, lon float64, zoomLevel int) (x, y int) {
	x = int(
		math.Floor((lon + 180.0) / 360.0 * (math.Exp2(float64(zoomLevel)))),
	)
	y = int(
		math.Floor(
			(1.0 - math.Log(
				math.Tan(lat*math.Pi/180.0)+1.0/math.Cos(lat*math.Pi/180.0))/math.Pi) / 2.0 * (math.Exp2(float64(zoomLevel))),
		),
	)
	return
}

// Num2deg returns the north-west corner of a tile
func Num2deg(x, y, zoomLevel int) (lat, long float64) {
	n := math.Pi - 2.0*math.Pi*float64(y)/math.Exp2(float64(zoomLevel))
	lat = 180.0 / math.Pi * math.Atan(0.5*(math.Exp(n)-math.Exp(-n)))
	long = float64(x)/math.Exp2(float64(zoomLevel))*360.0 - 180.0
	return lat, long
}

func XYZToBounds(x, y, zoomLevel int) osm.Bounds {
	n := math.Pow(2, float64(zoomLevel))
	longitudeMin := float64(x)/n*360 - 180
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(y)/n)))
	latitudeMin := latRad * 180 / math.Pi

	longitudeMax := float64(x+1)/n*360 - 180
	latRad = math.Atan(math.Sinh(math.Pi * (1 - 2*float64(y+1)/n)))
	latitudeMax := latRad * 180 / math.Pi

	return osm.Bounds{
		MinLat: latitudeMax,
		MaxLat: latitudeMin,
		MinLon: longitudeMin,
		MaxLon: longitudeMax,
	}
}

// TileAt is the tile containing ll at zoom level z. Latitudes beyond the projection's limit fall in the edge rows.
func TileAt(ll LatLng, zoomLevel int) TileCoords {
	lat := math.Max(-maxLatitude, math.Min(maxLatitude, ll.Lat))
	lon := math.Max(-180, math.Min(180, ll.Lng))

	x, y := Deg2num(lat, lon, zoomLevel)

	last := int(math.Exp2(float64(zoomLevel))) - 1
	return TileCoords{
		X: clampInt(x, 0, last),
		Y: clampInt(y, 0, last),
		Z: zoomLevel,
	}
}

func clampInt(i, min, max int) int {
	if i < min {
		return min
	}
	if i > max {
		return max
	}
	return i
}

// TileCenter is the geographical centre of a tile
func TileCenter(x, y, zoomLevel int) LatLng {
	nwLat, nwLon := Num2deg(x, y, zoomLevel)
	seLat, seLon := Num2deg(x+1, y+1, zoomLevel)

	zoom := float64(zoomLevel)
	middle := Project(LatLng{nwLat, nwLon}, zoom).Add(Project(LatLng{seLat, seLon}, zoom)).DivideBy(2)

	return Unproject(middle, zoom)
}

// wrapNum wraps x into [min, max), e.g. tile columns around the antimeridian
func wrapNum(x, min, max int) int {
	d := max - min
	if d <= 0 {
		return x
	}

	return ((x-min)%d+d)%d + min
}
