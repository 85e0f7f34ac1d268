package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/rendis/gridrank/internal/model"
)

// Local flat-earth approximations. Longitude degrees shrink with cos(lat);
// this is not a geodesic projection and the error is accepted.
const (
	KmPerDegreeLat        = 111.132
	KmPerDegreeLngEquator = 111.320
)

const (
	minZoom = 3
	maxZoom = 18
	// viewport width in tiles for a 1024px map request
	viewportTiles = 4.0
	equatorKm     = 40075.0
)

// GeneratePoints lays out spec.Columns x spec.Rows points centered on center,
// row-major from the north-west corner. Rows go south, columns go east.
// Latitudes are clamped to [-90, 90] and longitudes wrapped into [-180, 180),
// so a grid over a pole or the antimeridian still yields valid coordinates.
// A row never spans more than 360 degrees of longitude.
func GeneratePoints(center model.Coordinate, spec model.GridSpec) []model.GridPoint {
	if !spec.Valid() {
		return nil
	}

	maxDim := max(spec.Columns, spec.Rows)
	stepKm := 0.0
	if maxDim > 1 {
		stepKm = spec.SpanKm / float64(maxDim-1)
	}

	stepLat := stepKm / KmPerDegreeLat
	stepLng := 0.0
	if kmPerDegLng := KmPerDegreeLngEquator * math.Cos(center.Lat*math.Pi/180.0); kmPerDegLng > 0 {
		stepLng = stepKm / kmPerDegLng
	}
	if spec.Columns > 1 {
		stepLng = min(stepLng, 360/float64(spec.Columns))
	}

	topLat := center.Lat + float64(spec.Rows-1)/2*stepLat
	leftLng := center.Lng - float64(spec.Columns-1)/2*stepLng

	points := make([]model.GridPoint, 0, spec.Size())
	for row := 0; row < spec.Rows; row++ {
		for col := 0; col < spec.Columns; col++ {
			points = append(points, model.GridPoint{
				Index: row*spec.Columns + col,
				Row:   row,
				Col:   col,
				Coordinate: model.Coordinate{
					Lat: clampLat(topLat - float64(row)*stepLat),
					Lng: wrapLng(leftLng + float64(col)*stepLng),
				},
			})
		}
	}
	return points
}

func clampLat(lat float64) float64 {
	return min(max(lat, -90), 90)
}

func wrapLng(lng float64) float64 {
	if lng >= -180 && lng < 180 {
		return lng
	}
	lng = math.Mod(lng+180, 360)
	if lng < 0 {
		lng += 360
	}
	return lng - 180
}

// DistanceKm returns the haversine distance between two coordinates.
func DistanceKm(a, b model.Coordinate) float64 {
	return geo.DistanceHaversine(a.Point(), b.Point()) / 1000.0
}

// Bounds returns the bounding box of a set of grid points.
func Bounds(points []model.GridPoint) orb.Bound {
	mp := make(orb.MultiPoint, 0, len(points))
	for _, p := range points {
		mp = append(mp, p.Coordinate.Point())
	}
	return mp.Bound()
}

// ZoomForSpan picks the map zoom level whose viewport still covers spanKm.
// A zero span maps to the closest zoom.
func ZoomForSpan(spanKm float64) int {
	if spanKm <= 0 {
		return maxZoom
	}
	z := int(math.Floor(math.Log2(equatorKm * viewportTiles / spanKm)))
	return min(max(z, minZoom), maxZoom)
}
