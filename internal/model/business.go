package model

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Point returns the coordinate as an orb.Point ([lng, lat]).
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Lng, c.Lat}
}

// Valid reports whether the coordinate is finite and within WGS84 ranges.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f, %.6f", c.Lat, c.Lng)
}

// CoordinateFromPoint converts an orb.Point back into a Coordinate.
func CoordinateFromPoint(p orb.Point) Coordinate {
	return Coordinate{Lat: p.Lat(), Lng: p.Lon()}
}

// Business is a place that competes for a local search keyword.
// The target of a scan and its competitors share this type; only the ID
// distinguishes the target.
type Business struct {
	ID          string     `json:"id" yaml:"id"` // place id, cid or derived key
	Name        string     `json:"name" yaml:"name"`
	Address     string     `json:"address" yaml:"address"`
	Location    Coordinate `json:"location" yaml:"location"`
	Category    string     `json:"category,omitempty" yaml:"category,omitempty"`
	Rating      float64    `json:"rating,omitempty" yaml:"rating,omitempty"`
	ReviewCount int        `json:"review_count,omitempty" yaml:"review_count,omitempty"`
}

// Source attributes discovery or insight data to where it came from.
type Source struct {
	URI   string `json:"uri" yaml:"uri"`
	Title string `json:"title" yaml:"title"`
}
