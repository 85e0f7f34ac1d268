package scraper

import (
	"fmt"
	"math"

	"github.com/rendis/gridrank/internal/model"
)

const (
	viewportW = 1024
	viewportH = 768

	// PageSize is the number of places one tbm=map page returns.
	PageSize = 20
)

// BuildPB builds the pb= parameter of a tbm=map request centered on c.
func BuildPB(c model.Coordinate, zoom, offset int) string {
	return fmt.Sprintf(
		"!4m12!1m3!1d%.4f!2d%.7f!3d%.7f!2m3!1f0!2f0!3f0!3m2!1i%d!2i%d!4f13.1"+
			"!7i%d!8i%d!10b1"+
			"!12m22!1m3!18b1!30b1!34e1!2m3!5m1!6e2!20e3!4b0!10b1!12b1!13b1!16b1!17m1!3e1!20m3!5e2!6b1!14b1!46m1!1b0!96b1"+
			"!19m4!2m3!1i360!2i120!4i8",
		viewportAltitude(c.Lat, zoom), c.Lng, c.Lat,
		viewportW, viewportH,
		PageSize, offset,
	)
}

// viewportAltitude is the camera altitude in meters for zoom at lat.
func viewportAltitude(lat float64, zoom int) float64 {
	const earthRadius = 6371010.0
	return (2 * math.Pi * earthRadius * viewportH * math.Cos(lat*math.Pi/180)) / (512 * math.Pow(2, float64(zoom)))
}
