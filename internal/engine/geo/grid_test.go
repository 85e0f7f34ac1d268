package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/gridrank/internal/model"
)

func TestGeneratePoints_SizeAndCentroid(t *testing.T) {
	center := model.Coordinate{Lat: 40.4168, Lng: -3.7038}

	tests := []struct {
		name string
		spec model.GridSpec
	}{
		{"square", model.GridSpec{Columns: 7, Rows: 7, SpanKm: 1}},
		{"wide", model.GridSpec{Columns: 5, Rows: 2, SpanKm: 3}},
		{"tall", model.GridSpec{Columns: 1, Rows: 4, SpanKm: 2}},
		{"even", model.GridSpec{Columns: 4, Rows: 4, SpanKm: 0.5}},
		{"high latitude", model.GridSpec{Columns: 3, Rows: 3, SpanKm: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := center
			if tt.name == "high latitude" {
				c = model.Coordinate{Lat: 69.65, Lng: 18.96}
			}
			points := GeneratePoints(c, tt.spec)
			require.Len(t, points, tt.spec.Columns*tt.spec.Rows)

			var sumLat, sumLng float64
			for i, p := range points {
				assert.Equal(t, i, p.Index)
				assert.Equal(t, i/tt.spec.Columns, p.Row)
				assert.Equal(t, i%tt.spec.Columns, p.Col)
				sumLat += p.Coordinate.Lat
				sumLng += p.Coordinate.Lng
			}
			n := float64(len(points))
			assert.InDelta(t, c.Lat, sumLat/n, 1e-9)
			assert.InDelta(t, c.Lng, sumLng/n, 1e-9)
		})
	}
}

func TestGeneratePoints_SinglePoint(t *testing.T) {
	center := model.Coordinate{Lat: -33.45, Lng: -70.66}
	points := GeneratePoints(center, model.GridSpec{Columns: 1, Rows: 1, SpanKm: 25})
	require.Len(t, points, 1)
	assert.Equal(t, center, points[0].Coordinate)
}

func TestGeneratePoints_ZeroSpanCollapses(t *testing.T) {
	center := model.Coordinate{Lat: 10, Lng: 20}
	for _, p := range GeneratePoints(center, model.GridSpec{Columns: 3, Rows: 3, SpanKm: 0}) {
		assert.Equal(t, center, p.Coordinate)
	}
}

func TestGeneratePoints_Orientation(t *testing.T) {
	center := model.Coordinate{Lat: 0, Lng: 0}
	points := GeneratePoints(center, model.GridSpec{Columns: 3, Rows: 3, SpanKm: 2})
	require.Len(t, points, 9)

	// first row is north, first column is west
	assert.Greater(t, points[0].Coordinate.Lat, points[3].Coordinate.Lat)
	assert.Less(t, points[0].Coordinate.Lng, points[1].Coordinate.Lng)

	// corner-to-corner span matches the requested km on each axis at the equator
	assert.InDelta(t, 2.0, (points[0].Coordinate.Lat-points[6].Coordinate.Lat)*KmPerDegreeLat, 1e-9)
	assert.InDelta(t, 2.0, (points[2].Coordinate.Lng-points[0].Coordinate.Lng)*KmPerDegreeLngEquator, 1e-9)
}

func TestGeneratePoints_StepUsesLargestDimension(t *testing.T) {
	points := GeneratePoints(model.Coordinate{}, model.GridSpec{Columns: 5, Rows: 2, SpanKm: 4})
	require.Len(t, points, 10)
	// 4 km over 4 steps => 1 km between neighbours on both axes
	assert.InDelta(t, 1.0, (points[1].Coordinate.Lng-points[0].Coordinate.Lng)*KmPerDegreeLngEquator, 1e-9)
	assert.InDelta(t, 1.0, (points[0].Coordinate.Lat-points[5].Coordinate.Lat)*KmPerDegreeLat, 1e-9)
}

func TestGeneratePoints_NearPoleStaysValid(t *testing.T) {
	for _, lat := range []float64{89.999, 90, -90} {
		points := GeneratePoints(model.Coordinate{Lat: lat, Lng: 10}, model.GridSpec{Columns: 3, Rows: 3, SpanKm: 1})
		require.Len(t, points, 9)
		for _, p := range points {
			assert.True(t, p.Coordinate.Valid(), "lat %v: point %d at %s", lat, p.Index, p.Coordinate)
			assert.LessOrEqual(t, p.Coordinate.Lat, 90.0)
			assert.GreaterOrEqual(t, p.Coordinate.Lat, -90.0)
		}
	}
}

func TestGeneratePoints_WrapsAntimeridian(t *testing.T) {
	points := GeneratePoints(model.Coordinate{Lat: 0, Lng: 179.9999}, model.GridSpec{Columns: 3, Rows: 1, SpanKm: 2})
	require.Len(t, points, 3)
	for _, p := range points {
		assert.True(t, p.Coordinate.Valid(), "point %d at %s", p.Index, p.Coordinate)
	}
	assert.Greater(t, points[0].Coordinate.Lng, 179.0)
	assert.Less(t, points[2].Coordinate.Lng, -179.0)
	// wrapped neighbours are still about 1 km apart
	assert.InDelta(t, 1.0, DistanceKm(points[1].Coordinate, points[2].Coordinate), 0.01)
}

func TestWrapLng(t *testing.T) {
	assert.Equal(t, 10.0, wrapLng(10))
	assert.Equal(t, -180.0, wrapLng(180))
	assert.InDelta(t, -170.0, wrapLng(190), 1e-9)
	assert.InDelta(t, 170.0, wrapLng(-190), 1e-9)
	assert.InDelta(t, 0.0, wrapLng(720), 1e-9)
}

func TestGeneratePoints_InvalidSpec(t *testing.T) {
	assert.Empty(t, GeneratePoints(model.Coordinate{}, model.GridSpec{Columns: 0, Rows: 3, SpanKm: 1}))
}

func TestDistanceKm(t *testing.T) {
	madrid := model.Coordinate{Lat: 40.4168, Lng: -3.7038}
	barcelona := model.Coordinate{Lat: 41.3874, Lng: 2.1686}
	assert.InDelta(t, 505, DistanceKm(madrid, barcelona), 5)
	assert.Zero(t, DistanceKm(madrid, madrid))
}

func TestBounds(t *testing.T) {
	points := GeneratePoints(model.Coordinate{Lat: 1, Lng: 1}, model.GridSpec{Columns: 3, Rows: 3, SpanKm: 2})
	b := Bounds(points)
	assert.InDelta(t, 1, b.Center().Lat(), 1e-9)
	assert.InDelta(t, 1, b.Center().Lon(), 1e-9)
	assert.Equal(t, points[0].Coordinate.Lat, b.Max.Lat())
	assert.Equal(t, points[0].Coordinate.Lng, b.Min.Lon())
}

func TestZoomForSpan(t *testing.T) {
	assert.Equal(t, 18, ZoomForSpan(0))
	assert.Equal(t, 17, ZoomForSpan(1))
	assert.Equal(t, 13, ZoomForSpan(10))
	assert.Equal(t, 3, ZoomForSpan(100000))
}

func TestGeocoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Puerta del Sol, Madrid", r.URL.Query().Get("q"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(`[{"lat":"40.4169","lon":"-3.7035","display_name":"Puerta del Sol"}]`))
	}))
	defer srv.Close()

	c, err := NewGeocoder(srv.URL).Geocode(context.Background(), "Puerta del Sol, Madrid")
	require.NoError(t, err)
	assert.InDelta(t, 40.4169, c.Lat, 1e-9)
	assert.InDelta(t, -3.7035, c.Lng, 1e-9)
}

func TestGeocoder_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "fail" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	g := NewGeocoder(srv.URL)
	_, err := g.Geocode(context.Background(), "")
	assert.Error(t, err)
	_, err = g.Geocode(context.Background(), "fail")
	assert.ErrorContains(t, err, "status 500")
	_, err = g.Geocode(context.Background(), "nowhere")
	assert.ErrorContains(t, err, "not found")
}
