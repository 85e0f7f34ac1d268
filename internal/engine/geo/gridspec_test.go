package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rendis/gridrank/internal/model"
)

func TestParseGridSpec(t *testing.T) {
	tests := []struct {
		text string
		want model.GridSpec
		ok   bool
	}{
		{"5 x 5 (2 km)", model.GridSpec{Columns: 5, Rows: 5, SpanKm: 2}, true},
		{"7x7 (1 km)", model.GridSpec{Columns: 7, Rows: 7, SpanKm: 1}, true},
		{"  9   X 3 ( 0.5 km )  ", model.GridSpec{Columns: 9, Rows: 3, SpanKm: 0.5}, true},
		{"3 × 3 (10km)", model.GridSpec{Columns: 3, Rows: 3, SpanKm: 10}, true},
		{"garbage input", DefaultGridSpec, false},
		{"", DefaultGridSpec, false},
		{"0 x 5 (2 km)", DefaultGridSpec, false},
		{"5 x 5 (0 km)", DefaultGridSpec, false},
		{"5 x 5", DefaultGridSpec, false},
		{"-5 x 5 (2 km)", DefaultGridSpec, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseGridSpec(tt.text)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestParseGridSpec_RoundTripsString(t *testing.T) {
	spec := model.GridSpec{Columns: 11, Rows: 5, SpanKm: 3.25}
	got, ok := ParseGridSpec(spec.String())
	assert.True(t, ok)
	assert.Equal(t, spec, got)
}
