package geo

import (
	"regexp"
	"strconv"

	"github.com/rendis/gridrank/internal/model"
)

// DefaultGridSpec is used whenever a grid spec text cannot be parsed.
var DefaultGridSpec = model.GridSpec{Columns: 7, Rows: 7, SpanKm: 1}

var gridSpecRe = regexp.MustCompile(`^\s*(\d+)\s*[xX×]\s*(\d+)\s*\(\s*(\d+(?:\.\d+)?)\s*km\s*\)\s*$`)

// ParseGridSpec parses "<cols> x <rows> (<span> km)". Malformed text falls back
// to DefaultGridSpec and reports false; it never fails.
func ParseGridSpec(text string) (model.GridSpec, bool) {
	m := gridSpecRe.FindStringSubmatch(text)
	if m == nil {
		return DefaultGridSpec, false
	}

	cols, err := strconv.Atoi(m[1])
	if err != nil || cols < 1 {
		return DefaultGridSpec, false
	}
	rows, err := strconv.Atoi(m[2])
	if err != nil || rows < 1 {
		return DefaultGridSpec, false
	}
	span, err := strconv.ParseFloat(m[3], 64)
	if err != nil || span <= 0 {
		return DefaultGridSpec, false
	}

	return model.GridSpec{Columns: cols, Rows: rows, SpanKm: span}, true
}
