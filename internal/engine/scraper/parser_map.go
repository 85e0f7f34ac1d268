package scraper

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rendis/gridrank/internal/model"
)

// Place is one result of a Maps search page.
type Place struct {
	model.Business
	PlaceID string
	CID     string
	Website string
	URL     string
}

// ParseMapResponse decodes a tbm=map response body into places.
// hasMore reports whether a full page came back.
func ParseMapResponse(body []byte) (places []Place, hasMore bool, err error) {
	// anti-XSSI prefix: )]}'
	if idx := bytes.IndexByte(body, '\n'); idx >= 0 && idx < 10 {
		body = body[idx+1:]
	}

	var raw []any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, false, eris.Wrap(err, "scraper: decode map response")
	}

	// results live at root[0][1][1..N][14]; index 0 is search metadata
	items := safeSlice(safeGet(raw, 0, 1))
	for i := 1; i < len(items); i++ {
		entry := safeSlice(safeGet(items, i, 14))
		if len(entry) == 0 {
			continue
		}
		if p, ok := parsePlace(entry); ok {
			places = append(places, p)
		}
	}

	return places, len(places) >= PageSize, nil
}

func parsePlace(entry []any) (Place, bool) {
	name := strings.TrimSpace(safeString(safeGet(entry, 11)))
	if name == "" {
		return Place{}, false
	}

	placeID := safeString(safeGet(entry, 78))
	cid := safeString(safeGet(entry, 10))
	id := placeID
	if id == "" {
		id = cid
	}

	p := Place{
		Business: model.Business{
			ID:      id,
			Name:    name,
			Address: safeString(safeGet(entry, 18)),
			Location: model.Coordinate{
				Lat: safeFloat(safeGet(entry, 9, 2)),
				Lng: safeFloat(safeGet(entry, 9, 3)),
			},
			Category:    safeString(safeGet(entry, 13, 0)),
			Rating:      safeFloat(safeGet(entry, 4, 7)),
			ReviewCount: int(safeFloat(safeGet(entry, 4, 8))),
		},
		PlaceID: placeID,
		CID:     cid,
		Website: safeString(safeGet(entry, 7, 0)),
		URL:     PlaceURL(placeID),
	}
	return p, true
}

// PlaceURL links to a place by id. Empty for an empty id.
func PlaceURL(placeID string) string {
	if placeID == "" {
		return ""
	}
	return "https://www.google.com/maps/place/?q=place_id:" + placeID
}

// safeGet walks nested []any by index without panicking.
func safeGet(data any, path ...int) any {
	current := data
	for _, idx := range path {
		slice, ok := current.([]any)
		if !ok || idx < 0 || idx >= len(slice) {
			return nil
		}
		current = slice[idx]
	}
	return current
}

func safeSlice(data any) []any {
	slice, _ := data.([]any)
	return slice
}

func safeString(data any) string {
	switch v := data.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func safeFloat(data any) float64 {
	switch v := data.(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	}
	return 0
}
