package geo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rendis/gridrank/internal/model"
)

const nominatimURL = "https://nominatim.openstreetmap.org/search"

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocoder resolves free-text addresses to coordinates using OSM Nominatim.
type Geocoder struct {
	baseURL string
	http    *http.Client
}

// NewGeocoder returns a Nominatim geocoder. An empty baseURL uses the public API.
func NewGeocoder(baseURL string) *Geocoder {
	if baseURL == "" {
		baseURL = nominatimURL
	}
	return &Geocoder{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Geocode returns the coordinate of the best match for address.
func (g *Geocoder) Geocode(ctx context.Context, address string) (model.Coordinate, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return model.Coordinate{}, eris.New("geocode: empty address")
	}

	u := g.baseURL + "?" + url.Values{
		"q":      {address},
		"format": {"json"},
		"limit":  {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Coordinate{}, eris.Wrap(err, "geocode: create request")
	}
	req.Header.Set("User-Agent", "gridrank/0.1 (local rank grid scanner)")

	resp, err := g.http.Do(req)
	if err != nil {
		return model.Coordinate{}, eris.Wrap(err, "geocode: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return model.Coordinate{}, eris.Errorf("geocode: unexpected status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return model.Coordinate{}, eris.Wrap(err, "geocode: decode response")
	}
	if len(results) == 0 {
		return model.Coordinate{}, eris.Errorf("geocode: %q not found", address)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return model.Coordinate{}, eris.Wrap(err, "geocode: parse lat")
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return model.Coordinate{}, eris.Wrap(err, "geocode: parse lon")
	}

	c := model.Coordinate{Lat: lat, Lng: lng}
	if !c.Valid() {
		return model.Coordinate{}, eris.Errorf("geocode: invalid coordinate %s", c)
	}
	return c, nil
}
