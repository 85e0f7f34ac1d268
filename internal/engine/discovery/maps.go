package discovery

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rendis/gridrank/internal/engine/geo"
	"github.com/rendis/gridrank/internal/engine/scraper"
	"github.com/rendis/gridrank/internal/model"
)

// Searcher fetches one tbm=map result page. *scraper.Client implements it.
type Searcher interface {
	SearchMap(ctx context.Context, coord model.Coordinate, query string, zoom, offset int) ([]byte, error)
}

// MapsOptions configures a MapsDiscoverer.
type MapsOptions struct {
	// SpanKm sets the search viewport; usually the scan's grid span.
	SpanKm float64
	// Pages caps how many result pages are fetched. Defaults to 1.
	Pages   int
	Timeout time.Duration
}

// MapsDiscoverer searches the keyword on Google Maps around the target.
type MapsDiscoverer struct {
	searcher Searcher
	opts     MapsOptions
	log      *zap.Logger
}

// NewMapsDiscoverer builds a discoverer over searcher.
func NewMapsDiscoverer(searcher Searcher, opts MapsOptions) *MapsDiscoverer {
	if opts.Pages < 1 {
		opts.Pages = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	return &MapsDiscoverer{
		searcher: searcher,
		opts:     opts,
		log:      zap.L().With(zap.String("component", "maps_discovery")),
	}
}

func (d *MapsDiscoverer) FindCompetitors(ctx context.Context, target model.Business, query string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	zoom := geo.ZoomForSpan(d.opts.SpanKm)

	var competitors []model.Business
	for page := 0; page < d.opts.Pages; page++ {
		body, err := d.searcher.SearchMap(ctx, target.Location, query, zoom, page*scraper.PageSize)
		if err != nil {
			return nil, eris.Wrapf(err, "discovery: maps search page %d", page)
		}
		places, hasMore, err := scraper.ParseMapResponse(body)
		if err != nil {
			return nil, eris.Wrap(err, "discovery: parse maps response")
		}
		for _, p := range places {
			competitors = append(competitors, p.Business)
		}
		d.log.Debug("maps page parsed", zap.Int("page", page), zap.Int("places", len(places)))
		if !hasMore {
			break
		}
	}

	return &Result{
		Competitors: competitors,
		Sources: []model.Source{{
			URI:   scraper.SearchURL(query, target.Location, zoom),
			Title: "Google Maps: " + query,
		}},
	}, nil
}
