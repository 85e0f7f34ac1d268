// Package app wires configuration into the engine: it owns the history store,
// the Maps and Anthropic clients and builds a scan service per run.
package app

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rendis/gridrank/internal/config"
	"github.com/rendis/gridrank/internal/engine/discovery"
	"github.com/rendis/gridrank/internal/engine/geo"
	"github.com/rendis/gridrank/internal/engine/insight"
	"github.com/rendis/gridrank/internal/engine/llm"
	"github.com/rendis/gridrank/internal/engine/rank"
	"github.com/rendis/gridrank/internal/engine/scan"
	"github.com/rendis/gridrank/internal/engine/scraper"
	"github.com/rendis/gridrank/internal/engine/storage"
)

// Discovery modes accepted by ScanOptions.Discovery.
const (
	DiscoveryAuto = "auto"
	DiscoveryMaps = "maps"
	DiscoveryLLM  = "llm"
	DiscoveryFile = "file"
	DiscoveryNone = "none"
)

// ErrNoAPIKey is returned when an operation needs the Anthropic key and none is configured.
var ErrNoAPIKey = eris.New("app: anthropic key not configured (set ANTHROPIC_API_KEY)")

// Deps holds the long-lived collaborators of one process.
type Deps struct {
	Cfg      *config.Config
	Store    *storage.Store
	Maps     *scraper.Client
	Geocoder *geo.Geocoder
	// LLM is nil when no Anthropic key is configured.
	LLM llm.Client
}

// New opens the store and builds the clients described by cfg.
func New(cfg *config.Config) (*Deps, error) {
	store, err := storage.NewStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	d := &Deps{
		Cfg:   cfg,
		Store: store,
		Maps: scraper.NewClient(scraper.Options{
			Lang:              cfg.Maps.Lang,
			ProxyURL:          cfg.Maps.ProxyURL,
			RequestsPerSecond: cfg.Maps.RequestsPerSecond,
			Burst:             cfg.Maps.Burst,
			Timeout:           time.Duration(cfg.Maps.TimeoutSecs) * time.Second,
		}),
		Geocoder: geo.NewGeocoder(cfg.Maps.GeocoderURL),
	}
	if cfg.Anthropic.Key != "" {
		d.LLM = llm.NewClient(cfg.Anthropic.Key, time.Duration(cfg.Anthropic.TimeoutSecs)*time.Second)
	}
	return d, nil
}

// Close releases the store.
func (d *Deps) Close() error {
	return d.Store.Close()
}

// ScanOptions overrides the configured scan settings for one run.
// Zero values and nil pointers fall back to the configuration.
type ScanOptions struct {
	Discovery       string
	CompetitorsFile string
	Workers         int
	// Jitter and Seed are pointers so an explicit 0 overrides the config.
	Jitter         *float64
	Seed           *uint64
	AbortOnFailure bool
	// NoSave skips persisting the result.
	NoSave bool
	// SpanKm sizes the Maps discovery viewport; usually the grid span.
	SpanKm float64
	Stats  *scan.Stats
}

// NewService builds a scan service for one run.
func (d *Deps) NewService(opts ScanOptions) (*scan.Service, error) {
	sc := d.Cfg.Scan
	if opts.Discovery == "" {
		opts.Discovery = sc.Discovery
	}
	if opts.CompetitorsFile == "" {
		opts.CompetitorsFile = sc.CompetitorsFile
	}
	if opts.Workers <= 0 {
		opts.Workers = sc.Workers
	}
	jitter, seed := sc.Jitter, sc.Seed
	if opts.Jitter != nil {
		jitter = *opts.Jitter
	}
	if opts.Seed != nil {
		seed = *opts.Seed
	}

	scorer, err := rank.NewDistanceScorer(rank.Options{
		Jitter:    jitter,
		EpsilonKm: sc.EpsilonKm,
		Seed:      seed,
	})
	if err != nil {
		return nil, err
	}

	disc, err := d.Discoverer(opts.Discovery, opts.CompetitorsFile, opts.SpanKm)
	if err != nil {
		return nil, err
	}

	policy, err := scan.ParseDiscoveryPolicy(sc.DiscoveryPolicy)
	if err != nil {
		return nil, err
	}
	if opts.AbortOnFailure {
		policy = scan.AbortOnFailure
	}

	var history scan.History
	if !opts.NoSave {
		history = d.Store
	}

	runner := scan.NewRunner(scorer, scan.Options{Workers: opts.Workers, Stats: opts.Stats})
	return scan.NewService(runner, disc, history, scan.ServiceConfig{
		Policy:         policy,
		MaxCompetitors: sc.MaxCompetitors,
	}), nil
}

// Discoverer builds the competitor source for mode. "auto" tries Maps first
// and falls back to Claude when a key is configured. "none" returns nil.
func (d *Deps) Discoverer(mode, competitorsFile string, spanKm float64) (discovery.Discoverer, error) {
	maps := func() discovery.Discoverer {
		return discovery.NewMapsDiscoverer(d.Maps, discovery.MapsOptions{
			SpanKm: spanKm,
			Pages:  d.Cfg.Maps.Pages,
		})
	}
	claude := func() discovery.Discoverer {
		return discovery.NewLLMDiscoverer(d.LLM, discovery.LLMOptions{
			Model:          d.Cfg.Anthropic.Model,
			MaxTokens:      int64(d.Cfg.Anthropic.MaxTokens),
			MaxCompetitors: d.Cfg.Scan.MaxCompetitors,
			Timeout:        time.Duration(d.Cfg.Anthropic.TimeoutSecs) * time.Second,
		})
	}

	switch strings.ToLower(mode) {
	case DiscoveryAuto, "":
		if d.LLM == nil {
			return maps(), nil
		}
		return discovery.Chain{maps(), claude()}, nil
	case DiscoveryMaps:
		return maps(), nil
	case DiscoveryLLM:
		if d.LLM == nil {
			return nil, ErrNoAPIKey
		}
		return claude(), nil
	case DiscoveryFile:
		if competitorsFile == "" {
			return nil, eris.New("app: discovery mode file needs a competitors file")
		}
		static, err := discovery.LoadStatic(competitorsFile)
		if err != nil {
			return nil, err
		}
		return static, nil
	case DiscoveryNone:
		zap.L().Info("competitor discovery disabled, target is scanned alone")
		return nil, nil
	}
	return nil, eris.Errorf("app: unknown discovery mode %q", mode)
}

// Insight builds the insight generator. It fails without an Anthropic key.
func (d *Deps) Insight() (insight.Generator, error) {
	if d.LLM == nil {
		return nil, ErrNoAPIKey
	}
	return insight.NewLLMGenerator(d.LLM, insight.Options{
		Model:     d.Cfg.Anthropic.Model,
		MaxTokens: int64(d.Cfg.Anthropic.MaxTokens),
		Timeout:   time.Duration(d.Cfg.Anthropic.TimeoutSecs) * time.Second,
	}), nil
}
