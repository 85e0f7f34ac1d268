// Package scan drives a grid rank scan: it lays out the grid, ranks the target
// against its competitors at every point and folds the results into a summary
// and a competitor leaderboard.
package scan

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rendis/gridrank/internal/engine/geo"
	"github.com/rendis/gridrank/internal/engine/rank"
	"github.com/rendis/gridrank/internal/model"
)

// ProgressSink receives (current, total) after every completed point.
// current is the count of points completed so far, never a point index.
type ProgressSink interface {
	OnProgress(current, total int)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(current, total int)

func (f ProgressFunc) OnProgress(current, total int) { f(current, total) }

// Stats holds live counters for UIs that poll instead of subscribing.
type Stats struct {
	Total  atomic.Int64
	Done   atomic.Int64
	Failed atomic.Int64
}

// Input is everything one scan needs.
type Input struct {
	Target       model.Business
	Competitors  []model.Business
	GridSpecText string
	Sources      []model.Source
}

// Outcome wraps a finished scan.
type Outcome struct {
	Result *model.ScanResult
	// HistoryID is set when the scan was persisted.
	HistoryID string
	// SaveErr is set when persisting failed; Result is still valid.
	SaveErr error
}

// Options configures a Runner.
type Options struct {
	// Workers bounds concurrent point scoring. Values below 1 mean 1, which
	// scores points strictly in index order.
	Workers int
	// Stats, if set, is updated while the scan runs.
	Stats *Stats
}

// Runner runs scans with a fixed scorer.
type Runner struct {
	scorer  rank.Scorer
	workers int
	stats   *Stats
	log     *zap.Logger
}

// NewRunner builds a Runner around scorer.
func NewRunner(scorer rank.Scorer, opts Options) *Runner {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		scorer:  scorer,
		workers: workers,
		stats:   opts.Stats,
		log:     zap.L().With(zap.String("component", "scan")),
	}
}

// Run scans the grid around in.Target. sink may be nil.
//
// Points that fail to score are skipped and reported in the result; the scan
// only fails as a whole on invalid input, cancellation, or when every point fails.
func (r *Runner) Run(ctx context.Context, in Input, sink ProgressSink) (*Outcome, error) {
	if err := validateTarget(in.Target); err != nil {
		return nil, invalid(err)
	}

	candidates := make([]model.Business, 0, len(in.Competitors)+1)
	candidates = append(candidates, in.Target)
	candidates = append(candidates, in.Competitors...)
	if err := rank.ValidateCandidates(candidates); err != nil {
		return nil, invalid(err)
	}

	spec, ok := geo.ParseGridSpec(in.GridSpecText)
	if !ok {
		r.log.Warn("unparseable grid spec, using default",
			zap.String("grid_spec", in.GridSpecText),
			zap.Stringer("default", spec),
		)
	}

	points := geo.GeneratePoints(in.Target.Location, spec)
	if len(points) == 0 {
		return nil, invalid(eris.Errorf("scan: grid %s has no points", spec))
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled(ctx)
	}

	total := len(points)
	stats := r.stats
	if stats == nil {
		stats = &Stats{}
	}
	stats.Total.Store(int64(total))
	stats.Done.Store(0)
	stats.Failed.Store(0)

	log := r.log.With(zap.String("target", in.Target.ID), zap.Int("points", total))
	log.Info("scan started",
		zap.Stringer("grid", spec),
		zap.Int("candidates", len(candidates)),
		zap.Int("workers", r.workers),
	)

	results := make([]*model.RankingPoint, total)
	failures := make([]*model.PointFailure, total)

	var (
		mu   sync.Mutex
		done int
	)

	var g errgroup.Group
	g.SetLimit(r.workers)

	for _, p := range points {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			rp, err := r.scorePoint(ctx, p, candidates, in.Target.ID)

			mu.Lock()
			defer mu.Unlock()
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				log.Warn("point skipped", zap.Int("index", p.Index), zap.Error(err))
				failures[p.Index] = &model.PointFailure{Index: p.Index, Error: err.Error()}
				stats.Failed.Add(1)
			} else {
				results[p.Index] = &rp
			}
			done++
			stats.Done.Add(1)
			if sink != nil {
				sink.OnProgress(done, total)
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		log.Info("scan canceled", zap.Int("completed", done))
		return nil, canceled(ctx)
	}

	result := assemble(in, spec, results, failures)
	if len(result.RankingPoints) == 0 {
		return nil, eris.Wrapf(ErrAllPointsFailed, "first error: %s", result.Failures[0].Error)
	}

	log.Info("scan finished",
		zap.Float64("average_rank", result.Summary.AverageRank),
		zap.Int("skipped", result.SkippedPoints),
	)
	return &Outcome{Result: result}, nil
}

// scorePoint ranks candidates at one point. A panicking scorer is turned into
// an error.
func (r *Runner) scorePoint(ctx context.Context, p model.GridPoint, candidates []model.Business, targetID string) (rp model.RankingPoint, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = eris.Errorf("scan: scorer panic at point %d: %v", p.Index, rec)
		}
	}()

	ranked, err := r.scorer.RankAt(ctx, p.Coordinate, candidates)
	if err != nil {
		return rp, eris.Wrapf(err, "scan: rank point %d", p.Index)
	}

	rp = model.RankingPoint{
		ID:            p.Index,
		Row:           p.Row,
		Col:           p.Col,
		TargetRank:    len(candidates) + 1,
		Coordinate:    p.Coordinate,
		RankedEntries: ranked,
	}
	for _, e := range ranked {
		if e.Business.ID == targetID {
			rp.TargetRank = e.Rank
			rp.TargetFound = true
			break
		}
	}
	return rp, nil
}

func assemble(in Input, spec model.GridSpec, results []*model.RankingPoint, failures []*model.PointFailure) *model.ScanResult {
	points := make([]model.RankingPoint, 0, len(results))
	var failed []model.PointFailure
	for i := range results {
		if results[i] != nil {
			points = append(points, *results[i])
		}
		if failures[i] != nil {
			failed = append(failed, *failures[i])
		}
	}

	sources := make([]model.Source, len(in.Sources))
	copy(sources, in.Sources)

	return &model.ScanResult{
		TargetID:            in.Target.ID,
		Summary:             Summarize(points),
		RankingPoints:       points,
		GridSpecText:        in.GridSpecText,
		GridSpec:            spec,
		CompetitorStandings: Standings(points),
		AttributionSources:  sources,
		TotalPoints:         len(results),
		SkippedPoints:       len(failed),
		Failures:            failed,
	}
}

func validateTarget(t model.Business) error {
	if t.ID == "" {
		return eris.New("scan: target has no id")
	}
	if !t.Location.Valid() {
		return eris.Errorf("scan: target %q has invalid location %s", t.ID, t.Location)
	}
	return nil
}
