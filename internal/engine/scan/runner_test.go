package scan

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/gridrank/internal/engine/rank"
	"github.com/rendis/gridrank/internal/model"
)

var target = model.Business{
	ID:       "target",
	Name:     "Target Cafe",
	Location: model.Coordinate{Lat: 40.4168, Lng: -3.7038},
}

func competitors() []model.Business {
	return []model.Business{
		{ID: "c1", Name: "North Cafe", Location: model.Coordinate{Lat: 40.43, Lng: -3.7038}},
		{ID: "c2", Name: "East Cafe", Location: model.Coordinate{Lat: 40.4168, Lng: -3.69}},
		{ID: "c3", Name: "South Cafe", Location: model.Coordinate{Lat: 40.40, Lng: -3.7038}},
	}
}

func distanceRunner(t *testing.T, workers int) *Runner {
	t.Helper()
	s, err := rank.NewDistanceScorer(rank.Options{})
	require.NoError(t, err)
	return NewRunner(s, Options{Workers: workers})
}

// scorerFunc lets tests swap scoring behavior per point.
type scorerFunc func(ctx context.Context, point model.Coordinate, candidates []model.Business) ([]model.RankedEntry, error)

func (f scorerFunc) RankAt(ctx context.Context, point model.Coordinate, candidates []model.Business) ([]model.RankedEntry, error) {
	return f(ctx, point, candidates)
}

type recorder struct {
	mu    sync.Mutex
	ticks [][2]int
}

func (r *recorder) OnProgress(current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, [2]int{current, total})
}

func TestRun_FullGrid(t *testing.T) {
	for _, workers := range []int{1, 4} {
		rec := &recorder{}
		out, err := distanceRunner(t, workers).Run(context.Background(), Input{
			Target:       target,
			Competitors:  competitors(),
			GridSpecText: "3 x 3 (2 km)",
			Sources:      []model.Source{{URI: "https://maps.example", Title: "maps"}},
		}, rec)
		require.NoError(t, err)

		res := out.Result
		assert.Equal(t, "target", res.TargetID)
		assert.Equal(t, "3 x 3 (2 km)", res.GridSpecText)
		assert.Equal(t, model.GridSpec{Columns: 3, Rows: 3, SpanKm: 2}, res.GridSpec)
		assert.Equal(t, 9, res.TotalPoints)
		assert.True(t, res.Complete())
		require.Len(t, res.RankingPoints, 9)
		assert.Len(t, res.AttributionSources, 1)

		for i, p := range res.RankingPoints {
			assert.Equal(t, i, p.ID)
			assert.Len(t, p.RankedEntries, 4)
			assert.True(t, p.TargetFound)
			assert.GreaterOrEqual(t, p.TargetRank, 1)
			assert.LessOrEqual(t, p.TargetRank, 4)
		}

		// the center point sits on the target
		assert.Equal(t, 1, res.RankingPoints[4].TargetRank)

		require.Len(t, rec.ticks, 9)
		for i, tick := range rec.ticks {
			assert.Equal(t, [2]int{i + 1, 9}, tick)
		}
	}
}

func TestRun_EmptyCompetitorsTargetRanksFirst(t *testing.T) {
	out, err := distanceRunner(t, 2).Run(context.Background(), Input{
		Target:       target,
		GridSpecText: "5 x 5 (4 km)",
	}, nil)
	require.NoError(t, err)

	res := out.Result
	require.Len(t, res.RankingPoints, 25)
	for _, p := range res.RankingPoints {
		assert.Equal(t, 1, p.TargetRank)
	}
	assert.Equal(t, model.ScanSummary{AverageRank: 1, Top3Percentage: 100, Top10Percentage: 100}, res.Summary)
	assert.Empty(t, res.Competitors())
	require.Len(t, res.CompetitorStandings, 1)
	assert.Equal(t, "target", res.CompetitorStandings[0].Business.ID)
}

func TestRun_FallbackGridSpec(t *testing.T) {
	out, err := distanceRunner(t, 1).Run(context.Background(), Input{
		Target:       target,
		GridSpecText: "garbage input",
	}, nil)
	require.NoError(t, err)
	assert.Len(t, out.Result.RankingPoints, 49)
	assert.Equal(t, "garbage input", out.Result.GridSpecText)
	assert.Equal(t, model.GridSpec{Columns: 7, Rows: 7, SpanKm: 1}, out.Result.GridSpec)
}

func TestRun_PartialFailure(t *testing.T) {
	base, err := rank.NewDistanceScorer(rank.Options{})
	require.NoError(t, err)

	var calls int
	var mu sync.Mutex
	flaky := scorerFunc(func(ctx context.Context, point model.Coordinate, candidates []model.Business) ([]model.RankedEntry, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 5 {
			return nil, errors.New("upstream timeout")
		}
		return base.RankAt(ctx, point, candidates)
	})

	rec := &recorder{}
	stats := &Stats{}
	out, err := NewRunner(flaky, Options{Workers: 1, Stats: stats}).Run(context.Background(), Input{
		Target:       target,
		Competitors:  competitors(),
		GridSpecText: "3 x 3 (1 km)",
	}, rec)
	require.NoError(t, err)

	res := out.Result
	assert.Len(t, res.RankingPoints, 8)
	assert.Equal(t, 1, res.SkippedPoints)
	assert.Equal(t, 9, res.TotalPoints)
	assert.False(t, res.Complete())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 4, res.Failures[0].Index)
	assert.Contains(t, res.Failures[0].Error, "upstream timeout")

	_, ok := res.PointAt(4)
	assert.False(t, ok)

	// every point still ticks, failed ones included
	assert.Len(t, rec.ticks, 9)
	assert.Equal(t, int64(9), stats.Done.Load())
	assert.Equal(t, int64(1), stats.Failed.Load())

	// summary only covers the successful points
	assert.Equal(t, Summarize(res.RankingPoints), res.Summary)
}

func TestRun_PanicIsContained(t *testing.T) {
	base, err := rank.NewDistanceScorer(rank.Options{})
	require.NoError(t, err)

	var once sync.Once
	panicky := scorerFunc(func(ctx context.Context, point model.Coordinate, candidates []model.Business) ([]model.RankedEntry, error) {
		var boom bool
		once.Do(func() { boom = true })
		if boom {
			panic("nil map")
		}
		return base.RankAt(ctx, point, candidates)
	})

	out, err := NewRunner(panicky, Options{Workers: 3}).Run(context.Background(), Input{
		Target:       target,
		Competitors:  competitors(),
		GridSpecText: "3 x 3 (1 km)",
	}, nil)
	require.NoError(t, err)
	assert.Len(t, out.Result.RankingPoints, 8)
	require.Len(t, out.Result.Failures, 1)
	assert.Contains(t, out.Result.Failures[0].Error, "panic")
}

func TestRun_AllPointsFail(t *testing.T) {
	broken := scorerFunc(func(context.Context, model.Coordinate, []model.Business) ([]model.RankedEntry, error) {
		return nil, errors.New("down")
	})

	rec := &recorder{}
	_, err := NewRunner(broken, Options{Workers: 2}).Run(context.Background(), Input{
		Target:       target,
		GridSpecText: "2 x 2 (1 km)",
	}, rec)
	assert.ErrorIs(t, err, ErrAllPointsFailed)
	assert.Len(t, rec.ticks, 4)
}

func TestRun_TargetMissingIsNotFound(t *testing.T) {
	// a scorer that never returns the target
	dropTarget := scorerFunc(func(_ context.Context, _ model.Coordinate, candidates []model.Business) ([]model.RankedEntry, error) {
		var out []model.RankedEntry
		for _, c := range candidates {
			if c.ID == target.ID {
				continue
			}
			out = append(out, model.RankedEntry{Rank: len(out) + 1, Business: c})
		}
		return out, nil
	})

	out, err := NewRunner(dropTarget, Options{}).Run(context.Background(), Input{
		Target:       target,
		Competitors:  competitors(),
		GridSpecText: "1 x 1 (1 km)",
	}, nil)
	require.NoError(t, err)
	require.Len(t, out.Result.RankingPoints, 1)

	p := out.Result.RankingPoints[0]
	assert.False(t, p.TargetFound)
	assert.Equal(t, 5, p.TargetRank)
}

func TestRun_Cancellation(t *testing.T) {
	base, err := rank.NewDistanceScorer(rank.Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	sink := ProgressFunc(func(current, total int) {
		rec.OnProgress(current, total)
		if current == 3 {
			cancel()
		}
	})

	out, err := NewRunner(base, Options{Workers: 1}).Run(ctx, Input{
		Target:       target,
		Competitors:  competitors(),
		GridSpecText: "5 x 5 (1 km)",
	}, sink)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rec.ticks, 3)
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	_, err := distanceRunner(t, 1).Run(ctx, Input{Target: target, GridSpecText: "3 x 3 (1 km)"}, rec)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.Empty(t, rec.ticks)
}

func TestRun_ConcurrentProgressIsMonotonic(t *testing.T) {
	rec := &recorder{}
	_, err := distanceRunner(t, 8).Run(context.Background(), Input{
		Target:       target,
		Competitors:  competitors(),
		GridSpecText: "10 x 10 (5 km)",
	}, rec)
	require.NoError(t, err)

	require.Len(t, rec.ticks, 100)
	for i, tick := range rec.ticks {
		assert.Equal(t, i+1, tick[0])
		assert.Equal(t, 100, tick[1])
	}
}

func TestRun_Idempotent(t *testing.T) {
	in := Input{Target: target, Competitors: competitors(), GridSpecText: "4 x 3 (3 km)"}

	first, err := distanceRunner(t, 1).Run(context.Background(), in, nil)
	require.NoError(t, err)
	second, err := distanceRunner(t, 6).Run(context.Background(), in, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Result, second.Result)
}

func TestRun_InvalidInput(t *testing.T) {
	r := distanceRunner(t, 1)

	tests := []struct {
		name string
		in   Input
	}{
		{"target without id", Input{Target: model.Business{Location: target.Location}}},
		{"target bad location", Input{Target: model.Business{ID: "t", Location: model.Coordinate{Lat: 91}}}},
		{"duplicate competitor", Input{Target: target, Competitors: []model.Business{
			{ID: "c", Location: target.Location},
			{ID: "c", Location: target.Location},
		}}},
		{"competitor shares target id", Input{Target: target, Competitors: []model.Business{
			{ID: "target", Location: target.Location},
		}}},
		{"competitor without id", Input{Target: target, Competitors: []model.Business{
			{Name: "anon", Location: target.Location},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			_, err := r.Run(context.Background(), tt.in, rec)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Empty(t, rec.ticks)
		})
	}
}

func TestRun_InvalidCandidateKeepsCause(t *testing.T) {
	_, err := distanceRunner(t, 1).Run(context.Background(), Input{
		Target:      target,
		Competitors: []model.Business{{ID: "target", Location: target.Location}},
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, rank.ErrDuplicateCandidate)
}
