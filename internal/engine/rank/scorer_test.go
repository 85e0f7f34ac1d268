package rank

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/gridrank/internal/model"
)

func biz(id string, lat, lng float64) model.Business {
	return model.Business{ID: id, Name: id, Location: model.Coordinate{Lat: lat, Lng: lng}}
}

func mustScorer(t *testing.T, opts Options) *DistanceScorer {
	t.Helper()
	s, err := NewDistanceScorer(opts)
	require.NoError(t, err)
	return s
}

func TestRankAt_CloserWins(t *testing.T) {
	s := mustScorer(t, Options{})
	point := model.Coordinate{Lat: 40, Lng: -3}

	candidates := []model.Business{
		biz("far", 40.05, -3),
		biz("near", 40.001, -3),
		biz("mid", 40.01, -3),
	}

	ranked, err := s.RankAt(context.Background(), point, candidates)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, "near", ranked[0].Business.ID)
	assert.Equal(t, "mid", ranked[1].Business.ID)
	assert.Equal(t, "far", ranked[2].Business.ID)
	for i, e := range ranked {
		assert.Equal(t, i+1, e.Rank)
	}
}

func TestRankAt_Completeness(t *testing.T) {
	s := mustScorer(t, Options{Jitter: 0.5, Seed: 42})
	point := model.Coordinate{Lat: 51.5, Lng: -0.12}

	var candidates []model.Business
	for i := 0; i < 25; i++ {
		candidates = append(candidates, biz(string(rune('a'+i)), 51.5+float64(i)*0.001, -0.12))
	}

	ranked, err := s.RankAt(context.Background(), point, candidates)
	require.NoError(t, err)
	require.Len(t, ranked, len(candidates))

	seen := map[string]bool{}
	for i, e := range ranked {
		assert.Equal(t, i+1, e.Rank)
		assert.False(t, seen[e.Business.ID], "duplicate %s", e.Business.ID)
		seen[e.Business.ID] = true
	}
	assert.Len(t, seen, len(candidates))
}

func TestRankAt_TiesKeepCandidateOrder(t *testing.T) {
	s := mustScorer(t, Options{})
	point := model.Coordinate{Lat: 0, Lng: 0}

	// same distance north and south
	candidates := []model.Business{
		biz("south", -0.01, 0),
		biz("north", 0.01, 0),
	}
	ranked, err := s.RankAt(context.Background(), point, candidates)
	require.NoError(t, err)
	assert.Equal(t, "south", ranked[0].Business.ID)
	assert.Equal(t, "north", ranked[1].Business.ID)

	candidates[0], candidates[1] = candidates[1], candidates[0]
	ranked, err = s.RankAt(context.Background(), point, candidates)
	require.NoError(t, err)
	assert.Equal(t, "north", ranked[0].Business.ID)
}

func TestRankAt_CandidateOnPoint(t *testing.T) {
	s := mustScorer(t, Options{})
	point := model.Coordinate{Lat: 10, Lng: 10}

	ranked, err := s.RankAt(context.Background(), point, []model.Business{
		biz("other", 10.001, 10),
		biz("here", 10, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, "here", ranked[0].Business.ID)
}

func TestRankAt_SeededJitterIsDeterministic(t *testing.T) {
	point := model.Coordinate{Lat: -34.6, Lng: -58.38}
	candidates := []model.Business{
		biz("a", -34.601, -58.38),
		biz("b", -34.6, -58.381),
		biz("c", -34.599, -58.3805),
		biz("d", -34.6012, -58.379),
	}

	first, err := mustScorer(t, Options{Jitter: 0.9, Seed: 7}).RankAt(context.Background(), point, candidates)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := mustScorer(t, Options{Jitter: 0.9, Seed: 7}).RankAt(context.Background(), point, candidates)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRankAt_NoJitterIsDeterministic(t *testing.T) {
	s := mustScorer(t, Options{})
	point := model.Coordinate{Lat: 1, Lng: 1}
	candidates := []model.Business{biz("a", 1.002, 1), biz("b", 1, 1.001), biz("c", 0.999, 0.999)}

	first, err := s.RankAt(context.Background(), point, candidates)
	require.NoError(t, err)
	second, err := s.RankAt(context.Background(), point, candidates)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRankAt_Errors(t *testing.T) {
	s := mustScorer(t, Options{})
	point := model.Coordinate{Lat: 1, Lng: 1}

	_, err := s.RankAt(context.Background(), point, nil)
	assert.ErrorIs(t, err, ErrNoCandidates)

	_, err = s.RankAt(context.Background(), point, []model.Business{biz("a", 1, 1), biz("a", 2, 2)})
	assert.ErrorIs(t, err, ErrDuplicateCandidate)

	_, err = s.RankAt(context.Background(), point, []model.Business{biz("", 1, 1)})
	assert.ErrorIs(t, err, ErrMalformedCandidate)

	_, err = s.RankAt(context.Background(), point, []model.Business{biz("a", math.NaN(), 1)})
	assert.ErrorIs(t, err, ErrMalformedCandidate)

	_, err = s.RankAt(context.Background(), model.Coordinate{Lat: 100}, []model.Business{biz("a", 1, 1)})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.RankAt(ctx, point, []model.Business{biz("a", 1, 1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewDistanceScorer_Options(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", Options{}, false},
		{"max jitter", Options{Jitter: 0.99}, false},
		{"jitter one", Options{Jitter: 1}, true},
		{"negative jitter", Options{Jitter: -0.1}, true},
		{"negative epsilon", Options{EpsilonKm: -1}, true},
		{"custom epsilon", Options{EpsilonKm: 0.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewDistanceScorer(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Positive(t, s.epsilon)
		})
	}
}
