// Package rank orders candidate businesses at a single grid point.
//
// No live search ranking is available to the engine, so the default scorer
// models "closer wins" with optional bounded jitter for rank volatility.
package rank

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/rendis/gridrank/internal/engine/geo"
	"github.com/rendis/gridrank/internal/model"
)

var (
	// ErrNoCandidates is returned when there is nothing to rank.
	ErrNoCandidates = eris.New("rank: no candidates")
	// ErrDuplicateCandidate is returned when two candidates share an id.
	ErrDuplicateCandidate = eris.New("rank: duplicate candidate id")
	// ErrMalformedCandidate is returned for a candidate with no id or an invalid location.
	ErrMalformedCandidate = eris.New("rank: malformed candidate")
)

// DefaultEpsilonKm keeps the score finite for a candidate sitting on the point.
const DefaultEpsilonKm = 0.01

// Scorer ranks candidates at one point. Implementations must return every
// candidate exactly once with dense 1-based ranks.
type Scorer interface {
	RankAt(ctx context.Context, point model.Coordinate, candidates []model.Business) ([]model.RankedEntry, error)
}

// Options configures a DistanceScorer.
type Options struct {
	// Jitter is the maximum relative score perturbation, in [0, 1).
	// 0 disables jitter and makes ranking fully deterministic.
	Jitter float64
	// EpsilonKm is added to every distance. Must be > 0; defaults to DefaultEpsilonKm.
	EpsilonKm float64
	// Seed makes jitter reproducible per point. 0 means unseeded.
	Seed uint64
}

// DistanceScorer scores candidates by inverse haversine distance.
type DistanceScorer struct {
	jitter  float64
	epsilon float64
	seed    uint64
}

// NewDistanceScorer validates opts and builds a scorer.
func NewDistanceScorer(opts Options) (*DistanceScorer, error) {
	if opts.Jitter < 0 || opts.Jitter >= 1 || math.IsNaN(opts.Jitter) {
		return nil, eris.Errorf("rank: jitter must be in [0, 1), got %v", opts.Jitter)
	}
	eps := opts.EpsilonKm
	if eps == 0 {
		eps = DefaultEpsilonKm
	}
	if eps < 0 || math.IsNaN(eps) {
		return nil, eris.Errorf("rank: epsilon must be positive, got %v", opts.EpsilonKm)
	}
	return &DistanceScorer{jitter: opts.Jitter, epsilon: eps, seed: opts.Seed}, nil
}

type scored struct {
	business model.Business
	score    float64
}

// RankAt ranks candidates by score descending. Equal scores keep candidate order.
func (s *DistanceScorer) RankAt(ctx context.Context, point model.Coordinate, candidates []model.Business) ([]model.RankedEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !point.Valid() {
		return nil, eris.Errorf("rank: invalid point %s", point)
	}
	if err := ValidateCandidates(candidates); err != nil {
		return nil, err
	}

	rng := s.rngFor(point)

	items := make([]scored, len(candidates))
	for i, c := range candidates {
		score := 1.0 / (geo.DistanceKm(point, c.Location) + s.epsilon)
		if rng != nil {
			score *= 1 + s.jitter*(2*rng.Float64()-1)
		}
		items[i] = scored{business: c, score: score}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].score > items[j].score
	})

	out := make([]model.RankedEntry, len(items))
	for i, it := range items {
		out[i] = model.RankedEntry{Rank: i + 1, Business: it.business}
	}
	return out, nil
}

// rngFor returns the jitter source for a point, or nil when jitter is off.
// Seeded sources depend only on (seed, point).
func (s *DistanceScorer) rngFor(point model.Coordinate) *rand.Rand {
	if s.jitter == 0 {
		return nil
	}
	if s.seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(s.seed, math.Float64bits(point.Lat)^(math.Float64bits(point.Lng)<<1)))
}

// ValidateCandidates checks the RankAt precondition: at least one candidate,
// unique non-empty ids and valid locations.
func ValidateCandidates(candidates []model.Business) error {
	if len(candidates) == 0 {
		return ErrNoCandidates
	}
	seen := make(map[string]struct{}, len(candidates))
	for i, c := range candidates {
		if c.ID == "" {
			return eris.Wrapf(ErrMalformedCandidate, "candidate %d (%q) has no id", i, c.Name)
		}
		if !c.Location.Valid() {
			return eris.Wrapf(ErrMalformedCandidate, "candidate %q has invalid location %s", c.ID, c.Location)
		}
		if _, dup := seen[c.ID]; dup {
			return eris.Wrapf(ErrDuplicateCandidate, "id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}
