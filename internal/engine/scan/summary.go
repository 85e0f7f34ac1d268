package scan

import (
	"sort"

	"github.com/rendis/gridrank/internal/model"
)

// Summarize computes the target's statistics over the given points. The
// average is an arithmetic mean of TargetRank, so a missing target counts at
// its NotFound rank. An empty slice yields a zero summary.
func Summarize(points []model.RankingPoint) model.ScanSummary {
	if len(points) == 0 {
		return model.ScanSummary{}
	}

	var sum, top3, top10 int
	for _, p := range points {
		sum += p.TargetRank
		if p.TargetRank <= 3 {
			top3++
		}
		if p.TargetRank <= 10 {
			top10++
		}
	}

	n := float64(len(points))
	return model.ScanSummary{
		AverageRank:     float64(sum) / n,
		Top3Percentage:  float64(top3) / n * 100,
		Top10Percentage: float64(top10) / n * 100,
	}
}

// Standings averages each business's rank over the points where it appears,
// best first. Ties keep first-seen order.
func Standings(points []model.RankingPoint) []model.CompetitorStanding {
	type acc struct {
		business model.Business
		sum      int
		count    int
	}

	var order []string
	byID := make(map[string]*acc)
	for _, p := range points {
		for _, e := range p.RankedEntries {
			a, ok := byID[e.Business.ID]
			if !ok {
				a = &acc{business: e.Business}
				byID[e.Business.ID] = a
				order = append(order, e.Business.ID)
			}
			a.sum += e.Rank
			a.count++
		}
	}

	out := make([]model.CompetitorStanding, 0, len(order))
	for _, id := range order {
		a := byID[id]
		out = append(out, model.CompetitorStanding{
			Business:    a.business,
			AverageRank: float64(a.sum) / float64(a.count),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AverageRank < out[j].AverageRank
	})
	return out
}
