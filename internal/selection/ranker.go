package selection

import (
	"sort"

	"github.com/wonny/equitysim/internal/contracts"
	"github.com/wonny/equitysim/internal/strategyconfig"
)

// ScorePolicy ranks continuous return estimates
// ⭐ SSOT: score 랭킹 로직은 여기서만
type ScorePolicy struct {
	NPositions int
}

type scoredTicker struct {
	ticker string
	score  float64
}

// Name returns the policy identifier
func (p *ScorePolicy) Name() string { return strategyconfig.PolicyScore }

// Candidates ranks score > 0 descending and score < 0 most-negative first.
// Zero scores are neither long nor short. Ties keep ticker order.
func (p *ScorePolicy) Candidates(cs contracts.CrossSection) (longs, shorts []string) {
	var up, down []scoredTicker
	for i := range cs.Observations {
		o := &cs.Observations[i]
		if o.Score == nil {
			continue
		}
		switch s := *o.Score; {
		case s > 0:
			up = append(up, scoredTicker{o.Ticker, s})
		case s < 0:
			down = append(down, scoredTicker{o.Ticker, s})
		}
	}

	// Observations arrive in ticker order, so a stable sort breaks ties
	// lexicographically.
	sort.SliceStable(up, func(i, j int) bool { return up[i].score > up[j].score })
	sort.SliceStable(down, func(i, j int) bool { return down[i].score < down[j].score })

	return p.truncate(up), p.truncate(down)
}

func (p *ScorePolicy) truncate(ranked []scoredTicker) []string {
	n := len(ranked)
	if n > p.NPositions {
		n = p.NPositions
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i].ticker
	}
	return out
}
