package selection

import (
	"math/rand/v2"
	"sort"

	"github.com/wonny/equitysim/internal/contracts"
	"github.com/wonny/equitysim/internal/strategyconfig"
)

// SignalPolicy selects by membership on discrete signals
type SignalPolicy struct {
	IncludeShort bool
	// NPositions is the side size above which sampling kicks in
	NPositions int
	// Cap is the per-side sample size, strategyconfig.NoCap to keep all
	Cap  int
	Rand *rand.Rand
}

// Name returns the policy identifier
func (p *SignalPolicy) Name() string { return strategyconfig.PolicySignal }

// Candidates returns signal == 1 as longs and signal == -1 as shorts, in
// ticker order. A side with more than NPositions names is reduced to Cap
// by a uniform sample without replacement; longs are sampled before shorts.
func (p *SignalPolicy) Candidates(cs contracts.CrossSection) (longs, shorts []string) {
	for i := range cs.Observations {
		o := &cs.Observations[i]
		if o.Signal == nil {
			continue
		}
		switch *o.Signal {
		case 1:
			longs = append(longs, o.Ticker)
		case -1:
			if p.IncludeShort {
				shorts = append(shorts, o.Ticker)
			}
		}
	}

	return p.sample(longs), p.sample(shorts)
}

func (p *SignalPolicy) sample(tickers []string) []string {
	if p.Cap == strategyconfig.NoCap || len(tickers) <= p.NPositions || len(tickers) <= p.Cap {
		return tickers
	}

	// partial Fisher-Yates
	pool := make([]string, len(tickers))
	copy(pool, tickers)
	for i := 0; i < p.Cap; i++ {
		j := i + p.Rand.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	picked := pool[:p.Cap]
	sort.Strings(picked)
	return picked
}
