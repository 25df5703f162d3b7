package selection

import (
	"github.com/wonny/equitysim/internal/contracts"
)

// Screener removes excluded tickers before any policy sees them
// ⭐ SSOT: 제외 종목 필터는 여기서만
type Screener struct {
	exclude map[string]struct{}
}

// NewScreener creates a screener for the given exclusion list
func NewScreener(exclude []string) *Screener {
	s := &Screener{exclude: make(map[string]struct{}, len(exclude))}
	for _, t := range exclude {
		s.exclude[t] = struct{}{}
	}
	return s
}

// Screen returns cs without excluded tickers and the number removed
func (s *Screener) Screen(cs contracts.CrossSection) (contracts.CrossSection, int) {
	if len(s.exclude) == 0 {
		return cs, 0
	}

	out := contracts.CrossSection{
		Date:         cs.Date,
		Observations: make([]contracts.Observation, 0, len(cs.Observations)),
	}
	for _, o := range cs.Observations {
		if _, skip := s.exclude[o.Ticker]; skip {
			continue
		}
		out.Observations = append(out.Observations, o)
	}
	return out, len(cs.Observations) - len(out.Observations)
}

// Excluded checks if a ticker is on the exclusion list
func (s *Screener) Excluded(ticker string) bool {
	_, ok := s.exclude[ticker]
	return ok
}
