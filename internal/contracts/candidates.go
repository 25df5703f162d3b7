package contracts

import (
	"sort"
	"time"
)

// CandidateSet holds the longs/shorts selected for one date, in eligibility
// order. Longs and shorts never share a ticker.
type CandidateSet struct {
	Date   time.Time `json:"date"`
	Longs  []string  `json:"longs"`
	Shorts []string  `json:"shorts"`
	Gated  bool      `json:"gated"` // breadth gate aborted trading for the date
}

// IsEmpty reports whether no candidate was selected
func (c *CandidateSet) IsEmpty() bool {
	return len(c.Longs) == 0 && len(c.Shorts) == 0
}

// Contains reports whether ticker is a long or short candidate
func (c *CandidateSet) Contains(ticker string) bool {
	for _, t := range c.Longs {
		if t == ticker {
			return true
		}
	}
	for _, t := range c.Shorts {
		if t == ticker {
			return true
		}
	}
	return false
}

// TargetWeights maps ticker to signed fraction of portfolio equity
// (negative = short).
type TargetWeights map[string]float64

// Tickers returns the weighted tickers in lexicographic order
func (tw TargetWeights) Tickers() []string {
	out := make([]string, 0, len(tw))
	for t := range tw {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// GrossLong returns the sum of positive weights
func (tw TargetWeights) GrossLong() float64 {
	total := 0.0
	for _, w := range tw {
		if w > 0 {
			total += w
		}
	}
	return total
}

// GrossShort returns the sum of negative weights (a value <= 0)
func (tw TargetWeights) GrossShort() float64 {
	total := 0.0
	for _, w := range tw {
		if w < 0 {
			total += w
		}
	}
	return total
}
