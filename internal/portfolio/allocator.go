// Package portfolio converts candidate sets into signed target weights.
package portfolio

import (
	"github.com/wonny/equitysim/internal/contracts"
	"github.com/wonny/equitysim/pkg/logger"
)

// Allocator spreads exposure equally across each side
// ⭐ SSOT: 목표 비중 계산은 여기서만
type Allocator struct {
	logger *logger.Logger
}

// NewAllocator creates a new weight allocator
func NewAllocator(log *logger.Logger) *Allocator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Allocator{logger: log}
}

// Allocate gives every long +1/max(n, nLongs) and every short
// -1/max(n, nShorts). Gross exposure per side never exceeds 1.
// Tickers outside the candidate set get no weight.
func (a *Allocator) Allocate(cs contracts.CandidateSet, nPositions int) contracts.TargetWeights {
	weights := make(contracts.TargetWeights, len(cs.Longs)+len(cs.Shorts))
	if cs.IsEmpty() {
		return weights
	}

	longW := SideWeight(nPositions, len(cs.Longs))
	for _, t := range cs.Longs {
		weights[t] = longW
	}
	shortW := -SideWeight(nPositions, len(cs.Shorts))
	for _, t := range cs.Shorts {
		weights[t] = shortW
	}

	a.logger.WithFields(map[string]interface{}{
		"date":        cs.Date.Format(contracts.DateLayout),
		"longs":       len(cs.Longs),
		"shorts":      len(cs.Shorts),
		"long_weight": longW,
		"gross_long":  weights.GrossLong(),
		"gross_short": weights.GrossShort(),
	}).Debug("Weights allocated")

	return weights
}

// SideWeight is the per-name magnitude for a side holding count names
func SideWeight(nPositions, count int) float64 {
	slots := nPositions
	if count > slots {
		slots = count
	}
	if slots <= 0 {
		return 0
	}
	return 1 / float64(slots)
}
