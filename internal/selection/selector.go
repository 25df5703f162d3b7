package selection

import (
	"math/rand/v2"

	"github.com/wonny/equitysim/internal/contracts"
	"github.com/wonny/equitysim/internal/strategyconfig"
	"github.com/wonny/equitysim/pkg/logger"
)

// Selector applies the exclusion screen, a policy and the breadth gate
type Selector struct {
	policy       Policy
	screener     *Screener
	gate         string
	minPositions int
	logger       *logger.Logger
}

// NewSelector builds the configured policy. rng feeds the signal policy's
// subsampling and must be seeded once per run.
func NewSelector(cfg strategyconfig.Selection, rng *rand.Rand, log *logger.Logger) (*Selector, error) {
	if log == nil {
		log = logger.NewNop()
	}

	var policy Policy
	switch cfg.Policy {
	case strategyconfig.PolicyScore:
		policy = &ScorePolicy{NPositions: cfg.NPositions}
	case strategyconfig.PolicySignal:
		if cfg.SampleCap() != strategyconfig.NoCap && rng == nil {
			return nil, strategyconfig.ValidationError{Field: "selection.seed", Message: "sampling requires a random source"}
		}
		policy = &SignalPolicy{
			IncludeShort: cfg.IncludeShort,
			NPositions:   cfg.NPositions,
			Cap:          cfg.SampleCap(),
			Rand:         rng,
		}
	default:
		return nil, strategyconfig.ValidationError{Field: "selection.policy", Message: "unknown policy " + cfg.Policy}
	}

	gate := cfg.Gate()
	if gate != strategyconfig.GateEither && gate != strategyconfig.GateBoth {
		return nil, strategyconfig.ValidationError{Field: "selection.breadth_gate", Message: "unknown gate " + gate}
	}

	return NewSelectorWithPolicy(policy, gate, cfg.MinPositions, cfg.Exclude, log), nil
}

// NewSelectorWithPolicy wires a custom policy behind the standard gate
func NewSelectorWithPolicy(policy Policy, gate string, minPositions int, exclude []string, log *logger.Logger) *Selector {
	if log == nil {
		log = logger.NewNop()
	}
	return &Selector{
		policy:       policy,
		screener:     NewScreener(exclude),
		gate:         gate,
		minPositions: minPositions,
		logger:       log,
	}
}

// Select produces the candidate set for one date
func (s *Selector) Select(cs contracts.CrossSection) contracts.CandidateSet {
	screened, excluded := s.screener.Screen(cs)
	longs, shorts := s.policy.Candidates(screened)

	set := contracts.CandidateSet{Date: cs.Date, Longs: longs, Shorts: shorts}
	if s.gated(len(longs), len(shorts)) {
		set = contracts.CandidateSet{Date: cs.Date, Gated: true}
	}

	s.logger.WithFields(map[string]interface{}{
		"date":     cs.Date.Format(contracts.DateLayout),
		"policy":   s.policy.Name(),
		"universe": len(cs.Observations),
		"excluded": excluded,
		"longs":    len(longs),
		"shorts":   len(shorts),
		"gated":    set.Gated,
	}).Debug("Candidates selected")

	return set
}

// gated reports whether the breadth gate aborts trading for the date
func (s *Selector) gated(nLongs, nShorts int) bool {
	longsThin := nLongs < s.minPositions
	shortsThin := nShorts < s.minPositions
	if s.gate == strategyconfig.GateBoth {
		return longsThin && shortsThin
	}
	return longsThin || shortsThin
}
