package strategyconfig

import (
	"fmt"
)

// ValidationError is a configuration error; the engine refuses to start
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning flags a legal but suspicious setting
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Selection ===
	s := cfg.Selection
	if s.Policy != PolicyScore && s.Policy != PolicySignal {
		return ValidationError{"selection.policy", fmt.Sprintf("must be %s or %s, got %q", PolicyScore, PolicySignal, s.Policy)}
	}
	if s.NPositions <= 0 {
		return ValidationError{"selection.n_positions", "must be > 0"}
	}
	if s.MinPositions < 0 {
		return ValidationError{"selection.min_positions", "must be >= 0"}
	}
	if gate := s.Gate(); gate != GateEither && gate != GateBoth {
		return ValidationError{"selection.breadth_gate", fmt.Sprintf("must be %s or %s, got %q", GateEither, GateBoth, gate)}
	}
	if s.TopN != NoCap && s.TopN < 1 {
		return ValidationError{"selection.topn", "must be -1 (no cap) or >= 1"}
	}
	if s.Policy == PolicyScore {
		// Shorts, caps and sampling only exist for the signal policy
		if !s.IncludeShort {
			return ValidationError{"selection.include_short", "only applies to the signal policy"}
		}
		if s.TopN != NoCap || s.CapToNPositions {
			return ValidationError{"selection.topn", "subsampling only applies to the signal policy"}
		}
	}
	seen := make(map[string]bool, len(s.Exclude))
	for i, ticker := range s.Exclude {
		if ticker == "" {
			return ValidationError{fmt.Sprintf("selection.exclude[%d]", i), "empty ticker"}
		}
		if seen[ticker] {
			return ValidationError{fmt.Sprintf("selection.exclude[%d]", i), fmt.Sprintf("duplicate ticker %s", ticker)}
		}
		seen[ticker] = true
	}

	// === Portfolio ===
	if cfg.Portfolio.InitialCash <= 0 {
		return ValidationError{"portfolio.initial_cash", "must be > 0"}
	}
	if cfg.Portfolio.MarginAllowance < 0 {
		return ValidationError{"portfolio.margin_allowance", "must be >= 0"}
	}
	if cfg.Portfolio.PriceField != "close" && cfg.Portfolio.PriceField != "open" {
		return ValidationError{"portfolio.price_field", "must be close or open"}
	}

	// === Costs ===
	if cfg.Costs.CommissionRate < 0 {
		return ValidationError{"costs.commission_rate", "must be >= 0"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning
	s := cfg.Selection

	if s.MinPositions > s.NPositions && s.Policy == PolicyScore {
		warnings = append(warnings, Warning{
			Code:    "GATE_ALWAYS_CLOSED",
			Message: "min_positions > n_positions: score candidates are truncated to n_positions, so the gate never opens",
		})
	}

	if s.Policy == PolicySignal && s.SampleCap() == NoCap {
		warnings = append(warnings, Warning{
			Code:    "UNCAPPED_SIGNALS",
			Message: "signal policy without topn: weights shrink to 1/count when more than n_positions qualify",
		})
	}

	if s.Policy == PolicySignal && !s.IncludeShort && s.Gate() == GateEither && s.MinPositions > 0 {
		warnings = append(warnings, Warning{
			Code:    "SHORTS_DISABLED_EITHER_GATE",
			Message: "include_short=false with breadth_gate=either: the short side is always empty, no date will trade",
		})
	}

	if cfg.Costs.CommissionRate > 0.05 {
		warnings = append(warnings, Warning{
			Code:    "HIGH_COMMISSION",
			Message: "commission_rate > 0.05 per share",
		})
	}

	return warnings
}
