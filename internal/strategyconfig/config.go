package strategyconfig

import "time"

// Selection policies
const (
	PolicyScore  = "score"  // rank continuous estimates
	PolicySignal = "signal" // membership on discrete {-1,0,1} signals
)

// Breadth gate modes
const (
	GateEither = "either" // abort the date when either side is under min_positions
	GateBoth   = "both"   // abort only when both sides are under min_positions
)

// NoCap is the topn value meaning "do not subsample"
const NoCap = -1

// Config is the full strategy configuration for one simulation
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Selection Selection `yaml:"selection" json:"selection"`
	Portfolio Portfolio `yaml:"portfolio" json:"portfolio"`
	Costs     Costs     `yaml:"costs" json:"costs"`
	Audit     Audit     `yaml:"audit" json:"audit"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Selection configures the candidate selector
type Selection struct {
	Policy       string `yaml:"policy" json:"policy"`
	NPositions   int    `yaml:"n_positions" json:"n_positions"`
	MinPositions int    `yaml:"min_positions" json:"min_positions"`
	// BreadthGate defaults per policy: score→either, signal→both
	BreadthGate     string   `yaml:"breadth_gate" json:"breadth_gate"`
	IncludeShort    bool     `yaml:"include_short" json:"include_short"`
	TopN            int      `yaml:"topn" json:"topn"`
	CapToNPositions bool     `yaml:"cap_to_n_positions" json:"cap_to_n_positions"`
	Seed            int64    `yaml:"seed" json:"seed"`
	Exclude         []string `yaml:"exclude" json:"exclude"`
}

// Gate returns the configured breadth gate or the policy default
func (s Selection) Gate() string {
	if s.BreadthGate != "" {
		return s.BreadthGate
	}
	if s.Policy == PolicySignal {
		return GateBoth
	}
	return GateEither
}

// SampleCap returns the size a signal-policy side is sampled down to once it
// has more than NPositions names, or NoCap when no sampling applies.
func (s Selection) SampleCap() int {
	if s.TopN != NoCap {
		return s.TopN
	}
	if s.CapToNPositions {
		return s.NPositions
	}
	return NoCap
}

// Portfolio configures the simulated account
type Portfolio struct {
	InitialCash float64 `yaml:"initial_cash" json:"initial_cash"`
	// MarginAllowance is how far cash may go negative, as a fraction of equity
	MarginAllowance float64 `yaml:"margin_allowance" json:"margin_allowance"`
	PriceField      string  `yaml:"price_field" json:"price_field"`
}

// Costs configures the commission scheme
type Costs struct {
	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate"`
}

// Audit configures the order audit trail
type Audit struct {
	Verbose        bool   `yaml:"verbose" json:"verbose"`
	LogDestination string `yaml:"log_destination" json:"log_destination"`
}

// Default returns the configuration applied before the YAML is decoded
func Default() Config {
	return Config{
		Meta: Meta{Version: "1"},
		Selection: Selection{
			Policy:       PolicyScore,
			NPositions:   10,
			MinPositions: 5,
			IncludeShort: true,
			TopN:         NoCap,
			Seed:         42,
		},
		Portfolio: Portfolio{
			InitialCash: 100_000,
			PriceField:  "close",
		},
		Costs: Costs{CommissionRate: 0.02},
		Audit: Audit{LogDestination: "backtest.csv"},
	}
}

// DecisionSnapshot pins the exact configuration of a run for reproducibility
type DecisionSnapshot struct {
	ConfigHash     string    `json:"config_hash"`
	ConfigYAML     string    `json:"config_yaml"`
	StrategyID     string    `json:"strategy_id"`
	DataSnapshotID string    `json:"data_snapshot_id"`
	CreatedAt      time.Time `json:"created_at"`
}
