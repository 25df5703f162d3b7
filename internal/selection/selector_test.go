package selection

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/equitysim/internal/contracts"
	"github.com/wonny/equitysim/internal/strategyconfig"
)

var testDate = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func scores(m map[string]float64) contracts.CrossSection {
	cs := contracts.CrossSection{Date: testDate}
	for t, s := range m {
		cs.Observations = append(cs.Observations, contracts.Observation{Ticker: t, Date: testDate, Score: contracts.Float(s), Close: 100})
	}
	sort.Slice(cs.Observations, func(i, j int) bool { return cs.Observations[i].Ticker < cs.Observations[j].Ticker })
	return cs
}

func signals(m map[string]int) contracts.CrossSection {
	cs := contracts.CrossSection{Date: testDate}
	for t, s := range m {
		cs.Observations = append(cs.Observations, contracts.Observation{Ticker: t, Date: testDate, Signal: contracts.Int(s), Close: 100})
	}
	sort.Slice(cs.Observations, func(i, j int) bool { return cs.Observations[i].Ticker < cs.Observations[j].Ticker })
	return cs
}

func scoreConfig(n, min int) strategyconfig.Selection {
	cfg := strategyconfig.Default().Selection
	cfg.NPositions = n
	cfg.MinPositions = min
	return cfg
}

func TestScorePolicy_RanksAndTruncates(t *testing.T) {
	p := &ScorePolicy{NPositions: 2}
	longs, shorts := p.Candidates(scores(map[string]float64{
		"A": 0.05, "B": 0.02, "C": -0.03, "D": 0.09, "E": -0.10, "F": 0, "G": -0.01,
	}))

	assert.Equal(t, []string{"D", "A"}, longs)
	assert.Equal(t, []string{"E", "C"}, shorts, "most negative first")
}

func TestScorePolicy_TiesKeepTickerOrder(t *testing.T) {
	p := &ScorePolicy{NPositions: 3}
	longs, _ := p.Candidates(scores(map[string]float64{"C": 0.1, "A": 0.1, "B": 0.1, "D": 0.1}))

	assert.Equal(t, []string{"A", "B", "C"}, longs)
}

func TestScorePolicy_SkipsMissingScore(t *testing.T) {
	cs := scores(map[string]float64{"A": 0.1})
	cs.Observations = append(cs.Observations, contracts.Observation{Ticker: "B", Date: testDate})

	longs, shorts := (&ScorePolicy{NPositions: 5}).Candidates(cs)
	assert.Equal(t, []string{"A"}, longs)
	assert.Empty(t, shorts)
}

// D: A(+0.05), B(+0.02), C(-0.03), n_positions=2, min_positions=1
func TestSelector_ScoreScenario(t *testing.T) {
	sel, err := NewSelector(scoreConfig(2, 1), nil, nil)
	require.NoError(t, err)

	set := sel.Select(scores(map[string]float64{"A": 0.05, "B": 0.02, "C": -0.03}))
	assert.False(t, set.Gated)
	assert.Equal(t, []string{"A", "B"}, set.Longs)
	assert.Equal(t, []string{"C"}, set.Shorts)
}

// same cross-section with min_positions=3: either side short aborts both
func TestSelector_ScoreScenarioGated(t *testing.T) {
	sel, err := NewSelector(scoreConfig(2, 3), nil, nil)
	require.NoError(t, err)

	set := sel.Select(scores(map[string]float64{"A": 0.05, "B": 0.02, "C": -0.03}))
	assert.True(t, set.Gated)
	assert.True(t, set.IsEmpty())
}

func TestSelector_GateModes(t *testing.T) {
	cs := signals(map[string]int{"A": 1, "B": 1, "C": 1, "D": -1})

	tests := []struct {
		gate  string
		gated bool
	}{
		{strategyconfig.GateEither, true}, // shorts=1 < 2
		{strategyconfig.GateBoth, false},  // longs=3 >= 2
	}

	for _, tt := range tests {
		t.Run(tt.gate, func(t *testing.T) {
			cfg := scoreConfig(10, 2)
			cfg.Policy = strategyconfig.PolicySignal
			cfg.BreadthGate = tt.gate

			sel, err := NewSelector(cfg, nil, nil)
			require.NoError(t, err)
			set := sel.Select(cs)
			assert.Equal(t, tt.gated, set.Gated)
		})
	}
}

func TestSelector_SignalBothSidesThin(t *testing.T) {
	cfg := scoreConfig(10, 2)
	cfg.Policy = strategyconfig.PolicySignal

	sel, err := NewSelector(cfg, nil, nil)
	require.NoError(t, err)

	set := sel.Select(signals(map[string]int{"A": 1, "B": -1, "C": 0}))
	assert.True(t, set.Gated, "default signal gate aborts when both sides are thin")
}

func TestSelector_ExcludeList(t *testing.T) {
	cfg := scoreConfig(2, 1)
	cfg.Exclude = []string{"A"}

	sel, err := NewSelector(cfg, nil, nil)
	require.NoError(t, err)

	set := sel.Select(scores(map[string]float64{"A": 0.05, "B": 0.02, "C": -0.03, "D": 0.01}))
	assert.Equal(t, []string{"B", "D"}, set.Longs, "excluded ticker frees its slot")
	assert.False(t, set.Contains("A"))
}

type fixedPolicy struct{ longs, shorts []string }

func (p fixedPolicy) Name() string { return "fixed" }

func (p fixedPolicy) Candidates(cs contracts.CrossSection) ([]string, []string) {
	var longs []string
	for _, tk := range p.longs {
		if _, ok := cs.Get(tk); ok {
			longs = append(longs, tk)
		}
	}
	return longs, p.shorts
}

func TestSelector_CustomPolicy(t *testing.T) {
	cs := scores(map[string]float64{"A": 1, "B": 1, "C": 1})
	policy := fixedPolicy{longs: []string{"A", "B"}}

	s := NewSelectorWithPolicy(policy, strategyconfig.GateBoth, 1, []string{"B"}, nil)
	set := s.Select(cs)
	assert.False(t, set.Gated)
	assert.Equal(t, []string{"A"}, set.Longs, "excluded tickers never reach the policy")
	assert.Empty(t, set.Shorts)

	s = NewSelectorWithPolicy(policy, strategyconfig.GateBoth, 2, nil, nil)
	set = s.Select(cs)
	assert.True(t, set.Gated, "both sides under 2")
	assert.Empty(t, set.Longs)
}

func TestSelector_UnknownPolicy(t *testing.T) {
	cfg := scoreConfig(2, 1)
	cfg.Policy = "momentum"

	_, err := NewSelector(cfg, nil, nil)
	var verr strategyconfig.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "selection.policy", verr.Field)
}

func TestSelector_SamplingNeedsRand(t *testing.T) {
	cfg := scoreConfig(2, 1)
	cfg.Policy = strategyconfig.PolicySignal
	cfg.TopN = 1

	_, err := NewSelector(cfg, nil, nil)
	assert.Error(t, err)
}

func TestSignalPolicy_Membership(t *testing.T) {
	cs := signals(map[string]int{"D": 1, "B": 1, "C": -1, "A": 0})

	longs, shorts := (&SignalPolicy{IncludeShort: true, Cap: strategyconfig.NoCap}).Candidates(cs)
	assert.Equal(t, []string{"B", "D"}, longs)
	assert.Equal(t, []string{"C"}, shorts)

	longs, shorts = (&SignalPolicy{IncludeShort: false, Cap: strategyconfig.NoCap}).Candidates(cs)
	assert.Equal(t, []string{"B", "D"}, longs)
	assert.Empty(t, shorts)
}

func TestSignalPolicy_SampleIsSeeded(t *testing.T) {
	m := map[string]int{}
	for i := 0; i < 30; i++ {
		m[fmt.Sprintf("T%02d", i)] = 1
	}
	cs := signals(m)

	run := func(seed uint64) []string {
		p := &SignalPolicy{IncludeShort: true, NPositions: 10, Cap: 5, Rand: rand.New(rand.NewPCG(seed, seed))}
		longs, _ := p.Candidates(cs)
		return longs
	}

	first := run(42)
	assert.Len(t, first, 5)
	assert.True(t, sort.StringsAreSorted(first))
	assert.Equal(t, first, run(42), "same seed, same sample")
}

func TestSignalPolicy_NoSampleUnderCap(t *testing.T) {
	cs := signals(map[string]int{"A": 1, "B": 1})
	p := &SignalPolicy{Cap: 5, Rand: rand.New(rand.NewPCG(1, 1))}

	longs, _ := p.Candidates(cs)
	assert.Equal(t, []string{"A", "B"}, longs)
}

func TestSignalPolicy_NoSampleWithinNPositions(t *testing.T) {
	cfg := scoreConfig(10, 1)
	cfg.Policy = strategyconfig.PolicySignal
	cfg.TopN = 2

	s, err := NewSelector(cfg, rand.New(rand.NewPCG(1, 1)), nil)
	require.NoError(t, err)

	set := s.Select(signals(map[string]int{"A": 1, "B": 1, "C": 1, "D": 1}))
	assert.Equal(t, []string{"A", "B", "C", "D"}, set.Longs, "4 names fit in 10 slots, topn does not apply")
}

func TestSignalPolicy_SamplesToTopNAboveNPositions(t *testing.T) {
	cfg := scoreConfig(3, 1)
	cfg.Policy = strategyconfig.PolicySignal
	cfg.TopN = 2

	s, err := NewSelector(cfg, rand.New(rand.NewPCG(1, 1)), nil)
	require.NoError(t, err)

	set := s.Select(signals(map[string]int{"A": 1, "B": 1, "C": 1, "D": 1}))
	assert.Len(t, set.Longs, 2)
}

func TestSignalPolicy_CapToNPositions(t *testing.T) {
	cfg := scoreConfig(3, 1)
	cfg.Policy = strategyconfig.PolicySignal
	cfg.CapToNPositions = true

	s, err := NewSelector(cfg, rand.New(rand.NewPCG(1, 1)), nil)
	require.NoError(t, err)

	set := s.Select(signals(map[string]int{"A": 1, "B": 1, "C": 1, "D": 1, "E": 1}))
	assert.Len(t, set.Longs, 3)
}

func TestScreener(t *testing.T) {
	s := NewScreener([]string{"B"})
	out, removed := s.Screen(scores(map[string]float64{"A": 1, "B": 1, "C": 1}))

	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"A", "C"}, out.Tickers())
	assert.True(t, s.Excluded("B"))
	assert.False(t, s.Excluded("A"))
}

func TestScorePolicy_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("sides are disjoint, capped and correctly signed", prop.ForAll(
		func(raw []float64, n int) bool {
			m := make(map[string]float64, len(raw))
			for i, v := range raw {
				m[fmt.Sprintf("T%03d", i)] = v
			}
			cs := scores(m)
			longs, shorts := (&ScorePolicy{NPositions: n}).Candidates(cs)

			if len(longs) > n || len(shorts) > n {
				return false
			}
			seen := map[string]bool{}
			for _, tk := range longs {
				o, _ := cs.Get(tk)
				if *o.Score <= 0 || seen[tk] {
					return false
				}
				seen[tk] = true
			}
			for _, tk := range shorts {
				o, _ := cs.Get(tk)
				if *o.Score >= 0 || seen[tk] {
					return false
				}
				seen[tk] = true
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(-1, 1)),
		gen.IntRange(1, 15),
	))

	properties.Property("sides over n_positions are sampled to cap members drawn from the side", prop.ForAll(
		func(count, n, limit int, seed uint64) bool {
			m := map[string]int{}
			for i := 0; i < count; i++ {
				m[fmt.Sprintf("T%03d", i)] = 1
			}
			p := &SignalPolicy{NPositions: n, Cap: limit, Rand: rand.New(rand.NewPCG(seed, seed))}
			longs, _ := p.Candidates(signals(m))

			want := count
			if count > n && count > limit {
				want = limit
			}
			if len(longs) != want {
				return false
			}
			seen := map[string]bool{}
			for _, tk := range longs {
				if _, ok := m[tk]; !ok || seen[tk] {
					return false
				}
				seen[tk] = true
			}
			return true
		},
		gen.IntRange(0, 60),
		gen.IntRange(1, 20),
		gen.IntRange(1, 20),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
