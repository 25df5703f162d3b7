package backtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/equitysim/internal/audit"
	"github.com/wonny/equitysim/internal/contracts"
	"github.com/wonny/equitysim/internal/feed"
	"github.com/wonny/equitysim/internal/strategyconfig"
)

func scoreConfig(n, min int) *strategyconfig.Config {
	cfg := strategyconfig.Default()
	cfg.Meta.StrategyID = "test"
	cfg.Selection.NPositions = n
	cfg.Selection.MinPositions = min
	return &cfg
}

type row struct {
	date   time.Time
	ticker string
	score  float64
	price  float64
}

func scoreFeed(t *testing.T, rows ...row) *feed.Feed {
	t.Helper()
	series := map[string][]contracts.Observation{}
	for _, r := range rows {
		series[r.ticker] = append(series[r.ticker], contracts.Observation{
			Ticker: r.ticker, Date: r.date, Score: contracts.Float(r.score), Close: r.price,
		})
	}
	f, err := feed.New(series, feed.RequireScore)
	require.NoError(t, err)
	return f
}

func runEngine(t *testing.T, cfg *strategyconfig.Config, f Feed, verbose bool) (*Result, []contracts.AuditRecord) {
	t.Helper()
	sink := audit.NewMemorySink()
	engine, err := NewEngine(cfg, audit.NewLog(sink, verbose), nil)
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), f)
	require.NoError(t, err)
	return result, sink.Records()
}

func labels(records []contracts.AuditRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = fmt.Sprintf("%s %s %s", r.Ticker, r.Action, r.Outcome)
	}
	return out
}

// A(+0.05), B(+0.02), C(-0.03), n_positions=2, min_positions=1
func TestRun_ScoreScenario(t *testing.T) {
	f := scoreFeed(t,
		row{day1, "A", 0.05, 100},
		row{day1, "B", 0.02, 50},
		row{day1, "C", -0.03, 25},
	)

	result, records := runEngine(t, scoreConfig(2, 1), f, true)

	assert.Equal(t, []string{
		"C open_short filled",
		"A open_long filled",
		"B open_long filled",
	}, labels(records))
	for _, r := range records {
		assert.Equal(t, "2024-01-02T00:00:00", r.Timestamp)
	}

	assert.Equal(t, 1, result.TradingDays)
	assert.Equal(t, 3, result.Filled)
	weights := map[string]float64{}
	for _, p := range result.Final.Positions {
		weights[p.Ticker] = p.Weight
	}
	assert.InDelta(t, 0.5, weights["A"], 0.01)
	assert.InDelta(t, 0.5, weights["B"], 0.01)
	assert.InDelta(t, -0.5, weights["C"], 0.01)
}

// same cross-section with min_positions=3: nothing trades
func TestRun_ScoreScenarioGated(t *testing.T) {
	f := scoreFeed(t,
		row{day1, "A", 0.05, 100},
		row{day1, "B", 0.02, 50},
		row{day1, "C", -0.03, 25},
	)

	result, records := runEngine(t, scoreConfig(2, 3), f, true)

	assert.Empty(t, records)
	assert.Equal(t, 1, result.GatedDays)
	assert.Empty(t, result.Final.Positions)
	assert.Equal(t, result.InitialCash, result.FinalEquity)
}

func TestRun_GatedDateClosesHoldings(t *testing.T) {
	f := scoreFeed(t,
		row{day1, "A", 0.05, 100},
		row{day1, "B", 0.02, 50},
		row{day1, "C", -0.03, 25},
		// day 2: no shorts, the either-gate aborts
		row{day2, "A", 0.05, 100},
		row{day2, "B", 0.02, 50},
	)

	result, records := runEngine(t, scoreConfig(2, 1), f, true)

	require.Len(t, records, 6)
	assert.Equal(t, []string{
		"A close filled",
		"B close filled",
		"C close filled",
	}, labels(records[3:]), "C has no day-2 row; its last known price is used")
	assert.Equal(t, 1, result.GatedDays)
}

func TestRun_CloseOnDropComesFirst(t *testing.T) {
	f := scoreFeed(t,
		row{day1, "A", 0.05, 100},
		row{day1, "B", 0.02, 50},
		row{day1, "C", -0.03, 25},
		row{day2, "A", 0.05, 100},
		row{day2, "B", 0, 50},
		row{day2, "C", -0.03, 25},
		row{day2, "D", 0.04, 10},
	)

	_, records := runEngine(t, scoreConfig(2, 1), f, true)

	day2Records := records[3:]
	require.NotEmpty(t, day2Records)
	assert.Equal(t, "B", day2Records[0].Ticker)
	assert.Equal(t, "close", day2Records[0].Action)

	var sawD bool
	for _, r := range day2Records {
		if r.Ticker == "D" {
			sawD = true
			assert.Equal(t, "open_long", r.Action)
		}
	}
	assert.True(t, sawD)
}

func TestRun_QuietLogKeepsOnlyRejections(t *testing.T) {
	cfg := scoreConfig(2, 1)
	cfg.Selection.Policy = strategyconfig.PolicySignal
	cfg.Selection.IncludeShort = true
	cfg.Costs.CommissionRate = 2.0

	series := map[string][]contracts.Observation{
		"A": {{Ticker: "A", Date: day1, Signal: contracts.Int(1), Close: 100}},
		"B": {{Ticker: "B", Date: day1, Signal: contracts.Int(1), Close: 100}},
	}
	f, err := feed.New(series, feed.RequireSignal)
	require.NoError(t, err)

	result, records := runEngine(t, cfg, f, false)

	// A: 500 shares + 1000 commission; B: 495 shares + 990 overshoots cash
	assert.Equal(t, []string{"B open_long rejected: insufficient cash"}, labels(records))
	assert.Equal(t, 1, result.Rejected)
	assert.Equal(t, 1, result.Filled)
}

func TestRun_ReplayIsByteIdentical(t *testing.T) {
	cfg := scoreConfig(3, 1)
	cfg.Selection.Policy = strategyconfig.PolicySignal
	cfg.Selection.TopN = 3
	cfg.Selection.Seed = 7

	series := map[string][]contracts.Observation{}
	dates := []time.Time{day1, day2, day2.AddDate(0, 0, 1)}
	for i := 0; i < 12; i++ {
		ticker := fmt.Sprintf("T%02d", i)
		for j, d := range dates {
			signal := 1
			if (i+j)%3 == 0 {
				signal = -1
			}
			series[ticker] = append(series[ticker], contracts.Observation{
				Ticker: ticker, Date: d, Signal: contracts.Int(signal), Close: float64(10 + i + j),
			})
		}
	}
	f, err := feed.New(series, feed.RequireSignal)
	require.NoError(t, err)

	dir := t.TempDir()
	run := func(name string) []byte {
		path := filepath.Join(dir, name)
		sink, err := audit.NewCSVSink(path)
		require.NoError(t, err)
		engine, err := NewEngine(cfg, audit.NewLog(sink, true), nil)
		require.NoError(t, err)
		_, err = engine.Run(context.Background(), f)
		require.NoError(t, err)
		require.NoError(t, sink.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		return data
	}

	first := run("first.csv")
	second := run("second.csv")
	assert.Greater(t, len(first), len("timestamp,ticker,action,outcome,price\n"))
	assert.Equal(t, string(first), string(second))
}

func TestRun_Cancelled(t *testing.T) {
	f := scoreFeed(t, row{day1, "A", 0.05, 100})
	engine, err := NewEngine(scoreConfig(2, 0), audit.NewLog(audit.NewMemorySink(), true), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = engine.Run(ctx, f)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := scoreConfig(0, 1)
	_, err := NewEngine(cfg, audit.NewLog(audit.NewMemorySink(), true), nil)
	assert.Error(t, err)

	_, err = NewEngine(scoreConfig(2, 1), nil, nil)
	assert.Error(t, err)
}

func TestRequirement(t *testing.T) {
	cfg := scoreConfig(2, 1)
	e, err := NewEngine(cfg, audit.NewLog(audit.NewMemorySink(), true), nil)
	require.NoError(t, err)
	assert.Equal(t, feed.RequireScore, Requirement(cfg.Selection))
	assert.Len(t, e.ConfigHash(), 64)

	cfg.Selection.Policy = strategyconfig.PolicySignal
	assert.Equal(t, feed.RequireSignal, Requirement(cfg.Selection))
}

func TestResult_SnapshotAt(t *testing.T) {
	f := scoreFeed(t,
		row{day1, "A", 0.05, 100},
		row{day2, "A", 0.05, 110},
	)
	result, _ := runEngine(t, scoreConfig(1, 0), f, true)

	snap, ok := result.SnapshotAt(day2.Add(5 * time.Hour))
	require.True(t, ok)
	assert.Equal(t, day2, snap.Date)
	_, ok = result.SnapshotAt(day2.AddDate(0, 0, 5))
	assert.False(t, ok)
}
