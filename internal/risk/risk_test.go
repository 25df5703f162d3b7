package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/equitysim/internal/backtest"
)

func TestCalculateVaR(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.03, -0.05, 0.00, 0.02, -0.01, 0.01, 0.02, -0.03}

	r := CalculateVaR(returns, 0.90)
	// floor(0.1*10)=1 → second worst
	assert.InDelta(t, 0.03, r.VaR, 1e-12)
	assert.InDelta(t, 0.04, r.CVaR, 1e-12)

	gains := CalculateVaR([]float64{0.01, 0.02}, 0.95)
	assert.Zero(t, gains.VaR)
	assert.Zero(t, gains.CVaR)

	assert.Equal(t, VaRResult{Confidence: 0.99}, CalculateVaR(nil, 0.99))
}

func TestStdDev(t *testing.T) {
	assert.Zero(t, StdDev([]float64{1}))
	assert.InDelta(t, math.Sqrt(2.5), StdDev([]float64{1, 2, 3, 4, 5}), 1e-12)
}

func day(d int) time.Time {
	return time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestAnalyze(t *testing.T) {
	result := &backtest.Result{
		InitialCash: 100,
		Start:       day(2),
		Snapshots: []backtest.Snapshot{
			{Date: day(2), Equity: 110},
			{Date: day(3), Equity: 99},
			{Date: day(6), Equity: 88},
			{Date: day(7), Equity: 120},
		},
	}

	rep := Analyze(result)
	require.Equal(t, 4, rep.Days)
	assert.InDelta(t, 0.2, rep.MaxDrawdown, 1e-12)
	assert.True(t, rep.DrawdownPeak.Equal(day(2)))
	assert.True(t, rep.DrawdownTrough.Equal(day(6)))
	assert.Greater(t, rep.DailyVolatility, 0.0)
	require.Len(t, rep.VaR, 2)
	assert.InDelta(t, 0.11111111, rep.VaR[0].VaR, 1e-6)
}

func TestAnalyze_Flat(t *testing.T) {
	rep := Analyze(&backtest.Result{
		InitialCash: 100,
		Snapshots:   []backtest.Snapshot{{Date: day(2), Equity: 100}, {Date: day(3), Equity: 100}},
	})
	assert.Zero(t, rep.Sharpe)
	assert.Zero(t, rep.MaxDrawdown)
}

func TestDailyReturns(t *testing.T) {
	got := DailyReturns(100, []backtest.Snapshot{{Equity: 110}, {Equity: 121}})
	require.Len(t, got, 2)
	assert.InDelta(t, 0.1, got[0], 1e-12)
	assert.InDelta(t, 0.1, got[1], 1e-12)
}
