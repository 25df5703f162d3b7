// Package risk summarizes the equity curve of a finished simulation.
package risk

import (
	"math"
	"time"

	"github.com/wonny/equitysim/internal/backtest"
)

// TradingDaysPerYear annualizes daily statistics
const TradingDaysPerYear = 252

// Report is the risk profile of one run
type Report struct {
	Days                 int         `json:"days"`
	MeanDailyReturn      float64     `json:"mean_daily_return"`
	DailyVolatility      float64     `json:"daily_volatility"`
	AnnualizedVolatility float64     `json:"annualized_volatility"`
	Sharpe               float64     `json:"sharpe"` // risk-free rate 0
	MaxDrawdown          float64     `json:"max_drawdown"`
	DrawdownPeak         time.Time   `json:"drawdown_peak"`
	DrawdownTrough       time.Time   `json:"drawdown_trough"`
	VaR                  []VaRResult `json:"var"`
}

// Confidences reported by Analyze
var Confidences = []float64{0.95, 0.99}

// DailyReturns converts end-of-day equity into simple returns; the first
// date is measured against initialCash.
func DailyReturns(initialCash float64, snaps []backtest.Snapshot) []float64 {
	out := make([]float64, 0, len(snaps))
	prev := initialCash
	for _, s := range snaps {
		if prev != 0 {
			out = append(out, s.Equity/prev-1)
		}
		prev = s.Equity
	}
	return out
}

// Analyze builds the risk report of result
func Analyze(result *backtest.Result) Report {
	returns := DailyReturns(result.InitialCash, result.Snapshots)

	rep := Report{
		Days:            len(returns),
		MeanDailyReturn: Mean(returns),
		DailyVolatility: StdDev(returns),
	}
	rep.AnnualizedVolatility = rep.DailyVolatility * math.Sqrt(TradingDaysPerYear)
	if rep.DailyVolatility > 0 {
		rep.Sharpe = rep.MeanDailyReturn / rep.DailyVolatility * math.Sqrt(TradingDaysPerYear)
	}

	peak, peakDate := result.InitialCash, result.Start
	for _, s := range result.Snapshots {
		if s.Equity > peak {
			peak, peakDate = s.Equity, s.Date
			continue
		}
		if peak <= 0 {
			continue
		}
		if dd := 1 - s.Equity/peak; dd > rep.MaxDrawdown {
			rep.MaxDrawdown = dd
			rep.DrawdownPeak = peakDate
			rep.DrawdownTrough = s.Date
		}
	}

	for _, c := range Confidences {
		rep.VaR = append(rep.VaR, CalculateVaR(returns, c))
	}
	return rep
}
