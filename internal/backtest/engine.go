// Package backtest drives the date-by-date simulation: mark, select,
// allocate, plan, execute, audit, snapshot.
package backtest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/wonny/equitysim/internal/commission"
	"github.com/wonny/equitysim/internal/contracts"
	"github.com/wonny/equitysim/internal/execution"
	"github.com/wonny/equitysim/internal/feed"
	"github.com/wonny/equitysim/internal/portfolio"
	"github.com/wonny/equitysim/internal/selection"
	"github.com/wonny/equitysim/internal/strategyconfig"
	"github.com/wonny/equitysim/pkg/logger"
)

// Feed is the cross-section source the engine iterates
type Feed interface {
	Next() (contracts.CrossSection, bool)
	Reset()
	Len() int
}

// Engine runs backtesting simulations
// ⭐ SSOT: 백테스팅 실행은 여기서만
type Engine struct {
	cfg        *strategyconfig.Config
	hash       string
	commission commission.Model
	allocator  *portfolio.Allocator
	planner    *execution.Planner
	audit      contracts.AuditAppender
	logger     *logger.Logger
}

// Result holds backtest results
type Result struct {
	StrategyID  string    `json:"strategy_id"`
	ConfigHash  string    `json:"config_hash"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	TradingDays int       `json:"trading_days"`
	GatedDays   int       `json:"gated_days"`

	// Trading metrics
	Orders          int     `json:"orders"`
	Filled          int     `json:"filled"`
	Unchanged       int     `json:"unchanged"`
	Rejected        int     `json:"rejected"`
	TotalCommission float64 `json:"total_commission"`

	InitialCash float64 `json:"initial_cash"`
	FinalEquity float64 `json:"final_equity"`
	TotalReturn float64 `json:"total_return"`

	// Equity curve
	Snapshots []Snapshot `json:"snapshots"`
	Final     Snapshot   `json:"final"`
}

// SnapshotAt returns the snapshot taken at the end of date
func (r *Result) SnapshotAt(date time.Time) (Snapshot, bool) {
	day := contracts.Day(date)
	for _, s := range r.Snapshots {
		if s.Date.Equal(day) {
			return s, true
		}
	}
	return Snapshot{}, false
}

// NewEngine validates cfg and wires the pipeline. audit receives one
// record per order attempt; verbosity filtering is the appender's job.
func NewEngine(cfg *strategyconfig.Config, audit contracts.AuditAppender, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if err := strategyconfig.Validate(cfg); err != nil {
		return nil, err
	}
	if audit == nil {
		return nil, fmt.Errorf("audit appender is required")
	}

	model, err := commission.NewFixed(cfg.Costs.CommissionRate)
	if err != nil {
		return nil, err
	}
	hash, err := strategyconfig.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash strategy config: %w", err)
	}

	return &Engine{
		cfg:        cfg,
		hash:       hash,
		commission: model,
		allocator:  portfolio.NewAllocator(log),
		planner:    execution.NewPlanner(log),
		audit:      audit,
		logger:     log,
	}, nil
}

// ConfigHash returns the SHA-256 of the strategy config
func (e *Engine) ConfigHash() string {
	return e.hash
}

// Requirement is the value every observation must carry for the policy
func Requirement(sel strategyconfig.Selection) feed.Requirement {
	if sel.Policy == strategyconfig.PolicySignal {
		return feed.RequireSignal
	}
	return feed.RequireScore
}

// Run executes a backtest over every date of f. A fresh portfolio and
// random source are created per call, so identical inputs replay
// identically. Cancellation is checked between dates.
func (e *Engine) Run(ctx context.Context, f Feed) (*Result, error) {
	seed := uint64(e.cfg.Selection.Seed)
	rng := rand.New(rand.NewPCG(seed, seed))

	selector, err := selection.NewSelector(e.cfg.Selection, rng, e.logger)
	if err != nil {
		return nil, err
	}
	pf, err := NewPortfolio(e.cfg.Portfolio.InitialCash, e.commission, e.cfg.Portfolio.MarginAllowance)
	if err != nil {
		return nil, err
	}
	priceField := contracts.PriceField(e.cfg.Portfolio.PriceField)

	e.logger.WithFields(map[string]interface{}{
		"strategy_id":  e.cfg.Meta.StrategyID,
		"config_hash":  e.hash,
		"policy":       e.cfg.Selection.Policy,
		"breadth_gate": e.cfg.Selection.Gate(),
		"dates":        f.Len(),
		"initial_cash": e.cfg.Portfolio.InitialCash,
	}).Info("Starting backtest")

	startTime := time.Now()
	result := &Result{
		StrategyID:  e.cfg.Meta.StrategyID,
		ConfigHash:  e.hash,
		InitialCash: e.cfg.Portfolio.InitialCash,
		Snapshots:   make([]Snapshot, 0, f.Len()),
	}

	var total execution.Summary
	f.Reset()
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest interrupted: %w", err)
		}

		cs, ok := f.Next()
		if !ok {
			break
		}
		if result.TradingDays == 0 {
			result.Start = cs.Date
		}
		result.End = cs.Date
		result.TradingDays++

		// 1. 시가평가
		pf.Mark(cs.Date, cs.Prices(priceField))

		// 2. 후보 선정 → 3. 목표 비중
		set := selector.Select(cs)
		if set.Gated {
			result.GatedDays++
		}
		targets := e.allocator.Allocate(set, e.cfg.Selection.NPositions)

		// 4. 주문 → 체결 → 감사 로그
		_, sum, err := e.planner.Step(ctx, set, targets, pf, e.audit)
		if err != nil {
			return nil, err
		}
		total.Add(sum)

		result.Snapshots = append(result.Snapshots, pf.Snapshot())
	}

	result.Orders = total.Orders
	result.Filled = total.Filled
	result.Unchanged = total.Unchanged
	result.Rejected = total.Rejected
	result.TotalCommission = pf.TotalCommission().InexactFloat64()
	result.Final = pf.Snapshot()
	result.FinalEquity = result.Final.Equity
	result.TotalReturn = (result.FinalEquity - result.InitialCash) / result.InitialCash

	e.logger.WithFields(map[string]interface{}{
		"duration":     time.Since(startTime).Seconds(),
		"trading_days": result.TradingDays,
		"gated_days":   result.GatedDays,
		"orders":       result.Orders,
		"rejected":     result.Rejected,
		"total_return": fmt.Sprintf("%.2f%%", result.TotalReturn*100),
	}).Info("Backtest completed")

	return result, nil
}
