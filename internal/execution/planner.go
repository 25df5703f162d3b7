// Package execution turns target weights into ordered orders and drives
// them through a broker and the audit trail.
package execution

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/equitysim/internal/contracts"
	"github.com/wonny/equitysim/pkg/logger"
)

// Planner emits the orders for one date
// ⭐ SSOT: 주문 계획 로직은 여기서만
type Planner struct {
	logger *logger.Logger
}

// NewPlanner creates a new execution planner
func NewPlanner(log *logger.Logger) *Planner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Planner{logger: log}
}

// Plan orders closes first, then shorts, then longs.
//  1. every held ticker absent from targets gets a close (ticker order)
//  2. shorts in candidate order (short proceeds fund the long book)
//  3. longs in candidate order
//
// Targets on a side already held are labelled resize.
func (p *Planner) Plan(cs contracts.CandidateSet, held map[string]int64, targets contracts.TargetWeights) []contracts.Order {
	orders := make([]contracts.Order, 0, len(held)+len(targets))

	// 1. 청산 먼저 (자금 확보)
	closing := make([]string, 0, len(held))
	for ticker, qty := range held {
		if qty == 0 {
			continue
		}
		if _, keep := targets[ticker]; !keep {
			closing = append(closing, ticker)
		}
	}
	sort.Strings(closing)
	for _, ticker := range closing {
		orders = append(orders, contracts.Order{
			Date:         cs.Date,
			Ticker:       ticker,
			TargetWeight: 0,
			Kind:         contracts.OrderClose,
		})
	}

	// 2. 숏, 3. 롱
	sides := []struct {
		tickers []string
		kind    contracts.OrderKind
	}{
		{cs.Shorts, contracts.OrderOpenShort},
		{cs.Longs, contracts.OrderOpenLong},
	}
	for _, side := range sides {
		for _, ticker := range side.tickers {
			w, ok := targets[ticker]
			if !ok {
				continue
			}
			orders = append(orders, contracts.Order{
				Date:         cs.Date,
				Ticker:       ticker,
				TargetWeight: w,
				Kind:         kindFor(side.kind, held[ticker]),
			})
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"date":   cs.Date.Format(contracts.DateLayout),
		"orders": len(orders),
		"closes": len(closing),
		"shorts": len(cs.Shorts),
		"longs":  len(cs.Longs),
	}).Debug("Execution plan created")

	return orders
}

func kindFor(open contracts.OrderKind, heldQty int64) contracts.OrderKind {
	if (open == contracts.OrderOpenLong && heldQty > 0) || (open == contracts.OrderOpenShort && heldQty < 0) {
		return contracts.OrderResize
	}
	return open
}

// Execute hands each order to the broker in sequence and appends exactly
// one audit record per order after it executes. An audit write failure
// stops the date; broker refusals do not.
func (p *Planner) Execute(ctx context.Context, orders []contracts.Order, broker Broker, audit contracts.AuditAppender) (Summary, error) {
	var sum Summary

	for _, order := range orders {
		out := broker.Execute(order)
		sum.record(out)

		if out.IsRejected() {
			p.logger.WithFields(map[string]interface{}{
				"date":   order.Date.Format(contracts.DateLayout),
				"ticker": order.Ticker,
				"kind":   order.Kind,
				"target": order.TargetWeight,
				"reason": out.Reason,
			}).Warn("Order rejected")
		}

		if err := audit.Append(ctx, contracts.NewAuditRecord(order, out)); err != nil {
			return sum, fmt.Errorf("audit %s %s: %w", order.Ticker, order.Date.Format(contracts.DateLayout), err)
		}
	}

	return sum, nil
}

// Step plans and executes one date against the broker's current holdings
func (p *Planner) Step(ctx context.Context, cs contracts.CandidateSet, targets contracts.TargetWeights, broker Broker, audit contracts.AuditAppender) ([]contracts.Order, Summary, error) {
	start := time.Now()
	orders := p.Plan(cs, broker.Holdings(), targets)
	sum, err := p.Execute(ctx, orders, broker, audit)

	p.logger.WithFields(map[string]interface{}{
		"date":       cs.Date.Format(contracts.DateLayout),
		"filled":     sum.Filled,
		"rejected":   sum.Rejected,
		"unchanged":  sum.Unchanged,
		"elapsed_us": time.Since(start).Microseconds(),
	}).Debug("Orders executed")

	return orders, sum, err
}
