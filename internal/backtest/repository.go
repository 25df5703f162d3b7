package backtest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists finished runs and their equity curves
// ⭐ SSOT: backtest.runs / backtest.daily_snapshots 저장은 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new backtest repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRun stores the run summary and one row per snapshot in a single
// transaction. Re-saving a runID replaces its snapshots.
func (r *Repository) SaveRun(ctx context.Context, runID string, result *Result) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO backtest.runs (
			run_id, strategy_id, config_hash, start_date, end_date,
			trading_days, gated_days, orders, rejected,
			total_commission, initial_cash, final_equity, total_return
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (run_id) DO UPDATE SET
			trading_days = EXCLUDED.trading_days,
			gated_days = EXCLUDED.gated_days,
			orders = EXCLUDED.orders,
			rejected = EXCLUDED.rejected,
			total_commission = EXCLUDED.total_commission,
			final_equity = EXCLUDED.final_equity,
			total_return = EXCLUDED.total_return,
			created_at = NOW()
	`
	_, err = tx.Exec(ctx, query,
		runID, result.StrategyID, result.ConfigHash, result.Start, result.End,
		result.TradingDays, result.GatedDays, result.Orders, result.Rejected,
		result.TotalCommission, result.InitialCash, result.FinalEquity, result.TotalReturn,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM backtest.daily_snapshots WHERE run_id = $1", runID); err != nil {
		return fmt.Errorf("failed to delete old snapshots: %w", err)
	}

	snapQuery := `
		INSERT INTO backtest.daily_snapshots (
			run_id, date, equity, cash, gross_long, gross_short, positions
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, s := range result.Snapshots {
		positionsJSON, err := json.Marshal(s.Positions)
		if err != nil {
			return fmt.Errorf("failed to marshal positions: %w", err)
		}
		if _, err := tx.Exec(ctx, snapQuery, runID, s.Date, s.Equity, s.Cash, s.GrossLong, s.GrossShort, positionsJSON); err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}
	}

	return tx.Commit(ctx)
}
