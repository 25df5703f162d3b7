package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/equitysim/internal/contracts"
)

// Repository loads observations written by the research pipeline
// ⭐ SSOT: research.predictions 조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new observation repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadSeries returns per-ticker observations within [from, to]. A zero
// bound is open.
func (r *Repository) LoadSeries(ctx context.Context, from, to time.Time) (map[string][]contracts.Observation, error) {
	if to.IsZero() {
		to = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	query := `
		SELECT ticker, trade_date, predicted, signal,
		       open_price, high_price, low_price, close_price, volume
		FROM research.predictions
		WHERE trade_date BETWEEN $1 AND $2
		ORDER BY ticker, trade_date
	`

	rows, err := r.pool.Query(ctx, query, contracts.Day(from), contracts.Day(to))
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	series := make(map[string][]contracts.Observation)
	for rows.Next() {
		var (
			o                        contracts.Observation
			signal                   *int32
			open, high, low, cls, vl *float64
		)
		if err := rows.Scan(&o.Ticker, &o.Date, &o.Score, &signal, &open, &high, &low, &cls, &vl); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		if signal != nil {
			o.Signal = contracts.Int(int(*signal))
		}
		o.Open, o.High, o.Low, o.Close, o.Volume = deref(open), deref(high), deref(low), deref(cls), deref(vl)
		series[o.Ticker] = append(series[o.Ticker], o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}

	return series, nil
}

// SaveObservations upserts rows, used to seed the table from CSV
func (r *Repository) SaveObservations(ctx context.Context, series map[string][]contracts.Observation) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO research.predictions (
			ticker, trade_date, predicted, signal,
			open_price, high_price, low_price, close_price, volume
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			predicted = EXCLUDED.predicted,
			signal = EXCLUDED.signal,
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume
	`

	count := 0
	for ticker, rows := range series {
		for _, o := range rows {
			var signal *int32
			if o.Signal != nil {
				v := int32(*o.Signal)
				signal = &v
			}
			if _, err := tx.Exec(ctx, query,
				ticker, contracts.Day(o.Date), o.Score, signal,
				o.Open, o.High, o.Low, o.Close, o.Volume,
			); err != nil {
				return count, fmt.Errorf("save %s %s: %w", ticker, o.Date.Format(contracts.DateLayout), err)
			}
			count++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return count, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
