package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/equitysim/internal/contracts"
)

// Repository handles audit data persistence
// ⭐ SSOT: audit.order_log 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertRecord appends one record to the run's log
func (r *Repository) InsertRecord(ctx context.Context, runID string, seq int64, rec contracts.AuditRecord) error {
	query := `
		INSERT INTO audit.order_log (
			run_id, seq, ts, ticker, action, outcome, price
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query, runID, seq, rec.Timestamp, rec.Ticker, rec.Action, rec.Outcome, rec.Price)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// ListRecords returns a run's records in write order
func (r *Repository) ListRecords(ctx context.Context, runID string) ([]contracts.AuditRecord, error) {
	query := `
		SELECT ts, ticker, action, outcome, price
		FROM audit.order_log
		WHERE run_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var records []contracts.AuditRecord
	for rows.Next() {
		var rec contracts.AuditRecord
		if err := rows.Scan(&rec.Timestamp, &rec.Ticker, &rec.Action, &rec.Outcome, &rec.Price); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PostgresSink writes records of one run to audit.order_log
type PostgresSink struct {
	repo  *Repository
	runID string

	mu  sync.Mutex
	seq int64
}

// NewPostgresSink creates a sink scoped to runID
func NewPostgresSink(repo *Repository, runID string) *PostgresSink {
	return &PostgresSink{repo: repo, runID: runID}
}

// Write inserts rec with the next sequence number
func (s *PostgresSink) Write(ctx context.Context, rec contracts.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.InsertRecord(ctx, s.runID, s.seq, rec); err != nil {
		return err
	}
	s.seq++
	return nil
}

// Close is a no-op; the pool belongs to the caller
func (s *PostgresSink) Close() error { return nil }
