package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/equitysim/internal/contracts"
)

// Destinations recognised by OpenSink besides file paths
const (
	DestinationMemory   = "memory"
	DestinationPostgres = "postgres"
)

// OpenSink selects a sink by destination:
// "*.csv" → CSVSink, "*.jsonl" → JSONLSink, "postgres" → PostgresSink,
// "memory" or "" → MemorySink. runID scopes Postgres rows.
func OpenSink(ctx context.Context, destination string, pool *pgxpool.Pool, runID string) (Sink, error) {
	switch {
	case destination == "" || destination == DestinationMemory:
		return NewMemorySink(), nil
	case destination == DestinationPostgres:
		if pool == nil {
			return nil, fmt.Errorf("audit destination postgres requires DATABASE_URL")
		}
		return NewPostgresSink(NewRepository(pool), runID), nil
	case strings.HasSuffix(destination, ".jsonl"):
		return NewJSONLSink(destination, 0)
	case strings.HasSuffix(destination, ".csv"):
		return NewCSVSink(destination)
	default:
		return nil, fmt.Errorf("unknown audit destination %q (want *.csv, *.jsonl, postgres or memory)", destination)
	}
}

// MemorySink keeps records in memory
type MemorySink struct {
	mu      sync.RWMutex
	records []contracts.AuditRecord
}

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write appends rec
func (m *MemorySink) Write(_ context.Context, rec contracts.AuditRecord) error {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return nil
}

// Records returns a copy of everything written
func (m *MemorySink) Records() []contracts.AuditRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]contracts.AuditRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Close is a no-op
func (m *MemorySink) Close() error { return nil }

// MultiSink fans records out to every sink in order. The first write
// error stops the fan-out.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Write writes rec to each sink
func (m *MultiSink) Write(ctx context.Context, rec contracts.AuditRecord) error {
	for _, s := range m.sinks {
		if err := s.Write(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FuncSink adapts a function, e.g. a websocket broadcaster
type FuncSink func(ctx context.Context, rec contracts.AuditRecord) error

// Write calls f
func (f FuncSink) Write(ctx context.Context, rec contracts.AuditRecord) error { return f(ctx, rec) }

// Close is a no-op
func (f FuncSink) Close() error { return nil }
