package api

import (
	"sync"
	"time"

	"github.com/wonny/equitysim/internal/backtest"
	"github.com/wonny/equitysim/internal/contracts"
)

// Run is one published simulation
type Run struct {
	ID          string
	PublishedAt time.Time
	Result      *backtest.Result
	Records     []contracts.AuditRecord
	Persisted   bool // records are in audit.order_log under ID
}

// Store holds the latest published run. Results are immutable once
// published; readers never see a run under construction.
type Store struct {
	mu     sync.RWMutex
	latest *Run
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// Publish replaces the latest run
func (s *Store) Publish(run *Run) {
	s.mu.Lock()
	s.latest = run
	s.mu.Unlock()
}

// Latest returns the latest run, or nil before the first publish
func (s *Store) Latest() *Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
