package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/equitysim/internal/backtest"
	"github.com/wonny/equitysim/internal/contracts"
	"github.com/wonny/equitysim/internal/risk"
	"github.com/wonny/equitysim/pkg/logger"
)

// RecordLister reads a run's audit records back from durable storage
type RecordLister interface {
	ListRecords(ctx context.Context, runID string) ([]contracts.AuditRecord, error)
}

// Handler serves read-only views of the latest run
type Handler struct {
	store   *Store
	records RecordLister
	logger  *logger.Logger
}

// NewHandler creates a new handler. records may be nil; runs written to
// Postgres are then served from memory.
func NewHandler(store *Store, records RecordLister, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{store: store, records: records, logger: log}
}

// RunSummary is the latest run without its equity curve
type RunSummary struct {
	RunID           string    `json:"run_id"`
	PublishedAt     time.Time `json:"published_at"`
	StrategyID      string    `json:"strategy_id"`
	ConfigHash      string    `json:"config_hash"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	TradingDays     int       `json:"trading_days"`
	GatedDays       int       `json:"gated_days"`
	Orders          int       `json:"orders"`
	Filled          int       `json:"filled"`
	Unchanged       int       `json:"unchanged"`
	Rejected        int       `json:"rejected"`
	TotalCommission float64   `json:"total_commission"`
	InitialCash     float64   `json:"initial_cash"`
	FinalEquity     float64   `json:"final_equity"`
	TotalReturn     float64   `json:"total_return"`
}

func summarize(run *Run) RunSummary {
	r := run.Result
	return RunSummary{
		RunID:           run.ID,
		PublishedAt:     run.PublishedAt,
		StrategyID:      r.StrategyID,
		ConfigHash:      r.ConfigHash,
		Start:           r.Start,
		End:             r.End,
		TradingDays:     r.TradingDays,
		GatedDays:       r.GatedDays,
		Orders:          r.Orders,
		Filled:          r.Filled,
		Unchanged:       r.Unchanged,
		Rejected:        r.Rejected,
		TotalCommission: r.TotalCommission,
		InitialCash:     r.InitialCash,
		FinalEquity:     r.FinalEquity,
		TotalReturn:     r.TotalReturn,
	}
}

// latest returns the published run or writes 404
func (h *Handler) latest(w http.ResponseWriter) (*Run, bool) {
	run := h.store.Latest()
	if run == nil || run.Result == nil {
		respondError(w, http.StatusNotFound, "no run published yet")
		return nil, false
	}
	return run, true
}

// GetLatestRun returns the latest run summary
// GET /api/runs/latest
func (h *Handler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.latest(w)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, summarize(run))
}

// GetPortfolio returns the final snapshot of the latest run
// GET /api/runs/latest/portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	run, ok := h.latest(w)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, run.Result.Final)
}

// GetSnapshots returns the equity curve, or one date with ?date=YYYY-MM-DD
// GET /api/runs/latest/snapshots
func (h *Handler) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	run, ok := h.latest(w)
	if !ok {
		return
	}

	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"count":     len(run.Result.Snapshots),
			"snapshots": run.Result.Snapshots,
		})
		return
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	snap, found := run.Result.SnapshotAt(date)
	if !found {
		respondError(w, http.StatusNotFound, "no snapshot for "+dateStr)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":     1,
		"snapshots": []backtest.Snapshot{snap},
	})
}

// GetRisk returns drawdown, volatility and VaR of the equity curve
// GET /api/runs/latest/risk
func (h *Handler) GetRisk(w http.ResponseWriter, r *http.Request) {
	run, ok := h.latest(w)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, risk.Analyze(run.Result))
}

// GetAudit returns audit records, filtered by ?ticker= and ?rejected=true
// GET /api/runs/latest/audit
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	run, ok := h.latest(w)
	if !ok {
		return
	}

	q := r.URL.Query()
	ticker := strings.ToUpper(strings.TrimSpace(q.Get("ticker")))
	rejectedOnly := false
	if v := q.Get("rejected"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "rejected must be a boolean")
			return
		}
		rejectedOnly = b
	}

	source := run.Records
	if run.Persisted && h.records != nil {
		stored, err := h.records.ListRecords(r.Context(), run.ID)
		if err != nil {
			h.logger.WithError(err).WithField("run_id", run.ID).Error("Failed to read audit log")
			respondError(w, http.StatusInternalServerError, "failed to read audit log")
			return
		}
		source = stored
	}

	records := make([]contracts.AuditRecord, 0, len(source))
	for _, rec := range source {
		if ticker != "" && rec.Ticker != ticker {
			continue
		}
		if rejectedOnly && !rec.IsRejection() {
			continue
		}
		records = append(records, rec)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  run.ID,
		"count":   len(records),
		"records": records,
	})
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "equitysim-api",
	})
}

// respondJSON writes JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
