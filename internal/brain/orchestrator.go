// Package brain coordinates a full strategy run: config, data,
// simulation, persistence and publication.
package brain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/equitysim/internal/api"
	"github.com/wonny/equitysim/internal/audit"
	"github.com/wonny/equitysim/internal/backtest"
	"github.com/wonny/equitysim/internal/contracts"
	"github.com/wonny/equitysim/internal/feed"
	"github.com/wonny/equitysim/internal/strategyconfig"
	"github.com/wonny/equitysim/pkg/logger"
	"github.com/wonny/equitysim/pkg/redis"
)

// Orchestrator coordinates the run pipeline
// ⭐ SSOT: 실행 파이프라인 조율은 여기서만
type Orchestrator struct {
	source feed.Source

	// Optional collaborators; nil disables the stage
	pool      *pgxpool.Pool
	runRepo   *backtest.Repository
	cache     *redis.Cache
	cacheTTL  time.Duration
	store     *api.Store
	observers []audit.Sink

	logger *logger.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithDatabase enables the postgres audit destination and run persistence
func WithDatabase(pool *pgxpool.Pool) Option {
	return func(o *Orchestrator) {
		o.pool = pool
		o.runRepo = backtest.NewRepository(pool)
	}
}

// WithCache memoizes results by config hash and data fingerprint
func WithCache(cache *redis.Cache, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		o.cache = cache
		o.cacheTTL = ttl
	}
}

// WithStore publishes every completed run to the API store
func WithStore(store *api.Store) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithObservers adds sinks that see every audit record the log keeps
func WithObservers(sinks ...audit.Sink) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, sinks...) }
}

// NewOrchestrator creates a new orchestrator reading observations from source
func NewOrchestrator(source feed.Source, log *logger.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = logger.NewNop()
	}
	o := &Orchestrator{source: source, cacheTTL: redis.TTLDaily, logger: log}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunConfig holds configuration for a single run
type RunConfig struct {
	RunID        string
	Strategy     *strategyconfig.Config
	StrategyYAML []byte
	From, To     time.Time

	// AuditDestination overrides audit.log_destination when set
	AuditDestination string
	Save             bool
	UseCache         bool
}

// RunResult holds the results of a complete run
type RunResult struct {
	RunID            string
	Decision         *strategyconfig.DecisionSnapshot
	Warnings         []strategyconfig.Warning
	DataFingerprint  string
	CacheHit         bool
	Result           *backtest.Result
	Records          []contracts.AuditRecord
	AuditWritten     int64
	AuditSuppressed  int64
	AuditDestination string
	CompletedStages  []string
	Duration         time.Duration
}

// cachedRun is what the result cache stores
type cachedRun struct {
	Result  *backtest.Result        `json:"result"`
	Records []contracts.AuditRecord `json:"records"`
}

// NewRunID derives a run identifier from the strategy and wall clock
func NewRunID(strategyID string, now time.Time) string {
	return fmt.Sprintf("%s-%s", strategyID, now.UTC().Format("20060102T150405"))
}

// Run executes config → data → simulate → persist → publish
func (o *Orchestrator) Run(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := time.Now()

	if config.Strategy == nil {
		return nil, errors.New("strategy config is required")
	}
	if config.RunID == "" {
		config.RunID = NewRunID(config.Strategy.Meta.StrategyID, startTime)
	}

	result := &RunResult{
		RunID:           config.RunID,
		CompletedStages: make([]string, 0, 4),
	}

	o.logger.WithFields(map[string]interface{}{
		"run_id":   config.RunID,
		"strategy": config.Strategy.Meta.StrategyID,
		"policy":   config.Strategy.Selection.Policy,
		"from":     dateOrOpen(config.From),
		"to":       dateOrOpen(config.To),
	}).Info("Starting strategy run")

	// S0: Config
	if err := strategyconfig.Validate(config.Strategy); err != nil {
		return result, fmt.Errorf("S0 failed: %w", err)
	}
	result.Warnings = strategyconfig.Warn(config.Strategy)
	for _, w := range result.Warnings {
		o.logger.WithField("code", w.Code).Warn(w.Message)
	}
	result.CompletedStages = append(result.CompletedStages, "S0:Config")

	// S1: Data
	f, err := o.loadFeed(ctx, config)
	if err != nil {
		return result, fmt.Errorf("S1 failed: %w", err)
	}
	result.DataFingerprint = f.Fingerprint()
	result.Decision, err = strategyconfig.NewDecisionSnapshot(config.Strategy, config.StrategyYAML, result.DataFingerprint)
	if err != nil {
		return result, fmt.Errorf("S1 failed: %w", err)
	}
	result.CompletedStages = append(result.CompletedStages, "S1:Data")

	// S2: Simulate
	if err := o.simulate(ctx, config, f, result); err != nil {
		return result, fmt.Errorf("S2 failed: %w", err)
	}
	result.CompletedStages = append(result.CompletedStages, "S2:Simulate")

	// S3: Persist
	if config.Save && o.runRepo != nil && !result.CacheHit {
		if err := o.runRepo.SaveRun(ctx, config.RunID, result.Result); err != nil {
			return result, fmt.Errorf("S3 failed: %w", err)
		}
		result.CompletedStages = append(result.CompletedStages, "S3:Persist")
	}

	o.publish(ctx, result)

	result.Duration = time.Since(startTime)
	o.logger.WithFields(map[string]interface{}{
		"run_id":       config.RunID,
		"duration":     result.Duration.Seconds(),
		"cache_hit":    result.CacheHit,
		"final_equity": result.Result.FinalEquity,
		"total_return": result.Result.TotalReturn,
	}).Info("Strategy run completed")

	return result, nil
}

func (o *Orchestrator) loadFeed(ctx context.Context, config RunConfig) (*feed.Feed, error) {
	if o.source == nil {
		return nil, errors.New("no observation source configured")
	}
	series, err := o.source.LoadSeries(ctx, config.From, config.To)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	if len(series) == 0 {
		return nil, errors.New("no observations in range")
	}

	f, err := feed.New(series, backtest.Requirement(config.Strategy.Selection))
	if err != nil {
		return nil, err
	}

	o.logger.WithFields(map[string]interface{}{
		"tickers": len(f.Tickers()),
		"dates":   f.Len(),
	}).Info("Feed loaded")
	return f, nil
}

func (o *Orchestrator) simulate(ctx context.Context, config RunConfig, f *feed.Feed, result *RunResult) error {
	key := redis.BacktestKey(result.Decision.ConfigHash, result.DataFingerprint)

	if config.UseCache && o.cache != nil {
		var cached cachedRun
		hit, err := o.cache.Get(ctx, key, &cached)
		if err != nil {
			o.logger.WithError(err).Warn("Result cache unavailable")
		} else if hit && cached.Result != nil {
			o.logger.WithField("key", key).Info("Result cache hit")
			result.CacheHit = true
			result.Result = cached.Result
			result.Records = cached.Records
			return nil
		}
	}

	destination := config.Strategy.Audit.LogDestination
	if config.AuditDestination != "" {
		destination = config.AuditDestination
	}
	result.AuditDestination = destination
	sink, err := audit.OpenSink(ctx, destination, o.pool, config.RunID)
	if err != nil {
		return err
	}

	memory := audit.NewMemorySink()
	sinks := append([]audit.Sink{sink, memory}, o.observers...)
	auditLog := audit.NewLog(audit.NewMultiSink(sinks...), config.Strategy.Audit.Verbose)

	engine, err := backtest.NewEngine(config.Strategy, auditLog, o.logger)
	if err != nil {
		auditLog.Close()
		return err
	}

	res, runErr := engine.Run(ctx, f)
	closeErr := auditLog.Close()
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("close audit log: %w", closeErr)
	}

	result.Result = res
	result.Records = memory.Records()
	result.AuditWritten = auditLog.Written()
	result.AuditSuppressed = auditLog.Suppressed()

	if config.UseCache && o.cache != nil {
		if err := o.cache.Set(ctx, key, cachedRun{Result: res, Records: result.Records}, o.cacheTTL); err != nil {
			o.logger.WithError(err).Warn("Failed to cache result")
		}
	}
	return nil
}

// latestRun is the per-strategy pointer kept in Redis
type latestRun struct {
	RunID       string    `json:"run_id"`
	ConfigHash  string    `json:"config_hash"`
	Fingerprint string    `json:"fingerprint"`
	FinalEquity float64   `json:"final_equity"`
	CompletedAt time.Time `json:"completed_at"`
}

func (o *Orchestrator) publish(ctx context.Context, result *RunResult) {
	if o.store != nil {
		o.store.Publish(&api.Run{
			ID:          result.RunID,
			PublishedAt: time.Now(),
			Result:      result.Result,
			Records:     result.Records,
			Persisted:   result.AuditDestination == audit.DestinationPostgres,
		})
	}

	if o.cache != nil {
		pointer := latestRun{
			RunID:       result.RunID,
			ConfigHash:  result.Decision.ConfigHash,
			Fingerprint: result.DataFingerprint,
			FinalEquity: result.Result.FinalEquity,
			CompletedAt: time.Now(),
		}
		if err := o.cache.Set(ctx, redis.LatestRunKey(result.Result.StrategyID), pointer, o.cacheTTL); err != nil {
			o.logger.WithError(err).Warn("Failed to record latest run")
		}
	}
}

func dateOrOpen(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format(contracts.DateLayout)
}
