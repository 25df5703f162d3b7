package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/equitysim/internal/brain"
	"github.com/wonny/equitysim/internal/strategyconfig"
	"github.com/wonny/equitysim/pkg/logger"
)

// BacktestJob re-runs a strategy over fresh observations on a schedule.
// The YAML is reloaded every run so edits apply without a restart.
type BacktestJob struct {
	orchestrator *brain.Orchestrator
	strategyPath string
	schedule     string
	lookback     time.Duration // 0 = whole history
	save         bool
	now          func() time.Time
	logger       *logger.Logger
}

// NewBacktestJob creates a new backtest job
func NewBacktestJob(o *brain.Orchestrator, strategyPath, schedule string, lookback time.Duration, save bool, log *logger.Logger) *BacktestJob {
	if log == nil {
		log = logger.NewNop()
	}
	return &BacktestJob{
		orchestrator: o,
		strategyPath: strategyPath,
		schedule:     schedule,
		lookback:     lookback,
		save:         save,
		now:          time.Now,
		logger:       log,
	}
}

// Name returns the job name
func (j *BacktestJob) Name() string {
	return "backtest"
}

// Schedule returns the cron schedule
func (j *BacktestJob) Schedule() string {
	return j.schedule
}

// Run loads the strategy and executes one orchestrated run
func (j *BacktestJob) Run(ctx context.Context) error {
	cfg, yamlData, err := strategyconfig.Load(j.strategyPath)
	if err != nil {
		return fmt.Errorf("load strategy: %w", err)
	}

	now := j.now()
	rc := brain.RunConfig{
		RunID:        brain.NewRunID(cfg.Meta.StrategyID, now),
		Strategy:     cfg,
		StrategyYAML: yamlData,
		Save:         j.save,
		UseCache:     true,
	}
	if j.lookback > 0 {
		rc.From = now.Add(-j.lookback)
		rc.To = now
	}

	res, err := j.orchestrator.Run(ctx, rc)
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":    res.RunID,
		"cache_hit": res.CacheHit,
		"orders":    res.Result.Orders,
		"rejected":  res.Result.Rejected,
	}).Info("Scheduled backtest finished")
	return nil
}
