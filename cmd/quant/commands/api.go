package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/equitysim/internal/api"
	"github.com/wonny/equitysim/internal/audit"
	"github.com/wonny/equitysim/internal/brain"
	"github.com/wonny/equitysim/internal/scheduler"
	"github.com/wonny/equitysim/internal/scheduler/jobs"
	"github.com/wonny/equitysim/pkg/config"
	"github.com/wonny/equitysim/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `Serves the latest simulation over HTTP and streams its audit records
over a websocket. With --schedule the backtest job runs in-process and
every completed run is published to the API.

Endpoints:
  GET /health
  GET /api/runs/latest
  GET /api/runs/latest/portfolio
  GET /api/runs/latest/snapshots?date=YYYY-MM-DD
  GET /api/runs/latest/audit?ticker=&rejected=
  GET /api/runs/latest/risk
  GET /ws/audit

Example:
  go run ./cmd/quant api --input data/predictions.csv --schedule --run-now
  go run ./cmd/quant api --from-db --schedule`,
	RunE: runAPIServer,
}

var (
	apiPort     string
	apiSchedule bool
	apiRunNow   bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT)")
	apiCmd.Flags().BoolVar(&apiSchedule, "schedule", false, "run the backtest job on BACKTEST_SCHEDULE")
	apiCmd.Flags().BoolVar(&apiRunNow, "run-now", false, "run the backtest job once at startup")
	addSourceFlags(apiCmd)
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	rc, err := redis.New(cfg)
	if err != nil {
		return err
	}
	defer rc.Close()

	store := api.NewStore()
	hub := api.NewHub(log)

	var sched *scheduler.Scheduler
	var records api.RecordLister
	if apiSchedule || apiRunNow {
		deps, err := newRunDeps(cfg, log, rc, brain.WithStore(store), brain.WithObservers(hub.Sink()))
		if err != nil {
			return err
		}
		defer deps.Close()
		if deps.db != nil {
			records = audit.NewRepository(deps.db.Pool)
		}

		sched = scheduler.New(log)
		job := jobs.NewBacktestJob(deps.orchestrator, cfg.StrategyConfig, cfg.BacktestSchedule, sourceLookback, sourceSave, log)
		if err := sched.AddJob(job); err != nil {
			return err
		}
		if apiSchedule {
			sched.Start()
		}
		defer sched.Stop()
		if apiRunNow {
			go sched.RunJob(job.Name())
		}
	}

	router := api.NewRouter(api.NewHandler(store, records, log), hub, newLimiter(cfg, rc), log)
	server := api.New(cfg, log, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	return server.Run(ctx)
}

// newLimiter prefers the shared Redis window when Redis is enabled
func newLimiter(cfg *config.Config, rc *redis.Client) api.Limiter {
	if cfg.APIRateLimit <= 0 {
		return nil
	}
	if rc.Enabled() {
		perMinute := int(cfg.APIRateLimit * 60)
		return api.NewRedisLimiter(redis.NewRateLimiter(rc, "equitysim:api", perMinute, time.Minute))
	}
	return api.NewLocalLimiter(cfg.APIRateLimit, cfg.APIBurst)
}
