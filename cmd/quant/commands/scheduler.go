package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/equitysim/internal/brain"
	"github.com/wonny/equitysim/internal/feed"
	"github.com/wonny/equitysim/internal/scheduler"
	"github.com/wonny/equitysim/internal/scheduler/jobs"
	"github.com/wonny/equitysim/pkg/config"
	"github.com/wonny/equitysim/pkg/database"
	"github.com/wonny/equitysim/pkg/httputil"
	"github.com/wonny/equitysim/pkg/logger"
	"github.com/wonny/equitysim/pkg/redis"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `Runs the backtest job on BACKTEST_SCHEDULE (cron with seconds).

Subcommands:
  start   - 스케줄러 시작
  run     - 작업 즉시 1회 실행

Example:
  go run ./cmd/quant scheduler start --from-db --save
  go run ./cmd/quant scheduler run --input data/predictions.csv`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		RunE:  runScheduler,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run",
		Short: "작업 즉시 실행",
		RunE:  runJobOnce,
	}
)

// Observation source flags shared by api and scheduler
var (
	sourceInput    string
	sourceFromDB   bool
	sourceLookback time.Duration
	sourceSave     bool
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd, schedulerRunCmd)
	addSourceFlags(schedulerCmd)
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&sourceInput, "input", "", "observations CSV")
	cmd.PersistentFlags().BoolVar(&sourceFromDB, "from-db", false, "read observations from research.predictions")
	cmd.PersistentFlags().DurationVar(&sourceLookback, "lookback", 0, "only simulate the trailing window (0 = all)")
	cmd.PersistentFlags().BoolVar(&sourceSave, "save", false, "persist each run to backtest.runs")
}

// runDeps owns the connections behind a job orchestrator
type runDeps struct {
	orchestrator *brain.Orchestrator
	db           *database.DB
}

func (d *runDeps) Close() {
	if d.db != nil {
		d.db.Close()
	}
}

func newRunDeps(cfg *config.Config, log *logger.Logger, rc *redis.Client, extra ...brain.Option) (*runDeps, error) {
	if (sourceInput == "") == !sourceFromDB {
		return nil, fmt.Errorf("exactly one of --input or --from-db is required")
	}

	deps := &runDeps{}
	opts := append([]brain.Option{brain.WithCache(redis.NewCache(rc, "equitysim"), cfg.Redis.TTL)}, extra...)

	var source feed.Source = feed.NewSource(sourceInput, httputil.New(log))
	if cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		deps.db = db
		opts = append(opts, brain.WithDatabase(db.Pool))
		if sourceFromDB {
			source = feed.NewRepository(db.Pool)
		}
	} else if sourceFromDB || sourceSave {
		return nil, cfg.RequireDatabase()
	}

	deps.orchestrator = brain.NewOrchestrator(source, log, opts...)
	return deps, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	rc, err := redis.New(cfg)
	if err != nil {
		return err
	}
	defer rc.Close()

	deps, err := newRunDeps(cfg, log, rc)
	if err != nil {
		return err
	}
	defer deps.Close()

	sched := scheduler.New(log)
	job := jobs.NewBacktestJob(deps.orchestrator, cfg.StrategyConfig, cfg.BacktestSchedule, sourceLookback, sourceSave, log)
	if err := sched.AddJob(job); err != nil {
		return err
	}
	sched.Start()

	next, _ := sched.NextRun(job.Name())
	PrintHeader("Scheduler", [][2]string{
		{"Job", job.Name()},
		{"Schedule", job.Schedule()},
		{"Next run", next.Format(time.RFC3339)},
		{"Strategy", cfg.StrategyConfig},
	})
	fmt.Println("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	sched.Stop()
	return nil
}

func runJobOnce(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	rc, err := redis.New(cfg)
	if err != nil {
		return err
	}
	defer rc.Close()

	deps, err := newRunDeps(cfg, log, rc)
	if err != nil {
		return err
	}
	defer deps.Close()

	sched := scheduler.New(log, scheduler.WithRetry(0, 0))
	job := jobs.NewBacktestJob(deps.orchestrator, cfg.StrategyConfig, cfg.BacktestSchedule, sourceLookback, sourceSave, log)
	if err := sched.AddJob(job); err != nil {
		return err
	}

	result, err := sched.RunJob(job.Name())
	if err != nil {
		return err
	}
	if !result.Success {
		PrintError(result.Error)
		return fmt.Errorf("job %s failed", job.Name())
	}
	PrintSuccess(fmt.Sprintf("Job %s completed in %.2fs", job.Name(), result.Duration.Seconds()))
	return nil
}
