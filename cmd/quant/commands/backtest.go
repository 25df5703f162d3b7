package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/equitysim/internal/audit"
	"github.com/wonny/equitysim/internal/brain"
	"github.com/wonny/equitysim/internal/contracts"
	"github.com/wonny/equitysim/internal/feed"
	"github.com/wonny/equitysim/internal/risk"
	"github.com/wonny/equitysim/internal/strategyconfig"
	"github.com/wonny/equitysim/pkg/config"
	"github.com/wonny/equitysim/pkg/database"
	"github.com/wonny/equitysim/pkg/httputil"
	"github.com/wonny/equitysim/pkg/logger"
	"github.com/wonny/equitysim/pkg/redis"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "전략 시뮬레이션",
	Long: `Replays daily cross-sections through the selection, allocation and
order pipeline, writing one audit record per order attempt.

Example:
  go run ./cmd/quant backtest run --input data/predictions.csv
  go run ./cmd/quant backtest run --from-db --from 2023-01-01 --to 2023-12-31 --save
  go run ./cmd/quant backtest validate --strategy config/strategy/ml_longshort.yaml
  go run ./cmd/quant backtest import --input data/predictions.csv`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "백테스트 실행",
		RunE:  runBacktest,
	}

	backtestValidateCmd = &cobra.Command{
		Use:   "validate",
		Short: "전략 설정 검증",
		RunE:  validateStrategy,
	}

	backtestImportCmd = &cobra.Command{
		Use:   "import",
		Short: "CSV 관측치를 research.predictions 에 적재",
		RunE:  importObservations,
	}

	// Flags
	backtestStrategy string
	backtestInput    string
	backtestFromDB   bool
	backtestFrom     string
	backtestTo       string
	backtestAudit    string
	backtestSave     bool
	backtestCache    bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd, backtestValidateCmd, backtestImportCmd)

	backtestCmd.PersistentFlags().StringVar(&backtestStrategy, "strategy", "", "strategy YAML (default: STRATEGY_CONFIG)")

	backtestRunCmd.Flags().StringVar(&backtestInput, "input", "", "observations CSV")
	backtestRunCmd.Flags().BoolVar(&backtestFromDB, "from-db", false, "read observations from research.predictions")
	backtestRunCmd.Flags().StringVar(&backtestFrom, "from", "", "first date (YYYY-MM-DD)")
	backtestRunCmd.Flags().StringVar(&backtestTo, "to", "", "last date (YYYY-MM-DD)")
	backtestRunCmd.Flags().StringVar(&backtestAudit, "audit", "", "audit destination override (*.csv, *.jsonl, postgres, memory)")
	backtestRunCmd.Flags().BoolVar(&backtestSave, "save", false, "persist the run to backtest.runs")
	backtestRunCmd.Flags().BoolVar(&backtestCache, "cache", false, "reuse results cached in Redis")

	backtestImportCmd.Flags().StringVar(&backtestInput, "input", "", "observations CSV")
	backtestImportCmd.MarkFlagRequired("input")
}

func strategyPath(cfg *config.Config) string {
	if backtestStrategy != "" {
		return backtestStrategy
	}
	return cfg.StrategyConfig
}

func runBacktest(cmd *cobra.Command, args []string) error {
	if (backtestInput == "") == !backtestFromDB {
		return fmt.Errorf("exactly one of --input or --from-db is required")
	}

	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	from, err := parseDateFlag("from", backtestFrom)
	if err != nil {
		return err
	}
	to, err := parseDateFlag("to", backtestTo)
	if err != nil {
		return err
	}

	strategy, yamlData, err := strategyconfig.Load(strategyPath(cfg))
	if err != nil {
		return err
	}

	destination := backtestAudit
	if destination == "" {
		destination = cfg.AuditDestination
	}
	needsDB := backtestFromDB || backtestSave ||
		destination == audit.DestinationPostgres ||
		(destination == "" && strategy.Audit.LogDestination == audit.DestinationPostgres)

	var opts []brain.Option
	var source feed.Source = feed.NewSource(backtestInput, httputil.New(log))

	if needsDB {
		if err := cfg.RequireDatabase(); err != nil {
			return err
		}
		db, err := database.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		opts = append(opts, brain.WithDatabase(db.Pool))
		if backtestFromDB {
			source = feed.NewRepository(db.Pool)
		}
	}

	if backtestCache {
		rc, err := redis.New(cfg)
		if err != nil {
			return err
		}
		defer rc.Close()
		if !rc.Enabled() {
			PrintWarning("--cache ignored: REDIS_ENABLED is false")
		}
		opts = append(opts, brain.WithCache(redis.NewCache(rc, "equitysim"), cfg.Redis.TTL))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o := brain.NewOrchestrator(source, log, opts...)
	res, err := o.Run(ctx, brain.RunConfig{
		Strategy:         strategy,
		StrategyYAML:     yamlData,
		From:             from,
		To:               to,
		AuditDestination: destination,
		Save:             backtestSave,
		UseCache:         backtestCache,
	})
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	printRunResult(res)
	return nil
}

func parseDateFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(contracts.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want YYYY-MM-DD", name, value)
	}
	return t, nil
}

func printRunResult(res *brain.RunResult) {
	r := res.Result

	PrintHeader("Backtest "+res.RunID, [][2]string{
		{"Strategy", r.StrategyID},
		{"Config", short(r.ConfigHash)},
		{"Data", short(res.DataFingerprint)},
		{"Period", r.Start.Format(contracts.DateLayout) + " ~ " + r.End.Format(contracts.DateLayout)},
		{"Trading days", fmt.Sprintf("%d (%d gated)", r.TradingDays, r.GatedDays)},
		{"Cache", strconv.FormatBool(res.CacheHit)},
	})

	for _, w := range res.Warnings {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}

	fmt.Println("💰 Performance")
	PrintKeyValue("Initial cash", formatMoney(r.InitialCash), 16)
	PrintKeyValue("Final equity", formatMoney(r.FinalEquity), 16)
	PrintKeyValue("Total return", formatPct(r.TotalReturn), 16)
	PrintKeyValue("Commission", formatMoney(r.TotalCommission), 16)
	fmt.Println()

	rep := risk.Analyze(r)
	fmt.Println("📉 Risk")
	PrintKeyValue("Volatility (ann)", fmt.Sprintf("%.2f%%", rep.AnnualizedVolatility*100), 16)
	PrintKeyValue("Sharpe", fmt.Sprintf("%.2f", rep.Sharpe), 16)
	PrintKeyValue("Max drawdown", fmt.Sprintf("%.2f%%", rep.MaxDrawdown*100), 16)
	for _, v := range rep.VaR {
		PrintKeyValue(fmt.Sprintf("VaR %.0f%%", v.Confidence*100), fmt.Sprintf("%.2f%% (CVaR %.2f%%)", v.VaR*100, v.CVaR*100), 16)
	}
	fmt.Println()

	fmt.Println("📋 Orders")
	PrintKeyValue("Attempted", strconv.Itoa(r.Orders), 16)
	PrintKeyValue("Filled", strconv.Itoa(r.Filled), 16)
	PrintKeyValue("Unchanged", strconv.Itoa(r.Unchanged), 16)
	PrintKeyValue("Rejected", strconv.Itoa(r.Rejected), 16)
	PrintKeyValue("Audit written", strconv.FormatInt(res.AuditWritten, 10), 16)
	fmt.Println()

	if len(r.Final.Positions) > 0 {
		widths := []int{10, 10, 12, 14, 8}
		PrintTableHeader([]string{"Ticker", "Quantity", "Last", "Value", "Weight"}, widths)
		for _, p := range r.Final.Positions {
			PrintTableRow([]string{
				p.Ticker,
				strconv.FormatInt(p.Quantity, 10),
				strconv.FormatFloat(p.LastPrice, 'f', 2, 64),
				formatMoney(p.Value),
				formatPct(p.Weight),
			}, widths)
		}
		fmt.Println()
	}

	PrintSuccess(fmt.Sprintf("Completed in %.2fs", res.Duration.Seconds()))
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func validateStrategy(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadRuntime()
	if err != nil {
		return err
	}

	path := strategyPath(cfg)
	strategy, _, err := strategyconfig.Load(path)
	if err != nil {
		PrintError(err.Error())
		return err
	}
	hash, err := strategyconfig.Hash(strategy)
	if err != nil {
		return err
	}

	PrintHeader("Strategy "+strategy.Meta.StrategyID, [][2]string{
		{"File", path},
		{"Hash", hash},
		{"Policy", strategy.Selection.Policy},
		{"Breadth gate", strategy.Selection.Gate()},
		{"Positions", fmt.Sprintf("%d (min %d)", strategy.Selection.NPositions, strategy.Selection.MinPositions)},
		{"Audit", strategy.Audit.LogDestination},
	})
	for _, w := range strategyconfig.Warn(strategy) {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	PrintSuccess("Strategy config is valid")
	return nil
}

func importObservations(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	series, err := feed.ReadCSVFile(backtestInput)
	if err != nil {
		return err
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	n, err := importSeries(cmd.Context(), feed.NewRepository(db.Pool), series, log)
	if err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("Imported %d observations", n))
	return nil
}

func importSeries(ctx context.Context, repo *feed.Repository, series map[string][]contracts.Observation, log *logger.Logger) (int, error) {
	n, err := repo.SaveObservations(ctx, series)
	if err != nil {
		return 0, fmt.Errorf("save observations: %w", err)
	}
	log.WithFields(map[string]interface{}{
		"tickers": len(series),
		"rows":    n,
	}).Info("Observations imported")
	return n, nil
}
