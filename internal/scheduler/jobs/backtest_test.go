package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/equitysim/internal/api"
	"github.com/wonny/equitysim/internal/brain"
	"github.com/wonny/equitysim/internal/feed"
)

const strategyYAML = `
meta:
  strategy_id: nightly
selection:
  policy: score
  n_positions: 2
  min_positions: 1
audit:
  verbose: true
  log_destination: memory
`

const observationsCSV = `date,ticker,predicted,close
2020-01-02,A,0.05,100
2020-01-02,B,0.02,50
2020-01-02,C,-0.03,25
2020-01-03,A,0.04,101
2020-01-03,B,0.01,51
2020-01-03,C,-0.02,24
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestBacktestJob_Run(t *testing.T) {
	strategyPath := writeFile(t, "strategy.yaml", strategyYAML)
	source := feed.CSVSource{Path: writeFile(t, "obs.csv", observationsCSV)}
	store := api.NewStore()

	o := brain.NewOrchestrator(source, nil, brain.WithStore(store))
	job := NewBacktestJob(o, strategyPath, "0 30 18 * * MON-FRI", 0, false, nil)
	job.now = func() time.Time { return time.Date(2020, 1, 4, 18, 30, 0, 0, time.UTC) }

	assert.Equal(t, "backtest", job.Name())
	assert.Equal(t, "0 30 18 * * MON-FRI", job.Schedule())
	require.NoError(t, job.Run(context.Background()))

	latest := store.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, "nightly-20200104T183000", latest.ID)
	assert.Equal(t, 2, latest.Result.TradingDays)
}

func TestBacktestJob_Lookback(t *testing.T) {
	strategyPath := writeFile(t, "strategy.yaml", strategyYAML)
	source := feed.CSVSource{Path: writeFile(t, "obs.csv", observationsCSV)}
	store := api.NewStore()

	o := brain.NewOrchestrator(source, nil, brain.WithStore(store))
	job := NewBacktestJob(o, strategyPath, "@daily", 24*time.Hour, false, nil)
	job.now = func() time.Time { return time.Date(2020, 1, 4, 6, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, store.Latest().Result.TradingDays)
}

func TestBacktestJob_BadStrategy(t *testing.T) {
	source := feed.CSVSource{Path: writeFile(t, "obs.csv", observationsCSV)}
	o := brain.NewOrchestrator(source, nil)

	job := NewBacktestJob(o, filepath.Join(t.TempDir(), "missing.yaml"), "@daily", 0, false, nil)
	assert.Error(t, job.Run(context.Background()))
}
