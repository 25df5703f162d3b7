package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/equitysim/internal/contracts"
)

var (
	filled   = contracts.AuditRecord{Timestamp: "2024-01-02T00:00:00", Ticker: "A", Action: "open_long", Outcome: "filled", Price: 101.5}
	rejected = contracts.AuditRecord{Timestamp: "2024-01-02T00:00:00", Ticker: "B", Action: "open_long", Outcome: "rejected: insufficient cash", Price: 20}
)

func TestLog_VerboseWritesEverything(t *testing.T) {
	sink := NewMemorySink()
	log := NewLog(sink, true)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, filled))
	require.NoError(t, log.Append(ctx, rejected))

	assert.Equal(t, []contracts.AuditRecord{filled, rejected}, sink.Records())
	assert.Equal(t, int64(2), log.Written())
	assert.Equal(t, int64(0), log.Suppressed())
}

func TestLog_QuietWritesOnlyRejections(t *testing.T) {
	sink := NewMemorySink()
	log := NewLog(sink, false)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, filled))
	require.NoError(t, log.Append(ctx, rejected))

	assert.Equal(t, []contracts.AuditRecord{rejected}, sink.Records())
	assert.Equal(t, int64(1), log.Suppressed())
}

func TestCSVSink_HeaderOnceAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "backtest.csv")
	ctx := context.Background()

	s, err := NewCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, filled))
	require.NoError(t, s.Close())

	// reopening appends without a second header
	s, err = NewCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, rejected))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"timestamp,ticker,action,outcome,price\n"+
			"2024-01-02T00:00:00,A,open_long,filled,101.5\n"+
			"2024-01-02T00:00:00,B,open_long,rejected: insufficient cash,20\n",
		string(data))
}

func TestJSONLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	ctx := context.Background()

	s, err := NewJSONLSink(path, 4)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Write(ctx, filled))
	}
	require.NoError(t, s.Flush())
	require.NoError(t, s.Write(ctx, rejected))
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Write(ctx, filled), errSinkClosed)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var got []contracts.AuditRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec contracts.AuditRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		got = append(got, rec)
	}
	require.Len(t, got, 11)
	assert.Equal(t, rejected, got[10])
}

func TestMultiSink(t *testing.T) {
	a, b := NewMemorySink(), NewMemorySink()
	m := NewMultiSink(a, b)

	require.NoError(t, m.Write(context.Background(), filled))
	assert.Len(t, a.Records(), 1)
	assert.Len(t, b.Records(), 1)
	assert.NoError(t, m.Close())
}

func TestMultiSink_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	after := NewMemorySink()
	m := NewMultiSink(FuncSink(func(context.Context, contracts.AuditRecord) error { return boom }), after)

	assert.ErrorIs(t, m.Write(context.Background(), filled), boom)
	assert.Empty(t, after.Records())
}

func TestOpenSink(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		dest string
		want interface{}
	}{
		{"", &MemorySink{}},
		{"memory", &MemorySink{}},
		{filepath.Join(dir, "a.csv"), &CSVSink{}},
		{filepath.Join(dir, "a.jsonl"), &JSONLSink{}},
	}

	for _, tt := range tests {
		t.Run(tt.dest, func(t *testing.T) {
			sink, err := OpenSink(ctx, tt.dest, nil, "run")
			require.NoError(t, err)
			defer sink.Close()
			assert.IsType(t, tt.want, sink)
		})
	}

	_, err := OpenSink(ctx, "postgres", nil, "run")
	assert.Error(t, err, "postgres needs a pool")

	_, err = OpenSink(ctx, "audit.txt", nil, "run")
	assert.True(t, err != nil && strings.Contains(err.Error(), "unknown audit destination"))
}
