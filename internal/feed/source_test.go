package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/equitysim/internal/contracts"
	"github.com/wonny/equitysim/pkg/httputil"
)

const sourceCSV = `date,ticker,predicted,close
2020-01-02,A,0.05,100
2020-01-03,A,0.04,101
2020-01-06,A,0.03,102
2020-01-06,B,0.01,50
`

func TestClip(t *testing.T) {
	series, err := ReadCSV(strings.NewReader(sourceCSV))
	require.NoError(t, err)

	all := Clip(series, time.Time{}, time.Time{})
	assert.Len(t, all["A"], 3)

	from := time.Date(2020, 1, 3, 12, 0, 0, 0, time.UTC)
	clipped := Clip(series, from, time.Time{})
	assert.Len(t, clipped["A"], 2)
	assert.Len(t, clipped["B"], 1)

	to := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)
	clipped = Clip(series, time.Time{}, to)
	assert.Len(t, clipped["A"], 2)
	_, hasB := clipped["B"]
	assert.False(t, hasB, "tickers left empty are dropped")
}

func TestCSVSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obs.csv")
	require.NoError(t, os.WriteFile(path, []byte(sourceCSV), 0o644))

	src := NewSource(path, nil)
	require.IsType(t, CSVSource{}, src)

	series, err := src.LoadSeries(context.Background(), time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC), time.Time{})
	require.NoError(t, err)
	assert.Len(t, series, 2)
	assert.Len(t, series["A"], 1)
}

func TestHTTPSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sourceCSV))
	}))
	defer server.Close()

	src := NewSource(server.URL+"/obs.csv", httputil.New(nil))
	require.IsType(t, HTTPSource{}, src)

	series, err := src.LoadSeries(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)

	f, err := New(series, RequireScore)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Len())
	assert.Equal(t, []string{"A", "B"}, f.Tickers())

	cs, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, contracts.Day(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)), cs.Date)
}

func TestHTTPSource_Error(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	src := HTTPSource{URL: server.URL, Client: httputil.New(nil).DisableRetry()}
	_, err := src.LoadSeries(context.Background(), time.Time{}, time.Time{})
	assert.Error(t, err)
}
