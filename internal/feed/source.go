package feed

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/equitysim/internal/contracts"
)

// Source yields per-ticker series within [from, to]. A zero bound is open.
type Source interface {
	LoadSeries(ctx context.Context, from, to time.Time) (map[string][]contracts.Observation, error)
}

// CSVSource reads series from a long-format CSV file
type CSVSource struct {
	Path string
}

// LoadSeries parses the file and clips it to [from, to]
func (s CSVSource) LoadSeries(_ context.Context, from, to time.Time) (map[string][]contracts.Observation, error) {
	series, err := ReadCSVFile(s.Path)
	if err != nil {
		return nil, err
	}
	return Clip(series, from, to), nil
}

// Clip drops observations outside [from, to] and tickers left empty
func Clip(series map[string][]contracts.Observation, from, to time.Time) map[string][]contracts.Observation {
	if from.IsZero() && to.IsZero() {
		return series
	}
	from, to = contracts.Day(from), contracts.Day(to)

	out := make(map[string][]contracts.Observation, len(series))
	for ticker, obs := range series {
		kept := make([]contracts.Observation, 0, len(obs))
		for _, o := range obs {
			d := contracts.Day(o.Date)
			if !from.IsZero() && d.Before(from) {
				continue
			}
			if !to.IsZero() && d.After(to) {
				continue
			}
			kept = append(kept, o)
		}
		if len(kept) > 0 {
			out[ticker] = kept
		}
	}
	return out
}

// Fetcher downloads a document body
type Fetcher interface {
	GetBody(ctx context.Context, url string) ([]byte, error)
}

// HTTPSource reads the same long-format CSV from a URL
type HTTPSource struct {
	URL    string
	Client Fetcher
}

// LoadSeries downloads, parses and clips the CSV
func (s HTTPSource) LoadSeries(ctx context.Context, from, to time.Time) (map[string][]contracts.Observation, error) {
	body, err := s.Client.GetBody(ctx, s.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch observations: %w", err)
	}
	series, err := ReadCSV(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return Clip(series, from, to), nil
}

// NewSource picks HTTPSource for http(s) locations and CSVSource otherwise
func NewSource(location string, client Fetcher) Source {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return HTTPSource{URL: location, Client: client}
	}
	return CSVSource{Path: location}
}
