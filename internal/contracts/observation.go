package contracts

import (
	"sort"
	"time"
)

// DateLayout is the calendar-day format used across inputs, logs and the API
const DateLayout = "2006-01-02"

// PriceField selects which bar price a trade is executed at
type PriceField string

const (
	PriceClose PriceField = "close"
	PriceOpen  PriceField = "open"
)

// Observation is one ticker's row for one date, produced by the external
// feature/model pipeline. Immutable once ingested.
// OHLCV values of 0 mean "not provided".
type Observation struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`

	Open   float64 `json:"open,omitempty"`
	High   float64 `json:"high,omitempty"`
	Low    float64 `json:"low,omitempty"`
	Close  float64 `json:"close,omitempty"`
	Volume float64 `json:"volume,omitempty"`

	Score  *float64 `json:"score,omitempty"`  // continuous estimate (score policy)
	Signal *int     `json:"signal,omitempty"` // -1, 0, 1 (signal policy)
}

// Price returns the trade price for the given field; ok is false when the
// price was not provided.
func (o *Observation) Price(field PriceField) (float64, bool) {
	p := o.Close
	if field == PriceOpen {
		p = o.Open
	}
	return p, p > 0
}

// Day truncates t to its UTC calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Float returns a pointer to v (helper for optional scores)
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v (helper for optional signals)
func Int(v int) *int { return &v }

// CrossSection is the set of observations sharing one simulation date.
// Observations are ordered by ticker and tickers are unique.
type CrossSection struct {
	Date         time.Time     `json:"date"`
	Observations []Observation `json:"observations"`
}

// Get finds the observation for a ticker
func (cs *CrossSection) Get(ticker string) (*Observation, bool) {
	i := sort.Search(len(cs.Observations), func(i int) bool {
		return cs.Observations[i].Ticker >= ticker
	})
	if i < len(cs.Observations) && cs.Observations[i].Ticker == ticker {
		return &cs.Observations[i], true
	}
	return nil, false
}

// Tickers returns the tickers present on this date, in order
func (cs *CrossSection) Tickers() []string {
	out := make([]string, len(cs.Observations))
	for i := range cs.Observations {
		out[i] = cs.Observations[i].Ticker
	}
	return out
}

// Prices maps ticker to trade price for every observation that has one
func (cs *CrossSection) Prices(field PriceField) map[string]float64 {
	prices := make(map[string]float64, len(cs.Observations))
	for i := range cs.Observations {
		if p, ok := cs.Observations[i].Price(field); ok {
			prices[cs.Observations[i].Ticker] = p
		}
	}
	return prices
}
