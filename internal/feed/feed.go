// Package feed turns per-ticker observation series into a date-ordered
// sequence of cross-sections.
package feed

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/wonny/equitysim/internal/contracts"
)

// Requirement names the value every observation must carry
type Requirement int

const (
	RequireScore Requirement = iota
	RequireSignal
)

func (r Requirement) String() string {
	if r == RequireSignal {
		return "signal"
	}
	return "score"
}

// Feed is a finite, restartable iterator over cross-sections.
// Not safe for concurrent use.
type Feed struct {
	tickers []string
	series  map[string][]contracts.Observation
	dates   []time.Time

	pos     int
	cursors map[string]int
}

// New validates the series and indexes their dates.
// Input slices are copied; callers may reuse them.
func New(series map[string][]contracts.Observation, req Requirement) (*Feed, error) {
	f := &Feed{
		series:  make(map[string][]contracts.Observation, len(series)),
		cursors: make(map[string]int, len(series)),
	}

	seen := make(map[time.Time]struct{})
	for ticker, obs := range series {
		rows := make([]contracts.Observation, len(obs))
		copy(rows, obs)

		for i := range rows {
			rows[i].Date = contracts.Day(rows[i].Date)
			if rows[i].Ticker == "" {
				rows[i].Ticker = ticker
			}
			if err := check(ticker, &rows[i], req); err != nil {
				return nil, err
			}
		}

		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
		for i := 1; i < len(rows); i++ {
			if rows[i].Date.Equal(rows[i-1].Date) {
				return nil, &DataError{Ticker: ticker, Date: rows[i].Date, Err: ErrDuplicateDate}
			}
		}
		if len(rows) == 0 {
			continue
		}

		for i := range rows {
			seen[rows[i].Date] = struct{}{}
		}
		f.series[ticker] = rows
		f.tickers = append(f.tickers, ticker)
	}

	sort.Strings(f.tickers)
	f.dates = make([]time.Time, 0, len(seen))
	for d := range seen {
		f.dates = append(f.dates, d)
	}
	sort.Slice(f.dates, func(i, j int) bool { return f.dates[i].Before(f.dates[j]) })

	return f, nil
}

func check(ticker string, o *contracts.Observation, req Requirement) error {
	if o.Ticker != ticker {
		return &DataError{Ticker: ticker, Date: o.Date, Reason: o.Ticker, Err: ErrTickerMismatch}
	}

	switch req {
	case RequireSignal:
		if o.Signal == nil {
			return &DataError{Ticker: ticker, Date: o.Date, Reason: "signal", Err: ErrMissingValue}
		}
		if s := *o.Signal; s < -1 || s > 1 {
			return &DataError{Ticker: ticker, Date: o.Date, Reason: "got " + strconv.Itoa(s), Err: ErrInvalidSignal}
		}
	default:
		if o.Score == nil || math.IsNaN(*o.Score) || math.IsInf(*o.Score, 0) {
			return &DataError{Ticker: ticker, Date: o.Date, Reason: "score", Err: ErrMissingValue}
		}
	}
	return nil
}

// Next returns the cross-section for the next date, or false when the
// sequence is exhausted.
func (f *Feed) Next() (contracts.CrossSection, bool) {
	if f.pos >= len(f.dates) {
		return contracts.CrossSection{}, false
	}
	date := f.dates[f.pos]
	f.pos++

	cs := contracts.CrossSection{Date: date}
	for _, ticker := range f.tickers {
		rows := f.series[ticker]
		i := f.cursors[ticker]
		if i < len(rows) && rows[i].Date.Equal(date) {
			cs.Observations = append(cs.Observations, rows[i])
			f.cursors[ticker] = i + 1
		}
	}
	return cs, true
}

// Reset rewinds the feed to the first date
func (f *Feed) Reset() {
	f.pos = 0
	for t := range f.cursors {
		delete(f.cursors, t)
	}
}

// Len is the number of distinct dates
func (f *Feed) Len() int {
	return len(f.dates)
}

// Tickers returns every ticker with at least one observation
func (f *Feed) Tickers() []string {
	out := make([]string, len(f.tickers))
	copy(out, f.tickers)
	return out
}

// Fingerprint hashes the full input so identical data yields identical keys
func (f *Feed) Fingerprint() string {
	h := sha256.New()
	buf := make([]byte, 8)
	putFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		h.Write(buf)
	}

	for _, ticker := range f.tickers {
		h.Write([]byte(ticker))
		h.Write([]byte{0})
		for _, o := range f.series[ticker] {
			binary.LittleEndian.PutUint64(buf, uint64(o.Date.Unix()))
			h.Write(buf)
			putFloat(o.Open)
			putFloat(o.High)
			putFloat(o.Low)
			putFloat(o.Close)
			putFloat(o.Volume)
			if o.Score != nil {
				putFloat(*o.Score)
			}
			if o.Signal != nil {
				putFloat(float64(*o.Signal))
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
