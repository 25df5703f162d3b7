package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/equitysim/internal/contracts"
)

var dateLayouts = []string{
	contracts.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	contracts.AuditTimeLayout,
}

// column aliases accepted in the header, lower-cased
var scoreColumns = []string{"predicted", "estimated", "score"}

// ReadCSVFile opens path and parses it with ReadCSV
func ReadCSVFile(path string) (map[string][]contracts.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open observations: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV parses a long-format table (one row per ticker and date) into
// per-ticker series. Required columns: date, ticker. Optional: one of
// predicted/estimated/score, signal, open, high, low, close, volume.
// Empty cells leave the value unset; feed.New decides whether that is fatal.
func ReadCSV(r io.Reader) (map[string][]contracts.Observation, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty observations file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	dateCol, ok := cols["date"]
	if !ok {
		return nil, fmt.Errorf("header: missing date column")
	}
	tickerCol, ok := cols["ticker"]
	if !ok {
		return nil, fmt.Errorf("header: missing ticker column")
	}
	scoreCol := -1
	for _, name := range scoreColumns {
		if i, ok := cols[name]; ok {
			scoreCol = i
			break
		}
	}
	column := func(name string) int {
		if i, ok := cols[name]; ok {
			return i
		}
		return -1
	}
	signalCol := column("signal")
	openCol, highCol, lowCol, closeCol, volCol := column("open"), column("high"), column("low"), column("close"), column("volume")

	series := make(map[string][]contracts.Observation)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		cell := func(i int) string {
			if i < 0 || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		ticker := cell(tickerCol)
		if ticker == "" {
			return nil, fmt.Errorf("line %d: empty ticker", line)
		}
		date, err := parseDate(cell(dateCol))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		obs := contracts.Observation{Ticker: ticker, Date: date}
		if obs.Score, err = optionalFloat(cell(scoreCol)); err != nil {
			return nil, fmt.Errorf("line %d: score: %w", line, err)
		}
		if obs.Signal, err = optionalSignal(cell(signalCol)); err != nil {
			return nil, &DataError{Ticker: ticker, Date: date, Reason: fmt.Sprintf("line %d", line), Err: ErrInvalidSignal}
		}
		for _, field := range []struct {
			col int
			dst *float64
		}{
			{openCol, &obs.Open}, {highCol, &obs.High}, {lowCol, &obs.Low}, {closeCol, &obs.Close}, {volCol, &obs.Volume},
		} {
			v, err := optionalFloat(cell(field.col))
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if v != nil {
				*field.dst = *v
			}
		}

		series[ticker] = append(series[ticker], obs)
	}

	return series, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return contracts.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func optionalFloat(s string) (*float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// optionalSignal accepts integral values written as floats ("1.0")
func optionalSignal(s string) (*int, error) {
	v, err := optionalFloat(s)
	if err != nil || v == nil {
		return nil, err
	}
	if *v != math.Trunc(*v) {
		return nil, fmt.Errorf("non-integral signal %v", *v)
	}
	return contracts.Int(int(*v)), nil
}
