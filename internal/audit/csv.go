package audit

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/wonny/equitysim/internal/contracts"
)

// CSVHeader is written once at the top of a new file
var CSVHeader = []string{"timestamp", "ticker", "action", "outcome", "price"}

// CSVSink appends rows to a CSV file. Existing content is never rewritten.
type CSVSink struct {
	mu sync.Mutex
	f  *os.File
	bw *bufio.Writer
	w  *csv.Writer
}

// NewCSVSink opens path for appending, writing the header if the file is new
func NewCSVSink(path string) (*CSVSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat audit log: %w", err)
	}

	bw := bufio.NewWriter(f)
	s := &CSVSink{f: f, bw: bw, w: csv.NewWriter(bw)}
	if info.Size() == 0 {
		if err := s.w.Write(CSVHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("write audit header: %w", err)
		}
	}
	return s, nil
}

// Write appends one row
func (s *CSVSink) Write(_ context.Context, rec contracts.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.w.Write([]string{
		rec.Timestamp,
		rec.Ticker,
		rec.Action,
		rec.Outcome,
		strconv.FormatFloat(rec.Price, 'f', -1, 64),
	})
}

// Flush pushes buffered rows to the file
func (s *CSVSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	return s.bw.Flush()
}

// Close flushes and closes the file
func (s *CSVSink) Close() error {
	if err := s.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
