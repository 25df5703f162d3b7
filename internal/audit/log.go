// Package audit records one entry per order attempt to an append-only sink.
package audit

import (
	"context"
	"sync/atomic"

	"github.com/wonny/equitysim/internal/contracts"
)

// Sink persists audit records in arrival order
type Sink interface {
	Write(ctx context.Context, rec contracts.AuditRecord) error
	Close() error
}

// Log filters records by verbosity before they reach the sink.
// Verbose logs every order; otherwise only rejections are written.
type Log struct {
	sink    Sink
	verbose bool

	written    atomic.Int64
	suppressed atomic.Int64
}

// NewLog creates an audit log over sink
func NewLog(sink Sink, verbose bool) *Log {
	return &Log{sink: sink, verbose: verbose}
}

// Append implements contracts.AuditAppender
func (l *Log) Append(ctx context.Context, rec contracts.AuditRecord) error {
	if !l.verbose && !rec.IsRejection() {
		l.suppressed.Add(1)
		return nil
	}
	if err := l.sink.Write(ctx, rec); err != nil {
		return err
	}
	l.written.Add(1)
	return nil
}

// Written is the number of records handed to the sink
func (l *Log) Written() int64 { return l.written.Load() }

// Suppressed is the number of records dropped by the verbosity filter
func (l *Log) Suppressed() int64 { return l.suppressed.Load() }

// Close closes the sink
func (l *Log) Close() error {
	return l.sink.Close()
}
