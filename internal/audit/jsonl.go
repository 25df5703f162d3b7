package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/wonny/equitysim/internal/contracts"
)

type opType int

const (
	opWrite opType = iota
	opFlush
	opClose
)

type op struct {
	typ  opType
	rec  contracts.AuditRecord
	done chan error
}

var errSinkClosed = errors.New("audit sink closed")

// JSONLSink appends one JSON object per line. Write only enqueues;
// encoding and file I/O happen on a background goroutine, and the first
// I/O error is reported by Flush or Close.
type JSONLSink struct {
	path string
	ch   chan op

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool

	sendMu sync.Mutex
	wg     sync.WaitGroup
}

// NewJSONLSink opens path for appending. bufferSize is the queue capacity.
func NewJSONLSink(path string, bufferSize int) (*JSONLSink, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	s := &JSONLSink{path: path, ch: make(chan op, bufferSize)}
	s.wg.Add(1)
	go s.loop(f)

	return s, nil
}

// Write enqueues rec
func (s *JSONLSink) Write(_ context.Context, rec contracts.AuditRecord) error {
	if s.closed.Load() {
		return errSinkClosed
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed.Load() {
		return errSinkClosed
	}
	s.ch <- op{typ: opWrite, rec: rec}
	return nil
}

// Flush waits until every queued record reaches the file
func (s *JSONLSink) Flush() error {
	if s.closed.Load() {
		return nil
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed.Load() {
		return nil
	}
	done := make(chan error, 1)
	s.ch <- op{typ: opFlush, done: done}
	return <-done
}

// Close flushes and stops the writer goroutine
func (s *JSONLSink) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.sendMu.Lock()
		defer s.sendMu.Unlock()
		done := make(chan error, 1)
		s.ch <- op{typ: opClose, done: done}
		s.closeErr = <-done
		close(s.ch)
	})
	s.wg.Wait()
	return s.closeErr
}

func (s *JSONLSink) loop(f *os.File) {
	defer s.wg.Done()
	defer f.Close()

	bw := bufio.NewWriterSize(f, 64<<10)
	var ioErr error
	reply := func(err error, done chan error) {
		if ioErr == nil {
			ioErr = err
		}
		if done != nil {
			done <- ioErr
		}
	}

	for req := range s.ch {
		switch req.typ {
		case opWrite:
			if ioErr != nil {
				continue
			}
			b, err := json.Marshal(req.rec)
			if err == nil {
				_, err = bw.Write(append(b, '\n'))
			}
			if err != nil {
				ioErr = fmt.Errorf("write %s: %w", s.path, err)
			}
		case opFlush:
			reply(bw.Flush(), req.done)
		case opClose:
			reply(bw.Flush(), req.done)
			return
		}
	}
}
