package feed

import (
	"errors"
	"fmt"
	"time"

	"github.com/wonny/equitysim/internal/contracts"
)

// Data errors. A feed refuses to build when any of them is found.
var (
	ErrDuplicateDate  = errors.New("duplicate date")
	ErrInvalidSignal  = errors.New("signal outside {-1,0,1}")
	ErrMissingValue   = errors.New("missing required value")
	ErrTickerMismatch = errors.New("observation ticker does not match series")
)

// DataError locates a bad input row
type DataError struct {
	Ticker string
	Date   time.Time
	Reason string
	Err    error
}

func (e *DataError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Ticker, e.Date.Format(contracts.DateLayout), e.Err)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *DataError) Unwrap() error {
	return e.Err
}
