package contracts

import "time"

// AuditTimeLayout is ISO-8601 without zone; the simulated date is the clock,
// which keeps replays byte-identical.
const AuditTimeLayout = "2006-01-02T15:04:05"

// AuditRecord is one append-only entry per order attempt
type AuditRecord struct {
	Timestamp string  `json:"timestamp"`
	Ticker    string  `json:"ticker"`
	Action    string  `json:"action"`
	Outcome   string  `json:"outcome"`
	Price     float64 `json:"price"`
}

// NewAuditRecord builds the record for an executed (or refused) order
func NewAuditRecord(order Order, outcome Outcome) AuditRecord {
	return AuditRecord{
		Timestamp: order.Date.Format(AuditTimeLayout),
		Ticker:    order.Ticker,
		Action:    string(order.Kind),
		Outcome:   outcome.Label(),
		Price:     outcome.Price,
	}
}

// IsRejection reports whether the record describes a refused order
func (r *AuditRecord) IsRejection() bool {
	return len(r.Outcome) >= len(StatusRejected) && r.Outcome[:len(StatusRejected)] == string(StatusRejected)
}

// ParseAuditTime parses a record timestamp back into a date
func ParseAuditTime(ts string) (time.Time, error) {
	return time.Parse(AuditTimeLayout, ts)
}
