package contracts

import "time"

// OrderKind labels an order for the audit trail
type OrderKind string

const (
	OrderOpenLong  OrderKind = "open_long"
	OrderOpenShort OrderKind = "open_short"
	OrderClose     OrderKind = "close"
	OrderResize    OrderKind = "resize"
)

// Order asks the portfolio to move a ticker to a target weight.
// Created and consumed within one simulation step.
type Order struct {
	Date         time.Time `json:"date"`
	Ticker       string    `json:"ticker"`
	TargetWeight float64   `json:"target_weight"`
	Kind         OrderKind `json:"kind"`
}

// IsClose checks whether the order flattens the position
func (o *Order) IsClose() bool {
	return o.Kind == OrderClose || o.TargetWeight == 0
}

// ExecutionStatus is the result class of one order attempt
type ExecutionStatus string

const (
	StatusFilled    ExecutionStatus = "filled"
	StatusUnchanged ExecutionStatus = "unchanged" // rounded to zero shares
	StatusRejected  ExecutionStatus = "rejected"
)

// Rejection reasons
const (
	ReasonInsufficientCash = "insufficient cash"
	ReasonNoPrice          = "no price"
)

// Outcome reports what the portfolio did with an order
type Outcome struct {
	Status     ExecutionStatus `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	Size       int64           `json:"size"` // signed shares traded
	Price      float64         `json:"price"`
	Commission float64         `json:"commission"`
}

// Label renders the outcome for the audit log, e.g. "rejected: insufficient cash"
func (o Outcome) Label() string {
	if o.Reason == "" {
		return string(o.Status)
	}
	return string(o.Status) + ": " + o.Reason
}

// IsRejected checks if the order was refused
func (o Outcome) IsRejected() bool {
	return o.Status == StatusRejected
}
