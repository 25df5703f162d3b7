package execution

import (
	"github.com/wonny/equitysim/internal/contracts"
)

// Broker is the account orders are executed against
// ⭐ SSOT: 주문 실행 인터페이스는 여기서만 정의
type Broker interface {
	// Execute moves a ticker to the order's target weight. It never
	// returns an error: refusals are reported in the Outcome.
	Execute(order contracts.Order) contracts.Outcome

	// Holdings returns signed share counts of open positions
	Holdings() map[string]int64
}

// Summary counts what happened to one date's orders
type Summary struct {
	Orders     int
	Filled     int
	Unchanged  int
	Rejected   int
	Commission float64
}

// Add accumulates another summary
func (s *Summary) Add(o Summary) {
	s.Orders += o.Orders
	s.Filled += o.Filled
	s.Unchanged += o.Unchanged
	s.Rejected += o.Rejected
	s.Commission += o.Commission
}

func (s *Summary) record(out contracts.Outcome) {
	s.Orders++
	switch out.Status {
	case contracts.StatusFilled:
		s.Filled++
	case contracts.StatusUnchanged:
		s.Unchanged++
	case contracts.StatusRejected:
		s.Rejected++
	}
	s.Commission += out.Commission
}
