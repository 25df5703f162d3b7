package backtest

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/equitysim/internal/commission"
	"github.com/wonny/equitysim/internal/contracts"
	"github.com/wonny/equitysim/internal/strategyconfig"
)

// Portfolio is the simulated account: cash plus whole-share positions.
// One writer, sequential steps; not safe for concurrent use.
// ⭐ SSOT: 현금/포지션 변경은 Execute에서만
type Portfolio struct {
	cash            decimal.Decimal
	positions       map[string]*Position
	prices          map[string]float64 // last known price per ticker
	date            time.Time
	commission      commission.Model
	marginAllowance float64

	totalCommission decimal.Decimal
}

// Position is an open holding. Quantity is signed (negative = short) and
// never zero.
type Position struct {
	Ticker     string
	Quantity   int64
	EntryPrice float64 // average entry on the current side
	EntryDate  time.Time
	LastPrice  float64
}

// Value is quantity times last price (negative for shorts)
func (p *Position) Value() decimal.Decimal {
	return decimal.NewFromFloat(p.LastPrice).Mul(decimal.NewFromInt(p.Quantity))
}

// NewPortfolio creates an account holding only cash
func NewPortfolio(initialCash float64, model commission.Model, marginAllowance float64) (*Portfolio, error) {
	if initialCash <= 0 {
		return nil, strategyconfig.ValidationError{Field: "portfolio.initial_cash", Message: "must be > 0"}
	}
	if marginAllowance < 0 {
		return nil, strategyconfig.ValidationError{Field: "portfolio.margin_allowance", Message: "must be >= 0"}
	}
	if model == nil {
		model = commission.Free{}
	}

	return &Portfolio{
		cash:            decimal.NewFromFloat(initialCash),
		positions:       make(map[string]*Position),
		prices:          make(map[string]float64),
		commission:      model,
		marginAllowance: marginAllowance,
		totalCommission: decimal.Zero,
	}, nil
}

// Mark advances the clock and records the day's prices. Held tickers
// without a price keep their last known one.
func (p *Portfolio) Mark(date time.Time, prices map[string]float64) {
	p.date = date
	for ticker, px := range prices {
		if px <= 0 {
			continue
		}
		p.prices[ticker] = px
		if pos, ok := p.positions[ticker]; ok {
			pos.LastPrice = px
		}
	}
}

// Cash returns the cash balance
func (p *Portfolio) Cash() decimal.Decimal {
	return p.cash
}

// EquityDecimal returns cash plus the marked value of every position
func (p *Portfolio) EquityDecimal() decimal.Decimal {
	equity := p.cash
	for _, pos := range p.positions {
		equity = equity.Add(pos.Value())
	}
	return equity
}

// Equity returns EquityDecimal as a float
func (p *Portfolio) Equity() float64 {
	return p.EquityDecimal().InexactFloat64()
}

// TotalCommission returns the commission paid so far
func (p *Portfolio) TotalCommission() decimal.Decimal {
	return p.totalCommission
}

// Holdings returns signed share counts of open positions
func (p *Portfolio) Holdings() map[string]int64 {
	out := make(map[string]int64, len(p.positions))
	for t, pos := range p.positions {
		out[t] = pos.Quantity
	}
	return out
}

// Position returns a copy of the holding for ticker
func (p *Portfolio) Position(ticker string) (Position, bool) {
	pos, ok := p.positions[ticker]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Execute moves ticker to the order's target weight of current equity.
// size = trunc((w*equity - qty*price) / price) whole shares; a zero target
// closes the whole position. The order is applied in full or not at all:
// a trade that lowers cash below -marginAllowance*equity is rejected.
func (p *Portfolio) Execute(order contracts.Order) contracts.Outcome {
	price, ok := p.prices[order.Ticker]
	if !ok {
		return contracts.Outcome{Status: contracts.StatusRejected, Reason: contracts.ReasonNoPrice}
	}

	var held int64
	if pos, exists := p.positions[order.Ticker]; exists {
		held = pos.Quantity
	}

	equity := p.EquityDecimal()
	size := -held
	if !order.IsClose() {
		target := equity.InexactFloat64() * order.TargetWeight
		size = int64(math.Trunc((target - float64(held)*price) / price))
	}
	if size == 0 {
		return contracts.Outcome{Status: contracts.StatusUnchanged, Price: price}
	}

	px := decimal.NewFromFloat(price)
	fee := p.commission.Cost(float64(size), price)
	delta := px.Mul(decimal.NewFromInt(size)).Neg().Sub(fee)
	newCash := p.cash.Add(delta)

	floor := equity.Mul(decimal.NewFromFloat(p.marginAllowance)).Neg()
	if delta.IsNegative() && newCash.LessThan(floor) {
		return contracts.Outcome{
			Status: contracts.StatusRejected,
			Reason: contracts.ReasonInsufficientCash,
			Size:   size,
			Price:  price,
		}
	}

	p.cash = newCash
	p.totalCommission = p.totalCommission.Add(fee)
	p.apply(order.Ticker, held, size, price)

	return contracts.Outcome{
		Status:     contracts.StatusFilled,
		Size:       size,
		Price:      price,
		Commission: fee.InexactFloat64(),
	}
}

func (p *Portfolio) apply(ticker string, held, size int64, price float64) {
	qty := held + size
	if qty == 0 {
		delete(p.positions, ticker)
		return
	}

	pos, exists := p.positions[ticker]
	switch {
	case !exists || (held > 0) != (qty > 0):
		// new position or flipped side
		p.positions[ticker] = &Position{
			Ticker:     ticker,
			Quantity:   qty,
			EntryPrice: price,
			EntryDate:  p.date,
			LastPrice:  price,
		}
	case abs(qty) > abs(held):
		// adding on the same side: average the entry
		pos.EntryPrice = (pos.EntryPrice*float64(abs(held)) + price*float64(abs(size))) / float64(abs(qty))
		pos.Quantity = qty
	default:
		pos.Quantity = qty
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Snapshot is the account state at a date boundary
type Snapshot struct {
	Date       time.Time          `json:"date"`
	Cash       float64            `json:"cash"`
	Equity     float64            `json:"equity"`
	GrossLong  float64            `json:"gross_long"`
	GrossShort float64            `json:"gross_short"`
	Positions  []PositionSnapshot `json:"positions"`
}

// PositionSnapshot is one holding inside a Snapshot
type PositionSnapshot struct {
	Ticker     string    `json:"ticker"`
	Quantity   int64     `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	EntryDate  time.Time `json:"entry_date"`
	LastPrice  float64   `json:"last_price"`
	Value      float64   `json:"value"`
	Weight     float64   `json:"weight"`
}

// Snapshot captures cash, equity and positions ordered by ticker
func (p *Portfolio) Snapshot() Snapshot {
	equity := p.EquityDecimal()
	snap := Snapshot{
		Date:      p.date,
		Cash:      p.cash.InexactFloat64(),
		Equity:    equity.InexactFloat64(),
		Positions: make([]PositionSnapshot, 0, len(p.positions)),
	}

	for _, pos := range p.positions {
		value := pos.Value()
		weight := 0.0
		if !equity.IsZero() {
			weight = value.Div(equity).InexactFloat64()
		}
		snap.Positions = append(snap.Positions, PositionSnapshot{
			Ticker:     pos.Ticker,
			Quantity:   pos.Quantity,
			EntryPrice: pos.EntryPrice,
			EntryDate:  pos.EntryDate,
			LastPrice:  pos.LastPrice,
			Value:      value.InexactFloat64(),
			Weight:     weight,
		})
	}
	sort.Slice(snap.Positions, func(i, j int) bool { return snap.Positions[i].Ticker < snap.Positions[j].Ticker })

	for _, ps := range snap.Positions {
		if ps.Weight > 0 {
			snap.GrossLong += ps.Weight
		} else {
			snap.GrossShort += ps.Weight
		}
	}

	return snap
}
