// Package position defines the mutable position record the exit engine
// advances tick by tick. Positions are created by the order-execution
// side on fill and handed in already open; the engine never originates
// or destroys them.
package position

import (
	"time"

	"github.com/google/uuid"

	"crypto-risk-engine/internal/market"
	"crypto-risk-engine/internal/risk"
)

// Status is the lifecycle state of a position.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Position is the unit of state the engine mutates. Side and EntryPrice
// are fixed at creation; stop, take-profit and PnL fields are advanced by
// the exit engine only.
type Position struct {
	ID     string      `json:"id"`
	Symbol string      `json:"symbol"`
	Side   market.Side `json:"side"`
	Status Status      `json:"status"`

	EntryPrice        float64 `json:"entryPrice"`
	CurrentPrice      float64 `json:"currentPrice"`
	Quantity          float64 `json:"quantity"`
	RemainingQuantity float64 `json:"remainingQuantity"`

	StopLoss         float64           `json:"stopLoss"`
	StopLossType     string            `json:"stopLossType"`
	TakeProfits      []float64         `json:"takeProfits"`
	TakeProfitLevels []TakeProfitLevel `json:"takeProfitLevels"`
	TakeProfitType   string            `json:"takeProfitType"`

	TrailingStopActive   bool           `json:"trailingStopActive"`
	SteppedTrailingSteps []TrailingStep `json:"steppedTrailingSteps,omitempty"`
	CurrentTrailingStep  int            `json:"currentTrailingStep"`
	MovedToBreakeven     bool           `json:"movedToBreakeven"`

	HighestPrice float64 `json:"highestPrice"`
	LowestPrice  float64 `json:"lowestPrice"`

	UnrealizedPnL float64 `json:"unrealizedPnl"`
	RealizedPnL   float64 `json:"realizedPnl"`

	OpenedAt      time.Time `json:"openedAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// New creates an open position at the given fill. The favorable-excursion
// trackers start at the entry price and the trailing-step cursor before
// the first step.
func New(symbol string, side market.Side, entryPrice, quantity float64) *Position {
	now := time.Now()
	return &Position{
		ID:                  uuid.New().String(),
		Symbol:              symbol,
		Side:                side,
		Status:              StatusOpen,
		EntryPrice:          entryPrice,
		CurrentPrice:        entryPrice,
		Quantity:            quantity,
		RemainingQuantity:   quantity,
		CurrentTrailingStep: -1,
		HighestPrice:        entryPrice,
		LowestPrice:         entryPrice,
		OpenedAt:            now,
		LastUpdatedAt:       now,
	}
}

// Validate checks the creation-time invariants.
func (p *Position) Validate() error {
	if p.Symbol == "" {
		return &risk.ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if !p.Side.Valid() {
		return &risk.ValidationError{Field: "side", Value: string(p.Side), Reason: "must be LONG or SHORT"}
	}
	if p.EntryPrice <= 0 {
		return &risk.ValidationError{Field: "entryPrice", Value: p.EntryPrice, Reason: "must be positive"}
	}
	if p.Quantity <= 0 {
		return &risk.ValidationError{Field: "quantity", Value: p.Quantity, Reason: "must be positive"}
	}
	if p.RemainingQuantity <= 0 || p.RemainingQuantity > p.Quantity {
		return &risk.ValidationError{Field: "remainingQuantity", Value: p.RemainingQuantity, Reason: "must be in (0, quantity]"}
	}
	if len(p.TakeProfitLevels) > 0 {
		if err := ValidateTakeProfitLevels(p.TakeProfitLevels); err != nil {
			return err
		}
	}
	if len(p.SteppedTrailingSteps) > 0 {
		if err := ValidateTrailingSteps(p.SteppedTrailingSteps); err != nil {
			return err
		}
	}
	return nil
}

// IsLong reports whether the position profits from rising prices.
func (p *Position) IsLong() bool {
	return p.Side == market.SideLong
}

// UpdateMarketPrice records a new tick: current price, unrealized PnL on
// the remaining quantity, favorable-excursion trackers and the update
// timestamp.
func (p *Position) UpdateMarketPrice(price float64) {
	p.CurrentPrice = price

	if p.IsLong() {
		p.UnrealizedPnL = (price - p.EntryPrice) * p.RemainingQuantity
	} else {
		p.UnrealizedPnL = (p.EntryPrice - price) * p.RemainingQuantity
	}

	if price > p.HighestPrice {
		p.HighestPrice = price
	}
	if price < p.LowestPrice || p.LowestPrice == 0 {
		p.LowestPrice = price
	}

	p.LastUpdatedAt = time.Now()
}

// ProfitPercent returns the signed gain at the given price relative to
// entry, in percent. Positive values are favorable for either side.
func (p *Position) ProfitPercent(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	if p.IsLong() {
		return (price - p.EntryPrice) / p.EntryPrice * 100
	}
	return (p.EntryPrice - price) / p.EntryPrice * 100
}

// Age returns how long the position has been open.
func (p *Position) Age(now time.Time) time.Duration {
	return now.Sub(p.OpenedAt)
}

// TotalPnL returns realized plus unrealized PnL.
func (p *Position) TotalPnL() float64 {
	return p.RealizedPnL + p.UnrealizedPnL
}

// Close realizes the remaining quantity at the given exit price and marks
// the position closed.
func (p *Position) Close(exitPrice float64) {
	p.CurrentPrice = exitPrice

	if p.IsLong() {
		p.RealizedPnL += (exitPrice - p.EntryPrice) * p.RemainingQuantity
	} else {
		p.RealizedPnL += (p.EntryPrice - exitPrice) * p.RemainingQuantity
	}

	p.RemainingQuantity = 0
	p.UnrealizedPnL = 0
	p.Status = StatusClosed
	p.LastUpdatedAt = time.Now()
}
