// Package exit owns position mutation: the per-tick rule chain that
// advances stops, the partial take-profit bookkeeping and the emergency
// exit check.
package exit

import (
	"crypto-risk-engine/internal/position"
	"crypto-risk-engine/internal/risk"
)

// Config holds the smart-exit flags and thresholds. Percent fields are
// relative to entry price, MaxHoldingTime is in hours.
type Config struct {
	BreakevenEnabled           bool    `json:"breakevenEnabled"`
	BreakevenActivationPercent float64 `json:"breakevenActivationPercent"`
	BreakevenBufferPercent     float64 `json:"breakevenBufferPercent"`

	SteppedTrailingEnabled bool                    `json:"steppedTrailingEnabled"`
	TrailingSteps          []position.TrailingStep `json:"trailingSteps,omitempty"`

	ATRTrailingEnabled           bool    `json:"atrTrailingEnabled"`
	ATRTrailingActivationPercent float64 `json:"atrTrailingActivationPercent"`

	TimeBasedExitEnabled bool    `json:"timeBasedExitEnabled"`
	MaxHoldingTime       float64 `json:"maxHoldingTime"`
	MinProfitForTimeExit float64 `json:"minProfitForTimeExit"`

	VolatilityAdaptationEnabled bool `json:"volatilityAdaptationEnabled"`
	PartialProfitEnabled        bool `json:"partialProfitEnabled"`

	ATRPeriod     int `json:"atrPeriod"`
	AvgATRPeriods int `json:"avgAtrPeriods"`
}

// DefaultConfig enables breakeven at +2% pinned to entry, the standard
// trailing ladder, time exit after 48h below +1%, and volatility
// advisories.
func DefaultConfig() Config {
	return Config{
		BreakevenEnabled:           true,
		BreakevenActivationPercent: 2.0,
		BreakevenBufferPercent:     0,
		SteppedTrailingEnabled:     true,
		TrailingSteps: []position.TrailingStep{
			{ProfitPercent: 2, StopLossPercent: 0},
			{ProfitPercent: 5, StopLossPercent: 2},
			{ProfitPercent: 10, StopLossPercent: 5},
			{ProfitPercent: 15, StopLossPercent: 10},
		},
		ATRTrailingEnabled:           true,
		ATRTrailingActivationPercent: 1.0,
		TimeBasedExitEnabled:         true,
		MaxHoldingTime:               48,
		MinProfitForTimeExit:         1.0,
		VolatilityAdaptationEnabled:  true,
		PartialProfitEnabled:         true,
		ATRPeriod:                    14,
		AvgATRPeriods:                50,
	}
}

// Validate checks the config for out-of-range values.
func (c Config) Validate() error {
	if c.BreakevenEnabled && c.BreakevenActivationPercent <= 0 {
		return &risk.ValidationError{Field: "breakevenActivationPercent", Value: c.BreakevenActivationPercent, Reason: "must be positive when breakeven is enabled"}
	}
	if c.BreakevenBufferPercent < 0 {
		return &risk.ValidationError{Field: "breakevenBufferPercent", Value: c.BreakevenBufferPercent, Reason: "must not be negative"}
	}
	if c.SteppedTrailingEnabled && len(c.TrailingSteps) > 0 {
		if err := position.ValidateTrailingSteps(c.TrailingSteps); err != nil {
			return err
		}
	}
	if c.ATRTrailingEnabled && c.ATRTrailingActivationPercent < 0 {
		return &risk.ValidationError{Field: "atrTrailingActivationPercent", Value: c.ATRTrailingActivationPercent, Reason: "must not be negative"}
	}
	if c.TimeBasedExitEnabled && c.MaxHoldingTime <= 0 {
		return &risk.ValidationError{Field: "maxHoldingTime", Value: c.MaxHoldingTime, Reason: "must be positive when time exit is enabled"}
	}
	if c.ATRPeriod <= 0 {
		return &risk.ValidationError{Field: "atrPeriod", Value: c.ATRPeriod, Reason: "must be positive"}
	}
	if c.AvgATRPeriods <= 0 {
		return &risk.ValidationError{Field: "avgAtrPeriods", Value: c.AvgATRPeriods, Reason: "must be positive"}
	}
	return nil
}
