package position

import (
	"math"

	"crypto-risk-engine/internal/risk"
)

// Take-profit level statuses.
const (
	TPStatusPending = "pending"
	TPStatusHit     = "hit"
)

// ClosePercentTolerance is the allowed deviation of the close-percent sum
// from 100.
const ClosePercentTolerance = 0.01

// TakeProfitLevel is one rung of a multi-level take-profit ladder.
// PercentGain is the distance from entry at which the level sits,
// ClosePercent the share of the original quantity closed when it fires.
type TakeProfitLevel struct {
	Level        int     `json:"level"`
	Price        float64 `json:"price"`
	PercentGain  float64 `json:"percentGain"`
	ClosePercent float64 `json:"closePercent"`
	Status       string  `json:"status"`
}

// TrailingStep is one rung of a stepped trailing-stop ladder: once
// unrealized gain crosses ProfitPercent, the stop locks in
// StopLossPercent above (long) or below (short) entry.
type TrailingStep struct {
	ProfitPercent   float64 `json:"profitPercent"`
	StopLossPercent float64 `json:"stopLossPercent"`
}

// ValidateTakeProfitLevels enforces the ladder invariants: close percents
// sum to 100 within tolerance and percent gains are strictly ascending.
// Violations are rejected, never renormalized.
func ValidateTakeProfitLevels(levels []TakeProfitLevel) error {
	if len(levels) == 0 {
		return &risk.ValidationError{Field: "takeProfitLevels", Reason: "must not be empty"}
	}

	sum := 0.0
	for i, level := range levels {
		if level.PercentGain <= 0 {
			return &risk.ValidationError{Field: "takeProfitLevels.percentGain", Value: level.PercentGain, Reason: "must be positive"}
		}
		if level.ClosePercent <= 0 {
			return &risk.ValidationError{Field: "takeProfitLevels.closePercent", Value: level.ClosePercent, Reason: "must be positive"}
		}
		if i > 0 && level.PercentGain <= levels[i-1].PercentGain {
			return &risk.ValidationError{Field: "takeProfitLevels.percentGain", Value: level.PercentGain, Reason: "must be strictly ascending"}
		}
		sum += level.ClosePercent
	}

	if math.Abs(sum-100) > ClosePercentTolerance {
		return &risk.ValidationError{Field: "takeProfitLevels.closePercent", Value: sum, Reason: "must sum to 100"}
	}

	return nil
}

// ValidateTrailingSteps enforces ascending, positive profit thresholds and
// non-negative lock-in levels below their trigger.
func ValidateTrailingSteps(steps []TrailingStep) error {
	for i, step := range steps {
		if step.ProfitPercent <= 0 {
			return &risk.ValidationError{Field: "steppedTrailingSteps.profitPercent", Value: step.ProfitPercent, Reason: "must be positive"}
		}
		if step.StopLossPercent < 0 {
			return &risk.ValidationError{Field: "steppedTrailingSteps.stopLossPercent", Value: step.StopLossPercent, Reason: "must not be negative"}
		}
		if step.StopLossPercent >= step.ProfitPercent {
			return &risk.ValidationError{Field: "steppedTrailingSteps.stopLossPercent", Value: step.StopLossPercent, Reason: "must be below its profit threshold"}
		}
		if i > 0 && step.ProfitPercent <= steps[i-1].ProfitPercent {
			return &risk.ValidationError{Field: "steppedTrailingSteps.profitPercent", Value: step.ProfitPercent, Reason: "must be strictly ascending"}
		}
	}
	return nil
}
