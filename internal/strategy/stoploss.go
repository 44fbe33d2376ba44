package strategy

import (
	"crypto-risk-engine/internal/market"
	"crypto-risk-engine/internal/risk"
)

// StopLossType selects the stop-loss placement strategy.
type StopLossType string

const (
	StopFixed          StopLossType = "fixed"
	StopATRBased       StopLossType = "atr_based"
	StopStructureBased StopLossType = "structure_based"
	StopParabolicSAR   StopLossType = "parabolic_sar"
)

// StopLossParams carries the inputs for one stop-loss calculation. Only
// the fields implied by the type are consulted: Percent for fixed,
// Candles (+ATRPeriod) for atr_based, Candles (+Lookback) for
// structure_based, Candles (+Acceleration/Maximum) for parabolic_sar.
type StopLossParams struct {
	Type       StopLossType
	Side       market.Side
	EntryPrice float64

	Percent float64

	Candles      []market.Candle
	ATRPeriod    int
	Lookback     int
	Acceleration float64
	Maximum      float64
}

// CalculateStopLoss maps the parameterized strategy to a concrete stop
// price. Missing inputs raise a ValidationError, insufficient candle
// history a DataError.
func CalculateStopLoss(params StopLossParams) (float64, error) {
	if !params.Side.Valid() {
		return 0, &risk.ValidationError{Field: "side", Value: string(params.Side), Reason: "must be LONG or SHORT"}
	}
	if params.EntryPrice <= 0 {
		return 0, &risk.ValidationError{Field: "entryPrice", Value: params.EntryPrice, Reason: "must be positive"}
	}

	switch params.Type {
	case StopFixed:
		if params.Percent <= 0 || params.Percent >= 100 {
			return 0, &risk.ValidationError{Field: "percent", Value: params.Percent, Reason: "must be in (0, 100)"}
		}
		if params.Side == market.SideLong {
			return params.EntryPrice * (1 - params.Percent/100), nil
		}
		return params.EntryPrice * (1 + params.Percent/100), nil

	case StopATRBased:
		if len(params.Candles) == 0 {
			return 0, &risk.ValidationError{Field: "candles", Reason: "required for atr_based stop loss"}
		}
		period := params.ATRPeriod
		if period <= 0 {
			period = DefaultATRPeriod
		}
		atr, err := CalculateATR(params.Candles, period)
		if err != nil {
			return 0, err
		}
		avgATR, err := CalculateAverageATR(params.Candles, period, DefaultAvgATRPeriods)
		if err != nil {
			return 0, err
		}
		distance := atr * AdaptiveATRMultiplier(atr, avgATR)
		if params.Side == market.SideLong {
			return params.EntryPrice - distance, nil
		}
		return params.EntryPrice + distance, nil

	case StopStructureBased:
		if len(params.Candles) == 0 {
			return 0, &risk.ValidationError{Field: "candles", Reason: "required for structure_based stop loss"}
		}
		lookback := params.Lookback
		if lookback <= 0 {
			lookback = DefaultStructureLookback
		}
		if params.Side == market.SideLong {
			return FindNearestSupport(params.Candles, params.EntryPrice, lookback)
		}
		return FindNearestResistance(params.Candles, params.EntryPrice, lookback)

	case StopParabolicSAR:
		if len(params.Candles) == 0 {
			return 0, &risk.ValidationError{Field: "candles", Reason: "required for parabolic_sar stop loss"}
		}
		accel := params.Acceleration
		if accel <= 0 {
			accel = DefaultSARAcceleration
		}
		max := params.Maximum
		if max <= 0 {
			max = DefaultSARMaximum
		}
		sar, err := CalculateParabolicSAR(params.Candles, accel, max)
		if err != nil {
			return 0, err
		}
		return sar[len(sar)-1], nil

	default:
		return 0, &risk.ValidationError{Field: "type", Value: string(params.Type), Reason: "unknown stop loss type"}
	}
}
