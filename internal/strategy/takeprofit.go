package strategy

import (
	"math"

	"crypto-risk-engine/internal/market"
	"crypto-risk-engine/internal/position"
	"crypto-risk-engine/internal/risk"
)

// TakeProfitType selects the take-profit placement strategy.
type TakeProfitType string

const (
	TPFixed          TakeProfitType = "fixed"
	TPMultipleLevels TakeProfitType = "multiple_levels"
	TPRiskReward     TakeProfitType = "risk_reward"
	TPFibonacci      TakeProfitType = "fibonacci"
)

// TakeProfitParams carries the inputs for one take-profit calculation.
// Only the fields implied by the type are consulted: Percent for fixed,
// Levels for multiple_levels, StopLoss and RiskRewardRatio for
// risk_reward, swing points or Candles for fibonacci.
type TakeProfitParams struct {
	Type       TakeProfitType
	Side       market.Side
	EntryPrice float64

	Percent float64

	Levels []position.TakeProfitLevel

	StopLoss        float64
	RiskRewardRatio float64

	SwingLow  float64
	SwingHigh float64
	Candles   []market.Candle
}

// CalculateTakeProfit maps the parameterized strategy to a concrete,
// ordered level ladder. Every returned level starts pending; close
// percents always sum to 100.
func CalculateTakeProfit(params TakeProfitParams) ([]position.TakeProfitLevel, error) {
	if !params.Side.Valid() {
		return nil, &risk.ValidationError{Field: "side", Value: string(params.Side), Reason: "must be LONG or SHORT"}
	}
	if params.EntryPrice <= 0 {
		return nil, &risk.ValidationError{Field: "entryPrice", Value: params.EntryPrice, Reason: "must be positive"}
	}

	switch params.Type {
	case TPFixed:
		if params.Percent <= 0 {
			return nil, &risk.ValidationError{Field: "percent", Value: params.Percent, Reason: "must be positive"}
		}
		return []position.TakeProfitLevel{{
			Level:        1,
			Price:        profitPrice(params.EntryPrice, params.Percent, params.Side),
			PercentGain:  params.Percent,
			ClosePercent: 100,
			Status:       position.TPStatusPending,
		}}, nil

	case TPMultipleLevels:
		if err := position.ValidateTakeProfitLevels(params.Levels); err != nil {
			return nil, err
		}
		levels := make([]position.TakeProfitLevel, len(params.Levels))
		for i, spec := range params.Levels {
			levels[i] = position.TakeProfitLevel{
				Level:        i + 1,
				Price:        profitPrice(params.EntryPrice, spec.PercentGain, params.Side),
				PercentGain:  spec.PercentGain,
				ClosePercent: spec.ClosePercent,
				Status:       position.TPStatusPending,
			}
		}
		return levels, nil

	case TPRiskReward:
		if params.StopLoss <= 0 {
			return nil, &risk.ValidationError{Field: "stopLoss", Value: params.StopLoss, Reason: "required for risk_reward take profit"}
		}
		if params.RiskRewardRatio <= 0 {
			return nil, &risk.ValidationError{Field: "riskRewardRatio", Value: params.RiskRewardRatio, Reason: "must be positive"}
		}
		reward := math.Abs(params.EntryPrice-params.StopLoss) * params.RiskRewardRatio
		var price float64
		if params.Side == market.SideLong {
			price = params.EntryPrice + reward
		} else {
			price = params.EntryPrice - reward
		}
		return []position.TakeProfitLevel{{
			Level:        1,
			Price:        price,
			PercentGain:  reward / params.EntryPrice * 100,
			ClosePercent: 100,
			Status:       position.TPStatusPending,
		}}, nil

	case TPFibonacci:
		swingLow, swingHigh, err := resolveSwings(params)
		if err != nil {
			return nil, err
		}
		prices := CalculateFibonacciExtension(swingLow, swingHigh, params.Side)
		closePercent := 100.0 / float64(len(prices))
		levels := make([]position.TakeProfitLevel, len(prices))
		for i, price := range prices {
			levels[i] = position.TakeProfitLevel{
				Level:        i + 1,
				Price:        price,
				PercentGain:  math.Abs(price-params.EntryPrice) / params.EntryPrice * 100,
				ClosePercent: closePercent,
				Status:       position.TPStatusPending,
			}
		}
		return levels, nil

	default:
		return nil, &risk.ValidationError{Field: "type", Value: string(params.Type), Reason: "unknown take profit type"}
	}
}

// profitPrice projects a gain percent from entry in the favorable
// direction.
func profitPrice(entry, percentGain float64, side market.Side) float64 {
	if side == market.SideLong {
		return entry * (1 + percentGain/100)
	}
	return entry * (1 - percentGain/100)
}

// resolveSwings returns the explicit swing points when both are supplied,
// otherwise auto-detects them from the most recent candles.
func resolveSwings(params TakeProfitParams) (float64, float64, error) {
	if params.SwingLow > 0 && params.SwingHigh > 0 {
		if params.SwingHigh <= params.SwingLow {
			return 0, 0, &risk.ValidationError{Field: "swingHigh", Value: params.SwingHigh, Reason: "must be above swingLow"}
		}
		return params.SwingLow, params.SwingHigh, nil
	}
	if len(params.Candles) == 0 {
		return 0, 0, &risk.ValidationError{Field: "candles", Reason: "required when swing points are not supplied"}
	}

	window := params.Candles
	if len(window) > DefaultStructureLookback {
		window = window[len(window)-DefaultStructureLookback:]
	}

	lows := FindSwingLows(window, DefaultSwingLeftBars, DefaultSwingRightBars)
	highs := FindSwingHighs(window, DefaultSwingLeftBars, DefaultSwingRightBars)

	swingLow := 0.0
	if len(lows) > 0 {
		swingLow = lows[len(lows)-1]
	} else {
		swingLow = window[0].Low
		for _, c := range window {
			if c.Low < swingLow {
				swingLow = c.Low
			}
		}
	}

	swingHigh := 0.0
	if len(highs) > 0 {
		swingHigh = highs[len(highs)-1]
	} else {
		swingHigh = window[0].High
		for _, c := range window {
			if c.High > swingHigh {
				swingHigh = c.High
			}
		}
	}

	if swingHigh <= swingLow {
		return 0, 0, &risk.ValidationError{Field: "candles", Reason: "could not detect a valid swing range"}
	}

	return swingLow, swingHigh, nil
}
