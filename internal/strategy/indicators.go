package strategy

import (
	"math"

	"crypto-risk-engine/internal/market"
	"crypto-risk-engine/internal/risk"
)

// Default indicator parameters.
const (
	DefaultATRPeriod         = 14
	DefaultAvgATRPeriods     = 50
	DefaultSwingLeftBars     = 5
	DefaultSwingRightBars    = 5
	DefaultStructureLookback = 50
	DefaultSARAcceleration   = 0.02
	DefaultSARMaximum        = 0.2
)

// FibExtensionRatios are the extension ratios projected beyond a swing.
var FibExtensionRatios = []float64{0.618, 1.0, 1.618, 2.618}

// ============================================================================
// ATR (Average True Range)
// ============================================================================

// CalculateATR calculates the Average True Range over the last period
// candles. True range per step is the largest of high-low, |high-prevClose|
// and |low-prevClose|.
func CalculateATR(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, &risk.ValidationError{Field: "period", Value: period, Reason: "must be positive"}
	}
	if len(candles) < period+1 {
		return 0, &risk.DataError{Required: period + 1, Actual: len(candles), Reason: "ATR needs period+1 candles"}
	}

	trSum := 0.0
	startIdx := len(candles) - period

	for i := startIdx; i < len(candles); i++ {
		high := candles[i].High
		low := candles[i].Low
		prevClose := candles[i-1].Close

		tr := math.Max(
			high-low,
			math.Max(
				math.Abs(high-prevClose),
				math.Abs(low-prevClose),
			),
		)

		trSum += tr
	}

	return trSum / float64(period), nil
}

// CalculateAverageATR averages the ATR as of each of the last numPeriods
// bars, giving the volatility baseline used for adaptive multipliers.
func CalculateAverageATR(candles []market.Candle, period, numPeriods int) (float64, error) {
	if numPeriods <= 0 {
		return 0, &risk.ValidationError{Field: "numPeriods", Value: numPeriods, Reason: "must be positive"}
	}
	if _, err := CalculateATR(candles, period); err != nil {
		return 0, err
	}

	count := numPeriods
	if max := len(candles) - period; count > max {
		count = max
	}

	sum := 0.0
	for i := len(candles) - count; i < len(candles); i++ {
		atr, err := CalculateATR(candles[:i+1], period)
		if err != nil {
			return 0, err
		}
		sum += atr
	}

	return sum / float64(count), nil
}

// AdaptiveATRMultiplier widens or tightens the ATR stop distance based on
// how current volatility compares to its baseline: 1.5x in quiet markets,
// 2.5x in volatile ones, 2.0x otherwise.
func AdaptiveATRMultiplier(currentATR, avgATR float64) float64 {
	if avgATR <= 0 {
		return 2.0
	}
	if currentATR < 0.8*avgATR {
		return 1.5
	}
	if currentATR > 1.2*avgATR {
		return 2.5
	}
	return 2.0
}

// ============================================================================
// PARABOLIC SAR
// ============================================================================

// CalculateParabolicSAR computes the SAR series for the candles. Each step
// the SAR moves toward the extreme point by acceleration*(EP-SAR); when
// price crosses the SAR the trend flips, the SAR resets to the prior
// extreme and the acceleration factor restarts. Acceleration grows by the
// base step on every new extreme, capped at maximum.
func CalculateParabolicSAR(candles []market.Candle, acceleration, maximum float64) ([]float64, error) {
	if acceleration <= 0 || maximum < acceleration {
		return nil, &risk.ValidationError{Field: "acceleration", Value: acceleration, Reason: "need 0 < acceleration <= maximum"}
	}
	if len(candles) < 2 {
		return nil, &risk.DataError{Required: 2, Actual: len(candles), Reason: "parabolic SAR needs at least 2 candles"}
	}

	sar := make([]float64, len(candles))
	uptrend := candles[1].Close >= candles[0].Close
	af := acceleration

	var ep float64
	if uptrend {
		sar[0] = candles[0].Low
		ep = candles[0].High
	} else {
		sar[0] = candles[0].High
		ep = candles[0].Low
	}

	for i := 1; i < len(candles); i++ {
		next := sar[i-1] + af*(ep-sar[i-1])

		if uptrend {
			if candles[i].Low < next {
				// Reversal: flip trend, restart from the prior extreme
				uptrend = false
				next = ep
				ep = candles[i].Low
				af = acceleration
			} else if candles[i].High > ep {
				ep = candles[i].High
				af = math.Min(af+acceleration, maximum)
			}
		} else {
			if candles[i].High > next {
				uptrend = true
				next = ep
				ep = candles[i].High
				af = acceleration
			} else if candles[i].Low < ep {
				ep = candles[i].Low
				af = math.Min(af+acceleration, maximum)
			}
		}

		sar[i] = next
	}

	return sar, nil
}

// ============================================================================
// SWING DETECTION
// ============================================================================

// FindSwingHighs returns the highs that are strictly higher than all
// leftBars candles before and rightBars candles after them, in
// chronological order.
func FindSwingHighs(candles []market.Candle, leftBars, rightBars int) []float64 {
	var swings []float64

	for i := leftBars; i < len(candles)-rightBars; i++ {
		high := candles[i].High
		isSwing := true

		for j := i - leftBars; j < i && isSwing; j++ {
			if candles[j].High >= high {
				isSwing = false
			}
		}
		for j := i + 1; j <= i+rightBars && isSwing; j++ {
			if candles[j].High >= high {
				isSwing = false
			}
		}

		if isSwing {
			swings = append(swings, high)
		}
	}

	return swings
}

// FindSwingLows returns the lows that are strictly lower than all leftBars
// candles before and rightBars candles after them, in chronological order.
func FindSwingLows(candles []market.Candle, leftBars, rightBars int) []float64 {
	var swings []float64

	for i := leftBars; i < len(candles)-rightBars; i++ {
		low := candles[i].Low
		isSwing := true

		for j := i - leftBars; j < i && isSwing; j++ {
			if candles[j].Low <= low {
				isSwing = false
			}
		}
		for j := i + 1; j <= i+rightBars && isSwing; j++ {
			if candles[j].Low <= low {
				isSwing = false
			}
		}

		if isSwing {
			swings = append(swings, low)
		}
	}

	return swings
}

// ============================================================================
// SUPPORT AND RESISTANCE
// ============================================================================

// FindNearestSupport returns the swing low closest below currentPrice
// within the lookback window. When no swing low sits below the price it
// falls back to the lowest low of the window.
func FindNearestSupport(candles []market.Candle, currentPrice float64, lookback int) (float64, error) {
	window, err := lookbackWindow(candles, lookback)
	if err != nil {
		return 0, err
	}

	support := 0.0
	found := false
	for _, low := range FindSwingLows(window, DefaultSwingLeftBars, DefaultSwingRightBars) {
		if low < currentPrice && (!found || currentPrice-low < currentPrice-support) {
			support = low
			found = true
		}
	}
	if found {
		return support, nil
	}

	lowest := window[0].Low
	for _, c := range window {
		if c.Low < lowest {
			lowest = c.Low
		}
	}
	return lowest, nil
}

// FindNearestResistance returns the swing high closest above currentPrice
// within the lookback window, falling back to the highest high.
func FindNearestResistance(candles []market.Candle, currentPrice float64, lookback int) (float64, error) {
	window, err := lookbackWindow(candles, lookback)
	if err != nil {
		return 0, err
	}

	resistance := 0.0
	found := false
	for _, high := range FindSwingHighs(window, DefaultSwingLeftBars, DefaultSwingRightBars) {
		if high > currentPrice && (!found || high-currentPrice < resistance-currentPrice) {
			resistance = high
			found = true
		}
	}
	if found {
		return resistance, nil
	}

	highest := window[0].High
	for _, c := range window {
		if c.High > highest {
			highest = c.High
		}
	}
	return highest, nil
}

func lookbackWindow(candles []market.Candle, lookback int) ([]market.Candle, error) {
	if len(candles) == 0 {
		return nil, &risk.DataError{Required: 1, Actual: 0, Reason: "support/resistance needs candles"}
	}
	if lookback <= 0 {
		lookback = DefaultStructureLookback
	}
	if len(candles) > lookback {
		return candles[len(candles)-lookback:], nil
	}
	return candles, nil
}

// ============================================================================
// FIBONACCI EXTENSIONS
// ============================================================================

// CalculateFibonacciExtension projects extension levels beyond a swing:
// above the swing high for longs, below the swing low for shorts. Levels
// are returned in ratio order.
func CalculateFibonacciExtension(swingLow, swingHigh float64, side market.Side) []float64 {
	diff := swingHigh - swingLow
	levels := make([]float64, 0, len(FibExtensionRatios))

	for _, ratio := range FibExtensionRatios {
		if side == market.SideShort {
			levels = append(levels, swingLow-diff*ratio)
		} else {
			levels = append(levels, swingHigh+diff*ratio)
		}
	}

	return levels
}

// ============================================================================
// PIVOT POINTS
// ============================================================================

// PivotPoints holds pivot point levels
type PivotPoints struct {
	PP float64 // Pivot Point
	R1 float64 // Resistance 1
	R2 float64 // Resistance 2
	R3 float64 // Resistance 3
	S1 float64 // Support 1
	S2 float64 // Support 2
	S3 float64 // Support 3
}

// CalculateStandardPivotPoints calculates classic pivot levels from the
// prior period's candle.
func CalculateStandardPivotPoints(prev market.Candle) *PivotPoints {
	high := prev.High
	low := prev.Low
	close := prev.Close

	pp := (high + low + close) / 3

	return &PivotPoints{
		PP: pp,
		R1: (2 * pp) - low,
		R2: pp + (high - low),
		R3: high + 2*(pp-low),
		S1: (2 * pp) - high,
		S2: pp - (high - low),
		S3: low - 2*(high-pp),
	}
}

// ============================================================================
// VOLUME ANALYSIS
// ============================================================================

// CalculateAverageVolume calculates average volume over a period. A period
// longer than the series shrinks to the available candles.
func CalculateAverageVolume(candles []market.Candle, period int) float64 {
	if len(candles) == 0 || period <= 0 {
		return 0
	}
	if len(candles) < period {
		period = len(candles)
	}

	sum := 0.0
	startIdx := len(candles) - period

	for i := startIdx; i < len(candles); i++ {
		sum += candles[i].Volume
	}

	return sum / float64(period)
}
