// Package sizing converts account balance, risk tolerance and a chosen
// method into a position size before a trade is opened.
package sizing

import (
	"github.com/rs/zerolog"

	"crypto-risk-engine/internal/risk"
)

// Method selects the sizing formula.
type Method string

const (
	MethodFixed              Method = "fixed"
	MethodPercentage         Method = "percentage"
	MethodKelly              Method = "kelly"
	MethodVolatilityAdjusted Method = "volatility_adjusted"
)

// Config tunes the Kelly branch. The floor keeps a minimal stake when the
// formula reports no positive edge; operators preferring to refuse entry
// instead set it to zero.
type Config struct {
	KellyFraction      float64 `json:"kellyFraction"`      // fraction of full Kelly to use
	KellyFloorFraction float64 `json:"kellyFloorFraction"` // allocation when edge is non-positive
	KellyMaxFraction   float64 `json:"kellyMaxFraction"`   // hard cap on balance fraction
}

// DefaultConfig returns half-Kelly with a 1% floor and a 25% cap.
func DefaultConfig() Config {
	return Config{
		KellyFraction:      0.5,
		KellyFloorFraction: 0.01,
		KellyMaxFraction:   0.25,
	}
}

// Validate checks the config for out-of-range values.
func (c Config) Validate() error {
	if c.KellyFraction <= 0 || c.KellyFraction > 1 {
		return &risk.ValidationError{Field: "kellyFraction", Value: c.KellyFraction, Reason: "must be in (0, 1]"}
	}
	if c.KellyFloorFraction < 0 || c.KellyFloorFraction > 1 {
		return &risk.ValidationError{Field: "kellyFloorFraction", Value: c.KellyFloorFraction, Reason: "must be in [0, 1]"}
	}
	if c.KellyMaxFraction <= 0 || c.KellyMaxFraction > 1 {
		return &risk.ValidationError{Field: "kellyMaxFraction", Value: c.KellyMaxFraction, Reason: "must be in (0, 1]"}
	}
	return nil
}

// Params are the inputs to a sizing decision. Balance, RiskPerTrade,
// StopLossPercent and EntryPrice are required for every method; WinRate
// and AvgWinLoss only for kelly, Volatility and BaseVolatility only for
// volatility_adjusted.
type Params struct {
	Method          Method  `json:"method"`
	Balance         float64 `json:"balance"`
	RiskPerTrade    float64 `json:"riskPerTrade"`    // percent of balance risked per trade
	StopLossPercent float64 `json:"stopLossPercent"` // stop distance from entry, percent
	EntryPrice      float64 `json:"entryPrice"`

	WinRate    float64 `json:"winRate,omitempty"`
	AvgWinLoss float64 `json:"avgWinLoss,omitempty"` // mean win divided by mean loss

	Volatility     float64 `json:"volatility,omitempty"`
	BaseVolatility float64 `json:"baseVolatility,omitempty"`
}

// Result is a sizing decision: Size in quote currency, Quantity in base
// units, RiskAmount the loss if the stop is hit.
type Result struct {
	Size       float64 `json:"size"`
	Quantity   float64 `json:"quantity"`
	RiskAmount float64 `json:"riskAmount"`
	Method     Method  `json:"method"`
}

// Calculator sizes positions according to its config.
type Calculator struct {
	config Config
	logger zerolog.Logger
}

// NewCalculator creates a sizing calculator.
func NewCalculator(config Config, logger zerolog.Logger) *Calculator {
	return &Calculator{
		config: config,
		logger: logger.With().Str("component", "SizingCalculator").Logger(),
	}
}

// Calculate dispatches on the method and returns the sizing decision.
func (c *Calculator) Calculate(params Params) (*Result, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	var size float64
	switch params.Method {
	case MethodFixed:
		size = c.fixedSize(params)
	case MethodPercentage:
		size = c.fixedSize(params)
		if size > params.Balance {
			size = params.Balance
		}
	case MethodKelly:
		size = c.kellySize(params)
	case MethodVolatilityAdjusted:
		size = c.volatilityAdjustedSize(params)
	}

	result := &Result{
		Size:       size,
		Quantity:   size / params.EntryPrice,
		RiskAmount: size * params.StopLossPercent / 100,
		Method:     params.Method,
	}

	c.logger.Debug().
		Str("method", string(params.Method)).
		Float64("balance", params.Balance).
		Float64("size", result.Size).
		Float64("quantity", result.Quantity).
		Float64("riskAmount", result.RiskAmount).
		Msg("position sized")

	return result, nil
}

// fixedSize risks riskPerTrade% of balance against a stop
// stopLossPercent away: size = riskAmount / stop distance.
func (c *Calculator) fixedSize(params Params) float64 {
	riskAmount := params.Balance * params.RiskPerTrade / 100
	return riskAmount / (params.StopLossPercent / 100)
}

// kellySize applies the Kelly criterion f = (p*b - q) / b with a
// fractional multiplier and a hard cap. A non-positive edge falls back to
// the configured floor fraction.
func (c *Calculator) kellySize(params Params) float64 {
	p := params.WinRate
	q := 1 - p
	b := params.AvgWinLoss

	kelly := (p*b - q) / b
	if kelly <= 0 {
		return params.Balance * c.config.KellyFloorFraction
	}

	fraction := kelly * c.config.KellyFraction
	if fraction > c.config.KellyMaxFraction {
		fraction = c.config.KellyMaxFraction
	}

	return params.Balance * fraction
}

// volatilityAdjustedSize scales the fixed size by baseVolatility /
// volatility, clamped to [0.5, 2.0], so quiet markets size up and
// volatile markets size down. The result never exceeds the balance.
func (c *Calculator) volatilityAdjustedSize(params Params) float64 {
	ratio := params.BaseVolatility / params.Volatility
	if ratio < 0.5 {
		ratio = 0.5
	}
	if ratio > 2.0 {
		ratio = 2.0
	}

	size := c.fixedSize(params) * ratio
	if size > params.Balance {
		size = params.Balance
	}
	return size
}

// validateParams enumerates the input checks for every method.
func validateParams(params Params) error {
	if params.Balance <= 0 {
		return &risk.ValidationError{Field: "balance", Value: params.Balance, Reason: "must be positive"}
	}
	if params.RiskPerTrade <= 0 {
		return &risk.ValidationError{Field: "riskPerTrade", Value: params.RiskPerTrade, Reason: "must be positive"}
	}
	if params.StopLossPercent <= 0 {
		return &risk.ValidationError{Field: "stopLossPercent", Value: params.StopLossPercent, Reason: "must be positive"}
	}
	if params.EntryPrice <= 0 {
		return &risk.ValidationError{Field: "entryPrice", Value: params.EntryPrice, Reason: "must be positive"}
	}

	switch params.Method {
	case MethodFixed, MethodPercentage:
		// Common checks above suffice
	case MethodKelly:
		if params.WinRate <= 0 || params.WinRate >= 1 {
			return &risk.ValidationError{Field: "winRate", Value: params.WinRate, Reason: "must be in (0, 1)"}
		}
		if params.AvgWinLoss <= 0 {
			return &risk.ValidationError{Field: "avgWinLoss", Value: params.AvgWinLoss, Reason: "must be positive"}
		}
	case MethodVolatilityAdjusted:
		if params.Volatility <= 0 {
			return &risk.ValidationError{Field: "volatility", Value: params.Volatility, Reason: "must be positive"}
		}
		if params.BaseVolatility <= 0 {
			return &risk.ValidationError{Field: "baseVolatility", Value: params.BaseVolatility, Reason: "must be positive"}
		}
	default:
		return &risk.ValidationError{Field: "method", Value: string(params.Method), Reason: "unknown sizing method"}
	}

	return nil
}
