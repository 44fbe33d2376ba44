package sizing

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"crypto-risk-engine/internal/risk"
)

func floatEquals(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func newTestCalculator() *Calculator {
	return NewCalculator(DefaultConfig(), zerolog.Nop())
}

func TestCalculate_Fixed(t *testing.T) {
	calc := newTestCalculator()

	result, err := calc.Calculate(Params{
		Method:          MethodFixed,
		Balance:         10000,
		RiskPerTrade:    2.0,
		StopLossPercent: 2.0,
		EntryPrice:      100,
	})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	// Risk 200 against a 2% stop: size 10000.
	if !floatEquals(result.Size, 10000, 1e-6) {
		t.Errorf("Expected size 10000, got %f", result.Size)
	}
	if !floatEquals(result.Quantity, 100, 1e-6) {
		t.Errorf("Expected quantity 100, got %f", result.Quantity)
	}
	if !floatEquals(result.RiskAmount, 200, 1e-6) {
		t.Errorf("Expected risk amount 200, got %f", result.RiskAmount)
	}
	if result.Method != MethodFixed {
		t.Errorf("Expected method fixed, got %s", result.Method)
	}
}

func TestCalculate_FixedCanExceedBalance(t *testing.T) {
	calc := newTestCalculator()

	// A tight 1% stop doubles the size; fixed leaves it uncapped.
	result, err := calc.Calculate(Params{
		Method:          MethodFixed,
		Balance:         10000,
		RiskPerTrade:    2.0,
		StopLossPercent: 1.0,
		EntryPrice:      100,
	})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if !floatEquals(result.Size, 20000, 1e-6) {
		t.Errorf("Expected size 20000, got %f", result.Size)
	}
}

func TestCalculate_PercentageCapsAtBalance(t *testing.T) {
	calc := newTestCalculator()

	result, err := calc.Calculate(Params{
		Method:          MethodPercentage,
		Balance:         10000,
		RiskPerTrade:    2.0,
		StopLossPercent: 1.0,
		EntryPrice:      100,
	})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if !floatEquals(result.Size, 10000, 1e-6) {
		t.Errorf("Expected size capped at balance 10000, got %f", result.Size)
	}
}

func TestCalculate_Kelly(t *testing.T) {
	calc := newTestCalculator()

	// f = (0.6*2 - 0.4) / 2 = 0.4, halved to 0.2: 20% of balance.
	result, err := calc.Calculate(Params{
		Method:          MethodKelly,
		Balance:         10000,
		RiskPerTrade:    2.0,
		StopLossPercent: 2.0,
		EntryPrice:      100,
		WinRate:         0.6,
		AvgWinLoss:      2.0,
	})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if !floatEquals(result.Size, 2000, 1e-6) {
		t.Errorf("Expected size 2000 (20%% of balance), got %f", result.Size)
	}
	t.Logf("kelly(p=0.6, b=2): size=%.0f quantity=%.2f risk=%.0f", result.Size, result.Quantity, result.RiskAmount)
}

func TestCalculate_KellyFloorOnNegativeEdge(t *testing.T) {
	calc := newTestCalculator()

	// f = (0.3*1 - 0.7) / 1 < 0: the 1% floor applies.
	result, err := calc.Calculate(Params{
		Method:          MethodKelly,
		Balance:         10000,
		RiskPerTrade:    2.0,
		StopLossPercent: 2.0,
		EntryPrice:      100,
		WinRate:         0.3,
		AvgWinLoss:      1.0,
	})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if !floatEquals(result.Size, 100, 1e-6) {
		t.Errorf("Expected floor size 100, got %f", result.Size)
	}
}

func TestCalculate_KellyCapped(t *testing.T) {
	calc := newTestCalculator()

	// f = (0.9*3 - 0.1) / 3 = 0.8667, halved to 0.4333: the 25% cap wins.
	result, err := calc.Calculate(Params{
		Method:          MethodKelly,
		Balance:         10000,
		RiskPerTrade:    2.0,
		StopLossPercent: 2.0,
		EntryPrice:      100,
		WinRate:         0.9,
		AvgWinLoss:      3.0,
	})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if !floatEquals(result.Size, 2500, 1e-6) {
		t.Errorf("Expected capped size 2500, got %f", result.Size)
	}
}

func TestCalculate_VolatilityAdjusted(t *testing.T) {
	calc := newTestCalculator()

	tests := []struct {
		name           string
		volatility     float64
		baseVolatility float64
		expectedSize   float64
	}{
		{"double volatility halves the size", 20, 10, 5000},
		{"normal volatility keeps the size", 10, 10, 10000},
		{"quiet market scales up but caps at balance", 5, 20, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := calc.Calculate(Params{
				Method:          MethodVolatilityAdjusted,
				Balance:         10000,
				RiskPerTrade:    2.0,
				StopLossPercent: 2.0,
				EntryPrice:      100,
				Volatility:      tt.volatility,
				BaseVolatility:  tt.baseVolatility,
			})
			if err != nil {
				t.Fatalf("Calculate failed: %v", err)
			}
			if !floatEquals(result.Size, tt.expectedSize, 1e-6) {
				t.Errorf("Expected size %f, got %f", tt.expectedSize, result.Size)
			}
		})
	}
}

func TestCalculate_Validation(t *testing.T) {
	calc := newTestCalculator()

	base := Params{
		Method:          MethodPercentage,
		Balance:         10000,
		RiskPerTrade:    2.0,
		StopLossPercent: 2.0,
		EntryPrice:      100,
	}

	tests := []struct {
		name   string
		mutate func(p Params) Params
	}{
		{"zero balance", func(p Params) Params { p.Balance = 0; return p }},
		{"zero risk per trade", func(p Params) Params { p.RiskPerTrade = 0; return p }},
		{"zero stop percent", func(p Params) Params { p.StopLossPercent = 0; return p }},
		{"zero entry price", func(p Params) Params { p.EntryPrice = 0; return p }},
		{"unknown method", func(p Params) Params { p.Method = "martingale"; return p }},
		{"kelly without win rate", func(p Params) Params { p.Method = MethodKelly; p.AvgWinLoss = 2; return p }},
		{"kelly win rate of one", func(p Params) Params { p.Method = MethodKelly; p.WinRate = 1; p.AvgWinLoss = 2; return p }},
		{"kelly without win loss ratio", func(p Params) Params { p.Method = MethodKelly; p.WinRate = 0.6; return p }},
		{"volatility method without volatility", func(p Params) Params { p.Method = MethodVolatilityAdjusted; p.BaseVolatility = 10; return p }},
		{"volatility method without baseline", func(p Params) Params { p.Method = MethodVolatilityAdjusted; p.Volatility = 10; return p }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.Calculate(tt.mutate(base))
			if err == nil {
				t.Fatal("Expected an error, got none")
			}
			var valErr *risk.ValidationError
			if !errors.As(err, &valErr) {
				t.Errorf("Expected ValidationError, got %T", err)
			}
		})
	}
}
