package strategy

import (
	"testing"

	"crypto-risk-engine/internal/market"
)

func TestCalculateStopLoss_Fixed(t *testing.T) {
	tests := []struct {
		name     string
		side     market.Side
		entry    float64
		percent  float64
		expected float64
	}{
		{"long 2% below entry", market.SideLong, 45000, 2.0, 44100},
		{"short 2% above entry", market.SideShort, 45000, 2.0, 45900},
		{"long 5% below entry", market.SideLong, 100, 5.0, 95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stop, err := CalculateStopLoss(StopLossParams{
				Type:       StopFixed,
				Side:       tt.side,
				EntryPrice: tt.entry,
				Percent:    tt.percent,
			})
			if err != nil {
				t.Fatalf("CalculateStopLoss failed: %v", err)
			}
			if !floatEquals(stop, tt.expected, 1e-9) {
				t.Errorf("Expected stop %f, got %f", tt.expected, stop)
			}
		})
	}
}

func TestCalculateStopLoss_ATRBased(t *testing.T) {
	// Constant 500 range: ATR 500, average ATR 500, multiplier 2.0.
	candles := flatCandles(20, 45000, 500)

	stop, err := CalculateStopLoss(StopLossParams{
		Type:       StopATRBased,
		Side:       market.SideLong,
		EntryPrice: 45000,
		Candles:    candles,
		ATRPeriod:  14,
	})
	if err != nil {
		t.Fatalf("CalculateStopLoss failed: %v", err)
	}
	if !floatEquals(stop, 44000, 1e-9) {
		t.Errorf("Expected stop 44000 (entry - 2x ATR), got %f", stop)
	}

	stop, err = CalculateStopLoss(StopLossParams{
		Type:       StopATRBased,
		Side:       market.SideShort,
		EntryPrice: 45000,
		Candles:    candles,
		ATRPeriod:  14,
	})
	if err != nil {
		t.Fatalf("CalculateStopLoss failed: %v", err)
	}
	if !floatEquals(stop, 46000, 1e-9) {
		t.Errorf("Expected stop 46000 (entry + 2x ATR), got %f", stop)
	}
}

func TestCalculateStopLoss_StructureBased(t *testing.T) {
	lows := []float64{100, 99, 98, 97, 96, 90, 96, 97, 98, 99, 100, 99, 98, 97, 96, 95, 96, 97, 98, 99, 100}

	stop, err := CalculateStopLoss(StopLossParams{
		Type:       StopStructureBased,
		Side:       market.SideLong,
		EntryPrice: 100,
		Candles:    candlesWithLows(lows),
	})
	if err != nil {
		t.Fatalf("CalculateStopLoss failed: %v", err)
	}
	if stop != 95 {
		t.Errorf("Expected stop at nearest swing low 95, got %f", stop)
	}

	highs := []float64{100, 101, 102, 103, 104, 110, 104, 103, 102, 101, 100, 101, 102, 103, 104, 105, 104, 103, 102, 101, 100}

	stop, err = CalculateStopLoss(StopLossParams{
		Type:       StopStructureBased,
		Side:       market.SideShort,
		EntryPrice: 100,
		Candles:    candlesWithHighs(highs),
	})
	if err != nil {
		t.Fatalf("CalculateStopLoss failed: %v", err)
	}
	if stop != 105 {
		t.Errorf("Expected stop at nearest swing high 105, got %f", stop)
	}
}

func TestCalculateStopLoss_ParabolicSAR(t *testing.T) {
	candles := []market.Candle{
		{Open: 100, High: 102, Low: 98, Close: 101},
		{Open: 101, High: 104, Low: 100, Close: 103},
		{Open: 103, High: 106, Low: 102, Close: 105},
	}

	stop, err := CalculateStopLoss(StopLossParams{
		Type:       StopParabolicSAR,
		Side:       market.SideLong,
		EntryPrice: 105,
	})
	if err == nil {
		t.Fatal("Expected error without candles")
	}

	stop, err = CalculateStopLoss(StopLossParams{
		Type:       StopParabolicSAR,
		Side:       market.SideLong,
		EntryPrice: 105,
		Candles:    candles,
	})
	if err != nil {
		t.Fatalf("CalculateStopLoss failed: %v", err)
	}

	sar, err := CalculateParabolicSAR(candles, DefaultSARAcceleration, DefaultSARMaximum)
	if err != nil {
		t.Fatalf("CalculateParabolicSAR failed: %v", err)
	}
	if stop != sar[len(sar)-1] {
		t.Errorf("Expected stop at latest SAR %f, got %f", sar[len(sar)-1], stop)
	}
	if stop >= 105 {
		t.Errorf("Expected long SAR stop below entry, got %f", stop)
	}
}

func TestCalculateStopLoss_Validation(t *testing.T) {
	candles := flatCandles(20, 100, 10)

	tests := []struct {
		name   string
		params StopLossParams
	}{
		{"invalid side", StopLossParams{Type: StopFixed, Side: "UP", EntryPrice: 100, Percent: 2}},
		{"zero entry", StopLossParams{Type: StopFixed, Side: market.SideLong, EntryPrice: 0, Percent: 2}},
		{"zero percent", StopLossParams{Type: StopFixed, Side: market.SideLong, EntryPrice: 100, Percent: 0}},
		{"percent at 100", StopLossParams{Type: StopFixed, Side: market.SideLong, EntryPrice: 100, Percent: 100}},
		{"unknown type", StopLossParams{Type: "magic", Side: market.SideLong, EntryPrice: 100}},
		{"atr without candles", StopLossParams{Type: StopATRBased, Side: market.SideLong, EntryPrice: 100}},
		{"structure without candles", StopLossParams{Type: StopStructureBased, Side: market.SideLong, EntryPrice: 100}},
		{"atr with too few candles", StopLossParams{Type: StopATRBased, Side: market.SideLong, EntryPrice: 100, Candles: candles[:5]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CalculateStopLoss(tt.params); err == nil {
				t.Error("Expected an error, got none")
			}
		})
	}
}
