package position

import (
	"math"
	"testing"
	"time"

	"crypto-risk-engine/internal/market"
)

func floatEquals(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestNew(t *testing.T) {
	pos := New("BTCUSDT", market.SideLong, 45000, 0.5)

	if pos.ID == "" {
		t.Error("Expected a generated position id")
	}
	if pos.Status != StatusOpen {
		t.Errorf("Expected status OPEN, got %s", pos.Status)
	}
	if pos.RemainingQuantity != pos.Quantity {
		t.Errorf("Expected remaining quantity %f, got %f", pos.Quantity, pos.RemainingQuantity)
	}
	if pos.CurrentPrice != 45000 || pos.HighestPrice != 45000 || pos.LowestPrice != 45000 {
		t.Error("Expected price trackers to start at the entry price")
	}
	if pos.CurrentTrailingStep != -1 {
		t.Errorf("Expected trailing step cursor -1, got %d", pos.CurrentTrailingStep)
	}
	if pos.OpenedAt.IsZero() {
		t.Error("Expected OpenedAt to be set")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Position)
		wantErr bool
	}{
		{"valid position", func(p *Position) {}, false},
		{"empty symbol", func(p *Position) { p.Symbol = "" }, true},
		{"invalid side", func(p *Position) { p.Side = "DIAGONAL" }, true},
		{"zero entry price", func(p *Position) { p.EntryPrice = 0 }, true},
		{"zero quantity", func(p *Position) { p.Quantity = 0 }, true},
		{"remaining above quantity", func(p *Position) { p.RemainingQuantity = 2 }, true},
		{"imbalanced take profit levels", func(p *Position) {
			p.TakeProfitLevels = []TakeProfitLevel{{PercentGain: 2, ClosePercent: 50}}
		}, true},
		{"invalid trailing steps", func(p *Position) {
			p.SteppedTrailingSteps = []TrailingStep{{ProfitPercent: 2, StopLossPercent: 3}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := New("BTCUSDT", market.SideLong, 45000, 1)
			tt.mutate(pos)
			err := pos.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error: %v, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestUpdateMarketPrice_Long(t *testing.T) {
	pos := New("BTCUSDT", market.SideLong, 100, 2)

	pos.UpdateMarketPrice(105)
	if !floatEquals(pos.UnrealizedPnL, 10, 1e-9) {
		t.Errorf("Expected unrealized PnL 10, got %f", pos.UnrealizedPnL)
	}
	if pos.HighestPrice != 105 {
		t.Errorf("Expected highest price 105, got %f", pos.HighestPrice)
	}

	pos.UpdateMarketPrice(95)
	if !floatEquals(pos.UnrealizedPnL, -10, 1e-9) {
		t.Errorf("Expected unrealized PnL -10, got %f", pos.UnrealizedPnL)
	}
	if pos.HighestPrice != 105 {
		t.Errorf("Expected highest price to stay 105, got %f", pos.HighestPrice)
	}
	if pos.LowestPrice != 95 {
		t.Errorf("Expected lowest price 95, got %f", pos.LowestPrice)
	}
}

func TestUpdateMarketPrice_Short(t *testing.T) {
	pos := New("ETHUSDT", market.SideShort, 100, 2)

	pos.UpdateMarketPrice(95)
	if !floatEquals(pos.UnrealizedPnL, 10, 1e-9) {
		t.Errorf("Expected short unrealized PnL 10, got %f", pos.UnrealizedPnL)
	}

	pos.UpdateMarketPrice(105)
	if !floatEquals(pos.UnrealizedPnL, -10, 1e-9) {
		t.Errorf("Expected short unrealized PnL -10, got %f", pos.UnrealizedPnL)
	}
}

func TestProfitPercent(t *testing.T) {
	long := New("BTCUSDT", market.SideLong, 100, 1)
	if got := long.ProfitPercent(102); !floatEquals(got, 2, 1e-9) {
		t.Errorf("Expected long profit 2%%, got %f", got)
	}
	if got := long.ProfitPercent(98); !floatEquals(got, -2, 1e-9) {
		t.Errorf("Expected long profit -2%%, got %f", got)
	}

	short := New("BTCUSDT", market.SideShort, 100, 1)
	if got := short.ProfitPercent(98); !floatEquals(got, 2, 1e-9) {
		t.Errorf("Expected short profit 2%%, got %f", got)
	}
}

func TestClose(t *testing.T) {
	pos := New("BTCUSDT", market.SideLong, 100, 2)
	pos.Close(110)

	if pos.Status != StatusClosed {
		t.Errorf("Expected status CLOSED, got %s", pos.Status)
	}
	if !floatEquals(pos.RealizedPnL, 20, 1e-9) {
		t.Errorf("Expected realized PnL 20, got %f", pos.RealizedPnL)
	}
	if pos.RemainingQuantity != 0 {
		t.Errorf("Expected remaining quantity 0, got %f", pos.RemainingQuantity)
	}
	if pos.UnrealizedPnL != 0 {
		t.Errorf("Expected unrealized PnL 0, got %f", pos.UnrealizedPnL)
	}

	short := New("ETHUSDT", market.SideShort, 100, 2)
	short.Close(90)
	if !floatEquals(short.RealizedPnL, 20, 1e-9) {
		t.Errorf("Expected short realized PnL 20, got %f", short.RealizedPnL)
	}
}

func TestClose_KeepsEarlierRealizedPnL(t *testing.T) {
	pos := New("BTCUSDT", market.SideLong, 100, 2)
	pos.RealizedPnL = 5
	pos.RemainingQuantity = 1

	pos.Close(110)
	if !floatEquals(pos.RealizedPnL, 15, 1e-9) {
		t.Errorf("Expected realized PnL 15 (5 + 10), got %f", pos.RealizedPnL)
	}
}

func TestTotalPnL(t *testing.T) {
	pos := New("BTCUSDT", market.SideLong, 100, 1)
	pos.RealizedPnL = 5
	pos.UpdateMarketPrice(103)

	if !floatEquals(pos.TotalPnL(), 8, 1e-9) {
		t.Errorf("Expected total PnL 8, got %f", pos.TotalPnL())
	}
}

func TestAge(t *testing.T) {
	pos := New("BTCUSDT", market.SideLong, 100, 1)
	pos.OpenedAt = time.Now().Add(-3 * time.Hour)

	age := pos.Age(time.Now())
	if age < 3*time.Hour || age > 3*time.Hour+time.Minute {
		t.Errorf("Expected age around 3h, got %s", age)
	}
}
