package exit

import (
	"testing"

	"crypto-risk-engine/internal/market"
	"crypto-risk-engine/internal/position"
)

func volumeCandle(volume float64) market.Candle {
	return market.Candle{Open: 100, High: 105, Low: 95, Close: 100, Volume: volume}
}

func TestShouldEmergencyExit_VolumeDrop(t *testing.T) {
	m := newTestManager(bareConfig())
	pos := longPosition(100, 1, 0)

	candles := flatCandles(20, 100, 10)
	candles = append(candles, volumeCandle(400))

	shouldExit, trigger, action := m.ShouldEmergencyExit(pos, MarketSnapshot{Candles: candles})
	if !shouldExit {
		t.Fatal("Expected exit on a volume collapse below half the average")
	}
	if trigger != EmergencyVolumeDrop {
		t.Errorf("Expected trigger %s, got %s", EmergencyVolumeDrop, trigger)
	}
	if action == nil || action.Data["trigger"] != EmergencyVolumeDrop {
		t.Errorf("Expected emergency action data, got %+v", action)
	}
}

func TestShouldEmergencyExit_VolumeHealthy(t *testing.T) {
	m := newTestManager(bareConfig())
	pos := longPosition(100, 1, 0)

	candles := flatCandles(20, 100, 10)
	candles = append(candles, volumeCandle(600))

	if shouldExit, trigger, _ := m.ShouldEmergencyExit(pos, MarketSnapshot{Candles: candles}); shouldExit {
		t.Errorf("Expected no exit at 60%% of average volume, got %s", trigger)
	}
}

func TestShouldEmergencyExit_AdverseNews(t *testing.T) {
	m := newTestManager(bareConfig())
	pos := longPosition(100, 1, 0)

	shouldExit, trigger, action := m.ShouldEmergencyExit(pos, MarketSnapshot{AdverseNews: true})
	if !shouldExit || trigger != EmergencyAdverseNews {
		t.Fatalf("Expected adverse news exit, got exit=%v trigger=%s", shouldExit, trigger)
	}
	if action.Data["symbol"] != "BTCUSDT" {
		t.Errorf("Expected symbol in action data, got %v", action.Data["symbol"])
	}
}

func TestShouldEmergencyExit_ExcessiveLoss(t *testing.T) {
	m := newTestManager(bareConfig())

	tests := []struct {
		name     string
		price    float64
		wantExit bool
	}{
		{"beyond threshold", 89.9, true},
		{"at threshold exactly", 90, false},
		{"inside threshold", 90.1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := longPosition(100, 1, 0)
			pos.UpdateMarketPrice(tt.price)

			shouldExit, trigger, _ := m.ShouldEmergencyExit(pos, MarketSnapshot{})
			if shouldExit != tt.wantExit {
				t.Errorf("At %f expected exit=%v, got %v (%s)", tt.price, tt.wantExit, shouldExit, trigger)
			}
			if tt.wantExit && trigger != EmergencyExcessiveLoss {
				t.Errorf("Expected trigger %s, got %s", EmergencyExcessiveLoss, trigger)
			}
		})
	}
}

func TestShouldEmergencyExit_TriggerPrecedence(t *testing.T) {
	m := newTestManager(bareConfig())

	// Collapsed volume wins over the news flag.
	pos := longPosition(100, 1, 0)
	candles := flatCandles(20, 100, 10)
	candles = append(candles, volumeCandle(100))

	_, trigger, _ := m.ShouldEmergencyExit(pos, MarketSnapshot{Candles: candles, AdverseNews: true})
	if trigger != EmergencyVolumeDrop {
		t.Errorf("Expected volume checked first, got %s", trigger)
	}

	// News wins over a deep loss.
	losing := longPosition(100, 1, 0)
	losing.UpdateMarketPrice(50)

	_, trigger, _ = m.ShouldEmergencyExit(losing, MarketSnapshot{AdverseNews: true})
	if trigger != EmergencyAdverseNews {
		t.Errorf("Expected news checked before loss, got %s", trigger)
	}
}

func TestShouldEmergencyExit_IgnoresClosedPositions(t *testing.T) {
	m := newTestManager(bareConfig())

	pos := longPosition(100, 1, 0)
	pos.UpdateMarketPrice(50)
	pos.Status = position.StatusClosed

	if shouldExit, _, _ := m.ShouldEmergencyExit(pos, MarketSnapshot{AdverseNews: true}); shouldExit {
		t.Error("Expected closed positions to be ignored")
	}
	if shouldExit, _, _ := m.ShouldEmergencyExit(nil, MarketSnapshot{AdverseNews: true}); shouldExit {
		t.Error("Expected nil position to be ignored")
	}
}
