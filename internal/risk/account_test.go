package risk

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestAccountConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  AccountConfig
		wantErr bool
	}{
		{"defaults are valid", DefaultAccountConfig(), false},
		{"zero max positions", AccountConfig{MaxOpenPositions: 0, MaxDailyDrawdown: 5}, true},
		{"zero drawdown", AccountConfig{MaxOpenPositions: 5, MaxDailyDrawdown: 0}, true},
		{"drawdown above 100", AccountConfig{MaxOpenPositions: 5, MaxDailyDrawdown: 150}, true},
		{"negative consecutive losses", AccountConfig{MaxOpenPositions: 5, MaxDailyDrawdown: 5, MaxConsecutiveLosses: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error: %v, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestCanOpenPosition_FreshAccount(t *testing.T) {
	am := NewAccountManager(DefaultAccountConfig(), zerolog.Nop())
	am.UpdateBalance(10000)

	ok, reason := am.CanOpenPosition()
	if !ok {
		t.Errorf("Expected fresh account to allow a position, got: %s", reason)
	}
}

func TestCanOpenPosition_MaxPositions(t *testing.T) {
	config := AccountConfig{MaxOpenPositions: 2, MaxDailyDrawdown: 5}
	am := NewAccountManager(config, zerolog.Nop())
	am.UpdateBalance(10000)

	am.RegisterOpen()
	am.RegisterOpen()

	ok, reason := am.CanOpenPosition()
	if ok {
		t.Fatal("Expected rejection at the position limit")
	}
	if !strings.Contains(reason, "max positions") {
		t.Errorf("Expected max positions reason, got: %s", reason)
	}
	if am.OpenPositionCount() != 2 {
		t.Errorf("Expected 2 open positions, got %d", am.OpenPositionCount())
	}
}

func TestCanOpenPosition_DailyDrawdown(t *testing.T) {
	config := AccountConfig{MaxOpenPositions: 5, MaxDailyDrawdown: 5}
	am := NewAccountManager(config, zerolog.Nop())
	am.UpdateBalance(10000)

	// A 600 loss on a 10000 balance is a 6% daily drawdown.
	am.RegisterOpen()
	am.RegisterClose(-600)

	ok, reason := am.CanOpenPosition()
	if ok {
		t.Fatal("Expected rejection past the daily drawdown limit")
	}
	if !strings.Contains(reason, "drawdown") {
		t.Errorf("Expected drawdown reason, got: %s", reason)
	}
	if am.DailyPnL() != -600 {
		t.Errorf("Expected daily PnL -600, got %f", am.DailyPnL())
	}
}

func TestCanOpenPosition_DrawdownBelowLimit(t *testing.T) {
	config := AccountConfig{MaxOpenPositions: 5, MaxDailyDrawdown: 5}
	am := NewAccountManager(config, zerolog.Nop())
	am.UpdateBalance(10000)

	am.RegisterOpen()
	am.RegisterClose(-400)

	if ok, reason := am.CanOpenPosition(); !ok {
		t.Errorf("Expected -4%% to stay allowed, got: %s", reason)
	}
}

func TestCanOpenPosition_ConsecutiveLosses(t *testing.T) {
	config := AccountConfig{MaxOpenPositions: 5, MaxDailyDrawdown: 50, MaxConsecutiveLosses: 2}
	am := NewAccountManager(config, zerolog.Nop())
	am.UpdateBalance(100000)

	am.RegisterOpen()
	am.RegisterClose(-10)
	am.RegisterOpen()
	am.RegisterClose(-10)

	ok, reason := am.CanOpenPosition()
	if ok {
		t.Fatal("Expected rejection after two consecutive losses")
	}
	if !strings.Contains(reason, "consecutive loss") {
		t.Errorf("Expected consecutive loss reason, got: %s", reason)
	}

	// A winning trade resets the streak.
	am.RegisterOpen()
	am.RegisterClose(50)
	if ok, reason := am.CanOpenPosition(); !ok {
		t.Errorf("Expected a win to reset the streak, got: %s", reason)
	}
}

func TestConsecutiveLosses_DisabledByDefault(t *testing.T) {
	am := NewAccountManager(DefaultAccountConfig(), zerolog.Nop())
	am.UpdateBalance(100000)

	for i := 0; i < 10; i++ {
		am.RegisterOpen()
		am.RegisterClose(-1)
	}

	if ok, reason := am.CanOpenPosition(); !ok {
		t.Errorf("Expected losses not to block with the check disabled, got: %s", reason)
	}
}

func TestRegisterClose_CountNeverNegative(t *testing.T) {
	am := NewAccountManager(DefaultAccountConfig(), zerolog.Nop())

	am.RegisterClose(10)
	if am.OpenPositionCount() != 0 {
		t.Errorf("Expected count to floor at 0, got %d", am.OpenPositionCount())
	}
}

func TestMetrics(t *testing.T) {
	am := NewAccountManager(DefaultAccountConfig(), zerolog.Nop())
	am.UpdateBalance(10000)
	am.RegisterOpen()

	metrics := am.Metrics()

	if metrics["account_balance"] != 10000.0 {
		t.Errorf("Expected balance 10000, got %v", metrics["account_balance"])
	}
	if metrics["open_positions"] != 1 {
		t.Errorf("Expected 1 open position, got %v", metrics["open_positions"])
	}
	if _, ok := metrics["daily_drawdown_percent"]; !ok {
		t.Error("Expected daily_drawdown_percent key")
	}
}
