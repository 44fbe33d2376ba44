package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AccountConfig holds the account-level limits checked before a new
// position is admitted.
type AccountConfig struct {
	MaxOpenPositions     int     `json:"maxOpenPositions"`     // Maximum concurrent positions
	MaxDailyDrawdown     float64 `json:"maxDailyDrawdown"`     // Max daily loss percentage before trading stops
	MaxConsecutiveLosses int     `json:"maxConsecutiveLosses"` // 0 disables the check
}

// DefaultAccountConfig returns conservative account limits.
func DefaultAccountConfig() AccountConfig {
	return AccountConfig{
		MaxOpenPositions:     5,
		MaxDailyDrawdown:     5.0,
		MaxConsecutiveLosses: 0,
	}
}

// Validate checks the config for out-of-range values.
func (c AccountConfig) Validate() error {
	if c.MaxOpenPositions <= 0 {
		return &ValidationError{Field: "maxOpenPositions", Value: c.MaxOpenPositions, Reason: "must be positive"}
	}
	if c.MaxDailyDrawdown <= 0 || c.MaxDailyDrawdown > 100 {
		return &ValidationError{Field: "maxDailyDrawdown", Value: c.MaxDailyDrawdown, Reason: "must be in (0, 100]"}
	}
	if c.MaxConsecutiveLosses < 0 {
		return &ValidationError{Field: "maxConsecutiveLosses", Value: c.MaxConsecutiveLosses, Reason: "must be zero or positive"}
	}
	return nil
}

// AccountManager tracks daily PnL and open-position count and decides
// whether the account may take on another position. All methods are safe
// for concurrent use.
type AccountManager struct {
	mu                sync.Mutex
	config            AccountConfig
	logger            zerolog.Logger
	accountBalance    float64
	dailyPnL          float64
	dailyPnLReset     time.Time
	openPositions     int
	consecutiveLosses int
}

// NewAccountManager creates an account manager with the given limits.
func NewAccountManager(config AccountConfig, logger zerolog.Logger) *AccountManager {
	return &AccountManager{
		config:        config,
		logger:        logger.With().Str("component", "AccountManager").Logger(),
		dailyPnLReset: time.Now().Truncate(24 * time.Hour),
	}
}

// UpdateBalance records the current account balance.
func (am *AccountManager) UpdateBalance(balance float64) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.accountBalance = balance
}

// Balance returns the last recorded account balance.
func (am *AccountManager) Balance() float64 {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.accountBalance
}

// CanOpenPosition checks the account limits. It returns false with a
// human-readable reason when a limit blocks admission.
func (am *AccountManager) CanOpenPosition() (bool, string) {
	am.mu.Lock()
	defer am.mu.Unlock()

	am.rolloverLocked()

	if am.openPositions >= am.config.MaxOpenPositions {
		return false, fmt.Sprintf("max positions reached (%d/%d)", am.openPositions, am.config.MaxOpenPositions)
	}

	if am.accountBalance > 0 {
		drawdownPercent := (am.dailyPnL / am.accountBalance) * 100
		if drawdownPercent <= -am.config.MaxDailyDrawdown {
			return false, fmt.Sprintf("daily drawdown limit reached (%.2f%%)", drawdownPercent)
		}
	}

	if am.config.MaxConsecutiveLosses > 0 && am.consecutiveLosses >= am.config.MaxConsecutiveLosses {
		return false, fmt.Sprintf("consecutive loss limit reached (%d)", am.consecutiveLosses)
	}

	return true, ""
}

// RegisterOpen records a newly opened position.
func (am *AccountManager) RegisterOpen() {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.openPositions++
}

// RegisterClose records a closed position and its realized PnL.
func (am *AccountManager) RegisterClose(pnl float64) {
	am.mu.Lock()
	defer am.mu.Unlock()

	am.openPositions--
	if am.openPositions < 0 {
		am.openPositions = 0
	}

	am.rolloverLocked()
	am.dailyPnL += pnl
	if pnl < 0 {
		am.consecutiveLosses++
	} else {
		am.consecutiveLosses = 0
	}

	am.logger.Debug().
		Float64("pnl", pnl).
		Float64("dailyPnL", am.dailyPnL).
		Int("openPositions", am.openPositions).
		Msg("position close recorded")
}

// DailyPnL returns the running PnL for the current day.
func (am *AccountManager) DailyPnL() float64 {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.rolloverLocked()
	return am.dailyPnL
}

// OpenPositionCount returns the number of currently registered positions.
func (am *AccountManager) OpenPositionCount() int {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.openPositions
}

// Metrics returns a snapshot of the account state for reporting.
func (am *AccountManager) Metrics() map[string]interface{} {
	am.mu.Lock()
	defer am.mu.Unlock()

	drawdownPercent := 0.0
	if am.accountBalance > 0 {
		drawdownPercent = (am.dailyPnL / am.accountBalance) * 100
	}

	return map[string]interface{}{
		"account_balance":        am.accountBalance,
		"daily_pnl":              am.dailyPnL,
		"daily_drawdown_percent": drawdownPercent,
		"open_positions":         am.openPositions,
		"max_positions":          am.config.MaxOpenPositions,
		"consecutive_losses":     am.consecutiveLosses,
	}
}

// rolloverLocked resets the daily ledger when the day changes.
// Callers must hold mu.
func (am *AccountManager) rolloverLocked() {
	today := time.Now().Truncate(24 * time.Hour)
	if today.After(am.dailyPnLReset) {
		am.dailyPnL = 0
		am.dailyPnLReset = today
	}
}
