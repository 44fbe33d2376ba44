package exit

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"crypto-risk-engine/internal/market"
	"crypto-risk-engine/internal/position"
	"crypto-risk-engine/internal/risk"
	"crypto-risk-engine/internal/strategy"
)

// Volatility adaptation thresholds: current ATR versus its baseline.
const (
	HighVolatilityRatio = 1.5
	LowVolatilityRatio  = 0.5
)

// remainderEpsilon treats quantities below this as dust left by rounding.
const remainderEpsilon = 1e-9

// Manager applies the exit rule chain to one position per tick. It holds
// no position state of its own; the caller owns the Position and must
// serialize ticks per position.
type Manager struct {
	config Config
	logger zerolog.Logger
}

// NewManager creates a smart exit manager.
func NewManager(config Config, logger zerolog.Logger) *Manager {
	return &Manager{
		config: config,
		logger: logger.With().Str("component", "SmartExitManager").Logger(),
	}
}

// UpdatePosition runs the rule chain for one tick, in fixed order: stop
// loss, breakeven, stepped trailing, plain ATR trailing, time exit,
// volatility advisory. The first close decision short-circuits the rest.
// candles are the cached history for the position's symbol; trailing and
// volatility rules skip silently when history is too short.
func (m *Manager) UpdatePosition(pos *position.Position, currentPrice float64, candles []market.Candle) (*UpdateResult, error) {
	if pos == nil {
		return nil, &risk.ValidationError{Field: "position", Reason: "must not be nil"}
	}
	if pos.Status != position.StatusOpen {
		return nil, &risk.ValidationError{Field: "position", Value: string(pos.Status), Reason: "must be open"}
	}
	if currentPrice <= 0 {
		return nil, &risk.ValidationError{Field: "currentPrice", Value: currentPrice, Reason: "must be positive"}
	}

	pos.UpdateMarketPrice(currentPrice)
	result := &UpdateResult{Position: pos}

	if m.stopLossHit(pos, currentPrice) {
		result.ShouldClose = true
		result.CloseReason = ReasonStopLoss
		result.addAction(Action{
			Type:    ActionStopLossTriggered,
			Message: fmt.Sprintf("Stop loss hit at %.4f (stop %.4f)", currentPrice, pos.StopLoss),
			Data: map[string]interface{}{
				"symbol":    pos.Symbol,
				"price":     currentPrice,
				"stop_loss": pos.StopLoss,
			},
		})
		m.logger.Info().
			Str("symbol", pos.Symbol).
			Float64("price", currentPrice).
			Float64("stopLoss", pos.StopLoss).
			Msg("🛑 stop loss triggered")
		return result, nil
	}

	m.applyBreakeven(pos, currentPrice, result)

	if m.config.SteppedTrailingEnabled && len(pos.SteppedTrailingSteps) > 0 {
		m.applySteppedTrailing(pos, currentPrice, result)
	} else if m.config.ATRTrailingEnabled {
		m.applyATRTrailing(pos, currentPrice, candles, result)
	}

	if m.checkTimeExit(pos, currentPrice, result) {
		return result, nil
	}

	m.checkVolatility(pos, candles, result)

	return result, nil
}

// stopLossHit reports whether price has crossed the stop against the
// position. A zero stop means none is set.
func (m *Manager) stopLossHit(pos *position.Position, currentPrice float64) bool {
	if pos.StopLoss <= 0 {
		return false
	}
	if pos.IsLong() {
		return currentPrice <= pos.StopLoss
	}
	return currentPrice >= pos.StopLoss
}

// applyBreakeven moves the stop to entry (plus the configured buffer)
// once unrealized gain reaches the activation threshold. The move fires
// at most once and never loosens an already better stop.
func (m *Manager) applyBreakeven(pos *position.Position, currentPrice float64, result *UpdateResult) {
	if !m.config.BreakevenEnabled || pos.MovedToBreakeven {
		return
	}
	if pos.ProfitPercent(currentPrice) < m.config.BreakevenActivationPercent {
		return
	}

	buffer := pos.EntryPrice * (m.config.BreakevenBufferPercent / 100)
	target := pos.EntryPrice + buffer
	if !pos.IsLong() {
		target = pos.EntryPrice - buffer
	}

	moved := m.tightenStop(pos, target)
	pos.MovedToBreakeven = true
	if !moved {
		return
	}

	result.addAction(Action{
		Type:    ActionBreakevenActivated,
		Message: fmt.Sprintf("Stop moved to breakeven at %.4f", pos.StopLoss),
		Data: map[string]interface{}{
			"symbol":    pos.Symbol,
			"entry":     pos.EntryPrice,
			"stop_loss": pos.StopLoss,
		},
	})
	m.logger.Info().
		Str("symbol", pos.Symbol).
		Float64("entry", pos.EntryPrice).
		Float64("newStop", pos.StopLoss).
		Msg("✅ moved stop to breakeven")
}

// applySteppedTrailing advances the stop through the position's ladder as
// gain crosses each threshold in order. Passed steps are never revisited
// and the stop never moves backward, so a retrace between ticks keeps the
// last locked-in level.
func (m *Manager) applySteppedTrailing(pos *position.Position, currentPrice float64, result *UpdateResult) {
	gain := pos.ProfitPercent(currentPrice)

	for i := pos.CurrentTrailingStep + 1; i < len(pos.SteppedTrailingSteps); i++ {
		step := pos.SteppedTrailingSteps[i]
		if gain < step.ProfitPercent {
			break
		}

		lockIn := pos.EntryPrice * (1 + step.StopLossPercent/100)
		if !pos.IsLong() {
			lockIn = pos.EntryPrice * (1 - step.StopLossPercent/100)
		}

		pos.CurrentTrailingStep = i
		pos.TrailingStopActive = true

		if m.tightenStop(pos, lockIn) {
			result.addAction(Action{
				Type:    ActionTrailingStepAdvance,
				Message: fmt.Sprintf("Trailing step %d reached at +%.2f%%, stop locked at %.4f", i+1, step.ProfitPercent, pos.StopLoss),
				Data: map[string]interface{}{
					"symbol":         pos.Symbol,
					"step":           i + 1,
					"profit_percent": step.ProfitPercent,
					"stop_loss":      pos.StopLoss,
				},
			})
			m.logger.Info().
				Str("symbol", pos.Symbol).
				Int("step", i+1).
				Float64("gain", gain).
				Float64("newStop", pos.StopLoss).
				Msg("trailing step advanced")
		}
	}
}

// applyATRTrailing trails the stop behind the favorable excursion by an
// adaptive ATR distance. Runs only while stepped trailing is disabled.
func (m *Manager) applyATRTrailing(pos *position.Position, currentPrice float64, candles []market.Candle, result *UpdateResult) {
	if !pos.TrailingStopActive && pos.ProfitPercent(currentPrice) < m.config.ATRTrailingActivationPercent {
		return
	}

	atr, err := strategy.CalculateATR(candles, m.config.ATRPeriod)
	if err != nil {
		m.logger.Debug().Str("symbol", pos.Symbol).Err(err).Msg("atr trailing skipped")
		return
	}
	avgATR, err := strategy.CalculateAverageATR(candles, m.config.ATRPeriod, m.config.AvgATRPeriods)
	if err != nil {
		m.logger.Debug().Str("symbol", pos.Symbol).Err(err).Msg("atr trailing skipped")
		return
	}

	distance := atr * strategy.AdaptiveATRMultiplier(atr, avgATR)
	candidate := pos.HighestPrice - distance
	if !pos.IsLong() {
		candidate = pos.LowestPrice + distance
	}

	if m.tightenStop(pos, candidate) {
		pos.TrailingStopActive = true
		result.addAction(Action{
			Type:    ActionATRTrailingUpdate,
			Message: fmt.Sprintf("Trailing stop moved to %.4f (ATR %.4f)", pos.StopLoss, atr),
			Data: map[string]interface{}{
				"symbol":    pos.Symbol,
				"stop_loss": pos.StopLoss,
				"atr":       atr,
			},
		})
		m.logger.Debug().
			Str("symbol", pos.Symbol).
			Float64("atr", atr).
			Float64("newStop", pos.StopLoss).
			Msg("atr trailing stop advanced")
	}
}

// checkTimeExit closes positions held past MaxHoldingTime hours that
// never reached the minimum profit.
func (m *Manager) checkTimeExit(pos *position.Position, currentPrice float64, result *UpdateResult) bool {
	if !m.config.TimeBasedExitEnabled || m.config.MaxHoldingTime <= 0 {
		return false
	}

	heldHours := pos.Age(time.Now()).Hours()
	if heldHours <= m.config.MaxHoldingTime {
		return false
	}
	if pos.ProfitPercent(currentPrice) >= m.config.MinProfitForTimeExit {
		return false
	}

	result.ShouldClose = true
	result.CloseReason = ReasonTimeBasedExit
	result.addAction(Action{
		Type:    ActionTimeBasedExit,
		Message: fmt.Sprintf("Held %.1fh beyond %.1fh limit with profit below %.2f%%", heldHours, m.config.MaxHoldingTime, m.config.MinProfitForTimeExit),
		Data: map[string]interface{}{
			"symbol":     pos.Symbol,
			"held_hours": heldHours,
			"max_hours":  m.config.MaxHoldingTime,
		},
	})
	m.logger.Info().
		Str("symbol", pos.Symbol).
		Float64("heldHours", heldHours).
		Msg("time based exit triggered")
	return true
}

// checkVolatility emits an advisory when current volatility runs far
// above or below its baseline. Informational only, never a close.
func (m *Manager) checkVolatility(pos *position.Position, candles []market.Candle, result *UpdateResult) {
	if !m.config.VolatilityAdaptationEnabled {
		return
	}

	atr, err := strategy.CalculateATR(candles, m.config.ATRPeriod)
	if err != nil {
		return
	}
	avgATR, err := strategy.CalculateAverageATR(candles, m.config.ATRPeriod, m.config.AvgATRPeriods)
	if err != nil || avgATR <= 0 {
		return
	}

	ratio := atr / avgATR
	var message, level string
	switch {
	case ratio >= HighVolatilityRatio:
		message = fmt.Sprintf("Volatility %.1fx above normal, consider widening stops", ratio)
		level = "high"
	case ratio <= LowVolatilityRatio:
		message = fmt.Sprintf("Volatility %.1fx of normal, consider tightening stops", ratio)
		level = "low"
	default:
		return
	}

	result.addAction(Action{
		Type:    ActionVolatilityWarning,
		Message: message,
		Data: map[string]interface{}{
			"symbol":    pos.Symbol,
			"atr":       atr,
			"avg_atr":   avgATR,
			"atr_ratio": ratio,
			"level":     level,
		},
	})
}

// ApplyPartialClose records that a take-profit level fired: reduces the
// remaining quantity by the level's close percent of the original size,
// realizes its PnL and marks the level hit. The last fill sweeps rounding
// dust. Reaching zero remaining closes the position.
func (m *Manager) ApplyPartialClose(pos *position.Position, level int, fillPrice float64) (*Action, error) {
	if pos == nil {
		return nil, &risk.ValidationError{Field: "position", Reason: "must not be nil"}
	}
	if level < 1 || level > len(pos.TakeProfitLevels) {
		return nil, &risk.ValidationError{Field: "level", Value: level, Reason: "out of range"}
	}
	if fillPrice <= 0 {
		return nil, &risk.ValidationError{Field: "fillPrice", Value: fillPrice, Reason: "must be positive"}
	}

	tp := &pos.TakeProfitLevels[level-1]
	if tp.Status == position.TPStatusHit {
		return nil, &risk.ValidationError{Field: "level", Value: level, Reason: "already hit"}
	}

	closeQty := pos.Quantity * tp.ClosePercent / 100
	if closeQty > pos.RemainingQuantity || level == len(pos.TakeProfitLevels) {
		closeQty = pos.RemainingQuantity
	}
	if closeQty <= 0 {
		return nil, &risk.ValidationError{Field: "remainingQuantity", Value: pos.RemainingQuantity, Reason: "nothing left to close"}
	}

	var realized float64
	if pos.IsLong() {
		realized = (fillPrice - pos.EntryPrice) * closeQty
	} else {
		realized = (pos.EntryPrice - fillPrice) * closeQty
	}

	pos.RemainingQuantity -= closeQty
	pos.RealizedPnL += realized
	tp.Status = position.TPStatusHit

	if pos.RemainingQuantity <= remainderEpsilon {
		pos.RemainingQuantity = 0
		pos.Status = position.StatusClosed
	}
	pos.UpdateMarketPrice(fillPrice)

	m.logger.Info().
		Str("symbol", pos.Symbol).
		Int("level", level).
		Float64("closedQty", closeQty).
		Float64("realized", realized).
		Float64("remaining", pos.RemainingQuantity).
		Msg("🎯 partial close applied")

	return &Action{
		Type:    ActionPartialClose,
		Message: fmt.Sprintf("TP%d filled at %.4f, closed %.6f (%.0f%%), %.6f remaining", level, fillPrice, closeQty, tp.ClosePercent, pos.RemainingQuantity),
		Data: map[string]interface{}{
			"symbol":       pos.Symbol,
			"level":        level,
			"fill_price":   fillPrice,
			"closed_qty":   closeQty,
			"realized_pnl": realized,
			"remaining":    pos.RemainingQuantity,
		},
	}, nil
}

// tightenStop moves the stop only in the favorable direction: up for
// longs, down for shorts. A zero stop accepts any first level.
func (m *Manager) tightenStop(pos *position.Position, candidate float64) bool {
	if candidate <= 0 {
		return false
	}
	if pos.IsLong() {
		if pos.StopLoss == 0 || candidate > pos.StopLoss {
			pos.StopLoss = candidate
			return true
		}
		return false
	}
	if pos.StopLoss == 0 || candidate < pos.StopLoss {
		pos.StopLoss = candidate
		return true
	}
	return false
}
