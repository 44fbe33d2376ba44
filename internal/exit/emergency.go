package exit

import (
	"fmt"

	"crypto-risk-engine/internal/market"
	"crypto-risk-engine/internal/position"
	"crypto-risk-engine/internal/strategy"
)

// Emergency exit thresholds.
const (
	// EmergencyVolumeDropRatio flags a collapse of the latest candle's
	// volume versus the recent average.
	EmergencyVolumeDropRatio = 0.5
	// EmergencyLossPercent is the total (realized plus unrealized) loss
	// versus entry notional that forces an exit.
	EmergencyLossPercent = -10.0
	// emergencyVolumePeriod is how many prior candles form the volume
	// baseline.
	emergencyVolumePeriod = 20
)

// MarketSnapshot carries the market context for an emergency check.
// AdverseNews is set by the sentiment side when breaking news turns
// against the position.
type MarketSnapshot struct {
	Candles     []market.Candle
	AdverseNews bool
}

// ShouldEmergencyExit is the separate, explicitly invoked force-close
// check. It is not part of the per-tick rule order. Triggers: the latest
// candle's volume dropping below half the recent average, an adverse-news
// flag, or total loss worse than -10% of entry notional.
func (m *Manager) ShouldEmergencyExit(pos *position.Position, snapshot MarketSnapshot) (bool, string, *Action) {
	if pos == nil || pos.Status != position.StatusOpen {
		return false, "", nil
	}

	if len(snapshot.Candles) >= 2 {
		last := snapshot.Candles[len(snapshot.Candles)-1]
		avgVolume := strategy.CalculateAverageVolume(snapshot.Candles[:len(snapshot.Candles)-1], emergencyVolumePeriod)
		if avgVolume > 0 && last.Volume < avgVolume*EmergencyVolumeDropRatio {
			return true, EmergencyVolumeDrop, m.emergencyAction(pos, EmergencyVolumeDrop,
				fmt.Sprintf("Volume collapsed to %.0f%% of average", last.Volume/avgVolume*100),
				map[string]interface{}{"volume": last.Volume, "avg_volume": avgVolume})
		}
	}

	if snapshot.AdverseNews {
		return true, EmergencyAdverseNews, m.emergencyAction(pos, EmergencyAdverseNews,
			"Adverse news flagged against the position", nil)
	}

	notional := pos.EntryPrice * pos.Quantity
	if notional > 0 {
		lossPercent := pos.TotalPnL() / notional * 100
		if lossPercent < EmergencyLossPercent {
			return true, EmergencyExcessiveLoss, m.emergencyAction(pos, EmergencyExcessiveLoss,
				fmt.Sprintf("Total loss %.2f%% beyond emergency threshold", lossPercent),
				map[string]interface{}{"loss_percent": lossPercent, "total_pnl": pos.TotalPnL()})
		}
	}

	return false, "", nil
}

func (m *Manager) emergencyAction(pos *position.Position, trigger, message string, data map[string]interface{}) *Action {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["symbol"] = pos.Symbol
	data["trigger"] = trigger

	m.logger.Warn().
		Str("symbol", pos.Symbol).
		Str("trigger", trigger).
		Msg("🚨 emergency exit triggered")

	return &Action{
		Type:    ActionEmergencyExit,
		Message: message,
		Data:    data,
	}
}
