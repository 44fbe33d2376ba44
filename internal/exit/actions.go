package exit

import "crypto-risk-engine/internal/position"

// ActionType identifies what a fired rule did.
type ActionType string

const (
	ActionStopLossTriggered   ActionType = "stop_loss_triggered"
	ActionBreakevenActivated  ActionType = "breakeven_activated"
	ActionTrailingStepAdvance ActionType = "trailing_step_advanced"
	ActionATRTrailingUpdate   ActionType = "atr_trailing_updated"
	ActionTimeBasedExit       ActionType = "time_based_exit"
	ActionVolatilityWarning   ActionType = "volatility_warning"
	ActionPartialClose        ActionType = "partial_close"
	ActionEmergencyExit       ActionType = "emergency_exit"
)

// Close reasons reported with ShouldClose.
const (
	ReasonStopLoss      = "stop_loss_triggered"
	ReasonTimeBasedExit = "time_based_exit"
	ReasonEmergencyExit = "emergency_exit"
)

// Emergency triggers reported by ShouldEmergencyExit.
const (
	EmergencyVolumeDrop    = "volume_drop"
	EmergencyAdverseNews   = "adverse_news"
	EmergencyExcessiveLoss = "excessive_loss"
)

// Action is one structured message produced by a fired rule. The
// notification side renders Message; Data carries the numbers.
type Action struct {
	Type    ActionType             `json:"type"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// UpdateResult is the outcome of one tick evaluation. Position is the
// same reference that was passed in, advanced in place.
type UpdateResult struct {
	Position    *position.Position `json:"position"`
	Actions     []Action           `json:"actions"`
	ShouldClose bool               `json:"shouldClose"`
	CloseReason string             `json:"closeReason,omitempty"`
}

func (r *UpdateResult) addAction(a Action) {
	r.Actions = append(r.Actions, a)
}
