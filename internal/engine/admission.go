package engine

import (
	"github.com/google/uuid"

	"crypto-risk-engine/internal/correlation"
	"crypto-risk-engine/internal/market"
	"crypto-risk-engine/internal/metrics"
	"crypto-risk-engine/internal/position"
	"crypto-risk-engine/internal/risk"
	"crypto-risk-engine/internal/sizing"
	"crypto-risk-engine/internal/strategy"
)

// Admission rejection gates, used as the metrics reason label.
const (
	GateAccount     = "account"
	GateCorrelation = "correlation"
	GateSizing      = "sizing"
	GateLevels      = "levels"
)

// AdmissionRequest describes a position the caller wants to open. The
// engine fills Side, EntryPrice and cached candles into the nested
// calculator params, so callers only set the strategy knobs.
type AdmissionRequest struct {
	Symbol     string      `json:"symbol"`
	Side       market.Side `json:"side"`
	EntryPrice float64     `json:"entryPrice"`

	Sizing     sizing.Params             `json:"sizing"`
	StopLoss   strategy.StopLossParams   `json:"stopLoss"`
	TakeProfit strategy.TakeProfitParams `json:"takeProfit"`
}

// AdmissionDecision is the outcome of the admission pipeline. A rejected
// decision carries the gate's reason; an allowed one carries the planned
// size, stop and take-profit levels.
type AdmissionDecision struct {
	DecisionID  string                        `json:"decisionId"`
	Symbol      string                        `json:"symbol"`
	Side        market.Side                   `json:"side"`
	Allowed     bool                          `json:"allowed"`
	Gate        string                        `json:"gate,omitempty"`
	Reason      string                        `json:"reason,omitempty"`
	Size        *sizing.Result                `json:"size,omitempty"`
	StopLoss    float64                       `json:"stopLoss,omitempty"`
	TakeProfits []position.TakeProfitLevel    `json:"takeProfits,omitempty"`
	Correlation *correlation.CorrelationCheck `json:"correlation,omitempty"`
}

// AdmitPosition runs the admission pipeline: account gate, correlation
// gate, position sizing, then stop and take-profit planning. Gate
// rejections come back as a disallowed decision, not an error; errors are
// reserved for malformed requests.
func (e *Engine) AdmitPosition(req AdmissionRequest) (*AdmissionDecision, error) {
	if req.Symbol == "" {
		return nil, &risk.ValidationError{Field: "symbol", Value: req.Symbol, Reason: "must not be empty"}
	}
	if !req.Side.Valid() {
		return nil, &risk.ValidationError{Field: "side", Value: string(req.Side), Reason: "must be LONG or SHORT"}
	}
	if req.EntryPrice <= 0 {
		return nil, &risk.ValidationError{Field: "entryPrice", Value: req.EntryPrice, Reason: "must be positive"}
	}

	decision := &AdmissionDecision{
		DecisionID: uuid.New().String(),
		Symbol:     req.Symbol,
		Side:       req.Side,
	}

	if ok, reason := e.account.CanOpenPosition(); !ok {
		return e.reject(decision, GateAccount, reason), nil
	}

	check := e.analyzer.CheckCorrelatedPositions(e.OpenPositions(), req.Symbol, e.config.MaxCorrelatedPositions, e.config.Correlation)
	decision.Correlation = check
	if !check.Allowed {
		return e.reject(decision, GateCorrelation, check.Reason), nil
	}

	sizingParams := req.Sizing
	if sizingParams.Balance <= 0 {
		sizingParams.Balance = e.account.Balance()
	}
	if sizingParams.EntryPrice <= 0 {
		sizingParams.EntryPrice = req.EntryPrice
	}
	size, err := e.sizer.Calculate(sizingParams)
	if err != nil {
		return e.reject(decision, GateSizing, err.Error()), nil
	}
	decision.Size = size

	stopLoss, takeProfits, err := e.PlanLevels(req)
	if err != nil {
		return e.reject(decision, GateLevels, err.Error()), nil
	}
	decision.StopLoss = stopLoss
	decision.TakeProfits = takeProfits

	decision.Allowed = true
	metrics.RecordAdmission(req.Symbol, string(size.Method))

	e.logger.Info().
		Str("decisionId", decision.DecisionID).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Float64("size", size.Size).
		Float64("stopLoss", stopLoss).
		Int("takeProfits", len(takeProfits)).
		Msg("✅ position admitted")

	return decision, nil
}

// PlanLevels computes the stop-loss and take-profit levels for a request,
// filling side, entry price and cached candle history into the calculator
// params.
func (e *Engine) PlanLevels(req AdmissionRequest) (float64, []position.TakeProfitLevel, error) {
	candles := e.Candles(req.Symbol)

	slParams := req.StopLoss
	slParams.Side = req.Side
	slParams.EntryPrice = req.EntryPrice
	if slParams.Candles == nil {
		slParams.Candles = candles
	}
	stopLoss, err := strategy.CalculateStopLoss(slParams)
	if err != nil {
		return 0, nil, err
	}

	tpParams := req.TakeProfit
	tpParams.Side = req.Side
	tpParams.EntryPrice = req.EntryPrice
	if tpParams.Candles == nil {
		tpParams.Candles = candles
	}
	if tpParams.StopLoss <= 0 {
		tpParams.StopLoss = stopLoss
	}
	takeProfits, err := strategy.CalculateTakeProfit(tpParams)
	if err != nil {
		return 0, nil, err
	}

	return stopLoss, takeProfits, nil
}

func (e *Engine) reject(decision *AdmissionDecision, gate, reason string) *AdmissionDecision {
	decision.Allowed = false
	decision.Gate = gate
	decision.Reason = reason

	metrics.RecordAdmissionRejection(gate)
	e.bus.PublishPositionRejected(decision.Symbol, reason)

	e.logger.Warn().
		Str("decisionId", decision.DecisionID).
		Str("symbol", decision.Symbol).
		Str("gate", gate).
		Str("reason", reason).
		Msg("position rejected")

	return decision
}
