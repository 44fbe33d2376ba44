// Package engine wires the market store, correlation analyzer, exit
// manager, position sizing and the account gate behind a single facade.
// Callers feed it candles and ticks; it returns decisions and publishes
// the resulting actions on the event bus.
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crypto-risk-engine/internal/correlation"
	"crypto-risk-engine/internal/events"
	"crypto-risk-engine/internal/exit"
	"crypto-risk-engine/internal/market"
	"crypto-risk-engine/internal/metrics"
	"crypto-risk-engine/internal/position"
	"crypto-risk-engine/internal/risk"
	"crypto-risk-engine/internal/sizing"
)

// Config holds the engine-level knobs not owned by a sub-component.
type Config struct {
	SeriesLimit            int                 `json:"seriesLimit"`
	MaxCorrelatedPositions int                 `json:"maxCorrelatedPositions"`
	Correlation            correlation.Options `json:"correlation"`
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		SeriesLimit:            market.DefaultSeriesLimit,
		MaxCorrelatedPositions: correlation.DefaultMaxCorrelated,
		Correlation:            correlation.DefaultOptions(),
	}
}

// Validate checks config values are usable.
func (c Config) Validate() error {
	if c.SeriesLimit < 2 {
		return &risk.ValidationError{Field: "seriesLimit", Value: c.SeriesLimit, Reason: "must be at least 2"}
	}
	if c.MaxCorrelatedPositions <= 0 {
		return &risk.ValidationError{Field: "maxCorrelatedPositions", Value: c.MaxCorrelatedPositions, Reason: "must be positive"}
	}
	return nil
}

// Evaluation is one per-tick decision pass over a position.
type Evaluation struct {
	DecisionID string             `json:"decisionId"`
	Result     *exit.UpdateResult `json:"result"`
	Elapsed    time.Duration      `json:"elapsed"`
}

// Engine is the risk and exit decision facade. The candle store and the
// open-position registry live behind e.mu; sub-components carry their own
// locking where they need it.
type Engine struct {
	mu        sync.RWMutex
	config    Config
	store     map[string]*market.Series
	positions map[string]*position.Position

	account  *risk.AccountManager
	sizer    *sizing.Calculator
	exits    *exit.Manager
	analyzer *correlation.Analyzer
	bus      *events.EventBus
	logger   zerolog.Logger
}

// New assembles an engine from its components. A nil bus gets replaced
// with a fresh one.
func New(config Config, account *risk.AccountManager, sizer *sizing.Calculator, exits *exit.Manager, analyzer *correlation.Analyzer, bus *events.EventBus, logger zerolog.Logger) *Engine {
	if config.SeriesLimit < 2 {
		config.SeriesLimit = market.DefaultSeriesLimit
	}
	if config.MaxCorrelatedPositions <= 0 {
		config.MaxCorrelatedPositions = correlation.DefaultMaxCorrelated
	}
	if bus == nil {
		bus = events.NewEventBus()
	}
	return &Engine{
		config:    config,
		store:     make(map[string]*market.Series),
		positions: make(map[string]*position.Position),
		account:   account,
		sizer:     sizer,
		exits:     exits,
		analyzer:  analyzer,
		bus:       bus,
		logger:    logger.With().Str("component", "engine").Logger(),
	}
}

// Bus returns the event bus for subscribers.
func (e *Engine) Bus() *events.EventBus {
	return e.bus
}

// Account returns the account-level risk gate.
func (e *Engine) Account() *risk.AccountManager {
	return e.account
}

// RecordCandle appends a closed candle to the symbol's series and feeds
// the correlation analyzer.
func (e *Engine) RecordCandle(symbol string, candle market.Candle) {
	e.mu.Lock()
	series, ok := e.store[symbol]
	if !ok {
		series = market.NewSeries(e.config.SeriesLimit)
		e.store[symbol] = series
	}
	series.Append(candle)
	e.mu.Unlock()

	e.analyzer.UpdatePriceData(symbol, candle)
	metrics.UpdateCorrelationCacheEntries(e.analyzer.CacheSize())
}

// Candles returns the cached history for a symbol, oldest first.
func (e *Engine) Candles(symbol string) []market.Candle {
	e.mu.RLock()
	defer e.mu.RUnlock()

	series := e.store[symbol]
	if series == nil {
		return nil
	}
	return series.Candles()
}

// EvaluateTick runs the exit rules for one position against one price,
// using the cached candle history for ATR and volatility context. Each
// pass gets a decision id, and every resulting action is published on
// the bus and counted in metrics.
func (e *Engine) EvaluateTick(pos *position.Position, currentPrice float64) (*Evaluation, error) {
	start := time.Now()
	decisionID := uuid.New().String()
	var stopBefore float64
	if pos != nil {
		stopBefore = pos.StopLoss
	}

	result, err := e.exits.UpdatePosition(pos, currentPrice, e.Candles(symbolOf(pos)))
	if err != nil {
		e.bus.PublishError("engine", "tick evaluation failed", err)
		return nil, err
	}

	for _, action := range result.Actions {
		e.publishAction(pos, action, stopBefore)
	}
	if result.ShouldClose {
		metrics.RecordExitSignal(pos.Symbol, result.CloseReason)
		e.bus.PublishExitSignal(pos.ID, pos.Symbol, result.CloseReason, currentPrice)
	}

	elapsed := time.Since(start)
	metrics.RecordEvaluation(pos.Symbol, elapsed.Seconds())
	e.bus.PublishEvaluation(decisionID, pos.ID, pos.Symbol, currentPrice, len(result.Actions), result.ShouldClose)

	return &Evaluation{DecisionID: decisionID, Result: result, Elapsed: elapsed}, nil
}

func symbolOf(pos *position.Position) string {
	if pos == nil {
		return ""
	}
	return pos.Symbol
}

// publishAction maps an exit action onto the bus and the counters.
// Close-recommending actions are reported through the ShouldClose path.
func (e *Engine) publishAction(pos *position.Position, action exit.Action, stopBefore float64) {
	switch action.Type {
	case exit.ActionBreakevenActivated:
		metrics.RecordStopMove(pos.Symbol, "breakeven")
		e.bus.PublishBreakevenSet(pos.ID, pos.Symbol, pos.StopLoss)
	case exit.ActionTrailingStepAdvance:
		metrics.RecordStopMove(pos.Symbol, "stepped")
		step, _ := action.Data["step"].(int)
		e.bus.PublishTrailingAdvanced(pos.ID, pos.Symbol, step, pos.StopLoss)
	case exit.ActionATRTrailingUpdate:
		metrics.RecordStopMove(pos.Symbol, "atr")
		e.bus.PublishStopMoved(pos.ID, pos.Symbol, stopBefore, pos.StopLoss)
	}
}

// ApplyPartialClose records a take-profit fill reported by the execution
// side and publishes the bookkeeping outcome.
func (e *Engine) ApplyPartialClose(pos *position.Position, level int, fillPrice float64) (*exit.Action, error) {
	action, err := e.exits.ApplyPartialClose(pos, level, fillPrice)
	if err != nil {
		return nil, err
	}

	metrics.RecordPartialClose(pos.Symbol)
	closedQty, _ := action.Data["closed_qty"].(float64)
	realized, _ := action.Data["realized_pnl"].(float64)
	e.bus.PublishPartialClose(pos.ID, pos.Symbol, level, closedQty, fillPrice, realized)

	if pos.Status == position.StatusClosed {
		e.finalizeClosed(pos, "take_profit_complete")
	}
	return action, nil
}

// EmergencyCheck runs the emergency exit rule. A snapshot without candles
// gets the cached history for the position's symbol.
func (e *Engine) EmergencyCheck(pos *position.Position, snapshot exit.MarketSnapshot) (bool, string) {
	if snapshot.Candles == nil && pos != nil {
		snapshot.Candles = e.Candles(pos.Symbol)
	}

	triggered, trigger, _ := e.exits.ShouldEmergencyExit(pos, snapshot)
	if triggered {
		metrics.RecordEmergencyExit(pos.Symbol, trigger)
		e.bus.PublishEmergencyExit(pos.ID, pos.Symbol, trigger)
	}
	return triggered, trigger
}

// OpenPosition registers a new position with the engine and the account
// gate. The position must already have passed admission.
func (e *Engine) OpenPosition(symbol string, side market.Side, entryPrice, quantity float64) (*position.Position, error) {
	pos := position.New(symbol, side, entryPrice, quantity)
	if err := pos.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.positions[pos.ID] = pos
	count := len(e.positions)
	e.mu.Unlock()

	e.account.RegisterOpen()
	metrics.UpdateOpenPositions(count)

	e.logger.Info().
		Str("positionId", pos.ID).
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("entry", entryPrice).
		Float64("quantity", quantity).
		Msg("position opened")

	return pos, nil
}

// ClosePosition realizes the remaining quantity at the exit price and
// settles the trade into the account ledger.
func (e *Engine) ClosePosition(pos *position.Position, exitPrice float64, reason string) error {
	if pos == nil {
		return &risk.ValidationError{Field: "position", Value: nil, Reason: "must not be nil"}
	}
	if pos.Status != position.StatusOpen {
		return &risk.ValidationError{Field: "position", Value: pos.Status, Reason: "already closed"}
	}
	if exitPrice <= 0 {
		return &risk.ValidationError{Field: "exitPrice", Value: exitPrice, Reason: "must be positive"}
	}

	pos.Close(exitPrice)
	e.finalizeClosed(pos, reason)
	return nil
}

// finalizeClosed drops a closed position from the registry and settles
// its realized PnL into the account balance.
func (e *Engine) finalizeClosed(pos *position.Position, reason string) {
	e.mu.Lock()
	delete(e.positions, pos.ID)
	count := len(e.positions)
	e.mu.Unlock()

	e.account.RegisterClose(pos.RealizedPnL)
	e.account.UpdateBalance(e.account.Balance() + pos.RealizedPnL)
	metrics.UpdateOpenPositions(count)
	metrics.UpdateAccountBalance(e.account.Balance())

	e.logger.Info().
		Str("positionId", pos.ID).
		Str("symbol", pos.Symbol).
		Str("reason", reason).
		Float64("realizedPnL", pos.RealizedPnL).
		Msg("✅ position closed")
}

// OpenPositions returns a snapshot of the registry.
func (e *Engine) OpenPositions() []*position.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*position.Position, 0, len(e.positions))
	for _, pos := range e.positions {
		out = append(out, pos)
	}
	return out
}

// Position looks up an open position by id.
func (e *Engine) Position(id string) (*position.Position, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pos, ok := e.positions[id]
	return pos, ok
}

// Diversification reports the current portfolio spread.
func (e *Engine) Diversification(minAssets int, maxCorrelation float64) *correlation.DiversificationReport {
	return e.analyzer.CheckDiversification(e.OpenPositions(), minAssets, maxCorrelation)
}
