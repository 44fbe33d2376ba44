// Package backtest replays historical candles through the decision engine.
// Each replay opens positions through the admission pipeline, advances them
// tick by tick through the exit rules, fills take-profit levels the price
// crosses and settles closes into the account balance.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"crypto-risk-engine/internal/engine"
	"crypto-risk-engine/internal/exit"
	"crypto-risk-engine/internal/market"
	"crypto-risk-engine/internal/position"
	"crypto-risk-engine/internal/sizing"
	"crypto-risk-engine/internal/strategy"
)

// DefaultWarmup is how many candles are fed before the first entry, so the
// data-driven calculators have history to work with.
const DefaultWarmup = 50

// ReasonReplayEnd closes a position still open when the candles run out.
const ReasonReplayEnd = "replay_end"

// Config holds the replay parameters for one symbol.
type Config struct {
	Symbol         string                    `json:"symbol"`
	Side           market.Side               `json:"side"`
	InitialBalance float64                   `json:"initialBalance"`
	Warmup         int                       `json:"warmup"`
	Sizing         sizing.Params             `json:"sizing"`
	StopLoss       strategy.StopLossParams   `json:"stopLoss"`
	TakeProfit     strategy.TakeProfitParams `json:"takeProfit"`
	TrailingSteps  []position.TrailingStep   `json:"trailingSteps"`
	Candles        []market.Candle           `json:"candles"`
}

// Replay drives one symbol's candles through an engine. The engine must not
// be shared with another replay.
type Replay struct {
	engine *engine.Engine
	config Config
	logger zerolog.Logger
}

// NewReplay creates a replay over the given engine.
func NewReplay(eng *engine.Engine, config Config, logger zerolog.Logger) *Replay {
	if config.Warmup <= 0 {
		config.Warmup = DefaultWarmup
	}
	return &Replay{
		engine: eng,
		config: config,
		logger: logger.With().Str("component", "replay").Str("symbol", config.Symbol).Logger(),
	}
}

// Run executes the replay. After every close it immediately seeks a new
// entry on the next candle, so one run produces a sequence of trades.
func (r *Replay) Run(ctx context.Context) (*Result, error) {
	candles := r.config.Candles
	if len(candles) <= r.config.Warmup+1 {
		return nil, fmt.Errorf("insufficient historical data: got %d candles, need more than %d", len(candles), r.config.Warmup+1)
	}

	account := r.engine.Account()
	account.UpdateBalance(r.config.InitialBalance)

	result := &Result{
		Symbol:         r.config.Symbol,
		InitialBalance: r.config.InitialBalance,
	}

	r.logger.Info().
		Int("candles", len(candles)).
		Float64("balance", r.config.InitialBalance).
		Str("side", string(r.config.Side)).
		Msg("replay started")

	for i := 0; i < r.config.Warmup; i++ {
		r.engine.RecordCandle(r.config.Symbol, candles[i])
	}

	var pos *position.Position
	var entryTime time.Time
	var fills int

	for i := r.config.Warmup; i < len(candles); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		candle := candles[i]
		r.engine.RecordCandle(r.config.Symbol, candle)
		price := candle.Close
		now := closeTimeOf(candle)

		if pos != nil {
			closeReason, err := r.advancePosition(pos, candle, &fills)
			if err != nil {
				return nil, err
			}
			if closeReason != "" {
				result.record(pos, entryTime, now, fills, account.Balance(), closeReason)
				pos = nil
				fills = 0
			}
		}

		if pos == nil && i < len(candles)-1 {
			opened, decision, err := r.tryEnter(price)
			if err != nil {
				return nil, err
			}
			if opened == nil {
				if decision != nil && !decision.Allowed {
					result.Rejections++
				}
				continue
			}
			pos = opened
			entryTime = now
		}
	}

	if pos != nil {
		last := candles[len(candles)-1]
		if err := r.engine.ClosePosition(pos, last.Close, ReasonReplayEnd); err != nil {
			return nil, err
		}
		result.record(pos, entryTime, closeTimeOf(last), fills, account.Balance(), ReasonReplayEnd)
	}

	result.FinalBalance = account.Balance()
	result.finalize()

	r.logger.Info().
		Int("trades", result.TotalTrades).
		Float64("winRate", result.WinRate).
		Float64("totalPnL", result.TotalPnL).
		Float64("maxDrawdown", result.MaxDrawdown).
		Int("rejections", result.Rejections).
		Msg("replay finished")

	return result, nil
}

// advancePosition runs one tick: exit rules first, then take-profit fills
// for any pending level the candle's range crossed. Stop-loss closes fill
// at the stop price, other closes at the candle close. Returns the close
// reason, or empty while the position stays open.
func (r *Replay) advancePosition(pos *position.Position, candle market.Candle, fills *int) (string, error) {
	eval, err := r.engine.EvaluateTick(pos, candle.Close)
	if err != nil {
		return "", err
	}

	if eval.Result.ShouldClose {
		exitPrice := candle.Close
		if eval.Result.CloseReason == exit.ReasonStopLoss && pos.StopLoss > 0 {
			exitPrice = pos.StopLoss
		}
		if err := r.engine.ClosePosition(pos, exitPrice, eval.Result.CloseReason); err != nil {
			return "", err
		}
		return eval.Result.CloseReason, nil
	}

	for idx := range pos.TakeProfitLevels {
		level := pos.TakeProfitLevels[idx]
		if level.Status != position.TPStatusPending {
			continue
		}
		crossed := candle.High >= level.Price
		if !pos.IsLong() {
			crossed = candle.Low <= level.Price
		}
		if !crossed {
			continue
		}
		if _, err := r.engine.ApplyPartialClose(pos, level.Level, level.Price); err != nil {
			return "", err
		}
		*fills++
		if pos.Status == position.StatusClosed {
			return "take_profit_complete", nil
		}
	}

	return "", nil
}

// tryEnter runs the admission pipeline at the current price and opens the
// position when it is allowed.
func (r *Replay) tryEnter(price float64) (*position.Position, *engine.AdmissionDecision, error) {
	req := engine.AdmissionRequest{
		Symbol:     r.config.Symbol,
		Side:       r.config.Side,
		EntryPrice: price,
		Sizing:     r.config.Sizing,
		StopLoss:   r.config.StopLoss,
		TakeProfit: r.config.TakeProfit,
	}

	decision, err := r.engine.AdmitPosition(req)
	if err != nil {
		return nil, nil, err
	}
	if !decision.Allowed {
		return nil, decision, nil
	}

	pos, err := r.engine.OpenPosition(r.config.Symbol, r.config.Side, price, decision.Size.Quantity)
	if err != nil {
		return nil, decision, err
	}

	pos.StopLoss = decision.StopLoss
	pos.StopLossType = string(r.config.StopLoss.Type)
	pos.TakeProfitLevels = decision.TakeProfits
	pos.TakeProfitType = string(r.config.TakeProfit.Type)
	for _, level := range decision.TakeProfits {
		pos.TakeProfits = append(pos.TakeProfits, level.Price)
	}
	pos.SteppedTrailingSteps = r.config.TrailingSteps

	return pos, decision, nil
}

// record appends the completed round trip and its equity point.
func (r *Result) record(pos *position.Position, entryTime, exitTime time.Time, fills int, balance float64, reason string) {
	pnlPercent := 0.0
	if notional := pos.EntryPrice * pos.Quantity; notional > 0 {
		pnlPercent = pos.RealizedPnL / notional * 100
	}

	r.Trades = append(r.Trades, Trade{
		Symbol:       pos.Symbol,
		Side:         pos.Side,
		EntryTime:    entryTime,
		ExitTime:     exitTime,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    pos.CurrentPrice,
		Quantity:     pos.Quantity,
		PnL:          pos.RealizedPnL,
		PnLPercent:   pnlPercent,
		PartialFills: fills,
		ExitReason:   reason,
	})
	r.EquityCurve = append(r.EquityCurve, EquityPoint{
		Timestamp: exitTime,
		Equity:    balance,
	})
}

func closeTimeOf(candle market.Candle) time.Time {
	return time.Unix(0, candle.CloseTime*int64(time.Millisecond))
}
