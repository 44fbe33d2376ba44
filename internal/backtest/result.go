package backtest

import (
	"math"
	"time"

	"crypto-risk-engine/internal/market"
)

// Trade is one completed round trip in a replay.
type Trade struct {
	Symbol       string      `json:"symbol"`
	Side         market.Side `json:"side"`
	EntryTime    time.Time   `json:"entryTime"`
	ExitTime     time.Time   `json:"exitTime"`
	EntryPrice   float64     `json:"entryPrice"`
	ExitPrice    float64     `json:"exitPrice"`
	Quantity     float64     `json:"quantity"`
	PnL          float64     `json:"pnl"`
	PnLPercent   float64     `json:"pnlPercent"`
	PartialFills int         `json:"partialFills"`
	ExitReason   string      `json:"exitReason"`
}

// EquityPoint is the account balance after a trade settled.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// Result contains replay performance metrics.
type Result struct {
	Symbol         string        `json:"symbol"`
	InitialBalance float64       `json:"initialBalance"`
	FinalBalance   float64       `json:"finalBalance"`
	TotalTrades    int           `json:"totalTrades"`
	WinningTrades  int           `json:"winningTrades"`
	LosingTrades   int           `json:"losingTrades"`
	WinRate        float64       `json:"winRate"`
	TotalPnL       float64       `json:"totalPnl"`
	ROI            float64       `json:"roi"`
	ProfitFactor   float64       `json:"profitFactor"`
	AverageWin     float64       `json:"averageWin"`
	AverageLoss    float64       `json:"averageLoss"`
	LargestWin     float64       `json:"largestWin"`
	LargestLoss    float64       `json:"largestLoss"`
	MaxDrawdown    float64       `json:"maxDrawdown"` // percent off the equity peak
	SharpeRatio    float64       `json:"sharpeRatio"`
	Rejections     int           `json:"rejections"`
	Trades         []Trade       `json:"trades"`
	EquityCurve    []EquityPoint `json:"equityCurve"`
}

// finalize computes the aggregate metrics once all trades are recorded.
func (r *Result) finalize() {
	r.TotalTrades = len(r.Trades)

	var totalProfit, totalLoss float64
	for _, trade := range r.Trades {
		r.TotalPnL += trade.PnL
		if trade.PnL > 0 {
			r.WinningTrades++
			totalProfit += trade.PnL
			if trade.PnL > r.LargestWin {
				r.LargestWin = trade.PnL
			}
		} else {
			r.LosingTrades++
			totalLoss += math.Abs(trade.PnL)
			if trade.PnL < r.LargestLoss {
				r.LargestLoss = trade.PnL
			}
		}
	}

	if r.TotalTrades > 0 {
		r.WinRate = float64(r.WinningTrades) / float64(r.TotalTrades) * 100
	}
	if r.WinningTrades > 0 {
		r.AverageWin = totalProfit / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AverageLoss = totalLoss / float64(r.LosingTrades)
	}
	if totalLoss > 0 {
		r.ProfitFactor = totalProfit / totalLoss
	}
	if r.InitialBalance > 0 {
		r.ROI = (r.FinalBalance - r.InitialBalance) / r.InitialBalance * 100
	}

	r.MaxDrawdown = maxDrawdown(r.EquityCurve)
	r.SharpeRatio = sharpeRatio(r.Trades)
}

// maxDrawdown returns the largest percentage decline off the equity peak.
func maxDrawdown(equityCurve []EquityPoint) float64 {
	if len(equityCurve) == 0 {
		return 0
	}

	maxDD := 0.0
	peak := equityCurve[0].Equity

	for _, point := range equityCurve {
		if point.Equity > peak {
			peak = point.Equity
		}
		if peak <= 0 {
			continue
		}
		drawdown := (peak - point.Equity) / peak * 100
		if drawdown > maxDD {
			maxDD = drawdown
		}
	}

	return maxDD
}

// sharpeRatio computes a simplified risk-adjusted return over per-trade
// percentage returns, assuming a zero risk-free rate.
func sharpeRatio(trades []Trade) float64 {
	if len(trades) == 0 {
		return 0
	}

	var total float64
	for _, trade := range trades {
		total += trade.PnLPercent
	}
	avg := total / float64(len(trades))

	var variance float64
	for _, trade := range trades {
		diff := trade.PnLPercent - avg
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(len(trades)))
	if stdDev == 0 {
		return 0
	}

	return avg / stdDev
}
