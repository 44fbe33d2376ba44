package correlation

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crypto-risk-engine/internal/market"
	"crypto-risk-engine/internal/position"
	"crypto-risk-engine/internal/risk"
)

const (
	// DefaultPeriod is the correlation lookback window in closes.
	DefaultPeriod = 50

	// DefaultThreshold marks a pair as highly correlated at |corr| >= 0.7.
	DefaultThreshold = 0.7

	// DefaultMaxCorrelated is how many highly correlated open positions are
	// tolerated before a new admission is rejected.
	DefaultMaxCorrelated = 2

	// DefaultMinAssets is the minimum unique symbol count considered
	// diversified.
	DefaultMinAssets = 3
)

// Options select the window and cutoff for a single correlation query.
type Options struct {
	Period    int     `json:"period"`
	Threshold float64 `json:"threshold"`
}

// DefaultOptions returns the standard 50-close window with a 0.7 cutoff.
func DefaultOptions() Options {
	return Options{
		Period:    DefaultPeriod,
		Threshold: DefaultThreshold,
	}
}

func (o Options) withDefaults() Options {
	if o.Period <= 0 {
		o.Period = DefaultPeriod
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

// Config controls the analyzer's price history depth and cache lifetime.
type Config struct {
	MaxHistory      int `json:"maxHistory"`
	CacheTTLMinutes int `json:"cacheTtlMinutes"`
}

// DefaultConfig returns the standard analyzer configuration.
func DefaultConfig() Config {
	return Config{
		MaxHistory:      market.DefaultSeriesLimit,
		CacheTTLMinutes: 60,
	}
}

// Validate checks config values are usable.
func (c Config) Validate() error {
	if c.MaxHistory < 2 {
		return &risk.ValidationError{Field: "maxHistory", Value: c.MaxHistory, Reason: "must be at least 2"}
	}
	if c.CacheTTLMinutes < 0 {
		return &risk.ValidationError{Field: "cacheTtlMinutes", Value: c.CacheTTLMinutes, Reason: "must not be negative"}
	}
	return nil
}

// CorrelationCheck is the admission verdict for a candidate symbol against
// the currently open positions.
type CorrelationCheck struct {
	Allowed           bool               `json:"allowed"`
	NewSymbol         string             `json:"newSymbol"`
	CorrelatedSymbols []string           `json:"correlatedSymbols"`
	Correlations      map[string]float64 `json:"correlations"`
	Reason            string             `json:"reason"`
}

// DiversificationReport summarizes how spread out the open portfolio is.
type DiversificationReport struct {
	UniqueAssets    int      `json:"uniqueAssets"`
	MinAssets       int      `json:"minAssets"`
	MeanCorrelation float64  `json:"meanCorrelation"`
	Diversified     bool     `json:"diversified"`
	Warnings        []string `json:"warnings"`
}

// Analyzer maintains per-symbol close series and computes pairwise Pearson
// correlations with TTL caching. Series appends and correlation queries may
// come from different goroutines, so all series access goes through a.mu;
// the cache carries its own lock.
type Analyzer struct {
	mu     sync.RWMutex
	config Config
	closes map[string][]float64
	cache  *correlationCache
	logger zerolog.Logger
}

// NewAnalyzer creates a correlation analyzer with its own cache.
func NewAnalyzer(config Config, logger zerolog.Logger) *Analyzer {
	if config.MaxHistory < 2 {
		config.MaxHistory = market.DefaultSeriesLimit
	}
	return &Analyzer{
		config: config,
		closes: make(map[string][]float64),
		cache:  newCorrelationCache(time.Duration(config.CacheTTLMinutes) * time.Minute),
		logger: logger.With().Str("component", "correlation").Logger(),
	}
}

// AddPriceData appends a candle's close to the symbol's series.
func (a *Analyzer) AddPriceData(symbol string, candle market.Candle) {
	a.appendClose(symbol, candle.Close)
}

// UpdatePriceData appends a candle's close to the symbol's series and
// invalidates cached correlations involving the symbol, same as AddPriceData.
func (a *Analyzer) UpdatePriceData(symbol string, candle market.Candle) {
	a.appendClose(symbol, candle.Close)
}

func (a *Analyzer) appendClose(symbol string, close float64) {
	a.mu.Lock()
	series := append(a.closes[symbol], close)
	if len(series) > a.config.MaxHistory {
		trimmed := make([]float64, a.config.MaxHistory)
		copy(trimmed, series[len(series)-a.config.MaxHistory:])
		series = trimmed
	}
	a.closes[symbol] = series
	a.mu.Unlock()

	a.cache.invalidateSymbol(symbol)
}

// HistoryLen reports how many closes are stored for a symbol.
func (a *Analyzer) HistoryLen(symbol string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.closes[symbol])
}

// CalculateCorrelation computes the Pearson correlation between two symbols
// over the last min(period, len) closes of each. Results are cached
// symmetrically until the cache TTL expires or either symbol receives new
// price data.
func (a *Analyzer) CalculateCorrelation(symbol1, symbol2 string, opts Options) (float64, error) {
	opts = opts.withDefaults()

	if entry, ok := a.cache.get(symbol1, symbol2); ok {
		return entry.Correlation, nil
	}

	a.mu.RLock()
	series1 := a.closes[symbol1]
	series2 := a.closes[symbol2]
	a.mu.RUnlock()

	if len(series1) < 2 {
		return 0, &risk.DataError{Symbol: symbol1, Required: 2, Actual: len(series1), Reason: "correlation needs at least 2 closes"}
	}
	if len(series2) < 2 {
		return 0, &risk.DataError{Symbol: symbol2, Required: 2, Actual: len(series2), Reason: "correlation needs at least 2 closes"}
	}

	window := opts.Period
	if window > len(series1) {
		window = len(series1)
	}
	if window > len(series2) {
		window = len(series2)
	}

	correlation := pearson(series1[len(series1)-window:], series2[len(series2)-window:])

	a.cache.set(CachedCorrelation{
		Symbol1:            symbol1,
		Symbol2:            symbol2,
		Correlation:        correlation,
		IsHighlyCorrelated: math.Abs(correlation) >= opts.Threshold,
	})

	a.logger.Debug().
		Str("symbol1", symbol1).
		Str("symbol2", symbol2).
		Int("window", window).
		Float64("correlation", correlation).
		Msg("Correlation computed")

	return correlation, nil
}

// CheckCorrelatedPositions counts the open symbols highly correlated with
// newSymbol and rejects admission once that count reaches maxCorrelated.
// Symbols without enough price history contribute no correlation.
func (a *Analyzer) CheckCorrelatedPositions(openPositions []*position.Position, newSymbol string, maxCorrelated int, opts Options) *CorrelationCheck {
	opts = opts.withDefaults()
	if maxCorrelated <= 0 {
		maxCorrelated = DefaultMaxCorrelated
	}

	check := &CorrelationCheck{
		Allowed:      true,
		NewSymbol:    newSymbol,
		Correlations: make(map[string]float64),
	}

	seen := make(map[string]bool)
	for _, pos := range openPositions {
		if pos == nil || seen[pos.Symbol] {
			continue
		}
		seen[pos.Symbol] = true

		correlation, err := a.CalculateCorrelation(newSymbol, pos.Symbol, opts)
		if err != nil {
			a.logger.Debug().Err(err).
				Str("newSymbol", newSymbol).
				Str("openSymbol", pos.Symbol).
				Msg("Skipping pair with insufficient history")
			continue
		}

		check.Correlations[pos.Symbol] = correlation
		if math.Abs(correlation) >= opts.Threshold {
			check.CorrelatedSymbols = append(check.CorrelatedSymbols, pos.Symbol)
		}
	}

	if len(check.CorrelatedSymbols) >= maxCorrelated {
		check.Allowed = false
		check.Reason = fmt.Sprintf("%s is highly correlated with %d open symbols (max %d): %s",
			newSymbol, len(check.CorrelatedSymbols), maxCorrelated, strings.Join(check.CorrelatedSymbols, ", "))
		a.logger.Warn().
			Str("symbol", newSymbol).
			Strs("correlatedWith", check.CorrelatedSymbols).
			Msg("🚫 Position rejected by correlation limit")
	}

	return check
}

// CheckDiversification reports unique asset count, mean pairwise |correlation|
// and per-pair warnings for the open portfolio. Zero arguments fall back to
// the standard 3 assets / 0.7 cutoff.
func (a *Analyzer) CheckDiversification(openPositions []*position.Position, minAssets int, maxCorrelation float64) *DiversificationReport {
	if minAssets <= 0 {
		minAssets = DefaultMinAssets
	}
	if maxCorrelation <= 0 {
		maxCorrelation = DefaultThreshold
	}

	var symbols []string
	seen := make(map[string]bool)
	for _, pos := range openPositions {
		if pos == nil || seen[pos.Symbol] {
			continue
		}
		seen[pos.Symbol] = true
		symbols = append(symbols, pos.Symbol)
	}

	report := &DiversificationReport{
		UniqueAssets: len(symbols),
		MinAssets:    minAssets,
	}

	if len(symbols) < minAssets {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("only %d unique assets held, want at least %d", len(symbols), minAssets))
	}

	var sum float64
	var pairs int
	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			correlation, err := a.CalculateCorrelation(symbols[i], symbols[j], Options{Threshold: maxCorrelation})
			if err != nil {
				a.logger.Debug().Err(err).
					Str("symbol1", symbols[i]).
					Str("symbol2", symbols[j]).
					Msg("Skipping pair with insufficient history")
				continue
			}
			sum += math.Abs(correlation)
			pairs++
			if math.Abs(correlation) > maxCorrelation {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("%s and %s are highly correlated (%.2f)", symbols[i], symbols[j], correlation))
			}
		}
	}

	if pairs > 0 {
		report.MeanCorrelation = sum / float64(pairs)
	}
	report.Diversified = len(symbols) >= minAssets && report.MeanCorrelation <= maxCorrelation

	return report
}

// CacheSize reports how many pair results are currently cached.
func (a *Analyzer) CacheSize() int {
	return a.cache.size()
}

// ClearCache drops all cached correlations.
func (a *Analyzer) ClearCache() {
	a.cache.clear()
}

// pearson computes the Pearson correlation coefficient of two equal-length
// series. Zero variance on either side yields 0 rather than dividing by zero.
func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	if n == 0 {
		return 0
	}

	var meanX, meanY float64
	for i := range xs {
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= n
	meanY /= n

	var covXY, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		covXY += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	denominator := math.Sqrt(varX * varY)
	if denominator == 0 {
		return 0
	}
	return covXY / denominator
}
