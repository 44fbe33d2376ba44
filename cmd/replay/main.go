// Command replay runs the risk engine over historical candles and prints
// per-symbol performance plus a metrics summary. Candles come from a JSON
// file (with -symbol) or a directory of SYMBOL.json files.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"crypto-risk-engine/config"
	"crypto-risk-engine/internal/backtest"
	"crypto-risk-engine/internal/correlation"
	"crypto-risk-engine/internal/engine"
	"crypto-risk-engine/internal/events"
	"crypto-risk-engine/internal/exit"
	"crypto-risk-engine/internal/logging"
	"crypto-risk-engine/internal/market"
	"crypto-risk-engine/internal/risk"
	"crypto-risk-engine/internal/sizing"
	"crypto-risk-engine/internal/strategy"
)

func main() {
	godotenv.Load()
	godotenv.Load(".env")

	var (
		configPath  = flag.String("config", "config.json", "path to the JSON config file")
		initConfig  = flag.String("init", "", "write a sample config to the given path and exit")
		candlesPath = flag.String("candles", "", "candle JSON file or directory of SYMBOL.json files")
		symbolFlag  = flag.String("symbol", "", "symbol for a single candle file")
		sideFlag    = flag.String("side", "LONG", "position side, LONG or SHORT")
		balance     = flag.Float64("balance", 10000, "initial account balance")
		method      = flag.String("method", "percentage", "sizing method: fixed, percentage, kelly, volatility_adjusted")
		riskPct     = flag.Float64("risk", 2.0, "risk per trade, percent of balance")
		winRate     = flag.Float64("winrate", 0.55, "historical win rate for kelly sizing")
		avgWinLoss  = flag.Float64("avg-winloss", 1.5, "average win divided by average loss for kelly sizing")
		stopType    = flag.String("stop", "atr_based", "stop loss type: fixed, atr_based, structure_based, parabolic_sar")
		stopPct     = flag.Float64("stop-percent", 2.0, "stop distance for the fixed type, percent")
		tpType      = flag.String("tp", "fixed", "take profit type: fixed, multiple_levels, risk_reward, fibonacci")
		tpPct       = flag.Float64("tp-percent", 4.0, "take profit distance for the fixed type, percent")
	)
	flag.Parse()

	if *initConfig != "" {
		if err := config.GenerateSampleConfig(*initConfig); err != nil {
			fmt.Fprintf(os.Stderr, "write sample config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("sample config written to %s\n", *initConfig)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	if *candlesPath == "" {
		logger.Fatal().Msg("-candles is required")
	}

	side := market.Side(strings.ToUpper(*sideFlag))
	if !side.Valid() {
		logger.Fatal().Str("side", *sideFlag).Msg("side must be LONG or SHORT")
	}

	candleSets, err := loadCandles(*candlesPath, *symbolFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load candles")
	}

	symbols := make([]string, 0, len(candleSets))
	for symbol := range candleSets {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	runs := make([]backtest.Config, 0, len(symbols))
	for _, symbol := range symbols {
		runs = append(runs, backtest.Config{
			Symbol:         symbol,
			Side:           side,
			InitialBalance: *balance,
			Sizing: sizing.Params{
				Method:          sizing.Method(*method),
				RiskPerTrade:    *riskPct,
				StopLossPercent: *stopPct,
				WinRate:         *winRate,
				AvgWinLoss:      *avgWinLoss,
			},
			StopLoss: strategy.StopLossParams{
				Type:    strategy.StopLossType(*stopType),
				Percent: *stopPct,
			},
			TakeProfit: strategy.TakeProfitParams{
				Type:    strategy.TakeProfitType(*tpType),
				Percent: *tpPct,
			},
			TrailingSteps: cfg.Exit.TrailingSteps,
			Candles:       candleSets[symbol],
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory := func() *engine.Engine {
		return engine.New(
			cfg.Engine,
			risk.NewAccountManager(cfg.Account, logger),
			sizing.NewCalculator(cfg.Sizing, logger),
			exit.NewManager(cfg.Exit, logger),
			correlation.NewAnalyzer(cfg.Correlation, logger),
			events.NewEventBus(),
			logger,
		)
	}

	runner := backtest.NewRunner(factory, logger)
	results, err := runner.RunAll(ctx, runs)
	if err != nil {
		logger.Fatal().Err(err).Msg("replay failed")
	}

	for _, symbol := range symbols {
		result := results[symbol]
		logger.Info().
			Str("symbol", symbol).
			Int("trades", result.TotalTrades).
			Float64("winRate", result.WinRate).
			Float64("totalPnL", result.TotalPnL).
			Float64("profitFactor", result.ProfitFactor).
			Float64("maxDrawdown", result.MaxDrawdown).
			Float64("sharpe", result.SharpeRatio).
			Float64("finalBalance", result.FinalBalance).
			Int("rejections", result.Rejections).
			Msg("replay result")
	}

	logMetricsSummary(logger)
}

// loadCandles reads either a single candle file (requiring -symbol) or a
// directory where each SYMBOL.json holds that symbol's candles.
func loadCandles(path, symbol string) (map[string][]market.Candle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if symbol == "" {
			return nil, fmt.Errorf("-symbol is required with a single candle file")
		}
		candles, err := loadCandleFile(path)
		if err != nil {
			return nil, err
		}
		return map[string][]market.Candle{strings.ToUpper(symbol): candles}, nil
	}

	files, err := filepath.Glob(filepath.Join(path, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no candle files in %s", path)
	}

	out := make(map[string][]market.Candle, len(files))
	for _, file := range files {
		candles, err := loadCandleFile(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		name := strings.ToUpper(strings.TrimSuffix(filepath.Base(file), ".json"))
		out[name] = candles
	}
	return out, nil
}

func loadCandleFile(path string) ([]market.Candle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var candles []market.Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		return nil, fmt.Errorf("parsing candles: %w", err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles in file")
	}
	return candles, nil
}

// logMetricsSummary gathers the default prometheus registry and logs every
// nonzero series from this run.
func logMetricsSummary(logger zerolog.Logger) {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to gather metrics")
		return
	}

	fields := make(map[string]interface{})
	for _, family := range families {
		name := family.GetName()
		if !strings.HasPrefix(name, "risk_engine_") {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, label := range metric.GetLabel() {
				labels = append(labels, label.GetName()+"="+label.GetValue())
			}
			key := name
			if len(labels) > 0 {
				key += "{" + strings.Join(labels, ",") + "}"
			}

			var value float64
			switch {
			case metric.GetCounter() != nil:
				value = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				value = metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				value = float64(metric.GetHistogram().GetSampleCount())
				key += "_count"
			default:
				continue
			}
			if value == 0 {
				continue
			}
			fields[key] = value
		}
	}

	logger.Info().Fields(fields).Msg("metrics summary")
}
