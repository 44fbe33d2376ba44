package backtest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"crypto-risk-engine/internal/engine"
)

// EngineFactory builds a fresh engine for one replay. Every concurrent
// replay gets its own engine, so no candle store, account or cache is
// shared across symbols.
type EngineFactory func() *engine.Engine

// Runner replays multiple symbols concurrently.
type Runner struct {
	factory EngineFactory
	logger  zerolog.Logger
}

// NewRunner creates a multi-symbol replay runner.
func NewRunner(factory EngineFactory, logger zerolog.Logger) *Runner {
	return &Runner{
		factory: factory,
		logger:  logger.With().Str("component", "runner").Logger(),
	}
}

// RunAll executes one replay per config and returns the results keyed by
// symbol. The first failing replay cancels the rest.
func (r *Runner) RunAll(ctx context.Context, configs []Config) (map[string]*Result, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no replay configs given")
	}

	g, ctx := errgroup.WithContext(ctx)
	results := make([]*Result, len(configs))

	for i := range configs {
		i := i // per-iteration copy; required while go.mod is below go 1.22
		g.Go(func() error {
			replay := NewReplay(r.factory(), configs[i], r.logger)
			result, err := replay.Run(ctx)
			if err != nil {
				return fmt.Errorf("replay %s: %w", configs[i].Symbol, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*Result, len(results))
	for _, result := range results {
		out[result.Symbol] = result
	}

	r.logger.Info().Int("symbols", len(out)).Msg("all replays finished")
	return out, nil
}
