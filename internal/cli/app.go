package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ppiankov/plancheck/internal/cache"
	"github.com/ppiankov/plancheck/internal/llm"
	"github.com/ppiankov/plancheck/internal/logger"
	"github.com/ppiankov/plancheck/internal/metrics"
	"github.com/ppiankov/plancheck/internal/pipeline"
	"github.com/ppiankov/plancheck/internal/store"
	"github.com/ppiankov/plancheck/internal/worker"
)

// app holds the components shared by the commands
type app struct {
	store    store.RuleStore
	metrics  *metrics.Metrics
	pipeline *pipeline.Pipeline
}

// newApp builds the store and pipeline from cfg. A language model is only set up
// when withLLM is true; a missing provider then fails the command.
func newApp(ctx context.Context, withLLM bool) (*app, error) {
	c := cache.New(cfg.Cache)

	rules, err := store.Open(ctx, cfg.Store, c, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("open rule store: %w", err)
	}

	var provider llm.Provider
	if withLLM {
		provider, err = pipeline.NewProvider(ctx, cfg)
		if err != nil {
			_ = rules.Close()
			return nil, fmt.Errorf("create LLM provider: %w", err)
		}
		if !provider.IsAvailable(ctx) {
			logger.Warn("LLM provider is not available", "provider", provider.Name())
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "Using LLM provider: %s\n", provider.Name())
		}
	}

	m := metrics.New()
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.Burst)

	return &app{
		store:   rules,
		metrics: m,
		pipeline: pipeline.New(cfg, pipeline.Deps{
			Store:    rules,
			Provider: provider,
			Cache:    c,
			Metrics:  m,
			Limiter:  limiter,
		}),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.Warn("close rule store", "error", err)
	}
}
