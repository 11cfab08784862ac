// Package app assembles the irtune pipeline from configuration.
package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/copyleftdev/irtune/internal/config"
	"github.com/copyleftdev/irtune/internal/generation"
	"github.com/copyleftdev/irtune/internal/harness"
	"github.com/copyleftdev/irtune/internal/logging"
	"github.com/copyleftdev/irtune/internal/metrics"
	"github.com/copyleftdev/irtune/internal/optimization"
	"github.com/copyleftdev/irtune/internal/problems"
	"github.com/copyleftdev/irtune/internal/store"
	"github.com/copyleftdev/irtune/internal/verify"
)

// App holds the wired components. Optimizer and Extractor are nil when no
// generation API key is configured.
type App struct {
	Config    *config.Config
	Logger    *logging.Logger
	Metrics   *metrics.Metrics
	Toolchain *harness.Toolchain
	Problems  *problems.Registry
	Store     store.Store
	Generator generation.Generator
	Optimizer *optimization.Optimizer
	Extractor *optimization.Extractor
}

// New wires every component described by cfg.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}
	zl := logging.NewZapLogger(logger)

	tc, err := harness.NewToolchain(harness.ToolchainOptions{
		Clang:         cfg.Toolchain.Clang,
		Flags:         cfg.Toolchain.Flags,
		Timeout:       cfg.Toolchain.CompileTimeout,
		WorkDir:       cfg.Toolchain.WorkDir,
		MaxConcurrent: cfg.Toolchain.MaxConcurrent,
		Observe:       a.Metrics.ObserveCompile,
	}, zl)
	if err != nil {
		return nil, err
	}
	a.Toolchain = tc
	if !tc.Available() {
		logger.Warn("clang not found; compilation will fail", map[string]interface{}{
			"clang": cfg.Toolchain.Clang,
		})
	}

	if a.Problems, err = problems.NewRegistry(tc); err != nil {
		_ = a.Close()
		return nil, err
	}

	if a.Store, err = store.Open(cfg.Database.Type, cfg.Database.DSN); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	if cfg.Generation.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set; analysis is disabled")
		return a, nil
	}
	gen, err := generation.NewOpenAI(generation.Options{
		APIKey:      cfg.Generation.APIKey,
		Model:       cfg.Generation.Model,
		BaseURL:     cfg.Generation.BaseURL,
		Temperature: cfg.Generation.Temperature,
		Timeout:     cfg.Generation.Timeout,
		RateLimit:   cfg.Generation.RateLimit,
		RateBurst:   cfg.Generation.RateBurst,
	}, zl)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Generator = gen
	a.Optimizer = optimization.NewOptimizer(gen, func(stage optimization.Stage, took time.Duration, err error) {
		a.Metrics.ObserveStage(stage.String(), took, err)
	})
	a.Extractor = optimization.NewExtractor(gen)
	return a, nil
}

// Cycle returns a verification cycle recording into the App's store.
func (a *App) Cycle() *verify.Cycle {
	return &verify.Cycle{
		Runner:   verify.Runner{Repetitions: a.Config.Benchmark.Repetitions},
		Recorder: a.Store,
		Metrics:  a.Metrics,
		Logger:   a.Logger.WithField("component", "verify"),
	}
}

// Close unloads native code and releases the store and scratch directory.
func (a *App) Close() error {
	var errs []error
	if a.Problems != nil {
		errs = append(errs, a.Problems.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Toolchain != nil {
		errs = append(errs, a.Toolchain.Close())
	}
	return errors.Join(errs...)
}
