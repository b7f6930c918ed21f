package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stecom/seopulse/internal/config"
	"github.com/stecom/seopulse/internal/logging"
	"github.com/stecom/seopulse/internal/metrics"
	"github.com/stecom/seopulse/internal/perf"
	"github.com/stecom/seopulse/internal/rank"
	"github.com/stecom/seopulse/internal/seo"
	"github.com/stecom/seopulse/internal/store"
)

type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   store.Store
	metrics *metrics.Collector
	ctrl    *seo.Controller
}

// withApp loads configuration, opens the store, builds the controller,
// executes fn and handles cleanup.
func withApp(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	m := metrics.New()
	ctrl := seo.New(s, seo.Options{
		Sampler: newSampler(cfg),
		Ranker:  rank.NewRandomRanker(cfg.Sampler.Seed),
		BaseURL: cfg.Site.BaseURL,
		Metrics: m,
		Logger:  logger,
	})

	return fn(ctx, &app{cfg: cfg, logger: logger, store: s, metrics: m, ctrl: ctrl})
}

func newSampler(cfg *config.Config) perf.Sampler {
	if cfg.Sampler.Kind == "http" {
		return perf.NewHTTPProbe(cfg.Sampler.Timeout)
	}
	return perf.NewRandomSampler(cfg.Sampler.Seed)
}

// tokenFilePath keeps the dashboard token next to the sqlite database.
func tokenFilePath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Store.SQLitePath), ".seopulse-token")
}
