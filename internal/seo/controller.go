// Package seo ties performance monitoring, A/B testing and rank tracking
// together behind one facade used by the HTTP server and the CLI.
package seo

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/stecom/seopulse/internal/abtest"
	"github.com/stecom/seopulse/internal/metrics"
	"github.com/stecom/seopulse/internal/perf"
	"github.com/stecom/seopulse/internal/rank"
	"github.com/stecom/seopulse/internal/store"
)

const reportHeader = "SEO Performance Comprehensive Report\n====================================\n\n"

type Controller struct {
	Monitor *perf.Monitor
	Tests   *abtest.Manager
	Ranks   *rank.Tracker

	metrics *metrics.Collector
	logger  *zap.Logger
}

type Options struct {
	Sampler perf.Sampler
	Ranker  rank.Ranker
	BaseURL string
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// New builds a controller over st. Nil samplers and rankers fall back to
// the random simulators.
func New(st store.Store, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sampler := opts.Sampler
	if sampler == nil {
		sampler = perf.NewRandomSampler(0)
	}
	ranker := opts.Ranker
	if ranker == nil {
		ranker = rank.NewRandomRanker(0)
	}
	return &Controller{
		Monitor: perf.NewMonitor(st, sampler, logger.Named("perf")),
		Tests:   abtest.NewManager(st, logger.Named("abtest")),
		Ranks:   rank.NewTracker(st, ranker, opts.BaseURL, logger.Named("rank")),
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// RunPerformanceAudit measures url once and returns the report over its
// full history.
func (c *Controller) RunPerformanceAudit(ctx context.Context, url string) (string, error) {
	sample, err := c.Monitor.Measure(ctx, url)
	if err != nil {
		c.metrics.ObserveAudit(0, err)
		return "", fmt.Errorf("measure %s: %w", url, err)
	}
	c.metrics.ObserveAudit(sample.Score, nil)
	return c.Monitor.Report(ctx, url)
}

func (c *Controller) CreateABTest(ctx context.Context, t *store.ABTest) error {
	if err := c.Tests.CreateTest(ctx, t); err != nil {
		return err
	}
	c.metrics.ObserveTestCreated()
	return nil
}

// ABTestVariant returns the variant userID sees in testID, or nil.
func (c *Controller) ABTestVariant(ctx context.Context, testID, userID string) (*store.Variant, error) {
	return c.Tests.AssignVariant(ctx, testID, userID)
}

func (c *Controller) TrackABEvent(ctx context.Context, testID, variantID string, event store.Counter) error {
	if err := c.Tests.Track(ctx, testID, variantID, event); err != nil {
		return err
	}
	c.metrics.ObserveABEvent(string(event))
	return nil
}

func (c *Controller) ABTestReport(ctx context.Context, testID string) (string, error) {
	return c.Tests.Report(ctx, testID)
}

func (c *Controller) StopABTest(ctx context.Context, testID string) error {
	return c.Tests.StopTest(ctx, testID)
}

// TrackRankings registers keywords and records a position for each.
// Keywords are trimmed and blanks dropped. Unlike Tracker.Track, an empty
// list tracks nothing.
func (c *Controller) TrackRankings(ctx context.Context, keywords []string) ([]store.RankTrackingData, error) {
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = rank.NormalizeKeyword(kw); kw != "" {
			normalized = append(normalized, kw)
		}
	}
	if len(normalized) == 0 {
		return []store.RankTrackingData{}, nil
	}
	for _, kw := range normalized {
		if err := c.Ranks.AddKeyword(ctx, kw); err != nil {
			return nil, err
		}
	}
	rows, err := c.Ranks.Track(ctx, normalized)
	if err != nil {
		return nil, err
	}
	c.metrics.ObserveRankTrack(len(rows))
	return rows, nil
}

// ComprehensiveReport combines the performance report for url, the ranking
// report for keywords and the number of running A/B tests.
func (c *Controller) ComprehensiveReport(ctx context.Context, url string, keywords []string) (string, error) {
	perfReport, err := c.Monitor.Report(ctx, url)
	if err != nil {
		return "", err
	}
	rankReport, err := c.Ranks.Report(ctx, keywords)
	if err != nil {
		return "", err
	}
	active, err := c.Tests.ActiveTests(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(reportHeader)
	b.WriteString(perfReport)
	b.WriteString("\n\n")
	b.WriteString(rankReport)
	fmt.Fprintf(&b, "\n\nActive A/B Tests: %d\n", len(active))
	return strings.TrimSpace(b.String()), nil
}
