// Package perf measures page performance, scores it against Core Web Vitals
// thresholds and renders text reports from the stored history.
package perf

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/stecom/seopulse/internal/store"
)

const defaultHistoryDays = 30

type Monitor struct {
	samples    store.SampleLog
	sampler    Sampler
	thresholds Thresholds
	logger     *zap.Logger
	now        func() time.Time
}

// NewMonitor returns a Monitor that scores samples with DefaultThresholds.
func NewMonitor(samples store.SampleLog, sampler Sampler, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		samples:    samples,
		sampler:    sampler,
		thresholds: DefaultThresholds(),
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Measure samples url, scores the result and appends it to the history.
func (m *Monitor) Measure(ctx context.Context, url string) (*store.PerformanceSample, error) {
	metrics, err := m.sampler.Sample(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", url, err)
	}

	sample := store.PerformanceSample{
		URL:            url,
		Timestamp:      m.now(),
		LCP:            metrics.LCP,
		CLS:            metrics.CLS,
		FID:            metrics.FID,
		TTFB:           metrics.TTFB,
		BundleSize:     metrics.BundleSize,
		ImageOptimized: metrics.ImageOptimized,
		Score:          Score(metrics, m.thresholds),
	}
	if err := m.samples.AppendSample(ctx, sample); err != nil {
		return nil, err
	}

	m.logger.Debug("performance measured",
		zap.String("url", url),
		zap.Int("score", sample.Score),
		zap.Float64("lcp_ms", sample.LCP),
	)
	return &sample, nil
}

// History returns samples for url from the last days days (30 when days <= 0).
func (m *Monitor) History(ctx context.Context, url string, days int) ([]store.PerformanceSample, error) {
	if days <= 0 {
		days = defaultHistoryDays
	}
	cutoff := m.now().AddDate(0, 0, -days)
	return m.samples.Samples(ctx, url, cutoff)
}

// Average folds every sample for url into per-field means. It returns nil
// when url has never been measured.
func (m *Monitor) Average(ctx context.Context, url string) (*store.PerformanceSample, error) {
	samples, err := m.samples.Samples(ctx, url, time.Time{})
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}

	avg := store.PerformanceSample{
		URL:            url,
		Timestamp:      m.now(),
		ImageOptimized: true,
	}
	score := 0
	for _, s := range samples {
		avg.LCP += s.LCP
		avg.CLS += s.CLS
		avg.FID += s.FID
		avg.TTFB += s.TTFB
		avg.BundleSize += s.BundleSize
		avg.ImageOptimized = avg.ImageOptimized && s.ImageOptimized
		score += s.Score
	}

	n := float64(len(samples))
	avg.LCP /= n
	avg.CLS /= n
	avg.FID /= n
	avg.TTFB /= n
	avg.BundleSize /= n
	avg.Score = int(math.Round(float64(score) / n))
	return &avg, nil
}
