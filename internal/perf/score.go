package perf

import "math"

// Thresholds are the pass/fail limits for each metric.
type Thresholds struct {
	LCP        float64 // ms
	CLS        float64
	FID        float64 // ms
	TTFB       float64 // ms
	BundleSize float64 // bytes
}

// DefaultThresholds are the Core Web Vitals "good" limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LCP:        2500,
		CLS:        0.1,
		FID:        100,
		TTFB:       600,
		BundleSize: 500000,
	}
}

// Metrics are the raw values a Sampler produces for one page load.
type Metrics struct {
	LCP            float64
	CLS            float64
	FID            float64
	TTFB           float64
	BundleSize     float64
	ImageOptimized bool
}

// Score starts at 100 and subtracts a capped penalty for each metric over its
// threshold. The result is rounded and clamped to [0, 100].
func Score(m Metrics, th Thresholds) int {
	score := 100.0

	if m.LCP > th.LCP {
		score -= math.Min(30, (m.LCP-th.LCP)/100)
	}
	if m.CLS > th.CLS {
		score -= math.Min(25, m.CLS*250)
	}
	if m.FID > th.FID {
		score -= math.Min(20, (m.FID-th.FID)/10)
	}
	if m.TTFB > th.TTFB {
		score -= math.Min(15, (m.TTFB-th.TTFB)/50)
	}
	if m.BundleSize > th.BundleSize {
		score -= math.Min(10, (m.BundleSize-th.BundleSize)/100000)
	}

	switch s := int(math.Round(score)); {
	case s < 0:
		return 0
	case s > 100:
		return 100
	default:
		return s
	}
}

// Band is the qualitative label for a score.
func Band(score int) string {
	switch {
	case score >= 90:
		return "Excellent"
	case score >= 70:
		return "Good"
	case score >= 50:
		return "Needs Improvement"
	default:
		return "Poor"
	}
}
