package stats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stecom/seopulse/internal/stats"
	"github.com/stecom/seopulse/internal/store"
)

func TestWilsonInterval_50PercentConversion(t *testing.T) {
	lower, upper := stats.WilsonInterval(50, 100, 0.95)

	assert.InDelta(t, 0.40, lower, 0.02)
	assert.InDelta(t, 0.60, upper, 0.02)
}

func TestWilsonInterval_LowConversion(t *testing.T) {
	lower, upper := stats.WilsonInterval(5, 100, 0.95)

	assert.InDelta(t, 0.02, lower, 0.01)
	assert.InDelta(t, 0.11, upper, 0.02)
}

func TestWilsonInterval_ZeroTrials(t *testing.T) {
	lower, upper := stats.WilsonInterval(0, 0, 0.95)

	assert.Zero(t, lower)
	assert.Zero(t, upper)
}

func TestWilsonInterval_Bounds(t *testing.T) {
	lower, upper := stats.WilsonInterval(0, 100, 0.95)
	assert.InDelta(t, 0, lower, 1e-9)
	assert.Greater(t, upper, 0.0)

	lower, upper = stats.WilsonInterval(100, 100, 0.95)
	assert.Less(t, lower, 1.0)
	assert.InDelta(t, 1.0, upper, 1e-9)
}

func TestZScore_Approximation(t *testing.T) {
	assert.Equal(t, 1.96, stats.ZScore(0.95))
	// 70% two-sided is about 1.036
	assert.InDelta(t, 1.036, stats.ZScore(0.70), 0.01)
}

func TestSignificanceTest_ClearWinner(t *testing.T) {
	assert.Greater(t, stats.SignificanceTest(100, 1000, 50, 1000), 0.95)
}

func TestSignificanceTest_EqualRates(t *testing.T) {
	assert.InDelta(t, 0.5, stats.SignificanceTest(50, 1000, 50, 1000), 0.01)
}

func TestSignificanceTest_SmallSample(t *testing.T) {
	assert.Less(t, stats.SignificanceTest(5, 20, 2, 20), 0.95)
}

func TestSignificanceTest_NoTrials(t *testing.T) {
	assert.Equal(t, 0.5, stats.SignificanceTest(0, 0, 0, 0))
	assert.Equal(t, 0.5, stats.SignificanceTest(10, 100, 0, 0))
}

func TestAnalyze_LeaderAndRunnerUp(t *testing.T) {
	res := stats.Analyze([]store.Variant{
		{ID: "a", Name: "Control", Clicks: 20, Conversions: 4},
		{ID: "b", Name: "Challenger", Clicks: 10, Conversions: 5},
		{ID: "c", Name: "Third", Clicks: 10, Conversions: 1},
	})

	require.Len(t, res.Variants, 3)
	assert.Equal(t, 1, res.LeadingVariant)
	assert.Equal(t, 0, res.RunnerUp)
	assert.InDelta(t, 0.5, res.Variants[1].Rate, 1e-9)
	assert.InDelta(t, 0.2, res.Variants[0].Rate, 1e-9)
	assert.Greater(t, res.ConfidenceLevel, 0.5)

	for _, v := range res.Variants {
		assert.LessOrEqual(t, v.CILower, v.Rate)
		assert.GreaterOrEqual(t, v.CIUpper, v.Rate)
	}
}

func TestAnalyze_NoConversions(t *testing.T) {
	res := stats.Analyze([]store.Variant{
		{ID: "a", Clicks: 10},
		{ID: "b"},
	})

	assert.Equal(t, -1, res.LeadingVariant)
	assert.False(t, res.Confident)
	assert.Zero(t, res.Variants[1].Rate)
}

func TestAnalyze_SingleVariant(t *testing.T) {
	res := stats.Analyze([]store.Variant{{ID: "a", Clicks: 10, Conversions: 3}})

	assert.Equal(t, 0, res.LeadingVariant)
	assert.Equal(t, -1, res.RunnerUp)
	assert.Zero(t, res.ConfidenceLevel)
}
