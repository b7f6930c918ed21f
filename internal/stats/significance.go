package stats

import (
	"math"

	"github.com/stecom/seopulse/internal/store"
)

// Result is the statistical read of an A/B test's conversion rates.
type Result struct {
	Variants        []VariantResult
	Confident       bool    // >= 95% confidence
	ConfidenceLevel float64 // 0-1, leader vs runner-up
	LeadingVariant  int     // -1 when no variant has converted
	RunnerUp        int     // -1 with fewer than two variants
}

// VariantResult holds conversion statistics for one variant. Trials are
// clicks and successes are conversions.
type VariantResult struct {
	Index       int
	ID          string
	Name        string
	Clicks      int
	Conversions int
	Rate        float64
	CILower     float64
	CIUpper     float64
}

// SignificanceTest performs a two-proportion z-test.
// Returns confidence level (0-1) that variant A beats variant B.
func SignificanceTest(aConv, aTrials, bConv, bTrials int) float64 {
	if aTrials == 0 || bTrials == 0 {
		return 0.5
	}

	pA := float64(aConv) / float64(aTrials)
	pB := float64(bConv) / float64(bTrials)

	// Pooled proportion under the null hypothesis pA == pB
	pooled := float64(aConv+bConv) / float64(aTrials+bTrials)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(aTrials) + 1/float64(bTrials)))

	if se == 0 {
		switch {
		case pA > pB:
			return 1.0
		case pA < pB:
			return 0.0
		}
		return 0.5
	}

	return normalCDF((pA - pB) / se)
}

// normalCDF approximates the standard normal CDF
// (Abramowitz and Stegun 7.1.26).
func normalCDF(x float64) float64 {
	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x) / math.Sqrt2

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}

// Analyze computes per-variant conversion rates with 95% Wilson intervals
// and the confidence that the leading variant beats the runner-up.
func Analyze(variants []store.Variant) *Result {
	res := &Result{
		Variants:       make([]VariantResult, len(variants)),
		LeadingVariant: -1,
		RunnerUp:       -1,
	}

	for i, v := range variants {
		rate := 0.0
		if v.Clicks > 0 {
			rate = float64(v.Conversions) / float64(v.Clicks)
		}
		lower, upper := WilsonInterval(v.Conversions, v.Clicks, 0.95)
		res.Variants[i] = VariantResult{
			Index:       i,
			ID:          v.ID,
			Name:        v.Name,
			Clicks:      v.Clicks,
			Conversions: v.Conversions,
			Rate:        rate,
			CILower:     lower,
			CIUpper:     upper,
		}
	}

	best := 0.0
	for i, v := range res.Variants {
		if v.Rate > best {
			best = v.Rate
			res.LeadingVariant = i
		}
	}
	if res.LeadingVariant < 0 || len(variants) < 2 {
		return res
	}

	for i, v := range res.Variants {
		if i == res.LeadingVariant {
			continue
		}
		if res.RunnerUp < 0 || v.Rate > res.Variants[res.RunnerUp].Rate {
			res.RunnerUp = i
		}
	}

	lead, runner := res.Variants[res.LeadingVariant], res.Variants[res.RunnerUp]
	res.ConfidenceLevel = SignificanceTest(lead.Conversions, lead.Clicks, runner.Conversions, runner.Clicks)
	res.Confident = res.ConfidenceLevel >= 0.95
	return res
}
