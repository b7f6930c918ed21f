package abtest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stecom/seopulse/internal/stats"
	"github.com/stecom/seopulse/internal/store"
)

const NotFoundReport = "Test not found"

// Winner returns the variant with the strictly highest conversions/clicks
// rate. Earlier variants win ties. It returns nil with fewer than two
// variants or when nothing has converted.
func Winner(variants []store.Variant) *store.Variant {
	if len(variants) < 2 {
		return nil
	}
	best := 0
	bestRate := conversionRate(variants[0])
	for i := 1; i < len(variants); i++ {
		if r := conversionRate(variants[i]); r > bestRate {
			best, bestRate = i, r
		}
	}
	if bestRate <= 0 {
		return nil
	}
	w := variants[best]
	return &w
}

func conversionRate(v store.Variant) float64 {
	if v.Clicks == 0 {
		return 0
	}
	return float64(v.Conversions) / float64(v.Clicks)
}

func ctr(impressions, clicks int) float64 {
	if impressions == 0 {
		return 0
	}
	return float64(clicks) / float64(impressions)
}

// Report renders totals, per-variant statistics and the winner of a test.
func (m *Manager) Report(ctx context.Context, testID string) (string, error) {
	t, err := m.tests.GetTest(ctx, testID)
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundReport, nil
	}
	if err != nil {
		return "", err
	}
	return RenderReport(t), nil
}

// RenderReport formats totals, per-variant statistics and the winner of t.
func RenderReport(t *store.ABTest) string {
	var impressions, clicks, conversions int
	for _, v := range t.Variants {
		impressions += v.Impressions
		clicks += v.Clicks
		conversions += v.Conversions
	}

	end := "Ongoing"
	if t.EndDate != nil {
		end = t.EndDate.Format("2006-01-02")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A/B Test Report: %s\n", t.Name)
	fmt.Fprintf(&b, "Test ID: %s\n", t.ID)
	fmt.Fprintf(&b, "Duration: %s - %s\n\n", t.StartDate.Format("2006-01-02"), end)

	b.WriteString("Overall Metrics:\n")
	fmt.Fprintf(&b, "- Total Impressions: %d\n", impressions)
	fmt.Fprintf(&b, "- Total Clicks: %d\n", clicks)
	fmt.Fprintf(&b, "- Total Conversions: %d\n", conversions)
	fmt.Fprintf(&b, "- Overall CTR: %.2f%%\n", ctr(impressions, clicks)*100)
	fmt.Fprintf(&b, "- Overall Conversion Rate: %.2f%%\n\n", conversionRate(store.Variant{Clicks: clicks, Conversions: conversions})*100)

	b.WriteString("Variant Performance:\n")
	analysis := stats.Analyze(t.Variants)
	for i, v := range t.Variants {
		res := analysis.Variants[i]
		fmt.Fprintf(&b, "\n%d. %s (%s)\n", i+1, v.Name, v.ID)
		fmt.Fprintf(&b, "   - Impressions: %d\n", v.Impressions)
		fmt.Fprintf(&b, "   - Clicks: %d\n", v.Clicks)
		fmt.Fprintf(&b, "   - Conversions: %d\n", v.Conversions)
		fmt.Fprintf(&b, "   - CTR: %.2f%%\n", ctr(v.Impressions, v.Clicks)*100)
		fmt.Fprintf(&b, "   - Conversion Rate: %.2f%%\n", res.Rate*100)
		if v.Clicks > 0 {
			fmt.Fprintf(&b, "   - 95%% CI: [%.1f%%, %.1f%%]\n", res.CILower*100, res.CIUpper*100)
		}
	}

	if w := Winner(t.Variants); w != nil {
		fmt.Fprintf(&b, "\nWinner: %s (%s)\n", w.Name, w.ID)
		if analysis.RunnerUp >= 0 {
			verdict := "not yet significant"
			if analysis.Confident {
				verdict = "significant"
			}
			fmt.Fprintf(&b, "Confidence: %.1f%% (%s)\n", analysis.ConfidenceLevel*100, verdict)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
