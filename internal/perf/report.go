package perf

import (
	"context"
	"fmt"
	"strings"

	"github.com/stecom/seopulse/internal/store"
)

// NoDataReport is returned by Report when url has no samples.
const NoDataReport = "No performance data available"

// Report renders the averaged history of url as a text block.
func (m *Monitor) Report(ctx context.Context, url string) (string, error) {
	avg, err := m.Average(ctx, url)
	if err != nil {
		return "", err
	}
	if avg == nil {
		return NoDataReport, nil
	}
	return RenderReport(url, avg, m.thresholds), nil
}

// RenderReport formats an averaged sample.
func RenderReport(url string, avg *store.PerformanceSample, th Thresholds) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Performance Report for %s\n\n", url)
	fmt.Fprintf(&b, "Overall Score: %d/100 (%s)\n\n", avg.Score, Band(avg.Score))

	b.WriteString("Core Web Vitals:\n")
	fmt.Fprintf(&b, "- LCP: %.0fms %s\n", avg.LCP, mark(avg.LCP <= th.LCP))
	fmt.Fprintf(&b, "- CLS: %.3f %s\n", avg.CLS, mark(avg.CLS <= th.CLS))
	fmt.Fprintf(&b, "- FID: %.0fms %s\n\n", avg.FID, mark(avg.FID <= th.FID))

	b.WriteString("Technical Metrics:\n")
	fmt.Fprintf(&b, "- TTFB: %.0fms %s\n", avg.TTFB, mark(avg.TTFB <= th.TTFB))
	fmt.Fprintf(&b, "- Bundle Size: %.1fKB %s\n", avg.BundleSize/1024, mark(avg.BundleSize <= th.BundleSize))
	fmt.Fprintf(&b, "- Image Optimization: %s\n\n", mark(avg.ImageOptimized))

	b.WriteString("Recommendations:\n")
	b.WriteString(strings.Join(Recommendations(avg, th), "\n"))

	return b.String()
}

// Recommendations lists one remediation line per failing metric.
func Recommendations(p *store.PerformanceSample, th Thresholds) []string {
	var recs []string

	if p.LCP > th.LCP {
		recs = append(recs, "- Optimize Largest Contentful Paint by improving image loading and server response times")
	}
	if p.CLS > th.CLS {
		recs = append(recs, "- Reduce Cumulative Layout Shift by setting proper image dimensions and avoiding dynamic content insertion")
	}
	if p.FID > th.FID {
		recs = append(recs, "- Improve First Input Delay by reducing JavaScript execution time and optimizing event handlers")
	}
	if p.TTFB > th.TTFB {
		recs = append(recs, "- Optimize Time to First Byte by improving server performance and using CDN")
	}
	if p.BundleSize > th.BundleSize {
		recs = append(recs, "- Reduce bundle size through code splitting, tree shaking, and removing unused dependencies")
	}
	if !p.ImageOptimized {
		recs = append(recs, "- Implement image optimization with WebP format, lazy loading, and responsive images")
	}

	if len(recs) == 0 {
		return []string{"- Performance is optimal!"}
	}
	return recs
}

func mark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}
