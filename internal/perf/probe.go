package perf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const (
	maxDocumentBytes = 10 << 20
	inputLatencyMs   = 50
)

// HTTPProbe measures a live page: time to first byte and full document load
// from the HTTP round trip, bundle size from the document plus its scripts
// and stylesheets, and layout/image hints from the parsed markup.
//
// Browser-only metrics are approximated: LCP is the document load time, FID
// is the parse time on top of a fixed input latency, and CLS grows with the
// share of images that have no explicit dimensions.
type HTTPProbe struct {
	Client    *http.Client
	MaxAssets int
	// Concurrency bounds parallel asset fetches.
	Concurrency int
}

// NewHTTPProbe returns a probe whose requests give up after timeout.
func NewHTTPProbe(timeout time.Duration) *HTTPProbe {
	return &HTTPProbe{
		Client:      &http.Client{Timeout: timeout},
		MaxAssets:   20,
		Concurrency: 4,
	}
}

type pageScan struct {
	assets      []string
	images      int
	unsized     int
	unoptimized int
}

func (p *HTTPProbe) Sample(ctx context.Context, pageURL string) (Metrics, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return Metrics{}, fmt.Errorf("invalid url: %w", err)
	}

	var ttfb time.Duration
	start := time.Now()
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() { ttfb = time.Since(start) },
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodGet, pageURL, nil)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "seopulse-probe/1.0")

	resp, err := p.Client.Do(req)
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to fetch page: %w", err)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	resp.Body.Close()
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to read page: %w", err)
	}
	if resp.StatusCode >= 400 {
		return Metrics{}, fmt.Errorf("page returned status %d", resp.StatusCode)
	}
	loaded := time.Since(start)

	parseStart := time.Now()
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Metrics{}, fmt.Errorf("failed to parse page: %w", err)
	}
	var scan pageScan
	scan.walk(doc)
	parsed := time.Since(parseStart)

	assetBytes, err := p.fetchAssets(ctx, base, scan.assets)
	if err != nil {
		return Metrics{}, err
	}

	m := Metrics{
		LCP:            ms(loaded),
		FID:            inputLatencyMs + ms(parsed),
		TTFB:           ms(ttfb),
		BundleSize:     float64(len(body)) + float64(assetBytes),
		ImageOptimized: scan.unoptimized == 0,
	}
	if scan.images > 0 {
		m.CLS = float64(scan.unsized) / float64(scan.images) * 0.25
	}
	return m, nil
}

// fetchAssets downloads up to MaxAssets scripts and stylesheets and returns
// their combined size. Individual asset failures are not fatal.
func (p *HTTPProbe) fetchAssets(ctx context.Context, base *url.URL, refs []string) (int64, error) {
	if p.MaxAssets > 0 && len(refs) > p.MaxAssets {
		refs = refs[:p.MaxAssets]
	}
	sizes := make([]int64, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	if p.Concurrency > 0 {
		g.SetLimit(p.Concurrency)
	}
	for i, ref := range refs {
		u, err := base.Parse(ref)
		if err != nil {
			continue
		}
		g.Go(func() error {
			sizes[i] = p.assetSize(gctx, u.String())
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("asset fetch cancelled: %w", err)
	}

	var total int64
	for _, n := range sizes {
		total += n
	}
	return total, nil
}

func (p *HTTPProbe) assetSize(ctx context.Context, assetURL string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return 0
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0
	}
	n, _ := io.Copy(io.Discard, resp.Body)
	return n
}

func (s *pageScan) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script":
			if src := attr(n, "src"); src != "" {
				s.assets = append(s.assets, src)
			}
		case "link":
			if strings.EqualFold(attr(n, "rel"), "stylesheet") {
				if href := attr(n, "href"); href != "" {
					s.assets = append(s.assets, href)
				}
			}
		case "img":
			s.images++
			if attr(n, "width") == "" || attr(n, "height") == "" {
				s.unsized++
			}
			if !imageOptimized(n) {
				s.unoptimized++
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.walk(c)
	}
}

func imageOptimized(img *html.Node) bool {
	if strings.EqualFold(attr(img, "loading"), "lazy") {
		return true
	}
	for _, v := range []string{attr(img, "src"), attr(img, "srcset")} {
		v = strings.ToLower(v)
		if strings.Contains(v, ".webp") || strings.Contains(v, ".avif") {
			return true
		}
	}
	// <picture><source type="image/webp"> ... <img></picture>
	if parent := img.Parent; parent != nil && parent.Type == html.ElementNode && parent.Data == "picture" {
		for c := parent.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "source" {
				t := attr(c, "type")
				if t == "image/webp" || t == "image/avif" {
					return true
				}
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
