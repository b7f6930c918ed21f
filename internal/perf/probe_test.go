package perf_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stecom/seopulse/internal/perf"
)

const page = `<!doctype html>
<html>
<head>
  <link rel="stylesheet" href="/style.css">
  <script src="/app.js"></script>
</head>
<body>
  <h1>Hello</h1>
  <img src="/hero.jpg" width="800" height="400" loading="lazy">
  <picture><source type="image/webp" srcset="/team.webp"><img src="/team.jpg"></picture>
</body>
</html>`

func newSite(t *testing.T, pageBody string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(pageBody))
	})
	mux.HandleFunc("/style.css", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 1000)))
	})
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("b", 4000)))
	})
	return httptest.NewServer(mux)
}

func newProbe() (*perf.HTTPProbe, *http.Transport) {
	tr := &http.Transport{}
	p := perf.NewHTTPProbe(5 * time.Second)
	p.Client.Transport = tr
	return p, tr
}

func TestHTTPProbe_MeasuresPage(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := newSite(t, page)
	defer srv.Close()
	probe, tr := newProbe()
	defer tr.CloseIdleConnections()

	m, err := probe.Sample(context.Background(), srv.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, float64(len(page)+1000+4000), m.BundleSize)
	assert.True(t, m.ImageOptimized)
	// one of two images lacks dimensions
	assert.InDelta(t, 0.125, m.CLS, 1e-9)
	assert.GreaterOrEqual(t, m.FID, 50.0)
	assert.GreaterOrEqual(t, m.LCP, m.TTFB)
}

func TestHTTPProbe_UnoptimizedImages(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := newSite(t, `<html><body><img src="/a.png" width="1" height="1"></body></html>`)
	defer srv.Close()
	probe, tr := newProbe()
	defer tr.CloseIdleConnections()

	m, err := probe.Sample(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, m.ImageOptimized)
	assert.Zero(t, m.CLS)
}

func TestHTTPProbe_ErrorStatus(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	probe, tr := newProbe()
	defer tr.CloseIdleConnections()

	_, err := probe.Sample(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "404")
}
