package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	c := New()

	c.ObserveAudit(87, nil)
	c.ObserveAudit(0, errors.New("boom"))
	c.ObserveRankTrack(3)
	c.ObserveABEvent("click")
	c.ObserveABEvent("click")
	c.ObserveTestCreated()
	c.ObserveHTTP("/health", http.MethodGet, 200, 3*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.audits.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.audits.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rankTracks))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.keywordsRank))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.abEvents.WithLabelValues("click")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.testsCreated))
	assert.Equal(t, 1, testutil.CollectAndCount(c.scores))
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.ObserveABEvent("impression")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `seopulse_ab_events_total{event="impression"} 1`)
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveAudit(50, nil)
		c.ObserveRankTrack(1)
		c.ObserveABEvent("click")
		c.ObserveHTTP("/", http.MethodGet, 200, time.Millisecond)
	})
	assert.Nil(t, c.Registry())
}
