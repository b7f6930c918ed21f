package server_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var heroTest = map[string]any{
	"id":           "hero",
	"name":         "Hero headline",
	"trafficSplit": 100,
	"variants": []map[string]any{
		{"id": "control", "name": "Control"},
		{"id": "bold", "name": "Bold", "changes": []map[string]any{
			{"type": "heading", "selector": "h1", "value": "Ship twice as fast", "originalValue": "Ship faster"},
		}},
	},
}

func TestCreateAndGetTest(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/seo/abtests", heroTest)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := data(t, w)["test"].(map[string]any)
	assert.Equal(t, true, created["active"])

	w = do(t, srv, http.MethodPost, "/api/seo/abtests", heroTest)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, srv, http.MethodGet, "/api/seo/abtests/hero", nil)
	require.Equal(t, http.StatusOK, w.Code)
	d := data(t, w)
	assert.Contains(t, d["report"], "A/B Test Report: Hero headline")
	assert.Nil(t, d["winner"])

	w = do(t, srv, http.MethodGet, "/api/seo/abtests/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Test not found", decode(t, w)["error"])
}

func TestCreateTest_Invalid(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/seo/abtests", map[string]any{"name": "no variants"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "at least one variant")

	w = do(t, srv, http.MethodPost, "/api/seo/abtests", "{oops")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssignAndTrack(t *testing.T) {
	srv, ctrl := setupTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/seo/abtests", heroTest).Code)

	w := do(t, srv, http.MethodGet, "/api/seo/abtests/hero/assign?user=visitor-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	variant := data(t, w)["variant"].(map[string]any)
	variantID := variant["id"].(string)

	again := do(t, srv, http.MethodGet, "/api/seo/abtests/hero/assign?user=visitor-1", nil)
	assert.Equal(t, variantID, data(t, again)["variant"].(map[string]any)["id"])

	for _, event := range []string{"impression", "click", "conversion"} {
		w = do(t, srv, http.MethodPost, "/api/seo/abtests/hero/events", map[string]string{"variant": variantID, "event": event})
		require.Equal(t, http.StatusNoContent, w.Code)
	}

	results, err := ctrl.Tests.Results(context.Background(), "hero")
	require.NoError(t, err)
	for _, v := range results {
		if v.ID == variantID {
			assert.Equal(t, 1, v.Impressions)
			assert.Equal(t, 1, v.Clicks)
			assert.Equal(t, 1, v.Conversions)
		}
	}

	w = do(t, srv, http.MethodPost, "/api/seo/abtests/hero/events", map[string]string{"variant": variantID, "event": "hover"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodOptions, "/api/seo/abtests/hero/events", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestAssign_Errors(t *testing.T) {
	srv, _ := setupTestServer(t)

	w := do(t, srv, http.MethodGet, "/api/seo/abtests/missing/assign?user=u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/api/seo/abtests/missing/assign", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndStopTests(t *testing.T) {
	srv, _ := setupTestServer(t)
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/seo/abtests", heroTest).Code)

	second := map[string]any{"id": "cta", "name": "CTA", "variants": []map[string]any{{"id": "a", "name": "A"}, {"id": "b", "name": "B"}}}
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/seo/abtests", second).Code)

	w := do(t, srv, http.MethodPost, "/api/seo/abtests/cta/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodGet, "/api/seo/abtests", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(t, w)["tests"], 2)

	w = do(t, srv, http.MethodGet, "/api/seo/abtests?active=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	active := data(t, w)["tests"].([]any)
	require.Len(t, active, 1)
	assert.Equal(t, "hero", active[0].(map[string]any)["id"])

	w = do(t, srv, http.MethodGet, "/api/seo/abtests/cta/assign?user=u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodPost, "/api/seo/abtests/missing/stop", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
