package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the command line against a sqlite database in dir.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args,
		"--store", "sqlite",
		"--db", filepath.Join(dir, "seopulse.db"),
		"--seed", "7",
		"--log-level", "error",
	))
	err := cmd.Execute()
	return out.String(), err
}

func TestABTestLifecycle(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "abtest", "create", "Hero headline",
		"--id", "hero", "--variants", "Ship Faster, Build Better", "--selector", "h1")
	require.NoError(t, err)
	assert.Contains(t, out, "Created test 'Hero headline' (hero) with 2 variants")
	assert.Contains(t, out, "ship-faster: Ship Faster")

	out, err = run(t, dir, "abtest", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "hero")
	assert.Contains(t, out, "RUNNING")

	out, err = run(t, dir, "abtest", "assign", "hero", "user-1")
	require.NoError(t, err)
	first := out
	out, err = run(t, dir, "abtest", "assign", "hero", "user-1")
	require.NoError(t, err)
	assert.Equal(t, first, out, "assignment is sticky")

	for _, event := range []string{"impression", "impression", "click", "conversion"} {
		_, err = run(t, dir, "abtest", "track", "hero", "build-better", event)
		require.NoError(t, err)
	}

	out, err = run(t, dir, "abtest", "report", "hero")
	require.NoError(t, err)
	assert.Contains(t, out, "A/B Test Report: Hero headline")
	assert.Contains(t, out, "Build Better (build-better)")

	out, err = run(t, dir, "abtest", "stop", "hero")
	require.NoError(t, err)
	assert.Contains(t, out, "Stopped test 'hero'")

	out, err = run(t, dir, "abtest", "list", "--active")
	require.NoError(t, err)
	assert.Contains(t, out, "No tests yet.")
}

func TestABTestCreate_FromFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`id: pricing
name: Pricing CTA
trafficSplit: 50
variants:
  - id: control
    name: Control
  - id: bold
    name: Bold
    changes:
      - type: cta
        selector: a.buy
        value: Start now
`), 0o600))

	out, err := run(t, dir, "abtest", "create", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Created test 'Pricing CTA' (pricing) with 2 variants")

	out, err = run(t, dir, "snippet", "pricing", "--framework", "html", "--server", "https://ab.example.com")
	require.NoError(t, err)
	assert.Contains(t, out, `<script src="https://ab.example.com/ab.js" defer></script>`)
	assert.Contains(t, out, `data-ab-test="pricing"`)
}

func TestABTestCreate_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "abtest", "create", "Solo", "--variants", "Only")
	assert.ErrorContains(t, err, "at least 2 variants")

	_, err = run(t, dir, "abtest", "create", "Bad", "--variants", "A,B", "--selector", "h1", "--change", "video")
	assert.ErrorContains(t, err, "unknown change type")

	_, err = run(t, dir, "abtest", "track", "hero", "a", "purchase")
	assert.ErrorContains(t, err, "unknown event")

	_, err = run(t, dir, "abtest", "report", "missing")
	assert.ErrorContains(t, err, "not found")

	_, err = run(t, dir, "abtest", "stop", "missing")
	assert.ErrorContains(t, err, "not found")
}

func TestAuditAndReport(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "audit", "https://example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Performance Report")

	_, err = run(t, dir, "rankings", "track", "seo audit", "local seo")
	require.NoError(t, err)

	out, err = run(t, dir, "report", "https://example.com", "--keywords", "seo audit,local seo")
	require.NoError(t, err)
	assert.Contains(t, out, "SEO Performance Comprehensive Report")
	assert.Contains(t, out, "seo audit:")
	assert.Contains(t, out, "Active A/B Tests: 0")
}

func TestRankings(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "rankings", "track", "seo audit")
	require.NoError(t, err)
	assert.Contains(t, out, "KEYWORD")
	assert.Contains(t, out, "seo audit")

	// No arguments tracks every registered keyword.
	out, err = run(t, dir, "rankings", "track")
	require.NoError(t, err)
	assert.Contains(t, out, "seo audit")

	out, err = run(t, dir, "rankings", "history", "seo audit")
	require.NoError(t, err)
	assert.Contains(t, out, "seo audit")

	_, err = run(t, dir, "rankings", "movers", "--days", "7")
	require.NoError(t, err)

	_, err = run(t, dir, "rankings", "top", "--limit", "5")
	require.NoError(t, err)
}

func TestRankingsTrack_NothingRegistered(t *testing.T) {
	out, err := run(t, t.TempDir(), "rankings", "track")
	require.NoError(t, err)
	assert.Contains(t, out, "No keywords to track")
}

func TestToken(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "token")
	assert.ErrorContains(t, err, "no server running")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".seopulse-token"), []byte("abc123\n"), 0o600))
	out, err := run(t, dir, "token", "--port", "9090")
	require.NoError(t, err)
	assert.Contains(t, out, "http://localhost:9090/dashboard?token=abc123")
}
