package rank_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stecom/seopulse/internal/rank"
	"github.com/stecom/seopulse/internal/store"
)

// scripted returns positions in order, regardless of keyword.
type scripted struct {
	positions []int
	calls     int
}

func (s *scripted) Rank(ctx context.Context, keyword string, previous int) (rank.Observation, error) {
	if s.calls >= len(s.positions) {
		return rank.Observation{}, errors.New("script exhausted")
	}
	p := s.positions[s.calls]
	s.calls++
	return rank.Observation{Position: p, SearchVolume: 12500, CPC: 1.5}, nil
}

type fixture struct {
	tracker *rank.Tracker
	clock   time.Time
}

func newFixture(t *testing.T, r rank.Ranker) *fixture {
	t.Helper()
	f := &fixture{clock: time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)}
	f.tracker = rank.NewTracker(store.NewMemoryStore(), r, "https://shop.example/", nil).
		WithClock(func() time.Time { return f.clock })
	return f
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "web-design-agency", rank.Slug("Web  Design\tAgency"))
	assert.Equal(t, "seo", rank.Slug(" SEO "))
}

func TestRandomRanker_Bounds(t *testing.T) {
	ctx := context.Background()
	r := rank.NewRandomRanker(99)

	for i := 0; i < 2000; i++ {
		first, err := r.Rank(ctx, "kw", 0)
		require.NoError(t, err)
		require.GreaterOrEqual(t, first.Position, 1)
		require.LessOrEqual(t, first.Position, 50)
		require.GreaterOrEqual(t, first.SearchVolume, 100)
		require.Less(t, first.SearchVolume, 10100)
		require.GreaterOrEqual(t, first.CPC, 0.5)
		require.Less(t, first.CPC, 5.5)

		next, err := r.Rank(ctx, "kw", 3)
		require.NoError(t, err)
		require.GreaterOrEqual(t, next.Position, 1)
		require.LessOrEqual(t, next.Position, 8)

		far, err := r.Rank(ctx, "kw", 30)
		require.NoError(t, err)
		require.InDelta(t, 30, far.Position, 5)
	}
}

func TestTrack_FirstAndSubsequent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scripted{positions: []int{12, 8, 15}})

	rows, err := f.tracker.Track(ctx, []string{"Web Design"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	first := rows[0]
	assert.Equal(t, 12, first.Position)
	assert.Zero(t, first.PreviousPosition)
	assert.Zero(t, first.Change)
	assert.Equal(t, "https://shop.example/services/web-design", first.URL)
	assert.Equal(t, f.clock, first.Date)

	f.clock = f.clock.Add(time.Hour)
	rows, err = f.tracker.Track(ctx, []string{"Web Design"})
	require.NoError(t, err)
	assert.Equal(t, 12, rows[0].PreviousPosition)
	assert.Equal(t, 4, rows[0].Change)

	f.clock = f.clock.Add(time.Hour)
	rows, err = f.tracker.Track(ctx, []string{"Web Design"})
	require.NoError(t, err)
	assert.Equal(t, -7, rows[0].Change)

	latest, err := f.tracker.Latest(ctx, "Web Design")
	require.NoError(t, err)
	assert.Equal(t, 15, latest.Position)
}

func TestTrack_DefaultsToRegisteredKeywords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, rank.NewRandomRanker(1))

	require.NoError(t, f.tracker.AddKeyword(ctx, "seo"))
	require.NoError(t, f.tracker.AddKeyword(ctx, "ppc"))
	require.NoError(t, f.tracker.AddKeyword(ctx, "seo"))
	assert.Error(t, f.tracker.AddKeyword(ctx, "  "))

	rows, err := f.tracker.Track(ctx, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "seo", rows[0].Keyword)
	assert.Equal(t, "ppc", rows[1].Keyword)
}

func TestLatest_Unknown(t *testing.T) {
	f := newFixture(t, rank.NewRandomRanker(1))
	r, err := f.tracker.Latest(context.Background(), "never")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestHistory_Window(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, rank.NewRandomRanker(5))

	for i := 0; i < 5; i++ {
		_, err := f.tracker.Track(ctx, []string{"seo"})
		require.NoError(t, err)
		f.clock = f.clock.Add(24 * time.Hour)
	}

	h, err := f.tracker.History(ctx, "seo", 2)
	require.NoError(t, err)
	assert.Len(t, h, 1)

	h, err = f.tracker.History(ctx, "seo", 0)
	require.NoError(t, err)
	assert.Len(t, h, 5)
}

func TestTopPerformers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scripted{positions: []int{7, 22, 3, 10, 11, 3}})

	_, err := f.tracker.Track(ctx, []string{"a", "b", "c", "d", "e", "f"})
	require.NoError(t, err)

	top, err := f.tracker.TopPerformers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 4)
	assert.Equal(t, []string{"c", "f", "a", "d"}, keywords(top))

	top, err = f.tracker.TopPerformers(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "f"}, keywords(top))
}

func TestBiggestMovers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scripted{positions: []int{20, 20, 20, 25, 10, 21}})

	_, err := f.tracker.Track(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	f.clock = f.clock.Add(10 * 24 * time.Hour)
	_, err = f.tracker.Track(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)

	movers, err := f.tracker.BiggestMovers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, movers, 3)
	assert.Equal(t, []string{"b", "a", "c"}, keywords(movers))
	assert.Equal(t, 10, movers[0].Change)
	assert.Equal(t, -5, movers[1].Change)
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scripted{positions: []int{9, 6, 14}})

	_, err := f.tracker.Track(ctx, []string{"seo", "ppc"})
	require.NoError(t, err)
	_, err = f.tracker.Track(ctx, []string{"seo"})
	require.NoError(t, err)

	report, err := f.tracker.Report(ctx, []string{"seo", "ppc", "untracked"})
	require.NoError(t, err)

	want := "Ranking Report\n\n" +
		"seo:\n  Position: 14 ↘️ (-5)\n  Search Volume: 12,500\n  CPC: €1.50\n\n" +
		"ppc:\n  Position: 6 ➡️ (0)\n  Search Volume: 12,500\n  CPC: €1.50\n\n"
	assert.Equal(t, want, report)
	assert.False(t, strings.Contains(report, "untracked"))
}

func keywords(rows []store.RankTrackingData) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Keyword
	}
	return out
}
