package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stecom/seopulse/internal/store"
)

// backends returns every store the contract runs against.
func backends(t *testing.T) map[string]store.Store {
	t.Helper()

	sqlite, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	out := map[string]store.Store{
		"memory": store.NewMemoryStore(),
		"sqlite": sqlite,
	}

	if addr := os.Getenv("SEOPULSE_TEST_REDIS_ADDR"); addr != "" {
		prefix := "seopulse-test:" + t.Name() + ":" + time.Now().Format("150405.000000000") + ":"
		rs, err := store.OpenRedis(context.Background(), addr, "", 0, prefix)
		require.NoError(t, err)
		t.Cleanup(func() { rs.Close() })
		out["redis"] = rs
	}
	return out
}

func newTest(id string) *store.ABTest {
	return &store.ABTest{
		ID:           id,
		Name:         "Hero headline",
		TrafficSplit: 50,
		DurationDays: 14,
		StartDate:    time.Now().Add(-time.Hour),
		Active:       true,
		Metrics:      []string{"ctr"},
		Variants: []store.Variant{
			{ID: "a", Name: "Control", Changes: []store.Change{{Type: store.ChangeHeading, Selector: "h1", Value: "Ship faster", OriginalValue: "Welcome"}}},
			{ID: "b", Name: "Challenger"},
		},
	}
}

func TestStore_Samples(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().Add(-48 * time.Hour)

			for i := 0; i < 3; i++ {
				require.NoError(t, s.AppendSample(ctx, store.PerformanceSample{
					URL:       "https://example.com",
					Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
					LCP:       float64(1000 + i),
					Score:     90 - i,
				}))
			}
			require.NoError(t, s.AppendSample(ctx, store.PerformanceSample{URL: "https://other.com", Timestamp: base}))

			all, err := s.Samples(ctx, "https://example.com", time.Time{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			for i, p := range all {
				assert.Equal(t, float64(1000+i), p.LCP, "insertion order")
			}

			recent, err := s.Samples(ctx, "https://example.com", base.Add(time.Hour))
			require.NoError(t, err)
			assert.Len(t, recent, 2)

			none, err := s.Samples(ctx, "https://missing.com", time.Time{})
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStore_Tests(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.CreateTest(ctx, newTest("hero")))
			require.NoError(t, s.CreateTest(ctx, newTest("cta")))

			err := s.CreateTest(ctx, newTest("hero"))
			assert.ErrorIs(t, err, store.ErrDuplicate)

			got, err := s.GetTest(ctx, "hero")
			require.NoError(t, err)
			assert.Equal(t, "Hero headline", got.Name)
			require.Len(t, got.Variants, 2)
			assert.Equal(t, "a", got.Variants[0].ID)
			assert.Equal(t, "h1", got.Variants[0].Changes[0].Selector)
			assert.True(t, got.Active)
			assert.Nil(t, got.EndDate)

			_, err = s.GetTest(ctx, "missing")
			assert.ErrorIs(t, err, store.ErrNotFound)

			list, err := s.ListTests(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "hero", list[0].ID)
			assert.Equal(t, "cta", list[1].ID)

			end := time.Now()
			require.NoError(t, s.SetTestActive(ctx, "hero", false, &end))
			got, err = s.GetTest(ctx, "hero")
			require.NoError(t, err)
			assert.False(t, got.Active)
			require.NotNil(t, got.EndDate)
			assert.WithinDuration(t, end, *got.EndDate, time.Millisecond)

			assert.ErrorIs(t, s.SetTestActive(ctx, "missing", false, nil), store.ErrNotFound)
		})
	}
}

func TestStore_IncrementVariant(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateTest(ctx, newTest("hero")))

			v, err := s.IncrementVariant(ctx, "hero", "b", store.CounterClicks)
			require.NoError(t, err)
			assert.Equal(t, 1, v.Clicks)
			assert.Equal(t, 0.0, v.CTR, "zero impressions gives zero CTR")

			for i := 0; i < 4; i++ {
				v, err = s.IncrementVariant(ctx, "hero", "b", store.CounterImpressions)
				require.NoError(t, err)
			}
			assert.Equal(t, 4, v.Impressions)
			assert.InDelta(t, 0.25, v.CTR, 1e-9)

			v, err = s.IncrementVariant(ctx, "hero", "b", store.CounterConversions)
			require.NoError(t, err)
			assert.Equal(t, 1, v.Conversions)

			got, err := s.GetTest(ctx, "hero")
			require.NoError(t, err)
			assert.Equal(t, 0, got.Variants[0].Impressions)
			assert.Equal(t, 4, got.Variants[1].Impressions)
			assert.Equal(t, 1, got.Variants[1].Clicks)

			_, err = s.IncrementVariant(ctx, "hero", "zzz", store.CounterClicks)
			assert.ErrorIs(t, err, store.ErrNotFound)
			_, err = s.IncrementVariant(ctx, "missing", "a", store.CounterClicks)
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestStore_Rankings(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.AddKeyword(ctx, "seo services"))
			require.NoError(t, s.AddKeyword(ctx, "web development"))
			require.NoError(t, s.AddKeyword(ctx, "seo services"))

			kws, err := s.Keywords(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"seo services", "web development"}, kws)

			_, err = s.LatestRanking(ctx, "seo services")
			assert.ErrorIs(t, err, store.ErrNotFound)

			old := time.Now().Add(-10 * 24 * time.Hour)
			require.NoError(t, s.AppendRanking(ctx, store.RankTrackingData{Keyword: "seo services", Position: 12, Date: old}))
			require.NoError(t, s.AppendRanking(ctx, store.RankTrackingData{Keyword: "web development", Position: 4, Date: time.Now()}))
			require.NoError(t, s.AppendRanking(ctx, store.RankTrackingData{Keyword: "seo services", Position: 9, PreviousPosition: 12, Change: 3, Date: time.Now()}))

			latest, err := s.LatestRanking(ctx, "seo services")
			require.NoError(t, err)
			assert.Equal(t, 9, latest.Position)
			assert.Equal(t, 3, latest.Change)

			history, err := s.Rankings(ctx, "seo services", time.Time{})
			require.NoError(t, err)
			require.Len(t, history, 2)
			assert.Equal(t, 12, history[0].Position)

			recent, err := s.Rankings(ctx, "", time.Now().Add(-7*24*time.Hour))
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "web development", recent[0].Keyword)
			assert.Equal(t, "seo services", recent[1].Keyword)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := store.Open(context.Background(), store.Options{Driver: "cassandra"})
	assert.Error(t, err)
}

func TestOpen_DefaultsToMemory(t *testing.T) {
	s, err := store.Open(context.Background(), store.Options{})
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Name())
}

func TestParseCounter(t *testing.T) {
	for in, want := range map[string]store.Counter{
		"impression":  store.CounterImpressions,
		"impressions": store.CounterImpressions,
		"click":       store.CounterClicks,
		"conversions": store.CounterConversions,
	} {
		got, ok := store.ParseCounter(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}

	_, ok := store.ParseCounter("purchase")
	assert.False(t, ok)
}

func TestStore_IDsWithSeparators(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.CreateTest(ctx, newTest("x")))
			require.NoError(t, s.CreateTest(ctx, newTest("x:counters")))

			_, err := s.IncrementVariant(ctx, "x", "a", store.CounterClicks)
			require.NoError(t, err)

			plain, err := s.GetTest(ctx, "x")
			require.NoError(t, err)
			assert.Equal(t, 1, plain.Variants[0].Clicks)

			colon, err := s.GetTest(ctx, "x:counters")
			require.NoError(t, err)
			assert.Equal(t, "x:counters", colon.ID)
			assert.Zero(t, colon.Variants[0].Clicks)

			tests, err := s.ListTests(ctx)
			require.NoError(t, err)
			assert.Len(t, tests, 2)
		})
	}
}
