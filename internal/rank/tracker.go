// Package rank records search positions for tracked keywords and summarizes
// their movement.
package rank

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/stecom/seopulse/internal/store"
)

const (
	defaultHistoryDays = 30
	defaultMoverDays   = 7
	defaultTopLimit    = 10
	maxMovers          = 10
	topPosition        = 10
)

type Tracker struct {
	log     store.RankLog
	ranker  Ranker
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

// NewTracker returns a Tracker whose landing pages live under baseURL.
func NewTracker(log store.RankLog, ranker Ranker, baseURL string, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		log:     log,
		ranker:  ranker,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		now:     time.Now,
	}
}

func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// AddKeyword registers a keyword for tracking. Re-adding is a no-op.
func (t *Tracker) AddKeyword(ctx context.Context, keyword string) error {
	keyword = NormalizeKeyword(keyword)
	if keyword == "" {
		return errors.New("keyword is required")
	}
	return t.log.AddKeyword(ctx, keyword)
}

func (t *Tracker) Keywords(ctx context.Context) ([]string, error) {
	return t.log.Keywords(ctx)
}

// NormalizeKeyword is the form keywords are registered and logged under.
func NormalizeKeyword(keyword string) string {
	return strings.TrimSpace(keyword)
}

// Track observes the current position of each keyword and appends one row
// per keyword. With no keywords given, every registered keyword is tracked.
// Blank keywords are skipped.
func (t *Tracker) Track(ctx context.Context, keywords []string) ([]store.RankTrackingData, error) {
	if len(keywords) == 0 {
		registered, err := t.log.Keywords(ctx)
		if err != nil {
			return nil, err
		}
		keywords = registered
	}

	out := make([]store.RankTrackingData, 0, len(keywords))
	for _, kw := range keywords {
		kw = NormalizeKeyword(kw)
		if kw == "" {
			continue
		}
		prev, err := t.Latest(ctx, kw)
		if err != nil {
			return out, err
		}
		previous := 0
		if prev != nil {
			previous = prev.Position
		}

		obs, err := t.ranker.Rank(ctx, kw, previous)
		if err != nil {
			return out, fmt.Errorf("rank %q: %w", kw, err)
		}

		row := store.RankTrackingData{
			Keyword:          kw,
			Position:         obs.Position,
			PreviousPosition: previous,
			SearchVolume:     obs.SearchVolume,
			CPC:              obs.CPC,
			URL:              t.baseURL + "/services/" + Slug(kw),
			Date:             t.now(),
		}
		if prev != nil {
			row.Change = previous - obs.Position
		}
		if err := t.log.AppendRanking(ctx, row); err != nil {
			return out, err
		}
		out = append(out, row)

		t.logger.Debug("keyword ranked",
			zap.String("keyword", kw),
			zap.Int("position", row.Position),
			zap.Int("change", row.Change),
		)
	}
	return out, nil
}

// Slug lowercases s and joins its words with dashes.
func Slug(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}

// Latest returns the most recent row for keyword, or nil.
func (t *Tracker) Latest(ctx context.Context, keyword string) (*store.RankTrackingData, error) {
	r, err := t.log.LatestRanking(ctx, NormalizeKeyword(keyword))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return r, err
}

// History returns rows for keyword newer than days ago, oldest first.
func (t *Tracker) History(ctx context.Context, keyword string, days int) ([]store.RankTrackingData, error) {
	if days <= 0 {
		days = defaultHistoryDays
	}
	return t.log.Rankings(ctx, NormalizeKeyword(keyword), t.now().AddDate(0, 0, -days))
}

// TopPerformers returns rows ranked in the top ten, best position first.
func (t *Tracker) TopPerformers(ctx context.Context, limit int) ([]store.RankTrackingData, error) {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	all, err := t.log.Rankings(ctx, "", time.Time{})
	if err != nil {
		return nil, err
	}
	top := slices.DeleteFunc(all, func(r store.RankTrackingData) bool { return r.Position > topPosition })
	slices.SortStableFunc(top, func(a, b store.RankTrackingData) int { return cmp.Compare(a.Position, b.Position) })
	if len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

// BiggestMovers returns the rows of the last days with the largest position
// changes in either direction.
func (t *Tracker) BiggestMovers(ctx context.Context, days int) ([]store.RankTrackingData, error) {
	if days <= 0 {
		days = defaultMoverDays
	}
	recent, err := t.log.Rankings(ctx, "", t.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(recent, func(a, b store.RankTrackingData) int {
		return cmp.Compare(abs(b.Change), abs(a.Change))
	})
	if len(recent) > maxMovers {
		recent = recent[:maxMovers]
	}
	return recent, nil
}

// Report summarizes the latest position of each keyword. Keywords without
// data are skipped.
func (t *Tracker) Report(ctx context.Context, keywords []string) (string, error) {
	var b strings.Builder
	b.WriteString("Ranking Report\n\n")
	for _, kw := range keywords {
		r, err := t.Latest(ctx, kw)
		if err != nil {
			return "", err
		}
		if r == nil {
			continue
		}
		writeRow(&b, r)
	}
	return b.String(), nil
}

func writeRow(b *strings.Builder, r *store.RankTrackingData) {
	arrow := "➡️"
	switch {
	case r.Change > 0:
		arrow = "↗️"
	case r.Change < 0:
		arrow = "↘️"
	}
	change := fmt.Sprint(r.Change)
	if r.Change > 0 {
		change = "+" + change
	}
	fmt.Fprintf(b, "%s:\n", r.Keyword)
	fmt.Fprintf(b, "  Position: %d %s (%s)\n", r.Position, arrow, change)
	fmt.Fprintf(b, "  Search Volume: %s\n", humanize.Comma(int64(r.SearchVolume)))
	fmt.Fprintf(b, "  CPC: €%.2f\n\n", r.CPC)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
