package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory. History is lost on restart
// and is not shared between instances.
type MemoryStore struct {
	mu       sync.RWMutex
	samples  []PerformanceSample
	tests    []*ABTest
	byID     map[string]*ABTest
	keywords []string
	seen     map[string]struct{}
	rankings []RankTrackingData
}

// NewMemoryStore returns an empty store that lives as long as the process.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*ABTest),
		seen: make(map[string]struct{}),
	}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) AppendSample(ctx context.Context, p PerformanceSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, p)
	return nil
}

func (s *MemoryStore) Samples(ctx context.Context, url string, since time.Time) ([]PerformanceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []PerformanceSample
	for _, p := range s.samples {
		if p.URL == url && (since.IsZero() || p.Timestamp.After(since)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateTest(ctx context.Context, t *ABTest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[t.ID]; ok {
		return fmt.Errorf("test %s: %w", t.ID, ErrDuplicate)
	}
	cp := cloneTest(t)
	s.tests = append(s.tests, cp)
	s.byID[cp.ID] = cp
	return nil
}

func (s *MemoryStore) GetTest(ctx context.Context, id string) (*ABTest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTest(t), nil
}

func (s *MemoryStore) ListTests(ctx context.Context) ([]*ABTest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ABTest, 0, len(s.tests))
	for _, t := range s.tests {
		out = append(out, cloneTest(t))
	}
	return out, nil
}

func (s *MemoryStore) SetTestActive(ctx context.Context, id string, active bool, endDate *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	t.Active = active
	if endDate != nil {
		end := *endDate
		t.EndDate = &end
	}
	return nil
}

func (s *MemoryStore) IncrementVariant(ctx context.Context, testID, variantID string, c Counter) (*Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[testID]
	if !ok {
		return nil, ErrNotFound
	}
	v := t.Variant(variantID)
	if v == nil {
		return nil, ErrNotFound
	}
	if err := bump(v, c); err != nil {
		return nil, err
	}
	out := *v
	return &out, nil
}

func (s *MemoryStore) AddKeyword(ctx context.Context, keyword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[keyword]; ok {
		return nil
	}
	s.seen[keyword] = struct{}{}
	s.keywords = append(s.keywords, keyword)
	return nil
}

func (s *MemoryStore) Keywords(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.keywords...), nil
}

func (s *MemoryStore) AppendRanking(ctx context.Context, r RankTrackingData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rankings = append(s.rankings, r)
	return nil
}

func (s *MemoryStore) LatestRanking(ctx context.Context, keyword string) (*RankTrackingData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.rankings) - 1; i >= 0; i-- {
		if s.rankings[i].Keyword == keyword {
			r := s.rankings[i]
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Rankings(ctx context.Context, keyword string, since time.Time) ([]RankTrackingData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RankTrackingData
	for _, r := range s.rankings {
		if keyword != "" && r.Keyword != keyword {
			continue
		}
		if !since.IsZero() && !r.Date.After(since) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
