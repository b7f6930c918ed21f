package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// SampleLog is the append-only performance history.
type SampleLog interface {
	AppendSample(ctx context.Context, s PerformanceSample) error
	// Samples returns samples for url with Timestamp after since, in insertion
	// order. A zero since returns every sample.
	Samples(ctx context.Context, url string, since time.Time) ([]PerformanceSample, error)
}

// TestStore holds A/B test definitions and their variant counters.
type TestStore interface {
	CreateTest(ctx context.Context, t *ABTest) error
	GetTest(ctx context.Context, id string) (*ABTest, error)
	ListTests(ctx context.Context) ([]*ABTest, error)
	SetTestActive(ctx context.Context, id string, active bool, endDate *time.Time) error
	// IncrementVariant bumps one counter and returns the updated variant.
	IncrementVariant(ctx context.Context, testID, variantID string, c Counter) (*Variant, error)
}

// RankLog is the append-only keyword ranking history plus the keyword list.
type RankLog interface {
	AddKeyword(ctx context.Context, keyword string) error
	Keywords(ctx context.Context) ([]string, error)
	AppendRanking(ctx context.Context, r RankTrackingData) error
	LatestRanking(ctx context.Context, keyword string) (*RankTrackingData, error)
	// Rankings returns entries with Date after since in log order. An empty
	// keyword matches every keyword.
	Rankings(ctx context.Context, keyword string, since time.Time) ([]RankTrackingData, error)
}

// Store defines the storage used by the SEO components.
type Store interface {
	SampleLog
	TestStore
	RankLog

	Name() string
	Close() error
}

// Pinger is implemented by backends that hold a connection worth checking.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options selects and configures a backend for Open.
type Options struct {
	Driver        string // memory, sqlite or redis
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open returns the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(opts.SQLitePath)
	case "redis":
		return OpenRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

func cloneTest(t *ABTest) *ABTest {
	cp := *t
	cp.Variants = make([]Variant, len(t.Variants))
	for i, v := range t.Variants {
		v.Changes = append([]Change(nil), v.Changes...)
		cp.Variants[i] = v
	}
	cp.Metrics = append([]string(nil), t.Metrics...)
	if t.EndDate != nil {
		end := *t.EndDate
		cp.EndDate = &end
	}
	return &cp
}

func bump(v *Variant, c Counter) error {
	switch c {
	case CounterImpressions:
		v.Impressions++
	case CounterClicks:
		v.Clicks++
	case CounterConversions:
		v.Conversions++
	default:
		return fmt.Errorf("unknown counter %q", c)
	}
	v.RecomputeCTR()
	return nil
}
