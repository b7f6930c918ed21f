// Package abtest manages A/B test definitions, sticky variant assignment and
// the impression/click/conversion counters of each variant.
package abtest

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stecom/seopulse/internal/store"
)

var ErrInvalidTest = errors.New("invalid test")

type Manager struct {
	tests  store.TestStore
	logger *zap.Logger
	now    func() time.Time
}

// NewManager returns a Manager over tests. A nil logger is replaced by a nop.
func NewManager(tests store.TestStore, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{tests: tests, logger: logger, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// CreateTest validates and registers t. Counters start at zero, a missing id
// is generated and a zero StartDate means now.
func (m *Manager) CreateTest(ctx context.Context, t *store.ABTest) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.StartDate.IsZero() {
		t.StartDate = m.now()
	}
	if err := Validate(t); err != nil {
		return err
	}
	for i := range t.Variants {
		v := &t.Variants[i]
		v.Impressions, v.Clicks, v.Conversions = 0, 0, 0
		v.RecomputeCTR()
	}

	if err := m.tests.CreateTest(ctx, t); err != nil {
		return err
	}
	m.logger.Info("ab test created",
		zap.String("test_id", t.ID),
		zap.String("name", t.Name),
		zap.Int("variants", len(t.Variants)),
	)
	return nil
}

// Validate checks the structural rules for a test definition.
func Validate(t *store.ABTest) error {
	if t.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTest)
	}
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTest)
	}
	if len(t.Variants) == 0 {
		return fmt.Errorf("%w: at least one variant is required", ErrInvalidTest)
	}
	if t.TrafficSplit < 0 || t.TrafficSplit > 100 {
		return fmt.Errorf("%w: traffic split must be between 0 and 100", ErrInvalidTest)
	}
	seen := make(map[string]bool, len(t.Variants))
	for _, v := range t.Variants {
		if v.ID == "" {
			return fmt.Errorf("%w: variant id is required", ErrInvalidTest)
		}
		if seen[v.ID] {
			return fmt.Errorf("%w: duplicate variant id %q", ErrInvalidTest, v.ID)
		}
		seen[v.ID] = true
		for _, c := range v.Changes {
			if !c.Type.Valid() {
				return fmt.Errorf("%w: variant %s has unknown change type %q", ErrInvalidTest, v.ID, c.Type)
			}
		}
	}
	if t.EndDate != nil && t.EndDate.Before(t.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidTest)
	}
	return nil
}

func (m *Manager) GetTest(ctx context.Context, testID string) (*store.ABTest, error) {
	return m.tests.GetTest(ctx, testID)
}

func (m *Manager) ListTests(ctx context.Context) ([]*store.ABTest, error) {
	return m.tests.ListTests(ctx)
}

// ActiveTests returns tests that are switched on and inside their date window.
func (m *Manager) ActiveTests(ctx context.Context) ([]*store.ABTest, error) {
	tests, err := m.tests.ListTests(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()
	var out []*store.ABTest
	for _, t := range tests {
		if IsActive(t, now) {
			out = append(out, t)
		}
	}
	return out, nil
}

// IsActive reports whether t is switched on and now falls in its date window.
func IsActive(t *store.ABTest, now time.Time) bool {
	return t.Active && !t.StartDate.After(now) && (t.EndDate == nil || !t.EndDate.Before(now))
}

// AssignVariant buckets userID into one of the test's variants. The result
// depends only on the two ids, so a user keeps the same variant. It returns
// nil when the test does not exist or is switched off.
func (m *Manager) AssignVariant(ctx context.Context, testID, userID string) (*store.Variant, error) {
	t, err := m.tests.GetTest(ctx, testID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !t.Active || len(t.Variants) == 0 {
		return nil, nil
	}
	v := t.Variants[Bucket(testID, userID, len(t.Variants))]
	return &v, nil
}

// Bucket maps (testID, userID) to a variant index in [0, n).
func Bucket(testID, userID string, n int) int {
	return int(HashString(userID+testID) % int64(n))
}

// HashString is the 32-bit "h*31 + c" rolling hash over UTF-16 code units,
// returned as an absolute value.
func HashString(s string) int64 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	if h < 0 {
		return -int64(h)
	}
	return int64(h)
}

func (m *Manager) TrackImpression(ctx context.Context, testID, variantID string) error {
	return m.track(ctx, testID, variantID, store.CounterImpressions)
}

func (m *Manager) TrackClick(ctx context.Context, testID, variantID string) error {
	return m.track(ctx, testID, variantID, store.CounterClicks)
}

func (m *Manager) TrackConversion(ctx context.Context, testID, variantID string) error {
	return m.track(ctx, testID, variantID, store.CounterConversions)
}

// Track bumps counter c. Unknown tests or variants are ignored.
func (m *Manager) Track(ctx context.Context, testID, variantID string, c store.Counter) error {
	if !c.Valid() {
		return fmt.Errorf("unknown event %q", c)
	}
	return m.track(ctx, testID, variantID, c)
}

func (m *Manager) track(ctx context.Context, testID, variantID string, c store.Counter) error {
	v, err := m.tests.IncrementVariant(ctx, testID, variantID, c)
	if errors.Is(err, store.ErrNotFound) {
		m.logger.Debug("tracking event for unknown variant",
			zap.String("test_id", testID),
			zap.String("variant_id", variantID),
			zap.String("event", string(c)),
		)
		return nil
	}
	if err != nil {
		return err
	}
	m.logger.Debug("ab event tracked",
		zap.String("test_id", testID),
		zap.String("variant_id", variantID),
		zap.String("event", string(c)),
		zap.Float64("ctr", v.CTR),
	)
	return nil
}

// Results returns the variants of a test with their counters, or nil when
// the test does not exist.
func (m *Manager) Results(ctx context.Context, testID string) ([]store.Variant, error) {
	t, err := m.tests.GetTest(ctx, testID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t.Variants, nil
}

// StopTest switches a test off and closes its date window.
func (m *Manager) StopTest(ctx context.Context, testID string) error {
	end := m.now()
	if err := m.tests.SetTestActive(ctx, testID, false, &end); err != nil {
		return err
	}
	m.logger.Info("ab test stopped", zap.String("test_id", testID))
	return nil
}
