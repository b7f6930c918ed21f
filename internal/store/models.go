package store

import "time"

// PerformanceSample is one measurement of a page.
type PerformanceSample struct {
	URL            string    `json:"url"`
	Timestamp      time.Time `json:"timestamp"`
	LCP            float64   `json:"lcp"`  // ms
	CLS            float64   `json:"cls"`  // unitless
	FID            float64   `json:"fid"`  // ms
	TTFB           float64   `json:"ttfb"` // ms
	BundleSize     float64   `json:"bundleSize"`
	ImageOptimized bool      `json:"imageOptimization"`
	Score          int       `json:"score"`
}

type ChangeType string

const (
	ChangeTitle       ChangeType = "title"
	ChangeDescription ChangeType = "description"
	ChangeHeading     ChangeType = "heading"
	ChangeContent     ChangeType = "content"
	ChangeCTA         ChangeType = "cta"
	ChangeLayout      ChangeType = "layout"
)

// Valid reports whether t is one of the known change types.
func (t ChangeType) Valid() bool {
	switch t {
	case ChangeTitle, ChangeDescription, ChangeHeading, ChangeContent, ChangeCTA, ChangeLayout:
		return true
	}
	return false
}

type Change struct {
	Type          ChangeType `json:"type" yaml:"type"`
	Selector      string     `json:"selector" yaml:"selector"`
	Value         string     `json:"value" yaml:"value"`
	OriginalValue string     `json:"originalValue" yaml:"originalValue"`
}

type Variant struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Changes     []Change `json:"changes" yaml:"changes"`
	Impressions int      `json:"impressions" yaml:"-"`
	Clicks      int      `json:"clicks" yaml:"-"`
	Conversions int      `json:"conversions" yaml:"-"`
	CTR         float64  `json:"ctr" yaml:"-"`
}

// RecomputeCTR sets CTR from the counters. Zero impressions yields 0.
func (v *Variant) RecomputeCTR() {
	if v.Impressions == 0 {
		v.CTR = 0
		return
	}
	v.CTR = float64(v.Clicks) / float64(v.Impressions)
}

type ABTest struct {
	ID           string     `json:"id" yaml:"id"`
	Name         string     `json:"name" yaml:"name"`
	Description  string     `json:"description,omitempty" yaml:"description"`
	Variants     []Variant  `json:"variants" yaml:"variants"`
	TrafficSplit float64    `json:"trafficSplit" yaml:"trafficSplit"` // percent
	DurationDays int        `json:"duration" yaml:"duration"`
	StartDate    time.Time  `json:"startDate" yaml:"startDate"`
	EndDate      *time.Time `json:"endDate,omitempty" yaml:"endDate"`
	Active       bool       `json:"active" yaml:"active"`
	Metrics      []string   `json:"metrics" yaml:"metrics"`
}

// Variant returns the variant with the given id, or nil.
func (t *ABTest) Variant(id string) *Variant {
	for i := range t.Variants {
		if t.Variants[i].ID == id {
			return &t.Variants[i]
		}
	}
	return nil
}

// Counter names a variant counter.
type Counter string

const (
	CounterImpressions Counter = "impressions"
	CounterClicks      Counter = "clicks"
	CounterConversions Counter = "conversions"
)

func (c Counter) Valid() bool {
	return c == CounterImpressions || c == CounterClicks || c == CounterConversions
}

// ParseCounter accepts an event name in singular or plural form.
func ParseCounter(event string) (Counter, bool) {
	switch event {
	case "impression", "impressions":
		return CounterImpressions, true
	case "click", "clicks":
		return CounterClicks, true
	case "conversion", "conversions":
		return CounterConversions, true
	}
	return "", false
}

type RankTrackingData struct {
	Keyword          string    `json:"keyword"`
	Position         int       `json:"position"`
	PreviousPosition int       `json:"previousPosition"`
	Change           int       `json:"change"` // previous - current, positive is an improvement
	SearchVolume     int       `json:"searchVolume"`
	CPC              float64   `json:"cpc"`
	URL              string    `json:"url"`
	Date             time.Time `json:"date"`
}
