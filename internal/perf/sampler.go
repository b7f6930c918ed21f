package perf

import (
	"context"
	"math/rand/v2"
	"sync"
)

// Sampler produces metrics for a url. RandomSampler synthesizes them;
// HTTPProbe measures a real page load.
type Sampler interface {
	Sample(ctx context.Context, url string) (Metrics, error)
}

// RandomSampler draws values uniformly from realistic ranges.
type RandomSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSampler seeds the generator. A zero seed picks a random one.
func NewRandomSampler(seed uint64) *RandomSampler {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandomSampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *RandomSampler) Sample(ctx context.Context, url string) (Metrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Metrics{
		LCP:            s.rng.Float64()*3000 + 500,       // 500ms to 3.5s
		CLS:            s.rng.Float64() * 0.2,            // 0 to 0.2
		FID:            s.rng.Float64()*200 + 50,         // 50ms to 250ms
		TTFB:           s.rng.Float64()*800 + 200,        // 200ms to 1s
		BundleSize:     s.rng.Float64()*1000000 + 100000, // 100KB to 1.1MB
		ImageOptimized: s.rng.Float64() > 0.3,
	}, nil
}
