package rank

import (
	"context"
	"math/rand/v2"
	"sync"
)

// Observation is what a Ranker reports for one keyword.
type Observation struct {
	Position     int
	SearchVolume int
	CPC          float64
}

// Ranker looks up the current search position of a keyword. previous is the
// last known position, or 0 when the keyword has no history.
type Ranker interface {
	Rank(ctx context.Context, keyword string, previous int) (Observation, error)
}

// RandomRanker simulates search results. The first observation lands on page
// one to five and later ones drift up to five places either way.
type RandomRanker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomRanker returns a simulator. A zero seed draws from the runtime
// source.
func NewRandomRanker(seed uint64) *RandomRanker {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &RandomRanker{rng: rand.New(rand.NewPCG(seed, seed^0x5e0))}
}

func (r *RandomRanker) Rank(ctx context.Context, keyword string, previous int) (Observation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pos int
	if previous <= 0 {
		pos = 1 + r.rng.IntN(50)
	} else {
		pos = max(1, previous+r.rng.IntN(11)-5)
	}
	return Observation{
		Position:     pos,
		SearchVolume: 100 + r.rng.IntN(10000),
		CPC:          0.5 + r.rng.Float64()*5,
	}, nil
}
