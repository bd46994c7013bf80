package throughput

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/iti/rngstream"
	"github.com/platinummonkey/matsecom/pkg/catalog"
)

// Policy chooses one achievable percentage out of a technology's percentage set.
// Choose is only called with data-capable technologies, so the set is never empty.
type Policy interface {
	Name() string
	Choose(tech catalog.Technology) catalog.ThroughputPercentage
}

// UniformRandom picks one of the percentages with equal probability. It is the
// policy used in production.
type UniformRandom struct {
	mu  sync.Mutex
	rng *rngstream.RngStream
}

// NewUniformRandom creates a random policy backed by a named RNG stream.
func NewUniformRandom(stream string) *UniformRandom {
	return &UniformRandom{rng: rngstream.New(stream)}
}

func (p *UniformRandom) Name() string { return "uniform-random" }

func (p *UniformRandom) Choose(tech catalog.Technology) catalog.ThroughputPercentage {
	n := len(tech.ThroughputPercentages)

	p.mu.Lock()
	u := p.rng.RandU01()
	p.mu.Unlock()

	i := int(u * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return tech.ThroughputPercentages[i]
}

// FixedRank picks the percentage at position Rank when the set is ordered by
// ascending value. Ranks past either end are clamped, so a negative rank always
// yields the minimum and a rank beyond the set always yields the maximum.
type FixedRank struct {
	Rank int
}

// Minimum always picks the lowest percentage.
func Minimum() FixedRank { return FixedRank{Rank: 0} }

// Maximum always picks the highest percentage.
func Maximum() FixedRank { return FixedRank{Rank: int(^uint(0) >> 1)} }

func (p FixedRank) Name() string {
	switch p {
	case Minimum():
		return "minimum"
	case Maximum():
		return "maximum"
	}
	return "fixed-rank"
}

func (p FixedRank) Choose(tech catalog.Technology) catalog.ThroughputPercentage {
	ranked := append([]catalog.ThroughputPercentage(nil), tech.ThroughputPercentages...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Value.LessThan(ranked[j].Value)
	})

	i := p.Rank
	if i < 0 {
		i = 0
	}
	if i >= len(ranked) {
		i = len(ranked) - 1
	}
	return ranked[i]
}

// ParsePolicy maps a configured policy name to a Policy. Fixed ranks are written
// as "rank:<k>".
func ParsePolicy(name, stream string) (Policy, error) {
	switch name {
	case "", "random", "uniform-random":
		return NewUniformRandom(stream), nil
	case "max", "maximum":
		return Maximum(), nil
	case "min", "minimum":
		return Minimum(), nil
	}
	if rank, ok := strings.CutPrefix(name, "rank:"); ok {
		k, err := strconv.Atoi(rank)
		if err != nil {
			return nil, fmt.Errorf("invalid rank in throughput policy %q: %w", name, err)
		}
		return FixedRank{Rank: k}, nil
	}
	return nil, &UnknownPolicyError{Name: name}
}

// UnknownPolicyError is returned by ParsePolicy for names it does not recognise.
type UnknownPolicyError struct {
	Name string
}

func (e *UnknownPolicyError) Error() string {
	return fmt.Sprintf("unknown throughput policy %q", e.Name)
}
