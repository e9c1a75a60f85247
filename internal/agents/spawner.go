// Initial-cooperator draws. One draw is made per episode and reused for
// every parameter point of that episode.
package agents

import (
	"math/rand"
	"sort"
	"strings"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/spatial-dilemma/internal/model"
	"github.com/talgya/spatial-dilemma/internal/topology"
)

// Pattern selects how initial cooperators are placed.
type Pattern string

const (
	PatternRandom    Pattern = "random"    // Uniform sample without replacement
	PatternClustered Pattern = "clustered" // Low-valued cells of a simplex noise field
)

// ParsePattern validates a pattern name. Empty means random.
func ParsePattern(s string) (Pattern, error) {
	switch Pattern(strings.ToLower(strings.TrimSpace(s))) {
	case "", PatternRandom:
		return PatternRandom, nil
	case PatternClustered:
		return PatternClustered, nil
	default:
		return "", model.Configf("initial pattern", "unknown pattern %q", s)
	}
}

// clusterScale sets the spatial frequency of the noise field; about one
// blob every seven cells.
const clusterScale = 0.15

// Spawner draws initial cooperator sets.
type Spawner struct {
	Pattern  Pattern
	Fraction float64 // Share of agents that start as cooperators
}

// NewSpawner creates a spawner for the given pattern and fraction.
func NewSpawner(pattern Pattern, fraction float64) (*Spawner, error) {
	if fraction < 0 || fraction > 1 {
		return nil, model.Configf("initial cooperator fraction", "must be in [0,1], got %g", fraction)
	}
	if _, err := ParsePattern(string(pattern)); err != nil {
		return nil, err
	}
	if pattern == "" {
		pattern = PatternRandom
	}
	return &Spawner{Pattern: pattern, Fraction: fraction}, nil
}

// Count returns how many cooperators a population of n starts with.
func (s *Spawner) Count(n int) int {
	return int(float64(n) * s.Fraction)
}

// Draw picks the initial cooperators for one episode. The returned ids are
// ascending.
func (s *Spawner) Draw(g *topology.Graph, rng *rand.Rand) ([]AgentID, error) {
	k := s.Count(g.Len())
	switch s.Pattern {
	case PatternClustered:
		return ClusteredIDs(g, k, rng.Int63())
	default:
		return SampleIDs(g.Len(), k, rng)
	}
}

// SampleIDs draws k distinct ids from [0, n) uniformly.
func SampleIDs(n, k int, rng *rand.Rand) ([]AgentID, error) {
	if k < 0 || k > n {
		return nil, model.Configf("initial cooperators", "cannot sample %d from a population of %d", k, n)
	}
	ids := rng.Perm(n)[:k]
	sort.Ints(ids)
	return ids, nil
}

// ClusteredIDs returns the k agents whose positions fall lowest in a simplex
// noise field, which yields spatially contiguous cooperator patches.
func ClusteredIDs(g *topology.Graph, k int, seed int64) ([]AgentID, error) {
	n := g.Len()
	if k < 0 || k > n {
		return nil, model.Configf("initial cooperators", "cannot sample %d from a population of %d", k, n)
	}

	noise := opensimplex.NewNormalized(seed)
	values := make([]float64, n)
	order := make([]AgentID, n)
	for id := 0; id < n; id++ {
		x, y := g.Position(id)
		values[id] = noise.Eval2(x*clusterScale, y*clusterScale)
		order[id] = id
	}
	sort.SliceStable(order, func(i, j int) bool {
		return values[order[i]] < values[order[j]]
	})

	ids := append([]AgentID(nil), order[:k]...)
	sort.Ints(ids)
	return ids, nil
}
