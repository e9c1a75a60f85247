package topology

import (
	"math/rand"
	"sort"

	"github.com/talgya/spatial-dilemma/internal/model"
)

// maxRegularAttempts bounds the restarts of the regular-graph pairing.
const maxRegularAttempts = 1000

type pair struct{ a, b int }

func orderedPair(a, b int) pair {
	if a > b {
		a, b = b, a
	}
	return pair{a, b}
}

// buildRegularRandom draws a random k-regular graph by repeatedly pairing
// stubs and re-pairing only the stubs that produced self-loops or repeats.
func buildRegularRandom(b *builder, n, k int, rng *rand.Rand) error {
	if rng == nil {
		return model.Configf("random source", "required for %s topology", RegularRandom)
	}
	if k < 1 || k >= n {
		return model.Configf("average degree", "regular graph needs 1 <= k < N, got k=%d N=%d", k, n)
	}
	if (n*k)%2 != 0 {
		return model.Configf("average degree", "N*k must be even for a regular graph, got k=%d N=%d", k, n)
	}

	for attempt := 0; attempt < maxRegularAttempts; attempt++ {
		edges, ok := tryRegular(n, k, rng)
		if !ok {
			continue
		}
		for e := range edges {
			b.link(e.a, e.b)
		}
		return nil
	}
	return model.Configf("average degree", "no %d-regular graph found on %d nodes after %d attempts", k, n, maxRegularAttempts)
}

func tryRegular(n, k int, rng *rand.Rand) (map[pair]struct{}, bool) {
	edges := make(map[pair]struct{}, n*k/2)

	stubs := make([]int, 0, n*k)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			stubs = append(stubs, i)
		}
	}

	for len(stubs) > 0 {
		potential := make(map[int]int)
		rng.Shuffle(len(stubs), func(i, j int) { stubs[i], stubs[j] = stubs[j], stubs[i] })

		for i := 0; i+1 < len(stubs); i += 2 {
			e := orderedPair(stubs[i], stubs[i+1])
			if _, dup := edges[e]; e.a != e.b && !dup {
				edges[e] = struct{}{}
				continue
			}
			potential[e.a]++
			potential[e.b]++
		}

		if !suitable(edges, potential) {
			return nil, false
		}

		nodes := make([]int, 0, len(potential))
		for node := range potential {
			nodes = append(nodes, node)
		}
		sort.Ints(nodes)

		stubs = stubs[:0]
		for _, node := range nodes {
			for j := 0; j < potential[node]; j++ {
				stubs = append(stubs, node)
			}
		}
	}
	return edges, true
}

// suitable reports whether the leftover stubs can still form a new edge.
func suitable(edges map[pair]struct{}, potential map[int]int) bool {
	if len(potential) == 0 {
		return true
	}
	nodes := make([]int, 0, len(potential))
	for node := range potential {
		nodes = append(nodes, node)
	}
	sort.Ints(nodes)
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			if _, ok := edges[pair{nodes[i], nodes[j]}]; !ok {
				return true
			}
		}
	}
	return false
}

// buildSmallWorld starts from a ring lattice where each node links to k/2
// neighbors on each side, then rewires each edge with probability p.
func buildSmallWorld(b *builder, n, k int, p float64, rng *rand.Rand) error {
	if rng == nil {
		return model.Configf("random source", "required for %s topology", SmallWorld)
	}
	if k < 2 || k >= n {
		return model.Configf("average degree", "small-world graph needs 2 <= k < N, got k=%d N=%d", k, n)
	}
	if p < 0 || p > 1 {
		return model.Configf("rewire probability", "must be in [0,1], got %g", p)
	}

	half := k / 2
	for j := 1; j <= half; j++ {
		for u := 0; u < n; u++ {
			b.link(u, (u+j)%n)
		}
	}

	for j := 1; j <= half; j++ {
		for u := 0; u < n; u++ {
			if rng.Float64() >= p {
				continue
			}
			v := (u + j) % n
			if b.degree(u) >= n-1 {
				continue
			}
			w := rng.Intn(n)
			for w == u || b.has(u, w) {
				w = rng.Intn(n)
			}
			b.unlink(u, v)
			b.link(u, w)
		}
	}
	return nil
}

// buildScaleFree grows a Barabási–Albert graph, attaching each new node to
// m = k/2 existing nodes chosen proportionally to degree.
func buildScaleFree(b *builder, n, k int, rng *rand.Rand) error {
	if rng == nil {
		return model.Configf("random source", "required for %s topology", ScaleFree)
	}
	m := k / 2
	if m < 1 || m >= n {
		return model.Configf("average degree", "scale-free graph needs 1 <= k/2 < N, got k=%d N=%d", k, n)
	}

	targets := make([]int, m)
	for i := range targets {
		targets[i] = i
	}
	repeated := make([]int, 0, 2*m*n)

	for source := m; source < n; source++ {
		for _, t := range targets {
			b.link(source, t)
		}
		repeated = append(repeated, targets...)
		for i := 0; i < m; i++ {
			repeated = append(repeated, source)
		}
		targets = randomSubset(repeated, m, rng)
	}
	return nil
}

// randomSubset picks m distinct values from seq, weighted by multiplicity.
func randomSubset(seq []int, m int, rng *rand.Rand) []int {
	chosen := make(map[int]struct{}, m)
	for len(chosen) < m {
		chosen[seq[rng.Intn(len(seq))]] = struct{}{}
	}
	out := make([]int, 0, m)
	for v := range chosen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
