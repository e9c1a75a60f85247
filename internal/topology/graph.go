// Package topology builds the interaction network the agents live on and
// flattens it into per-node neighbor lists.
package topology

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/talgya/spatial-dilemma/internal/model"
)

// Kind selects the network construction.
type Kind string

const (
	Lattice       Kind = "lattice"  // Periodic square lattice, Moore neighborhood
	Ring          Kind = "ring"     // Cycle, each node linked to its two cyclic neighbors
	RegularRandom Kind = "regular"  // Random k-regular graph
	Complete      Kind = "complete" // Every pair linked
	SmallWorld    Kind = "ws"       // Watts–Strogatz rewired ring lattice
	ScaleFree     Kind = "ba"       // Barabási–Albert preferential attachment
)

// Kinds lists every supported construction in a stable order.
var Kinds = []Kind{Lattice, Ring, RegularRandom, Complete, SmallWorld, ScaleFree}

var kindAliases = map[string]Kind{
	"lattice":     Lattice,
	"ring":        Ring,
	"regular":     RegularRandom,
	"er":          RegularRandom,
	"complete":    Complete,
	"ws":          SmallWorld,
	"small-world": SmallWorld,
	"ba":          ScaleFree,
	"ba-sf":       ScaleFree,
	"scale-free":  ScaleFree,
}

// ParseKind accepts the canonical names plus the short labels used by older
// sweep scripts ("ER", "WS", "BA-SF", "Complete").
func ParseKind(s string) (Kind, error) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", model.Configf("topology", "unknown kind %q", s)
}

// DefaultRewire is the Watts–Strogatz rewiring probability.
const DefaultRewire = 0.5

// Options tune the random constructions. Rand is required for
// RegularRandom, SmallWorld, and ScaleFree.
type Options struct {
	Rewire float64
	Rand   *rand.Rand
}

// Graph is an immutable network over N positions. It is shared read-only by
// every run that uses it.
type Graph struct {
	Kind Kind
	Side int // Lattice side length; 0 for other kinds.

	g         *simple.UndirectedGraph
	neighbors [][]int
}

// Build constructs a graph of kind over n nodes with average degree k.
// k is ignored by Lattice, Ring, and Complete.
func Build(kind Kind, n, k int, opts Options) (*Graph, error) {
	if n <= 0 {
		return nil, model.Configf("population", "must be positive, got %d", n)
	}

	b := newBuilder(n)
	out := &Graph{Kind: kind}

	var err error
	switch kind {
	case Lattice:
		out.Side, err = buildLattice(b, n)
	case Ring:
		err = buildRing(b, n)
	case Complete:
		err = buildComplete(b, n)
	case RegularRandom:
		err = buildRegularRandom(b, n, k, opts.Rand)
	case SmallWorld:
		err = buildSmallWorld(b, n, k, opts.Rewire, opts.Rand)
	case ScaleFree:
		err = buildScaleFree(b, n, k, opts.Rand)
	default:
		err = model.Configf("topology", "unknown kind %q", kind)
	}
	if err != nil {
		return nil, err
	}

	out.g = b.g
	out.neighbors = b.neighborLists()
	return out, nil
}

// Len returns the number of positions.
func (g *Graph) Len() int {
	return len(g.neighbors)
}

// Neighbors returns the ascending neighbor ids of node id. The slice is
// shared; callers must not modify it.
func (g *Graph) Neighbors(id int) []int {
	return g.neighbors[id]
}

// Degree returns the number of neighbors of node id.
func (g *Graph) Degree(id int) int {
	return len(g.neighbors[id])
}

// AverageDegree returns the mean degree over all nodes.
func (g *Graph) AverageDegree() float64 {
	if len(g.neighbors) == 0 {
		return 0
	}
	return float64(2*g.EdgeCount()) / float64(len(g.neighbors))
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	return g.g.Edges().Len()
}

// HasEdge reports whether a and b are adjacent.
func (g *Graph) HasEdge(a, b int) bool {
	return g.g.HasEdgeBetween(int64(a), int64(b))
}

// Isolated returns the ids of nodes with no neighbors.
func (g *Graph) Isolated() []int {
	var ids []int
	for id, nbs := range g.neighbors {
		if len(nbs) == 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// Position returns planar coordinates for node id: grid cell for lattices,
// a point on the unit circle scaled to the population otherwise.
func (g *Graph) Position(id int) (x, y float64) {
	if g.Side > 0 {
		return float64(id % g.Side), float64(id / g.Side)
	}
	n := float64(len(g.neighbors))
	theta := 2 * math.Pi * float64(id) / n
	r := n / (2 * math.Pi)
	return r * math.Cos(theta), r * math.Sin(theta)
}

func (g *Graph) String() string {
	return fmt.Sprintf("Graph(kind=%s, nodes=%d, edges=%d)", g.Kind, g.Len(), g.EdgeCount())
}

// builder wraps the gonum graph with int-indexed helpers.
type builder struct {
	n int
	g *simple.UndirectedGraph
}

func newBuilder(n int) *builder {
	g := simple.NewUndirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	return &builder{n: n, g: g}
}

// link adds the undirected edge a–b. Self-loops are ignored and repeated
// edges collapse into one.
func (b *builder) link(a, c int) {
	if a == c {
		return
	}
	b.g.SetEdge(b.g.NewEdge(simple.Node(a), simple.Node(c)))
}

func (b *builder) unlink(a, c int) {
	b.g.RemoveEdge(int64(a), int64(c))
}

func (b *builder) has(a, c int) bool {
	return b.g.HasEdgeBetween(int64(a), int64(c))
}

func (b *builder) degree(id int) int {
	return b.g.From(int64(id)).Len()
}

func (b *builder) neighborLists() [][]int {
	out := make([][]int, b.n)
	for id := 0; id < b.n; id++ {
		nodes := graph.NodesOf(b.g.From(int64(id)))
		ids := make([]int, len(nodes))
		for i, nd := range nodes {
			ids[i] = int(nd.ID())
		}
		sort.Ints(ids)
		out[id] = ids
	}
	return out
}
