package topology

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/talgya/spatial-dilemma/internal/model"
)

func TestLatticeEveryCellHasEightSymmetricNeighbors(t *testing.T) {
	for side := 3; side <= 12; side++ {
		n := side * side
		g, err := Build(Lattice, n, 8, Options{})
		if err != nil {
			t.Fatalf("side=%d: build: %v", side, err)
		}
		if g.Side != side {
			t.Fatalf("side mismatch: got=%d want=%d", g.Side, side)
		}
		for id := 0; id < n; id++ {
			if g.Degree(id) != 8 {
				t.Fatalf("side=%d id=%d: degree got=%d want=8", side, id, g.Degree(id))
			}
			assertSymmetric(t, g, id)
		}
		if g.EdgeCount() != 4*n {
			t.Fatalf("side=%d: edge count got=%d want=%d", side, g.EdgeCount(), 4*n)
		}
	}
}

func TestLatticeMatchesTorusMooreNeighborhood(t *testing.T) {
	const side = 10
	g, err := Build(Lattice, side*side, 0, Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for row := 0; row < side; row++ {
		for col := 0; col < side; col++ {
			id := row*side + col
			for _, d := range mooreDirections {
				r := (row + d[0] + side) % side
				c := (col + d[1] + side) % side
				if !g.HasEdge(id, r*side+c) {
					t.Fatalf("cell (%d,%d) missing wrapped neighbor (%d,%d)", row, col, r, c)
				}
			}
		}
	}

	// Corners reach the three other corners.
	corners := []int{0, side - 1, (side - 1) * side, side*side - 1}
	for _, a := range corners {
		for _, b := range corners {
			if a != b && !g.HasEdge(a, b) {
				t.Fatalf("corner %d not linked to corner %d", a, b)
			}
		}
	}
}

func TestLatticeRejectsNonSquare(t *testing.T) {
	for _, n := range []int{2, 10, 99, 101} {
		_, err := Build(Lattice, n, 8, Options{})
		if !errors.Is(err, model.ErrConfiguration) {
			t.Fatalf("n=%d: expected configuration error, got %v", n, err)
		}
	}
}

func TestLatticeRejectsTinySide(t *testing.T) {
	_, err := Build(Lattice, 4, 8, Options{})
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
	if cfgErr.Field != "population" {
		t.Fatalf("unexpected field: %s", cfgErr.Field)
	}
}

func TestRingAndComplete(t *testing.T) {
	ring, err := Build(Ring, 7, 0, Options{})
	if err != nil {
		t.Fatalf("ring: %v", err)
	}
	for id := 0; id < 7; id++ {
		if ring.Degree(id) != 2 {
			t.Fatalf("ring degree id=%d got=%d want=2", id, ring.Degree(id))
		}
	}
	if got := ring.Neighbors(0); len(got) != 2 || got[0] != 1 || got[1] != 6 {
		t.Fatalf("ring neighbors of 0: got=%v want=[1 6]", got)
	}

	complete, err := Build(Complete, 6, 0, Options{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	for id := 0; id < 6; id++ {
		if complete.Degree(id) != 5 {
			t.Fatalf("complete degree id=%d got=%d want=5", id, complete.Degree(id))
		}
	}
	if complete.EdgeCount() != 15 {
		t.Fatalf("complete edges got=%d want=15", complete.EdgeCount())
	}
}

func TestRegularRandomIsRegular(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	g, err := Build(RegularRandom, 100, 8, Options{Rand: rng})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for id := 0; id < g.Len(); id++ {
		if g.Degree(id) != 8 {
			t.Fatalf("id=%d degree got=%d want=8", id, g.Degree(id))
		}
		assertSymmetric(t, g, id)
	}
}

func TestRegularRandomRejectsBadDegree(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cases := []struct {
		n, k int
	}{
		{n: 10, k: 10},
		{n: 9, k: 3},
		{n: 10, k: 0},
	}
	for _, tc := range cases {
		_, err := Build(RegularRandom, tc.n, tc.k, Options{Rand: rng})
		if !errors.Is(err, model.ErrConfiguration) {
			t.Fatalf("n=%d k=%d: expected configuration error, got %v", tc.n, tc.k, err)
		}
	}
}

func TestSmallWorldKeepsEdgeCount(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	g, err := Build(SmallWorld, 50, 4, Options{Rewire: DefaultRewire, Rand: rng})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if g.EdgeCount() != 100 {
		t.Fatalf("edge count got=%d want=100", g.EdgeCount())
	}
	for id := 0; id < g.Len(); id++ {
		assertSymmetric(t, g, id)
	}
}

func TestSmallWorldWithoutRewiringIsRingLattice(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	g, err := Build(SmallWorld, 20, 4, Options{Rewire: 0, Rand: rng})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for id := 0; id < 20; id++ {
		if g.Degree(id) != 4 {
			t.Fatalf("id=%d degree got=%d want=4", id, g.Degree(id))
		}
		if !g.HasEdge(id, (id+2)%20) {
			t.Fatalf("id=%d missing second-ring neighbor", id)
		}
	}
}

func TestScaleFreeEdgeCountAndMinimumDegree(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const n, k = 200, 8
	g, err := Build(ScaleFree, n, k, Options{Rand: rng})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m := k / 2
	if got, want := g.EdgeCount(), (n-m)*m; got != want {
		t.Fatalf("edge count got=%d want=%d", got, want)
	}
	for id := 0; id < n; id++ {
		if g.Degree(id) < 1 {
			t.Fatalf("id=%d isolated", id)
		}
		assertSymmetric(t, g, id)
	}
	if len(g.Isolated()) != 0 {
		t.Fatalf("unexpected isolated nodes: %v", g.Isolated())
	}
}

func TestRandomKindsRequireSource(t *testing.T) {
	for _, kind := range []Kind{RegularRandom, SmallWorld, ScaleFree} {
		_, err := Build(kind, 20, 4, Options{})
		if !errors.Is(err, model.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", kind, err)
		}
	}
}

func TestParseKindAliases(t *testing.T) {
	cases := map[string]Kind{
		"lattice":  Lattice,
		"ER":       RegularRandom,
		"WS":       SmallWorld,
		"BA-SF":    ScaleFree,
		"Complete": Complete,
		" ring ":   Ring,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: got=%s want=%s", in, got, want)
		}
	}
	if _, err := ParseKind("hypercube"); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNeighborsNeverContainSelf(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for _, kind := range Kinds {
		g, err := Build(kind, 64, 6, Options{Rewire: DefaultRewire, Rand: rng})
		if err != nil {
			t.Fatalf("%s: build: %v", kind, err)
		}
		for id := 0; id < g.Len(); id++ {
			for _, nb := range g.Neighbors(id) {
				if nb == id {
					t.Fatalf("%s: node %d lists itself", kind, id)
				}
			}
		}
	}
}

func assertSymmetric(t *testing.T, g *Graph, id int) {
	t.Helper()
	for _, nb := range g.Neighbors(id) {
		found := false
		for _, back := range g.Neighbors(nb) {
			if back == id {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("edge %d->%d is not symmetric", id, nb)
		}
	}
}
