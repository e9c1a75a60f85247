package agents

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/talgya/spatial-dilemma/internal/model"
)

func TestSampleIDsDistinctAndSorted(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ids, err := SampleIDs(100, 50, rng)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(ids) != 50 {
		t.Fatalf("len got=%d want=50", len(ids))
	}
	seen := make(map[int]bool)
	for i, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
		if i > 0 && ids[i-1] >= id {
			t.Fatalf("ids not ascending: %v", ids)
		}
	}
}

func TestSampleIDsRejectsOversizedRequest(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := SampleIDs(10, 11, rng); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSpawnerRejectsBadFraction(t *testing.T) {
	if _, err := NewSpawner(PatternRandom, 1.5); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := NewSpawner("stripes", 0.5); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error for pattern, got %v", err)
	}
}

func TestSpawnerDrawsHalf(t *testing.T) {
	g := buildLattice(t, 100)
	rng := rand.New(rand.NewSource(4))
	for _, pattern := range []Pattern{PatternRandom, PatternClustered} {
		s, err := NewSpawner(pattern, 0.5)
		if err != nil {
			t.Fatalf("spawner: %v", err)
		}
		ids, err := s.Draw(g, rng)
		if err != nil {
			t.Fatalf("%s: draw: %v", pattern, err)
		}
		if len(ids) != 50 {
			t.Fatalf("%s: len got=%d want=50", pattern, len(ids))
		}
	}
}

func TestClusteredIDsAreSpatiallyCorrelated(t *testing.T) {
	g := buildLattice(t, 400)
	ids, err := ClusteredIDs(g, 200, 42)
	if err != nil {
		t.Fatalf("clustered: %v", err)
	}
	pop := Generate(g)
	if err := pop.ResetStrategies(ids); err != nil {
		t.Fatalf("reset: %v", err)
	}

	// Count cooperator–cooperator links among a cooperator's neighbors. A
	// uniform draw gives about half; patches give noticeably more.
	same, total := 0, 0
	for _, id := range ids {
		for _, nb := range pop.Agent(id).Neighbors {
			total++
			if pop.Agent(nb).Cooperating() {
				same++
			}
		}
	}
	if ratio := float64(same) / float64(total); ratio < 0.6 {
		t.Fatalf("clustered draw not clustered: same-strategy ratio %.3f", ratio)
	}
}

func TestParsePattern(t *testing.T) {
	if p, err := ParsePattern(""); err != nil || p != PatternRandom {
		t.Fatalf("empty pattern: got=%s err=%v", p, err)
	}
	if p, err := ParsePattern("Clustered"); err != nil || p != PatternClustered {
		t.Fatalf("clustered pattern: got=%s err=%v", p, err)
	}
}
