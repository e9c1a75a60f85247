package engine

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/talgya/spatial-dilemma/internal/agents"
	"github.com/talgya/spatial-dilemma/internal/model"
	"github.com/talgya/spatial-dilemma/internal/topology"
)

// frozenRule never changes a strategy.
type frozenRule struct{}

func (frozenRule) Name() string { return "frozen" }

func (frozenRule) Stage(pop *agents.Population, _ *rand.Rand) {
	for i := range pop.Agents {
		pop.Agents[i].NextStrategy = pop.Agents[i].Strategy
	}
}

// flipRule toggles agent 0 every round.
type flipRule struct{}

func (flipRule) Name() string { return "flip" }

func (flipRule) Stage(pop *agents.Population, rng *rand.Rand) {
	frozenRule{}.Stage(pop, rng)
	a := &pop.Agents[0]
	if a.Strategy == model.Cooperate {
		a.NextStrategy = model.Defect
	} else {
		a.NextStrategy = model.Cooperate
	}
}

// allDefectRule turns everybody into a defector.
type allDefectRule struct{}

func (allDefectRule) Name() string { return "all-defect" }

func (allDefectRule) Stage(pop *agents.Population, _ *rand.Rand) {
	for i := range pop.Agents {
		pop.Agents[i].NextStrategy = model.Defect
	}
}

func firstHalf(n int) []int {
	ids := make([]int, n/2)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

func defaultPolicy() policy {
	return policy{maxRounds: DefaultMaxRounds, window: DefaultWindow, epsilon: DefaultEpsilon}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 42
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestPlayConvergesAfterWindow(t *testing.T) {
	pop := newPopulation(t, topology.Lattice, 100)
	if err := pop.ResetStrategies(firstHalf(100)); err != nil {
		t.Fatalf("reset: %v", err)
	}
	r := play(pop, frozenRule{}, nil, model.Params{Dg: 0.3, Dr: 0.3}, defaultPolicy(), nil)
	if r.Outcome != model.OutcomeConverged {
		t.Fatalf("outcome got=%s want=converged", r.Outcome)
	}
	if r.Rounds != DefaultWindow {
		t.Fatalf("rounds got=%d want=%d", r.Rounds, DefaultWindow)
	}
	if r.Fc != 0.5 {
		t.Fatalf("fc got=%v want=0.5", r.Fc)
	}
}

func TestPlayTimedOutAveragesTrailingWindow(t *testing.T) {
	pop := newPopulation(t, topology.Lattice, 100)
	if err := pop.ResetStrategies(firstHalf(100)); err != nil {
		t.Fatalf("reset: %v", err)
	}
	pol := defaultPolicy()
	pol.maxRounds = 150

	var seen []float64
	r := play(pop, flipRule{}, nil, model.Params{}, pol, func(_ int, fc float64) bool {
		seen = append(seen, fc)
		return true
	})
	if r.Outcome != model.OutcomeTimedOut {
		t.Fatalf("outcome got=%s want=timed_out", r.Outcome)
	}
	if r.Rounds != 150 || len(seen) != 151 {
		t.Fatalf("rounds got=%d observed=%d", r.Rounds, len(seen))
	}
	if math.Abs(r.Fc-0.495) > 1e-12 {
		t.Fatalf("fc got=%v want=0.495 (mean of rounds 51..150)", r.Fc)
	}
}

func TestPlayTimedOutBeforeWindowAveragesEverything(t *testing.T) {
	pop := newPopulation(t, topology.Lattice, 100)
	if err := pop.ResetStrategies(firstHalf(100)); err != nil {
		t.Fatalf("reset: %v", err)
	}
	pol := defaultPolicy()
	pol.maxRounds = 3

	// Rounds 0..3: 0.5, 0.49, 0.5, 0.49, all inside the window.
	r := play(pop, flipRule{}, nil, model.Params{}, pol, nil)
	if r.Outcome != model.OutcomeTimedOut {
		t.Fatalf("outcome got=%s want=timed_out", r.Outcome)
	}
	want := (0.5 + 0.49 + 0.5 + 0.49) / 4
	if math.Abs(r.Fc-want) > 1e-12 {
		t.Fatalf("fc got=%v want=%v", r.Fc, want)
	}
}

func TestPlayAbsorbedTakesPrecedence(t *testing.T) {
	pop := newPopulation(t, topology.Lattice, 100)
	if err := pop.ResetStrategies(firstHalf(100)); err != nil {
		t.Fatalf("reset: %v", err)
	}
	r := play(pop, allDefectRule{}, nil, model.Params{Dg: 1, Dr: 1}, defaultPolicy(), nil)
	if r.Outcome != model.OutcomeAbsorbed || r.Rounds != 1 || r.Fc != 0 {
		t.Fatalf("got outcome=%s rounds=%d fc=%v; want absorbed at round 1 with fc=0", r.Outcome, r.Rounds, r.Fc)
	}
	if math.IsNaN(r.Fc) {
		t.Fatalf("fc must never be NaN")
	}
}

func TestPlayAllCooperatorsAbsorbImmediately(t *testing.T) {
	everyone := make([]int, 100)
	for i := range everyone {
		everyone[i] = i
	}
	rules := []UpdateRule{ImitationMax{}, PairwiseFermi{Kappa: DefaultKappa}}
	for _, rule := range rules {
		pop := newPopulation(t, topology.Lattice, 100)
		if err := pop.ResetStrategies(everyone); err != nil {
			t.Fatalf("reset: %v", err)
		}
		r := play(pop, rule, rand.New(rand.NewSource(1)), model.Params{Dg: 1, Dr: 1}, defaultPolicy(), nil)
		if r.Outcome != model.OutcomeAbsorbed || r.Rounds != 1 || r.Fc != 1 {
			t.Fatalf("%s: got outcome=%s rounds=%d fc=%v", rule.Name(), r.Outcome, r.Rounds, r.Fc)
		}
	}
}

func TestPlayStopsWhenObserverDeclines(t *testing.T) {
	pop := newPopulation(t, topology.Lattice, 100)
	if err := pop.ResetStrategies(firstHalf(100)); err != nil {
		t.Fatalf("reset: %v", err)
	}
	calls := 0
	r := play(pop, frozenRule{}, nil, model.Params{}, defaultPolicy(), func(round int, _ float64) bool {
		calls++
		return round < 5
	})
	if calls != 6 || r.Rounds != 5 || r.Outcome != 0 {
		t.Fatalf("calls=%d rounds=%d outcome=%d", calls, r.Rounds, r.Outcome)
	}
}

func TestImitationMaxStripesConverge(t *testing.T) {
	e := newTestEngine(t, testConfig())
	if err := e.SetInitialCooperators(firstHalf(100)); err != nil {
		t.Fatalf("set initial: %v", err)
	}

	// Without a dilemma, the striped state settles at 90% cooperation.
	var fcs []float64
	e.OnRound = func(_ model.Params, _ int, fc float64) { fcs = append(fcs, fc) }
	r, err := e.Run(model.Params{Dg: 0, Dr: 0})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if r.Outcome != model.OutcomeConverged || r.Fc != 0.9 || r.Rounds != 102 {
		t.Fatalf("got outcome=%s fc=%v rounds=%d; want converged fc=0.9 at round 102", r.Outcome, r.Fc, r.Rounds)
	}
	if fcs[0] != 0.5 || fcs[1] != 0.7 {
		t.Fatalf("first rounds got=%v", fcs[:2])
	}
}

func TestStrongDilemmaCollapses(t *testing.T) {
	cfg := testConfig()
	for seed := int64(1); seed <= 5; seed++ {
		cfg.Seed = seed
		e := newTestEngine(t, cfg)
		r, err := e.Run(model.Params{Dg: 1, Dr: 1})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if r.Outcome != model.OutcomeAbsorbed || r.Fc != 0 {
			t.Fatalf("seed %d: got outcome=%s fc=%v; want absorbed at 0", seed, r.Outcome, r.Fc)
		}
	}
}

func TestRunRestartsFromEpisodeDraw(t *testing.T) {
	e := newTestEngine(t, testConfig())
	before := e.InitialCooperators()
	if len(before) != 50 {
		t.Fatalf("initial cooperators got=%d want=50", len(before))
	}
	if _, err := e.Run(model.Params{Dg: 1, Dr: 1}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if e.Population().Cooperators() != 0 {
		t.Fatalf("expected the strong dilemma to wipe out cooperation")
	}
	if err := e.Population().ResetStrategies(before); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := e.Population().CooperationFraction(); got != 0.5 {
		t.Fatalf("fraction after reset got=%v want=0.5", got)
	}
	after := e.InitialCooperators()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("run changed the episode draw")
		}
	}
}

func TestRunRejectsOutOfRangeParams(t *testing.T) {
	e := newTestEngine(t, testConfig())
	for _, p := range []model.Params{{Dg: -0.1}, {Dr: 1.5}, {Dg: math.NaN()}} {
		if _, err := e.Run(p); !errors.Is(err, model.ErrConfiguration) {
			t.Fatalf("%v: expected configuration error, got %v", p, err)
		}
	}
}

func TestSameSeedSameResults(t *testing.T) {
	cfg := testConfig()
	cfg.Rule = RulePairwiseFermi
	cfg.MaxRounds = 300

	a := newTestEngine(t, cfg)
	b := newTestEngine(t, cfg)
	for _, p := range []model.Params{{Dg: 0.2, Dr: 0.1}, {Dg: 0.5, Dr: 0.5}} {
		ra, err := a.Run(p)
		if err != nil {
			t.Fatalf("run a: %v", err)
		}
		rb, err := b.Run(p)
		if err != nil {
			t.Fatalf("run b: %v", err)
		}
		if ra != rb {
			t.Fatalf("seeded engines diverged: %+v vs %+v", ra, rb)
		}
	}
}

func TestScaleFreeHasNoIsolatedAgents(t *testing.T) {
	cfg := testConfig()
	cfg.Topology = topology.ScaleFree
	cfg.AverageDegree = 2
	e := newTestEngine(t, cfg)
	// Barabási–Albert graphs are connected, so there is nothing to report.
	if len(e.Warnings()) != 0 {
		t.Fatalf("unexpected warnings %v", e.Warnings())
	}
}

func TestIsolatedAgentsRaiseWarning(t *testing.T) {
	e := newTestEngine(t, testConfig())
	e.noteIsolated(nil)
	if len(e.Warnings()) != 0 {
		t.Fatalf("no isolated agents should leave no warning, got %v", e.Warnings())
	}

	e.noteIsolated([]int{3, 7})
	if len(e.Warnings()) != 1 {
		t.Fatalf("warnings got=%d want=1", len(e.Warnings()))
	}
	var w *model.DegenerateStateWarning
	if !errors.As(e.Warnings()[0], &w) {
		t.Fatalf("warning type got=%T", e.Warnings()[0])
	}
	if len(w.Isolated) != 2 || w.Isolated[0] != 3 || w.Isolated[1] != 7 {
		t.Fatalf("isolated got=%v want=[3 7]", w.Isolated)
	}
	if errors.Is(w, model.ErrConfiguration) {
		t.Fatalf("a degenerate topology must not be a configuration error")
	}

	// The engine still runs.
	if _, err := e.Run(model.Params{Dg: 0.1, Dr: 0.1}); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"population", func(c *Config) { c.Population = 0 }},
		{"max rounds", func(c *Config) { c.MaxRounds = 0 }},
		{"window", func(c *Config) { c.Window = 1 }},
		{"epsilon", func(c *Config) { c.Epsilon = 0 }},
		{"grid", func(c *Config) { c.Grid.Step = 0 }},
		{"grid range", func(c *Config) { c.Grid.Max = 2 }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, model.ErrConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", tc.name, err)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestNewRejectsBadTopology(t *testing.T) {
	cfg := testConfig()
	cfg.Population = 99
	if _, err := New(cfg); !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("expected configuration error for a non-square lattice, got %v", err)
	}
}

func TestGridValues(t *testing.T) {
	values := DefaultGrid().Values()
	if len(values) != 11 {
		t.Fatalf("values got=%d want=11", len(values))
	}
	for i, v := range values {
		if want := float64(i) / 10; v != want {
			t.Fatalf("value %d got=%v want=%v", i, v, want)
		}
	}
	points := Grid{Min: 0, Max: 0.2, Step: 0.1}.Points()
	want := []model.Params{
		{Dg: 0, Dr: 0}, {Dg: 0.1, Dr: 0}, {Dg: 0.2, Dr: 0},
		{Dg: 0, Dr: 0.1}, {Dg: 0.1, Dr: 0.1}, {Dg: 0.2, Dr: 0.1},
		{Dg: 0, Dr: 0.2}, {Dg: 0.1, Dr: 0.2}, {Dg: 0.2, Dr: 0.2},
	}
	for i := range want {
		if points[i] != want[i] {
			t.Fatalf("point %d got=%v want=%v", i, points[i], want[i])
		}
	}
}

func TestSweepOrderAndCount(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRounds = 200
	e := newTestEngine(t, cfg)

	var got []model.EpisodeResult
	err := e.Sweep(context.Background(), 2, func(r model.EpisodeResult) error {
		got = append(got, r)
		return nil
	})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(got) != 242 {
		t.Fatalf("results got=%d want=242", len(got))
	}
	points := cfg.Grid.Points()
	for i, r := range got {
		ep, idx := i/121, i%121
		if r.Episode != ep || r.Params() != points[idx] {
			t.Fatalf("result %d got episode=%d %v want episode=%d %v", i, r.Episode, r.Params(), ep, points[idx])
		}
		if r.Fc < 0 || r.Fc > 1 || r.Outcome == 0 {
			t.Fatalf("result %d malformed: %+v", i, r)
		}
	}
}

func TestSweepStopsOnCancel(t *testing.T) {
	e := newTestEngine(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())

	count := 0
	err := e.Sweep(ctx, 1, func(model.EpisodeResult) error {
		count++
		if count == 3 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if count != 3 {
		t.Fatalf("sink calls got=%d want=3", count)
	}
}

func TestSweepPropagatesSinkError(t *testing.T) {
	e := newTestEngine(t, testConfig())
	boom := errors.New("disk full")
	err := e.Sweep(context.Background(), 1, func(model.EpisodeResult) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestEpisodeDrawsDiffer(t *testing.T) {
	e := newTestEngine(t, testConfig())
	first := e.InitialCooperators()
	if err := e.BeginEpisode(1); err != nil {
		t.Fatalf("begin: %v", err)
	}
	second := e.InitialCooperators()
	same := true
	for i := range first {
		if first[i] != second[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("episodes 0 and 1 drew identical cooperators")
	}
	if err := e.BeginEpisode(0); err != nil {
		t.Fatalf("begin: %v", err)
	}
	again := e.InitialCooperators()
	for i := range first {
		if first[i] != again[i] {
			t.Fatalf("episode 0 draw is not reproducible")
		}
	}
}
