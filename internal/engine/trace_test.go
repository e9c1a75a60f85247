package engine

import (
	"testing"

	"github.com/talgya/spatial-dilemma/internal/model"
)

func pfConfig() Config {
	cfg := testConfig()
	cfg.Rule = RulePairwiseFermi
	cfg.MaxRounds = 250
	return cfg
}

func TestTraceStartsAtInitialState(t *testing.T) {
	e := newTestEngine(t, pfConfig())
	seq, err := e.Trace(model.Params{Dg: 0.3, Dr: 0.3})
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	for round, fc := range seq {
		if round != 0 || fc != 0.5 {
			t.Fatalf("first point got=(%d, %v) want=(0, 0.5)", round, fc)
		}
		break
	}
}

func TestTraceIsRestartable(t *testing.T) {
	e := newTestEngine(t, pfConfig())
	seq, err := e.Trace(model.Params{Dg: 0.4, Dr: 0.2})
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	first := Collect(seq)
	second := Collect(seq)
	if len(first) < 2 || len(first) != len(second) {
		t.Fatalf("trace lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("round %d differs on replay: %+v vs %+v", i, first[i], second[i])
		}
		if first[i].Round != i {
			t.Fatalf("round numbers must be consecutive, got %d at %d", first[i].Round, i)
		}
	}
}

func TestTraceDoesNotDisturbRun(t *testing.T) {
	p := model.Params{Dg: 0.2, Dr: 0.3}

	plain := newTestEngine(t, pfConfig())
	want, err := plain.Run(p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	traced := newTestEngine(t, pfConfig())
	seq, err := traced.Trace(p)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	_ = Collect(seq)
	got, err := traced.Run(p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != want {
		t.Fatalf("tracing changed the run: got=%+v want=%+v", got, want)
	}
}

func TestReplayFollowsRun(t *testing.T) {
	cfg := pfConfig()
	cfg.MaxRounds = 300
	p := model.Params{Dg: 0.3, Dr: 0.3}

	for seed := int64(1); seed <= 5; seed++ {
		cfg.Seed = seed
		replayed := newTestEngine(t, cfg)
		_, got, err := replayed.Replay(p)
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		want, err := newTestEngine(t, cfg).Run(p)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if got != want {
			t.Fatalf("seed %d: replay got=%+v want=%+v", seed, got, want)
		}

		// Replaying first leaves the engine's own run unchanged.
		again, err := replayed.Run(p)
		if err != nil {
			t.Fatalf("run after replay: %v", err)
		}
		if again != want {
			t.Fatalf("seed %d: run after replay got=%+v want=%+v", seed, again, want)
		}
	}
}

func TestTraceFollowsLaterPoints(t *testing.T) {
	cfg := pfConfig()
	first := model.Params{Dg: 0.1, Dr: 0.2}
	second := model.Params{Dg: 0.6, Dr: 0.4}

	e := newTestEngine(t, cfg)
	if _, err := e.Run(first); err != nil {
		t.Fatalf("run: %v", err)
	}
	seq, err := e.Trace(second)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	traced := Collect(seq)

	ref := newTestEngine(t, cfg)
	if _, err := ref.Run(first); err != nil {
		t.Fatalf("run: %v", err)
	}
	var rounds []float64
	ref.OnRound = func(_ model.Params, _ int, fc float64) { rounds = append(rounds, fc) }
	want, err := ref.Run(second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(traced) != want.Rounds+1 || len(rounds) != len(traced) {
		t.Fatalf("trace length got=%d want=%d", len(traced), want.Rounds+1)
	}
	for i := range traced {
		if traced[i].Fc != rounds[i] {
			t.Fatalf("round %d: trace=%v run=%v", i, traced[i].Fc, rounds[i])
		}
	}
}

func TestTraceEarlyBreak(t *testing.T) {
	e := newTestEngine(t, pfConfig())
	seq, err := e.Trace(model.Params{Dg: 0.5, Dr: 0.5})
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	n := 0
	for range seq {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Fatalf("iterations got=%d want=3", n)
	}
}

func TestReplayMatchesTrace(t *testing.T) {
	e := newTestEngine(t, pfConfig())
	p := model.Params{Dg: 0.1, Dr: 0.1}
	points, result, err := e.Replay(p)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(points) != result.Rounds+1 {
		t.Fatalf("points got=%d want=%d", len(points), result.Rounds+1)
	}
	if result.Outcome == 0 {
		t.Fatalf("replay must reach a terminal state")
	}
	seq, err := e.Trace(p)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	traced := Collect(seq)
	for i := range points {
		if points[i] != traced[i] {
			t.Fatalf("round %d: replay=%+v trace=%+v", i, points[i], traced[i])
		}
	}
}

func TestTraceRejectsBadParams(t *testing.T) {
	e := newTestEngine(t, pfConfig())
	if _, err := e.Trace(model.Params{Dg: 2}); err == nil {
		t.Fatalf("expected an error for Dg=2")
	}
}
