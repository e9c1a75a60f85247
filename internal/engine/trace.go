package engine

import (
	"iter"
	"math/rand"

	"github.com/talgya/spatial-dilemma/internal/model"
)

// Trace returns the (round, Fc) sequence of one parameter point, starting
// at round 0. It follows the run that the next Run(p) call plays: same
// initial draw, same generator seed. The rounds happen on a private copy of
// the agent arena, so tracing never changes what Run or Sweep produce.
//
// The sequence is lazy and finite. Ranging over it again replays the same
// rounds: the initial draw and the generator seed are fixed when Trace is
// called.
func (e *Engine) Trace(p model.Params) (iter.Seq2[int, float64], error) {
	if err := validParams(p); err != nil {
		return nil, err
	}
	initial := e.InitialCooperators()
	seed := e.nextPointSeed(false)

	return func(yield func(int, float64) bool) {
		pop := e.pop.Clone()
		if err := pop.ResetStrategies(initial); err != nil {
			return
		}
		rng := rand.New(rand.NewSource(seed))
		play(pop, e.rule, rng, p, e.policy, yield)
	}, nil
}

// Replay plays the run Trace describes and returns both the recorded rounds
// and the terminal result, which equals what the next Run(p) reports.
func (e *Engine) Replay(p model.Params) ([]model.TracePoint, model.EpisodeResult, error) {
	if err := validParams(p); err != nil {
		return nil, model.EpisodeResult{}, err
	}
	pop := e.pop.Clone()
	if err := pop.ResetStrategies(e.initial); err != nil {
		return nil, model.EpisodeResult{}, err
	}
	rng := rand.New(rand.NewSource(e.nextPointSeed(false)))

	var points []model.TracePoint
	result := play(pop, e.rule, rng, p, e.policy, func(round int, fc float64) bool {
		points = append(points, model.TracePoint{Round: round, Fc: fc})
		return true
	})
	result.Episode = e.episode
	return points, result, nil
}

// Collect drains a trace into TracePoints.
func Collect(seq iter.Seq2[int, float64]) []model.TracePoint {
	var out []model.TracePoint
	for round, fc := range seq {
		out = append(out, model.TracePoint{Round: round, Fc: fc})
	}
	return out
}
