// Package engine runs the spatial dilemma: payoff rounds, strategy updates,
// and the per-point convergence policy, swept over the (Dg, Dr) grid.
package engine

import (
	"math"
	"math/rand"

	"github.com/talgya/spatial-dilemma/internal/agents"
	"github.com/talgya/spatial-dilemma/internal/model"
)

// Round schedule defaults.
const (
	DefaultMaxRounds = 3000  // t_max
	DefaultWindow    = 100   // Rounds considered by the stability test
	DefaultEpsilon   = 0.001 // Relative stability threshold
)

// policy holds the termination rules of one parameter-point run.
type policy struct {
	maxRounds int
	window    int
	epsilon   float64
}

// roundFunc observes the cooperation fraction after each round; round 0 is
// the initial state. Returning false abandons the run.
type roundFunc func(round int, fc float64) bool

// play drives one parameter point from Init to a terminal state on pop.
// pop must already hold the initial strategies. An abandoned run returns
// with a zero Outcome.
//
// Terminal checks run in a fixed order every round: Absorbed, then
// Converged, then TimedOut. Absorbed short-circuits the relative test, so
// Converged never divides by a zero fraction.
func play(pop *agents.Population, rule UpdateRule, rng *rand.Rand, params model.Params, pol policy, observe roundFunc) model.EpisodeResult {
	m := params.Matrix()
	result := model.EpisodeResult{Dg: params.Dg, Dr: params.Dr}

	history := make([]float64, 0, pol.maxRounds+1)
	history = append(history, pop.CooperationFraction())
	if observe != nil && !observe(0, history[0]) {
		return result
	}

	for t := 1; t <= pol.maxRounds; t++ {
		Accumulate(pop, m)
		Update(rule, pop, rng)

		fc := pop.CooperationFraction()
		history = append(history, fc)
		result.Rounds = t
		if observe != nil && !observe(t, fc) {
			return result
		}

		if c := pop.Cooperators(); c == 0 || c == pop.Len() {
			result.Fc = fc
			result.Outcome = model.OutcomeAbsorbed
			return result
		}
		if t >= pol.window && stable(history, t, pol) {
			result.Fc = fc
			result.Outcome = model.OutcomeConverged
			return result
		}
		if t == pol.maxRounds {
			result.Fc = mean(history[max(0, t-pol.window+1) : t+1])
			result.Outcome = model.OutcomeTimedOut
			return result
		}
	}

	// Only reached with a zero round budget.
	result.Fc = history[0]
	result.Outcome = model.OutcomeTimedOut
	return result
}

// stable compares fc[t] with the mean of fc[t-window .. t-2].
func stable(history []float64, t int, pol policy) bool {
	ref := mean(history[t-pol.window : t-1])
	fc := history[t]
	return math.Abs(ref-fc)/fc < pol.epsilon
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
