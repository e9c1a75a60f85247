// Payoff accounting: every agent plays one game against each neighbor.
package engine

import (
	"github.com/talgya/spatial-dilemma/internal/agents"
	"github.com/talgya/spatial-dilemma/internal/model"
)

// Accumulate resets every score and adds the payoff of the focal agent's
// game against each neighbor. Agents without neighbors score 0.
func Accumulate(pop *agents.Population, m model.Matrix) {
	for i := range pop.Agents {
		focal := &pop.Agents[i]
		focal.Score = 0
		for _, nb := range focal.Neighbors {
			focal.Score += m.Payoff(focal.Strategy, pop.Agents[nb].Strategy)
		}
	}
}
