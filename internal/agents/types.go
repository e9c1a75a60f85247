// Package agents provides the agent arena: a flat slice of players indexed by
// id, each wired to its fixed neighbor list from the topology.
package agents

import (
	"github.com/talgya/spatial-dilemma/internal/model"
)

// AgentID is the index of an agent in its population. Stable for the
// agent's lifetime.
type AgentID = int

// Agent is one player on the network.
type Agent struct {
	ID AgentID `json:"id"`

	Strategy     model.Strategy `json:"strategy"`
	NextStrategy model.Strategy `json:"-"` // Staged by an update rule, committed afterwards
	Score        float64        `json:"score"`

	// Neighbors is shared with the topology and never mutated.
	Neighbors []AgentID `json:"neighbors"`
}

// Degree returns the number of neighbors.
func (a *Agent) Degree() int {
	return len(a.Neighbors)
}

// Cooperating reports whether the agent currently plays Cooperate.
func (a *Agent) Cooperating() bool {
	return a.Strategy == model.Cooperate
}
