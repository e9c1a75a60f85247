package agents

import (
	"fmt"

	"github.com/talgya/spatial-dilemma/internal/model"
	"github.com/talgya/spatial-dilemma/internal/topology"
)

// Population owns the agent arena for one simulation. It is mutated every
// round (strategies, scores) but never resized.
type Population struct {
	Graph  *topology.Graph
	Agents []Agent

	cooperators int
}

// Generate creates one agent per graph position and wires its neighbor list.
// Every agent starts as a defector with zero score.
func Generate(g *topology.Graph) *Population {
	p := &Population{
		Graph:  g,
		Agents: make([]Agent, g.Len()),
	}
	for id := range p.Agents {
		p.Agents[id] = Agent{
			ID:        id,
			Strategy:  model.Defect,
			Neighbors: g.Neighbors(id),
		}
	}
	return p
}

// Len returns the population size N.
func (p *Population) Len() int {
	return len(p.Agents)
}

// Agent returns a pointer into the arena.
func (p *Population) Agent(id AgentID) *Agent {
	return &p.Agents[id]
}

// ResetStrategies makes every agent in ids a cooperator and every other
// agent a defector. Scores and staged strategies are cleared.
func (p *Population) ResetStrategies(ids []AgentID) error {
	for i := range p.Agents {
		a := &p.Agents[i]
		a.Strategy = model.Defect
		a.NextStrategy = model.Defect
		a.Score = 0
	}
	p.cooperators = 0
	for _, id := range ids {
		if id < 0 || id >= len(p.Agents) {
			return model.Configf("initial cooperators", "id %d outside population of %d", id, len(p.Agents))
		}
		a := &p.Agents[id]
		if a.Strategy == model.Cooperate {
			continue
		}
		a.Strategy = model.Cooperate
		a.NextStrategy = model.Cooperate
		p.cooperators++
	}
	return nil
}

// CommitStrategies applies every staged NextStrategy and refreshes the
// cooperator count.
func (p *Population) CommitStrategies() {
	count := 0
	for i := range p.Agents {
		a := &p.Agents[i]
		a.Strategy = a.NextStrategy
		if a.Strategy == model.Cooperate {
			count++
		}
	}
	p.cooperators = count
}

// Cooperators returns the number of agents playing Cooperate.
func (p *Population) Cooperators() int {
	return p.cooperators
}

// CooperationFraction returns Cooperators()/N.
func (p *Population) CooperationFraction() float64 {
	if len(p.Agents) == 0 {
		return 0
	}
	return float64(p.cooperators) / float64(len(p.Agents))
}

// Clone returns an independent copy of the agent state. Neighbor lists stay
// shared with the topology.
func (p *Population) Clone() *Population {
	c := &Population{
		Graph:       p.Graph,
		Agents:      make([]Agent, len(p.Agents)),
		cooperators: p.cooperators,
	}
	copy(c.Agents, p.Agents)
	return c
}

func (p *Population) String() string {
	return fmt.Sprintf("Population(n=%d, cooperators=%d)", len(p.Agents), p.cooperators)
}
