// Strategy update rules. Every rule stages NextStrategy for all agents from
// the settled scores of the round, then the population commits in one pass.
package engine

import (
	"math"
	"math/rand"
	"strings"

	"github.com/talgya/spatial-dilemma/internal/agents"
	"github.com/talgya/spatial-dilemma/internal/model"
)

// RuleKind names an update rule.
type RuleKind string

const (
	RuleImitationMax  RuleKind = "im"
	RulePairwiseFermi RuleKind = "pf"
)

// ParseRule accepts "im", "pf", and the long names.
func ParseRule(s string) (RuleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "im", "imitation-max", "imitation_max":
		return RuleImitationMax, nil
	case "pf", "pairwise-fermi", "pairwise_fermi", "fermi":
		return RulePairwiseFermi, nil
	default:
		return "", model.Configf("update rule", "unknown rule %q", s)
	}
}

// DefaultKappa is the Fermi noise used by the reference sweeps.
const DefaultKappa = 0.1

// UpdateRule decides every agent's next strategy.
type UpdateRule interface {
	Name() string
	// Stage writes NextStrategy for every agent. It must read only
	// Strategy and Score, never another agent's NextStrategy.
	Stage(pop *agents.Population, rng *rand.Rand)
}

// NewRule builds the rule for kind.
func NewRule(kind RuleKind, kappa float64) (UpdateRule, error) {
	switch kind {
	case RuleImitationMax:
		return ImitationMax{}, nil
	case RulePairwiseFermi:
		if kappa <= 0 || math.IsNaN(kappa) || math.IsInf(kappa, 0) {
			return nil, model.Configf("kappa", "must be a positive finite number, got %g", kappa)
		}
		return PairwiseFermi{Kappa: kappa}, nil
	default:
		return nil, model.Configf("update rule", "unknown rule %q", kind)
	}
}

// Update stages with rule, then commits every agent at once.
func Update(rule UpdateRule, pop *agents.Population, rng *rand.Rand) {
	rule.Stage(pop, rng)
	pop.CommitStrategies()
}

// ImitationMax copies the best-scoring neighbor when it strictly outscores
// the focal agent. Ties between neighbors go to the first in list order.
type ImitationMax struct{}

func (ImitationMax) Name() string { return "imitation-max" }

func (ImitationMax) Stage(pop *agents.Population, _ *rand.Rand) {
	for i := range pop.Agents {
		focal := &pop.Agents[i]
		focal.NextStrategy = focal.Strategy
		if len(focal.Neighbors) == 0 {
			continue
		}

		best := &pop.Agents[focal.Neighbors[0]]
		for _, nb := range focal.Neighbors[1:] {
			if cand := &pop.Agents[nb]; cand.Score > best.Score {
				best = cand
			}
		}
		if best.Score > focal.Score {
			focal.NextStrategy = best.Strategy
		}
	}
}

// PairwiseFermi compares the focal agent with one random neighbor and
// adopts its strategy with the Fermi probability of the score gap.
type PairwiseFermi struct {
	Kappa float64
}

func (PairwiseFermi) Name() string { return "pairwise-fermi" }

func (r PairwiseFermi) Stage(pop *agents.Population, rng *rand.Rand) {
	for i := range pop.Agents {
		focal := &pop.Agents[i]
		focal.NextStrategy = focal.Strategy
		if len(focal.Neighbors) == 0 {
			continue
		}

		opp := &pop.Agents[focal.Neighbors[rng.Intn(len(focal.Neighbors))]]
		if opp.Strategy == focal.Strategy {
			continue
		}
		if rng.Float64() < FermiProbability(focal.Score, opp.Score, r.Kappa) {
			focal.NextStrategy = opp.Strategy
		}
	}
}

// FermiProbability is 1 / (1 + exp((focal - opponent) / kappa)).
func FermiProbability(focal, opponent, kappa float64) float64 {
	return 1 / (1 + math.Exp((focal-opponent)/kappa))
}
