// Engine ties the topology, the agent arena, the update rule, and the random
// source together and runs parameter points on them.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/talgya/spatial-dilemma/internal/agents"
	"github.com/talgya/spatial-dilemma/internal/entropy"
	"github.com/talgya/spatial-dilemma/internal/logging"
	"github.com/talgya/spatial-dilemma/internal/model"
	"github.com/talgya/spatial-dilemma/internal/topology"
)

// Config describes one ready-to-run engine.
type Config struct {
	Population    int           `json:"population"`
	AverageDegree int           `json:"average_degree"`
	Topology      topology.Kind `json:"topology"`
	Rule          RuleKind      `json:"rule"`
	Kappa         float64       `json:"kappa"`  // Fermi noise
	Rewire        float64       `json:"rewire"` // Watts–Strogatz rewiring probability

	MaxRounds int     `json:"max_rounds"`
	Window    int     `json:"window"`
	Epsilon   float64 `json:"epsilon"`

	InitialFraction float64        `json:"initial_fraction"`
	InitialPattern  agents.Pattern `json:"initial_pattern"`

	// Seed 0 reseeds every episode from crypto entropy.
	Seed int64 `json:"seed"`

	Grid Grid `json:"grid"`
}

// DefaultConfig mirrors the reference sweep: 100 agents on a lattice,
// Imitation-Max, 11×11 grid.
func DefaultConfig() Config {
	return Config{
		Population:      100,
		AverageDegree:   8,
		Topology:        topology.Lattice,
		Rule:            RuleImitationMax,
		Kappa:           DefaultKappa,
		Rewire:          topology.DefaultRewire,
		MaxRounds:       DefaultMaxRounds,
		Window:          DefaultWindow,
		Epsilon:         DefaultEpsilon,
		InitialFraction: 0.5,
		InitialPattern:  agents.PatternRandom,
		Grid:            DefaultGrid(),
	}
}

// Validate checks the settings that do not depend on building the graph.
func (c Config) Validate() error {
	if c.Population <= 0 {
		return model.Configf("population", "must be positive, got %d", c.Population)
	}
	if c.MaxRounds < 1 {
		return model.Configf("max rounds", "must be at least 1, got %d", c.MaxRounds)
	}
	if c.Window < 2 {
		return model.Configf("window", "must be at least 2, got %d", c.Window)
	}
	if !(c.Epsilon > 0) || math.IsInf(c.Epsilon, 0) {
		return model.Configf("epsilon", "must be a positive finite number, got %g", c.Epsilon)
	}
	return c.Grid.Validate()
}

// Engine is one simulation instance. It is not safe for concurrent use: a
// single controller drives its agent arena.
type Engine struct {
	cfg     Config
	graph   *topology.Graph
	pop     *agents.Population
	rule    UpdateRule
	spawner *agents.Spawner
	source  *entropy.Source
	rng     *rand.Rand // Reseeded from the main stream at every point
	policy  policy

	// pointSeed is the generator seed of the next Run. A trace draws it
	// early so that it describes the run Run is about to play.
	pointSeed int64
	seeded    bool

	episode  int
	initial  []agents.AgentID
	warnings []error

	// Callbacks, populated during setup. Both may be nil.
	OnRound func(p model.Params, round int, fc float64) // After every round of Run
	OnPoint func(r model.EpisodeResult)                 // After every parameter point
}

// New builds the topology and the population and draws the initial
// cooperators of episode 0.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rule, err := NewRule(cfg.Rule, cfg.Kappa)
	if err != nil {
		return nil, err
	}
	spawner, err := agents.NewSpawner(cfg.InitialPattern, cfg.InitialFraction)
	if err != nil {
		return nil, err
	}

	source := entropy.NewSource(cfg.Seed)
	graph, err := topology.Build(cfg.Topology, cfg.Population, cfg.AverageDegree, topology.Options{
		Rewire: cfg.Rewire,
		Rand:   source.Rand(),
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		graph:   graph,
		pop:     agents.Generate(graph),
		rule:    rule,
		spawner: spawner,
		source:  source,
		rng:     rand.New(rand.NewSource(1)),
		policy: policy{
			maxRounds: cfg.MaxRounds,
			window:    cfg.Window,
			epsilon:   cfg.Epsilon,
		},
	}

	e.noteIsolated(graph.Isolated())

	if err := e.BeginEpisode(0); err != nil {
		return nil, err
	}

	slog.Debug("engine ready",
		"topology", graph.Kind,
		"agents", graph.Len(),
		"edges", graph.EdgeCount(),
		"avg_degree", fmt.Sprintf("%.2f", graph.AverageDegree()),
		"rule", rule.Name(),
		"seeded", source.Fixed(),
	)
	return e, nil
}

// noteIsolated records a DegenerateStateWarning when some agents have no
// neighbors. It is not an error: those agents keep their strategy forever.
func (e *Engine) noteIsolated(isolated []int) {
	if len(isolated) == 0 {
		return
	}
	e.warnings = append(e.warnings, &model.DegenerateStateWarning{Isolated: isolated})
	slog.Warn("degenerate topology", "kind", e.cfg.Topology, "isolated", len(isolated))
}

// Config returns the settings the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Graph returns the shared, read-only topology.
func (e *Engine) Graph() *topology.Graph {
	return e.graph
}

// Population exposes the agent arena for inspection between runs.
func (e *Engine) Population() *agents.Population {
	return e.pop
}

// Rule returns the update rule in use.
func (e *Engine) Rule() UpdateRule {
	return e.rule
}

// Warnings returns non-fatal diagnostics such as *model.DegenerateStateWarning.
func (e *Engine) Warnings() []error {
	return e.warnings
}

// EpisodeIndex returns the index of the current episode.
func (e *Engine) EpisodeIndex() int {
	return e.episode
}

// InitialCooperators returns a copy of the current episode's draw.
func (e *Engine) InitialCooperators() []agents.AgentID {
	return append([]agents.AgentID(nil), e.initial...)
}

// BeginEpisode reseeds the random source and draws a fresh
// initial-cooperator set that every point of the episode starts from.
func (e *Engine) BeginEpisode(episode int) error {
	e.source.Reseed(episode)
	e.seeded = false
	ids, err := e.spawner.Draw(e.graph, e.source.Rand())
	if err != nil {
		return err
	}
	e.episode = episode
	e.initial = ids
	return nil
}

// SetInitialCooperators replaces the current draw with ids.
func (e *Engine) SetInitialCooperators(ids []agents.AgentID) error {
	for _, id := range ids {
		if id < 0 || id >= e.graph.Len() {
			return model.Configf("initial cooperators", "id %d outside population of %d", id, e.graph.Len())
		}
	}
	e.initial = append([]agents.AgentID(nil), ids...)
	return nil
}

// Run plays one parameter point from the episode's initial state.
func (e *Engine) Run(p model.Params) (model.EpisodeResult, error) {
	if err := validParams(p); err != nil {
		return model.EpisodeResult{}, err
	}
	if err := e.pop.ResetStrategies(e.initial); err != nil {
		return model.EpisodeResult{}, err
	}

	var observe roundFunc
	tracing := slog.Default().Enabled(context.Background(), logging.LevelTrace)
	if e.OnRound != nil || tracing {
		observe = func(round int, fc float64) bool {
			if tracing {
				slog.Log(context.Background(), logging.LevelTrace, "round finished", "point", p, "round", round, "fc", fc)
			}
			if e.OnRound != nil {
				e.OnRound(p, round, fc)
			}
			return true
		}
	}

	e.rng.Seed(e.nextPointSeed(true))
	result := play(e.pop, e.rule, e.rng, p, e.policy, observe)
	result.Episode = e.episode

	slog.Debug("point finished",
		"episode", e.episode,
		"dg", fmt.Sprintf("%.1f", p.Dg),
		"dr", fmt.Sprintf("%.1f", p.Dr),
		"rounds", result.Rounds,
		"outcome", result.Outcome,
		"fc", fmt.Sprintf("%.3f", result.Fc),
	)
	if e.OnPoint != nil {
		e.OnPoint(result)
	}
	return result, nil
}

// nextPointSeed returns the seed the next Run plays with, drawing it from
// the episode stream on first use. take consumes it; otherwise later calls
// keep returning the same value.
func (e *Engine) nextPointSeed(take bool) int64 {
	if !e.seeded {
		e.pointSeed = e.source.Rand().Int63()
		e.seeded = true
	}
	if take {
		e.seeded = false
	}
	return e.pointSeed
}

func validParams(p model.Params) error {
	if math.IsNaN(p.Dg) || p.Dg < 0 || p.Dg > 1 {
		return model.Configf("Dg", "must be in [0,1], got %g", p.Dg)
	}
	if math.IsNaN(p.Dr) || p.Dr < 0 || p.Dr > 1 {
		return model.Configf("Dr", "must be in [0,1], got %g", p.Dr)
	}
	return nil
}
