package main

import (
	"github.com/spf13/cobra"

	"github.com/talgya/spatial-dilemma/internal/config"
)

// addSimulationFlags registers the flags that override the simulation
// section of the config.
func addSimulationFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("population", 0, "Number of agents N (a perfect square for the lattice)")
	f.Int("degree", 0, "Average degree k for random topologies")
	f.String("topology", "", "Topology: lattice, ring, regular, complete, ws, ba")
	f.String("rule", "", "Update rule: im (imitation-max) or pf (pairwise-fermi)")
	f.Float64("kappa", 0, "Fermi noise for the pf rule")
	f.Float64("rewire", 0, "Watts-Strogatz rewiring probability")
	f.Int("max-rounds", 0, "Round budget per parameter point")
	f.Int("window", 0, "Rounds in the convergence window")
	f.Float64("epsilon", 0, "Relative convergence threshold")
	f.Float64("fraction", 0, "Initial cooperator fraction")
	f.String("pattern", "", "Initial cooperator pattern: random or clustered")
	f.Int64("seed", 0, "Base seed (0 draws fresh entropy every episode)")
}

// applyFlags copies every flag the user set onto cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	s := &cfg.Simulation

	ints := map[string]*int{
		"population": &s.Population,
		"degree":     &s.Degree,
		"max-rounds": &s.MaxRounds,
		"window":     &s.Window,
		"episodes":   &cfg.Sweep.Episodes,
		"port":       &cfg.API.Port,
	}
	for name, dst := range ints {
		if f.Lookup(name) == nil || !f.Changed(name) {
			continue
		}
		v, err := f.GetInt(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	floats := map[string]*float64{
		"kappa":     &s.Kappa,
		"rewire":    &s.Rewire,
		"epsilon":   &s.Epsilon,
		"fraction":  &s.InitialFraction,
		"grid-min":  &cfg.Sweep.Grid.Min,
		"grid-max":  &cfg.Sweep.Grid.Max,
		"grid-step": &cfg.Sweep.Grid.Step,
	}
	for name, dst := range floats {
		if f.Lookup(name) == nil || !f.Changed(name) {
			continue
		}
		v, err := f.GetFloat64(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	strs := map[string]*string{
		"topology":   &s.Topology,
		"rule":       &s.Rule,
		"pattern":    &s.InitialPattern,
		"db":         &cfg.Storage.DBPath,
		"out":        &cfg.Storage.OutputDir,
		"log-level":  &cfg.Logging.Level,
		"log-format": &cfg.Logging.Format,
	}
	for name, dst := range strs {
		if f.Lookup(name) == nil || !f.Changed(name) {
			continue
		}
		v, err := f.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if f.Lookup("seed") != nil && f.Changed("seed") {
		seed, err := f.GetInt64("seed")
		if err != nil {
			return err
		}
		s.Seed = seed
	}
	if f.Lookup("no-db") != nil {
		if off, _ := f.GetBool("no-db"); off {
			cfg.Storage.DBPath = ""
		}
	}
	return nil
}
