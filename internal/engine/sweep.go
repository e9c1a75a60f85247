// Parameter sweep: Dr outer, Dg inner, one result per grid point, repeated
// for each episode with a fresh initial-cooperator draw.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/spatial-dilemma/internal/model"
)

// Grid is an inclusive arithmetic range used for both Dg and Dr.
type Grid struct {
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Step float64 `json:"step" yaml:"step"`
}

// DefaultGrid is 0.0 to 1.0 in steps of 0.1 (11 values).
func DefaultGrid() Grid {
	return Grid{Min: 0, Max: 1, Step: 0.1}
}

// Validate checks the grid stays within [0,1] and is non-empty.
func (g Grid) Validate() error {
	if g.Min < 0 || g.Max > 1 || g.Min > g.Max {
		return model.Configf("grid", "range must satisfy 0 <= min <= max <= 1, got [%g, %g]", g.Min, g.Max)
	}
	if !(g.Step > 0) {
		return model.Configf("grid", "step must be positive, got %g", g.Step)
	}
	return nil
}

// Values returns the grid points, rounded to 10 decimals so that 0.1 steps
// land on their nearest float64.
func (g Grid) Values() []float64 {
	count := int(math.Floor((g.Max-g.Min)/g.Step+1e-9)) + 1
	out := make([]float64, count)
	for i := range out {
		out[i] = math.Round((g.Min+float64(i)*g.Step)*1e10) / 1e10
	}
	return out
}

// Points returns every (Dg, Dr) pair in sweep order.
func (g Grid) Points() []model.Params {
	values := g.Values()
	out := make([]model.Params, 0, len(values)*len(values))
	for _, dr := range values {
		for _, dg := range values {
			out = append(out, model.Params{Dg: dg, Dr: dr})
		}
	}
	return out
}

// Episode draws a fresh initial-cooperator set for episode index and sweeps
// the whole grid, returning results in sweep order.
func (e *Engine) Episode(index int) ([]model.EpisodeResult, error) {
	var out []model.EpisodeResult
	err := e.runEpisode(context.Background(), index, func(r model.EpisodeResult) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

// Sweep runs episodes 0..episodes-1 and hands every result to sink as soon
// as it is produced. Cancellation is checked between parameter points, so
// every point handed to sink is complete.
func (e *Engine) Sweep(ctx context.Context, episodes int, sink func(model.EpisodeResult) error) error {
	if episodes < 1 {
		return model.Configf("episodes", "must be at least 1, got %d", episodes)
	}
	start := time.Now()
	points := 0
	counting := func(r model.EpisodeResult) error {
		points++
		return sink(r)
	}

	for ep := 0; ep < episodes; ep++ {
		if err := e.runEpisode(ctx, ep, counting); err != nil {
			return err
		}
	}

	slog.Info("sweep finished",
		"episodes", episodes,
		"points", humanize.Comma(int64(points)),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func (e *Engine) runEpisode(ctx context.Context, index int, sink func(model.EpisodeResult) error) error {
	if err := e.BeginEpisode(index); err != nil {
		return fmt.Errorf("episode %d: %w", index, err)
	}

	start := time.Now()
	var rounds int64
	absorbed, converged, timedOut := 0, 0, 0

	for _, p := range e.cfg.Grid.Points() {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := e.Run(p)
		if err != nil {
			return fmt.Errorf("episode %d %s: %w", index, p, err)
		}
		rounds += int64(r.Rounds)
		switch r.Outcome {
		case model.OutcomeAbsorbed:
			absorbed++
		case model.OutcomeConverged:
			converged++
		case model.OutcomeTimedOut:
			timedOut++
		}
		if err := sink(r); err != nil {
			return fmt.Errorf("episode %d %s: %w", index, p, err)
		}
	}

	slog.Info("episode finished",
		"episode", index,
		"rounds", humanize.Comma(rounds),
		"absorbed", absorbed,
		"converged", converged,
		"timed_out", timedOut,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}
