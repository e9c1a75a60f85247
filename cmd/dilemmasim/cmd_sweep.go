package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/spatial-dilemma/internal/engine"
	"github.com/talgya/spatial-dilemma/internal/model"
	"github.com/talgya/spatial-dilemma/internal/persistence"
	"github.com/talgya/spatial-dilemma/internal/results"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Sweep the (Dg, Dr) grid for one or more episodes",
		Long: `Sweep runs every (Dg, Dr) point of the grid, Dr outer and Dg inner, once per
episode. Each episode draws a fresh set of initial cooperators. Results are
written to phase_diagram{episode}.csv in the output directory and, unless
--no-db is set, to the results database.

Interrupting a sweep stops after the current point; completed points are kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ec, err := cfg.Engine()
			if err != nil {
				return err
			}
			eng, err := engine.New(ec)
			if err != nil {
				return err
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			var rec *persistence.Recorder
			var run persistence.Run
			if db != nil {
				defer db.Close()
				run, err = persistence.NewRun(ec, cfg.Sweep.Episodes)
				if err != nil {
					return err
				}
				rec, err = db.NewRecorder(run, len(ec.Grid.Points()))
				if err != nil {
					return err
				}
			}

			perEpisode := len(ec.Grid.Points())
			var (
				pending []model.EpisodeResult
				files   []string
			)
			flushCSV := func() error {
				if len(pending) == 0 {
					return nil
				}
				path, err := results.WritePhaseDiagram(cfg.Storage.OutputDir, pending[0].Episode, pending)
				if err != nil {
					return fmt.Errorf("write phase diagram: %w", err)
				}
				files = append(files, path)
				pending = pending[:0]
				return nil
			}

			start := time.Now()
			total := 0
			sweepErr := eng.Sweep(cmd.Context(), cfg.Sweep.Episodes, func(r model.EpisodeResult) error {
				total++
				pending = append(pending, r)
				if rec != nil {
					if err := rec.Add(r); err != nil {
						return err
					}
				}
				if len(pending) == perEpisode {
					return flushCSV()
				}
				return nil
			})

			// Keep whatever was computed, even on interruption.
			if err := flushCSV(); err != nil {
				return err
			}
			if rec != nil {
				if err := rec.Flush(); err != nil {
					return err
				}
			}
			if sweepErr != nil {
				if errors.Is(sweepErr, context.Canceled) {
					slog.Warn("sweep interrupted", "points", total)
				}
				return sweepErr
			}

			summary := map[string]any{
				"points":  total,
				"files":   files,
				"elapsed": time.Since(start).Round(time.Millisecond).String(),
			}
			if db != nil {
				summary["run"] = run.ID
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s points in %s, %d file(s) in %s\n",
				humanize.Comma(int64(total)), summary["elapsed"], len(files), cfg.Storage.OutputDir)
			if db != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s saved to %s\n", run.ID, cfg.Storage.DBPath)
			}
			return nil
		},
	}

	addSimulationFlags(cmd)
	cmd.Flags().Int("episodes", 0, "Number of episodes")
	cmd.Flags().Float64("grid-min", 0, "Lowest Dg/Dr value")
	cmd.Flags().Float64("grid-max", 0, "Highest Dg/Dr value")
	cmd.Flags().Float64("grid-step", 0, "Grid spacing")
	cmd.Flags().String("out", "", "Output directory for phase_diagram CSV files")
	cmd.Flags().Bool("no-db", false, "Do not write results to the database")
	return cmd
}
