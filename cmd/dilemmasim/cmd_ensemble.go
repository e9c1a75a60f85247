package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/spatial-dilemma/internal/model"
	"github.com/talgya/spatial-dilemma/internal/results"
)

func newEnsembleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ensemble",
		Short: "Average Fc over episodes and report the sample variance",
		Long: `Ensemble aggregates every episode of a stored run per (Dg, Dr) point. By
default it reads the latest run in the database; --run selects another one.
With --from-csv it reads phase_diagram{0..episodes-1}.csv from a directory
instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var points []model.EnsemblePoint
			if dir, _ := cmd.Flags().GetString("from-csv"); dir != "" {
				points, err = results.LoadEnsemble(dir, cfg.Sweep.Episodes)
				if err != nil {
					return err
				}
			} else {
				db, err := openDB(cfg)
				if err != nil {
					return err
				}
				if db == nil {
					return errors.New("no database configured; use --db or --from-csv")
				}
				defer db.Close()

				runID, _ := cmd.Flags().GetString("run")
				if runID == "" {
					last, err := db.LastRun()
					if err != nil {
						return err
					}
					runID = last.ID
				}
				points, err = db.Ensemble(runID)
				if err != nil {
					return err
				}
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(points)
			}

			out := cmd.OutOrStdout()
			if path, _ := cmd.Flags().GetString("output"); path != "" {
				file, err := os.Create(path)
				if err != nil {
					return err
				}
				defer file.Close()
				out = file
			}
			if err := results.WriteEnsembleCSV(out, points); err != nil {
				return fmt.Errorf("write ensemble: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().String("run", "", "Run id (default: latest run)")
	cmd.Flags().String("from-csv", "", "Read phase diagrams from this directory instead of the database")
	cmd.Flags().Int("episodes", 0, "Number of phase_diagram files to read with --from-csv")
	cmd.Flags().String("output", "", "Write the CSV to this file instead of stdout")
	return cmd
}
