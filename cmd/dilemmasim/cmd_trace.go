package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/spatial-dilemma/internal/engine"
	"github.com/talgya/spatial-dilemma/internal/persistence"
	"github.com/talgya/spatial-dilemma/internal/results"
)

func newTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Record Fc round by round for one (Dg, Dr) point",
		Long: `Trace replays one parameter point on a private copy of the population and
writes every (time, Fc) pair to time_evolution_Dg_{Dg}_Dr_{Dr}.csv. With the
same flags it follows the run that "run" reports. The trace is also stored in
the results database unless --no-db is set.`,
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
			p, err := paramsFromFlags(cmd)
			if err != nil {
				return err
			}

			episode, _ := cmd.Flags().GetInt("episode")
			if episode != 0 {
				if err := eng.BeginEpisode(episode); err != nil {
					return err
				}
			}

			points, result, err := eng.Replay(p)
			if err != nil {
				return err
			}
			path, err := results.WriteTraceFile(cfg.Storage.OutputDir, p, points)
			if err != nil {
				return fmt.Errorf("write trace: %w", err)
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			runID := ""
			if db != nil {
				defer db.Close()
				run, err := persistence.NewRun(ec, 1)
				if err != nil {
					return err
				}
				if err := db.SaveRun(run); err != nil {
					return err
				}
				if err := db.SaveTrace(run.ID, p, points); err != nil {
					return fmt.Errorf("save trace: %w", err)
				}
				runID = run.ID
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"file":   path,
					"run":    runID,
					"result": result,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rounds, Fc=%.3f (%s), written to %s\n",
				p, result.Rounds, result.Fc, result.Outcome, path)
			return nil
		},
	}

	addSimulationFlags(cmd)
	addParamFlags(cmd)
	cmd.Flags().Int("episode", 0, "Episode index whose initial draw is used")
	cmd.Flags().String("out", "", "Output directory for the trace CSV")
	cmd.Flags().Bool("no-db", false, "Do not write the trace to the database")
	return cmd
}
