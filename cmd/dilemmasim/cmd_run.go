package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/spatial-dilemma/internal/engine"
	"github.com/talgya/spatial-dilemma/internal/model"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single (Dg, Dr) point",
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

			r, err := eng.Run(p)
			if err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(r)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s episode=%d Fc=%.3f outcome=%s rounds=%d\n",
				p, r.Episode, r.Fc, r.Outcome, r.Rounds)
			return nil
		},
	}

	addSimulationFlags(cmd)
	addParamFlags(cmd)
	cmd.Flags().Int("episode", 0, "Episode index whose initial draw is used")
	return cmd
}

func addParamFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("dg", 0, "Gamble-intending dilemma strength Dg in [0,1]")
	cmd.Flags().Float64("dr", 0, "Risk-averting dilemma strength Dr in [0,1]")
}

func paramsFromFlags(cmd *cobra.Command) (model.Params, error) {
	dg, err := cmd.Flags().GetFloat64("dg")
	if err != nil {
		return model.Params{}, err
	}
	dr, err := cmd.Flags().GetFloat64("dr")
	if err != nil {
		return model.Params{}, err
	}
	return model.Params{Dg: dg, Dr: dr}, nil
}
