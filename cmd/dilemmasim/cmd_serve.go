package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/talgya/spatial-dilemma/internal/api"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over a read-only HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			if db == nil {
				return errors.New("serve needs a database; set --db or storage.db_path")
			}
			defer db.Close()

			srv := &api.Server{
				DB:         db,
				Port:       cfg.API.Port,
				Version:    version,
				RateLimit:  cfg.API.RateLimit,
				RateWindow: cfg.API.RateWindow,
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().Int("port", 0, "Listen port")
	return cmd
}
