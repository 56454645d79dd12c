package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campusops/lostfound/config"
	"github.com/campusops/lostfound/internal/server"
)

func migrateCmd() *cobra.Command {
	var (
		dir   string
		steps int
	)
	cmd := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Apply database migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := args[0]
			if direction != "up" && direction != "down" {
				return fmt.Errorf("unknown direction: %s", direction)
			}
			cfg := config.LoadConfig(cfgPath)
			return server.Migrate(dir, cfg.Storage.Postgres.DSN(), direction, steps)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "file://migrations", "migrations source")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return cmd
}
