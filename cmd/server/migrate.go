package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fossbin/propease/internal/config"
	"github.com/fossbin/propease/internal/database"
	"github.com/fossbin/propease/internal/logger"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply (up) or roll back one (down) schema migration",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(database.Up), string(database.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.Store.Driver != config.StorePostgres {
				return fmt.Errorf("migrations require STORE_DRIVER=%s", config.StorePostgres)
			}
			log := logger.New(cfg.Server.Env)

			db, err := database.NewPostgresPool(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.Store.MigrationsDir
			}
			version, err := db.Migrate(database.Direction(args[0]), dir)
			if err != nil {
				return err
			}
			log.Info("Migration complete", logger.Fields{
				"direction": args[0],
				"version":   version,
			})
			return nil
		},
	}
	cmd.Flags().String("dir", "", "read migrations from this directory instead of the embedded set")
	return cmd
}
