package cli

import (
	"context"
	"fmt"
	"os"

	"speak-assessment-service/internal/config"
	pgloader "speak-assessment-service/internal/infra/postgres"
	"speak-assessment-service/internal/logging"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads YAML question pools into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load question pools into Postgres",
		Long:  "Validates the pools from --file (or the embedded catalog) and upserts one row per section.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML pools file; defaults to pools.file, then the embedded catalog")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
		return err
	}
	if file == "" {
		file = cfg.Pools.File
	}
	source, err := catalogLoader(file)
	if err != nil {
		return err
	}

	db, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	target := pgloader.NewPoolLoader(db)
	for _, pool := range source.Pools() {
		if err := target.SavePool(ctx, pool); err != nil {
			return err
		}
		logger.Info("pool seeded", "section", string(pool.Section), "questions", len(pool.Questions))
	}
	return nil
}
