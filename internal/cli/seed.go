package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/infra/postgres"
	"quiz-attempt-service/internal/logger"
)

// NewSeedCmd loads the catalog YAML file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert quizzes and questions from a YAML catalog into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if file != "" {
				cfg.Catalog.SeedFile = file
			}
			log, err := logger.New(cfg.Env)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return runSeed(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog YAML file (defaults to catalog.seed_file)")
	return cmd
}

func runSeed(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	catalog, err := memory.ReadCatalogFile(cfg.Catalog.SeedFile)
	if err != nil {
		return err
	}
	if err := runMigrations(ctx, cfg, log); err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres.URL, postgres.PoolConfig{
		MaxConns:        cfg.Postgres.MaxConns,
		MaxConnLifetime: config.TTLDuration(cfg.Postgres.MaxConnLifetime, 30*time.Minute),
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	err = postgres.NewTransactor(pool).WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		loader := postgres.NewCatalogLoader(tx)
		for _, q := range catalog.Questions {
			if err := loader.SaveQuestion(ctx, q); err != nil {
				return err
			}
		}
		for _, quiz := range catalog.Quizzes {
			if err := loader.SaveQuiz(ctx, quiz.WithDefaults()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	log.Info("catalog seeded",
		zap.String("file", cfg.Catalog.SeedFile),
		zap.Int("quizzes", len(catalog.Quizzes)),
		zap.Int("questions", len(catalog.Questions)),
	)
	return nil
}
