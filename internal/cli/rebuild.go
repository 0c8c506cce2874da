package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/engine"
	pginfra "live-quiz-service/internal/infra/postgres"
)

// NewRebuildCmd regenerates the durable result rows for one session from
// its persisted participant rows. Meant for recovery after a crash or a
// failed end-of-session sync once the process that held the session is gone.
func NewRebuildCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild <session-id>",
		Short: "Regenerate durable result rows for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(cmd.Context(), *configPath, args[0])
		},
	}
}

func runRebuild(ctx context.Context, configPath, sessionID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	sessionLog := pginfra.NewSessionLog(pool)
	results := pginfra.NewResultStore(pool)
	retries := uint64(config.IntOr(cfg.Engine.PersistMaxRetries, 5))
	syncer := engine.NewSyncer(results, sessionLog, retries, logger, nil)

	row, err := sessionLog.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := syncer.Rebuild(ctx, sessionID, row.QuizID, nil); err != nil {
		return err
	}
	log.Printf("results rebuilt for session %s", sessionID)
	return nil
}
