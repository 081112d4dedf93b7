package app

import (
	"context"
	"errors"

	"tableside/internal/common/db"
	"tableside/internal/common/logger"
	"tableside/internal/config"
	"tableside/internal/repository"
)

func RunMigrate(ctx context.Context, cfg config.Config) error {
	if cfg.Store.Driver != "postgres" {
		return errors.New("migrate needs store.driver postgres")
	}
	lg := logger.New("migrate")
	conn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := repository.Migrate(ctx, conn.Pool); err != nil {
		return err
	}
	lg.Info("schema_applied", map[string]any{"database": cfg.Database.Database})
	return nil
}
