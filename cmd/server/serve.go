package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/phrazzld/miniminder/internal/config"
	"github.com/phrazzld/miniminder/internal/platform/database"
	"github.com/phrazzld/miniminder/internal/platform/logger"
	"github.com/phrazzld/miniminder/internal/redact"
)

func serveAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFrom(envFile(c), ".")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("server configuration loaded",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database_driver", cfg.Database.Driver,
		"database_url", redact.DatabaseURL(cfg.Database.URL),
		"push_enabled", cfg.Push.Enabled())

	db, dialect, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}

	migrator, err := database.NewMigrator(db, dialect, log)
	if err != nil {
		_ = db.Close()
		return err
	}
	if err := migrator.Up(ctx); err != nil {
		_ = db.Close()
		return err
	}

	app, err := newApplication(cfg, log, db, dialect, appOptions{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
