package main

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli"

	"github.com/phrazzld/miniminder/internal/config"
	"github.com/phrazzld/miniminder/internal/platform/database"
	"github.com/phrazzld/miniminder/internal/platform/logger"
)

func migrateAction(command string) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.LoadFrom(envFile(c), ".")
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		log, err := logger.Setup(cfg.Server)
		if err != nil {
			return fmt.Errorf("failed to set up logger: %w", err)
		}

		ctx := context.Background()
		db, dialect, err := database.Open(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("error closing database connection", "error", err)
			}
		}()

		m, err := database.NewMigrator(db, dialect, log)
		if err != nil {
			return err
		}
		return runMigration(ctx, m, command, c.App.Writer)
	}
}

// runMigration executes one migrate subcommand against m.
func runMigration(ctx context.Context, m *database.Migrator, command string, out io.Writer) error {
	switch command {
	case "up":
		return m.Up(ctx)
	case "down":
		return m.Down(ctx)
	case "status":
		statuses, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Fprintf(out, "%-8s %d %s\n", state, s.Version, s.Path)
		}
		return nil
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}
