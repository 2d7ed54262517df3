package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/hivefm/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes a config file when none exists, then opens the database, which runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		r.logger.Info("config file not found, creating from template", "path", path)
		if err := shared.CreateConfigFile(path); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		cfg, err := shared.LoadConfig(path)
		if err != nil {
			return err
		}
		cfg.LoadEnv(".env")
		r.config = cfg
		r.writePlain("✓ Wrote %s\n", path)
	}

	if err := r.config.Validate(); err != nil {
		r.logger.Warn("config is incomplete", "error", err)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	db, err := shared.OpenDatabase(ctx, r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	v, err := shared.CurrentVersion(ctx, db)
	if err != nil {
		return err
	}

	r.writePlain("✓ Database ready at %s (schema v%d)\n", r.config.Database.Path, v)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id in %s\n", path)
	r.writePlain("2. Run 'hive auth login'\n")
	return nil
}
