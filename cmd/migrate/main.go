package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/marketcore/pkg/config"
	"github.com/angelmondragon/marketcore/pkg/db"
	"github.com/angelmondragon/marketcore/pkg/logger"
	"github.com/angelmondragon/marketcore/pkg/migrate"
	"github.com/joho/godotenv"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "marketcore-migrate"})

	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate only touch the filesystem
	if handled, err := runOffline(opts); handled {
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", opts.cmd, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "marketcore-migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	logg.Info(ctx, "migrate ready")
	if err := runOnline(ctx, sqlDB, opts); err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
}

func runOffline(opts options) (bool, error) {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return true, fmt.Errorf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return true, err
		}
		fmt.Println("created migration:", path)
		return true, nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return true, err
		}
		fmt.Println("migration validation passed")
		return true, nil
	}
	return false, nil
}

func runOnline(ctx context.Context, sqlDB *sql.DB, opts options) error {
	switch opts.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	default:
		return fmt.Errorf("unknown -cmd value: %s", opts.cmd)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
