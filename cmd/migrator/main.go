package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/technosupport/ts-vms-es/internal/config"
	"github.com/technosupport/ts-vms-es/internal/data"
)

func main() {
	upCmd := flag.Bool("up", false, "Run all up migrations")
	downCmd := flag.Bool("down", false, "Rollback all migrations")
	stepsCmd := flag.Int("steps", 0, "Run +/- steps")
	cfgPath := flag.String("config", config.DefaultPath, "Path to YAML config")
	source := flag.String("source", "file://db/migrations", "Migration source URL")
	flag.Parse()

	log, err := logs.NewLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if err := run(log, *cfgPath, *source, *upCmd, *downCmd, *stepsCmd); err != nil {
		log.Criticalf("%v", err)
		log.Close()
		os.Exit(1)
	}
}

func run(log logs.Log, cfgPath, source string, up, down bool, steps int) error {
	// 1. Config (same file and env overrides as the server)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Connect to DB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := data.Open(ctx, data.ConnString(cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// 3. Init Migrate
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to initialize migrate: %w", err)
	}

	// 4. Run Commands
	start := time.Now()
	switch {
	case up:
		log.Infof("Running UP migrations...")
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration UP failed: %w", err)
		}
		log.Infof("Migration UP completed.")
	case down:
		log.Infof("Running DOWN migrations...")
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration DOWN failed: %w", err)
		}
		log.Infof("Migration DOWN completed.")
	case steps != 0:
		log.Infof("Running %d steps...", steps)
		if err := m.Steps(steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration steps failed: %w", err)
		}
		log.Infof("Migration steps completed.")
	default:
		log.Infof("No command specified. Use -up, -down, or -steps.")
		version, dirty, err := m.Version()
		if err != nil {
			log.Infof("No version found (empty db?).")
		} else {
			log.Infof("Current Version: %d, Dirty: %v", version, dirty)
		}
	}
	log.Infof("Duration: %v", time.Since(start))
	return nil
}
