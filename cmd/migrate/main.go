package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/restoflow/restoflow-backend/migrations"
	"github.com/restoflow/restoflow-backend/pkg/config"
	"github.com/restoflow/restoflow-backend/pkg/database"
	"github.com/restoflow/restoflow-backend/pkg/logger"
)

func main() {
	allowDestructive := flag.Bool("allow-destructive", false, "permit down migrations in staging and production")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	if command == "down" && config.IsProductionLike() && !*allowDestructive {
		fmt.Fprintf(os.Stderr, "refusing to roll back all migrations in %s without -allow-destructive\n", config.GetEnvironment())
		os.Exit(1)
	}

	cfg, err := config.Load("stock-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("stock-migrate", cfg.Server.Environment)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// The migrator owns the handle from here and closes it
	m, err := database.NewMigrator(db.DB.DB, migrations.FS, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migrator")
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil {
			log.Fatal().Err(err).Msg("migration up failed")
		}

	case "down":
		if err := m.Down(); err != nil {
			log.Fatal().Err(err).Msg("migration down failed")
		}

	case "step":
		if len(args) < 2 {
			log.Fatal().Msg("step count required. Usage: migrate step <n>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal().Str("value", args[1]).Msg("invalid step count")
		}
		if err := m.Steps(n); err != nil {
			log.Fatal().Err(err).Msg("migration step failed")
		}

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to get version")
		}
		if version == 0 {
			log.Info().Msg("no migrations applied")
		} else {
			log.Info().Uint("version", version).Bool("dirty", dirty).Msg("current migration version")
		}

	case "force":
		if len(args) < 2 {
			log.Fatal().Msg("version required. Usage: migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal().Str("value", args[1]).Msg("invalid version number")
		}
		if err := m.Force(version); err != nil {
			log.Fatal().Err(err).Msg("force version failed")
		}

	default:
		log.Error().Str("command", command).Msg("unknown command")
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Stock service database migrations

Usage:
  migrate [-allow-destructive] <command> [arguments]

Commands:
  up                Apply all pending migrations
  down              Roll back all migrations
  step <n>          Apply n migrations (positive=up, negative=down)
  version           Show current migration version
  force <version>   Force set migration version (use with caution)

Connection settings are read from RESTOFLOW_DATABASE_* like the service.`)
}
