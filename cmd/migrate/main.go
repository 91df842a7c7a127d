package main

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-scheduling/internal/db"
	"github.com/hackgods/clinic-slot-scheduling/internal/observability"
)

// Usage:
//
//	migrate            apply pending migrations
//	migrate down       roll back one migration
//	migrate force <v>  mark version v as applied after a failed run
func main() {
	_ = godotenv.Load()
	logger := observability.NewLogger("clinic-migrate", os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))

	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	if len(os.Args) < 2 {
		version, err := db.MigrateUp(dsn)
		if err != nil {
			logger.Fatal().Err(err).Msg("migrate up failed")
		}
		logger.Info().Uint("version", version).Msg("migrations complete")
		return
	}

	sqlDB, err := db.OpenSQL(dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer func() { _ = sqlDB.Close() }()

	m, err := db.NewMigrator(sqlDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("create migrator")
	}
	defer func() { _, _ = m.Close() }()

	if err := runCommand(m, os.Args[1:], logger); err != nil {
		logger.Fatal().Err(err).Str("command", os.Args[1]).Msg("migration command failed")
	}
}

func runCommand(m *migrate.Migrate, args []string, logger zerolog.Logger) error {
	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "down":
		if err := m.Steps(-1); err != nil {
			return err
		}
	case "force":
		if len(args) < 2 {
			return errors.New("force needs a version")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		if err := m.Force(version); err != nil {
			return err
		}
	default:
		return errors.New("unknown command " + args[0])
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("migration command complete")
	return nil
}
