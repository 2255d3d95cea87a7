// Command migrate manages the fulfillment database schema. It wraps
// golang-migrate with the project's migration layout: paired up/down SQL
// files under migrations/, named by a monotonically increasing version.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fulfillment/backend/internal/infrastructure/config"
	"github.com/fulfillment/backend/internal/infrastructure/logger"
	"github.com/fulfillment/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

func main() {
	var (
		migrationsPath string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", "", "Path to migrations directory (default: ./migrations)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	migrationsPath = resolveMigrationsPath(migrationsPath, log)
	log.Info("Migration CLI started",
		zap.String("command", command),
		zap.String("migrations_path", migrationsPath),
	)

	// create and list work on the migration files alone.
	switch command {
	case "create":
		runCreate(migrationsPath, args[1:], log)
		return
	case "list":
		runList(migrationsPath, log)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m, err := migration.New(db, migrationsPath, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil {
			log.Fatal("Migration up failed", zap.Error(err))
		}
	case "down":
		if err := m.Down(); err != nil {
			log.Fatal("Migration down failed", zap.Error(err))
		}
	case "step":
		runStep(m, args[1:], log)
	case "goto":
		runGoTo(m, args[1:], log)
	case "version":
		runVersion(m, log)
	case "force":
		runForce(m, args[1:], log)
	case "drop":
		runDrop(m, args[1:], log)
	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

// resolveMigrationsPath falls back to ./migrations, then to the directory
// two levels above the executable so the binary works from bin/ layouts.
func resolveMigrationsPath(path string, log *zap.Logger) string {
	if path == "" {
		path = defaultMigrationsPath
		if _, err := os.Stat(path); err != nil {
			if execPath, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(execPath), "..", "..", defaultMigrationsPath)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
				}
			}
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		log.Fatal("Failed to get absolute path", zap.Error(err))
	}
	return abs
}

func runCreate(migrationsPath string, args []string, log *zap.Logger) {
	if len(args) < 1 {
		log.Fatal("Migration name required. Usage: migrate create <name> [description]")
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}

	mf, err := migration.CreateMigration(migrationsPath, args[0], description)
	if err != nil {
		log.Fatal("Failed to create migration", zap.Error(err))
	}

	log.Info("Migration created successfully",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
}

func runList(migrationsPath string, log *zap.Logger) {
	migrations, err := migration.ListMigrations(migrationsPath)
	if err != nil {
		log.Fatal("Failed to list migrations", zap.Error(err))
	}
	if len(migrations) == 0 {
		log.Info("No migrations found")
		return
	}

	log.Info("Available migrations", zap.Int("count", len(migrations)))
	for _, m := range migrations {
		fmt.Println("  -", m)
	}
}

func runStep(m *migration.Migrator, args []string, log *zap.Logger) {
	if len(args) < 1 {
		log.Fatal("Step count required. Usage: migrate step <n>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		log.Fatal("Invalid step count", zap.String("value", args[0]))
	}
	if err := m.Steps(n); err != nil {
		log.Fatal("Migration step failed", zap.Error(err))
	}
}

func runGoTo(m *migration.Migrator, args []string, log *zap.Logger) {
	if len(args) < 1 {
		log.Fatal("Version required. Usage: migrate goto <version>")
	}
	version, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		log.Fatal("Invalid version number", zap.String("value", args[0]))
	}
	if err := m.GoTo(uint(version)); err != nil {
		log.Fatal("Migration goto failed", zap.Error(err))
	}
}

func runVersion(m *migration.Migrator, log *zap.Logger) {
	version, dirty, err := m.Version()
	if err != nil {
		log.Fatal("Failed to get version", zap.Error(err))
	}
	if version == 0 {
		log.Info("No migrations applied")
		return
	}
	log.Info("Current migration version",
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
}

func runForce(m *migration.Migrator, args []string, log *zap.Logger) {
	if len(args) < 1 {
		log.Fatal("Version required. Usage: migrate force <version>")
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		log.Fatal("Invalid version number", zap.String("value", args[0]))
	}
	log.Warn("Forcing migration version - use with caution!")
	if err := m.Force(version); err != nil {
		log.Fatal("Force version failed", zap.Error(err))
	}
}

func runDrop(m *migration.Migrator, args []string, log *zap.Logger) {
	confirmed := false
	for _, arg := range args {
		if arg == "-confirm" || arg == "--confirm" {
			confirmed = true
			break
		}
	}
	if !confirmed {
		log.Fatal("Drop cancelled. Use 'migrate drop -confirm' to confirm.")
	}
	if err := m.Drop(); err != nil {
		log.Fatal("Drop failed", zap.Error(err))
	}
}

func printUsage() {
	fmt.Println(`Fulfillment Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  goto <version>        Migrate to a specific version
  version               Show current migration version
  force <version>       Force set migration version (use with caution)
  drop -confirm         Drop all database objects (DANGEROUS)
  create <name> [desc]  Create a new migration file pair
  list                  List available migrations

Flags:
  -path string          Path to migrations directory (default: ./migrations)
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  FULFILLMENT_DATABASE_HOST, FULFILLMENT_DATABASE_PORT, FULFILLMENT_DATABASE_USER,
  FULFILLMENT_DATABASE_PASSWORD, FULFILLMENT_DATABASE_DBNAME, FULFILLMENT_DATABASE_SSLMODE

Examples:
  # Apply all pending migrations
  migrate up

  # Roll back the last migration
  migrate step -1

  # Create a new migration
  migrate create add_piece_photos "Attach photo references to pieces"

  # Check current version
  migrate version`)
}
