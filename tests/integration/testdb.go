// Package integration runs the tracking workflow against a real PostgreSQL
// database. Each test gets its own testcontainers instance with the full
// migration set applied, so piece counters and order transitions are
// exercised against the production schema, triggers included.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/fulfillment/backend/internal/domain/fulfillment"
	"github.com/golang-migrate/migrate/v4"
	mpg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB is a per-test database backed by a dedicated PostgreSQL container.
type TestDB struct {
	DB        *gorm.DB
	sqlDB     *sql.DB
	container testcontainers.Container
	t         *testing.T
}

// NewTestDB starts a PostgreSQL container, applies every migration, and
// registers cleanup. The container is private to the test, so tests never
// see each other's pieces or orders.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fulfillment_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			// The image restarts once during init; wait for the second
			// ready line.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "resolve container DSN")

	db, sqlDB := openGorm(t, dsn)
	applyMigrations(t, sqlDB)

	tdb := &TestDB{DB: db, sqlDB: sqlDB, container: container, t: t}
	t.Cleanup(tdb.close)
	return tdb
}

func (tdb *TestDB) close() {
	if tdb.sqlDB != nil {
		tdb.sqlDB.Close()
	}
	if tdb.container != nil {
		if err := tdb.container.Terminate(context.Background()); err != nil {
			tdb.t.Logf("terminate container: %v", err)
		}
	}
}

func openGorm(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	logMode := logger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		logMode = logger.Info
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	require.NoError(t, err, "connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "get underlying SQL DB")
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, sqlDB
}

func applyMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	migrationsPath := findMigrationsPath()
	require.NotEmpty(t, migrationsPath, "migrations directory not found")

	driver, err := mpg.WithInstance(sqlDB, &mpg.Config{})
	require.NoError(t, err, "create migration driver")

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	require.NoError(t, err, "create migrate instance")

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "apply migrations")
	}
}

// findMigrationsPath walks up from this file until it finds migrations/.
func findMigrationsPath() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}

	dir := filepath.Dir(filename)
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "migrations")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	return ""
}

// SeedProcessingOrder inserts a PROCESSING order with a storage location set.
func (tdb *TestDB) SeedProcessingOrder(tenantID uuid.UUID) *fulfillment.Order {
	tdb.t.Helper()

	order, err := fulfillment.NewOrder(tenantID, fmt.Sprintf("ORD-%s", uuid.NewString()[:8]), uuid.New(), "Integration Customer")
	require.NoError(tdb.t, err, "build test order")
	order.Status = fulfillment.OrderStatusProcessing
	order.StorageLocation = "A-12"

	require.NoError(tdb.t, tdb.DB.Create(order).Error, "seed test order")
	return order
}

// SeedLine inserts an order line with the given quantity.
func (tdb *TestDB) SeedLine(order *fulfillment.Order, quantity int) *fulfillment.OrderLine {
	tdb.t.Helper()

	line, err := fulfillment.NewOrderLine(order.TenantID, order.ID, "Wash & Fold", "WF", quantity, decimal.NewFromInt(5))
	require.NoError(tdb.t, err, "build test line")

	require.NoError(tdb.t, tdb.DB.Create(line).Error, "seed test line")
	return line
}

// SeedPieces inserts the full piece set for a line, sequences 1..quantity.
func (tdb *TestDB) SeedPieces(line *fulfillment.OrderLine) []fulfillment.Piece {
	tdb.t.Helper()

	pieces, err := fulfillment.NewPieceSet(line.TenantID, line.OrderID, line.ID, line.Quantity)
	require.NoError(tdb.t, err, "build test pieces")

	require.NoError(tdb.t, tdb.DB.Create(&pieces).Error, "seed test pieces")
	return pieces
}
