// Package testutil provides shared fixtures for tests that need a mocked
// SQL connection or stable tenant and operator identities. Repository tests
// that exercise real queries use an in-memory sqlite database instead; the
// sqlmock wrapper here is for code that only cares about the SQL it emits.
package testutil

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDB is a GORM handle backed by sqlmock, configured the same way the
// production connection is (postgres dialector, no implicit transaction).
type MockDB struct {
	DB   *gorm.DB
	Mock sqlmock.Sqlmock
	Conn *sql.DB
}

// NewMockDB opens a sqlmock-backed GORM connection. The caller owns Close.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create sqlmock")

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       conn,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err, "failed to open GORM over sqlmock")

	return &MockDB{DB: gormDB, Mock: mock, Conn: conn}
}

// NewMockDBWithPing is like NewMockDB but records Ping calls, so tests can
// assert health-check behaviour.
func NewMockDBWithPing(t *testing.T) *MockDB {
	t.Helper()

	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err, "failed to create sqlmock")

	// GORM pings while opening the connection.
	mock.ExpectPing()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       conn,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err, "failed to open GORM over sqlmock")

	return &MockDB{DB: gormDB, Mock: mock, Conn: conn}
}

// Close closes the underlying sql.DB.
func (m *MockDB) Close() error {
	return m.Conn.Close()
}

// ExpectationsWereMet fails the test if any expected statement never ran.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "unmet database expectations")
}

// UUID derives a stable UUID from a seed so fixtures keep the same identity
// across runs without hard-coding UUID literals everywhere.
func UUID(seed string) uuid.UUID {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed))
}

// TenantID is the workshop tenant used by fixtures unless a test needs two
// tenants to check isolation.
func TenantID() uuid.UUID {
	return UUID("workshop-tenant")
}

// OperatorID identifies the station operator submitting batches in fixtures.
func OperatorID() uuid.UUID {
	return UUID("station-operator")
}
