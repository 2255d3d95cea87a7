package persistence

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fulfillment/backend/tests/testutil"
)

func newMockDatabase(t *testing.T) (*Database, *testutil.MockDB) {
	t.Helper()
	mock := testutil.NewMockDB(t)
	return &Database{DB: mock.DB}, mock
}

func TestDatabase_Ping(t *testing.T) {
	mock := testutil.NewMockDBWithPing(t)
	defer mock.Close()
	db := &Database{DB: mock.DB}

	mock.Mock.ExpectPing()

	require.NoError(t, db.Ping())
	mock.ExpectationsWereMet(t)
}

func TestDatabase_Ping_ClosedPool(t *testing.T) {
	mock := testutil.NewMockDBWithPing(t)
	db := &Database{DB: mock.DB}

	require.NoError(t, mock.Close())

	assert.Error(t, db.Ping())
}

func TestDatabase_Close(t *testing.T) {
	mock := testutil.NewMockDB(t)
	db := &Database{DB: mock.DB}

	mock.Mock.ExpectClose()

	require.NoError(t, db.Close())
	mock.ExpectationsWereMet(t)
}

func TestDatabase_Stats(t *testing.T) {
	db, mock := newMockDatabase(t)
	defer mock.Close()

	stats, err := db.Stats()
	require.NoError(t, err)

	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.GreaterOrEqual(t, stats.InUse, 0)
	assert.GreaterOrEqual(t, stats.Idle, 0)
	assert.GreaterOrEqual(t, stats.WaitCount, int64(0))
	assert.GreaterOrEqual(t, stats.WaitDuration, time.Duration(0))
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

// Reads issued through the shared handle must not be wrapped in implicit
// transactions; sqlmock would reject the query if GORM emitted a BEGIN here.
func TestDatabase_ReadsSkipImplicitTransaction(t *testing.T) {
	db, mock := newMockDatabase(t)
	defer mock.Close()

	tenantID := testutil.TenantID().String()

	type OrderLine struct {
		ID         string
		TenantID   string
		ReadyCount int
	}

	mock.Mock.ExpectQuery(`SELECT \* FROM "order_lines" WHERE tenant_id = \$1`).
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "ready_count"}).
			AddRow("line-1", tenantID, 2))

	var lines []OrderLine
	err := db.DB.Where("tenant_id = ?", tenantID).Find(&lines).Error
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].ReadyCount)

	mock.ExpectationsWereMet(t)
}

// Writes inside an explicit transaction roll back when the callback fails,
// mirroring how the batch repositories bail out of a conflicted apply.
func TestDatabase_ExplicitTransactionRollsBackOnError(t *testing.T) {
	db, mock := newMockDatabase(t)
	defer mock.Close()

	mock.Mock.ExpectBegin()
	mock.Mock.ExpectExec(`UPDATE "order_lines" SET ready_count`).
		WithArgs(2, "line-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.Mock.ExpectRollback()

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`UPDATE "order_lines" SET ready_count = ? WHERE id = ?`, 2, "line-1").Error; err != nil {
			return err
		}
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	mock.ExpectationsWereMet(t)
}

// Parameterized tenant filters must pass hostile input through as data.
func TestDatabase_TenantFilterIsParameterized(t *testing.T) {
	db, mock := newMockDatabase(t)
	defer mock.Close()

	hostile := `tenant'; DROP TABLE pieces; --`

	type Piece struct {
		ID       string
		TenantID string
	}

	mock.Mock.ExpectQuery(`SELECT \* FROM "pieces" WHERE tenant_id = \$1`).
		WithArgs(hostile).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id"}))

	var pieces []Piece
	err := db.DB.Where("tenant_id = ?", hostile).Find(&pieces).Error
	require.NoError(t, err)
	assert.Empty(t, pieces)

	mock.ExpectationsWereMet(t)
}
