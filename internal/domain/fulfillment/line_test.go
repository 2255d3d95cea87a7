package fulfillment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decimalFromInt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestNewOrderLine(t *testing.T) {
	tenantID := uuid.New()
	orderID := uuid.New()

	line, err := NewOrderLine(tenantID, orderID, "Suit dry clean", "DRY-SUIT", 2, decimalFromInt(25))
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, 0, line.ReadyCount)
	assert.Equal(t, 1, line.Version)
	assert.True(t, decimalFromInt(50).Equal(line.Amount))

	_, err = NewOrderLine(tenantID, orderID, "", "X", 1, decimalFromInt(1))
	assert.Error(t, err)
	_, err = NewOrderLine(tenantID, orderID, "Suit", "X", 0, decimalFromInt(1))
	assert.Error(t, err)
	_, err = NewOrderLine(tenantID, uuid.Nil, "Suit", "X", 1, decimalFromInt(1))
	assert.Error(t, err)
}

func TestOrderLineRecordStep(t *testing.T) {
	line, err := NewOrderLine(uuid.New(), uuid.New(), "Suit dry clean", "DRY-SUIT", 2, decimalFromInt(25))
	require.NoError(t, err)

	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	line.RecordStep("PRESS", "bob", at)
	assert.Equal(t, "PRESS", line.LastStep)
	assert.Equal(t, "bob", line.LastStepBy)
	require.NotNil(t, line.LastStepAt)
	assert.Equal(t, at, *line.LastStepAt)

	// empty step leaves the stamp untouched
	line.RecordStep("", "carol", at.Add(time.Hour))
	assert.Equal(t, "PRESS", line.LastStep)
	assert.Equal(t, "bob", line.LastStepBy)
}
