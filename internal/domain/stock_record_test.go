package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(t *testing.T, current, reserved int) *StockRecord {
	t.Helper()
	record, err := NewStockRecord("annecy", FamilyPharmacy, "DRUG-001", "Latanoprost 0.005%", 5, 10, false)
	require.NoError(t, err)
	record.CurrentStock = current
	record.Reserved = reserved
	return record
}

// TestNewStockRecord tests stock record creation
func TestNewStockRecord(t *testing.T) {
	record, err := NewStockRecord("annecy", FamilyFrames, "FRAME-042", "Ray-Ban RB5154", 2, 4, false)

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "annecy:frames:FRAME-042", record.RecordID)
	assert.Equal(t, "annecy", record.LocationID)
	assert.Equal(t, FamilyFrames, record.Family)
	assert.Equal(t, 0, record.CurrentStock)
	assert.Equal(t, 0, record.Reserved)
	assert.True(t, record.Active)
	assert.NotZero(t, record.CreatedAt)
}

func TestNewStockRecordUnknownFamily(t *testing.T) {
	_, err := NewStockRecord("annecy", ProductFamily("toys"), "X", "X", 0, 0, false)
	assert.Error(t, err)
}

// TestStockRecordStatus tests the derived availability state
func TestStockRecordStatus(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		reserved int
		expected StockStatus
	}{
		{"plenty available", 50, 5, StatusInStock},
		{"at reorder point", 10, 0, StatusLowStock},
		{"below reorder point", 8, 2, StatusLowStock},
		{"fully reserved", 10, 10, StatusOutOfStock},
		{"empty", 0, 0, StatusOutOfStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := newTestRecord(t, tt.current, tt.reserved)
			assert.Equal(t, tt.expected, record.Status())
		})
	}
}

// TestStockRecordReserve tests the availability guard
func TestStockRecordReserve(t *testing.T) {
	tests := []struct {
		name        string
		current     int
		reserved    int
		quantity    int
		expectError error
	}{
		{"reserve within availability", 10, 2, 8, nil},
		{"reserve exactly available", 10, 0, 10, nil},
		{"reserve more than available", 10, 3, 8, ErrInsufficientStock},
		{"reserve when fully reserved", 10, 10, 1, ErrInsufficientStock},
		{"zero quantity", 10, 0, 0, ErrInvalidQuantity},
		{"negative quantity", 10, 0, -3, ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := newTestRecord(t, tt.current, tt.reserved)
			err := record.Reserve(tt.quantity)

			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Equal(t, tt.reserved, record.Reserved)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.reserved+tt.quantity, record.Reserved)
				assert.Equal(t, tt.current, record.CurrentStock)
				assert.GreaterOrEqual(t, record.Available(), 0)
			}
		})
	}
}

func TestStockRecordReserveInactive(t *testing.T) {
	record := newTestRecord(t, 10, 0)
	record.Deactivate()

	err := record.Reserve(1)
	assert.ErrorIs(t, err, ErrStockRecordInactive)
}

// TestStockRecordReleaseReserved tests giving a hold back
func TestStockRecordReleaseReserved(t *testing.T) {
	record := newTestRecord(t, 10, 6)

	require.NoError(t, record.ReleaseReserved(4))
	assert.Equal(t, 2, record.Reserved)
	assert.Equal(t, 10, record.CurrentStock)

	err := record.ReleaseReserved(5)
	assert.ErrorIs(t, err, ErrInvalidState)
}

// TestStockRecordFulfill tests consuming reserved stock
func TestStockRecordFulfill(t *testing.T) {
	record := newTestRecord(t, 10, 6)
	availableBefore := record.Available()

	require.NoError(t, record.Fulfill(4))
	assert.Equal(t, 6, record.CurrentStock)
	assert.Equal(t, 2, record.Reserved)
	// Fulfillment consumes held stock only; availability is unchanged.
	assert.Equal(t, availableBefore, record.Available())

	err := record.Fulfill(3)
	assert.ErrorIs(t, err, ErrInvalidState)
}

// TestStockRecordAdjust tests manual stock correction
func TestStockRecordAdjust(t *testing.T) {
	tests := []struct {
		name        string
		current     int
		reserved    int
		delta       int
		expectError error
		expectStock int
	}{
		{"receipt", 10, 0, 15, nil, 25},
		{"shrinkage", 10, 2, -5, nil, 5},
		{"down to reserved floor", 10, 4, -6, nil, 4},
		{"below reserved floor", 10, 4, -7, ErrInvalidAdjustment, 10},
		{"zero delta", 10, 0, 0, ErrInvalidQuantity, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := newTestRecord(t, tt.current, tt.reserved)
			err := record.Adjust(tt.delta, "cycle-count", "user-1")

			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expectStock, record.CurrentStock)
			assert.GreaterOrEqual(t, record.CurrentStock, record.Reserved)
		})
	}
}

func TestStockRecordAdjustEmitsEvents(t *testing.T) {
	record := newTestRecord(t, 50, 0)

	require.NoError(t, record.Adjust(-45, "breakage", "user-1"))

	events := record.GetDomainEvents()
	require.Len(t, events, 2)

	adjusted, ok := events[0].(*StockAdjustedEvent)
	require.True(t, ok)
	assert.Equal(t, 50, adjusted.OldQuantity)
	assert.Equal(t, 5, adjusted.NewQuantity)
	assert.Equal(t, "breakage", adjusted.Reason)

	crossed, ok := events[1].(*StockThresholdCrossedEvent)
	require.True(t, ok)
	assert.Equal(t, StatusInStock, crossed.PreviousStatus)
	assert.Equal(t, StatusLowStock, crossed.NewStatus)

	record.ClearDomainEvents()
	assert.Empty(t, record.GetDomainEvents())
}

func TestStockRecordNoEventWhenStatusUnchanged(t *testing.T) {
	record := newTestRecord(t, 50, 0)

	require.NoError(t, record.Adjust(10, "receipt", "user-1"))

	events := record.GetDomainEvents()
	require.Len(t, events, 1)
	_, ok := events[0].(*StockAdjustedEvent)
	assert.True(t, ok)
}

// TestStockRecordTransferableSurplus tests the donor capacity rule
func TestStockRecordTransferableSurplus(t *testing.T) {
	record := newTestRecord(t, 12, 0)
	record.MinimumStock = 5
	assert.Equal(t, 7, record.TransferableSurplus())

	record.CurrentStock = 3
	assert.Equal(t, 0, record.TransferableSurplus())
}

// TestReserveEightOfTen walks the canonical reserve-then-fulfill sequence.
func TestReserveEightOfTen(t *testing.T) {
	record := newTestRecord(t, 10, 0)

	require.NoError(t, record.Reserve(8))
	assert.Equal(t, 2, record.Available())

	// Second caller wants 5, only 2 are free.
	assert.ErrorIs(t, record.Reserve(5), ErrInsufficientStock)

	require.NoError(t, record.Fulfill(8))
	assert.Equal(t, 2, record.CurrentStock)
	assert.Equal(t, 0, record.Reserved)
	assert.Equal(t, 2, record.Available())
}
