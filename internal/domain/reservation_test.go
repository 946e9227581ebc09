package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReservation(t *testing.T) *Reservation {
	t.Helper()
	record := newTestRecord(t, 10, 0)
	res, err := NewReservation("RES-001", record, 3, "ORDER-001", time.Hour, "user-1")
	require.NoError(t, err)
	return res
}

// TestNewReservation tests hold creation and key denormalization
func TestNewReservation(t *testing.T) {
	record := newTestRecord(t, 10, 0)
	res, err := NewReservation("RES-001", record, 3, "ORDER-001", 2*time.Hour, "user-1")

	require.NoError(t, err)
	assert.Equal(t, ReservationActive, res.Status)
	assert.Equal(t, record.RecordID, res.StockRecordID)
	assert.Equal(t, record.LocationID, res.LocationID)
	assert.Equal(t, record.Family, res.Family)
	assert.Equal(t, record.ProductID, res.ProductID)
	assert.Equal(t, 3, res.Quantity)
	assert.WithinDuration(t, time.Now().UTC().Add(2*time.Hour), res.ExpiresAt, time.Minute)
}

func TestNewReservationDefaultTTL(t *testing.T) {
	record := newTestRecord(t, 10, 0)
	res, err := NewReservation("RES-001", record, 1, "ORDER-001", 0, "user-1")

	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(DefaultReservationTTL), res.ExpiresAt, time.Minute)
}

func TestNewReservationInvalidQuantity(t *testing.T) {
	record := newTestRecord(t, 10, 0)
	_, err := NewReservation("RES-001", record, 0, "ORDER-001", time.Hour, "user-1")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

// TestReservationRelease tests that release is idempotent
func TestReservationRelease(t *testing.T) {
	res := newTestReservation(t)

	require.NoError(t, res.Release("user-2"))
	assert.Equal(t, ReservationReleased, res.Status)

	// Releasing again must be a no-op success and must not change state.
	require.NoError(t, res.Release("user-3"))
	assert.Equal(t, ReservationReleased, res.Status)
	assert.Equal(t, "user-2", res.UpdatedBy)
}

func TestReservationReleaseAfterFulfillIsNoOp(t *testing.T) {
	res := newTestReservation(t)

	require.NoError(t, res.Fulfill("user-2"))
	require.NoError(t, res.Release("user-3"))
	assert.Equal(t, ReservationFulfilled, res.Status)
}

// TestReservationFulfill tests that fulfill requires the active state
func TestReservationFulfill(t *testing.T) {
	res := newTestReservation(t)

	require.NoError(t, res.Fulfill("user-2"))
	assert.Equal(t, ReservationFulfilled, res.Status)

	assert.ErrorIs(t, res.Fulfill("user-2"), ErrInvalidState)
}

func TestReservationFulfillAfterExpire(t *testing.T) {
	res := newTestReservation(t)

	require.NoError(t, res.Expire())
	assert.ErrorIs(t, res.Fulfill("user-2"), ErrInvalidState)
	assert.Equal(t, ReservationExpired, res.Status)
}

// TestReservationExpire tests the janitor transition
func TestReservationExpire(t *testing.T) {
	res := newTestReservation(t)

	require.NoError(t, res.Expire())
	assert.Equal(t, ReservationExpired, res.Status)

	assert.ErrorIs(t, res.Expire(), ErrInvalidState)
}

// TestReservationExtend tests that extend resets the expiry clock
func TestReservationExtend(t *testing.T) {
	res := newTestReservation(t)
	originalExpiry := res.ExpiresAt

	require.NoError(t, res.Extend(8*time.Hour))
	assert.True(t, res.ExpiresAt.After(originalExpiry))
	assert.WithinDuration(t, time.Now().UTC().Add(8*time.Hour), res.ExpiresAt, time.Minute)

	require.NoError(t, res.Release("user-2"))
	assert.ErrorIs(t, res.Extend(time.Hour), ErrInvalidState)
}

func TestReservationIsExpired(t *testing.T) {
	res := newTestReservation(t)
	assert.False(t, res.IsExpired())

	res.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	assert.True(t, res.IsExpired())
}
