package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransfer(t *testing.T) *Transfer {
	t.Helper()
	items := []TransferItem{
		{ProductID: "DRUG-001", Family: FamilyPharmacy, ProductName: "Latanoprost 0.005%", RequestedQuantity: 5},
		{ProductID: "DRUG-002", Family: FamilyPharmacy, ProductName: "Timolol 0.5%", RequestedQuantity: 3},
	}
	transfer, err := NewTransfer("TRF-001", "depot", "annecy", PriorityStandard, "restock", items, "user-1")
	require.NoError(t, err)
	return transfer
}

func approveTestTransfer(t *testing.T, transfer *Transfer) {
	t.Helper()
	require.NoError(t, transfer.Submit("user-1"))
	require.NoError(t, transfer.Approve("manager-1", map[string]string{
		"DRUG-001": "RES-001",
		"DRUG-002": "RES-002",
	}))
}

// TestNewTransfer tests transfer creation rules
func TestNewTransfer(t *testing.T) {
	transfer := newTestTransfer(t)

	assert.Equal(t, TransferDraft, transfer.Status)
	assert.Equal(t, int64(0), transfer.Version)
	require.Len(t, transfer.ApprovalHistory, 1)
	assert.Equal(t, "created", transfer.ApprovalHistory[0].Action)
	for _, item := range transfer.Items {
		assert.Equal(t, ItemPending, item.Status)
	}
}

func TestNewTransferSameLocation(t *testing.T) {
	_, err := NewTransfer("TRF-001", "annecy", "annecy", PriorityStandard, "", []TransferItem{{ProductID: "X", RequestedQuantity: 1}}, "user-1")
	assert.ErrorIs(t, err, ErrSameLocation)
}

func TestNewTransferRejectsEmptyAndInvalidLines(t *testing.T) {
	_, err := NewTransfer("TRF-001", "depot", "annecy", PriorityStandard, "", nil, "user-1")
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewTransfer("TRF-001", "depot", "annecy", PriorityStandard, "", []TransferItem{{ProductID: "X", RequestedQuantity: 0}}, "user-1")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

// TestTransferWorkflowHappyPath walks draft through received
func TestTransferWorkflowHappyPath(t *testing.T) {
	transfer := newTestTransfer(t)

	require.NoError(t, transfer.Submit("user-1"))
	assert.Equal(t, TransferRequested, transfer.Status)
	require.NotNil(t, transfer.Dates.Requested)

	require.NoError(t, transfer.Approve("manager-1", map[string]string{"DRUG-001": "RES-001", "DRUG-002": "RES-002"}))
	assert.Equal(t, TransferApproved, transfer.Status)
	assert.Equal(t, "RES-001", transfer.Items[0].ReservationID)
	assert.Equal(t, ItemReserved, transfer.Items[0].Status)

	require.NoError(t, transfer.Ship("clerk-1"))
	assert.Equal(t, TransferInTransit, transfer.Status)

	require.NoError(t, transfer.Receive("clerk-2", map[string]int{"DRUG-001": 5, "DRUG-002": 3}))
	assert.Equal(t, TransferReceived, transfer.Status)
	assert.True(t, transfer.Status.IsTerminal())
	require.NotNil(t, transfer.Dates.Received)

	// created, submitted, approved, shipped, received
	require.Len(t, transfer.ApprovalHistory, 5)
	assert.Equal(t, "received", transfer.ApprovalHistory[4].Action)
	assert.Equal(t, TransferInTransit, transfer.ApprovalHistory[4].PreviousStatus)
}

// TestTransferInvalidTransitions tests each out-of-order transition
func TestTransferInvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(tr *Transfer)
		act   func(tr *Transfer) error
	}{
		{
			name:  "approve a draft",
			setup: func(tr *Transfer) {},
			act:   func(tr *Transfer) error { return tr.Approve("m", map[string]string{}) },
		},
		{
			name:  "ship a requested transfer",
			setup: func(tr *Transfer) { tr.Submit("u") },
			act:   func(tr *Transfer) error { return tr.Ship("u") },
		},
		{
			name:  "receive before shipping",
			setup: func(tr *Transfer) { approveTestTransfer(t, tr) },
			act:   func(tr *Transfer) error { return tr.Receive("u", nil) },
		},
		{
			name: "reject in transit",
			setup: func(tr *Transfer) {
				approveTestTransfer(t, tr)
				tr.Ship("u")
			},
			act: func(tr *Transfer) error { return tr.Reject("u", "too late") },
		},
		{
			name:  "submit twice",
			setup: func(tr *Transfer) { tr.Submit("u") },
			act:   func(tr *Transfer) error { return tr.Submit("u") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transfer := newTestTransfer(t)
			tt.setup(transfer)
			before := transfer.Status
			historyLen := len(transfer.ApprovalHistory)

			err := tt.act(transfer)

			assert.ErrorIs(t, err, ErrInvalidState)
			assert.Equal(t, before, transfer.Status)
			assert.Len(t, transfer.ApprovalHistory, historyLen)
		})
	}
}

// TestTransferReject tests the requested/approved -> rejected paths
func TestTransferReject(t *testing.T) {
	transfer := newTestTransfer(t)
	require.NoError(t, transfer.Submit("user-1"))

	require.NoError(t, transfer.Reject("manager-1", "not needed"))
	assert.Equal(t, TransferRejected, transfer.Status)
	assert.True(t, transfer.Status.IsTerminal())

	last := transfer.ApprovalHistory[len(transfer.ApprovalHistory)-1]
	assert.Equal(t, "rejected", last.Action)
	assert.Equal(t, "not needed", last.Note)
}

func TestTransferRejectAfterApprovalReleasesItems(t *testing.T) {
	transfer := newTestTransfer(t)
	approveTestTransfer(t, transfer)
	assert.True(t, transfer.HasSourceReservations())

	require.NoError(t, transfer.Reject("manager-2", "source needs the stock"))
	for _, item := range transfer.Items {
		assert.Equal(t, ItemReleased, item.Status)
	}
	assert.False(t, transfer.HasSourceReservations())
}

// TestTransferCancel tests cancellation from non-terminal states
func TestTransferCancel(t *testing.T) {
	transfer := newTestTransfer(t)
	require.NoError(t, transfer.Cancel("user-1", "duplicate"))
	assert.Equal(t, TransferCancelled, transfer.Status)

	assert.ErrorIs(t, transfer.Cancel("user-1", "again"), ErrInvalidState)
}

// TestTransferCancelInTransit verifies cancelled is reachable from every
// non-terminal state, including after shipment.
func TestTransferCancelInTransit(t *testing.T) {
	transfer := newTestTransfer(t)
	approveTestTransfer(t, transfer)
	require.NoError(t, transfer.Ship("u"))

	require.NoError(t, transfer.Cancel("user-1", "recalled"))
	assert.Equal(t, TransferCancelled, transfer.Status)

	last := transfer.ApprovalHistory[len(transfer.ApprovalHistory)-1]
	assert.Equal(t, "cancelled", last.Action)
	assert.Equal(t, "recalled", last.Note)
}

// TestTransferPartialReceipt tests short and missing line statuses
func TestTransferPartialReceipt(t *testing.T) {
	transfer := newTestTransfer(t)
	approveTestTransfer(t, transfer)
	require.NoError(t, transfer.Ship("clerk-1"))

	require.NoError(t, transfer.Receive("clerk-2", map[string]int{"DRUG-001": 2, "DRUG-002": 0}))

	assert.Equal(t, ItemShort, transfer.Items[0].Status)
	assert.Equal(t, 2, transfer.Items[0].ReceivedQuantity)
	assert.Equal(t, ItemMissing, transfer.Items[1].Status)
	assert.Equal(t, 0, transfer.Items[1].ReceivedQuantity)
}

func TestTransferReceiveRejectsOverdelivery(t *testing.T) {
	transfer := newTestTransfer(t)
	approveTestTransfer(t, transfer)
	require.NoError(t, transfer.Ship("clerk-1"))

	err := transfer.Receive("clerk-2", map[string]int{"DRUG-001": 6})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, TransferInTransit, transfer.Status)
}

// TestTransferReceiveDefaultsToRequested tests receipt without per-line counts
func TestTransferReceiveDefaultsToRequested(t *testing.T) {
	transfer := newTestTransfer(t)
	approveTestTransfer(t, transfer)
	require.NoError(t, transfer.Ship("clerk-1"))

	require.NoError(t, transfer.Receive("clerk-2", nil))
	for _, item := range transfer.Items {
		assert.Equal(t, ItemReceived, item.Status)
		assert.Equal(t, item.RequestedQuantity, item.ReceivedQuantity)
	}
}

// TestTransferAutoGenerated tests the quick-transfer seeding path
func TestTransferAutoGenerated(t *testing.T) {
	transfer := newTestTransfer(t)

	require.NoError(t, transfer.MarkRequestedDirect("system"))
	assert.Equal(t, TransferRequested, transfer.Status)
	assert.True(t, transfer.IsAutoGenerated)
	// Audit trail keeps the same shape as a manual transfer's.
	require.Len(t, transfer.ApprovalHistory, 2)
	assert.Equal(t, "created", transfer.ApprovalHistory[0].Action)
	assert.Equal(t, "submitted", transfer.ApprovalHistory[1].Action)
}

func TestTransferEmitsStatusEvents(t *testing.T) {
	transfer := newTestTransfer(t)
	require.NoError(t, transfer.Submit("user-1"))

	events := transfer.GetDomainEvents()
	require.Len(t, events, 1)
	evt, ok := events[0].(*TransferStatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, TransferDraft, evt.PreviousStatus)
	assert.Equal(t, TransferRequested, evt.NewStatus)

	transfer.ClearDomainEvents()
	assert.Empty(t, transfer.GetDomainEvents())
}

func TestTransferApproveRequiresAllReservations(t *testing.T) {
	transfer := newTestTransfer(t)
	require.NoError(t, transfer.Submit("user-1"))

	err := transfer.Approve("manager-1", map[string]string{"DRUG-001": "RES-001"})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTransferTotalRequested(t *testing.T) {
	transfer := newTestTransfer(t)
	assert.Equal(t, 8, transfer.TotalRequested())
}
