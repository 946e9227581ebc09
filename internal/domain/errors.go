package domain

import "errors"

// Sentinel errors for the stock ledger core. Most are expected, recoverable
// business conditions; ErrStorageUnavailable tags repository I/O failures so
// the transport layer can distinguish them from programming errors.
var (
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrInsufficientStock     = errors.New("insufficient stock available")
	ErrInvalidAdjustment     = errors.New("adjustment would leave current stock below reserved")
	ErrInvalidState          = errors.New("operation not allowed in current state")
	ErrConflictingTransition = errors.New("concurrent state transition lost")

	ErrStockRecordNotFound  = errors.New("stock record not found")
	ErrStockRecordInactive  = errors.New("stock record is deactivated")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrTransferNotFound     = errors.New("transfer not found")
	ErrLocationNotFound     = errors.New("location not found")
	ErrLocationInactive     = errors.New("location is deactivated")
	ErrSameLocation         = errors.New("source and destination must differ")
	ErrDuplicateStockRecord = errors.New("stock record already exists for this product and location")

	ErrStorageUnavailable = errors.New("storage unavailable")
)
