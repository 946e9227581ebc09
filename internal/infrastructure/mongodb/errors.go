package mongodb

import (
	"fmt"

	"github.com/medflow/stock-service/internal/domain"
)

// storageError tags a driver failure with domain.ErrStorageUnavailable so
// callers can map it to a service-unavailable response without matching on
// driver error types. Domain sentinels never pass through here.
func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}
