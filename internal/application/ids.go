package application

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Prefixed ids keep log lines and audit entries readable while staying
// globally unique.

func newReservationID() string {
	return prefixedID("RSV")
}

func newTransferID() string {
	return prefixedID("TRF")
}

func newMovementID() string {
	return prefixedID("MOV")
}

func prefixedID(prefix string) string {
	timestamp := time.Now().UTC().Format("20060102")
	return fmt.Sprintf("%s-%s-%s", prefix, timestamp, uuid.New().String()[:8])
}
