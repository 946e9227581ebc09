package testing

import (
	"testing"
	"time"
)

// AssertEventually asserts that a condition becomes true within a timeout.
// Used for background workers like the outbox publisher and the
// reservation janitor, whose effects are asynchronous.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		<-ticker.C
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met within timeout: %s", message)
			return
		}
	}
}
