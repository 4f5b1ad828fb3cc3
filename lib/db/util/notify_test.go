package util

import "testing"

// TestNotifyCoalesces tests that many notifications collapse into a
// single pending wakeup
func TestNotifyCoalesces(t *testing.T) {
	n := NewNotify()

	for i := 0; i < 10; i++ {
		n.Notify()
	}

	// Exactly one wakeup is pending
	select {
	case <-n.Wait():
	default:
		t.Fatal("Expected a pending wakeup")
	}

	select {
	case <-n.Wait():
		t.Fatal("Wakeups should have been coalesced into one")
	default:
	}
}

// TestNotifyAfterWait tests that a notification after consumption
// becomes pending again
func TestNotifyAfterWait(t *testing.T) {
	n := NewNotify()

	n.Notify()
	<-n.Wait()

	n.Notify()

	select {
	case <-n.Wait():
	default:
		t.Fatal("Expected a pending wakeup after re-notification")
	}
}
