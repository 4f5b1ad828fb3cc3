package util

// Notify is an idempotent, single-slot wakeup primitive.
//
// Producers call Notify() any number of times; pending notifications
// collapse into a single wakeup so that a consumer blocked on Wait()
// runs at most one extra loop iteration no matter how many producers
// fired in the meantime. The keyspace uses it to coordinate setters
// with the background purge task: a setter that schedules an earlier
// deadline pokes the purge task, and a burst of sets results in a
// single purge pass.
//
// Thread-safety: all methods can be called concurrently.
type Notify struct {
	ch chan struct{}
}

// NewNotify creates a new notification primitive with no pending wakeup
func NewNotify() *Notify {
	return &Notify{ch: make(chan struct{}, 1)}
}

// Notify records a pending wakeup. If one is already pending, the call
// is a no-op.
func (n *Notify) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Wait returns the channel a consumer selects on. Receiving from it
// consumes the pending wakeup.
func (n *Notify) Wait() <-chan struct{} {
	return n.ch
}
