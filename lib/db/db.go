package db

import (
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"

	"github.com/ValentinKolb/mKV/lib/db/util"
)

var Logger = logger.GetLogger("db")

// Operational counters. They are cheap enough to keep unconditionally.
var (
	keysExpiredTotal       = metrics.NewCounter("mkv_keys_expired_total")
	messagesPublishedTotal = metrics.NewCounter("mkv_messages_published_total")
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// DefaultChannelCapacity bounds each pub/sub subscriber's buffer.
	DefaultChannelCapacity = 1024
)

// --------------------------------------------------------------------------
// Core Types
// --------------------------------------------------------------------------

// Entry is a value stored under a key.
type Entry struct {
	// Data holds the stored bytes.
	Data []byte

	// ID uniquely identifies this insertion. It increases with every
	// insert, so a purge pass can tell a live schedule apart from one
	// belonging to an overwritten entry.
	ID uint64

	// ExpiresAt is the deadline after which the entry is gone; the
	// zero value means the entry never expires.
	ExpiresAt time.Time
}

// state is the shared keyspace state. Every field is guarded by the
// mutex in shared; the lock is only held for the duration of a map or
// heap operation, never across a blocking call.
type state struct {
	// entries maps key to stored entry
	entries map[string]Entry

	// pubsub maps channel name to its broadcast queue
	pubsub map[string]*util.Broadcast

	// expirations orders (deadline, key) pairs for ready-time lookup.
	// It holds exactly one pair per key with an expiry set.
	expirations *util.ExpiryHeap

	// nextID produces Entry ids; strictly increasing
	nextID uint64

	// shutdown tells the purge task to exit
	shutdown bool
}

// shared bundles the guarded state with the wakeup primitive the
// setters use to poke the purge task.
type shared struct {
	mu    sync.Mutex
	state state

	// purgeWake coalesces wakeups: however many sets schedule earlier
	// deadlines between two purge passes, the task runs one extra
	// iteration.
	purgeWake *util.Notify

	channelCapacity int
}

// DB is a handle on the shared keyspace. Handles are cheap to copy
// and safe for concurrent use; every connection task holds one.
type DB struct {
	shared *shared
}

// Holder is the server-owned handle that controls the lifecycle of
// the background purge task. Creating one spawns the task; closing it
// flips the shutdown flag and wakes the task so it can exit. Handles
// obtained via DB() are plain references without teardown duties.
type Holder struct {
	db   *DB
	once sync.Once
}

// Options configures the keyspace.
type Options struct {
	// ChannelCapacity bounds each subscriber's buffer (0 = default).
	ChannelCapacity int
}

// --------------------------------------------------------------------------
// Construction and Lifecycle
// --------------------------------------------------------------------------

// NewHolder creates the keyspace and starts its purge task.
func NewHolder(opts *Options) *Holder {
	capacity := DefaultChannelCapacity
	if opts != nil && opts.ChannelCapacity > 0 {
		capacity = opts.ChannelCapacity
	}

	s := &shared{
		state: state{
			entries:     make(map[string]Entry),
			pubsub:      make(map[string]*util.Broadcast),
			expirations: util.NewExpiryHeap(),
		},
		purgeWake:       util.NewNotify(),
		channelCapacity: capacity,
	}

	go s.purgeLoop()

	return &Holder{db: &DB{shared: s}}
}

// DB returns a plain keyspace handle.
func (h *Holder) DB() *DB {
	return h.db
}

// Close signals the purge task to exit. It is idempotent.
func (h *Holder) Close() {
	h.once.Do(func() {
		s := h.db.shared
		s.mu.Lock()
		s.state.shutdown = true
		s.mu.Unlock()
		s.purgeWake.Notify()
	})
}

// --------------------------------------------------------------------------
// Key/Value Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry, replacing any existing one. A
// non-zero expire schedules the entry's removal; setting a key always
// clears a previously scheduled expiry for it.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (d *DB) Set(key string, value []byte, expire time.Duration) {
	s := d.shared

	s.mu.Lock()
	st := &s.state

	st.nextID++
	entry := Entry{Data: value, ID: st.nextID}

	// wakePurge is decided under the lock but acted on after unlock
	wakePurge := false

	if expire > 0 {
		when := time.Now().Add(expire)
		entry.ExpiresAt = when

		// Wake the purge task only when the new deadline is earlier
		// than everything currently scheduled; otherwise its current
		// sleep already covers this entry.
		_, earliest, scheduled := st.expirations.Peek()
		wakePurge = !scheduled || uint64(when.UnixNano()) < earliest

		st.expirations.AddItem(key, uint64(when.UnixNano()))
	} else {
		st.expirations.RemoveByKey(key)
	}

	st.entries[key] = entry
	s.mu.Unlock()

	if wakePurge {
		s.purgeWake.Notify()
	}
}

// Get returns a copy of the value stored under key. Entries whose
// deadline has passed are treated as absent even if the purge task
// has not removed them yet.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (d *DB) Get(key string) ([]byte, bool) {
	s := d.shared

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.state.entries[key]
	if !ok {
		return nil, false
	}
	if !entry.ExpiresAt.IsZero() && !time.Now().Before(entry.ExpiresAt) {
		return nil, false
	}

	value := make([]byte, len(entry.Data))
	copy(value, entry.Data)
	return value, true
}

// --------------------------------------------------------------------------
// Pub/Sub Operations
// --------------------------------------------------------------------------

// Subscribe returns a fresh receiver for the channel, creating its
// broadcast queue if this is the first subscriber.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (d *DB) Subscribe(channel string) *util.Receiver {
	s := d.shared

	s.mu.Lock()
	b, ok := s.state.pubsub[channel]
	if !ok {
		b = util.NewBroadcast(s.channelCapacity)
		s.state.pubsub[channel] = b
	}
	s.mu.Unlock()

	return b.Subscribe()
}

// Publish sends the message to every current subscriber of the
// channel and returns how many there were. A channel without
// subscribers counts zero; its queue entry is dropped lazily.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (d *DB) Publish(channel string, message []byte) int {
	s := d.shared

	s.mu.Lock()
	b := s.state.pubsub[channel]
	s.mu.Unlock()

	if b == nil {
		return 0
	}

	// The send happens outside the keyspace critical section.
	n := b.Send(message)
	messagesPublishedTotal.Inc()

	if n == 0 {
		// The last receiver is gone: garbage-collect the queue unless
		// someone re-subscribed in the meantime.
		s.mu.Lock()
		if current := s.state.pubsub[channel]; current == b && b.ReceiverCount() == 0 {
			delete(s.state.pubsub, channel)
		}
		s.mu.Unlock()
	}

	return n
}

// --------------------------------------------------------------------------
// Statistics
// --------------------------------------------------------------------------

// Stats is a point-in-time snapshot of the keyspace.
type Stats struct {
	Keys         int // stored entries, including not-yet-purged ones
	ExpiringKeys int // entries with a scheduled expiry
	Channels     int // pub/sub channels with a live queue
}

// Stats returns a snapshot of the keyspace counters.
func (d *DB) Stats() Stats {
	s := d.shared

	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Keys:         len(s.state.entries),
		ExpiringKeys: s.state.expirations.Len(),
		Channels:     len(s.state.pubsub),
	}
}

// --------------------------------------------------------------------------
// Background Purge Task
// --------------------------------------------------------------------------

// purgeLoop removes expired entries until shutdown. Between passes it
// sleeps until the earliest scheduled deadline, or until a setter
// schedules an earlier one and pokes the wakeup primitive.
func (s *shared) purgeLoop() {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		next, scheduled, shutdown := s.purgeExpired()
		if shutdown {
			Logger.Debugf("purge task exiting")
			return
		}

		if scheduled {
			wait := time.Until(next)
			if wait <= 0 {
				// The deadline passed while the lock was released;
				// purge again right away.
				continue
			}
			timer.Reset(wait)
			select {
			case <-timer.C:
			case <-s.purgeWake.Wait():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
		} else {
			<-s.purgeWake.Wait()
		}
	}
}

// purgeExpired removes every entry whose deadline has passed and
// reports the earliest remaining deadline, if any.
func (s *shared) purgeExpired() (next time.Time, scheduled bool, shutdown bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	if st.shutdown {
		return time.Time{}, false, true
	}

	now := uint64(time.Now().UnixNano())

	for {
		key, deadline, exists := st.expirations.Peek()
		if !exists || deadline > now {
			break
		}
		st.expirations.PopItem()

		// Only drop the entry if the schedule still describes it; a
		// concurrent overwrite replaces the deadline.
		if entry, ok := st.entries[key]; ok && uint64(entry.ExpiresAt.UnixNano()) == deadline {
			delete(st.entries, key)
			keysExpiredTotal.Inc()
			Logger.Debugf("purged expired key %q", key)
		}
	}

	if _, deadline, exists := st.expirations.Peek(); exists {
		return time.Unix(0, int64(deadline)), true, false
	}
	return time.Time{}, false, false
}
