package db

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"
)

// newTestDB creates a keyspace and registers its teardown
func newTestDB(t *testing.T) *DB {
	t.Helper()
	holder := NewHolder(nil)
	t.Cleanup(holder.Close)
	return holder.DB()
}

// TestSetGet tests that a set value is immediately readable
func TestSetGet(t *testing.T) {
	d := newTestDB(t)

	d.Set("hello", []byte("world"), 0)

	value, ok := d.Get("hello")
	if !ok {
		t.Fatal("Get should find the key")
	}
	if !bytes.Equal(value, []byte("world")) {
		t.Errorf("Expected world, got %q", value)
	}
}

// TestGetMissing tests that an unknown key is absent
func TestGetMissing(t *testing.T) {
	d := newTestDB(t)

	if _, ok := d.Get("missing"); ok {
		t.Error("Get should not find a missing key")
	}
}

// TestSetOverwrites tests that setting an existing key replaces the value
func TestSetOverwrites(t *testing.T) {
	d := newTestDB(t)

	d.Set("key", []byte("one"), 0)
	d.Set("key", []byte("two"), 0)

	value, ok := d.Get("key")
	if !ok || string(value) != "two" {
		t.Errorf("Expected two, got %q (ok=%t)", value, ok)
	}
}

// TestGetReturnsCopy tests that callers cannot corrupt stored data
func TestGetReturnsCopy(t *testing.T) {
	d := newTestDB(t)

	d.Set("key", []byte("value"), 0)

	first, _ := d.Get("key")
	first[0] = 'X'

	second, _ := d.Get("key")
	if string(second) != "value" {
		t.Errorf("Stored value was corrupted through a returned slice: %q", second)
	}
}

// TestExpiry tests that a key disappears after its TTL
func TestExpiry(t *testing.T) {
	d := newTestDB(t)

	d.Set("k", []byte("v"), 50*time.Millisecond)

	if _, ok := d.Get("k"); !ok {
		t.Fatal("Key should be present before the deadline")
	}

	time.Sleep(120 * time.Millisecond)

	if _, ok := d.Get("k"); ok {
		t.Error("Key should be absent after the deadline")
	}

	// The purge task removes the entry itself, not just its visibility
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if d.Stats().Keys == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if stats := d.Stats(); stats.Keys != 0 || stats.ExpiringKeys != 0 {
		t.Errorf("Purge task should have removed the entry, stats: %+v", stats)
	}
}

// TestSetClearsExpiry tests that overwriting a key without a TTL
// cancels the previously scheduled expiry
func TestSetClearsExpiry(t *testing.T) {
	d := newTestDB(t)

	d.Set("k", []byte("v1"), 50*time.Millisecond)
	d.Set("k", []byte("v2"), 0)

	time.Sleep(120 * time.Millisecond)

	value, ok := d.Get("k")
	if !ok {
		t.Fatal("Key should survive the stale deadline")
	}
	if string(value) != "v2" {
		t.Errorf("Expected v2, got %q", value)
	}
}

// TestEarlierDeadlineWakesPurge tests that scheduling an earlier
// deadline reorders the purge ahead of a long sleep
func TestEarlierDeadlineWakesPurge(t *testing.T) {
	d := newTestDB(t)

	// The purge task first goes to sleep for an hour
	d.Set("late", []byte("v"), time.Hour)

	// Then a much earlier deadline arrives
	d.Set("early", []byte("v"), 50*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if d.Stats().Keys == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if stats := d.Stats(); stats.Keys != 1 {
		t.Errorf("Purge should have removed only the early key, stats: %+v", stats)
	}
	if _, ok := d.Get("late"); !ok {
		t.Error("Late key should still be present")
	}
}

// TestPublishSubscribe tests fan-out delivery and the receiver count
// reply of publish
func TestPublishSubscribe(t *testing.T) {
	d := newTestDB(t)

	if n := d.Publish("news", []byte("nobody")); n != 0 {
		t.Errorf("Publish without subscribers should return 0, got %d", n)
	}

	r1 := d.Subscribe("news")
	r2 := d.Subscribe("news")

	if n := d.Publish("news", []byte("hi")); n != 2 {
		t.Errorf("Publish should report 2 receivers, got %d", n)
	}

	for i, r := range []interface{ Ch() <-chan []byte }{r1, r2} {
		select {
		case msg := <-r.Ch():
			if string(msg) != "hi" {
				t.Errorf("Receiver %d expected hi, got %q", i, msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("Receiver %d did not get the message", i)
		}
	}
}

// TestChannelGarbageCollection tests that a channel's queue is removed
// lazily once the last receiver is gone
func TestChannelGarbageCollection(t *testing.T) {
	d := newTestDB(t)

	r := d.Subscribe("transient")
	if stats := d.Stats(); stats.Channels != 1 {
		t.Fatalf("Expected 1 channel, got %d", stats.Channels)
	}

	r.Close()

	// The queue lingers until the next publish touches the channel
	if n := d.Publish("transient", []byte("x")); n != 0 {
		t.Errorf("Publish should report 0 receivers, got %d", n)
	}
	if stats := d.Stats(); stats.Channels != 0 {
		t.Errorf("Channel should have been garbage-collected, got %d", stats.Channels)
	}
}

// TestConcurrentSets tests that concurrent writers leave the keyspace
// consistent
func TestConcurrentSets(t *testing.T) {
	d := newTestDB(t)

	const (
		writers = 8
		keys    = 50
	)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for k := 0; k < keys; k++ {
				d.Set(fmt.Sprintf("key-%d", k), []byte(fmt.Sprintf("writer-%d", w)), 0)
			}
		}(w)
	}
	wg.Wait()

	if stats := d.Stats(); stats.Keys != keys {
		t.Errorf("Expected %d keys, got %d", keys, stats.Keys)
	}

	for k := 0; k < keys; k++ {
		if _, ok := d.Get(fmt.Sprintf("key-%d", k)); !ok {
			t.Errorf("Key %d missing after concurrent writes", k)
		}
	}
}

// TestHolderCloseIdempotent tests that closing the holder twice is safe
func TestHolderCloseIdempotent(t *testing.T) {
	holder := NewHolder(nil)
	holder.Close()
	holder.Close()
}
