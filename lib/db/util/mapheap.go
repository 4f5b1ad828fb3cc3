// Package util
//
// This file provides a specialized priority queue for key expiration.
//
// This implementation combines a binary heap with a hash map to provide both
// efficient deadline-based operations and key-based access. The keyspace uses
// it as its expiry index: the purge task repeatedly asks for the earliest
// deadline, while setters need to replace or remove the deadline of a
// specific key in O(log n).
//
// Key advantages of this implementation:
//
// 1. Time Complexity:
//   - O(log n) for deadline operations (Push, Pop, Update)
//   - O(1) for key-based lookups and existence checks
//   - O(log n) for key-based removal
//
// 2. Expiry Index Benefits:
//   - Efficiently identifies the next key due for purging
//   - Supports direct removal when a key is overwritten without a TTL
//   - Holds at most one deadline per key (AddItem replaces)
//
// 3. Concurrency Considerations:
//   - Note: This implementation is not thread-safe by default
//   - For concurrent use, external synchronization must be applied
//     (the keyspace accesses it under its own mutex)
package util

import (
	"container/heap"
	"strconv"
)

// item represents a single scheduled expiration
// with the owning key and the deadline as priority
type item struct {
	Key      string // The key this deadline belongs to
	Priority uint64 // Deadline in unix nanoseconds
	index    int    // Index in the heap, maintained by heap package
}

func (i *item) String() string {
	return "{Key: " + i.Key + ", Priority: " + strconv.FormatUint(i.Priority, 10) + "}"
}

// ExpiryHeap implements a priority queue over (deadline, key) pairs
// with both heap operations and key-based access. Pairs are ordered
// lexicographically on (deadline, key) so that identical deadlines
// remain distinguishable by key.
type ExpiryHeap struct {
	items    []*item          // The actual heap slice
	itemsMap map[string]*item // Map for O(1) access by key
}

// NewExpiryHeap creates a new, empty expiry index
func NewExpiryHeap() *ExpiryHeap {
	return &ExpiryHeap{
		items:    make([]*item, 0),
		itemsMap: make(map[string]*item),
	}
}

// Len returns the number of scheduled expirations (part of heap.Interface)
func (eh *ExpiryHeap) Len() int { return len(eh.items) }

// Less compares items by (deadline, key) (part of heap.Interface)
// The earliest deadline comes first; ties are broken by key
func (eh *ExpiryHeap) Less(i, j int) bool {
	if eh.items[i].Priority != eh.items[j].Priority {
		return eh.items[i].Priority < eh.items[j].Priority
	}
	return eh.items[i].Key < eh.items[j].Key
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (eh *ExpiryHeap) Swap(i, j int) {
	eh.items[i], eh.items[j] = eh.items[j], eh.items[i]
	eh.items[i].index = i
	eh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (eh *ExpiryHeap) Push(x interface{}) {
	n := len(eh.items)
	item := x.(*item)
	item.index = n
	eh.items = append(eh.items, item)
	eh.itemsMap[item.Key] = item
}

// Pop removes and returns the last item of the heap slice (part of heap.Interface);
// heap.Pop moves the earliest deadline there before calling it
func (eh *ExpiryHeap) Pop() interface{} {
	old := eh.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	eh.items = old[:n-1]
	delete(eh.itemsMap, item.Key)
	return item
}

// AddItem schedules or reschedules the expiration of a key.
// If the key is already scheduled, its deadline is replaced so that
// the index never holds more than one pair per key.
func (eh *ExpiryHeap) AddItem(key string, deadline uint64) {
	if existing, ok := eh.itemsMap[key]; ok {
		existing.Priority = deadline
		heap.Fix(eh, existing.index)
		return
	}
	heap.Push(eh, &item{Key: key, Priority: deadline})
}

// RemoveByKey removes the scheduled expiration for a key.
// The bool return value indicates whether the key was scheduled;
// if so, the removed deadline is returned.
func (eh *ExpiryHeap) RemoveByKey(key string) (uint64, bool) {
	existing, ok := eh.itemsMap[key]
	if !ok {
		return 0, false
	}
	deadline := existing.Priority
	heap.Remove(eh, existing.index)
	return deadline, true
}

// Contains checks whether a key has a scheduled expiration
func (eh *ExpiryHeap) Contains(key string) bool {
	_, ok := eh.itemsMap[key]
	return ok
}

// GetByKey returns the deadline scheduled for a key
func (eh *ExpiryHeap) GetByKey(key string) (uint64, bool) {
	existing, ok := eh.itemsMap[key]
	if !ok {
		return 0, false
	}
	return existing.Priority, true
}

// Peek returns the key and deadline of the earliest scheduled
// expiration without removing it
func (eh *ExpiryHeap) Peek() (key string, deadline uint64, exists bool) {
	if len(eh.items) == 0 {
		return "", 0, false
	}
	return eh.items[0].Key, eh.items[0].Priority, true
}

// PopItem removes and returns the earliest scheduled expiration
func (eh *ExpiryHeap) PopItem() (key string, deadline uint64, exists bool) {
	if len(eh.items) == 0 {
		return "", 0, false
	}
	popped := heap.Pop(eh).(*item)
	return popped.Key, popped.Priority, true
}
