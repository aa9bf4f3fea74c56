package resource

import (
	"sort"
	"sync"
)

// Table is a thread-safe map from numeric ids to host-owned resources.
// Ids are chosen by the caller so that several tables can share one id space.
type Table[T any] struct {
	mu      sync.RWMutex
	entries map[uint32]T
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{entries: make(map[uint32]T)}
}

// Put stores resource under id, replacing any previous entry.
func (t *Table[T]) Put(id uint32, resource T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = resource
}

// Get retrieves the resource stored under id.
func (t *Table[T]) Get(id uint32) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	res, ok := t.entries[id]
	return res, ok
}

// Remove deletes id and returns what was stored there.
func (t *Table[T]) Remove(id uint32) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	res, ok := t.entries[id]
	delete(t.entries, id)
	return res, ok
}

// Len is the number of stored resources.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Range calls f for each entry in ascending id order until f returns false.
// f runs on a snapshot, so it may add or remove entries.
func (t *Table[T]) Range(f func(id uint32, resource T) bool) {
	t.mu.RLock()
	ids := make([]uint32, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	snapshot := make(map[uint32]T, len(t.entries))
	for id, res := range t.entries {
		snapshot[id] = res
	}
	t.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if !f(id, snapshot[id]) {
			return
		}
	}
}
