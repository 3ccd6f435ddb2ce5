// Package cache provides the single-slot memoization primitive behind the
// analytics result caches.  Unlike a keyed cache, a Slot retains only the
// most recent (key, value) pair: the dashboard workload revisits the same
// filter criteria repeatedly between changes, so one slot per view is all
// the history worth keeping.
package cache

import "sync"

// Slot memoizes the last computed value under its key.  The zero value is
// an empty, ready-to-use slot.  Slot is safe for concurrent use; the
// pipeline itself is single-writer, but the HTTP layer may probe
// concurrently.
type Slot[K comparable, V any] struct {
	mu     sync.Mutex
	key    K
	value  V
	filled bool
}

// GetOrCompute returns the stored value when the slot holds an entry for
// key, without calling compute.  Otherwise compute is invoked; on success
// its result replaces the slot content and is returned.  On error the slot
// is left unchanged — a stale-but-valid previous entry is preferable to a
// poisoned cache — and the error propagates.
func (s *Slot[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filled && s.key == key {
		return s.value, nil
	}

	value, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	s.key = key
	s.value = value
	s.filled = true
	return value, nil
}

// Peek returns the stored value and true when the slot holds an entry for
// key, without computing anything.
func (s *Slot[K, V]) Peek(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filled && s.key == key {
		return s.value, true
	}
	var zero V
	return zero, false
}

// Last returns the most recently stored value regardless of key.  The HTTP
// layer falls back to it when a recompute fails and the previous
// materialization is still presentable.
func (s *Slot[K, V]) Last() (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.filled {
		var zero V
		return zero, false
	}
	return s.value, true
}

// Invalidate empties the slot.  Called when the underlying relation is
// reset and any materialization may be stale.
func (s *Slot[K, V]) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zeroK K
	var zeroV V
	s.key = zeroK
	s.value = zeroV
	s.filled = false
}
