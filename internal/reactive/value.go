// Package reactive provides a small observable value used for state that
// several components read and write.
package reactive

import (
	"slices"
	"sync"
)

// Value holds a T and notifies subscribers synchronously on every Set.
type Value[T any] struct {
	mu     sync.RWMutex
	v      T
	nextID int
	subs   map[int]func(T)
}

// New returns a Value initialised to v
func New[T any](v T) *Value[T] {
	return &Value[T]{v: v, subs: make(map[int]func(T))}
}

// Get returns the current value
func (r *Value[T]) Get() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.v
}

// Set replaces the value and notifies subscribers with the new value.
// Subscribers run after the lock is released so they may call Get or Set.
func (r *Value[T]) Set(v T) {
	r.mu.Lock()
	r.v = v
	subs := r.snapshotSubs()
	r.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

// Update applies fn to the current value under the write lock and notifies
// subscribers with the result.
func (r *Value[T]) Update(fn func(T) T) T {
	r.mu.Lock()
	r.v = fn(r.v)
	v := r.v
	subs := r.snapshotSubs()
	r.mu.Unlock()

	for _, sub := range subs {
		sub(v)
	}
	return v
}

// Subscribe registers fn and returns a function that removes it.
func (r *Value[T]) Subscribe(fn func(T)) func() {
	r.mu.Lock()
	if r.subs == nil {
		r.subs = make(map[int]func(T))
	}
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

func (r *Value[T]) snapshotSubs() []func(T) {
	if len(r.subs) == 0 {
		return nil
	}
	ids := make([]int, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(T), len(ids))
	for i, id := range ids {
		out[i] = r.subs[id]
	}
	return out
}
