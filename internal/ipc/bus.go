package ipc

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// Handler receives the JSON payload of one event
type Handler func(payload json.RawMessage)

// Bus fans events out to listeners. Handlers run synchronously on the
// emitting goroutine, in registration order.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler
	all      map[int]func(event string, payload json.RawMessage)
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string]map[int]Handler),
		all:      make(map[int]func(string, json.RawMessage)),
	}
}

// Listen registers h for event
func (b *Bus) Listen(event string, h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[int]Handler)
	}
	b.handlers[event][id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers[event], id)
			if len(b.handlers[event]) == 0 {
				delete(b.handlers, event)
			}
		})
	}
}

// ListenAll registers fn for every event. Transports use it to forward events.
func (b *Bus) ListenAll(fn func(event string, payload json.RawMessage)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.all[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.all, id)
		})
	}
}

// Emit encodes payload and delivers it
func (b *Bus) Emit(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	b.EmitRaw(event, raw)
	return nil
}

// EmitRaw delivers an already encoded payload
func (b *Bus) EmitRaw(event string, payload json.RawMessage) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.handlers[event]))
	for id := range b.handlers[event] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	hs := make([]Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, b.handlers[event][id])
	}
	allIDs := make([]int, 0, len(b.all))
	for id := range b.all {
		allIDs = append(allIDs, id)
	}
	slices.Sort(allIDs)
	all := make([]func(string, json.RawMessage), 0, len(allIDs))
	for _, id := range allIDs {
		all = append(all, b.all[id])
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(payload)
	}
	for _, fn := range all {
		fn(event, payload)
	}
}
