// Package query caches results of remote calls by key, coalesces concurrent
// fetches and lets observers follow a key's state.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultStaleTime is how long a successful result is considered fresh.
const DefaultStaleTime = 30 * time.Second

// Status is the data status of a cache entry
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// FetchFunc loads the data for one key
type FetchFunc func(ctx context.Context) (any, error)

// State is a snapshot of one cache entry.
type State struct {
	Status      Status
	Data        any
	Err         error
	UpdatedAt   time.Time
	Fetching    bool
	Invalidated bool
}

type entry struct {
	key       Key
	state     State
	fn        FetchFunc
	observers int
	nextID    int
	subs      map[int]func(State)
}

// Client is the query cache shared by every hook of one application.
type Client struct {
	mu        sync.Mutex
	entries   map[string]*entry
	group     singleflight.Group
	staleTime time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithStaleTime sets how long successful results stay fresh. Zero makes
// every result stale immediately.
func WithStaleTime(d time.Duration) Option {
	return func(c *Client) { c.staleTime = d }
}

// WithLogger sets the logger for background fetch failures
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates an empty query cache
func NewClient(opts ...Option) *Client {
	c := &Client{
		entries:   make(map[string]*entry),
		staleTime: DefaultStaleTime,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// entryLocked returns the entry for key, creating a pending one. c.mu must be held.
func (c *Client) entryLocked(key Key) *entry {
	h := key.Hash()
	e, ok := c.entries[h]
	if !ok {
		e = &entry{key: key, state: State{Status: StatusPending}, subs: make(map[int]func(State))}
		c.entries[h] = e
	}
	return e
}

// update applies fn to the entry under the lock and notifies its subscribers.
func (c *Client) update(key Key, fn func(e *entry)) {
	c.mu.Lock()
	e := c.entryLocked(key)
	fn(e)
	st := e.state
	subs := sortedSubs(e.subs)
	c.mu.Unlock()

	for _, sub := range subs {
		sub(st)
	}
}

func sortedSubs(m map[int]func(State)) []func(State) {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(State), 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// Fetch runs fn for key and stores the outcome. Concurrent calls for the same
// key share a single execution of the first caller's fn.
func (c *Client) Fetch(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	if fn == nil {
		return nil, fmt.Errorf("failed to fetch %s: no fetch function", key)
	}

	h := key.Hash()
	v, err, _ := c.group.Do(h, func() (any, error) {
		c.update(key, func(e *entry) {
			e.fn = fn
			e.state.Fetching = true
		})

		data, err := fn(ctx)

		c.update(key, func(e *entry) {
			e.state.Fetching = false
			if err != nil {
				e.state.Status = StatusError
				e.state.Err = err
				return
			}
			e.state.Status = StatusSuccess
			e.state.Data = data
			e.state.Err = nil
			e.state.UpdatedAt = c.now()
			e.state.Invalidated = false
		})
		return data, err
	})
	return v, err
}

// Prefetch fetches key unless a fresh successful result is cached. Failures
// are recorded in the entry state and logged, never returned.
func (c *Client) Prefetch(ctx context.Context, key Key, fn FetchFunc) {
	if st, ok := c.GetState(key); ok && !c.isStale(st) {
		return
	}
	if _, err := c.Fetch(ctx, key, fn); err != nil {
		c.logger.Debug("prefetch failed", "key", key.String(), "error", err)
	}
}

func (c *Client) isStale(st State) bool {
	if st.Status != StatusSuccess || st.Invalidated {
		return true
	}
	return c.now().Sub(st.UpdatedAt) >= c.staleTime
}

// IsStale reports whether key has no fresh successful result.
func (c *Client) IsStale(key Key) bool {
	st, ok := c.GetState(key)
	return !ok || c.isStale(st)
}

// GetState returns the entry state for key
func (c *Client) GetState(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.Hash()]
	if !ok {
		return State{}, false
	}
	return e.state, true
}

// GetQueryData returns the cached data for key if a fetch has succeeded or
// data was set directly.
func (c *Client) GetQueryData(key Key) (any, bool) {
	st, ok := c.GetState(key)
	if !ok || st.Status != StatusSuccess {
		return nil, false
	}
	return st.Data, true
}

// SetQueryData replaces the cached data for key with updater(old). old is nil
// when nothing is cached.
func (c *Client) SetQueryData(key Key, updater func(old any) any) {
	c.update(key, func(e *entry) {
		var old any
		if e.state.Status == StatusSuccess {
			old = e.state.Data
		}
		e.state.Data = updater(old)
		e.state.Status = StatusSuccess
		e.state.Err = nil
		e.state.UpdatedAt = c.now()
	})
}

// Invalidate marks every entry matched by filter as stale and refetches the
// ones that currently have observers. It waits for the refetches and returns
// their joined errors.
func (c *Client) Invalidate(ctx context.Context, filter Key) error {
	type refetch struct {
		key Key
		fn  FetchFunc
	}

	c.mu.Lock()
	var matched []Key
	var todo []refetch
	for _, e := range c.entries {
		if !filter.Matches(e.key) {
			continue
		}
		matched = append(matched, e.key)
		if e.observers > 0 && e.fn != nil {
			todo = append(todo, refetch{key: e.key, fn: e.fn})
		}
	}
	c.mu.Unlock()

	for _, k := range matched {
		c.update(k, func(e *entry) { e.state.Invalidated = true })
	}

	var errs []error
	for _, r := range todo {
		if _, err := c.Fetch(ctx, r.key, r.fn); err != nil {
			errs = append(errs, fmt.Errorf("failed to refetch %s: %w", r.key, err))
		}
	}
	return errors.Join(errs...)
}

// Remove drops the cached state for key. An entry that still has
// subscribers is reset to pending in place, keeping its fetch function, and
// the subscribers are told; later fetches and invalidations reach them.
func (c *Client) Remove(key Key) {
	c.mu.Lock()
	h := key.Hash()
	e, ok := c.entries[h]
	if !ok {
		c.mu.Unlock()
		return
	}
	if len(e.subs) == 0 {
		delete(c.entries, h)
		c.mu.Unlock()
		return
	}
	e.state = State{Status: StatusPending}
	st := e.state
	subs := sortedSubs(e.subs)
	c.mu.Unlock()

	for _, sub := range subs {
		sub(st)
	}
}

// Subscribe calls fn with the entry state after every change to key.
func (c *Client) Subscribe(key Key, fn func(State)) func() {
	return c.subscribe(key, fn, false)
}

// observe is Subscribe for observers; observed entries are refetched on
// invalidation.
func (c *Client) observe(key Key, fn func(State)) func() {
	return c.subscribe(key, fn, true)
}

func (c *Client) subscribe(key Key, fn func(State), observer bool) func() {
	c.mu.Lock()
	e := c.entryLocked(key)
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	if observer {
		e.observers++
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(e.subs, id)
			if observer {
				e.observers--
			}
		})
	}
}
