package query

import (
	"context"
	"sync"

	"AskKit/internal/reactive"
)

// Options configures an Observer. Fn only runs while Enabled is true.
type Options[T any] struct {
	Key     Key
	Fn      func(ctx context.Context) (T, error)
	Enabled bool
}

// Result is what an Observer exposes to its component.
type Result[T any] struct {
	Key      Key
	Status   Status
	Data     T
	Err      error
	Fetching bool
	Enabled  bool
}

// Loading reports a first load in progress
func (r Result[T]) Loading() bool {
	return r.Status == StatusPending && r.Fetching
}

// Success reports that Data holds a result
func (r Result[T]) Success() bool {
	return r.Status == StatusSuccess
}

// Observer follows one key of a Client and fetches it when enabled and stale.
// Changing the options with SetOptions moves the observer to the new key,
// which is how dependent queries are expressed.
type Observer[T any] struct {
	client *Client
	ctx    context.Context

	mu      sync.Mutex
	opts    Options[T]
	started bool
	unsub   func()

	result *reactive.Value[Result[T]]
	wg     sync.WaitGroup
}

// NewObserver creates an observer. Nothing is fetched until Start.
func NewObserver[T any](ctx context.Context, c *Client, opts Options[T]) *Observer[T] {
	return &Observer[T]{
		client: c,
		ctx:    ctx,
		opts:   opts,
		result: reactive.New(Result[T]{Key: opts.Key, Status: StatusPending, Enabled: opts.Enabled}),
	}
}

// Start subscribes to the key and fetches it if needed. Calling it twice is a no-op.
func (o *Observer[T]) Start() {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return
	}
	o.started = true
	opts := o.opts
	o.attachLocked(opts.Key)
	o.mu.Unlock()

	o.refresh(opts)
	o.maybeFetch(opts)
}

// Stop unsubscribes from the cache. In-flight fetches still complete and
// update the cache.
func (o *Observer[T]) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.unsub != nil {
		o.unsub()
		o.unsub = nil
	}
	o.started = false
}

// SetOptions replaces the options and re-evaluates whether to fetch.
func (o *Observer[T]) SetOptions(opts Options[T]) {
	o.mu.Lock()
	prev := o.opts
	o.opts = opts
	started := o.started
	if started && prev.Key.Hash() != opts.Key.Hash() {
		if o.unsub != nil {
			o.unsub()
		}
		o.attachLocked(opts.Key)
	}
	o.mu.Unlock()

	o.refresh(opts)
	if started {
		o.maybeFetch(opts)
	}
}

// Options returns the current options
func (o *Observer[T]) Options() Options[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opts
}

// Result returns the latest result
func (o *Observer[T]) Result() Result[T] {
	return o.result.Get()
}

// Subscribe calls fn on every result change
func (o *Observer[T]) Subscribe(fn func(Result[T])) func() {
	return o.result.Subscribe(fn)
}

// Refetch fetches the current key regardless of freshness.
func (o *Observer[T]) Refetch(ctx context.Context) (T, error) {
	opts := o.Options()
	var zero T
	if opts.Fn == nil {
		return zero, nil
	}
	v, err := o.client.Fetch(ctx, opts.Key, wrap(opts.Fn))
	if err != nil {
		return zero, err
	}
	data, _ := v.(T)
	return data, nil
}

// Wait blocks until fetches started by this observer have finished.
func (o *Observer[T]) Wait() {
	o.wg.Wait()
}

func (o *Observer[T]) attachLocked(key Key) {
	hash := key.Hash()
	o.unsub = o.client.observe(key, func(st State) {
		o.mu.Lock()
		opts := o.opts
		o.mu.Unlock()
		if opts.Key.Hash() != hash {
			return
		}
		o.result.Set(toResult(opts, st))
	})
}

func (o *Observer[T]) refresh(opts Options[T]) {
	st, ok := o.client.GetState(opts.Key)
	if !ok {
		st = State{Status: StatusPending}
	}
	o.result.Set(toResult(opts, st))
}

func (o *Observer[T]) maybeFetch(opts Options[T]) {
	if !opts.Enabled || opts.Fn == nil || !o.client.IsStale(opts.Key) {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if _, err := o.client.Fetch(o.ctx, opts.Key, wrap(opts.Fn)); err != nil {
			o.client.logger.Debug("query failed", "key", opts.Key.String(), "error", err)
		}
	}()
}

func toResult[T any](opts Options[T], st State) Result[T] {
	data, _ := st.Data.(T)
	return Result[T]{
		Key:      opts.Key,
		Status:   st.Status,
		Data:     data,
		Err:      st.Err,
		Fetching: st.Fetching,
		Enabled:  opts.Enabled,
	}
}

func wrap[T any](fn func(ctx context.Context) (T, error)) FetchFunc {
	return func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
}
