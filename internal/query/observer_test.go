package query

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type agent struct {
	ID string
}

func TestObserver_FetchesOnStart(t *testing.T) {
	c := NewClient()
	var calls atomic.Int32
	o := NewObserver(context.Background(), c, Options[[]string]{
		Key: NewKey("agents"),
		Fn: func(context.Context) ([]string, error) {
			calls.Add(1)
			return []string{"gemini"}, nil
		},
		Enabled: true,
	})

	assert.Equal(t, StatusPending, o.Result().Status)
	o.Start()
	o.Wait()

	res := o.Result()
	assert.True(t, res.Success())
	assert.Equal(t, []string{"gemini"}, res.Data)
	assert.Equal(t, int32(1), calls.Load())

	o.Start()
	o.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestObserver_UsesFreshCacheWithoutFetching(t *testing.T) {
	c := NewClient()
	key := NewKey("chats")
	c.SetQueryData(key, func(any) any { return []string{"cached"} })

	o := NewObserver(context.Background(), c, Options[[]string]{
		Key: key,
		Fn: func(context.Context) ([]string, error) {
			t.Fatal("fresh data must not be refetched")
			return nil, nil
		},
		Enabled: true,
	})
	o.Start()
	o.Wait()

	assert.Equal(t, []string{"cached"}, o.Result().Data)
}

func TestObserver_DisabledDoesNotFetch(t *testing.T) {
	c := NewClient()
	var calls atomic.Int32
	o := NewObserver(context.Background(), c, Options[string]{
		Key: NewKey("agent-config", map[string]any{"id": ""}),
		Fn: func(context.Context) (string, error) {
			calls.Add(1)
			return "", nil
		},
	})
	o.Start()
	o.Wait()

	assert.Zero(t, calls.Load())
	assert.False(t, o.Result().Enabled)
	assert.False(t, o.Result().Loading())
}

func TestObserver_DependentQuery(t *testing.T) {
	c := NewClient()
	ctx := context.Background()

	parent := NewObserver(ctx, c, Options[*agent]{
		Key:     NewKey("current-agent"),
		Fn:      func(context.Context) (*agent, error) { return &agent{ID: "a1"}, nil },
		Enabled: true,
	})

	var configKeys []Key
	configOpts := func(a *agent) Options[string] {
		id := ""
		if a != nil {
			id = a.ID
		}
		return Options[string]{
			Key: NewKey("agent-config", map[string]any{"id": id}),
			Fn: func(context.Context) (string, error) {
				configKeys = append(configKeys, NewKey("agent-config", map[string]any{"id": id}))
				return "config-" + id, nil
			},
			Enabled: a != nil,
		}
	}

	child := NewObserver(ctx, c, configOpts(nil))
	child.Start()
	child.Wait()
	assert.Empty(t, configKeys)

	parent.Start()
	parent.Wait()
	child.SetOptions(configOpts(parent.Result().Data))
	child.Wait()

	require.Len(t, configKeys, 1)
	assert.Equal(t, NewKey("agent-config", map[string]any{"id": "a1"}), configKeys[0])
	assert.Equal(t, "config-a1", child.Result().Data)
}

func TestObserver_FollowsCacheUpdates(t *testing.T) {
	c := NewClient()
	key := NewKey("chat-messages", map[string]any{"chatId": "abc"})
	o := NewObserver(context.Background(), c, Options[[]string]{
		Key:     key,
		Fn:      func(context.Context) ([]string, error) { return []string{"one"}, nil },
		Enabled: true,
	})

	var seen [][]string
	unsub := o.Subscribe(func(r Result[[]string]) {
		if r.Success() {
			seen = append(seen, r.Data)
		}
	})
	defer unsub()

	o.Start()
	o.Wait()
	c.SetQueryData(key, func(old any) any { return append(old.([]string), "two") })

	require.NotEmpty(t, seen)
	assert.Equal(t, []string{"one", "two"}, seen[len(seen)-1])
}

func TestObserver_ErrorResult(t *testing.T) {
	c := NewClient()
	boom := errors.New("boom")
	o := NewObserver(context.Background(), c, Options[int]{
		Key:     NewKey("chats"),
		Fn:      func(context.Context) (int, error) { return 0, boom },
		Enabled: true,
	})
	o.Start()
	o.Wait()

	res := o.Result()
	assert.Equal(t, StatusError, res.Status)
	assert.ErrorIs(t, res.Err, boom)
}

func TestObserver_StopIgnoresLaterChanges(t *testing.T) {
	c := NewClient()
	key := NewKey("agents")
	c.SetQueryData(key, func(any) any { return 1 })

	o := NewObserver(context.Background(), c, Options[int]{Key: key, Enabled: true})
	o.Start()
	assert.Equal(t, 1, o.Result().Data)

	o.Stop()
	c.SetQueryData(key, func(any) any { return 2 })
	assert.Equal(t, 1, o.Result().Data)
}

func TestObserver_FollowsEntryAfterRemove(t *testing.T) {
	c := NewClient()
	key := NewKey("agents")
	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}
	o := NewObserver(context.Background(), c, Options[int]{Key: key, Fn: fetch, Enabled: true})
	o.Start()
	o.Wait()
	require.Equal(t, 1, o.Result().Data)

	c.Remove(key)
	assert.Equal(t, StatusPending, o.Result().Status)

	_, err := c.Fetch(context.Background(), key, func(context.Context) (any, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, o.Result().Data)

	require.NoError(t, c.Invalidate(context.Background(), key))
	assert.Equal(t, int32(1), calls.Load())
	res := o.Result()
	assert.True(t, res.Success())
	assert.Equal(t, 42, res.Data)

	c.SetQueryData(key, func(any) any { return 7 })
	assert.Equal(t, 7, o.Result().Data)
}

func TestObserver_RefetchIgnoresFreshness(t *testing.T) {
	c := NewClient()
	var calls atomic.Int32
	o := NewObserver(context.Background(), c, Options[int]{
		Key:     NewKey("chats"),
		Fn:      func(context.Context) (int, error) { return int(calls.Add(1)), nil },
		Enabled: true,
	})
	o.Start()
	o.Wait()
	require.Equal(t, 1, o.Result().Data)

	v, err := o.Refetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, o.Result().Data)
}
