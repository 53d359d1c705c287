package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_HashStableAcrossParamOrder(t *testing.T) {
	a := NewKey("chat-messages", map[string]any{"chatId": "abc", "page": 1})
	b := NewKey("chat-messages", map[string]any{"page": 1, "chatId": "abc"})
	c := NewKey("chat-messages", map[string]any{"chatId": "abd", "page": 1})

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.Len(t, a.Hash(), 64)
}

func TestKey_NoParamsDiffersFromEmptyParams(t *testing.T) {
	assert.NotEqual(t, NewKey("agents").Hash(), NewKey("agents", map[string]any{}).Hash())
	assert.Nil(t, NewKey("agents").Params)
	assert.Nil(t, NewKey("agents", nil).Params)
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "['current-agent']", NewKey("current-agent").String())
	assert.Equal(t, `['chat-messages', {"chatId":"abc"}]`,
		NewKey("chat-messages", map[string]any{"chatId": "abc"}).String())
}

func TestKey_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(NewKey("agent-config", map[string]any{"id": "a1"}))
	require.NoError(t, err)
	assert.JSONEq(t, `["agent-config", {"id": "a1"}]`, string(b))
}

func TestKey_Matches(t *testing.T) {
	full := NewKey("chat-messages", map[string]any{"chatId": "abc", "limit": 10})

	tests := []struct {
		name   string
		filter Key
		want   bool
	}{
		{name: "tag only", filter: NewKey("chat-messages"), want: true},
		{name: "partial params", filter: NewKey("chat-messages", map[string]any{"chatId": "abc"}), want: true},
		{name: "numeric types", filter: NewKey("chat-messages", map[string]any{"limit": 10.0}), want: true},
		{name: "different value", filter: NewKey("chat-messages", map[string]any{"chatId": "x"}), want: false},
		{name: "missing param", filter: NewKey("chat-messages", map[string]any{"other": 1}), want: false},
		{name: "different tag", filter: NewKey("chats"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(full))
		})
	}
}
