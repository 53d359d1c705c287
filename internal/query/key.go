package query

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"reflect"
)

// Key identifies a cached query: a tag plus optional parameters, written
// ['chat-messages', {"chatId":"abc"}].
type Key struct {
	Tag    string
	Params map[string]any
}

// NewKey builds a key. Passing no params leaves Params nil.
func NewKey(tag string, params ...map[string]any) Key {
	k := Key{Tag: tag}
	if len(params) > 0 && params[0] != nil {
		k.Params = params[0]
	}
	return k
}

// Hash generates the cache key used to store the query. Params are encoded as
// JSON, which sorts map keys, so equal params hash equally.
func (k Key) Hash() string {
	h := sha256.New()
	h.Write([]byte(k.Tag))
	if k.Params != nil {
		b, err := json.Marshal(k.Params)
		if err != nil {
			b = []byte(fmt.Sprintf("%v", k.Params))
		}
		h.Write([]byte{0})
		h.Write(b)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (k Key) String() string {
	if k.Params == nil {
		return fmt.Sprintf("['%s']", k.Tag)
	}
	b, err := json.Marshal(k.Params)
	if err != nil {
		return fmt.Sprintf("['%s', %v]", k.Tag, k.Params)
	}
	return fmt.Sprintf("['%s', %s]", k.Tag, b)
}

// MarshalJSON encodes the key as a JSON array
func (k Key) MarshalJSON() ([]byte, error) {
	if k.Params == nil {
		return json.Marshal([]any{k.Tag})
	}
	return json.Marshal([]any{k.Tag, k.Params})
}

// Matches reports whether k selects other: the tags are equal and every
// param of k is present in other with an equal value. A key without params
// matches every key with the same tag.
func (k Key) Matches(other Key) bool {
	if k.Tag != other.Tag {
		return false
	}
	for name, want := range k.Params {
		got, ok := other.Params[name]
		if !ok || !reflect.DeepEqual(normalize(want), normalize(got)) {
			return false
		}
	}
	return true
}

// normalize round-trips v through JSON so that 1 and 1.0 or typed and
// untyped maps compare equal.
func normalize(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
