package component

import "fmt"

// Provide registers value under key on n. Descendants of n (and n itself)
// observe it through Use. Providing again on the same node replaces the value.
func Provide[T any](n *Node, key *Key[T], value T) T {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.contexts == nil {
		n.contexts = make(map[any]any)
	}
	n.contexts[key] = value
	return value
}

// Use looks key up starting at n and walking towards the root. ok is false
// when no ancestor provides the key.
func Use[T any](n *Node, key *Key[T]) (T, bool) {
	for cur := n; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		v, found := cur.contexts[key]
		cur.mu.Unlock()
		if found {
			return v.(T), true
		}
	}
	var zero T
	return zero, false
}

// MissingContextError reports a context lookup with no provider above it
type MissingContextError struct {
	Key  string
	Path string
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("no provider for context %q above %s", e.Key, e.Path)
}

// Lookup is Use with an error describing where the lookup failed
func Lookup[T any](n *Node, key *Key[T]) (T, error) {
	if n == nil {
		var zero T
		return zero, &MissingContextError{Key: key.String(), Path: "<nil>"}
	}
	v, ok := Use(n, key)
	if !ok {
		return v, &MissingContextError{Key: key.String(), Path: n.Path()}
	}
	return v, nil
}
