// Package component implements the component tree the launcher mounts:
// every node can provide values to its subtree and register lifecycle
// callbacks that run when it is mounted or destroyed.
package component

import (
	"fmt"
	"sync"
)

// Key identifies a context value of type T. Two keys are equal only if they
// are the same pointer, so values cannot collide across packages.
type Key[T any] struct {
	name string
}

// NewKey returns a fresh key. name is used in diagnostics only.
func NewKey[T any](name string) *Key[T] {
	return &Key[T]{name: name}
}

func (k *Key[T]) String() string {
	return k.name
}

// Node is one component in the tree.
type Node struct {
	name   string
	parent *Node

	mu        sync.Mutex
	children  []*Node
	contexts  map[any]any
	onMount   []func() func()
	onDestroy []func()
	mounted   bool
	destroyed bool
}

// NewRoot returns a parentless node
func NewRoot(name string) *Node {
	return &Node{name: name}
}

// Child creates a node under n
func (n *Node) Child(name string) *Node {
	c := &Node{name: name, parent: n}
	n.mu.Lock()
	n.children = append(n.children, c)
	n.mu.Unlock()
	return c
}

// Name returns the node name
func (n *Node) Name() string {
	return n.name
}

// Parent returns the enclosing node or nil for a root
func (n *Node) Parent() *Node {
	return n.parent
}

// Path returns the slash separated names from the root to n
func (n *Node) Path() string {
	if n.parent == nil {
		return n.name
	}
	return fmt.Sprintf("%s/%s", n.parent.Path(), n.name)
}

// Mounted reports whether the node is currently mounted
func (n *Node) Mounted() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.mounted
}

// OnMount registers fn to run when the node mounts. A non-nil function
// returned by fn runs when the node is destroyed. Registering on an already
// mounted node runs fn immediately.
func (n *Node) OnMount(fn func() func()) {
	n.mu.Lock()
	if n.destroyed {
		n.mu.Unlock()
		return
	}
	if !n.mounted {
		n.onMount = append(n.onMount, fn)
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	if cleanup := fn(); cleanup != nil {
		n.OnDestroy(cleanup)
	}
}

// OnDestroy registers fn to run when the node is destroyed
func (n *Node) OnDestroy(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.destroyed {
		return
	}
	n.onDestroy = append(n.onDestroy, fn)
}

// Mount mounts n and then its children, parents first.
func (n *Node) Mount() {
	n.mu.Lock()
	if n.mounted || n.destroyed {
		n.mu.Unlock()
		return
	}
	n.mounted = true
	fns := n.onMount
	n.onMount = nil
	n.mu.Unlock()

	for _, fn := range fns {
		if cleanup := fn(); cleanup != nil {
			n.OnDestroy(cleanup)
		}
	}

	for _, c := range n.childrenSnapshot() {
		c.Mount()
	}
}

// Destroy tears down children first, then runs n's destroy callbacks in
// reverse registration order. The node is detached from its parent.
func (n *Node) Destroy() {
	for _, c := range n.childrenSnapshot() {
		c.Destroy()
	}

	n.mu.Lock()
	if n.destroyed {
		n.mu.Unlock()
		return
	}
	n.destroyed = true
	n.mounted = false
	fns := n.onDestroy
	n.onDestroy = nil
	n.onMount = nil
	n.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}

	if n.parent != nil {
		n.parent.removeChild(n)
	}
}

func (n *Node) childrenSnapshot() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

func (n *Node) removeChild(c *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, child := range n.children {
		if child == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}
