package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_MountRunsParentsFirst(t *testing.T) {
	root := NewRoot("root")
	child := root.Child("child")

	var order []string
	child.OnMount(func() func() { order = append(order, "child"); return nil })
	root.OnMount(func() func() { order = append(order, "root"); return nil })

	root.Mount()
	assert.Equal(t, []string{"root", "child"}, order)
	assert.True(t, root.Mounted())
	assert.True(t, child.Mounted())
}

func TestNode_DestroyRunsCleanupsChildrenFirst(t *testing.T) {
	root := NewRoot("root")
	child := root.Child("child")

	var order []string
	root.OnMount(func() func() { return func() { order = append(order, "root cleanup") } })
	child.OnMount(func() func() { return func() { order = append(order, "child cleanup") } })
	child.OnDestroy(func() { order = append(order, "child destroy") })

	root.Mount()
	root.Destroy()

	assert.Equal(t, []string{"child cleanup", "child destroy", "root cleanup"}, order)
	assert.False(t, root.Mounted())
}

func TestNode_DestroyDetachesFromParent(t *testing.T) {
	root := NewRoot("root")
	child := root.Child("child")
	root.Mount()

	child.Destroy()
	child.Destroy()

	assert.Empty(t, root.childrenSnapshot())
	assert.True(t, root.Mounted())
}

func TestNode_OnMountAfterMountRunsImmediately(t *testing.T) {
	n := NewRoot("n")
	n.Mount()

	ran, cleaned := false, false
	n.OnMount(func() func() {
		ran = true
		return func() { cleaned = true }
	})
	assert.True(t, ran)

	n.Destroy()
	assert.True(t, cleaned)
}

func TestNode_OnMountAfterDestroyIgnored(t *testing.T) {
	n := NewRoot("n")
	n.Mount()
	n.Destroy()

	ran := false
	n.OnMount(func() func() { ran = true; return nil })
	n.Mount()
	assert.False(t, ran)
}

func TestContext_ProvideAndUseWalksUp(t *testing.T) {
	key := NewKey[string]("greeting")
	root := NewRoot("root")
	leaf := root.Child("a").Child("b")

	Provide(root, key, "hello")

	got, ok := Use(leaf, key)
	require.True(t, ok)
	assert.Equal(t, "hello", got)
}

func TestContext_NearestProviderWins(t *testing.T) {
	key := NewKey[int]("n")
	root := NewRoot("root")
	mid := root.Child("mid")
	leaf := mid.Child("leaf")

	Provide(root, key, 1)
	Provide(mid, key, 2)

	got, _ := Use(leaf, key)
	assert.Equal(t, 2, got)
	got, _ = Use(root, key)
	assert.Equal(t, 1, got)
}

func TestContext_UseWithoutProvider(t *testing.T) {
	key := NewKey[*int]("missing")
	leaf := NewRoot("root").Child("leaf")

	got, ok := Use(leaf, key)
	assert.False(t, ok)
	assert.Nil(t, got)

	_, err := Lookup(leaf, key)
	var missing *MissingContextError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "root/leaf", missing.Path)

	_, err = Lookup[*int](nil, key)
	assert.Error(t, err)
}

func TestContext_DistinctKeysSameName(t *testing.T) {
	a := NewKey[string]("same")
	b := NewKey[string]("same")
	root := NewRoot("root")
	Provide(root, a, "a")

	_, ok := Use(root, b)
	assert.False(t, ok)
}
