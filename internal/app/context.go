// Package app holds the contexts every launcher component reads: the runtime
// (query client, session store, bridge) and the launcher state.
package app

import (
	"fmt"
	"log/slog"

	"AskKit/internal/component"
	"AskKit/internal/ipc"
	"AskKit/internal/query"
	"AskKit/internal/reactive"
	"AskKit/internal/session"
)

// Runtime is constructed once per application and provided at the root.
type Runtime struct {
	Query   *query.Client
	Session *session.State
	Invoker ipc.Invoker
	Events  ipc.EventSource
	Logger  *slog.Logger
}

var (
	runtimeKey  = component.NewKey[*Runtime]("runtime")
	launcherKey = component.NewKey[*Launcher]("launcher")
)

// SetRuntime provides rt to n and its descendants
func SetRuntime(n *component.Node, rt *Runtime) *Runtime {
	return component.Provide(n, runtimeKey, rt)
}

// UseRuntime returns the nearest runtime. ok is false outside a provider.
func UseRuntime(n *component.Node) (*Runtime, bool) {
	rt, ok := component.Use(n, runtimeKey)
	return rt, ok && rt != nil
}

// MustUseRuntime is UseRuntime for wiring code where a missing runtime is a
// programming error.
func MustUseRuntime(n *component.Node) *Runtime {
	rt, err := component.Lookup(n, runtimeKey)
	if err != nil || rt == nil {
		panic(fmt.Errorf("runtime not provided: %w", err))
	}
	return rt
}

// Launcher carries the chat the launcher currently shows
type Launcher struct {
	chatID *reactive.Value[string]
}

// NewLauncher creates launcher state showing chatID ("" for none)
func NewLauncher(chatID string) *Launcher {
	return &Launcher{chatID: reactive.New(chatID)}
}

// ChatID returns the current chat id, "" when none is open
func (l *Launcher) ChatID() string {
	return l.chatID.Get()
}

// SetChatID replaces the current chat id
func (l *Launcher) SetChatID(id string) {
	l.chatID.Set(id)
}

// Subscribe calls fn whenever the chat id is set
func (l *Launcher) Subscribe(fn func(chatID string)) func() {
	return l.chatID.Subscribe(fn)
}

// SetLauncherContext provides l to n and its descendants
func SetLauncherContext(n *component.Node, l *Launcher) *Launcher {
	return component.Provide(n, launcherKey, l)
}

// UseLauncherContext returns the nearest launcher state
func UseLauncherContext(n *component.Node) (*Launcher, bool) {
	l, ok := component.Use(n, launcherKey)
	return l, ok && l != nil
}
