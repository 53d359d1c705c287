package app

import (
	"encoding/json"
	"log/slog"

	"AskKit/internal/component"
	"AskKit/internal/ipc"
)

// OnEvent listens for event while n is mounted. Payloads are decoded into P;
// payloads that fail to decode are logged and dropped.
func OnEvent[P any](n *component.Node, source ipc.EventSource, event string, handler func(P)) {
	n.OnMount(func() func() {
		return source.Listen(event, func(raw json.RawMessage) {
			var payload P
			if err := json.Unmarshal(raw, &payload); err != nil {
				slog.Warn("dropping undecodable event", "event", event, "node", n.Path(), "error", err)
				return
			}
			handler(payload)
		})
	})
}
