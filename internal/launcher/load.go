// Package launcher runs the page loads of the launcher: building the query
// client for the layout and warming the cache for the chats page.
package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"AskKit/internal/app"
	"AskKit/internal/ipc"
	"AskKit/internal/queries"
	"AskKit/internal/query"
)

// Layout is what the root layout load hands to its page loads
type Layout struct {
	Query *query.Client
	Theme string
}

// LayoutOptions configure LoadLayout
type LayoutOptions struct {
	StaleTime time.Duration
	Theme     string
	Logger    *slog.Logger
}

// LoadLayout builds the query client shared by every page. It is the only
// place a query client is constructed.
func LoadLayout(opts LayoutOptions) *Layout {
	var qopts []query.Option
	if opts.StaleTime > 0 {
		qopts = append(qopts, query.WithStaleTime(opts.StaleTime))
	}
	if opts.Logger != nil {
		qopts = append(qopts, query.WithLogger(opts.Logger))
	}
	theme := opts.Theme
	if theme == "" {
		theme = "dark"
	}
	return &Layout{Query: query.NewClient(qopts...), Theme: theme}
}

// ActiveChatID reads the stored active chat. Blank values count as absent.
func ActiveChatID(storage LocalStorage) (string, bool) {
	id, ok := storage.GetItem(ActiveChatIDKey)
	if !ok {
		return "", false
	}
	id = strings.TrimSpace(id)
	return id, id != ""
}

// LoadChatsPage prefetches the messages of the stored active chat, if any,
// and returns its id. Fetch failures are left in the cache entry.
func LoadChatsPage(ctx context.Context, client *query.Client, inv ipc.Invoker, storage LocalStorage) string {
	chatID, ok := ActiveChatID(storage)
	if !ok {
		return ""
	}
	client.Prefetch(ctx, queries.ChatMessagesKey(chatID), queries.Erase(queries.FetchChatMessages(inv, chatID)))
	return chatID
}

// SelectChat opens chatID: it is remembered for the next start, the session
// store switches to it and the launcher context follows. An empty chatID
// closes the current chat.
func SelectChat(rt *app.Runtime, l *app.Launcher, storage LocalStorage, chatID string) error {
	if chatID == "" {
		if err := storage.RemoveItem(ActiveChatIDKey); err != nil {
			return fmt.Errorf("failed to clear active chat: %w", err)
		}
		rt.Session.SwitchChat("")
	} else {
		if err := storage.SetItem(ActiveChatIDKey, chatID); err != nil {
			return fmt.Errorf("failed to store active chat: %w", err)
		}
		rt.Session.SwitchChat(chatID)
	}
	if l != nil {
		l.SetChatID(chatID)
	}
	return nil
}
