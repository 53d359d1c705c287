// Package session holds the launcher's in-session state: the active chat, its
// rendered messages and the scroll container of the chat view. "Persisted"
// here means retained across component remounts, not written to disk.
package session

import (
	"AskKit/internal/component"
	"AskKit/internal/models"
	"AskKit/internal/reactive"
	"AskKit/internal/render"
)

// ChatMessageView is a chat message with its content pre-rendered as HTML
type ChatMessageView struct {
	models.ChatMessage
	HTML string `json:"html"`
}

// NewChatMessageView renders msg. Content that fails to render is shown as-is.
func NewChatMessageView(msg models.ChatMessage) ChatMessageView {
	html, err := render.HTML(msg.Content)
	if err != nil {
		html = msg.Content
	}
	return ChatMessageView{ChatMessage: msg, HTML: html}
}

// NewChatMessageViews renders every message, preserving order
func NewChatMessageViews(msgs []models.ChatMessage) []ChatMessageView {
	views := make([]ChatMessageView, len(msgs))
	for i, m := range msgs {
		views[i] = NewChatMessageView(m)
	}
	return views
}

// ScrollAnchor is a handle to the chat view's scroll container
type ScrollAnchor interface {
	Offset() int
	ScrollTo(offset int)
}

// Snapshot is the state at one point in time.
// An empty ChatID means no chat is selected, nil Messages means not loaded.
type Snapshot struct {
	ChatID       string
	Messages     []ChatMessageView
	ScrollAnchor ScrollAnchor
}

// State is the launcher session store. One State exists per running
// application; components reach it through the runtime context.
type State struct {
	v *reactive.Value[Snapshot]
}

// New returns an empty store
func New() *State {
	return &State{v: reactive.New(Snapshot{})}
}

// Snapshot returns all fields at once
func (s *State) Snapshot() Snapshot {
	return s.v.Get()
}

// Subscribe calls fn after every write with the new snapshot
func (s *State) Subscribe(fn func(Snapshot)) func() {
	return s.v.Subscribe(fn)
}

// ChatID returns the active chat id
func (s *State) ChatID() (string, bool) {
	id := s.v.Get().ChatID
	return id, id != ""
}

// SetChatID replaces the active chat id. Cached messages are left alone;
// use SwitchChat to change chats.
func (s *State) SetChatID(id string) {
	s.v.Update(func(cur Snapshot) Snapshot {
		cur.ChatID = id
		return cur
	})
}

// ClearChatID unsets the active chat id
func (s *State) ClearChatID() {
	s.SetChatID("")
}

// Messages returns the cached messages of the active chat
func (s *State) Messages() ([]ChatMessageView, bool) {
	msgs := s.v.Get().Messages
	return msgs, msgs != nil
}

// SetMessages replaces the cached messages. A nil slice marks them unloaded.
func (s *State) SetMessages(msgs []ChatMessageView) {
	s.v.Update(func(cur Snapshot) Snapshot {
		cur.Messages = msgs
		return cur
	})
}

// SetMessagesFor replaces the cached messages only while chatID is the
// active chat, checked in the same write. It reports whether they were set.
func (s *State) SetMessagesFor(chatID string, msgs []ChatMessageView) bool {
	set := false
	s.v.Update(func(cur Snapshot) Snapshot {
		if chatID == "" || cur.ChatID != chatID {
			return cur
		}
		cur.Messages = msgs
		set = true
		return cur
	})
	return set
}

// ClearMessages marks the messages unloaded
func (s *State) ClearMessages() {
	s.SetMessages(nil)
}

// ScrollAnchor returns the bound scroll container
func (s *State) ScrollAnchor() (ScrollAnchor, bool) {
	a := s.v.Get().ScrollAnchor
	return a, a != nil
}

// SetScrollAnchor replaces the scroll container handle
func (s *State) SetScrollAnchor(a ScrollAnchor) {
	s.v.Update(func(cur Snapshot) Snapshot {
		cur.ScrollAnchor = a
		return cur
	})
}

// ClearScrollAnchor drops the scroll container handle
func (s *State) ClearScrollAnchor() {
	s.SetScrollAnchor(nil)
}

// SwitchChat makes id the active chat and drops messages cached for the
// previous one in the same write. Switching to the current chat is a no-op.
func (s *State) SwitchChat(id string) {
	s.v.Update(func(cur Snapshot) Snapshot {
		if cur.ChatID == id {
			return cur
		}
		cur.ChatID = id
		cur.Messages = nil
		return cur
	})
}

// Reset clears every field
func (s *State) Reset() {
	s.v.Set(Snapshot{})
}

// BindScrollAnchor stores a and clears it when node is destroyed, unless
// another anchor has been bound in the meantime.
func (s *State) BindScrollAnchor(node *component.Node, a ScrollAnchor) {
	s.SetScrollAnchor(a)
	node.OnDestroy(func() {
		s.v.Update(func(cur Snapshot) Snapshot {
			if cur.ScrollAnchor == a {
				cur.ScrollAnchor = nil
			}
			return cur
		})
	})
}

// AppendMessage adds msg to the cache when it belongs to the active chat
// and the cache is loaded. It reports whether the message was added.
func (s *State) AppendMessage(msg ChatMessageView) bool {
	added := false
	s.v.Update(func(cur Snapshot) Snapshot {
		if cur.ChatID == "" || msg.ChatID != cur.ChatID || cur.Messages == nil {
			return cur
		}
		for _, m := range cur.Messages {
			if m.ID == msg.ID {
				return cur
			}
		}
		next := make([]ChatMessageView, len(cur.Messages), len(cur.Messages)+1)
		copy(next, cur.Messages)
		cur.Messages = append(next, msg)
		added = true
		return cur
	})
	return added
}

// UpdateMessage applies fn to the cached message with the given id in the
// active chat. It reports whether a message was updated.
func (s *State) UpdateMessage(chatID, id string, fn func(ChatMessageView) ChatMessageView) bool {
	updated := false
	s.v.Update(func(cur Snapshot) Snapshot {
		if cur.ChatID == "" || cur.ChatID != chatID {
			return cur
		}
		for i, m := range cur.Messages {
			if m.ID != id {
				continue
			}
			next := make([]ChatMessageView, len(cur.Messages))
			copy(next, cur.Messages)
			next[i] = fn(m)
			cur.Messages = next
			updated = true
			break
		}
		return cur
	})
	return updated
}

// RemoveMessage drops the cached message with the given id from the active chat
func (s *State) RemoveMessage(chatID, id string) bool {
	removed := false
	s.v.Update(func(cur Snapshot) Snapshot {
		if cur.ChatID == "" || cur.ChatID != chatID {
			return cur
		}
		next := make([]ChatMessageView, 0, len(cur.Messages))
		for _, m := range cur.Messages {
			if m.ID == id {
				removed = true
				continue
			}
			next = append(next, m)
		}
		if removed {
			cur.Messages = next
		}
		return cur
	})
	return removed
}
