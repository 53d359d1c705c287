package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"AskKit/internal/ipc"
	"AskKit/internal/models"
	"AskKit/internal/native"
	"AskKit/internal/session"

	"github.com/spf13/cobra"
)

func newChatsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List, read and continue chats",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List chats, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBridge(cmd, flags, func(br ipc.Bridge) error {
					return listChats(cmd, br)
				})
			},
		},
		newMessagesCmd(flags),
		newSendCmd(flags),
	)
	return cmd
}

func listChats(cmd *cobra.Command, br ipc.Bridge) error {
	chats, err := ipc.Invoke[[]models.Chat](cmd.Context(), br, models.CmdGetChats, nil)
	if err != nil {
		return fmt.Errorf("failed to get chats: %w", err)
	}
	if len(chats) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no chats yet")
		return nil
	}

	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, headerStyle.Render("ID")+"\t"+headerStyle.Render("TITLE")+"\t"+headerStyle.Render("CREATED"))
	for _, c := range chats {
		created := time.UnixMilli(c.CreatedAt).Format(time.DateTime)
		fmt.Fprintf(w, "%s\t%s\t%s\n", idStyle.Render(c.ID), c.Title, created)
	}
	return w.Flush()
}

func newMessagesCmd(flags *globalFlags) *cobra.Command {
	var asHTML bool
	cmd := &cobra.Command{
		Use:   "messages CHAT_ID",
		Short: "Print the messages of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBridge(cmd, flags, func(br ipc.Bridge) error {
				msgs, err := ipc.Invoke[[]models.ChatMessage](cmd.Context(), br, models.CmdGetChatMessages, native.GetChatMessagesArgs{ChatID: args[0]})
				if err != nil {
					return fmt.Errorf("failed to get chat messages: %w", err)
				}
				out := cmd.OutOrStdout()
				for i, v := range session.NewChatMessageViews(msgs) {
					if i > 0 {
						fmt.Fprintln(out)
					}
					label := roleStyle.Render(v.Role)
					if v.Status == models.StatusFailed {
						label += " " + failedStyle.Render("(failed)")
					}
					fmt.Fprintln(out, label)
					if asHTML {
						fmt.Fprint(out, v.HTML)
					} else {
						fmt.Fprintln(out, v.Content)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "Print message content rendered as HTML")
	return cmd
}

func newSendCmd(flags *globalFlags) *cobra.Command {
	var chatID string
	cmd := &cobra.Command{
		Use:   "send [--chat CHAT_ID] MESSAGE...",
		Short: "Send a message and stream the reply",
		Long: `Sends a message to the current agent and prints the reply as it streams.
Without --chat a new chat is created, titled after the message.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			return withBridge(cmd, flags, func(br ipc.Bridge) error {
				return sendMessage(cmd, br, chatID, content)
			})
		},
	}
	cmd.Flags().StringVar(&chatID, "chat", "", "Continue an existing chat")
	return cmd
}

// replyWatcher follows the model reply of one chat through backend events
type replyWatcher struct {
	chatID string
	write  func(string)

	mu      sync.Mutex
	replyID string
	status  models.ChatMessageStatus
	done    chan struct{}
	once    sync.Once
}

func newReplyWatcher(chatID string, write func(string)) *replyWatcher {
	return &replyWatcher{chatID: chatID, write: write, done: make(chan struct{})}
}

func (r *replyWatcher) finish(status models.ChatMessageStatus) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
}

func (r *replyWatcher) listen(src ipc.EventSource) func() {
	unsubs := []func(){
		src.Listen(models.EventChatMessageCreated, func(raw json.RawMessage) {
			var msg models.ChatMessage
			if json.Unmarshal(raw, &msg) != nil || msg.ChatID != r.chatID || msg.Role != models.RoleModel {
				return
			}
			r.mu.Lock()
			r.replyID = msg.ID
			r.mu.Unlock()
		}),
		src.Listen(models.EventChatMessageResponseChunk, func(raw json.RawMessage) {
			var p models.ChatMessageResponseChunkPayload
			if json.Unmarshal(raw, &p) != nil || p.ChatID != r.chatID {
				return
			}
			r.write(p.Text)
		}),
		src.Listen(models.EventChatMessageStatusChanged, func(raw json.RawMessage) {
			var p models.ChatMessageStatusChangedPayload
			if json.Unmarshal(raw, &p) != nil || p.ChatID != r.chatID {
				return
			}
			r.mu.Lock()
			mine := p.MessageID == r.replyID
			r.mu.Unlock()
			if mine {
				r.finish(p.Status)
			}
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func sendMessage(cmd *cobra.Command, br ipc.Bridge, chatID, content string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if chatID == "" {
		id, err := ipc.Invoke[string](ctx, br, models.CmdCreateChat, native.CreateChatArgs{Content: content})
		if err != nil {
			return fmt.Errorf("failed to create chat: %w", err)
		}
		chatID = id
		fmt.Fprintln(cmd.ErrOrStderr(), idStyle.Render("chat "+chatID))
	}

	var writeMu sync.Mutex
	watcher := newReplyWatcher(chatID, func(text string) {
		writeMu.Lock()
		defer writeMu.Unlock()
		fmt.Fprint(out, text)
	})
	defer watcher.listen(br)()

	args := native.SendChatMessageArgs{ChatID: chatID, Content: content}
	if _, err := br.Invoke(ctx, models.CmdSendChatMessage, args); err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}

	select {
	case <-watcher.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	fmt.Fprintln(out)

	watcher.mu.Lock()
	status := watcher.status
	watcher.mu.Unlock()
	if status == models.StatusFailed {
		return fmt.Errorf("reply failed")
	}
	return nil
}
