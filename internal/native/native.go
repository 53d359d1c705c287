// Package native implements the commands the launcher invokes: agents,
// agent configs, chats and streamed chat replies.
package native

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"AskKit/internal/backend"
	"AskKit/internal/cipher"
	"AskKit/internal/ipc"
	"AskKit/internal/models"
	"AskKit/internal/repo"
)

// DefaultPersistEvery is how many streamed chunks accumulate between
// writes of a reply's partial content
const DefaultPersistEvery = 5

// Deps are the collaborators of a Backend
type Deps struct {
	DB       *sql.DB
	Cipher   cipher.Cipher
	Streamer backend.TextStreamer
	Bus      *ipc.Bus
	Logger   *slog.Logger

	// PersistEvery defaults to DefaultPersistEvery
	PersistEvery int
}

// Backend serves the launcher commands
type Backend struct {
	db           *sql.DB
	agents       *repo.AgentRepo
	chats        *repo.ChatRepo
	cipher       cipher.Cipher
	streamer     backend.TextStreamer
	bus          *ipc.Bus
	logger       *slog.Logger
	persistEvery int

	// replies outlive the invocation that started them
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Backend
func New(deps Deps) (*Backend, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if deps.DB == nil || deps.Cipher == nil || deps.Streamer == nil || deps.Bus == nil {
		return nil, fmt.Errorf("db, cipher, streamer and bus are required")
	}
	if deps.PersistEvery <= 0 {
		deps.PersistEvery = DefaultPersistEvery
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Backend{
		db:           deps.DB,
		agents:       repo.NewAgentRepo(deps.DB),
		chats:        repo.NewChatRepo(deps.DB),
		cipher:       deps.Cipher,
		streamer:     deps.Streamer,
		bus:          deps.Bus,
		logger:       deps.Logger,
		persistEvery: deps.PersistEvery,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Seed inserts the default agents on first run
func (b *Backend) Seed(ctx context.Context) error {
	seeded, err := b.agents.Seed(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed agents: %w", err)
	}
	if seeded {
		b.logger.Info("seeded default agents", "count", len(repo.DefaultAgents))
	}
	return nil
}

// Register adds every command to r
func (b *Backend) Register(r *ipc.Router) {
	r.Handle(models.CmdGetCurrentAgent, ipc.NoArgs(b.GetCurrentAgent))
	r.Handle(models.CmdGetAgents, ipc.NoArgs(b.GetAgents))
	r.Handle(models.CmdUpdateCurrentAgent, ipc.Bind(b.UpdateCurrentAgent))
	r.Handle(models.CmdGetAgentConfig, ipc.Bind(b.GetAgentConfig))
	r.Handle(models.CmdUpsertAgentConfig, ipc.Bind(b.UpsertAgentConfig))
	r.Handle(models.CmdDecryptAgentCiphertext, ipc.Bind(b.DecryptAgentCiphertext))
	r.Handle(models.CmdCreateChat, ipc.Bind(b.CreateChat))
	r.Handle(models.CmdGetChat, ipc.Bind(b.GetChat))
	r.Handle(models.CmdGetChats, ipc.NoArgs(b.GetChats))
	r.Handle(models.CmdGetChatMessages, ipc.Bind(b.GetChatMessages))
	r.Handle(models.CmdSendChatMessage, ipc.Bind(b.SendChatMessage))
}

// Wait blocks until every streaming reply has finished
func (b *Backend) Wait() {
	b.wg.Wait()
}

// Close aborts streaming replies and waits for them to record their final
// status
func (b *Backend) Close() error {
	b.cancel()
	b.wg.Wait()
	return nil
}

func (b *Backend) emit(event string, payload any) {
	if err := b.bus.Emit(event, payload); err != nil {
		b.logger.Error("failed to emit event", "event", event, "error", err)
	}
}

func invalidArgs(format string, args ...any) error {
	return models.NewAppError(models.KindInvalidArgs, fmt.Errorf(format, args...))
}
