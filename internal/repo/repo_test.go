package repo

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"AskKit/internal/models"
	"AskKit/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := telemetry.OpenDB(filepath.Join(t.TempDir(), "askkit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSeed_OnlyOnEmptyTable(t *testing.T) {
	ctx := context.Background()
	agents := NewAgentRepo(openTestDB(t))

	seeded, err := agents.Seed(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = agents.Seed(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)

	list, err := agents.GetAgents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "gemini-2.5-pro", list[0].Model)
	assert.Equal(t, "gemini-2.5-flash-lite", list[2].Model)
	for _, a := range list {
		assert.Equal(t, models.ProviderGemini, a.Provider)
		assert.NotEmpty(t, a.ID)
	}
}

func TestCurrentAgent(t *testing.T) {
	ctx := context.Background()
	agents := NewAgentRepo(openTestDB(t))

	current, err := agents.GetCurrentAgent(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	a, err := agents.CreateAgent(ctx, CreateAgent{Provider: models.ProviderGroq, Model: "llama"})
	require.NoError(t, err)
	b, err := agents.CreateAgent(ctx, CreateAgent{ID: "b", Provider: models.ProviderOllama, Model: "qwen"})
	require.NoError(t, err)

	require.NoError(t, agents.UpdateCurrentAgent(ctx, a.ID))
	require.NoError(t, agents.UpdateCurrentAgent(ctx, b.ID))

	current, err = agents.GetCurrentAgent(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "b", current.ID)
	assert.Equal(t, models.ProviderOllama, current.Provider)
}

func TestUpdateCurrentAgent_UnknownAgent(t *testing.T) {
	agents := NewAgentRepo(openTestDB(t))

	err := agents.UpdateCurrentAgent(context.Background(), "missing")
	appErr, ok := models.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, models.KindSQL, appErr.Kind)
}

func TestAgentConfig_Upsert(t *testing.T) {
	ctx := context.Background()
	agents := NewAgentRepo(openTestDB(t))
	a, err := agents.CreateAgent(ctx, CreateAgent{Provider: models.ProviderGemini, Model: "m"})
	require.NoError(t, err)

	cfg, err := agents.GetAgentConfig(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	n, err := agents.UpsertAgentConfig(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	cfg, err = agents.GetAgentConfig(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Nil(t, cfg.APIKey)

	key := "secret"
	n, err = agents.UpsertAgentConfig(ctx, a.ID, &key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// nil leaves the stored key alone
	_, err = agents.UpsertAgentConfig(ctx, a.ID, nil)
	require.NoError(t, err)

	cfg, err = agents.GetAgentConfig(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, cfg.APIKey)
	assert.Equal(t, "secret", *cfg.APIKey)
	assert.Equal(t, a.ID, cfg.AgentID)
}

func TestChats(t *testing.T) {
	ctx := context.Background()
	chats := NewChatRepo(openTestDB(t))

	missing, err := chats.GetChat(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	first, err := chats.CreateChat(ctx, "", "first")
	require.NoError(t, err)
	second, err := chats.CreateChat(ctx, "c2", "second")
	require.NoError(t, err)

	got, err := chats.GetChat(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Title)

	list, err := chats.GetChats(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestChatMessages_OrderAndUpdate(t *testing.T) {
	ctx := context.Background()
	chats := NewChatRepo(openTestDB(t))
	chat, err := chats.CreateChat(ctx, "c", "title")
	require.NoError(t, err)

	user, err := chats.CreateChatMessage(ctx, CreateChatMessage{
		ChatID: chat.ID, Role: models.RoleUser, Content: "hi", Status: models.StatusCompleted,
	})
	require.NoError(t, err)
	model, err := chats.CreateChatMessage(ctx, CreateChatMessage{
		ChatID: chat.ID, Role: models.RoleModel, Status: models.StatusPending,
	})
	require.NoError(t, err)

	content := "hello there"
	status := models.StatusCompleted
	require.NoError(t, chats.UpdateChatMessage(ctx, model.ID, UpdateChatMessage{Content: &content}))
	require.NoError(t, chats.UpdateChatMessage(ctx, model.ID, UpdateChatMessage{Status: &status}))
	require.NoError(t, chats.UpdateChatMessage(ctx, model.ID, UpdateChatMessage{}))

	messages, err := chats.GetChatMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, user.ID, messages[0].ID)
	assert.Equal(t, model.ID, messages[1].ID)
	assert.Equal(t, "hello there", messages[1].Content)
	assert.Equal(t, models.StatusCompleted, messages[1].Status)

	empty, err := chats.GetChatMessages(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUnitOfWork_Rollback(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	uow, err := Begin(ctx, db)
	require.NoError(t, err)
	_, err = uow.Chats.CreateChat(ctx, "tx", "inside")
	require.NoError(t, err)
	require.NoError(t, uow.Rollback())

	got, err := NewChatRepo(db).GetChat(ctx, "tx")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUnitOfWork_Commit(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	uow, err := Begin(ctx, db)
	require.NoError(t, err)
	_, err = uow.Chats.CreateChat(ctx, "tx", "inside")
	require.NoError(t, err)
	require.NoError(t, uow.Commit())
	require.NoError(t, uow.Rollback())

	got, err := NewChatRepo(db).GetChat(ctx, "tx")
	require.NoError(t, err)
	require.NotNil(t, got)
}
