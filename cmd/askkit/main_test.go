package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"AskKit/internal/config"
	"AskKit/internal/models"
	"AskKit/internal/repo"
	"AskKit/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

type cliEnv struct {
	dataDir    string
	configPath string
}

func newCLIEnv(t *testing.T, gemini string) cliEnv {
	t.Helper()
	keyring.MockInit()
	dir := t.TempDir()
	env := cliEnv{
		dataDir:    filepath.Join(dir, "data"),
		configPath: filepath.Join(dir, "config.toml"),
	}
	conf := fmt.Sprintf("data_dir = %q\n\n[providers]\ngemini = %q\n", env.dataDir, gemini)
	require.NoError(t, os.WriteFile(env.configPath, []byte(conf), 0o644))
	return env
}

func (e cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (e cliEnv) agents(t *testing.T) []models.Agent {
	t.Helper()
	db, err := telemetry.OpenDB(filepath.Join(e.dataDir, "askkit.db"))
	require.NoError(t, err)
	defer db.Close()
	agents, err := repo.NewAgentRepo(db).GetAgents(context.Background())
	require.NoError(t, err)
	return agents
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	env := newCLIEnv(t, "http://gemini.test")
	flags := &globalFlags{}
	cmd := buildRootCmd(flags)
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", env.configPath,
		"--data-dir", "/tmp/elsewhere",
		"--transport", "ws",
	}))

	cfg, err := loadConfig(cmd, flags)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/elsewhere", cfg.DataDir)
	assert.Equal(t, filepath.Join("/tmp/elsewhere", "logs"), cfg.LogDir)
	assert.Equal(t, config.TransportWebSocket, cfg.Bridge.Transport)
	assert.Equal(t, "http://gemini.test", cfg.Providers.Gemini)
}

func TestLoadConfig_RejectsUnknownTransport(t *testing.T) {
	env := newCLIEnv(t, "http://gemini.test")
	_, _, err := env.run(t, "--transport", "carrier-pigeon", "agents", "list")
	assert.ErrorContains(t, err, "unknown bridge transport")
}

func TestAgents_ListUseAndSetKey(t *testing.T) {
	env := newCLIEnv(t, "http://gemini.test")

	out, _, err := env.run(t, "agents", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "gemini-2.5-pro")
	assert.Contains(t, out, "gemini-2.5-flash-lite")
	assert.NotContains(t, out, "* ")

	agents := env.agents(t)
	require.Len(t, agents, 3)
	id := agents[1].ID

	out, _, err = env.run(t, "agents", "use", id)
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, _, err = env.run(t, "agents", "set-key", id, "--key", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "api key stored")

	out, _, err = env.run(t, "agents", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "* "+id)
	assert.Contains(t, out, "set")

	db, err := telemetry.OpenDB(filepath.Join(env.dataDir, "askkit.db"))
	require.NoError(t, err)
	defer db.Close()
	cfg, err := repo.NewAgentRepo(db).GetAgentConfig(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.NotNil(t, cfg.APIKey)
	assert.NotEqual(t, "secret", *cfg.APIKey)
}

func TestAgents_UseUnknownAgent(t *testing.T) {
	env := newCLIEnv(t, "http://gemini.test")
	_, _, err := env.run(t, "agents", "use", "missing")
	assert.Error(t, err)
}

func TestChats_SendStreamsReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-goog-api-key"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"candidates":[{"content":{"role":"model","parts":[{"text":"Hello"}]}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"candidates":[{"content":{"role":"model","parts":[{"text":" there"}]}}]}`+"\n\n")
	}))
	defer srv.Close()
	env := newCLIEnv(t, srv.URL)

	out, _, err := env.run(t, "chats", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no chats yet")

	id := env.agents(t)[0].ID
	_, _, err = env.run(t, "agents", "use", id)
	require.NoError(t, err)
	_, _, err = env.run(t, "agents", "set-key", id, "--key", "secret")
	require.NoError(t, err)

	out, stderr, err := env.run(t, "chats", "send", "say", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there\n", out)
	chatID := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(stderr), "chat "))
	require.NotEmpty(t, chatID)

	out, _, err = env.run(t, "chats", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "say-hi")

	out, _, err = env.run(t, "chats", "messages", chatID)
	require.NoError(t, err)
	assert.Contains(t, out, "say hi")
	assert.Contains(t, out, "Hello there")

	out, _, err = env.run(t, "chats", "messages", chatID, "--html")
	require.NoError(t, err)
	assert.Contains(t, out, "<p>Hello there</p>")
}

func TestChats_SendWithoutKeyFails(t *testing.T) {
	env := newCLIEnv(t, "http://gemini.test")
	_, _, err := env.run(t, "agents", "list")
	require.NoError(t, err)
	id := env.agents(t)[0].ID
	_, _, err = env.run(t, "agents", "use", id)
	require.NoError(t, err)

	_, _, err = env.run(t, "chats", "send", "hello")
	assert.Error(t, err)
}
