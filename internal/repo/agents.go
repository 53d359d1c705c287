package repo

import (
	"context"
	"database/sql"
	"errors"

	"AskKit/internal/models"

	"github.com/google/uuid"
)

// DefaultAgents are inserted on first run
var DefaultAgents = []CreateAgent{
	{Provider: models.ProviderGemini, Model: "gemini-2.5-pro"},
	{Provider: models.ProviderGemini, Model: "gemini-2.5-flash"},
	{Provider: models.ProviderGemini, Model: "gemini-2.5-flash-lite"},
}

// CreateAgent describes a new agent. A blank ID gets a fresh uuid.
type CreateAgent struct {
	ID       string
	Provider models.AgentProvider
	Model    string
}

// AgentRepo reads and writes agents, their configs and the current agent
type AgentRepo struct {
	db DBTX
}

// NewAgentRepo creates an agent repository over db
func NewAgentRepo(db DBTX) *AgentRepo {
	return &AgentRepo{db: db}
}

const agentColumns = "a.id, a.provider, a.model, a.created_at, a.updated_at"

func scanAgent(row interface{ Scan(...any) error }) (models.Agent, error) {
	var a models.Agent
	var provider string
	err := row.Scan(&a.ID, &provider, &a.Model, &a.CreatedAt, &a.UpdatedAt)
	a.Provider = models.AgentProvider(provider)
	return a, err
}

// GetAgents returns all agents, oldest first
func (r *AgentRepo) GetAgents(ctx context.Context) ([]models.Agent, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+agentColumns+" FROM agents a ORDER BY a.created_at ASC, a.rowid ASC")
	if err != nil {
		return nil, sqlError("query agents", err)
	}
	defer rows.Close()

	agents := []models.Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, sqlError("scan agent", err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlError("iterate agents", err)
	}
	return agents, nil
}

// GetAgent returns the agent with id or nil
func (r *AgentRepo) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	a, err := scanAgent(r.db.QueryRowContext(ctx, "SELECT "+agentColumns+" FROM agents a WHERE a.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sqlError("get agent", err)
	}
	return &a, nil
}

// GetCurrentAgent returns the selected agent or nil when none is selected
func (r *AgentRepo) GetCurrentAgent(ctx context.Context) (*models.Agent, error) {
	a, err := scanAgent(r.db.QueryRowContext(ctx,
		"SELECT "+agentColumns+" FROM current_agent c JOIN agents a ON a.id = c.agent_id WHERE c.id = 1"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sqlError("get current agent", err)
	}
	return &a, nil
}

// UpdateCurrentAgent selects agentID
func (r *AgentRepo) UpdateCurrentAgent(ctx context.Context, agentID string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO current_agent (id, agent_id) VALUES (1, ?) ON CONFLICT (id) DO UPDATE SET agent_id = excluded.agent_id",
		agentID)
	if err != nil {
		return sqlError("update current agent", err)
	}
	return nil
}

// CreateAgent inserts an agent
func (r *AgentRepo) CreateAgent(ctx context.Context, in CreateAgent) (models.Agent, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	now := nowMillis()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO agents (id, provider, model, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		in.ID, string(in.Provider), in.Model, now, now)
	if err != nil {
		return models.Agent{}, sqlError("create agent", err)
	}
	return models.Agent{ID: in.ID, Provider: in.Provider, Model: in.Model, CreatedAt: now, UpdatedAt: now}, nil
}

// CountAgents returns the number of agents
func (r *AgentRepo) CountAgents(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT count(*) FROM agents").Scan(&n); err != nil {
		return 0, sqlError("count agents", err)
	}
	return n, nil
}

// GetAgentConfig returns the config of agentID or nil
func (r *AgentRepo) GetAgentConfig(ctx context.Context, agentID string) (*models.AgentConfig, error) {
	var c models.AgentConfig
	var apiKey sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT agent_id, api_key, created_at, updated_at FROM agent_configs WHERE agent_id = ?", agentID).
		Scan(&c.AgentID, &apiKey, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sqlError("get agent config", err)
	}
	if apiKey.Valid {
		c.APIKey = &apiKey.String
	}
	return &c, nil
}

// UpsertAgentConfig creates or updates the config of agentID. A nil apiKey
// leaves a stored key untouched. Returns the number of rows affected.
func (r *AgentRepo) UpsertAgentConfig(ctx context.Context, agentID string, apiKey *string) (int64, error) {
	now := nowMillis()
	var res sql.Result
	var err error
	if apiKey != nil {
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO agent_configs (agent_id, api_key, created_at, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (agent_id) DO UPDATE SET api_key = excluded.api_key, updated_at = excluded.updated_at`,
			agentID, *apiKey, now, now)
	} else {
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO agent_configs (agent_id, created_at, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (agent_id) DO UPDATE SET updated_at = excluded.updated_at`,
			agentID, now, now)
	}
	if err != nil {
		return 0, sqlError("upsert agent config", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, sqlError("read rows affected", err)
	}
	return n, nil
}

// Seed inserts DefaultAgents when the agents table is empty and reports
// whether it did.
func (r *AgentRepo) Seed(ctx context.Context) (bool, error) {
	n, err := r.CountAgents(ctx)
	if err != nil {
		return false, err
	}
	if n != 0 {
		return false, nil
	}
	for _, a := range DefaultAgents {
		if _, err := r.CreateAgent(ctx, a); err != nil {
			return false, err
		}
	}
	return true, nil
}
