package native

import (
	"context"
	"strings"

	"AskKit/internal/models"
)

// UpdateCurrentAgentArgs selects an agent
type UpdateCurrentAgentArgs struct {
	AgentID string `json:"agentId"`
}

// GetAgentConfigArgs names an agent
type GetAgentConfigArgs struct {
	ID string `json:"id"`
}

// UpsertAgentConfigArgs carries the fields to write for agent ID
type UpsertAgentConfigArgs struct {
	ID     string            `json:"id"`
	Upsert AgentConfigUpsert `json:"upsert"`
}

// AgentConfigUpsert holds optional config fields. A nil APIKey leaves the
// stored key alone; a blank one clears it.
type AgentConfigUpsert struct {
	APIKey *string `json:"api_key"`
}

// DecryptArgs carries a stored ciphertext
type DecryptArgs struct {
	Ciphertext string `json:"ciphertext"`
}

// GetCurrentAgent returns the selected agent or nil
func (b *Backend) GetCurrentAgent(ctx context.Context) (*models.Agent, error) {
	return b.agents.GetCurrentAgent(ctx)
}

// GetAgents lists all agents
func (b *Backend) GetAgents(ctx context.Context) ([]models.Agent, error) {
	return b.agents.GetAgents(ctx)
}

// UpdateCurrentAgent selects args.AgentID
func (b *Backend) UpdateCurrentAgent(ctx context.Context, args UpdateCurrentAgentArgs) (any, error) {
	if args.AgentID == "" {
		return nil, invalidArgs("agentId is required")
	}
	return nil, b.agents.UpdateCurrentAgent(ctx, args.AgentID)
}

// GetAgentConfig returns the config of agent args.ID with its api key
// still encrypted
func (b *Backend) GetAgentConfig(ctx context.Context, args GetAgentConfigArgs) (*models.AgentConfig, error) {
	return b.agents.GetAgentConfig(ctx, args.ID)
}

// UpsertAgentConfig encrypts and stores the api key of agent args.ID and
// returns the number of rows written
func (b *Backend) UpsertAgentConfig(ctx context.Context, args UpsertAgentConfigArgs) (int64, error) {
	if args.ID == "" {
		return 0, invalidArgs("id is required")
	}

	var apiKey *string
	if args.Upsert.APIKey != nil {
		key := strings.TrimSpace(*args.Upsert.APIKey)
		if key != "" {
			sealed, err := b.cipher.Encrypt(key)
			if err != nil {
				return 0, err
			}
			key = sealed
		}
		apiKey = &key
	}

	return b.agents.UpsertAgentConfig(ctx, args.ID, apiKey)
}

// DecryptAgentCiphertext returns the plaintext of a stored api key
func (b *Backend) DecryptAgentCiphertext(_ context.Context, args DecryptArgs) (string, error) {
	return b.cipher.Decrypt(args.Ciphertext)
}
