package models

// AgentProvider identifies the LLM vendor behind an agent
type AgentProvider string

const (
	ProviderGemini    AgentProvider = "gemini"
	ProviderOpenAI    AgentProvider = "open_ai"
	ProviderGroq      AgentProvider = "groq"
	ProviderAnthropic AgentProvider = "anthropic"
	ProviderOllama    AgentProvider = "ollama"
)

// Valid reports whether p is a known provider
func (p AgentProvider) Valid() bool {
	switch p {
	case ProviderGemini, ProviderOpenAI, ProviderGroq, ProviderAnthropic, ProviderOllama:
		return true
	}
	return false
}

// Agent is a configured model the launcher can chat with
type Agent struct {
	CreatedAt int64         `json:"createdAt"`
	UpdatedAt int64         `json:"updatedAt"`
	ID        string        `json:"id"`
	Provider  AgentProvider `json:"provider"`
	Model     string        `json:"model"`
}

// AgentConfig holds per-agent settings. APIKey is stored encrypted and base64 encoded.
type AgentConfig struct {
	CreatedAt int64   `json:"created_at"`
	UpdatedAt int64   `json:"updated_at"`
	AgentID   string  `json:"agent_id"`
	APIKey    *string `json:"api_key"`
}

// ChatMessageStatus is the lifecycle state of a chat message
type ChatMessageStatus string

const (
	StatusPending   ChatMessageStatus = "pending"
	StatusCompleted ChatMessageStatus = "completed"
	StatusFailed    ChatMessageStatus = "failed"
)

// Roles used in chat messages
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Chat is a conversation thread
type Chat struct {
	CreatedAt int64  `json:"createdAt"`
	ID        string `json:"id"`
	Title     string `json:"title"`
}

// ChatMessage represents a single message of a chat
type ChatMessage struct {
	CreatedAt int64             `json:"createdAt"`
	ID        string            `json:"id"`
	ChatID    string            `json:"chatId"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	Status    ChatMessageStatus `json:"status"`
}
