package domain

import "time"

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Conversation struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	Title                string    `json:"title"`
	Provider             *string   `json:"provider,omitempty"`
	ModelName            *string   `json:"model_name,omitempty"`
	ImageProvider        *string   `json:"image_provider,omitempty"`
	ImageModel           *string   `json:"image_model,omitempty"`
	SystemPromptOverride *string   `json:"system_prompt_override,omitempty"`
	DeepThinking         bool      `json:"deep_thinking"`
	ShareToken           *string   `json:"share_token,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"` // user, assistant, system, tool
	Content        string    `json:"content"`
	ToolCalls      *string   `json:"tool_calls,omitempty"`
	ToolCallID     *string   `json:"tool_call_id,omitempty"`
	TokenCount     *int64    `json:"token_count,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Provider is a per-user LLM provider credential. The API key is stored
// encrypted and only decrypted when handed to a container.
type Provider struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Provider        string    `json:"provider"`
	APIKeyEncrypted string    `json:"-"`
	EndpointURL     *string   `json:"endpoint_url,omitempty"`
	ModelName       *string   `json:"model_name,omitempty"`
	Models          *string   `json:"models,omitempty"`       // JSON array of model names
	ImageModels     *string   `json:"image_models,omitempty"` // JSON array of image model names
	IsDefault       bool      `json:"is_default"`
	CreatedAt       time.Time `json:"created_at"`
}

type MCPServer struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Transport   string    `json:"transport"` // stdio, sse
	Command     *string   `json:"command,omitempty"`
	Args        *string   `json:"args,omitempty"` // JSON array
	URL         *string   `json:"url,omitempty"`
	EnvVars     *string   `json:"env_vars,omitempty"` // JSON object
	Enabled     bool      `json:"is_enabled"`
	CreatedAt   time.Time `json:"created_at"`
}

type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type Preset struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

const (
	MCPTransportStdio = "stdio"
	MCPTransportSSE   = "sse"
)
