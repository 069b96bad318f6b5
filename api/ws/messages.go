package ws

import (
	"encoding/json"
	"log/slog"
)

// Client command types, discriminated by the "type" field. Unknown types are
// dropped silently; new commands are added by extending this set.
const (
	cmdJoinConversation = "join_conversation"
	cmdUserMessage      = "user_message"
	cmdEditMessage      = "edit_message"
	cmdRegenerate       = "regenerate"
	cmdCancel           = "cancel"
	cmdPing             = "ping"
)

// Container frame types the backend interprets. Everything else is
// forwarded to the client unchanged; that is how new streaming event types
// (assistant_delta, thinking_delta, tool_call, tool_result, ...) reach the
// browser without backend changes.
const (
	containerReady    = "ready"
	containerComplete = "complete"
	containerError    = "error"
)

const (
	statusStarting     = "starting"
	statusConnected    = "connected"
	statusDisconnected = "disconnected"
)

const (
	codeNotFound             = "not_found"
	codeInvalidMessage       = "invalid_message"
	codeNoConversation       = "no_conversation"
	codeContainerStartFailed = "container_start_failed"
)

type clientCommand struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Content        string `json:"content"`
}

type conversationJoinedEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

type messageSavedEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

type messagesTruncatedEvent struct {
	Type           string  `json:"type"`
	AfterMessageID string  `json:"after_message_id"`
	UpdatedContent *string `json:"updated_content,omitempty"`
}

type containerStatusEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
	Message        string `json:"message"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type pongEvent struct {
	Type string `json:"type"`
}

// userMessageFrame is sent to the container to start (or resume) a turn.
type userMessageFrame struct {
	Type         string `json:"type"`
	MessageID    string `json:"message_id"`
	Content      string `json:"content"`
	DeepThinking bool   `json:"deep_thinking"`
}

// truncateHistoryFrame tells a live container to drop its in-memory history
// down to the first keep_turns user turns.
type truncateHistoryFrame struct {
	Type      string `json:"type"`
	KeepTurns int    `json:"keep_turns"`
}

type cancelFrame struct {
	Type string `json:"type"`
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mcpServerConfig struct {
	Name      string  `json:"name"`
	Transport string  `json:"transport"`
	Command   *string `json:"command"`
	Args      *string `json:"args"`
	URL       *string `json:"url"`
	EnvVars   *string `json:"env_vars"`
}

// initFrame carries everything a freshly booted container needs: resolved
// provider credentials, model, system prompt, MCP configs, and recent
// history.
type initFrame struct {
	Type             string            `json:"type"`
	ConversationID   string            `json:"conversation_id"`
	Provider         string            `json:"provider"`
	Model            string            `json:"model"`
	APIKey           string            `json:"api_key"`
	EndpointURL      *string           `json:"endpoint_url"`
	SystemPrompt     *string           `json:"system_prompt"`
	ToolsEnabled     bool              `json:"tools_enabled"`
	MCPServers       []mcpServerConfig `json:"mcp_servers"`
	History          []historyMessage  `json:"history"`
	ImageProvider    string            `json:"image_provider"`
	ImageModel       *string           `json:"image_model"`
	ImageAPIKey      string            `json:"image_api_key"`
	ImageEndpointURL *string           `json:"image_endpoint_url"`
}

func errorFrame(code, message string) string {
	return mustJSON(errorEvent{Type: "error", Code: code, Message: message})
}

func containerStatusFrame(convID, status, message string) string {
	return mustJSON(containerStatusEvent{
		Type:           "container_status",
		ConversationID: convID,
		Status:         status,
		Message:        message,
	})
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// All frame types marshal; reaching this is a programming error.
		slog.Error("ws: frame marshal failed", "error", err)
		return "{}"
	}
	return string(data)
}
