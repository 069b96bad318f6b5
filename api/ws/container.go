package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/firespoon/sandchat/api/auth"
	"github.com/firespoon/sandchat/api/crypto"
	"github.com/firespoon/sandchat/api/domain"
)

// ContainerHandler terminates the internal WebSockets opened by sandbox
// containers: it brokers the init handshake, forwards streaming events to
// the owning client, and persists completed assistant messages.
type ContainerHandler struct {
	hub           *Hub
	store         Store
	jwtSecret     string
	encryptionKey string
}

func NewContainerHandler(hub *Hub, store Store, jwtSecret, encryptionKey string) *ContainerHandler {
	return &ContainerHandler{hub: hub, store: store, jwtSecret: jwtSecret, encryptionKey: encryptionKey}
}

func (h *ContainerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.VerifyContainerToken(r.URL.Query().Get("token"), h.jwtSecret)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws: container upgrade failed", "error", err)
		return
	}

	h.serve(r.Context(), conn, claims.Subject, claims.UserID)
}

func (h *ContainerHandler) serve(ctx context.Context, conn *websocket.Conn, convID, userID string) {
	sink := NewSink()
	generation := h.hub.AddContainer(convID, sink)
	go writePump(conn, sink)

	defer func() {
		// Only clean up if this is still the active container for the
		// conversation; a replacement with a newer generation owns the
		// entry and the client notifications from here on.
		if h.hub.RemoveContainerIfGen(convID, generation) {
			h.hub.SendToClient(userID, convID,
				containerStatusFrame(convID, statusDisconnected, "Container disconnected"))
		}
		sink.Close()
		conn.Close()
	}()

	// Best-effort: the owning client may not be connected.
	h.hub.SendToClient(userID, convID,
		containerStatusFrame(convID, statusConnected, "Container connected"))

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			continue
		}

		switch head.Type {
		case containerReady:
			h.handleReady(ctx, sink, convID, userID)
		case containerComplete:
			h.handleComplete(ctx, convID, userID, data)
		default:
			// error frames and all streaming events (assistant_delta,
			// thinking_delta, tool_call, tool_result, ...) pass through
			// with the conversation ID injected.
			h.forward(convID, userID, data, nil)
		}
	}
}

// handleReady composes the init frame from current persisted state and
// delivers it, followed by the pending message if one is stashed, or a
// resend of the trailing user message. This is what makes container
// restarts invisible across a send in flight.
func (h *ContainerHandler) handleReady(ctx context.Context, sink *Sink, convID, userID string) {
	slog.Info("ws: container ready", "conversation_id", convID)

	conv, err := h.store.GetConversation(ctx, convID, userID)
	if err != nil {
		slog.Error("ws: init lookup failed", "conversation_id", convID, "error", err)
		return
	}

	provider := h.resolveProvider(ctx, userID, deref(conv.Provider), true)

	providerKind := "openai"
	apiKey := ""
	var endpointURL *string
	if provider != nil {
		providerKind = provider.Provider
		apiKey = h.decryptKey(provider)
		endpointURL = provider.EndpointURL
	}

	messages, err := h.store.ListRecentMessages(ctx, convID, ContainerInitHistoryLimit)
	if err != nil {
		slog.Error("ws: init history failed", "conversation_id", convID, "error", err)
		messages = nil
	}

	// A trailing user message is resent as a command, not as context.
	var tail *domain.Message
	if len(messages) > 0 && messages[len(messages)-1].Role == domain.RoleUser {
		tail = messages[len(messages)-1]
		messages = messages[:len(messages)-1]
	}

	history := make([]historyMessage, 0, len(messages))
	for _, m := range messages {
		history = append(history, historyMessage{Role: m.Role, Content: m.Content})
	}

	servers, err := h.store.GetConversationMCPServers(ctx, convID)
	if err != nil {
		slog.Warn("ws: init mcp lookup failed", "conversation_id", convID, "error", err)
	}
	mcpConfigs := make([]mcpServerConfig, 0, len(servers))
	for _, s := range servers {
		mcpConfigs = append(mcpConfigs, mcpServerConfig{
			Name:      s.Name,
			Transport: s.Transport,
			Command:   s.Command,
			Args:      s.Args,
			URL:       s.URL,
			EnvVars:   s.EnvVars,
		})
	}

	imageProvider := h.resolveProvider(ctx, userID, deref(conv.ImageProvider), false)
	imageKind := ""
	imageKey := ""
	var imageEndpoint *string
	if imageProvider != nil {
		imageKind = imageProvider.Provider
		imageKey = h.decryptKey(imageProvider)
		imageEndpoint = imageProvider.EndpointURL
	}

	sink.Send(mustJSON(initFrame{
		Type:             "init",
		ConversationID:   convID,
		Provider:         providerKind,
		Model:            resolveModel(conv, provider),
		APIKey:           apiKey,
		EndpointURL:      endpointURL,
		SystemPrompt:     conv.SystemPromptOverride,
		ToolsEnabled:     true,
		MCPServers:       mcpConfigs,
		History:          history,
		ImageProvider:    imageKind,
		ImageModel:       conv.ImageModel,
		ImageAPIKey:      imageKey,
		ImageEndpointURL: imageEndpoint,
	}))

	// The pending message wins over the history tail: it is the frame the
	// client endpoint queued verbatim and was never acknowledged.
	if pending, ok := h.hub.TakePendingMessage(convID); ok {
		sink.Send(pending)
	} else if tail != nil {
		sink.Send(mustJSON(userMessageFrame{
			Type:         "user_message",
			MessageID:    tail.ID,
			Content:      tail.Content,
			DeepThinking: conv.DeepThinking,
		}))
	}
}

// resolveProvider looks up a provider by name; the chat path (fallback set)
// falls back to the user's default provider when no name is set.
func (h *ContainerHandler) resolveProvider(ctx context.Context, userID, name string, fallback bool) *domain.Provider {
	if name == "" {
		if !fallback {
			return nil
		}
		provider, err := h.store.GetDefaultProvider(ctx, userID)
		if err != nil {
			return nil
		}
		return provider
	}
	provider, err := h.store.GetProviderByName(ctx, userID, name)
	if err != nil {
		return nil
	}
	return provider
}

func (h *ContainerHandler) decryptKey(provider *domain.Provider) string {
	key, err := crypto.Decrypt(provider.APIKeyEncrypted, h.encryptionKey)
	if err != nil {
		slog.Error("ws: api key decrypt failed", "provider", provider.Provider, "error", err)
		return ""
	}
	return key
}

// resolveModel picks the model for a conversation: its own override, then
// the provider's model list, then the provider's single model, then the
// hardcoded default.
func resolveModel(conv *domain.Conversation, provider *domain.Provider) string {
	if conv.ModelName != nil && *conv.ModelName != "" {
		return *conv.ModelName
	}
	if provider != nil {
		if provider.Models != nil {
			var models []string
			if err := json.Unmarshal([]byte(*provider.Models), &models); err == nil && len(models) > 0 {
				return models[0]
			}
		}
		if provider.ModelName != nil && *provider.ModelName != "" {
			return *provider.ModelName
		}
	}
	return "gpt-4o"
}

// handleComplete persists the assistant message and forwards the original
// frame to the client, enriched with the conversation and new message IDs.
func (h *ContainerHandler) handleComplete(ctx context.Context, convID, userID string, data []byte) {
	var payload struct {
		Content    *string         `json:"content"`
		ToolCalls  json.RawMessage `json:"tool_calls"`
		TokenUsage json.RawMessage `json:"token_usage"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	var tokenCount *int64
	if len(payload.TokenUsage) > 0 {
		var usage struct {
			Completion *int64 `json:"completion"`
		}
		if err := json.Unmarshal(payload.TokenUsage, &usage); err == nil {
			tokenCount = usage.Completion
		}
	}

	var toolCalls *string
	if len(payload.ToolCalls) > 0 && string(payload.ToolCalls) != "null" {
		s := string(payload.ToolCalls)
		toolCalls = &s
	}

	msg, err := h.store.CreateMessage(ctx, convID, domain.RoleAssistant,
		deref(payload.Content), toolCalls, nil, tokenCount)
	if err != nil {
		slog.Error("ws: save assistant message failed", "conversation_id", convID, "error", err)
		return
	}

	h.forward(convID, userID, data, map[string]string{"message_id": msg.ID})
}

// forward re-emits a container frame to the owning client with
// conversation_id (and any extra fields) injected.
func (h *ContainerHandler) forward(convID, userID string, data []byte, extra map[string]string) {
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	frame["conversation_id"] = convID
	for k, v := range extra {
		frame[k] = v
	}
	h.hub.SendToClient(userID, convID, mustJSON(frame))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
