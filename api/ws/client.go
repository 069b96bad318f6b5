package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/firespoon/sandchat/api/auth"
	"github.com/firespoon/sandchat/api/domain"
)

const (
	writeTimeout = 10 * time.Second
	startTimeout = 60 * time.Second
	titleMaxLen  = 50
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Connections authenticate with a token; origin policy lives in the
	// HTTP CORS layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Store is the persistence surface the WebSocket endpoints consume.
type Store interface {
	GetConversation(ctx context.Context, convID, userID string) (*domain.Conversation, error)
	UpdateConversation(ctx context.Context, conv *domain.Conversation) error
	CreateMessage(ctx context.Context, convID, role, content string, toolCalls, toolCallID *string, tokenCount *int64) (*domain.Message, error)
	GetMessage(ctx context.Context, msgID string) (*domain.Message, error)
	ListMessages(ctx context.Context, convID string, limit, offset int) ([]*domain.Message, error)
	ListRecentMessages(ctx context.Context, convID string, limit int) ([]*domain.Message, error)
	CountMessages(ctx context.Context, convID string) (int64, error)
	UpdateMessageContent(ctx context.Context, msgID, content string) error
	DeleteMessagesAfter(ctx context.Context, convID, afterMsgID string) (int64, error)
	TouchConversation(ctx context.Context, convID string) error
	GetConversationMCPServers(ctx context.Context, convID string) ([]*domain.MCPServer, error)
	GetProviderByName(ctx context.Context, userID, provider string) (*domain.Provider, error)
	GetDefaultProvider(ctx context.Context, userID string) (*domain.Provider, error)
}

// ContainerStarter is the orchestrator surface the client endpoint needs.
type ContainerStarter interface {
	StartContainer(ctx context.Context, conversationID, userID string) (string, error)
	Touch(conversationID string)
}

// ClientHandler terminates browser WebSockets and runs the conversation
// state machine.
type ClientHandler struct {
	hub       *Hub
	store     Store
	starter   ContainerStarter
	jwtSecret string
}

func NewClientHandler(hub *Hub, store Store, starter ContainerStarter, jwtSecret string) *ClientHandler {
	return &ClientHandler{hub: hub, store: store, starter: starter, jwtSecret: jwtSecret}
}

func (h *ClientHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.VerifyAccessToken(r.URL.Query().Get("token"), h.jwtSecret)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws: client upgrade failed", "error", err)
		return
	}

	h.serve(r.Context(), conn, claims.Subject)
}

// writePump drains a sink to the socket. One writer goroutine per
// connection; frames within one sink stay in order.
func writePump(conn *websocket.Conn, sink *Sink) {
	for {
		msg, ok := sink.Next()
		if !ok {
			return
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
	}
}

func (h *ClientHandler) serve(ctx context.Context, conn *websocket.Conn, userID string) {
	sink := NewSink()
	go writePump(conn, sink)

	defer func() {
		sink.Close()
		conn.Close()
	}()

	var currentConvID string

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var cmd clientCommand
		// Malformed frames are dropped without closing the session.
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}

		switch cmd.Type {
		case cmdJoinConversation:
			if cmd.ConversationID == "" {
				continue
			}
			if _, err := h.store.GetConversation(ctx, cmd.ConversationID, userID); err != nil {
				sink.Send(errorFrame(codeNotFound, "Conversation not found"))
				continue
			}
			if currentConvID != "" {
				h.hub.RemoveClient(userID, currentConvID)
			}
			currentConvID = cmd.ConversationID
			h.hub.AddClient(userID, currentConvID, sink)
			sink.Send(mustJSON(conversationJoinedEvent{
				Type:           "conversation_joined",
				ConversationID: currentConvID,
			}))

		case cmdUserMessage:
			if currentConvID == "" {
				sink.Send(errorFrame(codeNoConversation, "Join a conversation first"))
				continue
			}
			h.handleUserMessage(ctx, sink, currentConvID, userID, cmd.Content)

		case cmdEditMessage:
			if currentConvID == "" {
				continue
			}
			h.handleEditMessage(ctx, sink, currentConvID, userID, cmd.MessageID, cmd.Content)

		case cmdRegenerate:
			if currentConvID == "" {
				continue
			}
			h.handleRegenerate(ctx, sink, currentConvID, userID, cmd.MessageID)

		case cmdCancel:
			if currentConvID != "" {
				h.hub.SendToContainer(currentConvID, mustJSON(cancelFrame{Type: "cancel"}))
			}

		case cmdPing:
			sink.Send(mustJSON(pongEvent{Type: "pong"}))

		default:
			// Unknown client commands are dropped.
		}
	}

	if currentConvID != "" {
		h.hub.RemoveClient(userID, currentConvID)
	}
}

func (h *ClientHandler) handleUserMessage(ctx context.Context, sink *Sink, convID, userID, content string) {
	if content == "" {
		return
	}

	msg, err := h.store.CreateMessage(ctx, convID, domain.RoleUser, content, nil, nil, nil)
	if err != nil {
		slog.Error("ws: create message failed", "conversation_id", convID, "error", err)
		return
	}
	if err := h.store.TouchConversation(ctx, convID); err != nil {
		slog.Warn("ws: conversation touch failed", "conversation_id", convID, "error", err)
	}

	conv, err := h.store.GetConversation(ctx, convID, userID)
	if err != nil {
		slog.Error("ws: conversation lookup failed", "conversation_id", convID, "error", err)
		return
	}

	// First message names the conversation.
	if count, err := h.store.CountMessages(ctx, convID); err == nil && count == 1 {
		conv.Title = deriveTitle(content)
		if err := h.store.UpdateConversation(ctx, conv); err != nil {
			slog.Warn("ws: title update failed", "conversation_id", convID, "error", err)
		}
	}

	sink.Send(mustJSON(messageSavedEvent{
		Type:           "message_saved",
		ConversationID: convID,
		MessageID:      msg.ID,
	}))

	h.sendOrStart(sink, convID, userID, mustJSON(userMessageFrame{
		Type:         "user_message",
		MessageID:    msg.ID,
		Content:      content,
		DeepThinking: conv.DeepThinking,
	}))
}

func (h *ClientHandler) handleEditMessage(ctx context.Context, sink *Sink, convID, userID, messageID, content string) {
	if content == "" {
		return
	}

	msg, err := h.store.GetMessage(ctx, messageID)
	if err != nil || msg.Role != domain.RoleUser || msg.ConversationID != convID {
		sink.Send(errorFrame(codeInvalidMessage, "Message not found or not a user message"))
		return
	}

	keepTurns := h.userTurnsBefore(ctx, convID, msg.ID)

	if err := h.store.UpdateMessageContent(ctx, msg.ID, content); err != nil {
		slog.Error("ws: edit update failed", "message_id", msg.ID, "error", err)
	}
	if _, err := h.store.DeleteMessagesAfter(ctx, convID, msg.ID); err != nil {
		slog.Error("ws: edit truncate failed", "message_id", msg.ID, "error", err)
	}

	sink.Send(mustJSON(messagesTruncatedEvent{
		Type:           "messages_truncated",
		AfterMessageID: msg.ID,
		UpdatedContent: &content,
	}))

	h.truncateAndResend(ctx, sink, convID, userID, keepTurns, msg.ID, content)
}

func (h *ClientHandler) handleRegenerate(ctx context.Context, sink *Sink, convID, userID, messageID string) {
	msg, err := h.store.GetMessage(ctx, messageID)
	if err != nil || msg.Role != domain.RoleAssistant || msg.ConversationID != convID {
		sink.Send(errorFrame(codeInvalidMessage, "Message not found or not an assistant message"))
		return
	}

	all, err := h.store.ListMessages(ctx, convID, MaxHistoryMessages, 0)
	if err != nil {
		slog.Error("ws: history lookup failed", "conversation_id", convID, "error", err)
		return
	}

	// Find the last user message preceding the assistant message.
	var userMsg *domain.Message
	for i := range all {
		if all[i].ID == msg.ID {
			break
		}
		if all[i].Role == domain.RoleUser {
			userMsg = all[i]
		}
	}
	if userMsg == nil {
		return
	}

	keepTurns := 0
	for _, m := range all {
		if m.ID == userMsg.ID {
			break
		}
		if m.Role == domain.RoleUser {
			keepTurns++
		}
	}

	if _, err := h.store.DeleteMessagesAfter(ctx, convID, userMsg.ID); err != nil {
		slog.Error("ws: regenerate truncate failed", "message_id", userMsg.ID, "error", err)
	}

	sink.Send(mustJSON(messagesTruncatedEvent{
		Type:           "messages_truncated",
		AfterMessageID: userMsg.ID,
	}))

	h.truncateAndResend(ctx, sink, convID, userID, keepTurns, userMsg.ID, userMsg.Content)
}

// truncateAndResend tells a live container to drop its tail, then re-issues
// the preserved user message. Both frames leave from this task, so the
// truncation always precedes the resend at the container.
func (h *ClientHandler) truncateAndResend(ctx context.Context, sink *Sink, convID, userID string, keepTurns int, messageID, content string) {
	h.hub.SendToContainer(convID, mustJSON(truncateHistoryFrame{
		Type:      "truncate_history",
		KeepTurns: keepTurns,
	}))

	deepThinking := false
	if conv, err := h.store.GetConversation(ctx, convID, userID); err == nil {
		deepThinking = conv.DeepThinking
	}

	h.sendOrStart(sink, convID, userID, mustJSON(userMessageFrame{
		Type:         "user_message",
		MessageID:    messageID,
		Content:      content,
		DeepThinking: deepThinking,
	}))
}

// userTurnsBefore counts the user messages strictly before the given one.
func (h *ClientHandler) userTurnsBefore(ctx context.Context, convID, messageID string) int {
	all, err := h.store.ListMessages(ctx, convID, MaxHistoryMessages, 0)
	if err != nil {
		return 0
	}
	turns := 0
	for _, m := range all {
		if m.ID == messageID {
			break
		}
		if m.Role == domain.RoleUser {
			turns++
		}
	}
	return turns
}

// sendOrStart routes a frame to the conversation's container. When no
// container connection exists, the frame is stashed as the pending message,
// the client is told a container is starting, and the start runs in the
// background; the container endpoint delivers the pending frame on ready.
func (h *ClientHandler) sendOrStart(sink *Sink, convID, userID, frame string) {
	if h.hub.SendToContainer(convID, frame) {
		h.starter.Touch(convID)
		return
	}

	h.hub.SetPendingMessage(convID, frame)
	sink.Send(containerStatusFrame(convID, statusStarting, "Container not connected. Starting..."))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		if _, err := h.starter.StartContainer(ctx, convID, userID); err != nil {
			slog.Error("ws: container start failed", "conversation_id", convID, "error", err)
			sink.Send(errorFrame(codeContainerStartFailed, "Failed to start container: "+err.Error()))
		}
	}()
}

// deriveTitle trims the first message down to a conversation title.
func deriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) > titleMaxLen {
		return string(runes[:titleMaxLen]) + "..."
	}
	return content
}
