package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firespoon/sandchat/api/auth"
)

// Socket-level tests: dial the real endpoints through httptest.

func dialWS(t *testing.T, server *httptest.Server, path, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + path + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func writeFrame(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func TestClientEndpointRejectsBadToken(t *testing.T) {
	h, _ := newTestClientHandler(newFakeStore(), newFakeStarter())
	server := httptest.NewServer(h)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestClientEndpointFlow(t *testing.T) {
	store := newFakeStore()
	starter := newFakeStarter()
	h, _ := newTestClientHandler(store, starter)
	seedConversation(store, "conv1", "user1")

	server := httptest.NewServer(h)
	defer server.Close()

	token, err := auth.CreateAccessToken("user1", "alice", false, testSecret, time.Hour)
	require.NoError(t, err)
	conn := dialWS(t, server, "/ws", token)

	// Commands before a join are rejected with no_conversation.
	writeFrame(t, conn, map[string]any{"type": "user_message", "content": "early"})
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, codeNoConversation, frame["code"])

	// Joining someone else's conversation looks like a missing one.
	writeFrame(t, conn, map[string]any{"type": "join_conversation", "conversation_id": "conv_other"})
	frame = readFrame(t, conn)
	assert.Equal(t, codeNotFound, frame["code"])

	writeFrame(t, conn, map[string]any{"type": "join_conversation", "conversation_id": "conv1"})
	frame = readFrame(t, conn)
	assert.Equal(t, "conversation_joined", frame["type"])
	assert.Equal(t, "conv1", frame["conversation_id"])

	// Malformed frames and unknown commands are ignored, not fatal.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	writeFrame(t, conn, map[string]any{"type": "warp_drive"})

	writeFrame(t, conn, map[string]any{"type": "ping"})
	frame = readFrame(t, conn)
	assert.Equal(t, "pong", frame["type"])

	writeFrame(t, conn, map[string]any{"type": "user_message", "content": "hello"})
	frame = readFrame(t, conn)
	assert.Equal(t, "message_saved", frame["type"])
	frame = readFrame(t, conn)
	assert.Equal(t, "container_status", frame["type"])
	assert.Equal(t, "starting", frame["status"])

	select {
	case <-starter.started:
	case <-time.After(time.Second):
		t.Fatal("expected a container start request")
	}
}

// waitForContainer blocks until the hub has a container sender installed.
func waitForContainer(t *testing.T, hub *Hub, convID string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		hub.containerMu.RLock()
		_, ok := hub.containers[convID]
		hub.containerMu.RUnlock()
		if ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("container sender never appeared")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestContainerEndpointLifecycle(t *testing.T) {
	store := newFakeStore()
	seedConversation(store, "conv1", "user1")
	h, hub := newTestContainerHandler(store)

	server := httptest.NewServer(h)
	defer server.Close()

	clientSink := NewSink()
	hub.AddClient("user1", "conv1", clientSink)

	token, err := auth.CreateContainerToken("conv1", "user1", testSecret, time.Hour)
	require.NoError(t, err)
	conn := dialWS(t, server, "/internal/ws", token)

	// The owning client hears about the connection.
	status := decodeFrame(t, drain(t, clientSink))
	assert.Equal(t, "container_status", status["type"])
	assert.Equal(t, "connected", status["status"])

	writeFrame(t, conn, map[string]any{"type": "ready"})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var init map[string]any
	require.NoError(t, json.Unmarshal(data, &init))
	assert.Equal(t, "init", init["type"])
	assert.Equal(t, "conv1", init["conversation_id"])

	// Closing the active connection notifies the client.
	conn.Close()
	deadline := time.After(2 * time.Second)
	for {
		if queueLen(clientSink) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected a disconnected notification")
		case <-time.After(10 * time.Millisecond):
		}
	}
	status = decodeFrame(t, drain(t, clientSink))
	assert.Equal(t, "disconnected", status["status"])
}

func TestReplacedContainerStaysSilentOnClose(t *testing.T) {
	store := newFakeStore()
	seedConversation(store, "conv1", "user1")
	h, hub := newTestContainerHandler(store)

	server := httptest.NewServer(h)
	defer server.Close()

	token, err := auth.CreateContainerToken("conv1", "user1", testSecret, time.Hour)
	require.NoError(t, err)

	oldConn := dialWS(t, server, "/internal/ws", token)
	waitForContainer(t, hub, "conv1")
	newConn := dialWS(t, server, "/internal/ws", token)
	defer newConn.Close()
	time.Sleep(50 * time.Millisecond)

	// Both connections are up; the second owns the hub entry. Attach the
	// client only now so connect notifications don't interleave.
	clientSink := NewSink()
	hub.AddClient("user1", "conv1", clientSink)

	// The old transport closes; its generation is stale, so no
	// disconnected frame reaches the client and the new sender survives.
	oldConn.Close()
	time.Sleep(100 * time.Millisecond)

	assert.Zero(t, queueLen(clientSink))
	assert.True(t, hub.SendToContainer("conv1", `{"type":"cancel"}`))

	newConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := newConn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "cancel")
}
