// Package ws is the in-memory routing fabric between browser clients and
// sandbox containers, plus the two WebSocket endpoints that feed it.
package ws

import (
	"log/slog"
	"sync"
)

// Maximum number of messages fetched for history-dependent WS operations.
const MaxHistoryMessages = 1000

// Number of recent messages sent to a container on init.
const ContainerInitHistoryLimit = 50

type containerConn struct {
	sink       *Sink
	generation uint64
}

// Hub indexes the live senders. Clients are keyed by (user, conversation);
// containers by conversation, tagged with a process-monotonic generation so
// a replaced container's late cleanup cannot evict its successor.
type Hub struct {
	clientMu sync.RWMutex
	clients  map[string]map[string]*Sink

	containerMu sync.RWMutex
	containers  map[string]containerConn
	generation  uint64 // guarded by containerMu

	pendingMu sync.Mutex
	pending   map[string]string
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[string]*Sink),
		containers: make(map[string]containerConn),
		pending:    make(map[string]string),
	}
}

// AddClient installs the sender for (user, conversation), replacing any
// prior one.
func (h *Hub) AddClient(userID, convID string, sink *Sink) {
	h.clientMu.Lock()
	defer h.clientMu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[string]*Sink)
	}
	h.clients[userID][convID] = sink
	clientConnections.Inc()
	slog.Info("ws: client joined", "user_id", userID, "conversation_id", convID)
}

// RemoveClient is idempotent and drops the empty per-user submap.
func (h *Hub) RemoveClient(userID, convID string) {
	h.clientMu.Lock()
	defer h.clientMu.Unlock()
	if userConns, ok := h.clients[userID]; ok {
		if _, ok := userConns[convID]; ok {
			delete(userConns, convID)
			clientConnections.Dec()
		}
		if len(userConns) == 0 {
			delete(h.clients, userID)
		}
	}
}

// SendToClient is best-effort: no sender, no delivery, no error.
func (h *Hub) SendToClient(userID, convID, msg string) {
	h.clientMu.RLock()
	sink := h.clients[userID][convID]
	h.clientMu.RUnlock()
	if sink != nil {
		sink.Send(msg)
		clientFramesSent.Inc()
	}
}

// AddContainer installs the container sender for a conversation, silently
// overwriting any prior one, and returns the freshly assigned generation.
// The increment and the install happen in one critical section so counter
// order and install order agree.
func (h *Hub) AddContainer(convID string, sink *Sink) uint64 {
	h.containerMu.Lock()
	defer h.containerMu.Unlock()
	h.generation++
	gen := h.generation
	if _, replaced := h.containers[convID]; !replaced {
		containerConnections.Inc()
	}
	h.containers[convID] = containerConn{sink: sink, generation: gen}
	slog.Info("ws: container connected", "conversation_id", convID, "generation", gen)
	return gen
}

// RemoveContainer unconditionally removes the sender for a conversation.
// Used by the REST layer when a config change forces a fresh boot.
func (h *Hub) RemoveContainer(convID string) {
	h.containerMu.Lock()
	defer h.containerMu.Unlock()
	if _, ok := h.containers[convID]; ok {
		delete(h.containers, convID)
		containerConnections.Dec()
	}
}

// RemoveContainerIfGen removes the sender only if the stored generation
// matches. This is the only safe removal path for a disconnecting container
// transport: a newer generation means the entry now belongs to a
// replacement and must be left alone.
func (h *Hub) RemoveContainerIfGen(convID string, generation uint64) bool {
	h.containerMu.Lock()
	defer h.containerMu.Unlock()
	if conn, ok := h.containers[convID]; ok && conn.generation == generation {
		delete(h.containers, convID)
		containerConnections.Dec()
		return true
	}
	return false
}

// SendToContainer reports whether a sender existed and accepted the frame.
func (h *Hub) SendToContainer(convID, msg string) bool {
	h.containerMu.RLock()
	conn, ok := h.containers[convID]
	h.containerMu.RUnlock()
	if !ok {
		return false
	}
	if !conn.sink.Send(msg) {
		return false
	}
	containerFramesSent.Inc()
	return true
}

// SetPendingMessage stashes a serialized frame for delivery when the
// conversation's container reports ready. A second send racing the same
// startup overwrites the first; the earlier frame was never acknowledged.
func (h *Hub) SetPendingMessage(convID, msg string) {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	h.pending[convID] = msg
}

// TakePendingMessage removes and returns the stashed frame, if any.
func (h *Hub) TakePendingMessage(convID string) (string, bool) {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	msg, ok := h.pending[convID]
	if ok {
		delete(h.pending, convID)
	}
	return msg, ok
}
