// Package sandbox manages the per-conversation agent containers: a registry
// of what is running and an orchestrator that drives the container engine.
package sandbox

import (
	"sync"
	"time"
)

// ContainerInfo is the lifecycle bookkeeping for one conversation's
// container, independent of whether it currently holds a WebSocket.
type ContainerInfo struct {
	ConversationID string
	ContainerID    string
	UserID         string
	LastActivity   time.Time
}

// Registry tracks running containers keyed by conversation ID. At most one
// entry exists per conversation.
type Registry struct {
	mu         sync.RWMutex
	containers map[string]ContainerInfo
	now        func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		containers: make(map[string]ContainerInfo),
		now:        time.Now,
	}
}

// Register records a running container for a conversation, replacing any
// prior entry.
func (r *Registry) Register(conversationID, containerID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.containers[conversationID] = ContainerInfo{
		ConversationID: conversationID,
		ContainerID:    containerID,
		UserID:         userID,
		LastActivity:   r.now(),
	}
}

// Unregister removes and returns the entry for a conversation.
func (r *Registry) Unregister(conversationID string) (ContainerInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.containers[conversationID]
	if ok {
		delete(r.containers, conversationID)
	}
	return info, ok
}

// Touch refreshes last activity. No-op when the conversation has no entry.
func (r *Registry) Touch(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.containers[conversationID]; ok {
		info.LastActivity = r.now()
		r.containers[conversationID] = info
	}
}

// Get returns the entry for a conversation.
func (r *Registry) Get(conversationID string) (ContainerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.containers[conversationID]
	return info, ok
}

// IdleContainers returns every entry whose last activity is older than the
// threshold.
func (r *Registry) IdleContainers(threshold time.Duration) []ContainerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cutoff := r.now().Add(-threshold)
	var idle []ContainerInfo
	for _, info := range r.containers {
		if info.LastActivity.Before(cutoff) {
			idle = append(idle, info)
		}
	}
	return idle
}

// ListAll returns all entries.
func (r *Registry) ListAll() []ContainerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]ContainerInfo, 0, len(r.containers))
	for _, info := range r.containers {
		all = append(all, info)
	}
	return all
}

// Len returns the number of registered containers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.containers)
}
